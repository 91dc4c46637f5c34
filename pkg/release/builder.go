package release

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/couchbaselabs/cbci-tools/pkg/translator"
)

// PackageBuilder installs the build dependencies and builds the source distribution.
type PackageBuilder interface {
	InstallDependencies(ctx context.Context) error
	// BuildSdist builds the sdist with env added to the environment and returns the archive path
	// relative to the project root.
	BuildSdist(ctx context.Context, project translator.ProjectPrefix, version string, env []translator.EnvVar) (string, error)
}

// ShellBuilder runs the packaging steps as POSIX shell scripts in an embedded interpreter so they
// behave the same on every runner OS.
type ShellBuilder struct {
	Dir    string
	Python string
	// ToolPath is the binary implementing mv, rm and mkdir. If set, scripts use it instead of the
	// system tools.
	ToolPath string
	DryRun   bool
	Stdout   io.Writer
	Stderr   io.Writer
}

// NewShellBuilder creates a ShellBuilder for the project in dir.
func NewShellBuilder(dir string) *ShellBuilder {
	return &ShellBuilder{
		Dir:    dir,
		Python: "python3",
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

type buildStep struct {
	Name   string
	Script string
}

var installSteps = []buildStep{
	{Name: "upgrade-pip", Script: `"$PYTHON" -m pip install --upgrade pip setuptools wheel`},
	{Name: "requirements", Script: `if [ -f requirements.txt ]; then "$PYTHON" -m pip install -r requirements.txt; fi`},
}

var sdistSteps = []buildStep{
	{Name: "clean", Script: `rm -rf dist`},
	{Name: "sdist", Script: `"$PYTHON" setup.py sdist`},
}

var defaultExecHandler = interp.DefaultExecHandler(2 * time.Second)

func (b *ShellBuilder) execHandler(ctx context.Context, args []string) error {
	if len(args) > 0 && b.ToolPath != "" {
		switch args[0] {
		case "mv", "rm", "mkdir":
			args = append([]string{b.ToolPath}, args...)
		}
	}

	return defaultExecHandler(ctx, args)
}

func progressBar(steps int, desc string, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(steps,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		// the bar only leaves noise in CI logs
		progressbar.OptionSetVisibility(os.Getenv("CI") != "true"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
	)
}

func (b *ShellBuilder) environ(vars []translator.EnvVar) expand.Environ {
	pairs := os.Environ()
	pairs = append(pairs, "PYTHON="+b.Python)
	for _, item := range vars {
		pairs = append(pairs, item.String())
	}

	return expand.ListEnviron(pairs...)
}

func (b *ShellBuilder) run(ctx context.Context, desc string, steps []buildStep, vars []translator.EnvVar) error {
	logger := translator.Logger(ctx)
	runner, err := interp.New(
		interp.Dir(b.Dir),
		interp.Env(b.environ(vars)),
		interp.ExecHandler(b.execHandler),
		interp.StdIO(nil, b.Stdout, b.Stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return eris.Wrap(err, "failed to initialize shell")
	}

	bar := progressBar(len(steps), desc, b.Stderr)
	parser := syntax.NewParser()
	for _, step := range steps {
		file, err := parser.Parse(strings.NewReader(step.Script), step.Name)
		if err != nil {
			return eris.Wrapf(err, "failed to parse step %s", step.Name)
		}

		logger.Info().Str("step", step.Name).Bool("command", true).Msg(step.Script)
		if !b.DryRun {
			if err := runner.Run(ctx, file); err != nil {
				return eris.Wrapf(ErrCommandFailed, "step %s: %s", step.Name, err.Error())
			}
		}

		if err := bar.Add(1); err != nil {
			logger.Debug().Err(err).Msg("Failed to update progress")
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}

// InstallDependencies upgrades pip and installs requirements.txt if the project has one.
func (b *ShellBuilder) InstallDependencies(ctx context.Context) error {
	return b.run(ctx, "installing dependencies", installSteps, nil)
}

// BuildSdist implements PackageBuilder.BuildSdist
func (b *ShellBuilder) BuildSdist(ctx context.Context, project translator.ProjectPrefix, version string, env []translator.EnvVar) (string, error) {
	if err := b.run(ctx, "building sdist", sdistSteps, env); err != nil {
		return "", err
	}

	candidates := SdistNames(project, version)
	if b.DryRun {
		return filepath.Join("dist", candidates[0]), nil
	}

	for _, name := range candidates {
		path := filepath.Join("dist", name)
		if _, err := os.Stat(filepath.Join(b.Dir, path)); err == nil {
			return path, nil
		}
	}

	return "", eris.Wrapf(ErrCommandFailed, "sdist build did not produce dist/%s", candidates[0])
}

// SdistNames returns the archive names a build of project at version may produce. The first entry is
// <project>-<version>.tar.gz; newer setuptools releases normalize the project name and version.
func SdistNames(project translator.ProjectPrefix, version string) []string {
	names := []string{fmt.Sprintf("%s-%s.tar.gz", project.DistName(), version)}
	add := func(name string) {
		for _, item := range names {
			if item == name {
				return
			}
		}
		names = append(names, name)
	}

	normalizedName := strings.ReplaceAll(project.DistName(), "-", "_")
	add(fmt.Sprintf("%s-%s.tar.gz", normalizedName, version))
	add(fmt.Sprintf("%s-%s.tar.gz", normalizedName, pep440Version(version)))
	return names
}

var pep440Tags = map[string]string{
	"alpha": "a",
	"a":     "a",
	"beta":  "b",
	"b":     "b",
	"rc":    "rc",
	"dev":   ".dev",
	"post":  ".post",
}

// pep440Version turns a release version like 1.2.3-beta2 into the form pip uses (1.2.3b2).
func pep440Version(version string) string {
	pos := strings.Index(version, "-")
	if pos < 0 {
		return version
	}

	base, suffix := version[:pos], strings.ReplaceAll(version[pos+1:], ".", "")
	tagEnd := strings.IndexAny(suffix, "0123456789")
	if tagEnd < 1 {
		return version
	}

	tag, ok := pep440Tags[strings.ToLower(suffix[:tagEnd])]
	if !ok {
		return version
	}

	return base + tag + suffix[tagEnd:]
}

// CheckVersionFile verifies that the project's version file exists below root.
func CheckVersionFile(root string, project translator.ProjectPrefix) error {
	path := filepath.Join(root, filepath.FromSlash(project.VersionFile()))
	info, err := os.Stat(path)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return eris.Wrapf(ErrMissingRequiredInput, "version file %s not found", path)
		}
		return eris.Wrapf(err, "failed to check %s", path)
	}

	if info.IsDir() {
		return eris.Wrapf(ErrMissingRequiredInput, "%s is a directory", path)
	}

	return nil
}
