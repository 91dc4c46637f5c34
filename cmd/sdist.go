package cmd

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/couchbaselabs/cbci-tools/pkg"
	"github.com/couchbaselabs/cbci-tools/pkg/config"
	"github.com/couchbaselabs/cbci-tools/pkg/release"
	"github.com/couchbaselabs/cbci-tools/pkg/translator"
	tcmd "github.com/couchbaselabs/cbci-tools/pkg/translator/cmd"
)

func readEnvFile(path string) ([]translator.EnvVar, error) {
	handle, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open %s", path)
	}
	defer handle.Close()

	vars, err := translator.ParseEnvLines(handle)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse %s", path)
	}

	return vars, nil
}

var sdistCmd = &cobra.Command{
	Use:   "sdist [CONFIG_VAR]",
	Short: "Builds the source distribution",
	Long: `Translates the build config into the sdist build settings, installs the build
dependencies and builds dist/<project>-<version>.tar.gz. The archive path is printed
on success. Nothing is built if the config sets sdist.include to false.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := translator.Logger(ctx)
		env, err := config.Load()
		if err != nil {
			return err
		}

		raw, err := tcmd.ReadRawConfig(cmd, args)
		if err != nil {
			return err
		}

		cfg, err := translator.ParseBuildConfig(ctx, raw)
		if err != nil {
			return err
		}

		if !cfg.IncludeSdist() {
			logger.Info().Msg("sdist.include is false, skipping")
			return nil
		}

		in, err := workflowInputs(cmd, env)
		if err != nil {
			return err
		}

		vars, err := cfg.EnvVars(ctx, translator.BuildSdist, env)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		envFile, err := flags.GetString("env-file")
		if err != nil {
			return err
		}
		if envFile != "" {
			extra, err := readEnvFile(envFile)
			if err != nil {
				return err
			}
			vars = append(vars, extra...)
		}

		root, err := flags.GetString("dir")
		if err != nil {
			return err
		}
		if root == "" {
			wd, err := os.Getwd()
			if err != nil {
				return eris.Wrap(err, "failed to retrieve the current working directory")
			}

			root, err = pkg.FindProjectRoot(wd)
			if err != nil {
				return err
			}
		}

		builder := release.NewShellBuilder(root)
		builder.Stdout = os.Stderr
		builder.Python, err = flags.GetString("python")
		if err != nil {
			return err
		}
		builder.DryRun, err = flags.GetBool("dry-run")
		if err != nil {
			return err
		}
		if self, err := os.Executable(); err == nil {
			builder.ToolPath = self
		}

		skipDeps, err := flags.GetBool("skip-deps")
		if err != nil {
			return err
		}
		pkg.PrintTask(fmt.Sprintf("Building sdist for %s", cfg.Project))
		path, err := release.BuildSdist(ctx, builder, release.SdistRequest{
			Root:     root,
			Project:  cfg.Project,
			Version:  in.Version,
			Env:      vars,
			SkipDeps: skipDeps,
		})
		if err != nil {
			pkg.PrintError("Build failed")
			return err
		}

		pkg.PrintSubtask("Done")
		_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
		return err
	},
}

func init() {
	flags := sdistCmd.Flags()
	flags.String("raw", "", "config string to use instead of reading it from the environment")
	flags.String("version", "", "version being built (defaults to $CBCI_VERSION)")
	flags.String("dir", "", "project root (defaults to the enclosing git checkout)")
	flags.String("python", "python3", "Python interpreter used for the build")
	flags.String("env-file", "", "file with additional KEY=value lines for the build")
	flags.BoolP("dry-run", "n", false, "only print the commands, don't execute anything")
	flags.Bool("skip-deps", false, "don't install the build dependencies")

	rootCmd.AddCommand(sdistCmd)
}
