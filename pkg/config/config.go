package config

import (
	"os"
	"strings"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// DefaultFile is the optional config file read from the working directory. Environment variables
// take precedence over its values.
const DefaultFile = "cbci.toml"

// Environment describes the CI environment the tool runs in. It's loaded once per invocation and
// passed by value to everything that needs it.
type Environment struct {
	ProjectType string `env:"CBCI_PROJECT_TYPE" toml:"project_type" usage:"Project to build (operational or columnar)"`
	SHA         string `env:"CBCI_SHA" toml:"sha" usage:"Commit SHA the workflow runs against"`
	Version     string `env:"CBCI_VERSION" toml:"version" usage:"Release version"`
	IsRelease   bool   `env:"CBCI_IS_RELEASE" toml:"is_release" default:"false"`

	SupportedPythonVersions string `env:"CBCI_SUPPORTED_PYTHON_VERSIONS" toml:"supported_python_versions"`
	SupportedX8664Platforms string `env:"CBCI_SUPPORTED_X86_64_PLATFORMS" toml:"supported_x86_64_platforms"`
	SupportedArm64Platforms string `env:"CBCI_SUPPORTED_ARM64_PLATFORMS" toml:"supported_arm64_platforms"`

	DefaultLinuxPlatform      string `env:"CBCI_DEFAULT_LINUX_PLATFORM" toml:"default_linux_platform"`
	DefaultMacosX8664Platform string `env:"CBCI_DEFAULT_MACOS_X86_64_PLATFORM" toml:"default_macos_x86_64_platform"`
	DefaultMacosArm64Platform string `env:"CBCI_DEFAULT_MACOS_ARM64_PLATFORM" toml:"default_macos_arm64_platform"`
	DefaultWindowsPlatform    string `env:"CBCI_DEFAULT_WINDOWS_PLATFORM" toml:"default_windows_platform"`
	DefaultLinuxContainer     string `env:"CBCI_DEFAULT_LINUX_CONTAINER" toml:"default_linux_container"`
	DefaultAlpineContainer    string `env:"CBCI_DEFAULT_ALPINE_CONTAINER" toml:"default_alpine_container"`
	PreferCcache              string `env:"PREFER_CCACHE" toml:"prefer_ccache" usage:"ccache directory; enables ccache for wheel builds"`
	PreferVerboseMakefile     string `env:"PREFER_VERBOSE_MAKEFILE" toml:"prefer_verbose_makefile"`

	LogLevel string `env:"CBCI_LOG_LEVEL" toml:"log_level" default:"info"`
}

var logLevels = map[string]zerolog.Level{
	"trace":   zerolog.TraceLevel,
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
}

var projectTypes = map[string]bool{
	"":            true,
	"operational": true,
	"pycbc":       true,
	"columnar":    true,
	"pycbcc":      true,
}

// Loader initializes an empty Environment and returns a new Loader for it. The config file is only
// consulted if it exists.
func Loader(files ...string) (*Environment, *aconfig.Loader) {
	existing := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}

	env := Environment{}
	return &env, aconfig.LoaderFor(&env, aconfig.Config{
		SkipFlags: true,
		SkipFiles: len(existing) == 0,
		Files:     existing,
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
		},
	})
}

// Load reads the environment (and DefaultFile, if present) and validates the result.
func Load() (Environment, error) {
	env, loader := Loader(DefaultFile)
	if err := loader.Load(); err != nil {
		return Environment{}, eris.Wrap(err, "failed to load CI environment")
	}

	if err := env.Validate(); err != nil {
		return Environment{}, err
	}

	return *env, nil
}

// Validate verifies that all fields have valid values
func (env Environment) Validate() error {
	if _, ok := logLevels[strings.ToLower(env.LogLevel)]; !ok {
		return eris.Errorf("invalid value for CBCI_LOG_LEVEL: %s", env.LogLevel)
	}

	if !projectTypes[strings.ToLower(strings.TrimSpace(env.ProjectType))] {
		return eris.Errorf("invalid value for CBCI_PROJECT_TYPE: %s", env.ProjectType)
	}

	return nil
}

// Level converts the LogLevel field to a zerolog.Level
func (env Environment) Level() zerolog.Level {
	level, ok := logLevels[strings.ToLower(env.LogLevel)]
	if !ok {
		return zerolog.InfoLevel
	}
	return level
}

// PythonVersions returns the supported Python versions, in declaration order.
func (env Environment) PythonVersions() []string {
	return SplitList(env.SupportedPythonVersions)
}

// HasPlatformLists reports whether the environment restricts the supported platforms at all.
func (env Environment) HasPlatformLists() bool {
	return strings.TrimSpace(env.SupportedX8664Platforms) != "" || strings.TrimSpace(env.SupportedArm64Platforms) != ""
}

// Platforms returns the supported OS names (linux, alpine, macos, windows) for the given
// architecture. arm64 and aarch64 are treated the same.
func (env Environment) Platforms(arch string) []string {
	switch strings.ToLower(arch) {
	case "x86_64":
		return SplitList(env.SupportedX8664Platforms)
	case "arm64", "aarch64":
		return SplitList(env.SupportedArm64Platforms)
	}

	return nil
}

// SplitList splits a list passed through an environment variable. Items may be separated by
// whitespace, commas or both.
func SplitList(value string) []string {
	return strings.Fields(strings.ReplaceAll(value, ",", " "))
}
