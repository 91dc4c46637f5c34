package translator

import (
	"bufio"
	"context"
	"io"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/couchbaselabs/cbci-tools/pkg/config"
)

type buildOption struct {
	Default  string
	Required bool
	// Alias is the env var name; "SDKPROJECT" is replaced by the project's env prefix.
	Alias string
}

var defaultBuildOptions = map[string]buildOption{
	"USE_OPENSSL":      {Default: "OFF", Required: true, Alias: "SDKPROJECT_USE_OPENSSL"},
	"OPENSSL_VERSION":  {Alias: "SDKPROJECT_OPENSSL_VERSION"},
	"SET_CPM_CACHE":    {Default: "ON", Alias: "SDKPROJECT_SET_CPM_CACHE"},
	"USE_LIMITED_API":  {Alias: "SDKPROJECT_LIMITED_API"},
	"VERBOSE_MAKEFILE": {Alias: "SDKPROJECT_VERBOSE_MAKEFILE"},
	"BUILD_TYPE":       {Default: "RelWithDebInfo", Alias: "SDKPROJECT_BUILD_TYPE"},
	"CB_CACHE_OPTION":  {Alias: "SDKPROJECT_CB_CACHE_OPTION"},
}

func buildOptions(stage BuildStage, project ProjectPrefix, env config.Environment) map[string]buildOption {
	options := make(map[string]buildOption, len(defaultBuildOptions)+1)
	for name, opt := range defaultBuildOptions {
		options[name] = opt
	}

	switch stage {
	case BuildSdist:
		opt := options["SET_CPM_CACHE"]
		opt.Required = true
		options["SET_CPM_CACHE"] = opt
	case BuildWheel:
		opt := options["BUILD_TYPE"]
		opt.Required = true
		options["BUILD_TYPE"] = opt

		if env.PreferCcache != "" {
			options["CB_CACHE_OPTION"] = buildOption{Default: "ccache", Required: true, Alias: options["CB_CACHE_OPTION"].Alias}
			options["CCACHE_DIR"] = buildOption{Default: env.PreferCcache, Required: true, Alias: "CCACHE_DIR"}
		}

		if env.PreferVerboseMakefile != "" {
			options["VERBOSE_MAKEFILE"] = buildOption{Default: "ON", Required: true, Alias: options["VERBOSE_MAKEFILE"].Alias}
		}
	}

	for name, opt := range options {
		opt.Alias = strings.Replace(opt.Alias, "SDKPROJECT", project.EnvPrefix(), 1)
		options[name] = opt
	}

	return options
}

// EnvKey builds the env var name for a config path: the project's prefix followed by each path
// segment in upper case, joined with underscores.
func EnvKey(project ProjectPrefix, path []string) string {
	var key strings.Builder
	key.WriteString(project.EnvPrefix())
	for _, segment := range path {
		key.WriteByte('_')
		for _, char := range strings.ToUpper(segment) {
			if (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '_' {
				key.WriteRune(char)
			} else {
				key.WriteByte('_')
			}
		}
	}

	return key.String()
}

// EnvVars flattens the configuration into env var assignments for the given stage. The stage's
// section (sdist or wheel) is flattened completely, known build options are mapped to their alias
// and every required build option the config doesn't set is added with its default.
// The result is sorted by key.
func (c *BuildConfig) EnvVars(ctx context.Context, stage BuildStage, env config.Environment) ([]EnvVar, error) {
	options := buildOptions(stage, c.Project, env)

	names := make([]string, 0, len(c.Fields))
	for name := range c.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make(map[string]string)
	setOptions := make(map[string]bool)
	add := func(key, value, field string) error {
		if strings.ContainsAny(value, "\r\n") {
			return eris.Wrapf(ErrConfigParse, "value of %s spans multiple lines", field)
		}

		if _, present := values[key]; present {
			return eris.Wrapf(ErrConfigParse, "%s maps to %s which is already set", field, key)
		}

		values[key] = value
		return nil
	}

	for _, name := range names {
		leaves := c.Fields[name]
		normalized := normalizeKey(name)

		if opt, ok := options[strings.ToUpper(normalized)]; ok {
			if len(leaves) == 0 {
				continue
			}

			if len(leaves) != 1 || len(leaves[0].Path) != 1 {
				return nil, eris.Wrapf(ErrConfigParse, "build option %s must be a single value", name)
			}

			value := leaves[0].Value
			if leaves[0].IsBool {
				// build options are passed to CMake
				if value == "true" {
					value = "ON"
				} else {
					value = "OFF"
				}
			}

			if err := add(opt.Alias, value, name); err != nil {
				return nil, err
			}
			setOptions[strings.ToUpper(normalized)] = true
			continue
		}

		if normalized != stage.Section() {
			log(ctx).Debug().Msgf("Ignoring field %s", name)
			continue
		}

		for _, leaf := range leaves {
			if err := add(EnvKey(c.Project, leaf.Path), leaf.Value, strings.Join(leaf.Path, ".")); err != nil {
				return nil, err
			}
		}
	}

	for name, opt := range options {
		if opt.Required && !setOptions[name] && opt.Default != "" {
			if err := add(opt.Alias, opt.Default, name); err != nil {
				return nil, err
			}
		}
	}

	result := make([]EnvVar, 0, len(values))
	for key, value := range values {
		result = append(result, EnvVar{Key: key, Value: value})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result, nil
}

// ParseSdistConfig parses raw and returns the env var assignments for the sdist build step.
func ParseSdistConfig(ctx context.Context, raw string, env config.Environment) ([]EnvVar, error) {
	return parseStageConfig(ctx, BuildSdist, raw, env)
}

// ParseWheelConfig parses raw and returns the env var assignments for the wheel build step.
func ParseWheelConfig(ctx context.Context, raw string, env config.Environment) ([]EnvVar, error) {
	return parseStageConfig(ctx, BuildWheel, raw, env)
}

func parseStageConfig(ctx context.Context, stage BuildStage, raw string, env config.Environment) ([]EnvVar, error) {
	cfg, err := ParseBuildConfig(ctx, raw)
	if err != nil {
		return nil, err
	}

	return cfg.EnvVars(ctx, stage, env)
}

// FormatEnv renders the assignments one per line (or joined by sep) with a trailing newline.
func FormatEnv(vars []EnvVar, sep string) string {
	if len(vars) == 0 {
		return ""
	}

	lines := make([]string, len(vars))
	for idx, item := range vars {
		lines[idx] = item.String()
	}

	return strings.Join(lines, sep) + "\n"
}

// ParseEnvLines reads KEY=value lines as written by FormatEnv. Blank lines and lines starting
// with # are skipped.
func ParseEnvLines(r io.Reader) ([]EnvVar, error) {
	result := make([]EnvVar, 0)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		pos := strings.Index(line, "=")
		key := ""
		if pos > 0 {
			key = strings.TrimSpace(line[:pos])
		}
		if key == "" {
			return nil, eris.Wrapf(ErrConfigParse, "line %d is not a KEY=value pair", lineNo)
		}

		// values are kept verbatim
		result = append(result, EnvVar{Key: key, Value: line[pos+1:]})
	}

	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "failed to read env lines")
	}

	return result, nil
}
