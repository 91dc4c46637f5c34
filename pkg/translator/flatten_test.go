package translator

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchbaselabs/cbci-tools/pkg/config"
)

func keys(vars []EnvVar) []string {
	result := make([]string, len(vars))
	for idx, item := range vars {
		result[idx] = item.Key
	}
	return result
}

func TestParseSdistConfigIncludeFlag(t *testing.T) {
	vars, err := ParseSdistConfig(context.Background(), `{"project_prefix":"PYCBC","sdist":{"include":true}}`, config.Environment{})
	require.NoError(t, err)

	assert.Equal(t, []EnvVar{
		{Key: "PYCBC_SDIST_INCLUDE", Value: "true"},
		{Key: "PYCBC_SET_CPM_CACHE", Value: "ON"},
		{Key: "PYCBC_USE_OPENSSL", Value: "OFF"},
	}, vars)
	assert.Equal(t, "PYCBC_SDIST_INCLUDE=true\nPYCBC_SET_CPM_CACHE=ON\nPYCBC_USE_OPENSSL=OFF\n", FormatEnv(vars, "\n"))
}

func TestEnvVarsIsDeterministic(t *testing.T) {
	first := `{"project_prefix":"PYCBC","sdist":{"b":"2","a":"1","c":{"z":1,"y":[3,2]}},"USE_OPENSSL":true}`
	second := `{"USE_OPENSSL":true,"sdist":{"c":{"y":[3,2],"z":1},"a":"1","b":"2"},"project_prefix":"PYCBC"}`

	expected, err := ParseSdistConfig(context.Background(), first, config.Environment{})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		vars, err := ParseSdistConfig(context.Background(), first, config.Environment{})
		require.NoError(t, err)
		assert.Equal(t, expected, vars)

		vars, err = ParseSdistConfig(context.Background(), second, config.Environment{})
		require.NoError(t, err)
		assert.Equal(t, expected, vars)
	}

	assert.Equal(t, []string{
		"PYCBC_SDIST_A",
		"PYCBC_SDIST_B",
		"PYCBC_SDIST_C_Y_0",
		"PYCBC_SDIST_C_Y_1",
		"PYCBC_SDIST_C_Z",
		"PYCBC_SET_CPM_CACHE",
		"PYCBC_USE_OPENSSL",
	}, keys(expected))
}

func TestEnvVarsRoundTrip(t *testing.T) {
	raw := `{
		"project_prefix": "PYCBCC",
		"wheel": {
			"cmake-args": ["-DFOO=bar baz", "-DX=1"],
			"include": false,
			"env": {"CFLAGS": "-O2 -g", "path": "C:\\tools\\bin"},
			"empty": ""
		}
	}`

	ctx := context.Background()
	cfg, err := ParseBuildConfig(ctx, raw)
	require.NoError(t, err)

	vars, err := cfg.EnvVars(ctx, BuildWheel, config.Environment{})
	require.NoError(t, err)

	parsed, err := ParseEnvLines(strings.NewReader(FormatEnv(vars, "\n")))
	require.NoError(t, err)
	assert.Equal(t, vars, parsed)

	byKey := make(map[string]string, len(parsed))
	for _, item := range parsed {
		byKey[item.Key] = item.Value
	}

	leaves := cfg.Fields["wheel"]
	require.Len(t, leaves, 6)
	for _, leaf := range leaves {
		value, ok := byKey[EnvKey(cfg.Project, leaf.Path)]
		if assert.True(t, ok, "missing %v", leaf.Path) {
			assert.Equal(t, leaf.Value, value)
		}
	}

	assert.Equal(t, "-DFOO=bar baz", byKey["PYCBCC_WHEEL_CMAKE_ARGS_0"])
	assert.Equal(t, "false", byKey["PYCBCC_WHEEL_INCLUDE"])
	assert.Equal(t, `C:\tools\bin`, byKey["PYCBCC_WHEEL_ENV_PATH"])
	assert.Equal(t, "", byKey["PYCBCC_WHEEL_EMPTY"])
}

func TestEnvVarsBuildOptions(t *testing.T) {
	raw := `{
		"project_prefix": "columnar",
		"USE_OPENSSL": true,
		"use_limited_api": "cp38",
		"OPENSSL_VERSION": "3.0.1",
		"wheel": {"skipped": "for sdist"}
	}`

	vars, err := ParseSdistConfig(context.Background(), raw, config.Environment{})
	require.NoError(t, err)

	assert.Equal(t, []EnvVar{
		{Key: "PYCBCC_LIMITED_API", Value: "cp38"},
		{Key: "PYCBCC_OPENSSL_VERSION", Value: "3.0.1"},
		{Key: "PYCBCC_SET_CPM_CACHE", Value: "ON"},
		{Key: "PYCBCC_USE_OPENSSL", Value: "ON"},
	}, vars)
}

func TestEnvVarsWheelDefaults(t *testing.T) {
	raw := `{"project_prefix": "PYCBC", "sdist": {"include": true}}`

	vars, err := ParseWheelConfig(context.Background(), raw, config.Environment{})
	require.NoError(t, err)
	assert.Equal(t, []EnvVar{
		{Key: "PYCBC_BUILD_TYPE", Value: "RelWithDebInfo"},
		{Key: "PYCBC_USE_OPENSSL", Value: "OFF"},
	}, vars)

	env := config.Environment{PreferCcache: "/tmp/ccache", PreferVerboseMakefile: "1"}
	vars, err = ParseWheelConfig(context.Background(), raw, env)
	require.NoError(t, err)
	assert.Equal(t, []EnvVar{
		{Key: "CCACHE_DIR", Value: "/tmp/ccache"},
		{Key: "PYCBC_BUILD_TYPE", Value: "RelWithDebInfo"},
		{Key: "PYCBC_CB_CACHE_OPTION", Value: "ccache"},
		{Key: "PYCBC_USE_OPENSSL", Value: "OFF"},
		{Key: "PYCBC_VERBOSE_MAKEFILE", Value: "ON"},
	}, vars)
}

func TestEnvVarsConfigOverridesDefaults(t *testing.T) {
	raw := `{"project_prefix": "PYCBC", "BUILD_TYPE": "Debug", "USE_OPENSSL": "ON"}`

	vars, err := ParseWheelConfig(context.Background(), raw, config.Environment{})
	require.NoError(t, err)
	assert.Equal(t, []EnvVar{
		{Key: "PYCBC_BUILD_TYPE", Value: "Debug"},
		{Key: "PYCBC_USE_OPENSSL", Value: "ON"},
	}, vars)
}

func TestEnvVarsErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"multiline value", `{"project_prefix": "PYCBC", "sdist": {"script": "a\nb"}}`},
		{"structured build option", `{"project_prefix": "PYCBC", "USE_OPENSSL": {"enabled": true}}`},
		{"colliding keys", `{"project_prefix": "PYCBC", "sdist": {"a-b": "1", "a_b": "2"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars, err := ParseSdistConfig(context.Background(), tt.raw, config.Environment{})
			assert.Nil(t, vars)
			assert.True(t, eris.Is(err, ErrConfigParse), "unexpected error: %v", err)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "PYCBC_SDIST_INCLUDE", EnvKey(Operational, []string{"sdist", "include"}))
	assert.Equal(t, "PYCBCC_WHEEL_CMAKE_ARGS_0", EnvKey(Columnar, []string{"wheel", "cmake-args", "0"}))
	assert.Equal(t, "PYCBC_A_B_C", EnvKey(Operational, []string{"a.b", "c"}))
}

func TestFormatEnv(t *testing.T) {
	vars := []EnvVar{{Key: "A", Value: "1"}, {Key: "B", Value: "two words"}}

	assert.Equal(t, "A=1\nB=two words\n", FormatEnv(vars, "\n"))
	assert.Equal(t, "A=1 B=two words\n", FormatEnv(vars, " "))
	assert.Equal(t, "", FormatEnv(nil, "\n"))
}

func TestParseEnvLines(t *testing.T) {
	input := "# generated\n\nA=1\r\nB= padded \nC=x=y\n"
	vars, err := ParseEnvLines(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []EnvVar{
		{Key: "A", Value: "1"},
		{Key: "B", Value: " padded "},
		{Key: "C", Value: "x=y"},
	}, vars)

	_, err = ParseEnvLines(strings.NewReader("=value\n"))
	assert.True(t, eris.Is(err, ErrConfigParse))

	_, err = ParseEnvLines(strings.NewReader("novalue\n"))
	assert.True(t, eris.Is(err, ErrConfigParse))
}
