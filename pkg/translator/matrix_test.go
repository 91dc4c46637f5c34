package translator

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchbaselabs/cbci-tools/pkg/config"
)

type pair struct {
	Platform string
	Version  string
}

func pairs(rows []MatrixRow) []pair {
	result := make([]pair, len(rows))
	for idx, row := range rows {
		result[idx] = pair{Platform: row.Platform, Version: row.PythonVersion}
	}
	return result
}

func TestStageMatricesWithExclusion(t *testing.T) {
	raw := `{"project_prefix":"PYCBC","stages":{"wheels":{
		"platforms":["linux-x86_64","macos-x86_64"],
		"python_versions":["3.9","3.10"],
		"exclusions":[["macos-x86_64","3.9"]]}}}`

	matrices, err := GetStageMatrices(context.Background(), raw, config.Environment{})
	require.NoError(t, err)
	require.Len(t, matrices, 1)

	assert.Equal(t, []pair{
		{"linux-x86_64", "3.9"},
		{"linux-x86_64", "3.10"},
		{"macos-x86_64", "3.10"},
	}, pairs(matrices["wheels"]))
}

func TestStageMatricesMultipleStages(t *testing.T) {
	raw := `{"project_prefix":"PYCBCC","stages":{
		"tests":{"platforms":["linux-x86_64"],"python_versions":["3.12"]},
		"wheels":{"platforms":["windows-x86_64","linux-arm64"],"python_versions":["3.11","3.12"]}}}`

	matrices, err := GetStageMatrices(context.Background(), raw, config.Environment{})
	require.NoError(t, err)

	assert.Equal(t, []pair{{"linux-x86_64", "3.12"}}, pairs(matrices["tests"]))
	assert.Equal(t, []pair{
		{"windows-x86_64", "3.11"},
		{"windows-x86_64", "3.12"},
		{"linux-arm64", "3.11"},
		{"linux-arm64", "3.12"},
	}, pairs(matrices["wheels"]))
}

func TestStageMatricesEmpty(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		target error
	}{
		{
			"all excluded",
			`{"project_prefix":"PYCBC","stages":{"wheels":{"platforms":["linux-x86_64"],"python_versions":["3.9"],"exclusions":[["linux-x86_64","3.9"]]}}}`,
			ErrEmptyMatrix,
		},
		{
			"no platforms",
			`{"project_prefix":"PYCBC","stages":{"wheels":{"python_versions":["3.9"]}}}`,
			ErrEmptyMatrix,
		},
		{
			"no stages",
			`{"project_prefix":"PYCBC","stages":{}}`,
			ErrConfigParse,
		},
		{
			"bad prefix",
			`{"project_prefix":"JCBC","stages":{"wheels":{"platforms":["linux-x86_64"],"python_versions":["3.9"]}}}`,
			ErrUnknownProjectPrefix,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matrices, err := GetStageMatrices(context.Background(), tt.raw, config.Environment{})
			assert.Nil(t, matrices)
			assert.True(t, eris.Is(err, tt.target), "unexpected error: %v", err)
		})
	}
}

func TestStageMatricesRowAttributes(t *testing.T) {
	env := config.Environment{
		DefaultLinuxPlatform:      "ubuntu-22.04",
		DefaultMacosX8664Platform: "macos-13",
		DefaultMacosArm64Platform: "macos-14",
		DefaultWindowsPlatform:    "windows-2022",
		DefaultLinuxContainer:     "quay.io/pypa/manylinux2014",
		DefaultAlpineContainer:    "quay.io/pypa/musllinux_1_1",
	}
	raw := `{"project_prefix":"PYCBC","stages":{"wheels":{
		"platforms":["linux-x86_64","linux-arm64","alpine-x86_64","macos-x86_64","macos-arm64","windows-x86_64","windows-arm64"],
		"python_versions":["3.11"],
		"containers":{"linux-arm64":"custom/manylinux_aarch64"}}}}`

	matrices, err := GetStageMatrices(context.Background(), raw, env)
	require.NoError(t, err)

	assert.Equal(t, []MatrixRow{
		{Platform: "linux-x86_64", PythonVersion: "3.11", OS: "ubuntu-22.04", Arch: "x86_64", LinuxType: "manylinux", Container: "quay.io/pypa/manylinux2014"},
		{Platform: "linux-arm64", PythonVersion: "3.11", OS: "ubuntu-22.04", Arch: "aarch64", LinuxType: "manylinux", Container: "custom/manylinux_aarch64"},
		{Platform: "alpine-x86_64", PythonVersion: "3.11", OS: "ubuntu-22.04", Arch: "x86_64", LinuxType: "musllinux", Container: "quay.io/pypa/musllinux_1_1"},
		{Platform: "macos-x86_64", PythonVersion: "3.11", OS: "macos-13", Arch: "x86_64"},
		{Platform: "macos-arm64", PythonVersion: "3.11", OS: "macos-14", Arch: "arm64"},
		{Platform: "windows-x86_64", PythonVersion: "3.11", OS: "windows-2022", Arch: "AMD64"},
		{Platform: "windows-arm64", PythonVersion: "3.11", OS: "windows-2022", Arch: "ARM64"},
	}, matrices["wheels"])
}

func TestStageMatricesFiltersUnsupported(t *testing.T) {
	env := config.Environment{
		SupportedPythonVersions: "3.9 3.10, 3.11",
		SupportedX8664Platforms: "linux macos",
		SupportedArm64Platforms: "macos",
	}
	raw := `{"project_prefix":"PYCBC","stages":{"wheels":{
		"platforms":["linux-x86_64","linux-arm64","windows-x86_64","macos-arm64"],
		"python_versions":["3.8","3.9","3.10.4"]}}}`

	matrices, err := GetStageMatrices(context.Background(), raw, env)
	require.NoError(t, err)

	assert.Equal(t, []pair{
		{"linux-x86_64", "3.9"},
		{"linux-x86_64", "3.10.4"},
		{"macos-arm64", "3.9"},
		{"macos-arm64", "3.10.4"},
	}, pairs(matrices["wheels"]))
}

func TestStageMatricesLegacyLayout(t *testing.T) {
	env := config.Environment{
		SupportedPythonVersions: "3.9 3.10 3.11",
		SupportedX8664Platforms: "linux alpine macos windows",
		SupportedArm64Platforms: "linux macos",
	}

	matrices, err := GetStageMatrices(context.Background(),
		`{"project_prefix":"PYCBC","python_versions":"3.10 3.7","platforms":"linux, macos","arches":["x86_64"]}`, env)
	require.NoError(t, err)
	require.Len(t, matrices, 2)

	expected := []pair{{"linux-x86_64", "3.10"}, {"macos-x86_64", "3.10"}}
	assert.Equal(t, expected, pairs(matrices[StageBuildWheels]))
	assert.Equal(t, expected, pairs(matrices[StageValidateWheels]))
}

func TestStageMatricesLegacyDefaults(t *testing.T) {
	env := config.Environment{
		SupportedPythonVersions: "3.11 3.12",
		SupportedX8664Platforms: "linux windows",
		SupportedArm64Platforms: "macos",
	}

	matrices, err := GetStageMatrices(context.Background(), `{"project_prefix":"PYCBCC"}`, env)
	require.NoError(t, err)

	assert.Equal(t, []pair{
		{"linux-x86_64", "3.11"},
		{"linux-x86_64", "3.12"},
		{"windows-x86_64", "3.11"},
		{"windows-x86_64", "3.12"},
		{"macos-arm64", "3.11"},
		{"macos-arm64", "3.12"},
	}, pairs(matrices[StageBuildWheels]))
}

func TestStageMatricesLegacyAlpineOnlyOnX8664(t *testing.T) {
	env := config.Environment{
		SupportedPythonVersions: "3.11",
		SupportedX8664Platforms: "linux alpine",
		SupportedArm64Platforms: "linux alpine",
	}
	expected := []pair{{"linux-x86_64", "3.11"}, {"alpine-x86_64", "3.11"}, {"linux-arm64", "3.11"}}

	matrices, err := GetStageMatrices(context.Background(), `{"project_prefix":"PYCBC"}`, env)
	require.NoError(t, err)
	assert.Equal(t, expected, pairs(matrices[StageBuildWheels]))

	matrices, err = GetStageMatrices(context.Background(), `{"project_prefix":"PYCBC","platforms":["linux","alpine"]}`, env)
	require.NoError(t, err)
	assert.Equal(t, expected, pairs(matrices[StageBuildWheels]))
}

func TestStageMatricesLegacyWithoutEnvironment(t *testing.T) {
	matrices, err := GetStageMatrices(context.Background(), `{"project_prefix":"PYCBC"}`, config.Environment{})
	assert.Nil(t, matrices)
	assert.True(t, eris.Is(err, ErrEmptyMatrix), "unexpected error: %v", err)
}

// Every row must come from the declared platforms and versions, never be excluded and appear once.
func TestStageMatricesRandomized(t *testing.T) {
	platforms := []string{"linux-x86_64", "linux-aarch64", "alpine-x86_64", "macos-x86_64", "macos-arm64", "windows-x86_64"}
	versions := []string{"3.8", "3.9", "3.10", "3.11", "3.12", "3.13"}
	rng := rand.New(rand.NewSource(42))

	pick := func(items []string) []string {
		result := []string{}
		for _, idx := range rng.Perm(len(items))[:1+rng.Intn(len(items))] {
			result = append(result, items[idx])
		}
		return result
	}

	for i := 0; i < 200; i++ {
		stagePlatforms := pick(platforms)
		stageVersions := pick(versions)
		excluded := make(map[pair]bool)
		exclusions := []string{}
		for _, platform := range stagePlatforms {
			for _, version := range stageVersions {
				if rng.Intn(4) == 0 {
					excluded[pair{platform, version}] = true
					exclusions = append(exclusions, fmt.Sprintf(`["%s","%s"]`, platform, version))
				}
			}
		}

		raw := fmt.Sprintf(`{"project_prefix":"PYCBC","stages":{"s":{"platforms":["%s"],"python_versions":["%s"],"exclusions":[%s]}}}`,
			strings.Join(stagePlatforms, `","`), strings.Join(stageVersions, `","`), strings.Join(exclusions, ","))

		matrices, err := GetStageMatrices(context.Background(), raw, config.Environment{})
		expectedRows := len(stagePlatforms)*len(stageVersions) - len(excluded)
		if expectedRows == 0 {
			assert.True(t, eris.Is(err, ErrEmptyMatrix))
			continue
		}
		require.NoError(t, err, raw)

		rows := pairs(matrices["s"])
		assert.Len(t, rows, expectedRows)

		seen := make(map[pair]bool)
		for _, row := range rows {
			assert.Contains(t, stagePlatforms, row.Platform)
			assert.Contains(t, stageVersions, row.Version)
			assert.False(t, excluded[row], "excluded pair %v in matrix", row)
			assert.False(t, seen[row], "duplicate pair %v", row)
			seen[row] = true
		}
	}
}
