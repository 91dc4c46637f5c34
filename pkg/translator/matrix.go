package translator

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/couchbaselabs/cbci-tools/pkg/config"
)

// stage names synthesized for configs without a stages section
const (
	StageBuildWheels    = "build_wheels"
	StageValidateWheels = "validate_wheels"
)

// StageMatrices expands every stage into its matrix rows. Rows are ordered by platform first and
// Python version second, both in declaration order. Excluded pairs are skipped and if the
// environment lists the supported versions or platforms, anything else is dropped.
func (c *BuildConfig) StageMatrices(ctx context.Context, env config.Environment) (Matrices, error) {
	stages := c.Stages
	if stages == nil {
		var err error
		stages, err = c.legacyStages(ctx, env)
		if err != nil {
			return nil, err
		}
	}

	if len(stages) == 0 {
		return nil, eris.Wrap(ErrConfigParse, "config declares no stages")
	}

	result := make(Matrices, len(stages))
	for _, stage := range stages {
		rows, err := expandStage(ctx, stage, env)
		if err != nil {
			return nil, err
		}

		result[stage.Name] = rows
	}

	return result, nil
}

// GetStageMatrices parses raw and expands every declared stage.
func GetStageMatrices(ctx context.Context, raw string, env config.Environment) (Matrices, error) {
	cfg, err := ParseBuildConfig(ctx, raw)
	if err != nil {
		return nil, err
	}

	return cfg.StageMatrices(ctx, env)
}

func filterSupported(ctx context.Context, stage Stage, env config.Environment) Stage {
	if supported := env.PythonVersions(); len(supported) > 0 {
		versions := make([]string, 0, len(stage.PythonVersions))
		for _, version := range stage.PythonVersions {
			if !isSupportedPythonVersion(version, supported) {
				log(ctx).Warn().Str("stage", stage.Name).Msgf("Unsupported Python version: %s. Ignoring.", version)
				continue
			}
			versions = append(versions, version)
		}
		stage.PythonVersions = versions
	}

	if env.HasPlatformLists() {
		platforms := make([]string, 0, len(stage.Platforms))
		for _, id := range stage.Platforms {
			// already validated while parsing
			platform, _ := ParsePlatform(id)
			if !contains(env.Platforms(platform.Arch), platform.OS) {
				log(ctx).Warn().Str("stage", stage.Name).Msgf("Unsupported platform: %s. Ignoring.", id)
				continue
			}
			platforms = append(platforms, id)
		}
		stage.Platforms = platforms
	}

	return stage
}

func expandStage(ctx context.Context, stage Stage, env config.Environment) ([]MatrixRow, error) {
	stage = filterSupported(ctx, stage, env)

	excluded := make(map[Exclusion]bool, len(stage.Exclusions))
	for _, item := range stage.Exclusions {
		if !contains(stage.Platforms, item.Platform) || !contains(stage.PythonVersions, item.PythonVersion) {
			log(ctx).Warn().
				Str("stage", stage.Name).
				Msgf("Exclusion [%s, %s] doesn't match any declared pair", item.Platform, item.PythonVersion)
		}
		excluded[item] = true
	}

	rows := make([]MatrixRow, 0, len(stage.Platforms)*len(stage.PythonVersions))
	for _, id := range stage.Platforms {
		platform, err := ParsePlatform(id)
		if err != nil {
			return nil, err
		}

		for _, version := range stage.PythonVersions {
			if excluded[Exclusion{Platform: id, PythonVersion: version}] {
				continue
			}

			rows = append(rows, newMatrixRow(platform, version, stage.Containers[id], env))
		}
	}

	if len(rows) == 0 {
		return nil, eris.Wrapf(ErrEmptyMatrix, "stage %s produces no jobs", stage.Name)
	}

	return rows, nil
}

func newMatrixRow(platform Platform, version, container string, env config.Environment) MatrixRow {
	row := MatrixRow{
		Platform:      platform.ID,
		PythonVersion: version,
		Arch:          platform.Arch,
	}

	switch platform.OS {
	case "linux", "alpine":
		row.OS = env.DefaultLinuxPlatform
		row.Arch = "x86_64"
		if platform.IsARM() {
			row.Arch = "aarch64"
		}

		row.LinuxType = "manylinux"
		if container == "" {
			container = env.DefaultLinuxContainer
		}
		if platform.OS == "alpine" {
			row.LinuxType = "musllinux"
			if container == "" || container == env.DefaultLinuxContainer {
				container = env.DefaultAlpineContainer
			}
		}
	case "macos":
		row.OS = env.DefaultMacosX8664Platform
		if platform.IsARM() {
			row.OS = env.DefaultMacosArm64Platform
			row.Arch = "arm64"
		}
	case "windows":
		row.OS = env.DefaultWindowsPlatform
		row.Arch = "AMD64"
		if platform.IsARM() {
			row.Arch = "ARM64"
		}
	}

	row.Container = container
	return row
}

// legacyStages synthesizes the build_wheels and validate_wheels stages from the top-level
// python_versions, platforms and arches fields. Platforms in this layout are OS names which are
// combined with every requested architecture that supports them. Missing values fall back to the
// supported lists from the environment.
func (c *BuildConfig) legacyStages(ctx context.Context, env config.Environment) ([]Stage, error) {
	supportedVersions := env.PythonVersions()
	versions := make([]string, 0, len(c.PythonVersions))
	for _, version := range c.PythonVersions {
		if checkPythonVersion(version) != nil ||
			(len(supportedVersions) > 0 && !isSupportedPythonVersion(version, supportedVersions)) {
			log(ctx).Warn().Msgf("Unsupported Python version: %s. Ignoring.", version)
			continue
		}
		versions = append(versions, version)
	}

	if len(versions) == 0 {
		versions = supportedVersions
	}

	arches := make([]string, 0, len(c.Arches))
	for _, arch := range c.Arches {
		arch = strings.ToLower(arch)
		if !isSupportedArch(arch) {
			log(ctx).Warn().Msgf("Unsupported architecture: %s. Ignoring.", arch)
			continue
		}
		if !contains(arches, arch) {
			arches = append(arches, arch)
		}
	}

	if len(arches) == 0 {
		arches = []string{"x86_64", "arm64"}
	}

	if contains(arches, "arm64") && contains(arches, "aarch64") {
		filtered := arches[:0]
		for _, arch := range arches {
			if arch != "aarch64" {
				filtered = append(filtered, arch)
			}
		}
		arches = filtered
	}

	platforms := make([]string, 0)
	for _, arch := range arches {
		supported := env.Platforms(arch)
		osNames := make([]string, 0, len(c.Platforms))
		for _, name := range c.Platforms {
			name = strings.ToLower(name)
			if !supportedOS[name] || (env.HasPlatformLists() && !contains(supported, name)) {
				log(ctx).Warn().Msgf("Unsupported %s platform: %s. Ignoring.", arch, name)
				continue
			}
			osNames = append(osNames, name)
		}

		if len(osNames) == 0 {
			osNames = supported
		}

		for _, name := range osNames {
			if name == "alpine" && arch != "x86_64" {
				log(ctx).Warn().Msgf("Unsupported %s platform: %s. Ignoring.", arch, name)
				continue
			}

			id := name + "-" + arch
			if _, err := ParsePlatform(id); err != nil {
				return nil, eris.Wrap(err, "invalid supported platform in environment")
			}
			if !contains(platforms, id) {
				platforms = append(platforms, id)
			}
		}
	}

	stages := make([]Stage, 0, 2)
	for _, name := range []string{StageBuildWheels, StageValidateWheels} {
		stages = append(stages, Stage{
			Name:           name,
			Platforms:      platforms,
			PythonVersions: versions,
		})
	}

	return stages, nil
}
