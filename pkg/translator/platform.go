package translator

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

var supportedOS = map[string]bool{
	"linux":   true,
	"alpine":  true,
	"macos":   true,
	"windows": true,
}

var supportedArches = []string{"x86_64", "arm64", "aarch64"}

var versionPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+){0,2}$`)

// Platform is a parsed platform identifier such as linux-x86_64.
type Platform struct {
	ID   string
	OS   string
	Arch string
}

// ParsePlatform splits a platform identifier into OS and architecture.
func ParsePlatform(id string) (Platform, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	pos := strings.Index(id, "-")
	if pos < 1 {
		return Platform{}, eris.Wrapf(ErrConfigParse, "platform %q is not of the form <os>-<arch>", id)
	}

	p := Platform{ID: id, OS: id[:pos], Arch: id[pos+1:]}
	if !supportedOS[p.OS] {
		return Platform{}, eris.Wrapf(ErrConfigParse, "platform %q has unsupported OS %s", id, p.OS)
	}

	if !isSupportedArch(p.Arch) {
		return Platform{}, eris.Wrapf(ErrConfigParse, "platform %q has unsupported architecture %s", id, p.Arch)
	}

	return p, nil
}

// IsARM reports whether the platform targets 64-bit ARM.
func (p Platform) IsARM() bool {
	return p.Arch == "arm64" || p.Arch == "aarch64"
}

func isSupportedArch(arch string) bool {
	for _, item := range supportedArches {
		if item == arch {
			return true
		}
	}
	return false
}

func checkPythonVersion(version string) error {
	if !versionPattern.MatchString(version) {
		return eris.Wrapf(ErrConfigParse, "%q is not a valid Python version", version)
	}
	return nil
}

// isSupportedPythonVersion matches version against the supported list on major.minor. A bare
// major version is accepted if any supported version shares it.
func isSupportedPythonVersion(version string, supported []string) bool {
	tokens := strings.Split(version, ".")
	switch len(tokens) {
	case 1:
		for _, item := range supported {
			if strings.HasPrefix(item, version+".") {
				return true
			}
		}
		return false
	case 2:
	case 3:
		version = strings.Join(tokens[:2], ".")
	default:
		return false
	}

	for _, item := range supported {
		if item == version {
			return true
		}
	}
	return false
}

func contains(list []string, item string) bool {
	for _, value := range list {
		if value == item {
			return true
		}
	}
	return false
}
