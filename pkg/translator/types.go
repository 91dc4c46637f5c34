package translator

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// ProjectPrefix identifies which of the two client libraries is being built. Each project has its
// own version file and environment variable namespace.
type ProjectPrefix int

const (
	Operational ProjectPrefix = iota
	Columnar
)

// ParseProjectPrefix accepts either the env namespace (PYCBC, PYCBCC) or the project name
// (operational, columnar) in any case.
func ParseProjectPrefix(raw string) (ProjectPrefix, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PYCBC", "OPERATIONAL":
		return Operational, nil
	case "PYCBCC", "COLUMNAR":
		return Columnar, nil
	}

	return 0, eris.Wrapf(ErrUnknownProjectPrefix, "%q is not one of PYCBC, PYCBCC", raw)
}

// EnvPrefix returns the namespace used for the project's environment variables.
func (p ProjectPrefix) EnvPrefix() string {
	switch p {
	case Operational:
		return "PYCBC"
	case Columnar:
		return "PYCBCC"
	}

	panic(fmt.Sprintf("unhandled project prefix %d", int(p)))
}

// DistName returns the name of the Python distribution (and sdist archive) for the project.
func (p ProjectPrefix) DistName() string {
	switch p {
	case Operational:
		return "couchbase"
	case Columnar:
		return "couchbase-columnar"
	}

	panic(fmt.Sprintf("unhandled project prefix %d", int(p)))
}

// VersionFile returns the path of the file defining the project's version, relative to the
// project root.
func (p ProjectPrefix) VersionFile() string {
	switch p {
	case Operational:
		return "couchbase/_version.py"
	case Columnar:
		return "couchbase_columnar/_version.py"
	}

	panic(fmt.Sprintf("unhandled project prefix %d", int(p)))
}

func (p ProjectPrefix) String() string {
	switch p {
	case Operational:
		return "operational"
	case Columnar:
		return "columnar"
	}

	return fmt.Sprintf("ProjectPrefix(%d)", int(p))
}

// BuildStage selects the set of build options (and their defaults) a configuration is flattened for.
type BuildStage int

const (
	BuildSdist BuildStage = iota
	BuildWheel
)

// Section returns the name of the top-level config section holding stage specific settings.
func (s BuildStage) Section() string {
	switch s {
	case BuildSdist:
		return "sdist"
	case BuildWheel:
		return "wheel"
	}

	panic(fmt.Sprintf("unhandled build stage %d", int(s)))
}

func (s BuildStage) String() string {
	return s.Section()
}

// Leaf is a single scalar from the configuration together with the path leading to it.
type Leaf struct {
	Path   []string
	Value  string
	IsBool bool
}

// Exclusion removes a single (platform, version) pair from a stage's matrix.
type Exclusion struct {
	Platform      string
	PythonVersion string
}

// Stage is one named phase of the packaging workflow that's fanned out across platforms and
// Python versions.
type Stage struct {
	Name           string
	Platforms      []string
	PythonVersions []string
	Exclusions     []Exclusion
	// Containers overrides the container image per platform identifier.
	Containers map[string]string
}

// BuildConfig is the parsed build configuration. It's never modified after ParseBuildConfig returns.
type BuildConfig struct {
	Project ProjectPrefix
	// Stages are sorted by name. They're nil if the config uses the legacy top-level layout.
	Stages []Stage
	// Fields holds the leaves of every remaining top-level field keyed by the field name as written.
	Fields map[string][]Leaf

	// Legacy top-level matrix keys
	PythonVersions []string
	Platforms      []string
	Arches         []string
}

// IncludeSdist reports whether the sdist.include flag is set. It defaults to true.
func (c *BuildConfig) IncludeSdist() bool {
	for name, leaves := range c.Fields {
		if normalizeKey(name) != "sdist" {
			continue
		}

		include, err := sdistInclude(leaves)
		return err != nil || include
	}

	return true
}

// MatrixRow is a single CI job: one platform and Python version plus whatever the CI platform needs
// to run it.
type MatrixRow struct {
	Platform      string `json:"platform"`
	PythonVersion string `json:"python_version"`
	// OS is the runner label for the job.
	OS        string `json:"os,omitempty"`
	Arch      string `json:"arch"`
	LinuxType string `json:"linux_type,omitempty"`
	Container string `json:"container,omitempty"`
}

// Matrices maps stage names to their rows.
type Matrices map[string][]MatrixRow

// EnvVar is a single KEY=value assignment.
type EnvVar struct {
	Key   string
	Value string
}

func (v EnvVar) String() string {
	return v.Key + "=" + v.Value
}
