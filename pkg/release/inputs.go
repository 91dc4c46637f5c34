package release

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

// WorkflowType is the kind of workflow the inputs belong to.
type WorkflowType int

const (
	BuildWheels WorkflowType = iota
	Tests
)

// ParseWorkflowType accepts build_wheels and tests (plus their dashed and short spellings).
func ParseWorkflowType(raw string) (WorkflowType, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_") {
	case "build_wheels", "wheels":
		return BuildWheels, nil
	case "tests", "test":
		return Tests, nil
	}

	return 0, eris.Wrapf(ErrInvalidFormat, "unknown workflow type %q", raw)
}

func (w WorkflowType) String() string {
	switch w {
	case BuildWheels:
		return "build_wheels"
	case Tests:
		return "tests"
	}

	return fmt.Sprintf("WorkflowType(%d)", int(w))
}

var (
	shaPattern     = regexp.MustCompile(`^[0-9a-f]{40}$`)
	versionPattern = regexp.MustCompile(`^(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)(-[a-zA-Z]+\.?[0-9]+)?$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}

	must(v.RegisterValidation("commit_sha", func(fl validator.FieldLevel) bool {
		return shaPattern.MatchString(fl.Field().String())
	}))
	must(v.RegisterValidation("release_version", func(fl validator.FieldLevel) bool {
		return versionPattern.MatchString(fl.Field().String())
	}))

	return v
}

// Inputs are the values a workflow run was dispatched with.
type Inputs struct {
	SHA       string `validate:"omitempty,commit_sha"`
	Version   string `validate:"omitempty,release_version"`
	IsRelease bool
}

var formatHints = map[string]string{
	"commit_sha":      "a 40 character lowercase hex commit hash",
	"release_version": "a version like 1.2.3 or 1.2.3-beta2",
}

// ValidateInputs checks that the inputs required by the workflow type are present and that every
// present input is well-formed. Tests need a SHA; wheel builds need a SHA and, for releases, a
// version.
func ValidateInputs(workflow WorkflowType, in Inputs) error {
	switch workflow {
	case Tests:
		if in.SHA == "" {
			return eris.Wrapf(ErrMissingRequiredInput, "%s requires a commit SHA", workflow)
		}
	case BuildWheels:
		if in.SHA == "" {
			return eris.Wrapf(ErrMissingRequiredInput, "%s requires a commit SHA", workflow)
		}
		if in.IsRelease && in.Version == "" {
			return eris.Wrapf(ErrMissingRequiredInput, "%s release requires a version", workflow)
		}
	default:
		return eris.Errorf("unhandled workflow type %s", workflow)
	}

	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	if fieldErrors, ok := err.(validator.ValidationErrors); ok && len(fieldErrors) > 0 {
		fe := fieldErrors[0]
		return eris.Wrapf(ErrInvalidFormat, "%s %q is not %s", fe.Field(), fe.Value(), formatHints[fe.Tag()])
	}

	return eris.Wrap(err, "failed to validate inputs")
}

// ValidateSHA checks that sha is a full, lowercase commit hash.
func ValidateSHA(sha string) error {
	if sha == "" {
		return eris.Wrap(ErrMissingRequiredInput, "commit SHA is empty")
	}

	if !shaPattern.MatchString(sha) {
		return eris.Wrapf(ErrInvalidFormat, "SHA %q is not %s", sha, formatHints["commit_sha"])
	}
	return nil
}

// ParseVersion validates a release version and returns it parsed.
func ParseVersion(version string) (*semver.Version, error) {
	if version == "" {
		return nil, eris.Wrap(ErrMissingRequiredInput, "version is empty")
	}

	if !versionPattern.MatchString(version) {
		return nil, eris.Wrapf(ErrInvalidFormat, "version %q is not %s", version, formatHints["release_version"])
	}

	parsed, err := semver.StrictNewVersion(version)
	if err != nil {
		return nil, eris.Wrapf(ErrInvalidFormat, "version %q: %s", version, err.Error())
	}

	return parsed, nil
}
