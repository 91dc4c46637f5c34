package release

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSHA = "3f786850e387550fdab836ed7e6dc881de23001b"

func TestValidateInputs(t *testing.T) {
	tests := []struct {
		name     string
		workflow WorkflowType
		in       Inputs
		target   error
	}{
		{"tests with sha", Tests, Inputs{SHA: testSHA}, nil},
		{"tests without sha", Tests, Inputs{}, ErrMissingRequiredInput},
		{"short sha", Tests, Inputs{SHA: "abc123"}, ErrInvalidFormat},
		{"uppercase sha", Tests, Inputs{SHA: "3F786850E387550FDAB836ED7E6DC881DE23001B"}, ErrInvalidFormat},
		{"wheels without sha", BuildWheels, Inputs{Version: "1.2.3"}, ErrMissingRequiredInput},
		{"wheels snapshot", BuildWheels, Inputs{SHA: testSHA}, nil},
		{"release without version", BuildWheels, Inputs{SHA: testSHA, IsRelease: true}, ErrMissingRequiredInput},
		{"release", BuildWheels, Inputs{SHA: testSHA, Version: "1.2.3-beta2", IsRelease: true}, nil},
		{"release with short version", BuildWheels, Inputs{SHA: testSHA, Version: "1.2", IsRelease: true}, ErrInvalidFormat},
		{"snapshot with bad version", BuildWheels, Inputs{SHA: testSHA, Version: "v1.2.3"}, ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInputs(tt.workflow, tt.in)
			if tt.target == nil {
				assert.NoError(t, err)
				return
			}

			assert.True(t, eris.Is(err, tt.target), "unexpected error: %v", err)
		})
	}
}

func TestValidateSHA(t *testing.T) {
	assert.NoError(t, ValidateSHA(testSHA))
	assert.True(t, eris.Is(ValidateSHA("abc123"), ErrInvalidFormat))
	assert.True(t, eris.Is(ValidateSHA(""), ErrMissingRequiredInput))
}

func TestParseVersion(t *testing.T) {
	for _, version := range []string{"1.2.3", "0.0.1", "4.3.0-rc1", "1.2.3-beta2", "1.2.3-beta.2", "10.20.30-dev0"} {
		parsed, err := ParseVersion(version)
		if assert.NoError(t, err, version) {
			assert.Equal(t, version, parsed.Original())
		}
	}

	parsed, err := ParseVersion("1.2.3-beta2")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), parsed.Major())
	assert.Equal(t, uint64(2), parsed.Minor())
	assert.Equal(t, uint64(3), parsed.Patch())
	assert.Equal(t, "beta2", parsed.Prerelease())

	for _, version := range []string{"1.2", "1", "01.2.3", "1.2.3-beta", "1.2.3-2", "v1.2.3", "1.2.3+build"} {
		_, err := ParseVersion(version)
		assert.True(t, eris.Is(err, ErrInvalidFormat), version)
	}

	_, err = ParseVersion("")
	assert.True(t, eris.Is(err, ErrMissingRequiredInput))
}

func TestParseWorkflowType(t *testing.T) {
	for raw, expected := range map[string]WorkflowType{
		"build_wheels": BuildWheels,
		"build-wheels": BuildWheels,
		"Wheels":       BuildWheels,
		"tests":        Tests,
		"TEST":         Tests,
	} {
		workflow, err := ParseWorkflowType(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, expected, workflow, raw)
	}

	_, err := ParseWorkflowType("deploy")
	assert.True(t, eris.Is(err, ErrInvalidFormat))
}

func TestParseWheelName(t *testing.T) {
	name, err := ParseWheelName("dist/couchbase-4.3.0-cp311-cp311-manylinux_2_17_x86_64.whl", "couchbase")
	require.NoError(t, err)
	assert.Equal(t, "couchbase-4.3.0", name)

	name, err = ParseWheelName("couchbase_columnar-1.0.0b1-cp39-cp39-macosx_11_0_arm64.whl", "couchbase-columnar")
	require.NoError(t, err)
	assert.Equal(t, "couchbase_columnar-1.0.0b1", name)

	_, err = ParseWheelName("couchbase-4.3.0.whl", "couchbase")
	assert.True(t, eris.Is(err, ErrInvalidFormat))

	_, err = ParseWheelName("other-4.3.0-cp311-cp311-win_amd64.whl", "couchbase")
	assert.True(t, eris.Is(err, ErrInvalidFormat))
}
