package release

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ParseWheelName returns the <name>-<version> part of a wheel filename after checking that the wheel
// belongs to project. Wheel names replace dashes in the project name with underscores, both
// spellings are accepted.
func ParseWheelName(wheel, project string) (string, error) {
	tokens := strings.Split(strings.TrimSuffix(filepath.Base(wheel), ".whl"), "-")
	if len(tokens) < 5 {
		return "", eris.Wrapf(ErrInvalidFormat, "expected at least 5 tokens in %s, found %d", wheel, len(tokens))
	}

	if tokens[0] != project && tokens[0] != strings.ReplaceAll(project, "-", "_") {
		return "", eris.Wrapf(ErrInvalidFormat, "expected the project name to be %s, found %s", project, tokens[0])
	}

	return tokens[0] + "-" + tokens[1], nil
}
