package release

import "github.com/rotisserie/eris"

var (
	// ErrMissingRequiredInput is returned if an input the workflow type requires is absent.
	ErrMissingRequiredInput = eris.New("missing required input")

	// ErrInvalidFormat is returned if an input doesn't match its expected pattern.
	ErrInvalidFormat = eris.New("invalid input format")

	// ErrNotRepository is returned if the tagger doesn't run inside a git work tree.
	ErrNotRepository = eris.New("not a git repository")

	// ErrTagExists is returned if the release tag has already been created.
	ErrTagExists = eris.New("tag already exists")

	// ErrCommandFailed wraps failures of external commands.
	ErrCommandFailed = eris.New("command failed")
)
