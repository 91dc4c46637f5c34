package translator

import "github.com/rotisserie/eris"

var (
	// ErrConfigParse is returned for malformed or incomplete configurations.
	ErrConfigParse = eris.New("invalid build config")

	// ErrUnknownProjectPrefix is returned if project_prefix names neither supported project.
	ErrUnknownProjectPrefix = eris.New("unknown project prefix")

	// ErrEmptyMatrix is returned if a declared stage doesn't produce a single job.
	ErrEmptyMatrix = eris.New("stage matrix is empty")
)
