package release

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/couchbaselabs/cbci-tools/pkg/translator"
)

// ReleaseTagger creates the tag for a release.
type ReleaseTagger interface {
	Tag(ctx context.Context, version, sha string) error
}

// GitTagger creates annotated git tags named after the release version.
type GitTagger struct {
	// Dir is the repository the tag is created in.
	Dir string
	// Remote receives the tag if Push is set.
	Remote string
	Push   bool

	executor CommandExecutor
}

// NewGitTagger creates a GitTagger that runs the git binary.
func NewGitTagger(dir string) *GitTagger {
	return NewGitTaggerWithExecutor(dir, NewExecExecutor())
}

// NewGitTaggerWithExecutor creates a GitTagger with a custom executor.
func NewGitTaggerWithExecutor(dir string, executor CommandExecutor) *GitTagger {
	return &GitTagger{
		Dir:      dir,
		Remote:   "origin",
		executor: executor,
	}
}

func (t *GitTagger) git(ctx context.Context, args ...string) (string, error) {
	return t.executor.Output(ctx, t.Dir, "git", args...)
}

// Tag creates an annotated tag for version pointing at sha (or HEAD if sha is empty). It fails with
// ErrNotRepository outside of a work tree and with ErrTagExists if the tag is already present.
func (t *GitTagger) Tag(ctx context.Context, version, sha string) error {
	logger := translator.Logger(ctx)

	out, err := t.git(ctx, "rev-parse", "--is-inside-work-tree")
	if err != nil || strings.TrimSpace(out) != "true" {
		return eris.Wrapf(ErrNotRepository, "%s is not inside a git work tree", t.Dir)
	}

	ref := "refs/tags/" + version
	if _, err := t.git(ctx, "rev-parse", "-q", "--verify", ref); err == nil {
		return eris.Wrapf(ErrTagExists, "tag %s", version)
	}

	args := []string{"tag", "-a", version, "-m", "Release " + version}
	if sha != "" {
		args = append(args, sha)
	}

	if _, err := t.git(ctx, args...); err != nil {
		return eris.Wrapf(err, "failed to create tag %s", version)
	}
	logger.Info().Msgf("Created tag %s", version)

	if t.Push {
		if _, err := t.git(ctx, "push", t.Remote, ref); err != nil {
			return eris.Wrapf(err, "failed to push tag %s to %s", version, t.Remote)
		}
		logger.Info().Msgf("Pushed tag %s to %s", version, t.Remote)
	}

	return nil
}
