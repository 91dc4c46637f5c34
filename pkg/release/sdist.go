package release

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/couchbaselabs/cbci-tools/pkg/translator"
)

// SdistRequest describes a single source distribution build.
type SdistRequest struct {
	Root     string
	Project  translator.ProjectPrefix
	Version  string
	Env      []translator.EnvVar
	SkipDeps bool
}

// BuildSdist validates the request, checks that the project's version file exists and then lets
// builder install the dependencies and build the archive. It returns the archive path.
func BuildSdist(ctx context.Context, builder PackageBuilder, req SdistRequest) (string, error) {
	if _, err := ParseVersion(req.Version); err != nil {
		return "", err
	}

	if err := CheckVersionFile(req.Root, req.Project); err != nil {
		return "", err
	}

	logger := translator.Logger(ctx)
	if !req.SkipDeps {
		logger.Info().Msg("Installing build dependencies")
		if err := builder.InstallDependencies(ctx); err != nil {
			return "", eris.Wrap(err, "failed to install dependencies")
		}
	}

	logger.Info().Msgf("Building sdist for %s %s", req.Project.DistName(), req.Version)
	path, err := builder.BuildSdist(ctx, req.Project, req.Version, req.Env)
	if err != nil {
		return "", eris.Wrapf(err, "failed to build sdist for %s", req.Project.DistName())
	}

	return path, nil
}
