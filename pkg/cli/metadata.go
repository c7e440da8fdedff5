package cli

import (
	"context"
	"net/url"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/domain/urlkey"
	"github.com/secmon-lab/devlink/pkg/infra/gitlocal"
)

// RepositoryRef identifies a GitHub repository by its web URL and full name.
type RepositoryRef struct {
	URL      string
	FullName string
}

// ParseRepositoryRef accepts an "owner/name" full name or any URL form of a
// repository.
func ParseRepositoryRef(arg string) (*RepositoryRef, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, goerr.Wrap(types.ErrInvalidOption, "repository is empty")
	}

	if !strings.Contains(arg, "://") && !strings.Contains(arg, "@") {
		parts := strings.Split(strings.Trim(arg, "/"), "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, goerr.Wrap(types.ErrInvalidOption, "repository must be owner/name or a URL", goerr.V("repository", arg))
		}
		fullName := parts[0] + "/" + strings.TrimSuffix(parts[1], ".git")
		return &RepositoryRef{URL: "https://github.com/" + fullName, FullName: fullName}, nil
	}

	web := urlkey.WebURL(arg)
	u, err := url.Parse(web)
	if err != nil || u.Host == "" {
		return nil, goerr.Wrap(types.ErrInvalidOption, "unrecognized repository URL", goerr.V("repository", arg))
	}
	path := strings.TrimSuffix(strings.Trim(u.Path, "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return nil, goerr.Wrap(types.ErrInvalidOption, "repository URL has no owner/name", goerr.V("repository", arg))
	}
	fullName := strings.Join(parts[len(parts)-2:], "/")
	return &RepositoryRef{URL: strings.TrimSuffix(web, ".git"), FullName: fullName}, nil
}

// DetectRepository reads the origin of the working tree at dir.
func DetectRepository(ctx context.Context, dir string) (*RepositoryRef, error) {
	git := gitlocal.New()
	if !git.IsWorkTree(dir) {
		return nil, goerr.Wrap(types.ErrInvalidOption, "not a git working tree, pass a repository explicitly", goerr.V("dir", dir))
	}

	origin, err := git.OriginURL(ctx, dir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read origin", goerr.V("dir", dir))
	}
	return ParseRepositoryRef(origin)
}

// resolveRepositoryRef uses the argument when given and the current
// directory's origin otherwise.
func resolveRepositoryRef(ctx context.Context, arg string) (*RepositoryRef, error) {
	if arg != "" {
		return ParseRepositoryRef(arg)
	}
	return DetectRepository(ctx, ".")
}
