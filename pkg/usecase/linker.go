package usecase

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/interfaces"
	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/domain/urlkey"
	"github.com/secmon-lab/devlink/pkg/utils/logging"
)

func (x *UseCase) linkerDeps() (interfaces.EntityStore, interfaces.GitProbe, error) {
	store := x.clients.EntityStore()
	if store == nil {
		return nil, nil, goerr.Wrap(types.ErrInvalidOption, "entity store is not configured")
	}
	probe := x.clients.GitProbe()
	if probe == nil {
		return nil, nil, goerr.Wrap(types.ErrInvalidOption, "git probe is not configured")
	}
	return store, probe, nil
}

// ScanAndLink links the owner's cached repositories to working trees found
// directly under workFolder. Directories are visited in lexicographic order, so
// when several clones share one origin the last of them is linked.
func (x *UseCase) ScanAndLink(ctx context.Context, workFolder, owner string) (*model.LinkReport, error) {
	if workFolder == "" {
		return nil, goerr.Wrap(types.ErrInvalidOption, "work folder is empty")
	}
	if err := (model.OwnerScope{Owner: owner}).Validate(); err != nil {
		return nil, err
	}

	store, probe, err := x.linkerDeps()
	if err != nil {
		return nil, err
	}
	logger := logging.From(ctx)

	repos, err := store.ListRepositories(ctx, model.OwnerScope{Owner: owner})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list repositories", goerr.V("owner", owner))
	}
	byKey := make(map[string]model.RemoteRepository, len(repos))
	for _, repo := range repos {
		if key := urlkey.Key(repo.HTMLURL); key != "" {
			byKey[key] = repo
		}
	}

	dirs, err := probe.ListDirectories(workFolder)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list work folder", goerr.V("workFolder", workFolder))
	}

	report := &model.LinkReport{}
	matches := map[types.GitHubRepoID]string{}
	var order []types.GitHubRepoID

	for _, dir := range dirs {
		if !probe.IsWorkTree(dir) {
			continue
		}
		report.Scanned++

		origin, err := probe.OriginURL(ctx, dir)
		if err != nil {
			logger.Warn("Failed to read origin", slog.String("path", dir), slog.Any("error", err))
			report.Skipped = append(report.Skipped, model.SkippedClone{Path: dir, Reason: err.Error()})
			continue
		}

		repo, ok := byKey[urlkey.Key(origin)]
		if !ok {
			logger.Debug("No cached repository for clone", slog.String("path", dir), slog.String("origin", origin))
			report.Skipped = append(report.Skipped, model.SkippedClone{Path: dir, Reason: "no matching repository"})
			continue
		}

		if prev, dup := matches[repo.ID]; dup {
			logger.Warn("Multiple clones of one repository, keeping the later path",
				slog.String("repo", repo.FullName),
				slog.String("previous", prev),
				slog.String("path", dir))
			report.Skipped = append(report.Skipped, model.SkippedClone{Path: prev, Reason: "superseded by " + dir})
		} else {
			order = append(order, repo.ID)
		}
		matches[repo.ID] = dir
	}

	fullNames := make(map[types.GitHubRepoID]string, len(repos))
	for _, repo := range repos {
		fullNames[repo.ID] = repo.FullName
	}

	for _, id := range order {
		path := matches[id]
		if err := store.SetLocalPath(ctx, id, path); err != nil {
			return nil, goerr.Wrap(err, "failed to set local path", goerr.V("repoID", id), goerr.V("path", path))
		}
		report.Linked = append(report.Linked, model.LinkedClone{
			RepositoryID: int64(id),
			FullName:     fullNames[id],
			LocalPath:    path,
		})
	}

	logger.Info("Scanned work folder",
		slog.String("workFolder", workFolder),
		slog.String("owner", owner),
		slog.Int("scanned", report.Scanned),
		slog.Int("linked", len(report.Linked)),
		slog.Int("skipped", len(report.Skipped)),
	)
	return report, nil
}

// CleanupInvalidLinks unlinks the owner's repositories whose local path is no
// longer a working tree with a matching origin, and returns how many were
// unlinked.
func (x *UseCase) CleanupInvalidLinks(ctx context.Context, owner string) (int, error) {
	if err := (model.OwnerScope{Owner: owner}).Validate(); err != nil {
		return 0, err
	}

	store, probe, err := x.linkerDeps()
	if err != nil {
		return 0, err
	}
	logger := logging.From(ctx)

	repos, err := store.ListRepositories(ctx, model.OwnerScope{Owner: owner})
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list repositories", goerr.V("owner", owner))
	}

	cleared := 0
	for _, repo := range repos {
		if !repo.Linked() {
			continue
		}

		reason := invalidLinkReason(ctx, probe, repo)
		if reason == "" {
			continue
		}

		if err := store.SetLocalPath(ctx, repo.ID, ""); err != nil {
			return cleared, goerr.Wrap(err, "failed to clear local path", goerr.V("repoID", repo.ID))
		}
		cleared++
		logger.Info("Removed invalid link",
			slog.String("repo", repo.FullName),
			slog.String("path", repo.LocalPath),
			slog.String("reason", reason))
	}

	return cleared, nil
}

func invalidLinkReason(ctx context.Context, probe interfaces.GitProbe, repo model.RemoteRepository) string {
	info, err := os.Stat(repo.LocalPath)
	if err != nil || !info.IsDir() {
		return "path does not exist"
	}
	if !probe.IsWorkTree(repo.LocalPath) {
		return "not a git working tree"
	}
	origin, err := probe.OriginURL(ctx, repo.LocalPath)
	if err != nil {
		return "origin is unreadable"
	}
	if !urlkey.Equal(origin, repo.HTMLURL) {
		return "origin does not match"
	}
	return ""
}

// CloneRepository clones cloneURL into workFolder/name and links the clone to
// the repository. On failure it returns "" and the repository stays unlinked.
func (x *UseCase) CloneRepository(ctx context.Context, cloneURL, workFolder, name string, repoID types.GitHubRepoID) (string, error) {
	if cloneURL == "" {
		return "", goerr.Wrap(types.ErrInvalidOption, "clone URL is empty")
	}
	if workFolder == "" {
		return "", goerr.Wrap(types.ErrInvalidOption, "work folder is empty")
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", goerr.Wrap(types.ErrInvalidOption, "invalid clone directory name", goerr.V("name", name))
	}

	store := x.clients.EntityStore()
	if store == nil {
		return "", goerr.Wrap(types.ErrInvalidOption, "entity store is not configured")
	}
	executor := x.clients.CloneExecutor()
	if executor == nil {
		return "", goerr.Wrap(types.ErrInvalidOption, "clone executor is not configured")
	}

	dest := filepath.Join(workFolder, name)
	if _, err := os.Stat(dest); err == nil {
		return "", goerr.Wrap(types.ErrCloneFailed, "destination already exists", goerr.V("dest", dest))
	}

	path, err := executor.Clone(ctx, cloneURL, dest)
	if err != nil {
		if !errors.Is(err, types.ErrCloneFailed) {
			err = types.WrapAs(types.ErrCloneFailed, err, "clone executor failed")
		}
		return "", goerr.Wrap(err, "failed to clone repository", goerr.V("url", cloneURL), goerr.V("dest", dest))
	}
	if path == "" {
		path = dest
	}

	if err := store.SetLocalPath(ctx, repoID, path); err != nil {
		return "", goerr.Wrap(err, "failed to link cloned repository", goerr.V("repoID", repoID), goerr.V("path", path))
	}

	logging.From(ctx).Info("Cloned and linked repository",
		slog.String("url", cloneURL),
		slog.String("path", path),
		slog.Int64("repoID", int64(repoID)))
	return path, nil
}

// HasSolutionFile reports whether the clone root contains a *.sln file.
func HasSolutionFile(localPath string) bool {
	if localPath == "" {
		return false
	}
	matches, err := filepath.Glob(filepath.Join(localPath, "*.sln"))
	return err == nil && len(matches) > 0
}
