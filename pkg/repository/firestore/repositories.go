package firestore

import (
	"context"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/domain/urlkey"
	"github.com/secmon-lab/devlink/pkg/repository"
)

type repositoryDoc struct {
	model.RemoteRepository
	URLKey string
}

func repositoryDocID(owner string, id types.GitHubRepoID) (string, error) {
	return ToFirestoreID(owner, strconv.FormatInt(int64(id), 10))
}

func toRepositories(docs []repositoryDoc) []model.RemoteRepository {
	out := make([]model.RemoteRepository, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.RemoteRepository)
	}
	repository.SortRepositories(out)
	return out
}

func (s *Store) UpsertRepositories(ctx context.Context, scope model.OwnerScope, repos []model.RemoteRepository, fetchedAt time.Time) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	// Later entries for the same ID replace earlier ones.
	index := make(map[types.GitHubRepoID]int, len(repos))
	var rows []model.RemoteRepository
	var refs []*firestore.DocumentRef
	for i := range repos {
		if err := repos[i].Validate(); err != nil {
			return types.WrapAs(repository.ErrInvalidInput, err, "invalid repository", goerr.V("owner", scope.Owner))
		}
		docID, err := repositoryDocID(scope.Owner, repos[i].ID)
		if err != nil {
			return err
		}
		if at, ok := index[repos[i].ID]; ok {
			rows[at] = repos[i]
			continue
		}
		index[repos[i].ID] = len(rows)
		rows = append(rows, repos[i])
		refs = append(refs, s.collection(collectionRepository).Doc(docID))
	}

	err := s.upsert(ctx, refs, func(i int, prev *firestore.DocumentSnapshot) (any, error) {
		repo := rows[i]
		repo.Owner = scope.Owner
		repo.LastFetchedAt = fetchedAt
		repo.LocalPath = ""
		if prev.Exists() {
			var old repositoryDoc
			if err := prev.DataTo(&old); err != nil {
				return nil, err
			}
			repo.LocalPath = old.LocalPath
			repo.LastFetchedAt = laterOf(old.LastFetchedAt, fetchedAt)
		}
		return &repositoryDoc{RemoteRepository: repo, URLKey: urlkey.Key(repo.HTMLURL)}, nil
	})
	if err != nil {
		return goerr.Wrap(err, "failed to upsert repositories", goerr.V("owner", scope.Owner))
	}

	return s.markFetched(ctx, model.ScopeKindRepository, scope.Key(), fetchedAt)
}

func (s *Store) listRepositoryDocs(ctx context.Context, scope model.OwnerScope) ([]repositoryDoc, error) {
	q := s.collection(collectionRepository).Where("Owner", "==", scope.Owner)
	docs, err := readAll[repositoryDoc](ctx, q)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list repositories", goerr.V("owner", scope.Owner))
	}
	return docs, nil
}

func (s *Store) ListRepositories(ctx context.Context, scope model.OwnerScope) ([]model.RemoteRepository, error) {
	docs, err := s.listRepositoryDocs(ctx, scope)
	if err != nil {
		return nil, err
	}
	return toRepositories(docs), nil
}

func (s *Store) LastRepositoryFetch(ctx context.Context, scope model.OwnerScope) (*time.Time, error) {
	docs, err := s.listRepositoryDocs(ctx, scope)
	if err != nil {
		return nil, err
	}
	return lastFetch(docs, func(d *repositoryDoc) time.Time { return d.LastFetchedAt }), nil
}

func (s *Store) ClearRepositories(ctx context.Context, scope model.OwnerScope) error {
	q := s.collection(collectionRepository).Where("Owner", "==", scope.Owner)
	if err := s.deleteAll(ctx, q); err != nil {
		return goerr.Wrap(err, "failed to clear repositories", goerr.V("owner", scope.Owner))
	}
	return s.clearMarker(ctx, model.ScopeKindRepository, scope.Key())
}

func (s *Store) ListAllRepositories(ctx context.Context) ([]model.RemoteRepository, error) {
	docs, err := readAll[repositoryDoc](ctx, s.collection(collectionRepository).Query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list all repositories")
	}
	return toRepositories(docs), nil
}

func (s *Store) FindRepositoriesByURLKey(ctx context.Context, key string) ([]model.RemoteRepository, error) {
	if key == "" {
		return nil, nil
	}

	q := s.collection(collectionRepository).Where("URLKey", "==", key)
	docs, err := readAll[repositoryDoc](ctx, q)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find repositories", goerr.V("key", key))
	}
	return toRepositories(docs), nil
}

func (s *Store) SetLocalPath(ctx context.Context, repoID types.GitHubRepoID, path string) error {
	q := s.collection(collectionRepository).Where("ID", "==", int64(repoID))
	refs, err := s.refsOf(ctx, q)
	if err != nil {
		return goerr.Wrap(err, "failed to find repository", goerr.V("repoID", repoID))
	}
	if len(refs) == 0 {
		return goerr.Wrap(repository.ErrNotFound, "repository not found", goerr.V("repoID", repoID))
	}

	batch := s.client.Batch()
	for _, ref := range refs {
		batch.Update(ref, []firestore.Update{
			{Path: "LocalPath", Value: path},
		})
	}
	if _, err := batch.Commit(ctx); err != nil {
		return storageErr(err, "failed to set local path", goerr.V("repoID", repoID))
	}
	return nil
}
