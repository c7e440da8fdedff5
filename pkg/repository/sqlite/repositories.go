package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/domain/urlkey"
	"github.com/secmon-lab/devlink/pkg/repository"
	"github.com/secmon-lab/devlink/pkg/utils/safe"
)

const repositoryColumns = `owner, id, name, full_name, description, html_url, private, stars, language,
	created_at, updated_at, last_fetched_at, local_path`

const repositoryOrder = ` ORDER BY lower(name), full_name, owner`

func (s *Store) UpsertRepositories(ctx context.Context, scope model.OwnerScope, repos []model.RemoteRepository, fetchedAt time.Time) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	for i := range repos {
		if err := repos[i].Validate(); err != nil {
			return validationErr(err, "invalid repository", scope.Key())
		}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO repositories (owner, id, name, full_name, description, html_url, url_key, private, stars, language,
				created_at, updated_at, last_fetched_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(owner, id) DO UPDATE SET
				name = excluded.name,
				full_name = excluded.full_name,
				description = excluded.description,
				html_url = excluded.html_url,
				url_key = excluded.url_key,
				private = excluded.private,
				stars = excluded.stars,
				language = excluded.language,
				created_at = excluded.created_at,
				updated_at = excluded.updated_at,
				last_fetched_at = MAX(repositories.last_fetched_at, excluded.last_fetched_at)`)
		if err != nil {
			return storageErr(err, "failed to prepare repository upsert")
		}
		defer safe.Close(stmt)

		for _, r := range repos {
			if _, err := stmt.ExecContext(ctx,
				scope.Owner, int64(r.ID), r.Name, r.FullName, r.Description, r.HTMLURL, urlkey.Key(r.HTMLURL),
				r.Private, r.Stars, r.Language,
				toUnix(r.CreatedAt), toUnix(r.UpdatedAt), toUnix(fetchedAt),
			); err != nil {
				return storageErr(err, "failed to upsert repository",
					goerr.V("owner", scope.Owner), goerr.V("id", r.ID))
			}
		}

		return markFetched(ctx, tx, model.ScopeKindRepository, scope.Key(), fetchedAt)
	})
}

func (s *Store) queryRepositories(ctx context.Context, query string, args ...any) ([]model.RemoteRepository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err, "failed to query repositories")
	}
	defer safe.Close(rows)

	var out []model.RemoteRepository
	for rows.Next() {
		var (
			r                             model.RemoteRepository
			id                            int64
			created, updated, lastFetched int64
			localPath                     sql.NullString
		)
		if err := rows.Scan(&r.Owner, &id, &r.Name, &r.FullName, &r.Description, &r.HTMLURL,
			&r.Private, &r.Stars, &r.Language, &created, &updated, &lastFetched, &localPath); err != nil {
			return nil, storageErr(err, "failed to scan repository")
		}
		r.ID = types.GitHubRepoID(id)
		r.CreatedAt = fromUnix(created)
		r.UpdatedAt = fromUnix(updated)
		r.LastFetchedAt = fromUnix(lastFetched)
		r.LocalPath = localPath.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "failed to iterate repositories")
	}

	return out, nil
}

func (s *Store) ListRepositories(ctx context.Context, scope model.OwnerScope) ([]model.RemoteRepository, error) {
	return s.queryRepositories(ctx,
		`SELECT `+repositoryColumns+` FROM repositories WHERE owner = ?`+repositoryOrder, scope.Owner)
}

func (s *Store) ListAllRepositories(ctx context.Context) ([]model.RemoteRepository, error) {
	return s.queryRepositories(ctx, `SELECT `+repositoryColumns+` FROM repositories`+repositoryOrder)
}

func (s *Store) FindRepositoriesByURLKey(ctx context.Context, key string) ([]model.RemoteRepository, error) {
	if key == "" {
		return nil, nil
	}
	return s.queryRepositories(ctx,
		`SELECT `+repositoryColumns+` FROM repositories WHERE url_key = ?`+repositoryOrder, key)
}

func (s *Store) LastRepositoryFetch(ctx context.Context, scope model.OwnerScope) (*time.Time, error) {
	return s.lastFetch(ctx, `SELECT MAX(last_fetched_at) FROM repositories WHERE owner = ?`, scope.Owner)
}

func (s *Store) ClearRepositories(ctx context.Context, scope model.OwnerScope) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM repositories WHERE owner = ?`, scope.Owner); err != nil {
			return storageErr(err, "failed to clear repositories", goerr.V("owner", scope.Owner))
		}
		return unmarkFetched(ctx, tx, model.ScopeKindRepository, scope.Key())
	})
}

func (s *Store) SetLocalPath(ctx context.Context, repoID types.GitHubRepoID, path string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE repositories SET local_path = ? WHERE id = ?`,
			nullString(path), int64(repoID))
		if err != nil {
			return storageErr(err, "failed to set local path", goerr.V("repoID", repoID))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storageErr(err, "failed to read affected rows", goerr.V("repoID", repoID))
		}
		if n == 0 {
			return goerr.Wrap(repository.ErrNotFound, "repository not found", goerr.V("repoID", repoID))
		}
		return nil
	})
}
