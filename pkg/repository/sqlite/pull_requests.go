package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/utils/safe"
)

func (s *Store) UpsertPullRequests(ctx context.Context, scope model.OwnerScope, prs []model.PullRequest, fetchedAt time.Time) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	for i := range prs {
		if err := prs[i].Validate(); err != nil {
			return validationErr(err, "invalid pull request", scope.Key())
		}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO pull_requests (owner, id, number, title, html_url, state, repository_name, repository_full_name,
				author, draft, created_at, updated_at, last_fetched_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(owner, id) DO UPDATE SET
				number = excluded.number,
				title = excluded.title,
				html_url = excluded.html_url,
				state = excluded.state,
				repository_name = excluded.repository_name,
				repository_full_name = excluded.repository_full_name,
				author = excluded.author,
				draft = excluded.draft,
				created_at = excluded.created_at,
				updated_at = excluded.updated_at,
				last_fetched_at = MAX(pull_requests.last_fetched_at, excluded.last_fetched_at)`)
		if err != nil {
			return storageErr(err, "failed to prepare pull request upsert")
		}
		defer safe.Close(stmt)

		for _, pr := range prs {
			if _, err := stmt.ExecContext(ctx,
				scope.Owner, int64(pr.ID), pr.Number, pr.Title, pr.HTMLURL, pr.State,
				pr.RepositoryName, pr.RepositoryFullName, pr.Author, pr.Draft,
				toUnix(pr.CreatedAt), toUnix(pr.UpdatedAt), toUnix(fetchedAt),
			); err != nil {
				return storageErr(err, "failed to upsert pull request",
					goerr.V("owner", scope.Owner), goerr.V("id", pr.ID))
			}
		}

		return markFetched(ctx, tx, model.ScopeKindPullRequest, scope.Key(), fetchedAt)
	})
}

const pullRequestColumns = `owner, id, number, title, html_url, state, repository_name, repository_full_name,
	author, draft, created_at, updated_at, last_fetched_at`

const pullRequestOrder = ` ORDER BY updated_at DESC, id, owner`

func (s *Store) ListPullRequests(ctx context.Context, scope model.OwnerScope) ([]model.PullRequest, error) {
	return s.queryPullRequests(ctx,
		`SELECT `+pullRequestColumns+` FROM pull_requests WHERE owner = ?`+pullRequestOrder, scope.Owner)
}

func (s *Store) FindPullRequestsByRepository(ctx context.Context, fullName string) ([]model.PullRequest, error) {
	if fullName == "" {
		return nil, nil
	}
	return s.queryPullRequests(ctx,
		`SELECT `+pullRequestColumns+` FROM pull_requests WHERE lower(repository_full_name) = lower(?)`+pullRequestOrder,
		fullName)
}

func (s *Store) queryPullRequests(ctx context.Context, query string, args ...any) ([]model.PullRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err, "failed to query pull requests")
	}
	defer safe.Close(rows)

	var out []model.PullRequest
	for rows.Next() {
		var (
			pr                            model.PullRequest
			id                            int64
			created, updated, lastFetched int64
		)
		if err := rows.Scan(&pr.Owner, &id, &pr.Number, &pr.Title, &pr.HTMLURL, &pr.State,
			&pr.RepositoryName, &pr.RepositoryFullName, &pr.Author, &pr.Draft,
			&created, &updated, &lastFetched); err != nil {
			return nil, storageErr(err, "failed to scan pull request")
		}
		pr.ID = types.PullRequestID(id)
		pr.CreatedAt = fromUnix(created)
		pr.UpdatedAt = fromUnix(updated)
		pr.LastFetchedAt = fromUnix(lastFetched)
		out = append(out, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "failed to iterate pull requests")
	}

	return out, nil
}

func (s *Store) LastPullRequestFetch(ctx context.Context, scope model.OwnerScope) (*time.Time, error) {
	return s.lastFetch(ctx, `SELECT MAX(last_fetched_at) FROM pull_requests WHERE owner = ?`, scope.Owner)
}

func (s *Store) ClearPullRequests(ctx context.Context, scope model.OwnerScope) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pull_requests WHERE owner = ?`, scope.Owner); err != nil {
			return storageErr(err, "failed to clear pull requests", goerr.V("owner", scope.Owner))
		}
		return unmarkFetched(ctx, tx, model.ScopeKindPullRequest, scope.Key())
	})
}
