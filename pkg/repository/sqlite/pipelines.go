package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/domain/urlkey"
	"github.com/secmon-lab/devlink/pkg/utils/safe"
)

const pipelineColumns = `organization, project, id, name, path, repository_url, queue_status,
	last_build_id, last_build_number, last_build_status, last_build_result, last_fetched_at`

const pipelineOrder = ` ORDER BY lower(name), id, organization, project`

func (s *Store) UpsertPipelines(ctx context.Context, scope model.ProjectScope, pipelines []model.Pipeline, fetchedAt time.Time) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	for i := range pipelines {
		if err := pipelines[i].Validate(); err != nil {
			return validationErr(err, "invalid pipeline", scope.Key())
		}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO pipelines (organization, project, id, name, path, repository_url, repository_key, queue_status,
				last_build_id, last_build_number, last_build_status, last_build_result, last_fetched_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(organization, project, id) DO UPDATE SET
				name = excluded.name,
				path = excluded.path,
				repository_url = excluded.repository_url,
				repository_key = excluded.repository_key,
				queue_status = excluded.queue_status,
				last_build_id = excluded.last_build_id,
				last_build_number = excluded.last_build_number,
				last_build_status = excluded.last_build_status,
				last_build_result = excluded.last_build_result,
				last_fetched_at = MAX(pipelines.last_fetched_at, excluded.last_fetched_at)`)
		if err != nil {
			return storageErr(err, "failed to prepare pipeline upsert")
		}
		defer safe.Close(stmt)

		for _, p := range pipelines {
			var buildID sql.NullInt64
			if p.LastBuildID != nil {
				buildID = sql.NullInt64{Int64: int64(*p.LastBuildID), Valid: true}
			}

			if _, err := stmt.ExecContext(ctx,
				scope.Organization, scope.Project, int64(p.ID), p.Name, p.Path,
				nullString(p.RepositoryURL), urlkey.Key(p.RepositoryURL), p.QueueStatus,
				buildID, p.LastBuildNumber, p.LastBuildStatus, p.LastBuildResult, toUnix(fetchedAt),
			); err != nil {
				return storageErr(err, "failed to upsert pipeline",
					goerr.V("scope", scope.Key()), goerr.V("id", p.ID))
			}
		}

		return markFetched(ctx, tx, model.ScopeKindPipeline, scope.Key(), fetchedAt)
	})
}

func (s *Store) queryPipelines(ctx context.Context, query string, args ...any) ([]model.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err, "failed to query pipelines")
	}
	defer safe.Close(rows)

	var out []model.Pipeline
	for rows.Next() {
		var (
			p           model.Pipeline
			id          int64
			repoURL     sql.NullString
			buildID     sql.NullInt64
			lastFetched int64
		)
		if err := rows.Scan(&p.Organization, &p.Project, &id, &p.Name, &p.Path, &repoURL, &p.QueueStatus,
			&buildID, &p.LastBuildNumber, &p.LastBuildStatus, &p.LastBuildResult, &lastFetched); err != nil {
			return nil, storageErr(err, "failed to scan pipeline")
		}
		p.ID = types.PipelineID(id)
		p.RepositoryURL = repoURL.String
		if buildID.Valid {
			b := types.BuildID(buildID.Int64)
			p.LastBuildID = &b
		}
		p.LastFetchedAt = fromUnix(lastFetched)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "failed to iterate pipelines")
	}

	return out, nil
}

func (s *Store) ListPipelines(ctx context.Context, scope model.ProjectScope) ([]model.Pipeline, error) {
	return s.queryPipelines(ctx,
		`SELECT `+pipelineColumns+` FROM pipelines WHERE organization = ? AND project = ?`+pipelineOrder,
		scope.Organization, scope.Project)
}

func (s *Store) FindPipelinesByRepositoryKey(ctx context.Context, key string) ([]model.Pipeline, error) {
	if key == "" {
		return nil, nil
	}
	return s.queryPipelines(ctx,
		`SELECT `+pipelineColumns+` FROM pipelines WHERE repository_key = ?`+pipelineOrder, key)
}

func (s *Store) LastPipelineFetch(ctx context.Context, scope model.ProjectScope) (*time.Time, error) {
	return s.lastFetch(ctx,
		`SELECT MAX(last_fetched_at) FROM pipelines WHERE organization = ? AND project = ?`,
		scope.Organization, scope.Project)
}

func (s *Store) ClearPipelines(ctx context.Context, scope model.ProjectScope) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM pipelines WHERE organization = ? AND project = ?`,
			scope.Organization, scope.Project); err != nil {
			return storageErr(err, "failed to clear pipelines", goerr.V("scope", scope.Key()))
		}
		return unmarkFetched(ctx, tx, model.ScopeKindPipeline, scope.Key())
	})
}
