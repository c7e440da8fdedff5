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

type pipelineDoc struct {
	model.Pipeline
	ScopeKey      string
	RepositoryKey string
}

func toPipelines(docs []pipelineDoc) []model.Pipeline {
	out := make([]model.Pipeline, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Pipeline)
	}
	repository.SortPipelines(out)
	return out
}

func (s *Store) UpsertPipelines(ctx context.Context, scope model.ProjectScope, pipelines []model.Pipeline, fetchedAt time.Time) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	index := make(map[types.PipelineID]int, len(pipelines))
	var rows []model.Pipeline
	var refs []*firestore.DocumentRef
	for i := range pipelines {
		if err := pipelines[i].Validate(); err != nil {
			return types.WrapAs(repository.ErrInvalidInput, err, "invalid pipeline", goerr.V("scope", scope.Key()))
		}
		docID, err := ToFirestoreID(scope.Organization, scope.Project, strconv.FormatInt(int64(pipelines[i].ID), 10))
		if err != nil {
			return err
		}
		if at, ok := index[pipelines[i].ID]; ok {
			rows[at] = pipelines[i]
			continue
		}
		index[pipelines[i].ID] = len(rows)
		rows = append(rows, pipelines[i])
		refs = append(refs, s.collection(collectionPipeline).Doc(docID))
	}

	err := s.upsert(ctx, refs, func(i int, prev *firestore.DocumentSnapshot) (any, error) {
		p := rows[i]
		p.Organization = scope.Organization
		p.Project = scope.Project
		p.LastFetchedAt = fetchedAt
		if prev.Exists() {
			var old pipelineDoc
			if err := prev.DataTo(&old); err != nil {
				return nil, err
			}
			p.LastFetchedAt = laterOf(old.LastFetchedAt, fetchedAt)
		}
		return &pipelineDoc{
			Pipeline:      p,
			ScopeKey:      scope.Key(),
			RepositoryKey: urlkey.Key(p.RepositoryURL),
		}, nil
	})
	if err != nil {
		return goerr.Wrap(err, "failed to upsert pipelines", goerr.V("scope", scope.Key()))
	}

	return s.markFetched(ctx, model.ScopeKindPipeline, scope.Key(), fetchedAt)
}

func (s *Store) listPipelineDocs(ctx context.Context, scope model.ProjectScope) ([]pipelineDoc, error) {
	q := s.collection(collectionPipeline).Where("ScopeKey", "==", scope.Key())
	docs, err := readAll[pipelineDoc](ctx, q)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list pipelines", goerr.V("scope", scope.Key()))
	}
	return docs, nil
}

func (s *Store) ListPipelines(ctx context.Context, scope model.ProjectScope) ([]model.Pipeline, error) {
	docs, err := s.listPipelineDocs(ctx, scope)
	if err != nil {
		return nil, err
	}
	return toPipelines(docs), nil
}

func (s *Store) LastPipelineFetch(ctx context.Context, scope model.ProjectScope) (*time.Time, error) {
	docs, err := s.listPipelineDocs(ctx, scope)
	if err != nil {
		return nil, err
	}
	return lastFetch(docs, func(d *pipelineDoc) time.Time { return d.LastFetchedAt }), nil
}

func (s *Store) ClearPipelines(ctx context.Context, scope model.ProjectScope) error {
	q := s.collection(collectionPipeline).Where("ScopeKey", "==", scope.Key())
	if err := s.deleteAll(ctx, q); err != nil {
		return goerr.Wrap(err, "failed to clear pipelines", goerr.V("scope", scope.Key()))
	}
	return s.clearMarker(ctx, model.ScopeKindPipeline, scope.Key())
}

func (s *Store) FindPipelinesByRepositoryKey(ctx context.Context, key string) ([]model.Pipeline, error) {
	if key == "" {
		return nil, nil
	}

	q := s.collection(collectionPipeline).Where("RepositoryKey", "==", key)
	docs, err := readAll[pipelineDoc](ctx, q)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find pipelines", goerr.V("key", key))
	}
	return toPipelines(docs), nil
}
