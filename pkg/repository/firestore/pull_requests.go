package firestore

import (
	"context"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/repository"
)

type pullRequestDoc struct {
	model.PullRequest
	// RepositoryKey is the lower-cased full name.
	RepositoryKey string
}

func toPullRequests(docs []pullRequestDoc) []model.PullRequest {
	out := make([]model.PullRequest, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.PullRequest)
	}
	repository.SortPullRequests(out)
	return out
}

func (s *Store) UpsertPullRequests(ctx context.Context, scope model.OwnerScope, prs []model.PullRequest, fetchedAt time.Time) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	index := make(map[types.PullRequestID]int, len(prs))
	var rows []model.PullRequest
	var refs []*firestore.DocumentRef
	for i := range prs {
		if err := prs[i].Validate(); err != nil {
			return types.WrapAs(repository.ErrInvalidInput, err, "invalid pull request", goerr.V("owner", scope.Owner))
		}
		docID, err := ToFirestoreID(scope.Owner, strconv.FormatInt(int64(prs[i].ID), 10))
		if err != nil {
			return err
		}
		if at, ok := index[prs[i].ID]; ok {
			rows[at] = prs[i]
			continue
		}
		index[prs[i].ID] = len(rows)
		rows = append(rows, prs[i])
		refs = append(refs, s.collection(collectionPullRequest).Doc(docID))
	}

	err := s.upsert(ctx, refs, func(i int, prev *firestore.DocumentSnapshot) (any, error) {
		pr := rows[i]
		pr.Owner = scope.Owner
		pr.LastFetchedAt = fetchedAt
		if prev.Exists() {
			var old pullRequestDoc
			if err := prev.DataTo(&old); err != nil {
				return nil, err
			}
			pr.LastFetchedAt = laterOf(old.LastFetchedAt, fetchedAt)
		}
		return &pullRequestDoc{PullRequest: pr, RepositoryKey: strings.ToLower(pr.RepositoryFullName)}, nil
	})
	if err != nil {
		return goerr.Wrap(err, "failed to upsert pull requests", goerr.V("owner", scope.Owner))
	}

	return s.markFetched(ctx, model.ScopeKindPullRequest, scope.Key(), fetchedAt)
}

func (s *Store) listPullRequestDocs(ctx context.Context, scope model.OwnerScope) ([]pullRequestDoc, error) {
	q := s.collection(collectionPullRequest).Where("Owner", "==", scope.Owner)
	docs, err := readAll[pullRequestDoc](ctx, q)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list pull requests", goerr.V("owner", scope.Owner))
	}
	return docs, nil
}

func (s *Store) ListPullRequests(ctx context.Context, scope model.OwnerScope) ([]model.PullRequest, error) {
	docs, err := s.listPullRequestDocs(ctx, scope)
	if err != nil {
		return nil, err
	}
	return toPullRequests(docs), nil
}

func (s *Store) LastPullRequestFetch(ctx context.Context, scope model.OwnerScope) (*time.Time, error) {
	docs, err := s.listPullRequestDocs(ctx, scope)
	if err != nil {
		return nil, err
	}
	return lastFetch(docs, func(d *pullRequestDoc) time.Time { return d.LastFetchedAt }), nil
}

func (s *Store) ClearPullRequests(ctx context.Context, scope model.OwnerScope) error {
	q := s.collection(collectionPullRequest).Where("Owner", "==", scope.Owner)
	if err := s.deleteAll(ctx, q); err != nil {
		return goerr.Wrap(err, "failed to clear pull requests", goerr.V("owner", scope.Owner))
	}
	return s.clearMarker(ctx, model.ScopeKindPullRequest, scope.Key())
}

func (s *Store) FindPullRequestsByRepository(ctx context.Context, fullName string) ([]model.PullRequest, error) {
	if fullName == "" {
		return nil, nil
	}

	q := s.collection(collectionPullRequest).Where("RepositoryKey", "==", strings.ToLower(fullName))
	docs, err := readAll[pullRequestDoc](ctx, q)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find pull requests", goerr.V("fullName", fullName))
	}
	return toPullRequests(docs), nil
}
