// Package firestore is an EntityStore kept in a Cloud Firestore database, for
// environments without a persistent local disk. It is meant for one user and
// one writer at a time.
package firestore

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/repository"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionRepository  = "repositories"
	collectionPullRequest = "pull_requests"
	collectionPipeline    = "pipelines"
	collectionScopeFetch  = "scope_fetches"

	// Firestore allows 500 writes per commit.
	batchSize = 500
)

// Store implements interfaces.EntityStore.
type Store struct {
	client *firestore.Client
	prefix string
}

type Option func(*Store)

// WithCollectionPrefix prepends prefix to every collection name.
func WithCollectionPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Firestore-based entity store
func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Store, error) {
	var client *firestore.Client
	var err error

	if databaseID != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}

	if err != nil {
		return nil, storageErr(err, "failed to create Firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID),
		)
	}

	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) collection(name string) *firestore.CollectionRef {
	return s.client.Collection(s.prefix + name)
}

// ToFirestoreID joins parts into a document ID. Parts must be non-empty and
// must not contain ':' or '/'.
func ToFirestoreID(parts ...string) (string, error) {
	for _, p := range parts {
		if p == "" {
			return "", goerr.Wrap(repository.ErrInvalidInput, "document ID part is empty",
				goerr.V("parts", parts),
			)
		}
		if strings.ContainsAny(p, ":/") {
			return "", goerr.Wrap(repository.ErrInvalidInput, "document ID part contains invalid character",
				goerr.V("parts", parts),
			)
		}
	}
	return strings.Join(parts, ":"), nil
}

func storageErr(err error, msg string, values ...goerr.Option) error {
	return types.WrapAs(types.ErrStorageUnavailable, err, msg, values...)
}

func laterOf(existing, incoming time.Time) time.Time {
	if existing.After(incoming) {
		return existing
	}
	return incoming
}

// readAll decodes every document matched by q.
func readAll[T any](ctx context.Context, q firestore.Query) ([]T, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []T
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, storageErr(err, "failed to iterate documents")
		}

		var v T
		if err := snap.DataTo(&v); err != nil {
			return nil, storageErr(err, "failed to decode document", goerr.V("path", snap.Ref.Path))
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Store) refsOf(ctx context.Context, q firestore.Query) ([]*firestore.DocumentRef, error) {
	iter := q.Select().Documents(ctx)
	defer iter.Stop()

	var refs []*firestore.DocumentRef
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, storageErr(err, "failed to iterate documents")
		}
		refs = append(refs, snap.Ref)
	}
	return refs, nil
}

// deleteAll removes every document matched by q in batches.
func (s *Store) deleteAll(ctx context.Context, q firestore.Query) error {
	refs, err := s.refsOf(ctx, q)
	if err != nil {
		return err
	}

	for i := 0; i < len(refs); i += batchSize {
		end := min(i+batchSize, len(refs))

		batch := s.client.Batch()
		for _, ref := range refs[i:end] {
			batch.Delete(ref)
		}
		if _, err := batch.Commit(ctx); err != nil {
			return storageErr(err, "failed to batch delete documents",
				goerr.V("batchStart", i),
				goerr.V("batchEnd", end),
			)
		}
	}
	return nil
}

// upsert writes one document per ref inside a transaction per chunk. build
// receives the index into refs and the current snapshot of that document.
func (s *Store) upsert(ctx context.Context, refs []*firestore.DocumentRef, build func(i int, prev *firestore.DocumentSnapshot) (any, error)) error {
	// A transaction also counts its reads, so stay well under the write limit.
	const chunk = batchSize / 2

	for start := 0; start < len(refs); start += chunk {
		end := min(start+chunk, len(refs))
		part := refs[start:end]

		err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			snaps, err := tx.GetAll(part)
			if err != nil {
				return err
			}
			for i, snap := range snaps {
				doc, err := build(start+i, snap)
				if err != nil {
					return err
				}
				if err := tx.Set(part[i], doc); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return storageErr(err, "failed to upsert documents",
				goerr.V("batchStart", start),
				goerr.V("batchEnd", end),
			)
		}
	}
	return nil
}

// lastFetch is the latest LastFetchedAt among rows, or nil when rows is empty.
func lastFetch[T any](rows []T, at func(*T) time.Time) *time.Time {
	var latest *time.Time
	for i := range rows {
		t := at(&rows[i])
		if latest == nil || t.After(*latest) {
			latest = &t
		}
	}
	return latest
}

// Fetch markers

type scopeFetchDoc struct {
	Kind      string
	ScopeKey  string
	FetchedAt time.Time
}

func (s *Store) markerRef(kind model.ScopeKind, scopeKey string) *firestore.DocumentRef {
	id := string(kind) + ":" + strings.ReplaceAll(scopeKey, "/", ":")
	return s.collection(collectionScopeFetch).Doc(id)
}

func (s *Store) markFetched(ctx context.Context, kind model.ScopeKind, scopeKey string, at time.Time) error {
	ref := s.markerRef(kind, scopeKey)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil && snap.Exists() {
			var prev scopeFetchDoc
			if err := snap.DataTo(&prev); err != nil {
				return err
			}
			if !at.After(prev.FetchedAt) {
				return nil
			}
		}
		return tx.Set(ref, &scopeFetchDoc{
			Kind:      string(kind),
			ScopeKey:  scopeKey,
			FetchedAt: at,
		})
	})
	if err != nil {
		return storageErr(err, "failed to record scope fetch",
			goerr.V("kind", kind),
			goerr.V("scopeKey", scopeKey),
		)
	}
	return nil
}

func (s *Store) clearMarker(ctx context.Context, kind model.ScopeKind, scopeKey string) error {
	if _, err := s.markerRef(kind, scopeKey).Delete(ctx); err != nil {
		return storageErr(err, "failed to clear scope fetch",
			goerr.V("kind", kind),
			goerr.V("scopeKey", scopeKey),
		)
	}
	return nil
}

func (s *Store) ScopeFetchedAt(ctx context.Context, kind model.ScopeKind, scopeKey string) (*time.Time, error) {
	snap, err := s.markerRef(kind, scopeKey).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, storageErr(err, "failed to get scope fetch",
			goerr.V("kind", kind),
			goerr.V("scopeKey", scopeKey),
		)
	}

	var doc scopeFetchDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, storageErr(err, "failed to decode scope fetch",
			goerr.V("kind", kind),
			goerr.V("scopeKey", scopeKey),
		)
	}
	return &doc.FetchedAt, nil
}
