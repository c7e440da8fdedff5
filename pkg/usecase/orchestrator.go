package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/utils/logging"
	"golang.org/x/sync/singleflight"
)

// CacheOrchestrator serves one entity kind from the store and fetches a scope
// from the remote only while the scope is cold. A scope is warm once a fetch
// has been recorded for it, even if that fetch returned nothing.
type CacheOrchestrator[S model.Scope, E any, V any] struct {
	kind model.ScopeKind

	fetch     func(ctx context.Context, scope S) (*model.FetchBatch[E], error)
	upsert    func(ctx context.Context, scope S, items []E, fetchedAt time.Time) error
	list      func(ctx context.Context, scope S) ([]E, error)
	clear     func(ctx context.Context, scope S) error
	lastFetch func(ctx context.Context, scope S) (*time.Time, error)
	marker    func(ctx context.Context, kind model.ScopeKind, scopeKey string) (*time.Time, error)
	convert   func(ctx context.Context, entity E) V

	group singleflight.Group
	locks sync.Map
}

func (x *CacheOrchestrator[S, E, V]) checkStore() error {
	if x.list == nil {
		return goerr.Wrap(types.ErrInvalidOption, "entity store is not configured", goerr.V("kind", x.kind))
	}
	return nil
}

func (x *CacheOrchestrator[S, E, V]) scopeLock(key string) *sync.Mutex {
	mu, _ := x.locks.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// GetOrFetch returns the scope's cached entities, fetching them first when the
// scope is cold. Concurrent calls for one scope share a single fetch. A failed
// fetch leaves the store untouched and returns an error wrapping
// types.ErrRemoteFetch.
func (x *CacheOrchestrator[S, E, V]) GetOrFetch(ctx context.Context, scope S) (*model.CacheResult[E, V], error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := x.checkStore(); err != nil {
		return nil, err
	}

	key := scope.Key()
	v, err, shared := x.group.Do(key, func() (any, error) {
		mu := x.scopeLock(key)
		mu.Lock()
		defer mu.Unlock()
		return x.getOrFetch(ctx, scope)
	})
	if err != nil {
		return nil, err
	}

	result := v.(*model.CacheResult[E, V])
	if shared {
		// every caller of a shared flight gets its own slices
		return result.Clone(), nil
	}
	return result, nil
}

func (x *CacheOrchestrator[S, E, V]) getOrFetch(ctx context.Context, scope S) (*model.CacheResult[E, V], error) {
	logger := logging.From(ctx).With(slog.String("kind", string(x.kind)), slog.String("scope", scope.Key()))

	fetchedAt, err := x.marker(ctx, x.kind, scope.Key())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read fetch marker")
	}

	if fetchedAt != nil {
		items, err := x.list(ctx, scope)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list cached entities")
		}
		logger.Debug("Serving from cache", slog.Int("count", len(items)))
		return x.result(ctx, items, true, fetchedAt, nil), nil
	}

	if x.fetch == nil {
		return nil, goerr.Wrap(types.ErrInvalidOption, "remote fetcher is not configured",
			goerr.V("kind", x.kind))
	}

	logger.Info("Scope is cold, fetching from remote")
	batch, err := x.fetch(ctx, scope)
	if err != nil {
		return nil, types.WrapAs(types.ErrRemoteFetch, err, "failed to fetch from remote",
			goerr.V("kind", x.kind),
			goerr.V("scope", scope.Key()),
		)
	}
	if batch == nil {
		batch = &model.FetchBatch[E]{}
	}

	now := logging.CtxTime(ctx)
	if err := x.upsert(ctx, scope, batch.Items, now); err != nil {
		return nil, goerr.Wrap(err, "failed to store fetched entities", goerr.V("count", len(batch.Items)))
	}

	for _, f := range batch.Failures {
		logger.Warn("Partial fetch failure", slog.String("target", f.Target), slog.String("reason", f.Reason))
	}

	items, err := x.list(ctx, scope)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list fetched entities")
	}

	logger.Info("Fetched from remote",
		slog.Int("fetched", len(batch.Items)),
		slog.Int("stored", len(items)),
		slog.Int("failures", len(batch.Failures)),
	)
	return x.result(ctx, items, false, &now, batch.Failures), nil
}

func (x *CacheOrchestrator[S, E, V]) result(ctx context.Context, items []E, fromCache bool, fetchedAt *time.Time, failures []model.FetchFailure) *model.CacheResult[E, V] {
	views := make([]V, 0, len(items))
	for _, item := range items {
		views = append(views, x.convert(ctx, item))
	}
	return &model.CacheResult[E, V]{
		Items:     items,
		Views:     views,
		FromCache: fromCache,
		FetchedAt: fetchedAt,
		Failures:  failures,
	}
}

// Refresh makes the scope cold. The next GetOrFetch fetches it again.
func (x *CacheOrchestrator[S, E, V]) Refresh(ctx context.Context, scope S) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if err := x.checkStore(); err != nil {
		return err
	}

	mu := x.scopeLock(scope.Key())
	mu.Lock()
	defer mu.Unlock()

	if err := x.clear(ctx, scope); err != nil {
		return goerr.Wrap(err, "failed to clear scope", goerr.V("kind", x.kind), goerr.V("scope", scope.Key()))
	}

	logging.From(ctx).Info("Cleared cache scope",
		slog.String("kind", string(x.kind)),
		slog.String("scope", scope.Key()))
	return nil
}

// LastFetch is the most recent fetch time among the scope's rows.
func (x *CacheOrchestrator[S, E, V]) LastFetch(ctx context.Context, scope S) (*time.Time, error) {
	if err := x.checkStore(); err != nil {
		return nil, err
	}
	return x.lastFetch(ctx, scope)
}

// ConvertToView projects one entity to its list-item form.
func (x *CacheOrchestrator[S, E, V]) ConvertToView(ctx context.Context, entity E) V {
	return x.convert(ctx, entity)
}
