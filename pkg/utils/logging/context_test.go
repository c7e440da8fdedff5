package logging_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/devlink/pkg/utils/logging"
)

func TestWith(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	newCtx := logging.With(ctx, logger)
	// Verify the logger can be retrieved from the context
	retrieved := logging.From(newCtx)
	gt.V(t, retrieved).Equal(logger)
}

func TestFrom(t *testing.T) {
	t.Run("get logger from context with logger", func(t *testing.T) {
		ctx := context.Background()
		logger := slog.Default()
		ctx = logging.With(ctx, logger)

		retrieved := logging.From(ctx)
		gt.V(t, retrieved).Equal(logger)
	})

	t.Run("get logger from context without logger", func(t *testing.T) {
		ctx := context.Background()
		retrieved := logging.From(ctx)
		// Should return default logger, verify it's the same instance when called again
		retrieved2 := logging.From(ctx)
		gt.V(t, retrieved).Equal(retrieved2)
		// Verify it's actually a logger instance by checking it can be used
		gt.V(t, retrieved.Handler()).Equal(logging.Default().Handler())
	})
}

func TestCtxRequestID(t *testing.T) {
	t.Run("get new request ID from context", func(t *testing.T) {
		ctx := context.Background()

		reqID, newCtx := logging.CtxRequestID(ctx)
		gt.V(t, reqID).NotEqual("")
		// Verify the context contains the request ID
		retrievedID, _ := logging.CtxRequestID(newCtx)
		gt.V(t, retrievedID).Equal(reqID)
	})

	t.Run("get existing request ID from context", func(t *testing.T) {
		ctx := context.Background()

		reqID1, ctx1 := logging.CtxRequestID(ctx)
		reqID2, ctx2 := logging.CtxRequestID(ctx1)

		gt.V(t, reqID1).Equal(reqID2)
		// Verify both contexts return the same request ID
		retrievedID1, _ := logging.CtxRequestID(ctx1)
		retrievedID2, _ := logging.CtxRequestID(ctx2)
		gt.V(t, retrievedID1).Equal(reqID1)
		gt.V(t, retrievedID2).Equal(reqID1)
	})
}

func TestCtxTime(t *testing.T) {
	t.Run("get current time from context", func(t *testing.T) {
		ctx := context.Background()

		tm := logging.CtxTime(ctx)
		gt.V(t, tm.IsZero()).Equal(false)
	})
}

func TestCtxWithTime(t *testing.T) {
	t.Run("set and get custom time from context", func(t *testing.T) {
		ctx := context.Background()

		called := false
		ctx = logging.CtxWithTime(ctx, func() time.Time {
			called = true
			return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		})

		tm := logging.CtxTime(ctx)
		gt.True(t, called)
		gt.V(t, tm.Year()).Equal(2024)
	})
}

func TestDetach(t *testing.T) {
	fetchedAt := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	prefetchLogger := slog.Default().With("scope", "github:acme")

	t.Run("prefetch outlives the request", func(t *testing.T) {
		reqCtx, cancel := context.WithCancel(context.Background())
		reqCtx = logging.With(reqCtx, prefetchLogger)
		reqID, reqCtx := logging.CtxRequestID(reqCtx)
		reqCtx = logging.CtxWithTime(reqCtx, func() time.Time { return fetchedAt })

		detached := logging.Detach(reqCtx)
		cancel()

		gt.V(t, reqCtx.Err()).Equal(context.Canceled)
		gt.NoError(t, detached.Err())
		gt.V(t, logging.From(detached)).Equal(prefetchLogger)
		gt.V(t, logging.CtxTime(detached)).Equal(fetchedAt)

		got, _ := logging.CtxRequestID(detached)
		gt.V(t, got).Equal(reqID)
	})

	t.Run("nothing to carry", func(t *testing.T) {
		detached := logging.Detach(context.Background())
		gt.V(t, logging.From(detached).Handler()).Equal(logging.Default().Handler())
		gt.False(t, logging.CtxTime(detached).IsZero())
		id1, _ := logging.CtxRequestID(detached)
		id2, _ := logging.CtxRequestID(detached)
		gt.V(t, id1).NotEqual(id2)
	})

	t.Run("deadline is dropped", func(t *testing.T) {
		reqCtx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		defer cancel()
		<-reqCtx.Done()

		detached := logging.Detach(reqCtx)
		_, hasDeadline := detached.Deadline()
		gt.False(t, hasDeadline)
		gt.NoError(t, detached.Err())
	})
}
