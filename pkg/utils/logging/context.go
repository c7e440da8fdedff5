package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/secmon-lab/devlink/pkg/domain/types"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
	clockKey
)

// Clock supplies the time used to stamp fetched scopes.
type Clock func() time.Time

// CtxRequestID returns the request ID held by ctx. A new ID is generated and
// attached when ctx has none.
func CtxRequestID(ctx context.Context) (types.RequestID, context.Context) {
	if id, ok := ctx.Value(requestIDKey).(types.RequestID); ok {
		return id, ctx
	}
	id := types.NewRequestID()
	return id, context.WithValue(ctx, requestIDKey, id)
}

// With attaches logger to ctx.
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// From returns the logger attached to ctx, or the process logger.
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return defaultLogger
}

// CtxTime reads the clock of ctx, falling back to time.Now.
func CtxTime(ctx context.Context) time.Time {
	if clock, ok := ctx.Value(clockKey).(Clock); ok {
		return clock()
	}
	return time.Now()
}

// CtxWithTime attaches clock to ctx.
func CtxWithTime(ctx context.Context, clock Clock) context.Context {
	return context.WithValue(ctx, clockKey, clock)
}

// Detach returns a context that is never cancelled but still carries the
// logger, request ID and clock of ctx. Prefetches started by a request run
// under it after the response is written.
func Detach(ctx context.Context) context.Context {
	detached := context.Background()
	for _, key := range []ctxKey{loggerKey, requestIDKey, clockKey} {
		if v := ctx.Value(key); v != nil {
			detached = context.WithValue(detached, key, v)
		}
	}
	return detached
}
