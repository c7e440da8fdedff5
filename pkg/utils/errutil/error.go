package errutil

import (
	"context"
	"errors"
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/utils/logging"
)

// Kind names the error category used for the Sentry tag and API responses.
func Kind(err error) string {
	switch {
	case errors.Is(err, types.ErrInvalidOption), errors.Is(err, types.ErrValidationFailed):
		return "invalid_input"
	case errors.Is(err, types.ErrRemoteFetch):
		return "remote_fetch"
	case errors.Is(err, types.ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, types.ErrCloneFailed):
		return "clone_failed"
	default:
		return "internal"
	}
}

// HandleError logs err and reports it to Sentry. Invalid input is only logged.
func HandleError(ctx context.Context, msg string, err error) {
	if err == nil {
		return
	}

	kind := Kind(err)
	var evID *sentry.EventID
	if kind != "invalid_input" {
		hub := sentry.CurrentHub().Clone()
		hub.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetTag("error.kind", kind)
			if goErr := goerr.Unwrap(err); goErr != nil {
				for k, v := range goErr.Values() {
					scope.SetExtra(fmt.Sprintf("%v", k), v)
				}
			}
		})
		evID = hub.CaptureException(err)
	}

	logging.From(ctx).Error(msg,
		"error", err,
		"error.kind", kind,
		"sentry.EventID", evID,
	)
}
