package config_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/devlink/pkg/cli/config"
)

func TestSentry(t *testing.T) {
	sentryConfig := &config.Sentry{}
	flags := sentryConfig.Flags()
	gt.V(t, len(flags)).Equal(2)

	names := map[string]bool{}
	for _, flag := range flags {
		names[flag.Names()[0]] = true
	}
	gt.True(t, names["sentry-dsn"])
	gt.True(t, names["sentry-env"])

	// no DSN, nothing to initialize
	gt.NoError(t, sentryConfig.Configure(context.Background(), "test"))
	sentryConfig.Flush()
}
