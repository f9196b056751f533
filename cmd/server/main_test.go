package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/occledger/internal/infrastructure/config"
)

func TestRetryPolicy(t *testing.T) {
	t.Run("none keeps the attempt cap", func(t *testing.T) {
		p, err := retryPolicy(&config.Config{RetryBackoff: "none", RetryMaxAttempts: 7})
		require.NoError(t, err)
		assert.Equal(t, 7, p.MaxAttempts)
		assert.Nil(t, p.NewBackOff)
	})

	t.Run("default is unbounded", func(t *testing.T) {
		p, err := retryPolicy(&config.Config{})
		require.NoError(t, err)
		assert.Zero(t, p.MaxAttempts)
	})

	t.Run("exponential", func(t *testing.T) {
		p, err := retryPolicy(&config.Config{
			RetryBackoff:         "Exponential",
			RetryMaxAttempts:     5,
			RetryInitialInterval: time.Millisecond,
			RetryMaxInterval:     10 * time.Millisecond,
		})
		require.NoError(t, err)
		assert.Equal(t, 5, p.MaxAttempts)
		require.NotNil(t, p.NewBackOff)
	})

	t.Run("unknown backoff", func(t *testing.T) {
		_, err := retryPolicy(&config.Config{RetryBackoff: "fibonacci"})
		assert.ErrorContains(t, err, "fibonacci")
	})

	t.Run("negative cap", func(t *testing.T) {
		_, err := retryPolicy(&config.Config{RetryMaxAttempts: -1})
		assert.Error(t, err)
	})
}

func TestRun_RejectsBadConfigBeforeConnecting(t *testing.T) {
	err := run(context.Background(), &config.Config{
		DatabaseURL:       "postgres://127.0.0.1:1/none",
		DatabaseIsolation: "snapshot",
	})
	assert.ErrorContains(t, err, "unknown isolation level")
}
