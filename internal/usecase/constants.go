package usecase

import "time"

const (
	// OutcomeCommitted labels a transfer that committed.
	OutcomeCommitted = "committed"

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// IdempotencyPending is stored under a claimed key until its response is known.
	IdempotencyPending = "processing"

	// rollbackTimeout bounds the rollback of an attempt whose caller context is already done.
	rollbackTimeout = 5 * time.Second
)
