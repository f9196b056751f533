package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/occledger/internal/domain"
)

// Transaction represents one database transaction on a lent connection.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager begins transactions.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Lease is exclusive use of a connection, returned to its lender by Release.
// Release is safe to call more than once.
type Lease interface {
	TransactionManager
	Ping(ctx context.Context) error
	Release()
}

// ConnectionLender hands out connections one caller at a time.
// Acquire blocks until a connection is free or ctx is done.
type ConnectionLender interface {
	Acquire(ctx context.Context) (Lease, error)
}

// TransferExecutor runs the speculative phase of one attempt: debit the payer,
// credit the payee, and return the payer balance. It never commits.
type TransferExecutor interface {
	Execute(ctx context.Context, tx Transaction, req domain.TransferRequest) (decimal.Decimal, error)
}

// CommitClass is the verdict on a failed commit.
type CommitClass int

const (
	CommitFatal CommitClass = iota
	CommitRetryable
)

// ConflictClassifier decides whether a failed attempt hit a transient
// serialization conflict, at commit or on one of its statements.
type ConflictClassifier interface {
	Classify(err error) CommitClass
}

// AccountRepository defines data access for accounts.
type AccountRepository interface {
	Create(ctx context.Context, tx Transaction, account *domain.Account) error
	GetByID(ctx context.Context, tx Transaction, id domain.AccountID) (*domain.Account, error)
	List(ctx context.Context, tx Transaction, limit, offset int) ([]*domain.Account, error)
}

// LedgerRepository defines data access for ledger-wide operations.
type LedgerRepository interface {
	Snapshot(ctx context.Context, tx Transaction) (*domain.LedgerSnapshot, error)
}

// TransferRecorder receives the caller-visible outcome of every transfer.
type TransferRecorder interface {
	// RecordTransfer is called once per transfer; outcome is OutcomeCommitted
	// or the name of the failure kind.
	RecordTransfer(outcome string, elapsed time.Duration, attempts int)
	RecordConflict()
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a key whose request did not complete, so it can be retried.
	Release(ctx context.Context, key string) error
}
