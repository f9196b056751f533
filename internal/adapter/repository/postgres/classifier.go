package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iho/occledger/internal/usecase"
)

// PostgreSQL error codes.
const (
	pgErrSerializationFailure = "40001"
	pgErrUniqueViolation      = "23505"
)

// ConflictClassifier implements usecase.ConflictClassifier.
// Only serialization failures are retryable; deadlocks are not expected
// from two single-row updates and surface as fatal.
type ConflictClassifier struct{}

// NewConflictClassifier creates a new ConflictClassifier.
func NewConflictClassifier() ConflictClassifier {
	return ConflictClassifier{}
}

// Classify returns CommitRetryable for SQLSTATE 40001 and CommitFatal otherwise.
func (ConflictClassifier) Classify(err error) usecase.CommitClass {
	if sqlState(err) == pgErrSerializationFailure {
		return usecase.CommitRetryable
	}
	return usecase.CommitFatal
}

// sqlState extracts the SQLSTATE of a server error, or "".
func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
