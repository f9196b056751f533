package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/occledger/internal/domain"
)

// attemptState is the position of the OCC loop.
type attemptState int

const (
	stateAttempting attemptState = iota
	stateDone
	stateAborted
)

// occController owns the attempt loop of one transfer on one lent connection.
type occController struct {
	executor   TransferExecutor
	classifier ConflictClassifier
	recorder   TransferRecorder
	policy     RetryPolicy
}

// run executes attempts until one commits, a business rule fails, or an
// attempt fails with anything but a serialization conflict.
func (c *occController) run(ctx context.Context, tm TransactionManager, req domain.TransferRequest) (decimal.Decimal, int, error) {
	logger := zerolog.Ctx(ctx)
	pacing := c.policy.backOff()

	var (
		attempts int
		balance  decimal.Decimal
		failure  error
	)

	for state := stateAttempting; state == stateAttempting; {
		attempts++

		var err error
		balance, err = c.attempt(ctx, tm, req)

		switch {
		case err == nil:
			state = stateDone
		case !c.retryable(err):
			failure, state = attemptFailure(req, attempts, err), stateAborted
		default:
			c.recorder.RecordConflict()
			logger.Debug().
				Int("attempt", attempts).
				Err(err).
				Msg("serialization conflict, retrying")

			if c.policy.exhausted(attempts) {
				failure, state = conflictFailure(req, attempts, err), stateAborted
				break
			}

			wait := pacing.NextBackOff()
			if wait == backoff.Stop {
				failure, state = conflictFailure(req, attempts, err), stateAborted
				break
			}

			if err := pause(ctx, wait); err != nil {
				failure, state = attemptFailure(req, attempts, err), stateAborted
			}
		}
	}

	if failure != nil {
		return decimal.Zero, attempts, failure
	}

	return balance, attempts, nil
}

// retryable asks the classifier about a failed attempt. Business outcomes are
// final whatever their cause; everything else, including a conflict raised by
// an UPDATE before commit, is the classifier's call.
func (c *occController) retryable(err error) bool {
	var te *domain.TransferError
	if errors.As(err, &te) {
		return false
	}
	return c.classifier.Classify(err) == CommitRetryable
}

// attempt runs one transaction: the speculative debit and credit, then commit.
func (c *occController) attempt(ctx context.Context, tm TransactionManager, req domain.TransferRequest) (decimal.Decimal, error) {
	tx, err := tm.Begin(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	balance, err := c.executor.Execute(ctx, tx, req)
	if err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, err
	}

	return balance, nil
}

// rollback discards an attempt. It runs after commit too, where it is a no-op,
// and outlives a cancelled caller context so the connection is not left mid-transaction.
func rollback(ctx context.Context, tx Transaction) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	_ = tx.Rollback(ctx)
}

func attemptFailure(req domain.TransferRequest, attempts int, err error) error {
	var te *domain.TransferError
	if errors.As(err, &te) {
		te.PayerID = req.PayerID
		te.PayeeID = req.PayeeID
		te.Attempts = attempts
		return te
	}

	return &domain.TransferError{
		Kind:     domain.KindFatal,
		PayerID:  req.PayerID,
		PayeeID:  req.PayeeID,
		Attempts: attempts,
		Err:      err,
	}
}

func conflictFailure(req domain.TransferRequest, attempts int, err error) error {
	return &domain.TransferError{
		Kind:     domain.KindRetryableConflict,
		PayerID:  req.PayerID,
		PayeeID:  req.PayeeID,
		Attempts: attempts,
		Err:      fmt.Errorf("%w: %w", domain.ErrConflictRetriesExhausted, err),
	}
}
