package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/occledger/internal/domain"
)

// reporter measures a whole transfer, queueing for the connection included,
// and publishes elapsed time and attempts next to the business result.
type reporter struct {
	recorder TransferRecorder
	now      func() time.Time
}

type transferFunc func(ctx context.Context) (decimal.Decimal, int, error)

func (r *reporter) report(ctx context.Context, id string, fn transferFunc) (*domain.TransferResult, error) {
	start := r.now()

	balance, attempts, err := fn(ctx)

	elapsed := r.now().Sub(start)
	logger := zerolog.Ctx(ctx)

	if err != nil {
		kind := domain.KindOf(err)
		r.recorder.RecordTransfer(kind.String(), elapsed, attempts)

		event := logger.Error()
		if kind.Business() {
			event = logger.Info()
		}
		event.Err(err).
			Str("outcome", kind.String()).
			Int("attempts", attempts).
			Str("transaction_time", domain.FormatMillis(elapsed)).
			Msg("transfer failed")

		return nil, err
	}

	r.recorder.RecordTransfer(OutcomeCommitted, elapsed, attempts)
	logger.Info().
		Str("payer_balance", balance.String()).
		Int("attempts", attempts).
		Str("transaction_time", domain.FormatMillis(elapsed)).
		Msg("transfer committed")

	return &domain.TransferResult{
		ID:           id,
		PayerBalance: balance,
		Elapsed:      elapsed,
		Attempts:     attempts,
	}, nil
}

type nopRecorder struct{}

func (nopRecorder) RecordTransfer(string, time.Duration, int) {}

func (nopRecorder) RecordConflict() {}
