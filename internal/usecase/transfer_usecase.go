package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/occledger/internal/domain"
)

// TransferUseCase moves funds between two accounts under optimistic
// concurrency control on a single lent connection.
type TransferUseCase struct {
	lender     ConnectionLender
	idGen      IDGenerator
	controller *occController
	reporter   *reporter
}

// NewTransferUseCase creates a new TransferUseCase. A nil recorder discards metrics.
func NewTransferUseCase(
	lender ConnectionLender,
	executor TransferExecutor,
	classifier ConflictClassifier,
	idGen IDGenerator,
	recorder TransferRecorder,
	policy RetryPolicy,
) *TransferUseCase {
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &TransferUseCase{
		lender: lender,
		idGen:  idGen,
		controller: &occController{
			executor:   executor,
			classifier: classifier,
			recorder:   recorder,
			policy:     policy,
		},
		reporter: &reporter{
			recorder: recorder,
			now:      time.Now,
		},
	}
}

// Transfer debits req.Amount from the payer and credits it to the payee in one
// committed transaction, retrying serialization conflicts per the retry policy.
func (uc *TransferUseCase) Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	id := uc.idGen.Generate()

	logger := zerolog.Ctx(ctx).With().
		Str("transfer_id", id).
		Str("payer_id", req.PayerID.String()).
		Str("payee_id", req.PayeeID.String()).
		Str("amount", req.Amount.String()).
		Logger()
	ctx = logger.WithContext(ctx)

	return uc.reporter.report(ctx, id, func(ctx context.Context) (decimal.Decimal, int, error) {
		// rejected requests never touch the connection
		if err := req.Validate(); err != nil {
			return decimal.Zero, 0, err
		}

		lease, err := uc.lender.Acquire(ctx)
		if err != nil {
			return decimal.Zero, 0, attemptFailure(req, 0, err)
		}
		defer lease.Release()

		return uc.controller.run(ctx, lease, req)
	})
}
