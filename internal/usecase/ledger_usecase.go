package usecase

import (
	"context"
	"errors"

	"github.com/iho/occledger/internal/domain"
)

var (
	// ErrInconsistentLedger is returned when a committed balance is negative.
	ErrInconsistentLedger = errors.New("ledger is inconsistent: negative committed balance")
)

// LedgerUseCase handles ledger-wide operations.
type LedgerUseCase struct {
	lender     ConnectionLender
	ledgerRepo LedgerRepository
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(lender ConnectionLender, ledgerRepo LedgerRepository) *LedgerUseCase {
	return &LedgerUseCase{
		lender:     lender,
		ledgerRepo: ledgerRepo,
	}
}

// CheckConsistency takes a snapshot of the ledger and verifies that no
// committed balance is negative. The snapshot is returned either way.
func (uc *LedgerUseCase) CheckConsistency(ctx context.Context) (*domain.LedgerSnapshot, error) {
	var snapshot *domain.LedgerSnapshot
	err := inTransaction(ctx, uc.lender, func(tx Transaction) error {
		var err error
		snapshot, err = uc.ledgerRepo.Snapshot(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !snapshot.Consistent() {
		return snapshot, ErrInconsistentLedger
	}

	return snapshot, nil
}
