package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/occledger/internal/domain"
	"github.com/iho/occledger/internal/usecase"
)

const ledgerSnapshotSQL = `
SELECT count(*),
       count(*) FILTER (WHERE balance < 0),
       COALESCE(sum(balance), 0)
FROM accounts`

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct{}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{}
}

// Snapshot counts accounts and negative balances and sums all balances.
func (r *LedgerRepository) Snapshot(ctx context.Context, tx usecase.Transaction) (*domain.LedgerSnapshot, error) {
	ptx, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}

	var (
		snapshot domain.LedgerSnapshot
		total    pgtype.Numeric
	)
	if err := ptx.QueryRow(ctx, ledgerSnapshotSQL).Scan(&snapshot.Accounts, &snapshot.Negative, &total); err != nil {
		return nil, err
	}

	snapshot.Total, err = numericToDecimal(total)
	if err != nil {
		return nil, err
	}

	return &snapshot, nil
}
