package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"github.com/iho/occledger/internal/domain"
	"github.com/iho/occledger/internal/usecase"
)

var accountColumns = []string{"id", "balance", "updated_at"}

type accountRow struct {
	ID        string          `db:"id"`
	Balance   decimal.Decimal `db:"balance"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r accountRow) toDomain() *domain.Account {
	return &domain.Account{
		ID:        domain.AccountID(r.ID),
		Balance:   r.Balance,
		UpdatedAt: r.UpdatedAt,
	}
}

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct{}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create inserts an account with its opening balance.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	ptx, err := pgxTx(tx)
	if err != nil {
		return err
	}

	balance, err := decimalToNumeric(account.Balance)
	if err != nil {
		return err
	}

	sql, args, err := builder().
		Insert("accounts").
		Columns(accountColumns...).
		Values(account.ID.String(), balance, account.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := ptx.Exec(ctx, sql, args...); err != nil {
		if sqlState(err) == pgErrUniqueViolation {
			return fmt.Errorf("%w: %s", domain.ErrAccountExists, account.ID)
		}
		return err
	}

	return nil
}

// GetByID reads the committed balance of one account.
func (r *AccountRepository) GetByID(ctx context.Context, tx usecase.Transaction, id domain.AccountID) (*domain.Account, error) {
	ptx, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}

	sql, args, err := builder().
		Select(accountColumns...).
		From("accounts").
		Where(squirrel.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var row accountRow
	if err := pgxscan.Get(ctx, ptx, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}

	return row.toDomain(), nil
}

// List returns accounts ordered by id.
func (r *AccountRepository) List(ctx context.Context, tx usecase.Transaction, limit, offset int) ([]*domain.Account, error) {
	ptx, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}

	sql, args, err := builder().
		Select(accountColumns...).
		From("accounts").
		OrderBy("id").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var rows []accountRow
	if err := pgxscan.Select(ctx, ptx, &rows, sql, args...); err != nil {
		return nil, err
	}

	accounts := make([]*domain.Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, row.toDomain())
	}

	return accounts, nil
}
