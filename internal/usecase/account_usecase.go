package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/occledger/internal/domain"
)

// AccountUseCase handles account reads and seeding. It borrows the same
// guarded connection as transfers.
type AccountUseCase struct {
	lender      ConnectionLender
	accountRepo AccountRepository
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(lender ConnectionLender, accountRepo AccountRepository) *AccountUseCase {
	return &AccountUseCase{
		lender:      lender,
		accountRepo: accountRepo,
	}
}

// CreateAccountInput represents input for seeding an account.
type CreateAccountInput struct {
	ID      domain.AccountID
	Balance decimal.Decimal
}

// CreateAccount inserts an account with an opening balance.
func (uc *AccountUseCase) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	if err := domain.ValidateAccountID(input.ID); err != nil {
		return nil, err
	}

	if err := domain.ValidateOpeningBalance(input.Balance); err != nil {
		return nil, err
	}

	account := &domain.Account{
		ID:        input.ID,
		Balance:   input.Balance,
		UpdatedAt: time.Now().UTC(),
	}

	err := inTransaction(ctx, uc.lender, func(tx Transaction) error {
		return uc.accountRepo.Create(ctx, tx, account)
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

// GetAccount reads the committed balance of an account.
func (uc *AccountUseCase) GetAccount(ctx context.Context, id domain.AccountID) (*domain.Account, error) {
	if err := domain.ValidateAccountID(id); err != nil {
		return nil, err
	}

	var account *domain.Account
	err := inTransaction(ctx, uc.lender, func(tx Transaction) error {
		var err error
		account, err = uc.accountRepo.GetByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

// ListAccountsInput represents input for listing accounts.
type ListAccountsInput struct {
	Limit  int
	Offset int
}

// ListAccounts lists accounts with pagination.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, input ListAccountsInput) ([]*domain.Account, error) {
	limit, offset := domain.ValidatePagination(input.Limit, input.Offset)

	var accounts []*domain.Account
	err := inTransaction(ctx, uc.lender, func(tx Transaction) error {
		var err error
		accounts, err = uc.accountRepo.List(ctx, tx, limit, offset)
		return err
	})
	if err != nil {
		return nil, err
	}

	return accounts, nil
}

// inTransaction borrows a connection, runs fn in one transaction and commits.
func inTransaction(ctx context.Context, lender ConnectionLender, fn func(tx Transaction) error) error {
	lease, err := lender.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	tx, err := lease.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
