package usecase_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/iho/occledger/internal/domain"
	"github.com/iho/occledger/internal/usecase"
)

var errSerialization = errors.New("could not serialize access due to read/write dependencies among transactions")

// memLedger is an in-memory accounts table behind a single connection.
// Writes are staged per transaction and applied on commit. The next
// failCommits commits fail with errSerialization without applying anything.
type memLedger struct {
	mu       sync.Mutex
	balances map[domain.AccountID]decimal.Decimal

	failCommits atomic.Int32
	commits     atomic.Int32

	slot    chan struct{}
	holders atomic.Int32
	overlap atomic.Bool
}

func newMemLedger(balances map[domain.AccountID]string) *memLedger {
	l := &memLedger{
		balances: make(map[domain.AccountID]decimal.Decimal, len(balances)),
		slot:     make(chan struct{}, 1),
	}
	for id, b := range balances {
		l.balances[id] = decimal.RequireFromString(b)
	}
	return l
}

func (l *memLedger) balance(id domain.AccountID) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[id]
}

func (l *memLedger) total() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	sum := decimal.Zero
	for _, b := range l.balances {
		sum = sum.Add(b)
	}
	return sum
}

func (l *memLedger) Acquire(ctx context.Context) (usecase.Lease, error) {
	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if l.holders.Add(1) > 1 {
		l.overlap.Store(true)
	}
	return &memLease{ledger: l}, nil
}

type memLease struct {
	ledger   *memLedger
	released bool
}

func (m *memLease) Begin(context.Context) (usecase.Transaction, error) {
	return &memTx{ledger: m.ledger, staged: map[domain.AccountID]decimal.Decimal{}}, nil
}

func (m *memLease) Ping(context.Context) error { return nil }

func (m *memLease) Release() {
	if m.released {
		return
	}
	m.released = true
	m.ledger.holders.Add(-1)
	<-m.ledger.slot
}

type memTx struct {
	ledger *memLedger
	staged map[domain.AccountID]decimal.Decimal
	done   bool
}

func (tx *memTx) read(id domain.AccountID) (decimal.Decimal, bool) {
	if b, ok := tx.staged[id]; ok {
		return b, true
	}
	tx.ledger.mu.Lock()
	defer tx.ledger.mu.Unlock()
	b, ok := tx.ledger.balances[id]
	return b, ok
}

func (tx *memTx) Commit(context.Context) error {
	if tx.done {
		return errors.New("transaction already closed")
	}
	tx.done = true

	if tx.ledger.failCommits.Add(-1) >= 0 {
		return errSerialization
	}

	tx.ledger.mu.Lock()
	defer tx.ledger.mu.Unlock()
	for id, b := range tx.staged {
		tx.ledger.balances[id] = b
	}
	tx.ledger.commits.Add(1)
	return nil
}

func (tx *memTx) Rollback(context.Context) error {
	tx.done = true
	return nil
}

// memExecutor applies the same debit-then-credit statements the database
// executor runs, against memTx staging.
type memExecutor struct{}

func (memExecutor) Execute(_ context.Context, t usecase.Transaction, req domain.TransferRequest) (decimal.Decimal, error) {
	tx := t.(*memTx)

	payer, ok := tx.read(req.PayerID)
	if !ok {
		return decimal.Zero, &domain.TransferError{Kind: domain.KindPayerNotFound, Err: domain.ErrPayerNotFound}
	}
	payer = payer.Sub(req.Amount)
	tx.staged[req.PayerID] = payer

	if payer.IsNegative() {
		return decimal.Zero, &domain.TransferError{
			Kind:    domain.KindInsufficientFunds,
			Balance: payer,
			Err:     domain.ErrInsufficientFunds,
		}
	}

	payee, ok := tx.read(req.PayeeID)
	if !ok {
		return decimal.Zero, &domain.TransferError{Kind: domain.KindPayeeNotFound, Err: domain.ErrPayeeNotFound}
	}
	tx.staged[req.PayeeID] = payee.Add(req.Amount)

	return payer, nil
}

type memClassifier struct{}

func (memClassifier) Classify(err error) usecase.CommitClass {
	if errors.Is(err, errSerialization) {
		return usecase.CommitRetryable
	}
	return usecase.CommitFatal
}

type memAccounts struct{ ledger *memLedger }

func (r memAccounts) Create(_ context.Context, _ usecase.Transaction, account *domain.Account) error {
	r.ledger.mu.Lock()
	defer r.ledger.mu.Unlock()
	if _, ok := r.ledger.balances[account.ID]; ok {
		return domain.ErrAccountExists
	}
	r.ledger.balances[account.ID] = account.Balance
	return nil
}

func (r memAccounts) GetByID(_ context.Context, _ usecase.Transaction, id domain.AccountID) (*domain.Account, error) {
	r.ledger.mu.Lock()
	defer r.ledger.mu.Unlock()
	b, ok := r.ledger.balances[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &domain.Account{ID: id, Balance: b}, nil
}

func (r memAccounts) List(context.Context, usecase.Transaction, int, int) ([]*domain.Account, error) {
	return nil, errors.New("not implemented")
}

type seqIDs struct{ n atomic.Int64 }

func (g *seqIDs) Generate() string {
	return strconv.FormatInt(g.n.Add(1), 10)
}

func newMemTransferUseCase(l *memLedger, policy usecase.RetryPolicy) *usecase.TransferUseCase {
	return usecase.NewTransferUseCase(l, memExecutor{}, memClassifier{}, &seqIDs{}, nil, policy)
}
