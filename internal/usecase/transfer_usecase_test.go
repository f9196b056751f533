package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/occledger/internal/adapter/repository/postgres"
	"github.com/iho/occledger/internal/domain"
	"github.com/iho/occledger/internal/usecase"
	"github.com/iho/occledger/internal/usecase/mocks"
)

type transferFixture struct {
	ctrl       *gomock.Controller
	lender     *mocks.MockConnectionLender
	lease      *mocks.MockLease
	tx         *mocks.MockTransaction
	executor   *mocks.MockTransferExecutor
	classifier *mocks.MockConflictClassifier
	recorder   *mocks.MockTransferRecorder
	idGen      *mocks.MockIDGenerator
}

func newTransferFixture(t *testing.T) *transferFixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	f := &transferFixture{
		ctrl:       ctrl,
		lender:     mocks.NewMockConnectionLender(ctrl),
		lease:      mocks.NewMockLease(ctrl),
		tx:         mocks.NewMockTransaction(ctrl),
		executor:   mocks.NewMockTransferExecutor(ctrl),
		classifier: mocks.NewMockConflictClassifier(ctrl),
		recorder:   mocks.NewMockTransferRecorder(ctrl),
		idGen:      mocks.NewMockIDGenerator(ctrl),
	}
	f.idGen.EXPECT().Generate().Return("01JTRANSFER").AnyTimes()

	return f
}

func (f *transferFixture) useCase(policy usecase.RetryPolicy) *usecase.TransferUseCase {
	return usecase.NewTransferUseCase(f.lender, f.executor, f.classifier, f.idGen, f.recorder, policy)
}

// expectLease expects one acquisition, one release and attempts transactions.
func (f *transferFixture) expectLease(attempts int) {
	f.lender.EXPECT().Acquire(gomock.Any()).Return(f.lease, nil)
	f.lease.EXPECT().Release()
	f.lease.EXPECT().Begin(gomock.Any()).Return(f.tx, nil).Times(attempts)
	f.tx.EXPECT().Rollback(gomock.Any()).Return(nil).Times(attempts)
}

func transferAtoB() domain.TransferRequest {
	return domain.TransferRequest{
		PayerID: "1",
		PayeeID: "2",
		Amount:  decimal.RequireFromString("30.00"),
	}
}

func TestTransferUseCase_CommitsFirstAttempt(t *testing.T) {
	f := newTransferFixture(t)
	req := transferAtoB()

	f.expectLease(1)
	f.executor.EXPECT().Execute(gomock.Any(), f.tx, req).Return(decimal.RequireFromString("70.00"), nil)
	f.tx.EXPECT().Commit(gomock.Any()).Return(nil)
	f.recorder.EXPECT().RecordTransfer(usecase.OutcomeCommitted, gomock.Any(), 1)

	result, err := f.useCase(usecase.UnboundedRetry()).Transfer(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "01JTRANSFER", result.ID)
	assert.True(t, result.PayerBalance.Equal(decimal.RequireFromString("70.00")))
	assert.Equal(t, 1, result.Attempts)
}

func TestTransferUseCase_RetriesConflictsUntilCommit(t *testing.T) {
	const conflicts = 4

	f := newTransferFixture(t)
	req := transferAtoB()
	conflict := errors.New("commit: could not serialize access")

	f.expectLease(conflicts + 1)
	f.executor.EXPECT().Execute(gomock.Any(), f.tx, req).
		Return(decimal.RequireFromString("70.00"), nil).
		Times(conflicts + 1)
	gomock.InOrder(
		f.tx.EXPECT().Commit(gomock.Any()).Return(conflict).Times(conflicts),
		f.tx.EXPECT().Commit(gomock.Any()).Return(nil),
	)
	f.classifier.EXPECT().Classify(conflict).Return(usecase.CommitRetryable).Times(conflicts)
	f.recorder.EXPECT().RecordConflict().Times(conflicts)
	f.recorder.EXPECT().RecordTransfer(usecase.OutcomeCommitted, gomock.Any(), conflicts+1)

	result, err := f.useCase(usecase.UnboundedRetry()).Transfer(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, conflicts+1, result.Attempts)
	assert.True(t, result.PayerBalance.Equal(decimal.RequireFromString("70.00")),
		"retried transfer must report the same balance as an uncontended one")
}

func TestTransferUseCase_SameAccountNeverTouchesConnection(t *testing.T) {
	f := newTransferFixture(t)
	req := domain.TransferRequest{PayerID: "1", PayeeID: "1", Amount: decimal.NewFromInt(5)}

	// no Acquire expectation: any call fails the test
	f.recorder.EXPECT().RecordTransfer("invalid_request", gomock.Any(), 0)

	result, err := f.useCase(usecase.UnboundedRetry()).Transfer(context.Background(), req)
	require.Error(t, err)
	assert.Nil(t, result)

	assert.ErrorIs(t, err, domain.ErrSameAccount)
	assert.Equal(t, domain.KindInvalidRequest, domain.KindOf(err))
	assert.Equal(t, 0, domain.AttemptsOf(err))
	assert.Contains(t, err.Error(), "Payer and payee must be different accounts")
}

func TestTransferUseCase_BusinessFailuresAreNotRetried(t *testing.T) {
	tests := []struct {
		name     string
		failure  *domain.TransferError
		sentinel error
		kind     domain.ErrorKind
	}{
		{
			name: "insufficient funds",
			failure: &domain.TransferError{
				Kind:    domain.KindInsufficientFunds,
				Balance: decimal.RequireFromString("-120.00"),
				Err:     domain.ErrInsufficientFunds,
			},
			sentinel: domain.ErrInsufficientFunds,
			kind:     domain.KindInsufficientFunds,
		},
		{
			name:     "payee not found",
			failure:  &domain.TransferError{Kind: domain.KindPayeeNotFound, Err: domain.ErrPayeeNotFound},
			sentinel: domain.ErrPayeeNotFound,
			kind:     domain.KindPayeeNotFound,
		},
		{
			name:     "payer not found",
			failure:  &domain.TransferError{Kind: domain.KindPayerNotFound, Err: domain.ErrPayerNotFound},
			sentinel: domain.ErrPayerNotFound,
			kind:     domain.KindPayerNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTransferFixture(t)
			req := transferAtoB()

			f.expectLease(1)
			f.executor.EXPECT().Execute(gomock.Any(), f.tx, req).Return(decimal.Zero, tt.failure)
			// no Commit or Classify expectation: a business failure is final
			f.recorder.EXPECT().RecordTransfer(tt.kind.String(), gomock.Any(), 1)

			_, err := f.useCase(usecase.UnboundedRetry()).Transfer(context.Background(), req)
			require.Error(t, err)

			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.kind, domain.KindOf(err))
			assert.Equal(t, 1, domain.AttemptsOf(err))

			var te *domain.TransferError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, req.PayerID, te.PayerID)
			assert.Equal(t, req.PayeeID, te.PayeeID)
		})
	}
}

func TestTransferUseCase_FatalCommitErrorPropagates(t *testing.T) {
	f := newTransferFixture(t)
	req := transferAtoB()
	commitErr := errors.New("connection reset by peer")

	f.expectLease(1)
	f.executor.EXPECT().Execute(gomock.Any(), f.tx, req).Return(decimal.RequireFromString("70.00"), nil)
	f.tx.EXPECT().Commit(gomock.Any()).Return(commitErr)
	f.classifier.EXPECT().Classify(commitErr).Return(usecase.CommitFatal)
	f.recorder.EXPECT().RecordTransfer("fatal", gomock.Any(), 1)

	_, err := f.useCase(usecase.UnboundedRetry()).Transfer(context.Background(), req)
	require.Error(t, err)

	assert.ErrorIs(t, err, commitErr)
	assert.Equal(t, domain.KindFatal, domain.KindOf(err))
	assert.Equal(t, 1, domain.AttemptsOf(err))
}

func TestTransferUseCase_ExecutorErrorIsFatal(t *testing.T) {
	f := newTransferFixture(t)
	req := transferAtoB()
	queryErr := errors.New("syntax error at or near UPDATE")

	f.expectLease(1)
	f.executor.EXPECT().Execute(gomock.Any(), f.tx, req).Return(decimal.Zero, queryErr)
	f.classifier.EXPECT().Classify(queryErr).Return(usecase.CommitFatal)
	f.recorder.EXPECT().RecordTransfer("fatal", gomock.Any(), 1)

	_, err := f.useCase(usecase.UnboundedRetry()).Transfer(context.Background(), req)

	assert.ErrorIs(t, err, queryErr)
	assert.Equal(t, domain.KindFatal, domain.KindOf(err))
}

func TestTransferUseCase_RetriesStatementConflict(t *testing.T) {
	f := newTransferFixture(t)
	req := transferAtoB()
	// under SERIALIZABLE the second writer of a row fails on the UPDATE itself
	updateErr := fmt.Errorf("credit payee: %w", &pgconn.PgError{
		Code:    "40001",
		Message: "could not serialize access due to concurrent update",
	})

	f.expectLease(2)
	gomock.InOrder(
		f.executor.EXPECT().Execute(gomock.Any(), f.tx, req).Return(decimal.Zero, updateErr),
		f.executor.EXPECT().Execute(gomock.Any(), f.tx, req).Return(decimal.RequireFromString("70.00"), nil),
	)
	f.tx.EXPECT().Commit(gomock.Any()).Return(nil)
	f.recorder.EXPECT().RecordConflict()
	f.recorder.EXPECT().RecordTransfer(usecase.OutcomeCommitted, gomock.Any(), 2)

	uc := usecase.NewTransferUseCase(f.lender, f.executor, postgres.NewConflictClassifier(), f.idGen, f.recorder, usecase.UnboundedRetry())
	result, err := uc.Transfer(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Attempts)
	assert.True(t, result.PayerBalance.Equal(decimal.RequireFromString("70.00")))
}

func TestTransferUseCase_MaxAttemptsStopsConflictLoop(t *testing.T) {
	f := newTransferFixture(t)
	req := transferAtoB()
	conflict := errors.New("commit: could not serialize access")

	f.expectLease(3)
	f.executor.EXPECT().Execute(gomock.Any(), f.tx, req).Return(decimal.RequireFromString("70.00"), nil).Times(3)
	f.tx.EXPECT().Commit(gomock.Any()).Return(conflict).Times(3)
	f.classifier.EXPECT().Classify(conflict).Return(usecase.CommitRetryable).Times(3)
	f.recorder.EXPECT().RecordConflict().Times(3)
	f.recorder.EXPECT().RecordTransfer("retryable_conflict", gomock.Any(), 3)

	policy := usecase.ExponentialRetry(3, time.Millisecond, 2*time.Millisecond)
	_, err := f.useCase(policy).Transfer(context.Background(), req)
	require.Error(t, err)

	assert.ErrorIs(t, err, domain.ErrConflictRetriesExhausted)
	assert.ErrorIs(t, err, conflict)
	assert.Equal(t, domain.KindRetryableConflict, domain.KindOf(err))
	assert.Equal(t, 3, domain.AttemptsOf(err))
}

func TestTransferUseCase_AcquireFailureChargesNoAttempt(t *testing.T) {
	f := newTransferFixture(t)

	f.lender.EXPECT().Acquire(gomock.Any()).Return(nil, context.DeadlineExceeded)
	f.recorder.EXPECT().RecordTransfer("fatal", gomock.Any(), 0)

	_, err := f.useCase(usecase.UnboundedRetry()).Transfer(context.Background(), transferAtoB())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, domain.AttemptsOf(err))
}

func TestTransferUseCase_CancelledBetweenConflictsReleasesConnection(t *testing.T) {
	f := newTransferFixture(t)
	req := transferAtoB()
	conflict := errors.New("commit: could not serialize access")
	ctx, cancel := context.WithCancel(context.Background())

	f.expectLease(1)
	f.executor.EXPECT().Execute(gomock.Any(), f.tx, req).Return(decimal.RequireFromString("70.00"), nil)
	f.tx.EXPECT().Commit(gomock.Any()).DoAndReturn(func(context.Context) error {
		cancel()
		return conflict
	})
	f.classifier.EXPECT().Classify(conflict).Return(usecase.CommitRetryable)
	f.recorder.EXPECT().RecordConflict()
	f.recorder.EXPECT().RecordTransfer("fatal", gomock.Any(), 1)

	_, err := f.useCase(usecase.UnboundedRetry()).Transfer(ctx, req)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransferUseCase_ElapsedIncludesQueueing(t *testing.T) {
	const queued = 20 * time.Millisecond

	f := newTransferFixture(t)
	req := transferAtoB()

	f.lender.EXPECT().Acquire(gomock.Any()).DoAndReturn(func(context.Context) (usecase.Lease, error) {
		time.Sleep(queued)
		return f.lease, nil
	})
	f.lease.EXPECT().Release()
	f.lease.EXPECT().Begin(gomock.Any()).Return(f.tx, nil)
	f.tx.EXPECT().Rollback(gomock.Any()).Return(nil)
	f.executor.EXPECT().Execute(gomock.Any(), f.tx, req).Return(decimal.RequireFromString("70.00"), nil)
	f.tx.EXPECT().Commit(gomock.Any()).Return(nil)

	var recorded time.Duration
	f.recorder.EXPECT().RecordTransfer(usecase.OutcomeCommitted, gomock.Any(), 1).
		Do(func(_ string, elapsed time.Duration, _ int) { recorded = elapsed })

	result, err := f.useCase(usecase.UnboundedRetry()).Transfer(context.Background(), req)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.Elapsed, queued)
	assert.Equal(t, result.Elapsed, recorded)
}

func TestTransferUseCase_LogLevelFollowsOutcome(t *testing.T) {
	tests := []struct {
		name      string
		req       domain.TransferRequest
		setup     func(f *transferFixture)
		wantLevel string
		wantKind  string
	}{
		{
			name:      "rejected request is expected",
			req:       domain.TransferRequest{PayerID: "1", PayeeID: "2", Amount: decimal.RequireFromString("0.005")},
			setup:     func(*transferFixture) {},
			wantLevel: "info",
			wantKind:  "invalid_request",
		},
		{
			name: "lost connection needs an operator",
			req:  transferAtoB(),
			setup: func(f *transferFixture) {
				f.lender.EXPECT().Acquire(gomock.Any()).Return(nil, errors.New("connection closed"))
			},
			wantLevel: "error",
			wantKind:  "fatal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTransferFixture(t)
			tt.setup(f)
			f.recorder.EXPECT().RecordTransfer(tt.wantKind, gomock.Any(), 0)

			var buf bytes.Buffer
			ctx := zerolog.New(&buf).WithContext(context.Background())

			_, err := f.useCase(usecase.UnboundedRetry()).Transfer(ctx, tt.req)
			require.Error(t, err)

			assert.Contains(t, buf.String(), `"level":"`+tt.wantLevel+`"`)
			assert.Contains(t, buf.String(), `"outcome":"`+tt.wantKind+`"`)
		})
	}
}
