package usecase_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/occledger/internal/domain"
	"github.com/iho/occledger/internal/usecase"
	"github.com/iho/occledger/internal/usecase/mocks"
)

func TestLedgerUseCase_CheckConsistency(t *testing.T) {
	tests := []struct {
		name     string
		snapshot *domain.LedgerSnapshot
		wantErr  error
	}{
		{
			name:     "consistent",
			snapshot: &domain.LedgerSnapshot{Accounts: 3, Total: decimal.RequireFromString("300.00")},
		},
		{
			name:     "negative balance",
			snapshot: &domain.LedgerSnapshot{Accounts: 3, Negative: 1, Total: decimal.RequireFromString("300.00")},
			wantErr:  usecase.ErrInconsistentLedger,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := mocks.NewMockLedgerRepository(ctrl)
			lender, tx := expectTransaction(ctrl, true)

			repo.EXPECT().Snapshot(gomock.Any(), tx).Return(tt.snapshot, nil)

			snapshot, err := usecase.NewLedgerUseCase(lender, repo).CheckConsistency(context.Background())
			require.NotNil(t, snapshot)
			assert.Equal(t, tt.snapshot.Accounts, snapshot.Accounts)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
