package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/iho/occledger/internal/adapter/http/dto"
	"github.com/iho/occledger/internal/domain"
	"github.com/iho/occledger/internal/usecase"
)

// LedgerService defines the behavior needed by LedgerHandler.
type LedgerService interface {
	CheckConsistency(ctx context.Context) (*domain.LedgerSnapshot, error)
}

// LedgerHandler handles ledger-wide requests.
type LedgerHandler struct {
	ledgerUC LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerUC LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerUC: ledgerUC}
}

// Consistency reports account count, total balance and negative balances.
// An inconsistent ledger is still a 200: the body carries the verdict.
func (h *LedgerHandler) Consistency(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.ledgerUC.CheckConsistency(r.Context())
	if err != nil && !errors.Is(err, usecase.ErrInconsistentLedger) {
		writeError(w, http.StatusInternalServerError, "failed to check ledger", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.LedgerFromDomain(snapshot))
}
