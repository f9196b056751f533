package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/iho/occledger/internal/adapter/http/dto"
	"github.com/iho/occledger/internal/domain"
)

// TransferService defines the behavior needed by TransferHandler.
type TransferService interface {
	Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error)
}

// TransferHandler handles transfer-related HTTP requests.
type TransferHandler struct {
	transferUC TransferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferUC TransferService) *TransferHandler {
	return &TransferHandler{transferUC: transferUC}
}

// Create moves funds from payer to payee.
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.transferUC.Transfer(r.Context(), req.ToDomain())
	if err != nil {
		writeJSON(w, mapDomainError(err), dto.TransferErrorFrom("transfer failed", err))
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransferFromDomain(result))
}
