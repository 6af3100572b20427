package handler

import (
	"strconv"

	"splatchain-ledger/internal/adapter/http/dto"
	"splatchain-ledger/internal/core/ports"
	"splatchain-ledger/pkg/apperror"
	"splatchain-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// HistoryHandler serves a wallet's audit trail.
type HistoryHandler struct {
	ledger ports.LedgerService
	repo   ports.AuditRepository
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(ledger ports.LedgerService, repo ports.AuditRepository) *HistoryHandler {
	return &HistoryHandler{ledger: ledger, repo: repo}
}

// List handles GET /api/v1/wallets/:id/history?limit=.
func (h *HistoryHandler) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit < 1 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	w, err := h.ledger.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	logs, err := h.repo.ListByAddress(c.Request.Context(), w.Address, limit)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	items := make([]dto.AuditEntryResponse, 0, len(logs))
	for _, l := range logs {
		items = append(items, dto.NewAuditEntryResponse(l))
	}
	response.OK(c, dto.HistoryResponse{Address: w.Address, Items: items})
}
