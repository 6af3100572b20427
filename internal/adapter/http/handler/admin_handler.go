package handler

import (
	"context"
	"encoding/json"

	"splatchain-ledger/internal/adapter/http/dto"
	"splatchain-ledger/internal/adapter/http/middleware"
	"splatchain-ledger/internal/core/domain"
	"splatchain-ledger/internal/core/ports"
	"splatchain-ledger/pkg/apperror"
	"splatchain-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// Reloader runs a reconciliation pass against durable storage.
type Reloader interface {
	Trigger(ctx context.Context) (*ports.ReloadResult, error)
}

// AdminHandler serves operational endpoints.
type AdminHandler struct {
	reloader Reloader
	ledger   ports.LedgerService
	audit    ports.AuditService
}

// NewAdminHandler creates a new AdminHandler. audit may be nil.
func NewAdminHandler(reloader Reloader, ledger ports.LedgerService, audit ports.AuditService) *AdminHandler {
	return &AdminHandler{reloader: reloader, ledger: ledger, audit: audit}
}

// Reload handles POST /api/v1/admin/reload.
func (h *AdminHandler) Reload(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	res, err := h.reloader.Trigger(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.audit != nil {
		entry := domain.NewAuditLog(actor, domain.AuditActionReload, "")
		if details, err := json.Marshal(res); err == nil {
			entry.Details = string(details)
		}
		h.audit.Log(c.Request.Context(), entry)
	}

	response.OK(c, dto.ReloadResponse{
		Loaded:   res.Loaded,
		Wallets:  res.Wallets,
		Dropped:  res.Dropped,
		Repaired: res.Repaired,
	})
}

// Stats handles GET /api/v1/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	response.OK(c, h.ledger.Stats(c.Request.Context()))
}
