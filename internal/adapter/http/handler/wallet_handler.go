package handler

import (
	"context"
	"strconv"

	"splatchain-ledger/internal/adapter/http/dto"
	"splatchain-ledger/internal/adapter/http/middleware"
	"splatchain-ledger/internal/core/ports"
	"splatchain-ledger/pkg/apperror"
	"splatchain-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler exposes the ledger operations.
type WalletHandler struct {
	ledger ports.LedgerService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledger ports.LedgerService) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

// Create handles POST /api/v1/wallets.
func (h *WalletHandler) Create(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.TrimStruct(&req)

	res, err := h.ledger.Create(c.Request.Context(), ports.CreateWalletRequest{
		Actor:          actor,
		Nickname:       req.Nickname,
		Username:       req.Username,
		Type:           req.Type,
		InitialBalance: req.StartingBalance,
		Share:          req.Share,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewMutationResponse(res))
}

// Get handles GET /api/v1/wallets/:id. The id is an address or a username.
func (h *WalletHandler) Get(c *gin.Context) {
	w, err := h.ledger.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWalletResponse(w))
}

// List handles GET /api/v1/wallets. Without ?owner= it lists the caller's
// wallets.
func (h *WalletHandler) List(c *gin.Context) {
	owner := c.Query("owner")
	if owner == "" {
		actor, ok := middleware.Actor(c)
		if !ok {
			response.Error(c, apperror.ErrInvalidToken())
			return
		}
		owner = actor
	}

	wallets, err := h.ledger.ListByOwner(c.Request.Context(), owner)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.WalletResponse, 0, len(wallets))
	for i := range wallets {
		items = append(items, *dto.NewWalletResponse(&wallets[i]))
	}
	response.OK(c, dto.WalletListResponse{Owner: owner, Items: items, Total: len(items)})
}

// Edit handles PATCH /api/v1/wallets/:id.
func (h *WalletHandler) Edit(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.EditWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.TrimStruct(&req)

	res, err := h.ledger.Edit(c.Request.Context(), ports.EditRequest{
		Actor:      actor,
		Identifier: c.Param("id"),
		Force:      req.Force,
		Claim:      req.Claim,
		Nickname:   req.Nickname,
		Username:   req.Username,
		Type:       req.Type,
		Balance:    req.Balance,
		Share:      req.Share,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewMutationResponse(res))
}

// Delete handles DELETE /api/v1/wallets/:id?force=true.
func (h *WalletHandler) Delete(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	force, err := strconv.ParseBool(c.DefaultQuery("force", "false"))
	if err != nil {
		response.Error(c, apperror.Validation("force must be a boolean"))
		return
	}

	res, err := h.ledger.Delete(c.Request.Context(), ports.DeleteRequest{
		Actor:      actor,
		Identifier: c.Param("id"),
		Force:      force,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewMutationResponse(res))
}

// Inject handles POST /api/v1/wallets/:id/inject.
func (h *WalletHandler) Inject(c *gin.Context) {
	h.amount(c, h.ledger.Inject)
}

// Burn handles POST /api/v1/wallets/:id/burn.
func (h *WalletHandler) Burn(c *gin.Context) {
	h.amount(c, h.ledger.Burn)
}

func (h *WalletHandler) amount(c *gin.Context, op func(context.Context, ports.AmountRequest) (*ports.MutationResult, error)) {
	actor, ok := middleware.Actor(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	res, err := op(c.Request.Context(), ports.AmountRequest{
		Actor:      actor,
		Identifier: c.Param("id"),
		Amount:     req.Amount,
		Force:      req.Force,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewMutationResponse(res))
}

// Transfer handles POST /api/v1/transfers.
func (h *WalletHandler) Transfer(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.TrimStruct(&req)

	res, err := h.ledger.Transfer(c.Request.Context(), ports.TransferRequest{
		Actor:  actor,
		From:   req.From,
		To:     req.To,
		Amount: req.Amount,
		Force:  req.Force,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewTransferResponse(res, req.Amount))
}
