package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/ledgerkraft/bookkeeping/internal/model"
	xhttp "github.com/ledgerkraft/bookkeeping/pkg/http"
)

type AccountService interface {
	ListOpenAccounts(ctx context.Context) ([]*model.Account, error)
	ListTransactions(ctx context.Context, accountIDs []int64, limit int) ([]*model.Transaction, error)
}

type AccountHandler struct {
	svc AccountService
}

func RegisterAccountRoutes(e *router.Group, h *AccountHandler) {
	e.GET("/accounts", h.ListAccounts)
	e.GET("/accounts/{accountId}/transactions", h.ListAccountTransactions)
	e.GET("/transactions", h.ListTransactions)
}

func NewAccountHandler(svc AccountService) *AccountHandler {
	return &AccountHandler{
		svc: svc,
	}
}

func (h *AccountHandler) ListAccounts(ctx *xhttp.RequestCtx) {
	accounts, err := h.svc.ListOpenAccounts(xhttp.RequestContext(ctx))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, accounts)
}

func (h *AccountHandler) ListAccountTransactions(ctx *xhttp.RequestCtx) {
	accountID, err := pathInt64(ctx, "accountId")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryLimit(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	txns, err := h.svc.ListTransactions(xhttp.RequestContext(ctx), []int64{accountID}, limit)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, txns)
}

func (h *AccountHandler) ListTransactions(ctx *xhttp.RequestCtx) {
	ids, err := queryIDs(ctx, "account_id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryLimit(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	txns, err := h.svc.ListTransactions(xhttp.RequestContext(ctx), ids, limit)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, txns)
}
