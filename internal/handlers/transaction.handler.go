package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/ledgerkraft/bookkeeping/internal/model"
	xhttp "github.com/ledgerkraft/bookkeeping/pkg/http"
)

type IngestionService interface {
	AddTransactions(ctx context.Context, modifiedBy string, accountID int64, raws []model.RawTransaction, balance *model.BalanceAssertion) ([]*model.Transaction, error)
	AddCashTransactions(ctx context.Context, username string, raws []model.RawTransaction) ([]*model.Transaction, error)
}

type TransactionHandler struct {
	svc  IngestionService
	lock AccountLocker
}

func RegisterTransactionRoutes(e *router.Group, h *TransactionHandler) {
	e.POST("/accounts/{accountId}/transactions", h.AddTransactions)
	e.POST("/cash-transactions", h.AddCashTransactions)
}

// NewTransactionHandler builds the import endpoints. A nil lock leaves
// imports of the same account unserialized.
func NewTransactionHandler(svc IngestionService, lock AccountLocker) *TransactionHandler {
	return &TransactionHandler{
		svc:  svc,
		lock: lock,
	}
}

func (h *TransactionHandler) AddTransactions(ctx *xhttp.RequestCtx) {
	user, ok := xhttp.AuthenticatedUser(ctx)
	if !ok {
		writeError(ctx, xhttp.StatusUnauthorized, xhttp.StatusText(xhttp.StatusUnauthorized))
		return
	}
	accountID, err := pathInt64(ctx, "accountId")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	var req addTransactionsRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	raws := make([]model.RawTransaction, len(req.Transactions))
	for i, p := range req.Transactions {
		if raws[i], err = p.toRaw(i); err != nil {
			writeError(ctx, xhttp.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Balance != nil && !req.Balance.Complete() {
		writeError(ctx, xhttp.StatusBadRequest, "balance must carry both balance and balanceDate")
		return
	}

	rc := xhttp.RequestContext(ctx)
	if h.lock != nil {
		unlock, err := h.lock.Lock(rc, accountID)
		if err != nil {
			writeServiceError(ctx, err)
			return
		}
		defer unlock()
	}

	inserted, err := h.svc.AddTransactions(rc, user, accountID, raws, req.Balance)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, inserted)
}

func (h *TransactionHandler) AddCashTransactions(ctx *xhttp.RequestCtx) {
	user, ok := xhttp.AuthenticatedUser(ctx)
	if !ok {
		writeError(ctx, xhttp.StatusUnauthorized, xhttp.StatusText(xhttp.StatusUnauthorized))
		return
	}

	var req oneOrMany[cashPayload]
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	raws := make([]model.RawTransaction, len(req))
	for i, p := range req {
		var err error
		if raws[i], err = p.toRaw(i); err != nil {
			writeError(ctx, xhttp.StatusBadRequest, err.Error())
			return
		}
	}

	inserted, err := h.svc.AddCashTransactions(xhttp.RequestContext(ctx), user, raws)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, inserted)
}
