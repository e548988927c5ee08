package handler

import (
	"net/http"

	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// StockHandler exposes the ledger movements
type StockHandler struct {
	ledger *service.Ledger
	logger *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(ledger *service.Ledger, log *logger.Logger) *StockHandler {
	return &StockHandler{
		ledger: ledger,
		logger: log,
	}
}

// In books stock into a depot
func (h *StockHandler) In(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var in service.StockInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, err)
		return
	}
	in.IdempotencyKey = r.Header.Get(HeaderIdempotencyKey)

	res, err := h.ledger.StockIn(r.Context(), tid, in)
	movementResponse(w, res, err)
}

// Out books stock out of a depot
func (h *StockHandler) Out(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var in service.StockInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, err)
		return
	}
	in.IdempotencyKey = r.Header.Get(HeaderIdempotencyKey)

	res, err := h.ledger.StockOut(r.Context(), tid, in)
	movementResponse(w, res, err)
}

// Transfer moves stock between two depots
func (h *StockHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var in service.TransferInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, err)
		return
	}
	in.IdempotencyKey = r.Header.Get(HeaderIdempotencyKey)

	res, err := h.ledger.Transfer(r.Context(), tid, in)
	movementResponse(w, res, err)
}

// Adjust sets a depot allocation to a counted quantity
func (h *StockHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var in service.AdjustInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, err)
		return
	}
	in.IdempotencyKey = r.Header.Get(HeaderIdempotencyKey)

	res, err := h.ledger.Adjust(r.Context(), tid, in)
	movementResponse(w, res, err)
}

// movementResponse answers 201 for a new ledger entry and 200 for a replay
func movementResponse(w http.ResponseWriter, res *service.MovementResult, err error) {
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if res.Replayed {
		httputil.JSON(w, http.StatusOK, res)
		return
	}
	httputil.Created(w, res)
}
