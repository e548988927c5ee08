package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// DepotHandler handles depot and ledger history endpoints
type DepotHandler struct {
	catalog *service.Catalog
	logger  *logger.Logger
}

// NewDepotHandler creates a new depot handler
func NewDepotHandler(catalog *service.Catalog, log *logger.Logger) *DepotHandler {
	return &DepotHandler{
		catalog: catalog,
		logger:  log,
	}
}

// List lists all depots of the tenant
func (h *DepotHandler) List(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	depots, err := h.catalog.ListDepots(r.Context(), tid)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, depots)
}

// Get gets a depot by ID
func (h *DepotHandler) Get(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	d, err := h.catalog.GetDepot(r.Context(), tid, chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, d)
}

// Create creates a depot
func (h *DepotHandler) Create(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var in service.CreateDepotInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, err)
		return
	}

	d, err := h.catalog.CreateDepot(r.Context(), tid, in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, d)
}

// Delete deletes an empty depot
func (h *DepotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.catalog.DeleteDepot(r.Context(), tid, chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Transactions lists ledger entries, newest first
func (h *DepotHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	q := r.URL.Query()
	filter := domain.TransactionFilter{
		ProductID: q.Get("product_id"),
		DepotID:   q.Get("depot_id"),
		Type:      domain.TransactionType(q.Get("type")),
	}
	if filter.From, err = timeQuery(r, "from"); err != nil {
		httputil.Error(w, err)
		return
	}
	if filter.To, err = timeQuery(r, "to"); err != nil {
		httputil.Error(w, err)
		return
	}
	if filter.Limit, err = intQuery(r, "limit"); err != nil {
		httputil.Error(w, err)
		return
	}

	txns, err := h.catalog.ListTransactions(r.Context(), tid, filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, txns)
}
