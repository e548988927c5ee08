package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// ProductHandler handles product endpoints
type ProductHandler struct {
	catalog *service.Catalog
	logger  *logger.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(catalog *service.Catalog, log *logger.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		logger:  log,
	}
}

// List lists products, filtered by status, category or a name/SKU search
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	page, perPage := pagination(r)
	filter := domain.ProductFilter{
		Status:   domain.ProductStatus(r.URL.Query().Get("status")),
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("search"),
		Limit:    perPage,
		Offset:   (page - 1) * perPage,
	}

	products, total, err := h.catalog.ListProducts(r.Context(), tid, filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, products, httputil.Page(page, perPage, total))
}

// Get gets a product by ID
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	p, err := h.catalog.GetProduct(r.Context(), tid, chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, p)
}

// Create creates a product, optionally with initial stock
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var in service.CreateProductInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, err)
		return
	}

	p, err := h.catalog.CreateProduct(r.Context(), tid, in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, p)
}

// Update updates a product's descriptive fields
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var in service.UpdateProductInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, err)
		return
	}

	p, err := h.catalog.UpdateProduct(r.Context(), tid, chi.URLParam(r, "id"), in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, p)
}

// Delete deletes a product and releases its depot allocations
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.catalog.DeleteProduct(r.Context(), tid, chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
