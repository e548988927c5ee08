package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// AlertHandler handles alert endpoints
type AlertHandler struct {
	alerts *service.AlertEvaluator
	logger *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alerts *service.AlertEvaluator, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		alerts: alerts,
		logger: log,
	}
}

// List lists alerts, newest first
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	page, perPage := pagination(r)
	filter := domain.AlertFilter{
		Unresolved: boolQuery(r, "unresolved"),
		Unread:     boolQuery(r, "unread"),
		Type:       domain.AlertType(r.URL.Query().Get("type")),
		TargetID:   r.URL.Query().Get("target_id"),
		Limit:      perPage,
		Offset:     (page - 1) * perPage,
	}

	alerts, total, err := h.alerts.List(r.Context(), tid, filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, alerts, httputil.Page(page, perPage, total))
}

// Raise records an externally detected alert
func (h *AlertHandler) Raise(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var in service.RaiseInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, err)
		return
	}

	a, err := h.alerts.Raise(r.Context(), tid, in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, a)
}

// Check evaluates every product and depot of the tenant
func (h *AlertHandler) Check(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	created, err := h.alerts.RunAllChecks(r.Context(), tid)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"created": len(created),
		"alerts":  created,
	})
}

// MarkRead marks an alert read
func (h *AlertHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.alerts.MarkRead(r.Context(), tid, chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// MarkAllRead marks every alert of the tenant read
func (h *AlertHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	n, err := h.alerts.MarkAllRead(r.Context(), tid)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int64{"updated": n})
}

// Resolve closes an alert. The body is optional.
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var in service.ResolveInput
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &in); err != nil {
			httputil.Error(w, err)
			return
		}
	}

	a, err := h.alerts.Resolve(r.Context(), tid, chi.URLParam(r, "id"), in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, a)
}
