package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/permissions"
)

// Handlers groups the inventory endpoints mounted under /api/v1/inventory
type Handlers struct {
	Stock    *StockHandler
	Products *ProductHandler
	Depots   *DepotHandler
	Alerts   *AlertHandler
	Import   *ImportHandler
}

// Routes registers the inventory API on r
func (h *Handlers) Routes(r chi.Router) {
	read := httputil.RequirePermission(permissions.InventoryRead)
	stock := httputil.RequirePermission(permissions.InventoryStockWrite)
	catalog := httputil.RequirePermission(permissions.InventoryCatalogWrite)
	alerts := httputil.RequirePermission(permissions.InventoryAlertsManage)

	r.Route("/stock", func(r chi.Router) {
		r.Use(stock)
		r.Post("/in", h.Stock.In)
		r.Post("/out", h.Stock.Out)
		r.Post("/transfer", h.Stock.Transfer)
		r.Post("/adjust", h.Stock.Adjust)
	})

	r.Route("/products", func(r chi.Router) {
		r.With(read).Get("/", h.Products.List)
		r.With(catalog).Post("/", h.Products.Create)
		r.With(read).Get("/{id}", h.Products.Get)
		r.With(catalog).Put("/{id}", h.Products.Update)
		r.With(catalog).Delete("/{id}", h.Products.Delete)
	})

	r.Route("/depots", func(r chi.Router) {
		r.With(read).Get("/", h.Depots.List)
		r.With(catalog).Post("/", h.Depots.Create)
		r.With(read).Get("/{id}", h.Depots.Get)
		r.With(catalog).Delete("/{id}", h.Depots.Delete)
	})

	r.With(read).Get("/transactions", h.Depots.Transactions)

	r.Route("/alerts", func(r chi.Router) {
		r.With(read).Get("/", h.Alerts.List)
		r.With(alerts).Post("/", h.Alerts.Raise)
		r.With(alerts).Post("/check", h.Alerts.Check)
		r.With(alerts).Post("/read-all", h.Alerts.MarkAllRead)
		r.With(alerts).Post("/{id}/read", h.Alerts.MarkRead)
		r.With(alerts).Post("/{id}/resolve", h.Alerts.Resolve)
	})

	r.Group(func(r chi.Router) {
		r.Use(httputil.RequirePermission(permissions.InventoryImport))
		r.Post("/import", h.Import.Products)
		r.Post("/import/history", h.Import.History)
	})
}
