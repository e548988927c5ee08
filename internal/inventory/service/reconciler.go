package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// RowInput is one product row of a bulk import
type RowInput struct {
	// Row is the 1-based source row number; zero means the row's position
	Row int `json:"-"`

	SKU          string           `json:"sku" validate:"required,max=64"`
	Name         string           `json:"name" validate:"required,max=255"`
	Category     string           `json:"category,omitempty" validate:"max=100"`
	Supplier     string           `json:"supplier,omitempty" validate:"max=255"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	ReorderPoint *int64           `json:"reorder_point,omitempty" validate:"omitempty,gte=0"`
	Quantity     int64            `json:"quantity,omitempty" validate:"gte=0"`
	DepotName    string           `json:"depot_name,omitempty" validate:"max=255"`
	Location     string           `json:"location,omitempty" validate:"max=255"`
}

// HistoryRow is one recorded movement of a transaction history import
type HistoryRow struct {
	Row int `json:"-"`

	SKU          string                 `json:"sku" validate:"required,max=64"`
	Name         string                 `json:"name" validate:"required,max=255"`
	Category     string                 `json:"category,omitempty" validate:"max=100"`
	Supplier     string                 `json:"supplier,omitempty" validate:"max=255"`
	Price        *decimal.Decimal       `json:"price,omitempty"`
	ReorderPoint *int64                 `json:"reorder_point,omitempty" validate:"omitempty,gte=0"`
	Type         domain.TransactionType `json:"type" validate:"required,oneof=stock-in stock-out"`
	Quantity     int64                  `json:"quantity" validate:"gt=0"`
	DepotName    string                 `json:"depot_name,omitempty" validate:"max=255"`
	Location     string                 `json:"location,omitempty" validate:"max=255"`
	Date         time.Time              `json:"date"`
	Reason       string                 `json:"reason,omitempty"`
	Notes        *string                `json:"notes,omitempty"`
}

// RowError records why one row was not applied
type RowError struct {
	Row   int    `json:"row"`
	SKU   string `json:"sku,omitempty"`
	Error string `json:"error"`
}

// BatchResult summarizes an import. Success + Failed equals the row count.
type BatchResult struct {
	Success             int        `json:"success"`
	Failed              int        `json:"failed"`
	ProductsCreated     int        `json:"products_created"`
	ProductsUpdated     int        `json:"products_updated"`
	DepotsCreated       []string   `json:"depots_created"`
	TransactionsCreated int        `json:"transactions_created"`
	Errors              []RowError `json:"errors"`
}

func newBatchResult() *BatchResult {
	return &BatchResult{DepotsCreated: []string{}, Errors: []RowError{}}
}

// AddFailures counts rows rejected before they reached the reconciler,
// such as malformed CSV records
func (r *BatchResult) AddFailures(failures []RowError) {
	if len(failures) == 0 {
		return
	}
	r.Failed += len(failures)
	r.Errors = append(r.Errors, failures...)
	sort.SliceStable(r.Errors, func(i, j int) bool { return r.Errors[i].Row < r.Errors[j].Row })
}

func (r *BatchResult) fail(row int, sku string, err error) {
	r.Failed++
	r.Errors = append(r.Errors, RowError{Row: row, SKU: sku, Error: describe(err)})
}

// Reconciler applies import batches one row at a time through the catalog
// and the ledger. A failing row is recorded and the batch continues; rows
// already applied stay applied.
type Reconciler struct {
	store    repository.Store
	catalog  *Catalog
	ledger   *Ledger
	policy   DepotPolicy
	defaults DepotDefaults
	logger   *logger.Logger
}

// NewReconciler creates a new reconciler. A nil policy uses NewDepotPolicy(nil).
func NewReconciler(store repository.Store, catalog *Catalog, ledger *Ledger, policy DepotPolicy, defaults DepotDefaults, log *logger.Logger) *Reconciler {
	if policy == nil {
		policy = NewDepotPolicy(nil)
	}
	if defaults.Name == "" {
		defaults.Name = DefaultDepotDefaults.Name
	}
	if defaults.Location == "" {
		defaults.Location = DefaultDepotDefaults.Location
	}
	if defaults.Capacity <= 0 {
		defaults.Capacity = DefaultDepotDefaults.Capacity
	}
	return &Reconciler{
		store:    store,
		catalog:  catalog,
		ledger:   ledger,
		policy:   policy,
		defaults: defaults,
		logger:   log.WithComponent("reconciler"),
	}
}

// ImportBatch resolves each row's depot and product and books its quantity
// as a "CSV Import" stock-in
func (r *Reconciler) ImportBatch(ctx context.Context, tenantID string, rows []RowInput) (*BatchResult, error) {
	if tenantID == "" {
		return nil, errors.Unauthorized("missing tenant")
	}

	result := newBatchResult()
	for i, row := range rows {
		if row.Row == 0 {
			row.Row = i + 1
		}
		if err := ctx.Err(); err != nil {
			result.fail(row.Row, row.SKU, err)
			continue
		}
		if err := r.importRow(ctx, tenantID, row, result); err != nil {
			r.logger.Warn().Err(err).Str("tenant_id", tenantID).Int("row", row.Row).Str("sku", row.SKU).Msg("import row failed")
			result.fail(row.Row, row.SKU, err)
			continue
		}
		result.Success++
	}

	r.logger.Info().
		Str("tenant_id", tenantID).
		Int("rows", len(rows)).
		Int("success", result.Success).
		Int("failed", result.Failed).
		Int("depots_created", len(result.DepotsCreated)).
		Int("transactions_created", result.TransactionsCreated).
		Msg("import batch completed")
	return result, nil
}

func (r *Reconciler) importRow(ctx context.Context, tenantID string, row RowInput, result *BatchResult) error {
	if err := httputil.Validate(row); err != nil {
		return err
	}
	if row.Price != nil && row.Price.IsNegative() {
		return errors.Validation(map[string]string{"price": "must be greater than or equal to 0"})
	}

	depot, err := r.resolveDepot(ctx, tenantID, row.DepotName, row.Location, result)
	if err != nil {
		return err
	}
	product, created, err := r.resolveProduct(ctx, tenantID, productFields{
		sku:          row.SKU,
		name:         row.Name,
		category:     row.Category,
		supplier:     row.Supplier,
		price:        row.Price,
		reorderPoint: row.ReorderPoint,
	})
	if err != nil {
		return err
	}
	if created {
		result.ProductsCreated++
	} else {
		result.ProductsUpdated++
	}

	if row.Quantity <= 0 {
		// No movement ran, so nothing has evaluated the product yet
		r.catalog.alerts.evaluateBestEffort(ctx, tenantID, product.ID, nil)
		return nil
	}
	if _, err := r.ledger.StockIn(ctx, tenantID, StockInput{
		ProductID: product.ID,
		DepotID:   depot.ID,
		Quantity:  row.Quantity,
		Reason:    domain.ReasonImport,
	}); err != nil {
		return err
	}
	result.TransactionsCreated++
	return nil
}

// ImportHistory replays recorded movements. Rows are grouped by SKU in
// order of first appearance and replayed oldest first within a SKU; a
// failing row does not stop later rows of the same SKU.
func (r *Reconciler) ImportHistory(ctx context.Context, tenantID string, rows []HistoryRow) (*BatchResult, error) {
	if tenantID == "" {
		return nil, errors.Unauthorized("missing tenant")
	}

	var order []string
	groups := make(map[string][]HistoryRow)
	for i, row := range rows {
		if row.Row == 0 {
			row.Row = i + 1
		}
		if _, ok := groups[row.SKU]; !ok {
			order = append(order, row.SKU)
		}
		groups[row.SKU] = append(groups[row.SKU], row)
	}

	result := newBatchResult()
	for _, sku := range order {
		group := groups[sku]
		sort.SliceStable(group, func(i, j int) bool { return group[i].Date.Before(group[j].Date) })

		counted := false
		for _, row := range group {
			if err := ctx.Err(); err != nil {
				result.fail(row.Row, row.SKU, err)
				continue
			}
			resolved, created, err := r.replayRow(ctx, tenantID, row, result)
			if resolved && !counted {
				if created {
					result.ProductsCreated++
				} else {
					result.ProductsUpdated++
				}
				counted = true
			}
			if err != nil {
				r.logger.Warn().Err(err).Str("tenant_id", tenantID).Int("row", row.Row).Str("sku", row.SKU).Msg("history row failed")
				result.fail(row.Row, row.SKU, err)
				continue
			}
			result.Success++
		}
	}
	sort.SliceStable(result.Errors, func(i, j int) bool { return result.Errors[i].Row < result.Errors[j].Row })

	r.logger.Info().
		Str("tenant_id", tenantID).
		Int("rows", len(rows)).
		Int("products", len(order)).
		Int("success", result.Success).
		Int("failed", result.Failed).
		Int("transactions_created", result.TransactionsCreated).
		Msg("history import completed")
	return result, nil
}

// replayRow applies one history row. resolved reports whether the row got
// as far as finding or creating its product, and created whether it created it.
func (r *Reconciler) replayRow(ctx context.Context, tenantID string, row HistoryRow, result *BatchResult) (resolved, created bool, err error) {
	if err := httputil.Validate(row); err != nil {
		return false, false, err
	}
	if row.Price != nil && row.Price.IsNegative() {
		return false, false, errors.Validation(map[string]string{"price": "must be greater than or equal to 0"})
	}

	depot, err := r.resolveDepot(ctx, tenantID, row.DepotName, row.Location, result)
	if err != nil {
		return false, false, err
	}
	product, created, err := r.resolveProduct(ctx, tenantID, productFields{
		sku:          row.SKU,
		name:         row.Name,
		category:     row.Category,
		supplier:     row.Supplier,
		price:        row.Price,
		reorderPoint: row.ReorderPoint,
	})
	if err != nil {
		return false, false, err
	}

	in := StockInput{
		ProductID:  product.ID,
		DepotID:    depot.ID,
		Quantity:   row.Quantity,
		Reason:     reasonOr(row.Reason, domain.ReasonImport),
		Notes:      row.Notes,
		OccurredAt: row.Date,
	}
	if row.Type == domain.TransactionStockOut {
		_, err = r.ledger.StockOut(ctx, tenantID, in)
	} else {
		_, err = r.ledger.StockIn(ctx, tenantID, in)
	}
	if err != nil {
		return true, created, err
	}
	result.TransactionsCreated++
	return true, created, nil
}

// resolveDepot applies the depot policy, creating a depot when it picks none
func (r *Reconciler) resolveDepot(ctx context.Context, tenantID, wanted, location string, result *BatchResult) (*domain.Depot, error) {
	var depots []*domain.Depot
	err := r.store.View(ctx, tenantID, func(ctx context.Context, tx repository.Tx) error {
		var err error
		depots, err = tx.ListDepots(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if d := r.policy(depots, wanted); d != nil {
		return d, nil
	}

	name := strings.TrimSpace(wanted)
	if name == "" {
		name = r.defaults.Name
	}
	if location == "" {
		location = r.defaults.Location
	}
	d, err := r.catalog.CreateDepot(ctx, tenantID, CreateDepotInput{Name: name, Location: location, Capacity: r.defaults.Capacity})
	if err != nil {
		return nil, err
	}
	result.DepotsCreated = append(result.DepotsCreated, d.ID)
	return d, nil
}

type productFields struct {
	sku          string
	name         string
	category     string
	supplier     string
	price        *decimal.Decimal
	reorderPoint *int64
}

// resolveProduct finds the product by SKU, updating the fields the row
// carries, or creates it. It reports whether the product was created.
func (r *Reconciler) resolveProduct(ctx context.Context, tenantID string, f productFields) (*domain.Product, bool, error) {
	existing, err := r.catalog.GetProductBySKU(ctx, tenantID, f.sku)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, false, err
	}

	if existing == nil {
		in := CreateProductInput{
			SKU:          f.sku,
			Name:         f.name,
			Category:     f.category,
			Supplier:     f.supplier,
			ReorderPoint: f.reorderPoint,
		}
		if f.price != nil {
			in.Price = *f.price
		}
		p, err := r.catalog.CreateProduct(ctx, tenantID, in)
		if err == nil {
			return p, true, nil
		}
		if !errors.Is(err, errors.ErrConflict) {
			return nil, false, err
		}
		// Created concurrently under the same SKU.
		if existing, err = r.catalog.GetProductBySKU(ctx, tenantID, f.sku); err != nil {
			return nil, false, err
		}
	}

	update := UpdateProductInput{Price: f.price, ReorderPoint: f.reorderPoint}
	if f.name != "" && f.name != existing.Name {
		update.Name = &f.name
	}
	if f.category != "" && f.category != existing.Category {
		update.Category = &f.category
	}
	if f.supplier != "" && f.supplier != existing.Supplier {
		update.Supplier = &f.supplier
	}
	if update == (UpdateProductInput{}) {
		return existing, false, nil
	}
	p, err := r.catalog.UpdateProduct(ctx, tenantID, existing.ID, update)
	if err != nil {
		return nil, false, err
	}
	return p, false, nil
}

// describe renders an error for a row report, listing validation details
func describe(err error) string {
	var appErr *errors.AppError
	if !errors.As(err, &appErr) || len(appErr.Details) == 0 || !errors.Is(err, errors.ErrValidation) {
		return err.Error()
	}
	fields := make([]string, 0, len(appErr.Details))
	for field, msg := range appErr.Details {
		fields = append(fields, field+" "+msg)
	}
	sort.Strings(fields)
	return appErr.Message + ": " + strings.Join(fields, "; ")
}
