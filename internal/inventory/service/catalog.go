package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/actor"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

const (
	skuAttempts         = 3
	deleteScopeAttempts = 3
)

// CreateProductInput describes a new product. A positive InitialQuantity
// is booked into InitialDepotID as an "Initial stock" stock-in.
type CreateProductInput struct {
	SKU             string          `json:"sku,omitempty" validate:"omitempty,max=64"`
	Name            string          `json:"name" validate:"required,max=255"`
	Category        string          `json:"category,omitempty" validate:"max=100"`
	Supplier        string          `json:"supplier,omitempty" validate:"max=255"`
	Price           decimal.Decimal `json:"price"`
	ReorderPoint    *int64          `json:"reorder_point,omitempty" validate:"omitempty,gte=0"`
	InitialDepotID  string          `json:"initial_depot_id,omitempty"`
	InitialQuantity int64           `json:"initial_quantity,omitempty" validate:"gte=0"`
	PerformedBy     string          `json:"performed_by,omitempty"`
}

// UpdateProductInput changes descriptive fields. Stock is never set here.
type UpdateProductInput struct {
	Name         *string          `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Category     *string          `json:"category,omitempty" validate:"omitempty,max=100"`
	Supplier     *string          `json:"supplier,omitempty" validate:"omitempty,max=255"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	ReorderPoint *int64           `json:"reorder_point,omitempty" validate:"omitempty,gte=0"`
}

// CreateDepotInput describes a new depot. Capacity is fixed once created.
type CreateDepotInput struct {
	Name     string `json:"name" validate:"required,max=255"`
	Location string `json:"location,omitempty" validate:"max=255"`
	Capacity int64  `json:"capacity" validate:"gt=0"`
}

// Catalog manages product and depot lifecycles around the ledger
type Catalog struct {
	store     repository.Store
	ledger    *Ledger
	alerts    *AlertEvaluator
	publisher EventPublisher
	skus      *domain.SKUGenerator
	listLimit int
	now       func() time.Time
	logger    *logger.Logger
}

// NewCatalog creates a new catalog. listLimit caps transaction listings.
func NewCatalog(store repository.Store, ledger *Ledger, alerts *AlertEvaluator, publisher EventPublisher, skus *domain.SKUGenerator, listLimit int, log *logger.Logger) *Catalog {
	if skus == nil {
		skus = domain.NewSKUGenerator()
	}
	return &Catalog{
		store:     store,
		ledger:    ledger,
		alerts:    alerts,
		publisher: publisherOrNoop(publisher),
		skus:      skus,
		listLimit: listLimit,
		now:       time.Now,
		logger:    log.WithComponent("catalog"),
	}
}

// CreateProduct creates a product, generating its SKU when none is given
func (c *Catalog) CreateProduct(ctx context.Context, tenantID string, in CreateProductInput) (*domain.Product, error) {
	if err := httputil.Validate(in); err != nil {
		return nil, err
	}
	if in.Price.IsNegative() {
		return nil, errors.Validation(map[string]string{"price": "must be greater than or equal to 0"})
	}
	if in.InitialQuantity > 0 && in.InitialDepotID == "" {
		return nil, errors.Validation(map[string]string{"initial_depot_id": "this field is required"})
	}

	generated := in.SKU == ""
	for attempt := 1; ; attempt++ {
		sku := in.SKU
		if generated {
			sku = c.skus.Generate(in.Category)
		}
		p, err := c.createProduct(ctx, tenantID, sku, in)
		if err != nil && generated && attempt < skuAttempts && errors.Is(err, errors.ErrConflict) {
			continue
		}
		return p, err
	}
}

func (c *Catalog) createProduct(ctx context.Context, tenantID, sku string, in CreateProductInput) (*domain.Product, error) {
	p := &domain.Product{
		ID:           uuid.New().String(),
		SKU:          sku,
		Name:         in.Name,
		Category:     in.Category,
		Supplier:     in.Supplier,
		Price:        in.Price,
		ReorderPoint: domain.DefaultReorderPoint,
	}
	if in.ReorderPoint != nil {
		p.ReorderPoint = *in.ReorderPoint
	}
	p.ApplyDefaults()
	p.Project(nil)

	var (
		done *movement
		txn  *domain.Transaction
	)
	err := c.store.Atomic(ctx, tenantID, domain.ProductScope(p.ID, in.InitialDepotID), func(ctx context.Context, tx repository.Tx) error {
		done, txn = nil, nil
		if err := tx.CreateProduct(ctx, p); err != nil {
			return err
		}
		if in.InitialQuantity <= 0 {
			return nil
		}

		m := &movement{tx: tx, tenantID: tenantID, productID: p.ID, at: c.ledger.now().UTC()}
		if err := m.load(ctx, in.InitialDepotID); err != nil {
			return err
		}
		if err := m.set(ctx, in.InitialDepotID, in.InitialQuantity); err != nil {
			return err
		}
		var err error
		txn, err = m.record(ctx, &domain.Transaction{
			Type:        domain.TransactionStockIn,
			Quantity:    in.InitialQuantity,
			ToDepotID:   domain.StringPtr(in.InitialDepotID),
			Reason:      domain.ReasonInitialStock,
			PerformedBy: actor.PerformedBy(ctx, in.PerformedBy),
		}, "")
		if err != nil {
			return err
		}
		p = m.product
		done = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info().Str("tenant_id", tenantID).Str("product_id", p.ID).Str("sku", p.SKU).Msg("product created")
	if done != nil {
		c.ledger.afterCommit(ctx, done, txn)
	} else if c.alerts != nil {
		c.alerts.evaluateBestEffort(ctx, tenantID, p.ID, nil)
	}
	return c.GetProduct(ctx, tenantID, p.ID)
}

// UpdateProduct changes descriptive fields and re-projects status
func (c *Catalog) UpdateProduct(ctx context.Context, tenantID, id string, in UpdateProductInput) (*domain.Product, error) {
	if err := httputil.Validate(in); err != nil {
		return nil, err
	}
	if in.Price != nil && in.Price.IsNegative() {
		return nil, errors.Validation(map[string]string{"price": "must be greater than or equal to 0"})
	}

	var updated *domain.Product
	err := c.store.Atomic(ctx, tenantID, domain.ProductScope(id), func(ctx context.Context, tx repository.Tx) error {
		p, err := tx.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		allocs, err := tx.ProductAllocations(ctx, id)
		if err != nil {
			return err
		}
		if err := domain.VerifyProduct(p, allocs); err != nil {
			return err
		}

		if in.Name != nil {
			p.Name = *in.Name
		}
		if in.Category != nil {
			p.Category = *in.Category
		}
		if in.Supplier != nil {
			p.Supplier = *in.Supplier
		}
		if in.Price != nil {
			p.Price = *in.Price
		}
		if in.ReorderPoint != nil {
			p.ReorderPoint = *in.ReorderPoint
		}
		p.ApplyDefaults()
		p.Project(allocs)
		p.UpdatedAt = c.now().UTC()
		if err := tx.UpdateProduct(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c.alerts != nil {
		c.alerts.evaluateBestEffort(ctx, tenantID, id, nil)
	}
	return updated, nil
}

// DeleteProduct removes the product and its allocations, re-projects the
// depots that held it and purges its alerts. Ledger entries are kept.
func (c *Catalog) DeleteProduct(ctx context.Context, tenantID, id string) error {
	depotIDs, err := c.productDepots(ctx, tenantID, id)
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		depots, err := c.deleteProduct(ctx, tenantID, id, depotIDs)
		var moved *scopeChangedError
		if errors.As(err, &moved) {
			if attempt < deleteScopeAttempts {
				depotIDs = moved.depotIDs
				continue
			}
			// Stock keeps moving into new depots; the caller may retry
			return errors.Storage(err)
		}
		if err != nil {
			return err
		}

		c.logger.Info().Str("tenant_id", tenantID).Str("product_id", id).Int("depots", len(depots)).Msg("product deleted")
		for _, d := range depots {
			c.publisher.PublishDepotStockUpdated(ctx, d)
		}
		return nil
	}
}

// scopeChangedError reports that the product gained a depot between
// computing the lock scope and acquiring it
type scopeChangedError struct {
	depotIDs []string
}

func (e *scopeChangedError) Error() string {
	return "product allocations changed while locking"
}

func (c *Catalog) productDepots(ctx context.Context, tenantID, id string) ([]string, error) {
	var ids []string
	err := c.store.View(ctx, tenantID, func(ctx context.Context, tx repository.Tx) error {
		allocs, err := tx.ProductAllocations(ctx, id)
		if err != nil {
			return err
		}
		for _, a := range allocs {
			ids = append(ids, a.DepotID)
		}
		return nil
	})
	return ids, err
}

func (c *Catalog) deleteProduct(ctx context.Context, tenantID, id string, depotIDs []string) ([]*domain.Depot, error) {
	scope := domain.ProductScope(id, depotIDs...)
	var depots []*domain.Depot
	err := c.store.Atomic(ctx, tenantID, scope, func(ctx context.Context, tx repository.Tx) error {
		depots = nil
		p, err := tx.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		allocs, err := tx.ProductAllocations(ctx, id)
		if err != nil {
			return err
		}
		if err := domain.VerifyProduct(p, allocs); err != nil {
			return err
		}
		for _, a := range allocs {
			if !scope.HasDepot(a.DepotID) {
				current := make([]string, 0, len(allocs))
				for _, a := range allocs {
					current = append(current, a.DepotID)
				}
				return &scopeChangedError{depotIDs: current}
			}
		}

		now := c.now().UTC()
		for _, a := range allocs {
			d, err := tx.GetDepot(ctx, a.DepotID)
			if err != nil {
				return err
			}
			depotAllocs, err := tx.DepotAllocations(ctx, a.DepotID)
			if err != nil {
				return err
			}
			if err := domain.VerifyDepot(d, depotAllocs); err != nil {
				return err
			}
			if err := tx.SetAllocation(ctx, id, a.DepotID, 0, now); err != nil {
				return err
			}
			d.Project(replaceAllocation(depotAllocs, domain.Allocation{ProductID: id, DepotID: a.DepotID},
				func(x domain.Allocation) bool { return x.ProductID == id }))
			d.UpdatedAt = now
			if err := tx.UpdateDepot(ctx, d); err != nil {
				return err
			}
			depots = append(depots, d)
		}

		if err := tx.DeleteAlertsForTarget(ctx, id); err != nil {
			return err
		}
		return tx.DeleteProduct(ctx, id)
	})
	return depots, err
}

// GetProduct returns a product with its allocations
func (c *Catalog) GetProduct(ctx context.Context, tenantID, id string) (*domain.Product, error) {
	var p *domain.Product
	err := c.store.View(ctx, tenantID, func(ctx context.Context, tx repository.Tx) error {
		var err error
		p, err = tx.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		p.Allocations, err = tx.ProductAllocations(ctx, id)
		return err
	})
	return p, err
}

// GetProductBySKU returns a product with its allocations
func (c *Catalog) GetProductBySKU(ctx context.Context, tenantID, sku string) (*domain.Product, error) {
	var p *domain.Product
	err := c.store.View(ctx, tenantID, func(ctx context.Context, tx repository.Tx) error {
		var err error
		p, err = tx.GetProductBySKU(ctx, sku)
		if err != nil {
			return err
		}
		p.Allocations, err = tx.ProductAllocations(ctx, p.ID)
		return err
	})
	return p, err
}

// ListProducts lists products with their allocations
func (c *Catalog) ListProducts(ctx context.Context, tenantID string, filter domain.ProductFilter) ([]*domain.Product, int64, error) {
	var (
		products []*domain.Product
		total    int64
	)
	err := c.store.View(ctx, tenantID, func(ctx context.Context, tx repository.Tx) error {
		var err error
		products, total, err = tx.ListProducts(ctx, filter)
		if err != nil {
			return err
		}
		for _, p := range products {
			if p.Allocations, err = tx.ProductAllocations(ctx, p.ID); err != nil {
				return err
			}
		}
		return nil
	})
	return products, total, err
}

// CreateDepot creates an empty depot
func (c *Catalog) CreateDepot(ctx context.Context, tenantID string, in CreateDepotInput) (*domain.Depot, error) {
	if err := httputil.Validate(in); err != nil {
		return nil, err
	}

	d := &domain.Depot{Name: in.Name, Location: in.Location, Capacity: in.Capacity}
	if d.Location == "" {
		d.Location = domain.DefaultLocation
	}
	d.Project(nil)

	err := c.store.Atomic(ctx, tenantID, domain.LockScope{}, func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateDepot(ctx, d)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info().Str("tenant_id", tenantID).Str("depot_id", d.ID).Str("name", d.Name).Msg("depot created")
	c.publisher.PublishDepotCreated(ctx, d)
	return d, nil
}

// DeleteDepot deletes an empty depot and its alerts
func (c *Catalog) DeleteDepot(ctx context.Context, tenantID, id string) error {
	return c.store.Atomic(ctx, tenantID, domain.DepotScope(id), func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.GetDepot(ctx, id); err != nil {
			return err
		}
		allocs, err := tx.DepotAllocations(ctx, id)
		if err != nil {
			return err
		}
		if len(allocs) > 0 {
			return errors.InvalidOperation("Cannot delete a depot that still holds stock")
		}
		if err := tx.DeleteAlertsForTarget(ctx, id); err != nil {
			return err
		}
		return tx.DeleteDepot(ctx, id)
	})
}

// GetDepot returns a depot with its allocations
func (c *Catalog) GetDepot(ctx context.Context, tenantID, id string) (*domain.Depot, error) {
	var d *domain.Depot
	err := c.store.View(ctx, tenantID, func(ctx context.Context, tx repository.Tx) error {
		var err error
		d, err = tx.GetDepot(ctx, id)
		if err != nil {
			return err
		}
		d.Allocations, err = tx.DepotAllocations(ctx, id)
		return err
	})
	return d, err
}

// ListDepots lists depots with their allocations, oldest first
func (c *Catalog) ListDepots(ctx context.Context, tenantID string) ([]*domain.Depot, error) {
	var depots []*domain.Depot
	err := c.store.View(ctx, tenantID, func(ctx context.Context, tx repository.Tx) error {
		var err error
		depots, err = tx.ListDepots(ctx)
		if err != nil {
			return err
		}
		for _, d := range depots {
			if d.Allocations, err = tx.DepotAllocations(ctx, d.ID); err != nil {
				return err
			}
		}
		return nil
	})
	return depots, err
}

// ListTransactions lists ledger entries newest first, capped at the configured limit
func (c *Catalog) ListTransactions(ctx context.Context, tenantID string, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, errors.Validation(map[string]string{"type": "must be one of: stock-in stock-out transfer adjustment"})
	}
	if filter.Limit <= 0 || (c.listLimit > 0 && filter.Limit > c.listLimit) {
		filter.Limit = c.listLimit
	}

	var txns []*domain.Transaction
	err := c.store.View(ctx, tenantID, func(ctx context.Context, tx repository.Tx) error {
		var err error
		txns, err = tx.ListTransactions(ctx, filter)
		return err
	})
	return txns, err
}
