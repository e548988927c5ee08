package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// tx stages writes over committed state. A nil map value marks a deletion.
// A tx is used by one goroutine.
type tx struct {
	store    *Store
	tenantID string
	readOnly bool

	products      map[string]*domain.Product
	depots        map[string]*domain.Depot
	allocs        map[domain.AllocationKey]*domain.Allocation
	txns          []*domain.Transaction
	alerts        map[string]*domain.Alert
	newAlerts     []string
	purgedTargets map[string]bool
}

var _ repository.Tx = (*tx)(nil)

func newTx(s *Store, tenantID string, readOnly bool) *tx {
	return &tx{
		store:         s,
		tenantID:      tenantID,
		readOnly:      readOnly,
		products:      make(map[string]*domain.Product),
		depots:        make(map[string]*domain.Depot),
		allocs:        make(map[domain.AllocationKey]*domain.Allocation),
		alerts:        make(map[string]*domain.Alert),
		purgedTargets: make(map[string]bool),
	}
}

func (t *tx) writable() error {
	if t.readOnly {
		return errors.Internal("write attempted in a read-only view")
	}
	return nil
}

// read runs fn with committed state read-locked
func (t *tx) read(fn func(d *tenantData)) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	fn(t.store.data(t.tenantID))
}

// freesSKU reports whether this tx deletes or renames the product holding sku
func (t *tx) freesSKU(owner, sku string) bool {
	staged, ok := t.products[owner]
	return ok && (staged == nil || staged.SKU != sku)
}

// releasesSlot reports whether this tx resolves or purges a committed open alert
func (t *tx) releasesSlot(d *tenantData, alertID string) bool {
	if staged, ok := t.alerts[alertID]; ok && staged.IsResolved {
		return true
	}
	if a, ok := d.alerts[alertID]; ok && a.TargetID != nil && t.purgedTargets[*a.TargetID] {
		return true
	}
	return false
}

// Products

func (t *tx) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if p, ok := t.products[id]; ok {
		if p == nil {
			return nil, errors.NotFound("product")
		}
		return cloneProduct(p), nil
	}

	var out *domain.Product
	t.read(func(d *tenantData) {
		if p, ok := d.products[id]; ok {
			out = cloneProduct(p)
		}
	})
	if out == nil {
		return nil, errors.NotFound("product")
	}
	return out, nil
}

func (t *tx) GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	for _, p := range t.products {
		if p != nil && p.SKU == sku {
			return cloneProduct(p), nil
		}
	}

	var id string
	t.read(func(d *tenantData) { id = d.skus[sku] })
	if id == "" || t.freesSKU(id, sku) {
		return nil, errors.NotFound("product")
	}
	return t.GetProduct(ctx, id)
}

func (t *tx) CreateProduct(ctx context.Context, p *domain.Product) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, err := t.GetProductBySKU(ctx, p.SKU); err == nil {
		return errors.Conflict("a product with this SKU already exists")
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := t.store.now().UTC()
	p.TenantID = t.tenantID
	p.CreatedAt = now
	p.UpdatedAt = now
	t.products[p.ID] = cloneProduct(p)
	return nil
}

func (t *tx) UpdateProduct(ctx context.Context, p *domain.Product) error {
	if err := t.writable(); err != nil {
		return err
	}
	current, err := t.GetProduct(ctx, p.ID)
	if err != nil {
		return err
	}

	p.TenantID = t.tenantID
	p.SKU = current.SKU
	p.CreatedAt = current.CreatedAt
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = t.store.now().UTC()
	}
	t.products[p.ID] = cloneProduct(p)
	return nil
}

func (t *tx) DeleteProduct(ctx context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, err := t.GetProduct(ctx, id); err != nil {
		return err
	}
	t.products[id] = nil
	return nil
}

func (t *tx) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int64, error) {
	merged := make(map[string]*domain.Product)
	t.read(func(d *tenantData) {
		for id, p := range d.products {
			merged[id] = p
		}
	})
	for id, p := range t.products {
		if p == nil {
			delete(merged, id)
		} else {
			merged[id] = p
		}
	}

	search := strings.ToLower(filter.Search)
	out := make([]*domain.Product, 0, len(merged))
	for _, p := range merged {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.SKU), search) {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].SKU < out[j].SKU
	})

	total := int64(len(out))
	return paginate(out, filter.Limit, filter.Offset), total, nil
}

// Depots

func (t *tx) GetDepot(ctx context.Context, id string) (*domain.Depot, error) {
	if d, ok := t.depots[id]; ok {
		if d == nil {
			return nil, errors.NotFound("depot")
		}
		return cloneDepot(d), nil
	}

	var out *domain.Depot
	t.read(func(d *tenantData) {
		if dep, ok := d.depots[id]; ok {
			out = cloneDepot(dep)
		}
	})
	if out == nil {
		return nil, errors.NotFound("depot")
	}
	return out, nil
}

func (t *tx) ListDepots(ctx context.Context) ([]*domain.Depot, error) {
	merged := make(map[string]*domain.Depot)
	t.read(func(d *tenantData) {
		for id, dep := range d.depots {
			merged[id] = dep
		}
	})
	for id, dep := range t.depots {
		if dep == nil {
			delete(merged, id)
		} else {
			merged[id] = dep
		}
	}

	out := make([]*domain.Depot, 0, len(merged))
	for _, dep := range merged {
		out = append(out, cloneDepot(dep))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) CreateDepot(ctx context.Context, d *domain.Depot) error {
	if err := t.writable(); err != nil {
		return err
	}
	if d.Capacity <= 0 {
		return errors.Validation(map[string]string{"capacity": "must be a positive integer"})
	}
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	now := t.store.now().UTC()
	d.TenantID = t.tenantID
	d.CreatedAt = now
	d.UpdatedAt = now
	t.depots[d.ID] = cloneDepot(d)
	return nil
}

func (t *tx) UpdateDepot(ctx context.Context, d *domain.Depot) error {
	if err := t.writable(); err != nil {
		return err
	}
	current, err := t.GetDepot(ctx, d.ID)
	if err != nil {
		return err
	}

	d.TenantID = t.tenantID
	d.Capacity = current.Capacity
	d.CreatedAt = current.CreatedAt
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = t.store.now().UTC()
	}
	t.depots[d.ID] = cloneDepot(d)
	return nil
}

func (t *tx) DeleteDepot(ctx context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, err := t.GetDepot(ctx, id); err != nil {
		return err
	}
	allocs, err := t.DepotAllocations(ctx, id)
	if err != nil {
		return err
	}
	if len(allocs) > 0 {
		return errors.BadRequest("referenced record does not exist")
	}
	t.depots[id] = nil
	return nil
}

// Allocations

func (t *tx) GetAllocation(ctx context.Context, productID, depotID string) (domain.Allocation, bool, error) {
	key := domain.AllocationKey{ProductID: productID, DepotID: depotID}
	if a, ok := t.allocs[key]; ok {
		if a == nil {
			return domain.Allocation{}, false, nil
		}
		return *a, true, nil
	}

	var (
		out   domain.Allocation
		found bool
	)
	t.read(func(d *tenantData) { out, found = d.allocs[key] })
	return out, found, nil
}

func (t *tx) SetAllocation(ctx context.Context, productID, depotID string, quantity int64, at time.Time) error {
	if err := t.writable(); err != nil {
		return err
	}
	if quantity < 0 {
		return errors.InvariantViolation("allocation", productID+"/"+depotID, "negative quantity")
	}

	key := domain.AllocationKey{ProductID: productID, DepotID: depotID}
	if quantity == 0 {
		t.allocs[key] = nil
		return nil
	}
	t.allocs[key] = &domain.Allocation{
		TenantID:    t.tenantID,
		ProductID:   productID,
		DepotID:     depotID,
		Quantity:    quantity,
		LastUpdated: at,
	}
	return nil
}

func (t *tx) ProductAllocations(ctx context.Context, productID string) ([]domain.Allocation, error) {
	return t.allocations(func(k domain.AllocationKey) bool { return k.ProductID == productID },
		func(d *tenantData) []domain.AllocationKey {
			keys := make([]domain.AllocationKey, 0, len(d.byProduct[productID]))
			for depotID := range d.byProduct[productID] {
				keys = append(keys, domain.AllocationKey{ProductID: productID, DepotID: depotID})
			}
			return keys
		}), nil
}

func (t *tx) DepotAllocations(ctx context.Context, depotID string) ([]domain.Allocation, error) {
	return t.allocations(func(k domain.AllocationKey) bool { return k.DepotID == depotID },
		func(d *tenantData) []domain.AllocationKey {
			keys := make([]domain.AllocationKey, 0, len(d.byDepot[depotID]))
			for productID := range d.byDepot[depotID] {
				keys = append(keys, domain.AllocationKey{ProductID: productID, DepotID: depotID})
			}
			return keys
		}), nil
}

// allocations merges the committed index lookup with staged rows matching want
func (t *tx) allocations(want func(domain.AllocationKey) bool, index func(d *tenantData) []domain.AllocationKey) []domain.Allocation {
	merged := make(map[domain.AllocationKey]domain.Allocation)
	t.read(func(d *tenantData) {
		for _, key := range index(d) {
			merged[key] = d.allocs[key]
		}
	})
	for key, a := range t.allocs {
		if !want(key) {
			continue
		}
		if a == nil {
			delete(merged, key)
		} else {
			merged[key] = *a
		}
	}

	out := make([]domain.Allocation, 0, len(merged))
	for _, a := range merged {
		out = append(out, a)
	}
	domain.SortAllocations(out)
	return out
}

// Transactions

func (t *tx) AppendTransaction(ctx context.Context, txn *domain.Transaction) error {
	if err := t.writable(); err != nil {
		return err
	}
	if txn.IdempotencyKey != nil {
		if _, err := t.TransactionByIdempotencyKey(ctx, *txn.IdempotencyKey); err == nil {
			return errors.Conflict("a transaction with this idempotency key already exists")
		}
	}
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	txn.TenantID = t.tenantID
	if txn.Timestamp.IsZero() {
		txn.Timestamp = t.store.now().UTC()
	}
	t.txns = append(t.txns, cloneTransaction(txn))
	return nil
}

func (t *tx) TransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	for _, txn := range t.txns {
		if txn.IdempotencyKey != nil && *txn.IdempotencyKey == key {
			return cloneTransaction(txn), nil
		}
	}

	var out *domain.Transaction
	t.read(func(d *tenantData) {
		if txn, ok := d.idem[key]; ok {
			out = cloneTransaction(txn)
		}
	})
	if out == nil {
		return nil, errors.NotFound("transaction")
	}
	return out, nil
}

func (t *tx) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	t.read(func(d *tenantData) {
		for _, txn := range d.txns {
			if filter.Matches(txn) {
				out = append(out, cloneTransaction(txn))
			}
		}
	})
	for _, txn := range t.txns {
		if filter.Matches(txn) {
			out = append(out, cloneTransaction(txn))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	if out == nil {
		out = []*domain.Transaction{}
	}
	return out, nil
}

// Alerts

// mergedAlerts returns committed alerts with staged updates, purges and inserts applied
func (t *tx) mergedAlerts() map[string]*domain.Alert {
	merged := make(map[string]*domain.Alert)
	t.read(func(d *tenantData) {
		for id, a := range d.alerts {
			if a.TargetID != nil && t.purgedTargets[*a.TargetID] {
				continue
			}
			merged[id] = a
		}
	})
	for id, a := range t.alerts {
		merged[id] = a
	}
	return merged
}

func (t *tx) CreateAlertIfAbsent(ctx context.Context, a *domain.Alert) (bool, error) {
	if err := t.writable(); err != nil {
		return false, err
	}
	if key, ok := a.DedupKey(); ok {
		for _, existing := range t.mergedAlerts() {
			if k, ok := existing.DedupKey(); ok && k == key && !existing.IsResolved {
				return false, nil
			}
		}
	}

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.TenantID = t.tenantID
	if a.Metadata == nil {
		a.Metadata = domain.Metadata{}
	}
	a.CreatedAt = t.store.now().UTC()
	t.alerts[a.ID] = cloneAlert(a)
	t.newAlerts = append(t.newAlerts, a.ID)
	return true, nil
}

func (t *tx) GetAlert(ctx context.Context, id string) (*domain.Alert, error) {
	if a, ok := t.mergedAlerts()[id]; ok {
		return cloneAlert(a), nil
	}
	return nil, errors.NotFound("alert")
}

func (t *tx) ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, int64, error) {
	out := make([]*domain.Alert, 0)
	for _, a := range t.mergedAlerts() {
		if filter.Matches(a) {
			out = append(out, cloneAlert(a))
		}
	}

	rank := map[domain.AlertCategory]int{domain.CategoryCritical: 0, domain.CategoryWarning: 1, domain.CategoryInfo: 2}
	sort.Slice(out, func(i, j int) bool {
		if rank[out[i].Category] != rank[out[j].Category] {
			return rank[out[i].Category] < rank[out[j].Category]
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	total := int64(len(out))
	return paginate(out, filter.Limit, filter.Offset), total, nil
}

func (t *tx) MarkAlertRead(ctx context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	a, err := t.GetAlert(ctx, id)
	if err != nil {
		return err
	}
	a.IsRead = true
	t.alerts[id] = a
	return nil
}

func (t *tx) MarkAllAlertsRead(ctx context.Context) (int64, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	var n int64
	for id, a := range t.mergedAlerts() {
		if a.IsRead {
			continue
		}
		c := cloneAlert(a)
		c.IsRead = true
		t.alerts[id] = c
		n++
	}
	return n, nil
}

func (t *tx) ResolveAlert(ctx context.Context, id, resolvedBy string, notes *string, at time.Time) error {
	if err := t.writable(); err != nil {
		return err
	}
	a, err := t.GetAlert(ctx, id)
	if err != nil {
		return err
	}
	if a.IsResolved {
		return errors.Conflict("alert is already resolved")
	}

	a.IsResolved = true
	a.IsRead = true
	a.ResolvedAt = &at
	a.ResolvedBy = &resolvedBy
	a.ResolutionNotes = notes
	t.alerts[id] = a
	return nil
}

func (t *tx) DeleteAlertsForTarget(ctx context.Context, targetID string) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.purgedTargets[targetID] = true
	for id, a := range t.alerts {
		if a.TargetID != nil && *a.TargetID == targetID {
			delete(t.alerts, id)
		}
	}
	kept := t.newAlerts[:0]
	for _, id := range t.newAlerts {
		if _, ok := t.alerts[id]; ok {
			kept = append(kept, id)
		}
	}
	t.newAlerts = kept
	return nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
