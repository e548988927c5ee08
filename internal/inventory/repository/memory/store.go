// Package memory implements the ledger store in process memory. Units of
// work lock their scope with per-entity keyed locks taken in canonical
// order, stage writes privately and publish them in one step on commit.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// Store is an in-memory repository.Store
type Store struct {
	mu      sync.RWMutex
	tenants map[string]*tenantData
	locks   *keyedLocks
	now     func() time.Time
}

var _ repository.Store = (*Store)(nil)

// New creates an empty store using the wall clock
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock creates an empty store stamping rows with now
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		tenants: make(map[string]*tenantData),
		locks:   newKeyedLocks(),
		now:     now,
	}
}

type tenantData struct {
	products  map[string]*domain.Product
	skus      map[string]string
	depots    map[string]*domain.Depot
	allocs    map[domain.AllocationKey]domain.Allocation
	byProduct map[string]map[string]struct{}
	byDepot   map[string]map[string]struct{}
	txns      []*domain.Transaction
	idem      map[string]*domain.Transaction
	alerts    map[string]*domain.Alert
	openSlots map[string]string
}

func newTenantData() *tenantData {
	return &tenantData{
		products:  make(map[string]*domain.Product),
		skus:      make(map[string]string),
		depots:    make(map[string]*domain.Depot),
		allocs:    make(map[domain.AllocationKey]domain.Allocation),
		byProduct: make(map[string]map[string]struct{}),
		byDepot:   make(map[string]map[string]struct{}),
		idem:      make(map[string]*domain.Transaction),
		alerts:    make(map[string]*domain.Alert),
		openSlots: make(map[string]string),
	}
}

// emptyTenant is returned for reads of tenants without data
var emptyTenant = newTenantData()

// data returns the tenant's committed state. Callers hold s.mu.
func (s *Store) data(tenantID string) *tenantData {
	if d, ok := s.tenants[tenantID]; ok {
		return d
	}
	return emptyTenant
}

// dataForWrite returns the tenant's committed state, creating it. Callers hold s.mu for writing.
func (s *Store) dataForWrite(tenantID string) *tenantData {
	d, ok := s.tenants[tenantID]
	if !ok {
		d = newTenantData()
		s.tenants[tenantID] = d
	}
	return d
}

// Atomic runs fn with the scope locked and commits its staged writes
func (s *Store) Atomic(ctx context.Context, tenantID string, scope domain.LockScope, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	keys := scope.Keys()
	for i, k := range keys {
		keys[i] = tenantID + "/" + k
	}

	release, err := s.locks.acquire(ctx, keys)
	if err != nil {
		return err
	}
	defer release()

	t := newTx(s, tenantID, false)
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(t)
}

// View runs fn against committed state; writes are refused
func (s *Store) View(ctx context.Context, tenantID string, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, newTx(s, tenantID, true))
}

// ListTenants returns every tenant owning a product or depot
func (s *Store) ListTenants(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenants := make([]string, 0, len(s.tenants))
	for id, d := range s.tenants {
		if len(d.products) > 0 || len(d.depots) > 0 {
			tenants = append(tenants, id)
		}
	}
	sort.Strings(tenants)
	return tenants, nil
}

// commit validates the staged writes against committed state and applies
// them in one step. Nothing is applied when validation fails.
func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.dataForWrite(t.tenantID)

	for id, p := range t.products {
		if p == nil {
			continue
		}
		if owner, ok := d.skus[p.SKU]; ok && owner != id && !t.freesSKU(owner, p.SKU) {
			return errors.Conflict("a product with this SKU already exists")
		}
	}
	for _, txn := range t.txns {
		if txn.IdempotencyKey != nil {
			if _, ok := d.idem[*txn.IdempotencyKey]; ok {
				return errors.Conflict("a transaction with this idempotency key already exists")
			}
		}
	}
	for _, id := range t.newAlerts {
		a := t.alerts[id]
		if key, ok := a.DedupKey(); ok && !a.IsResolved {
			if holder, taken := d.openSlots[key]; taken && !t.releasesSlot(d, holder) {
				return errors.Conflict("an open alert of this type already exists for the target")
			}
		}
	}

	// Alerts purged for deleted targets go first so staged alerts survive.
	for target := range t.purgedTargets {
		for id, a := range d.alerts {
			if a.TargetID != nil && *a.TargetID == target {
				d.removeAlert(id)
			}
		}
	}

	for key, a := range t.allocs {
		if a == nil {
			d.deleteAllocation(key)
		} else {
			d.putAllocation(*a)
		}
	}
	for id, p := range t.products {
		if p == nil {
			if old, ok := d.products[id]; ok {
				delete(d.skus, old.SKU)
				delete(d.products, id)
			}
			continue
		}
		if old, ok := d.products[id]; ok && old.SKU != p.SKU {
			delete(d.skus, old.SKU)
		}
		d.products[id] = p
		d.skus[p.SKU] = id
	}
	for id, dep := range t.depots {
		if dep == nil {
			delete(d.depots, id)
			continue
		}
		d.depots[id] = dep
	}
	for _, txn := range t.txns {
		d.txns = append(d.txns, txn)
		if txn.IdempotencyKey != nil {
			d.idem[*txn.IdempotencyKey] = txn
		}
	}
	for _, a := range t.alerts {
		d.putAlert(a)
	}
	return nil
}

func (d *tenantData) putAllocation(a domain.Allocation) {
	key := a.Key()
	d.allocs[key] = a
	if d.byProduct[a.ProductID] == nil {
		d.byProduct[a.ProductID] = make(map[string]struct{})
	}
	d.byProduct[a.ProductID][a.DepotID] = struct{}{}
	if d.byDepot[a.DepotID] == nil {
		d.byDepot[a.DepotID] = make(map[string]struct{})
	}
	d.byDepot[a.DepotID][a.ProductID] = struct{}{}
}

func (d *tenantData) deleteAllocation(key domain.AllocationKey) {
	delete(d.allocs, key)
	if m := d.byProduct[key.ProductID]; m != nil {
		delete(m, key.DepotID)
		if len(m) == 0 {
			delete(d.byProduct, key.ProductID)
		}
	}
	if m := d.byDepot[key.DepotID]; m != nil {
		delete(m, key.ProductID)
		if len(m) == 0 {
			delete(d.byDepot, key.DepotID)
		}
	}
}

func (d *tenantData) putAlert(a *domain.Alert) {
	if old, ok := d.alerts[a.ID]; ok {
		if key, ok := old.DedupKey(); ok && d.openSlots[key] == a.ID {
			delete(d.openSlots, key)
		}
	}
	d.alerts[a.ID] = a
	if key, ok := a.DedupKey(); ok && !a.IsResolved {
		d.openSlots[key] = a.ID
	}
}

func (d *tenantData) removeAlert(id string) {
	a, ok := d.alerts[id]
	if !ok {
		return
	}
	if key, ok := a.DedupKey(); ok && d.openSlots[key] == id {
		delete(d.openSlots, key)
	}
	delete(d.alerts, id)
}

// Seed writes entities directly, bypassing the ledger. For fixtures and
// for reproducing corrupted state in tests; stored projections are taken
// as given.
func (s *Store) Seed(tenantID string, products []*domain.Product, depots []*domain.Depot, allocations []domain.Allocation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.dataForWrite(tenantID)
	for _, p := range products {
		c := cloneProduct(p)
		c.TenantID = tenantID
		d.products[c.ID] = c
		d.skus[c.SKU] = c.ID
	}
	for _, dep := range depots {
		c := cloneDepot(dep)
		c.TenantID = tenantID
		d.depots[c.ID] = c
	}
	for _, a := range allocations {
		a.TenantID = tenantID
		if a.Quantity == 0 {
			d.deleteAllocation(a.Key())
			continue
		}
		d.putAllocation(a)
	}
}
