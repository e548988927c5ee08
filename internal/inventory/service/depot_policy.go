package service

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
)

// DepotPolicy picks the existing depot an import row should stock into.
// It returns nil when the reconciler should create a depot instead.
type DepotPolicy func(depots []*domain.Depot, wanted string) *domain.Depot

// DepotDefaults describes the depot auto-created when no depot exists
type DepotDefaults struct {
	Name     string
	Location string
	Capacity int64
}

// DefaultDepotDefaults matches the ledger configuration defaults
var DefaultDepotDefaults = DepotDefaults{
	Name:     "Main Warehouse",
	Location: domain.DefaultLocation,
	Capacity: 10000,
}

// NewDepotPolicy matches by exact name, then by case-insensitive substring,
// then falls back to a depot chosen with r. A nil r is seeded from the clock.
func NewDepotPolicy(r *rand.Rand) DepotPolicy {
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	var mu sync.Mutex

	return func(depots []*domain.Depot, wanted string) *domain.Depot {
		if len(depots) == 0 {
			return nil
		}
		if d := matchDepot(depots, wanted); d != nil {
			return d
		}
		mu.Lock()
		i := r.Intn(len(depots))
		mu.Unlock()
		return depots[i]
	}
}

// StrictDepotPolicy matches by name only and never falls back to another depot
func StrictDepotPolicy(depots []*domain.Depot, wanted string) *domain.Depot {
	return matchDepot(depots, wanted)
}

func matchDepot(depots []*domain.Depot, wanted string) *domain.Depot {
	wanted = strings.TrimSpace(wanted)
	if wanted == "" {
		return nil
	}
	for _, d := range depots {
		if d.Name == wanted {
			return d
		}
	}
	lower := strings.ToLower(wanted)
	for _, d := range depots {
		if strings.Contains(strings.ToLower(d.Name), lower) {
			return d
		}
	}
	return nil
}
