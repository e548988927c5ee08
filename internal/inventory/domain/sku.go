package domain

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

var categoryCodes = map[string]string{
	"electronics": "ELEC",
	"apparel":     "APRL",
	"clothing":    "APRL",
	"home":        "HOME",
	"sports":      "SPRT",
	"books":       "BOOK",
	"food":        "FOOD",
	"toys":        "TOYS",
	"beauty":      "BETY",
	"automotive":  "AUTO",
	"health":      "HLTH",
}

const skuAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CategoryCode returns the four-letter SKU prefix for a category
func CategoryCode(category string) string {
	key := strings.ToLower(strings.TrimSpace(category))
	if code, ok := categoryCodes[key]; ok {
		return code
	}
	// "Home & Garden", "Sports Equipment" and similar
	if first, _, found := strings.Cut(key, " "); found {
		if code, ok := categoryCodes[first]; ok {
			return code
		}
	}
	return "MISC"
}

// SKUGenerator builds SKUs of the form CODE-<8 digits of unix millis>-<4 alphanumerics>
type SKUGenerator struct {
	mu   sync.Mutex
	now  func() time.Time
	rand *rand.Rand
}

// NewSKUGenerator creates a generator using the wall clock and a time seed
func NewSKUGenerator() *SKUGenerator {
	return NewSKUGeneratorWith(time.Now, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewSKUGeneratorWith creates a generator with an explicit clock and source
func NewSKUGeneratorWith(now func() time.Time, r *rand.Rand) *SKUGenerator {
	return &SKUGenerator{now: now, rand: r}
}

// Generate returns a new SKU for the category
func (g *SKUGenerator) Generate(category string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	millis := g.now().UnixMilli() % 100_000_000
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = skuAlphabet[g.rand.Intn(len(skuAlphabet))]
	}
	return fmt.Sprintf("%s-%08d-%s", CategoryCode(category), millis, suffix)
}
