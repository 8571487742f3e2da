package classify

import (
	"regexp"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/quarterly-dev/quarterly/internal/category"
)

// cacheKeyDescLen bounds the description prefix used in cache keys. Longer
// descriptions differ only in reference-number noise.
const cacheKeyDescLen = 40

var whitespaceRun = regexp.MustCompile(`\s+`)

// Cache memoizes classification outcomes for one submission's lifetime. Only
// category and personal outcomes are stored; errors and manual-review results
// are never cached, so a bad or ambiguous response cannot calcify. Safe for
// concurrent use within a batch; duplicate inserts for the same key are
// last-write-wins, which is fine because equal keys are expected to carry
// equal outcomes.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Outcome
}

// NewCache creates an empty classification cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Outcome)}
}

// Key builds the deterministic composite cache key for a row.
func Key(bt category.BusinessType, amount decimal.Decimal, description string) string {
	desc := whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(description)), " ")
	if len(desc) > cacheKeyDescLen {
		desc = desc[:cacheKeyDescLen]
	}
	return string(bt) + "|" + amount.Abs().StringFixed(2) + "|" + desc
}

// Get returns the cached outcome for key, if present.
func (c *Cache) Get(key string) (Outcome, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.entries[key]
	return o, ok
}

// Put stores an outcome. Callers only store category and personal outcomes.
func (c *Cache) Put(key string, o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = o
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
