package classify

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/quarterly-dev/quarterly/internal/category"
)

func TestKey_Deterministic(t *testing.T) {
	a := Key(category.SelfEmployment, decimal.NewFromFloat(12.5), "Hotel stay Manchester")
	b := Key(category.SelfEmployment, decimal.NewFromFloat(12.5), "Hotel stay Manchester")
	if a != b {
		t.Fatalf("keys differ: %q vs %q", a, b)
	}
}

func TestKey_NormalizesDescriptionAndSign(t *testing.T) {
	a := Key(category.SelfEmployment, decimal.NewFromFloat(-12.5), "  HOTEL   stay\tManchester ")
	b := Key(category.SelfEmployment, decimal.NewFromFloat(12.5), "hotel stay manchester")
	if a != b {
		t.Fatalf("normalized keys differ: %q vs %q", a, b)
	}
}

func TestKey_ScopesByBusinessTypeAndAmount(t *testing.T) {
	base := Key(category.SelfEmployment, decimal.NewFromInt(10), "desk hire")
	if Key(category.UKProperty, decimal.NewFromInt(10), "desk hire") == base {
		t.Error("business type must scope the key")
	}
	if Key(category.SelfEmployment, decimal.NewFromInt(11), "desk hire") == base {
		t.Error("amount must scope the key")
	}
}

func TestKey_BoundsDescriptionPrefix(t *testing.T) {
	long := "supplies from a very long merchant name that keeps going with reference 12345678"
	a := Key(category.SelfEmployment, decimal.NewFromInt(5), long)
	b := Key(category.SelfEmployment, decimal.NewFromInt(5), long[:60])
	if a != b {
		t.Error("descriptions beyond the prefix length must not affect the key")
	}
}

func TestCache_ConcurrentInsert(t *testing.T) {
	cache := NewCache()
	outcome := Outcome{Kind: OutcomeCategory, Category: category.TravelCosts}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache.Put("k", outcome)
			cache.Get("k")
		}()
	}
	wg.Wait()

	got, ok := cache.Get("k")
	if !ok || got.Category != category.TravelCosts {
		t.Fatalf("expected cached travelCosts outcome, got %+v ok=%v", got, ok)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", cache.Len())
	}
}
