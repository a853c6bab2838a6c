package cart_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/concretoya/api/internal/pricing"
	"github.com/concretoya/api/internal/services/cart"
	"github.com/concretoya/api/internal/testutil"
)

var testDB *testutil.TestDB

func TestMain(m *testing.M) {
	var code int
	defer func() { os.Exit(code) }()

	db, err := testutil.SetupTestDB()
	if err != nil {
		log.Fatalf("setting up test database: %v", err)
	}
	defer db.Close()
	testDB = db

	code = m.Run()
}

// captureQuote prices a volume under the given rules and returns the state
// and breakdown the handler layer would capture.
func captureQuote(t *testing.T, volume string, rules pricing.PricingRules) (cart.CalculatorState, pricing.QuoteBreakdown) {
	t.Helper()

	vol, err := pricing.Normalize(decimal.RequireFromString(volume), pricing.ServiceDirect, rules, decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	breakdown, err := pricing.Calculate(vol, "200", pricing.ServiceDirect, []string{"fiber"}, rules)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	state := cart.CalculatorState{
		Mode:         "volume",
		ServiceType:  pricing.ServiceDirect,
		Strength:     "200",
		AdditiveIDs:  []string{"fiber"},
		Volume:       vol,
		RulesVersion: rules.Version,
	}
	return state, breakdown
}

func TestCreateAndGet(t *testing.T) {
	testDB.Truncate(t)
	svc := cart.NewService(testDB.Pool, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ExpiresAt.Before(created.CreatedAt) {
		t.Error("cart expires before it was created")
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("got cart %s, want %s", got.ID, created.ID)
	}

	_, err = svc.Get(ctx, uuid.New())
	if !errors.Is(err, cart.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAddItem(t *testing.T) {
	testDB.Truncate(t)
	svc := cart.NewService(testDB.Pool, nil)
	ctx := context.Background()

	c, err := svc.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rules := pricing.FallbackRules()
	state, breakdown := captureQuote(t, "5", rules)

	item, err := svc.AddItem(ctx, c.ID, state, breakdown)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	if item.TotalCents != breakdown.TotalCents {
		t.Errorf("item total = %d, want %d", item.TotalCents, breakdown.TotalCents)
	}
	if item.ServiceType != "direct" || item.Strength != "200" {
		t.Errorf("item = %s/%s", item.ServiceType, item.Strength)
	}
	if !item.BilledM3.Equal(decimal.NewFromInt(5)) {
		t.Errorf("billed = %s, want 5", item.BilledM3)
	}

	// The stored breakdown must decode back to the captured value.
	var stored pricing.QuoteBreakdown
	if err := json.Unmarshal(item.Breakdown, &stored); err != nil {
		t.Fatalf("decoding stored breakdown: %v", err)
	}
	if stored.TotalCents != breakdown.TotalCents || stored.RulesVersion != rules.Version {
		t.Errorf("stored breakdown = %+v", stored)
	}

	// Unknown cart refuses the capture.
	if _, err := svc.AddItem(ctx, uuid.New(), state, breakdown); !errors.Is(err, cart.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCapturedItemsAreImmutableSnapshots(t *testing.T) {
	testDB.Truncate(t)
	svc := cart.NewService(testDB.Pool, nil)
	ctx := context.Background()

	c, err := svc.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	oldRules := pricing.FallbackRules()
	state, breakdown := captureQuote(t, "5", oldRules)
	captured, err := svc.AddItem(ctx, c.ID, state, breakdown)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	before, err := svc.ListItems(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(before) != 1 {
		t.Fatalf("got %d items, want 1", len(before))
	}

	// Prices change: every tier doubles under a new rule-set version.
	newRules := pricing.FallbackRules()
	newRules.Version = 2
	for svcType, tables := range newRules.Base {
		for strength, tiers := range tables {
			doubled := make([]pricing.VolumeTier, len(tiers))
			for i, tier := range tiers {
				doubled[i] = pricing.VolumeTier{MinM3: tier.MinM3, PricePerM3Cents: tier.PricePerM3Cents * 2}
			}
			newRules.Base[svcType][strength] = doubled
		}
	}

	// A fresh quote prices higher under the new rules.
	_, fresh := captureQuote(t, "5", newRules)
	if fresh.TotalCents <= breakdown.TotalCents {
		t.Fatalf("fresh quote %d not above captured %d", fresh.TotalCents, breakdown.TotalCents)
	}

	// The previously captured line is untouched: same total, identical
	// stored payload.
	items, err := svc.ListItems(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].TotalCents != captured.TotalCents {
		t.Errorf("captured total changed: %d, want %d", items[0].TotalCents, captured.TotalCents)
	}
	if !bytes.Equal(items[0].Breakdown, before[0].Breakdown) {
		t.Error("captured breakdown changed after a rules update")
	}

	var storedState cart.CalculatorState
	if err := json.Unmarshal(items[0].State, &storedState); err != nil {
		t.Fatalf("decoding stored state: %v", err)
	}
	if storedState.RulesVersion != oldRules.Version {
		t.Errorf("stored rules version = %d, want the capture-time %d", storedState.RulesVersion, oldRules.Version)
	}
}

func TestListItems_CaptureOrder(t *testing.T) {
	testDB.Truncate(t)
	svc := cart.NewService(testDB.Pool, nil)
	ctx := context.Background()

	c, err := svc.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rules := pricing.FallbackRules()
	for _, volume := range []string{"3", "8", "15"} {
		state, breakdown := captureQuote(t, volume, rules)
		if _, err := svc.AddItem(ctx, c.ID, state, breakdown); err != nil {
			t.Fatalf("AddItem(%s): %v", volume, err)
		}
	}

	items, err := svc.ListItems(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}

	wantBilled := []string{"3", "8", "15"}
	for i, it := range items {
		if !it.BilledM3.Equal(decimal.RequireFromString(wantBilled[i])) {
			t.Errorf("item %d billed = %s, want %s", i, it.BilledM3, wantBilled[i])
		}
	}
}

func TestRemoveItem(t *testing.T) {
	testDB.Truncate(t)
	svc := cart.NewService(testDB.Pool, nil)
	ctx := context.Background()

	c, err := svc.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rules := pricing.FallbackRules()
	state, breakdown := captureQuote(t, "5", rules)
	item, err := svc.AddItem(ctx, c.ID, state, breakdown)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	if err := svc.RemoveItem(ctx, c.ID, item.ID); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}

	items, err := svc.ListItems(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("got %d items after removal", len(items))
	}

	if err := svc.RemoveItem(ctx, c.ID, item.ID); !errors.Is(err, cart.ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestClear(t *testing.T) {
	testDB.Truncate(t)
	svc := cart.NewService(testDB.Pool, nil)
	ctx := context.Background()

	c, err := svc.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rules := pricing.FallbackRules()
	for i := 0; i < 2; i++ {
		state, breakdown := captureQuote(t, "5", rules)
		if _, err := svc.AddItem(ctx, c.ID, state, breakdown); err != nil {
			t.Fatalf("AddItem: %v", err)
		}
	}

	if err := svc.Clear(ctx, c.ID); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	items, err := svc.ListItems(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("got %d items after clear", len(items))
	}
}
