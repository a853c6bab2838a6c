package testutil

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/concretoya/api/internal/pricing"
)

// FixtureActiveRules inserts rules as the active pricing_rules row.
func (tdb *TestDB) FixtureActiveRules(t *testing.T, rules pricing.PricingRules) {
	t.Helper()

	payload, err := json.Marshal(rules)
	if err != nil {
		t.Fatalf("marshaling fixture rules: %v", err)
	}

	_, err = tdb.Pool.Exec(context.Background(), `
		INSERT INTO pricing_rules (id, version, active, payload)
		VALUES ($1, $2, true, $3)
	`, uuid.New(), rules.Version, payload)
	if err != nil {
		t.Fatalf("inserting fixture rules version %d: %v", rules.Version, err)
	}
}

// FixtureRawRules inserts an arbitrary payload as the active rules row,
// for exercising the resolver's invalid-payload path.
func (tdb *TestDB) FixtureRawRules(t *testing.T, version int64, payload []byte) {
	t.Helper()

	_, err := tdb.Pool.Exec(context.Background(), `
		INSERT INTO pricing_rules (id, version, active, payload)
		VALUES ($1, $2, true, $3)
	`, uuid.New(), version, payload)
	if err != nil {
		t.Fatalf("inserting raw fixture rules version %d: %v", version, err)
	}
}
