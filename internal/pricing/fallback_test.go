package pricing

import (
	"encoding/json"
	"testing"
)

func mustMarshalRules(t *testing.T, rules PricingRules) []byte {
	t.Helper()
	raw, err := json.Marshal(rules)
	if err != nil {
		t.Fatalf("marshal rules: %v", err)
	}
	return raw
}

func TestFallbackRules_AlwaysValid(t *testing.T) {
	if err := FallbackRules().Validate(); err != nil {
		t.Fatalf("fallback rules failed validation: %v", err)
	}
}

func TestFallbackRules_CoversEveryCombination(t *testing.T) {
	rules := FallbackRules()

	for _, svc := range ServiceTypes {
		for _, strength := range StrengthClasses {
			if _, err := rules.TierFor(svc, strength, rules.MinOrderQuantity[svc]); err != nil {
				t.Errorf("no tier for %s/%s: %v", svc, strength, err)
			}
		}
	}
}

func TestFallbackRules_SurviveJSONRoundTrip(t *testing.T) {
	raw := mustMarshalRules(t, FallbackRules())

	parsed, err := ParseRules(raw)
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}

	// The seed command persists this exact payload, so the parsed value must
	// price identically to the in-memory one.
	vol := mustNormalize(t, "5", ServiceDirect, parsed)
	got, err := Calculate(vol, "200", ServiceDirect, nil, parsed)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if got.TotalCents != 1438980 {
		t.Errorf("total after round trip = %d, want 1438980", got.TotalCents)
	}
}
