// Package pricing implements the quote pricing engine: the versioned pricing
// rule model, volume normalization, the deterministic quote calculator, and
// the resolver that fetches active rules with a static fallback.
//
// All money values are integer cents; pesos appear only at presentation
// boundaries. Volumes are decimal cubic meters.
package pricing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Service types (concrete delivery methods).
const (
	ServiceDirect = "direct"
	ServicePumped = "pumped"
)

// ServiceTypes lists every service type the engine prices. The validator
// requires a minimum order quantity and at least one tier table per entry.
var ServiceTypes = []string{ServiceDirect, ServicePumped}

// Strength classes (compressive strength, kg/cm²).
var StrengthClasses = []string{"150", "200", "250", "300"}

// Additive pricing models.
const (
	PricingPerM3 = "per_m3"
	PricingFixed = "fixed"
)

// VolumeTier is a volume-threshold-keyed unit price. The tier that applies
// to a billed volume V is the one with the greatest MinM3 <= V.
type VolumeTier struct {
	MinM3           decimal.Decimal `json:"minM3"`
	PricePerM3Cents int64           `json:"pricePerM3Cents"`
}

// Additive is an optional extra priced per cubic meter or as a flat fee.
type Additive struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	Description  string `json:"description"`
	Active       bool   `json:"active"`
	PricingModel string `json:"pricingModel"`
	PriceCents   int64  `json:"priceCents"`
}

// PricingRules is the versioned pricing configuration. Once resolved it is
// treated as an immutable value for the duration of a calculation; concurrent
// calculations over the same rules need no locking.
type PricingRules struct {
	Version     int64     `json:"version"`
	LastUpdated time.Time `json:"lastUpdated"`

	VATRate  decimal.Decimal `json:"vatRate"`
	Currency string          `json:"currency"`

	// VolumeStepM3 is the billing rounding granularity. Requested volumes
	// round up to the next multiple so the plant never under-delivers.
	VolumeStepM3 decimal.Decimal `json:"volumeStepM3"`

	// MinOrderQuantity maps service type to the minimum billable volume.
	MinOrderQuantity map[string]decimal.Decimal `json:"minOrderQuantity"`

	// Base maps service type -> strength class -> tiers sorted ascending
	// by MinM3, covering volume 0 upward.
	Base map[string]map[string][]VolumeTier `json:"base"`

	Additives []Additive `json:"additives"`

	// CofferedFactors maps a coffered slab size class (e.g. "40", "45",
	// "50" cm) to the multiplier applied to the geometric slab volume.
	CofferedFactors map[string]decimal.Decimal `json:"cofferedFactors"`
}

// ValidationError reports why an external rules payload was rejected.
// Each reason is human-diagnosable and names the offending field.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid pricing rules: %s", strings.Join(e.Reasons, "; "))
}

// ParseRules decodes and validates an external JSON payload. It is the only
// way untrusted bytes become a PricingRules value.
func ParseRules(raw []byte) (PricingRules, error) {
	var rules PricingRules
	if err := json.Unmarshal(raw, &rules); err != nil {
		return PricingRules{}, &ValidationError{Reasons: []string{fmt.Sprintf("payload is not valid JSON: %v", err)}}
	}
	if err := rules.Validate(); err != nil {
		return PricingRules{}, err
	}
	return rules, nil
}

// Validate checks the full PricingRules shape. It collects every violation
// rather than stopping at the first so operators can fix a bad payload in
// one pass. Pure: no side effects.
func (r PricingRules) Validate() error {
	var reasons []string

	if r.Version <= 0 {
		reasons = append(reasons, fmt.Sprintf("version must be a positive integer, got %d", r.Version))
	}
	if !r.VATRate.IsPositive() || r.VATRate.GreaterThan(decimal.NewFromInt(1)) {
		reasons = append(reasons, fmt.Sprintf("vatRate must be in (0, 1], got %s", r.VATRate))
	}
	if r.Currency == "" {
		reasons = append(reasons, "currency is required")
	}
	if !r.VolumeStepM3.IsPositive() {
		reasons = append(reasons, fmt.Sprintf("volumeStepM3 must be positive, got %s", r.VolumeStepM3))
	}

	for _, svc := range ServiceTypes {
		min, ok := r.MinOrderQuantity[svc]
		if !ok {
			reasons = append(reasons, fmt.Sprintf("minOrderQuantity missing service type %q", svc))
		} else if !min.IsPositive() {
			reasons = append(reasons, fmt.Sprintf("minOrderQuantity[%s] must be positive, got %s", svc, min))
		}

		tables, ok := r.Base[svc]
		if !ok || len(tables) == 0 {
			reasons = append(reasons, fmt.Sprintf("base missing tier tables for service type %q", svc))
			continue
		}
		for strength, tiers := range tables {
			reasons = append(reasons, validateTiers(svc, strength, tiers)...)
		}
	}

	seen := make(map[string]bool, len(r.Additives))
	for i, a := range r.Additives {
		if a.ID == "" {
			reasons = append(reasons, fmt.Sprintf("additives[%d] has empty id", i))
			continue
		}
		if seen[a.ID] {
			reasons = append(reasons, fmt.Sprintf("additive id %q is duplicated", a.ID))
		}
		seen[a.ID] = true
		if a.PricingModel != PricingPerM3 && a.PricingModel != PricingFixed {
			reasons = append(reasons, fmt.Sprintf("additive %q has unrecognized pricingModel %q", a.ID, a.PricingModel))
		}
		if a.PriceCents < 0 {
			reasons = append(reasons, fmt.Sprintf("additive %q has negative priceCents %d", a.ID, a.PriceCents))
		}
	}

	for size, factor := range r.CofferedFactors {
		if !factor.IsPositive() {
			reasons = append(reasons, fmt.Sprintf("cofferedFactors[%s] must be positive, got %s", size, factor))
		}
	}

	if len(reasons) > 0 {
		return &ValidationError{Reasons: reasons}
	}
	return nil
}

// validateTiers checks a single (service type, strength) tier sequence:
// non-empty, first tier at MinM3 0, strictly ascending MinM3 (no duplicates),
// non-negative prices. A negative price is a rejection, never a clamp.
func validateTiers(svc, strength string, tiers []VolumeTier) []string {
	prefix := fmt.Sprintf("base[%s][%s]", svc, strength)

	if len(tiers) == 0 {
		return []string{prefix + " has no tiers"}
	}

	var reasons []string
	if !tiers[0].MinM3.IsZero() {
		reasons = append(reasons, fmt.Sprintf("%s first tier must start at minM3 0, got %s", prefix, tiers[0].MinM3))
	}
	for i, t := range tiers {
		if t.MinM3.IsNegative() {
			reasons = append(reasons, fmt.Sprintf("%s tier %d has negative minM3 %s", prefix, i, t.MinM3))
		}
		if t.PricePerM3Cents < 0 {
			reasons = append(reasons, fmt.Sprintf("%s tier %d has negative pricePerM3Cents %d", prefix, i, t.PricePerM3Cents))
		}
		if i > 0 && !tiers[i-1].MinM3.LessThan(t.MinM3) {
			reasons = append(reasons, fmt.Sprintf("%s tiers must be strictly ascending by minM3: tier %d (%s) does not exceed tier %d (%s)",
				prefix, i, t.MinM3, i-1, tiers[i-1].MinM3))
		}
	}
	return reasons
}

// TierFor selects the tier for (serviceType, strength) whose MinM3 is the
// greatest value <= volume. A missing tier table is a configuration error:
// the caller must fail the calculation rather than default to a zero price.
func (r PricingRules) TierFor(serviceType, strength string, volume decimal.Decimal) (VolumeTier, error) {
	tiers := r.Base[serviceType][strength]
	if len(tiers) == 0 {
		return VolumeTier{}, &NotConfiguredError{ServiceType: serviceType, Strength: strength}
	}

	selected := tiers[0]
	for _, t := range tiers[1:] {
		if t.MinM3.LessThanOrEqual(volume) {
			selected = t
		}
	}
	return selected, nil
}

// AdditiveByID returns the additive definition for id, active or not.
func (r PricingRules) AdditiveByID(id string) (Additive, bool) {
	for _, a := range r.Additives {
		if a.ID == id {
			return a, true
		}
	}
	return Additive{}, false
}

// NotConfiguredError signals that the active rule set has no tier table for
// a requested (service type, strength) combination. The quote is refused;
// the price is never guessed.
type NotConfiguredError struct {
	ServiceType string
	Strength    string
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("pricing not configured for service type %q strength %q", e.ServiceType, e.Strength)
}
