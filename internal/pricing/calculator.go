package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Line item types.
const (
	LineBase      = "base"
	LineAdditive  = "additive"
	LineSurcharge = "surcharge"
)

// LineItem is one row of a quote breakdown. Values are integer cents.
type LineItem struct {
	Label      string `json:"label"`
	ValueCents int64  `json:"valueCents"`
	Type       string `json:"type"`
}

// QuoteBreakdown is the complete, itemized result of a price calculation.
// It is a pure derived value: once captured into a cart or order it is an
// immutable historical snapshot that later rule changes never alter.
type QuoteBreakdown struct {
	Volume      NormalizedVolume `json:"volume"`
	ServiceType string           `json:"serviceType"`
	Strength    string           `json:"strength"`

	UnitPricePerM3Cents    int64 `json:"unitPricePerM3Cents"`
	BaseSubtotalCents      int64 `json:"baseSubtotalCents"`
	AdditivesSubtotalCents int64 `json:"additivesSubtotalCents"`
	SubtotalCents          int64 `json:"subtotalCents"`
	VATCents               int64 `json:"vatCents"`
	TotalCents             int64 `json:"totalCents"`

	Currency     string     `json:"currency"`
	RulesVersion int64      `json:"rulesVersion"`
	LineItems    []LineItem `json:"lineItems"`

	// MinimumNote is set when the billed volume exceeds the rounded request
	// because of the minimum-order policy, so the UI can disclose the
	// upcharge instead of applying it silently.
	MinimumNote string `json:"minimumNote,omitempty"`

	// IgnoredAdditiveIDs lists selected additives that were unknown or
	// inactive in the active rules. They are omitted from pricing, never
	// fatal; the caller logs them for operator visibility.
	IgnoredAdditiveIDs []string `json:"ignoredAdditiveIds,omitempty"`
}

// Calculate produces a QuoteBreakdown from a normalized volume, a strength
// class, a service type, selected additive ids, and an immutable rule set.
//
// It is deterministic: identical inputs, including the exact rules value,
// always produce identical output. Line items are ordered base first, then
// additives in rule-set declaration order regardless of selection order.
func Calculate(vol NormalizedVolume, strength, serviceType string, additiveIDs []string, rules PricingRules) (QuoteBreakdown, error) {
	tier, err := rules.TierFor(serviceType, strength, vol.BilledM3)
	if err != nil {
		return QuoteBreakdown{}, err
	}

	baseSubtotal := centsTimesVolume(tier.PricePerM3Cents, vol.BilledM3)

	lineItems := []LineItem{{
		Label:      fmt.Sprintf("Concrete %s kg/cm² (%s), %s m³", strength, serviceType, vol.BilledM3),
		ValueCents: baseSubtotal,
		Type:       LineBase,
	}}

	selected := make(map[string]bool, len(additiveIDs))
	for _, id := range additiveIDs {
		selected[id] = true
	}

	var additivesSubtotal int64
	var ignored []string

	// Iterate rule-set order, not selection order, for deterministic output.
	for _, a := range rules.Additives {
		if !selected[a.ID] {
			continue
		}
		delete(selected, a.ID)

		if !a.Active {
			ignored = append(ignored, a.ID)
			continue
		}

		var contribution int64
		switch a.PricingModel {
		case PricingPerM3:
			contribution = centsTimesVolume(a.PriceCents, vol.BilledM3)
		case PricingFixed:
			contribution = a.PriceCents
		default:
			// Validated rules never carry an unknown model; treat a stale
			// one like an inactive additive rather than failing the quote.
			ignored = append(ignored, a.ID)
			continue
		}

		additivesSubtotal += contribution
		lineItems = append(lineItems, LineItem{
			Label:      a.Label,
			ValueCents: contribution,
			Type:       LineAdditive,
		})
	}

	// Anything still selected referenced an id the rules don't know.
	for _, id := range additiveIDs {
		if selected[id] {
			ignored = append(ignored, id)
			delete(selected, id)
		}
	}

	subtotal := baseSubtotal + additivesSubtotal
	vat := roundHalfUp(decimal.NewFromInt(subtotal).Mul(rules.VATRate))
	total := subtotal + vat

	breakdown := QuoteBreakdown{
		Volume:                 vol,
		ServiceType:            serviceType,
		Strength:               strength,
		UnitPricePerM3Cents:    tier.PricePerM3Cents,
		BaseSubtotalCents:      baseSubtotal,
		AdditivesSubtotalCents: additivesSubtotal,
		SubtotalCents:          subtotal,
		VATCents:               vat,
		TotalCents:             total,
		Currency:               rules.Currency,
		RulesVersion:           rules.Version,
		LineItems:              lineItems,
		IgnoredAdditiveIDs:     ignored,
	}

	if vol.IsBelowMinimum {
		breakdown.MinimumNote = fmt.Sprintf(
			"Requested %s m³ is below the %s m³ minimum for %s delivery; the minimum is billed.",
			vol.RequestedM3, vol.MinM3ForType, serviceType,
		)
	}

	return breakdown, nil
}

// centsTimesVolume multiplies an integer-cent price by a decimal volume and
// rounds half-up to the nearest cent. Truncation would systematically
// underprice.
func centsTimesVolume(priceCents int64, volume decimal.Decimal) int64 {
	return roundHalfUp(decimal.NewFromInt(priceCents).Mul(volume))
}

// roundHalfUp rounds a positive decimal amount to the nearest integer cent,
// halves away from zero.
func roundHalfUp(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
