package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// FallbackRules returns the hardcoded known-good rule set the resolver
// serves whenever the live rules are unreachable or invalid. It must always
// pass Validate; fallback_test.go enforces that so the static copy cannot
// drift from the validator's schema.
//
// Prices are MXN cents per cubic meter. Kept in sync with the plant's
// published price list by the seed-rules command, which inserts this same
// value as the initial active row.
func FallbackRules() PricingRules {
	return PricingRules{
		Version:     1,
		LastUpdated: time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC),
		VATRate:     decimal.RequireFromString("0.16"),
		Currency:    "MXN",

		VolumeStepM3: decimal.RequireFromString("0.5"),

		MinOrderQuantity: map[string]decimal.Decimal{
			ServiceDirect: decimal.NewFromInt(3),
			ServicePumped: decimal.NewFromInt(4),
		},

		Base: map[string]map[string][]VolumeTier{
			ServiceDirect: {
				"150": {
					{MinM3: decimal.Zero, PricePerM3Cents: 229000},
					{MinM3: decimal.NewFromInt(7), PricePerM3Cents: 224000},
					{MinM3: decimal.NewFromInt(14), PricePerM3Cents: 219000},
				},
				"200": {
					{MinM3: decimal.Zero, PricePerM3Cents: 248100},
					{MinM3: decimal.NewFromInt(7), PricePerM3Cents: 243100},
					{MinM3: decimal.NewFromInt(14), PricePerM3Cents: 238100},
				},
				"250": {
					{MinM3: decimal.Zero, PricePerM3Cents: 267500},
					{MinM3: decimal.NewFromInt(7), PricePerM3Cents: 262500},
					{MinM3: decimal.NewFromInt(14), PricePerM3Cents: 257500},
				},
				"300": {
					{MinM3: decimal.Zero, PricePerM3Cents: 289900},
					{MinM3: decimal.NewFromInt(7), PricePerM3Cents: 284900},
					{MinM3: decimal.NewFromInt(14), PricePerM3Cents: 279900},
				},
			},
			ServicePumped: {
				"150": {
					{MinM3: decimal.Zero, PricePerM3Cents: 254500},
					{MinM3: decimal.NewFromInt(7), PricePerM3Cents: 249500},
					{MinM3: decimal.NewFromInt(14), PricePerM3Cents: 244500},
				},
				"200": {
					{MinM3: decimal.Zero, PricePerM3Cents: 273600},
					{MinM3: decimal.NewFromInt(7), PricePerM3Cents: 268600},
					{MinM3: decimal.NewFromInt(14), PricePerM3Cents: 263600},
				},
				"250": {
					{MinM3: decimal.Zero, PricePerM3Cents: 293000},
					{MinM3: decimal.NewFromInt(7), PricePerM3Cents: 288000},
					{MinM3: decimal.NewFromInt(14), PricePerM3Cents: 283000},
				},
				"300": {
					{MinM3: decimal.Zero, PricePerM3Cents: 315400},
					{MinM3: decimal.NewFromInt(7), PricePerM3Cents: 310400},
					{MinM3: decimal.NewFromInt(14), PricePerM3Cents: 305400},
				},
			},
		},

		Additives: []Additive{
			{
				ID:           "fiber",
				Label:        "Fibra de refuerzo",
				Description:  "Polypropylene fiber reinforcement, dosed per cubic meter",
				Active:       true,
				PricingModel: PricingPerM3,
				PriceCents:   35000,
			},
			{
				ID:           "impermeable",
				Label:        "Impermeabilizante integral",
				Description:  "Integral waterproofing admixture",
				Active:       true,
				PricingModel: PricingPerM3,
				PriceCents:   28000,
			},
			{
				ID:           "accelerant",
				Label:        "Acelerante de fraguado",
				Description:  "Set accelerator for early strength",
				Active:       true,
				PricingModel: PricingPerM3,
				PriceCents:   21500,
			},
			{
				ID:           "weekend_delivery",
				Label:        "Entrega en fin de semana",
				Description:  "Saturday or Sunday delivery window",
				Active:       true,
				PricingModel: PricingFixed,
				PriceCents:   180000,
			},
			{
				ID:           "retardant",
				Label:        "Retardante de fraguado",
				Description:  "Set retarder, currently unavailable",
				Active:       false,
				PricingModel: PricingPerM3,
				PriceCents:   19000,
			},
		},

		CofferedFactors: map[string]decimal.Decimal{
			"40": decimal.RequireFromString("0.80"),
			"45": decimal.RequireFromString("0.85"),
			"50": decimal.RequireFromString("0.90"),
		},
	}
}
