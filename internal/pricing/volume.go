package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FieldError is a field-scoped input validation failure. Bad input is always
// rejected with the offending field named, never coerced to zero: a silent
// zero would produce a free or garbage quote.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NormalizedVolume is the single billable-volume value every quote is priced
// from, whichever input mode produced it.
type NormalizedVolume struct {
	RequestedM3    decimal.Decimal `json:"requestedM3"`
	RoundedM3      decimal.Decimal `json:"roundedM3"`
	MinM3ForType   decimal.Decimal `json:"minM3ForType"`
	BilledM3       decimal.Decimal `json:"billedM3"`
	IsBelowMinimum bool            `json:"isBelowMinimum"`
}

// ParseVolumeM3 sanitizes and parses a user-entered cubic-meter quantity.
// Thousands separators (commas, spaces) are stripped; anything that is not
// a plain positive number is rejected.
func ParseVolumeM3(raw string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" {
		return decimal.Zero, &FieldError{Field: "volume", Message: "volume is required"}
	}

	v, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, &FieldError{Field: "volume", Message: fmt.Sprintf("%q is not a valid number", raw)}
	}
	return v, nil
}

// Normalize turns a requested volume into a NormalizedVolume under the active
// rules: reject out-of-range input, round up to the billing step, then
// enforce the per-service-type minimum. maxM3 is the web-order ceiling;
// larger orders go through an out-of-band sales channel.
func Normalize(requested decimal.Decimal, serviceType string, rules PricingRules, maxM3 decimal.Decimal) (NormalizedVolume, error) {
	if !requested.IsPositive() {
		return NormalizedVolume{}, &FieldError{Field: "volume", Message: "volume must be greater than zero"}
	}
	if requested.GreaterThan(maxM3) {
		return NormalizedVolume{}, &FieldError{
			Field:   "volume",
			Message: fmt.Sprintf("volumes above %s m³ must be quoted directly with sales", maxM3),
		}
	}

	min, ok := rules.MinOrderQuantity[serviceType]
	if !ok {
		return NormalizedVolume{}, &FieldError{Field: "serviceType", Message: fmt.Sprintf("unknown service type %q", serviceType)}
	}

	rounded := roundUpToStep(requested, rules.VolumeStepM3)

	billed := rounded
	below := rounded.LessThan(min)
	if below {
		billed = min
	}

	return NormalizedVolume{
		RequestedM3:    requested,
		RoundedM3:      rounded,
		MinM3ForType:   min,
		BilledM3:       billed,
		IsBelowMinimum: below,
	}, nil
}

// SlabVolume computes the raw volume of a rectangular slab from length and
// width in meters and thickness in centimeters.
func SlabVolume(lengthM, widthM, thicknessCm decimal.Decimal) (decimal.Decimal, error) {
	if !lengthM.IsPositive() {
		return decimal.Zero, &FieldError{Field: "length", Message: "length must be greater than zero"}
	}
	if !widthM.IsPositive() {
		return decimal.Zero, &FieldError{Field: "width", Message: "width must be greater than zero"}
	}
	if !thicknessCm.IsPositive() {
		return decimal.Zero, &FieldError{Field: "thickness", Message: "thickness must be greater than zero"}
	}
	return lengthM.Mul(widthM).Mul(thicknessCm.Div(decimal.NewFromInt(100))), nil
}

// AreaVolume computes the raw volume of a slab from its area in square
// meters and thickness in centimeters.
func AreaVolume(areaM2, thicknessCm decimal.Decimal) (decimal.Decimal, error) {
	if !areaM2.IsPositive() {
		return decimal.Zero, &FieldError{Field: "area", Message: "area must be greater than zero"}
	}
	if !thicknessCm.IsPositive() {
		return decimal.Zero, &FieldError{Field: "thickness", Message: "thickness must be greater than zero"}
	}
	return areaM2.Mul(thicknessCm.Div(decimal.NewFromInt(100))), nil
}

// ApplyCofferedFactor multiplies a geometric slab volume by the adjustment
// factor for a coffered (casetón) formwork size class. An empty size class
// leaves the volume unchanged; an unknown one is a field error because the
// factor table is business configuration, not something to guess.
func ApplyCofferedFactor(volume decimal.Decimal, sizeClass string, rules PricingRules) (decimal.Decimal, error) {
	if sizeClass == "" {
		return volume, nil
	}
	factor, ok := rules.CofferedFactors[sizeClass]
	if !ok {
		return decimal.Zero, &FieldError{Field: "cofferedSize", Message: fmt.Sprintf("unknown coffered size class %q", sizeClass)}
	}
	return volume.Mul(factor), nil
}

// roundUpToStep rounds v up to the next multiple of step. Rounding only ever
// goes up so an order is never under-delivered.
func roundUpToStep(v, step decimal.Decimal) decimal.Decimal {
	steps := v.Div(step)
	whole := steps.Floor()
	if steps.Equal(whole) {
		return v
	}
	return whole.Add(decimal.NewFromInt(1)).Mul(step)
}
