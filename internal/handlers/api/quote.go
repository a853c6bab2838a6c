package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/concretoya/api/internal/pricing"
	"github.com/concretoya/api/internal/services/cart"
)

// Calculator input modes.
const (
	modeVolume = "volume"
	modeSlab   = "slab"
	modeArea   = "area"
)

// quoteRequest is the calculator input. Volume is a string so the UI can
// pass user-entered text ("1,234.5") for sanitization; dimensions are plain
// numbers.
type quoteRequest struct {
	Mode string `json:"mode"`

	Volume string `json:"volume,omitempty"`

	LengthM     decimal.Decimal `json:"lengthM,omitempty"`
	WidthM      decimal.Decimal `json:"widthM,omitempty"`
	AreaM2      decimal.Decimal `json:"areaM2,omitempty"`
	ThicknessCm decimal.Decimal `json:"thicknessCm,omitempty"`

	CofferedSize string `json:"cofferedSize,omitempty"`

	ServiceType string   `json:"serviceType"`
	Strength    string   `json:"strength"`
	AdditiveIDs []string `json:"additiveIds,omitempty"`
}

// QuoteHandler serves volume normalization and quote calculation. Rules are
// resolved once per request, so every breakdown is priced against a single
// consistent rule-set version.
type QuoteHandler struct {
	resolver *pricing.Resolver
	maxM3    decimal.Decimal
	logger   *slog.Logger
}

// NewQuoteHandler creates a quote handler.
func NewQuoteHandler(resolver *pricing.Resolver, maxM3 decimal.Decimal, logger *slog.Logger) *QuoteHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuoteHandler{resolver: resolver, maxM3: maxM3, logger: logger}
}

// RegisterRoutes registers the quote API routes.
func (h *QuoteHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/volume/normalize", h.NormalizeVolume)
	mux.HandleFunc("POST /api/v1/quote", h.Quote)
}

// NormalizeVolume handles POST /api/v1/volume/normalize. It runs the input
// through the volume pipeline without pricing, so the UI can show the billed
// volume and minimum-order disclosure as the customer types.
func (h *QuoteHandler) NormalizeVolume(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	rules := h.resolver.Resolve(r.Context())

	vol, err := normalizedVolumeFor(req, rules, h.maxM3)
	if err != nil {
		writeQuoteError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, vol)
}

// Quote handles POST /api/v1/quote.
func (h *QuoteHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	rules := h.resolver.Resolve(r.Context())

	_, breakdown, err := buildQuote(req, rules, h.maxM3)
	if err != nil {
		writeQuoteError(w, h.logger, err)
		return
	}

	if len(breakdown.IgnoredAdditiveIDs) > 0 {
		h.logger.Warn("quote referenced unknown or inactive additives",
			"additive_ids", breakdown.IgnoredAdditiveIDs,
			"rules_version", rules.Version,
		)
	}

	writeJSON(w, http.StatusOK, breakdown)
}

// normalizedVolumeFor runs a request's mode-specific geometry, coffered
// adjustment, and normalization.
func normalizedVolumeFor(req quoteRequest, rules pricing.PricingRules, maxM3 decimal.Decimal) (pricing.NormalizedVolume, error) {
	var raw decimal.Decimal
	var err error

	switch req.Mode {
	case modeVolume, "":
		raw, err = pricing.ParseVolumeM3(req.Volume)
	case modeSlab:
		raw, err = pricing.SlabVolume(req.LengthM, req.WidthM, req.ThicknessCm)
		if err == nil {
			raw, err = pricing.ApplyCofferedFactor(raw, req.CofferedSize, rules)
		}
	case modeArea:
		raw, err = pricing.AreaVolume(req.AreaM2, req.ThicknessCm)
		if err == nil {
			raw, err = pricing.ApplyCofferedFactor(raw, req.CofferedSize, rules)
		}
	default:
		return pricing.NormalizedVolume{}, &pricing.FieldError{Field: "mode", Message: "mode must be volume, slab, or area"}
	}
	if err != nil {
		return pricing.NormalizedVolume{}, err
	}

	return pricing.Normalize(raw, req.ServiceType, rules, maxM3)
}

// buildQuote produces the calculator state snapshot and priced breakdown
// for a request under the given rules.
func buildQuote(req quoteRequest, rules pricing.PricingRules, maxM3 decimal.Decimal) (cart.CalculatorState, pricing.QuoteBreakdown, error) {
	vol, err := normalizedVolumeFor(req, rules, maxM3)
	if err != nil {
		return cart.CalculatorState{}, pricing.QuoteBreakdown{}, err
	}

	breakdown, err := pricing.Calculate(vol, req.Strength, req.ServiceType, req.AdditiveIDs, rules)
	if err != nil {
		return cart.CalculatorState{}, pricing.QuoteBreakdown{}, err
	}

	mode := req.Mode
	if mode == "" {
		mode = modeVolume
	}
	state := cart.CalculatorState{
		Mode:         mode,
		ServiceType:  req.ServiceType,
		Strength:     req.Strength,
		AdditiveIDs:  req.AdditiveIDs,
		CofferedSize: req.CofferedSize,
		Volume:       vol,
		RulesVersion: rules.Version,
	}

	return state, breakdown, nil
}
