package api

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/concretoya/api/internal/pricing"
	"github.com/concretoya/api/internal/statestore"
)

// CatalogHandler serves the pricing catalog the calculator UI needs: active
// additives, strength classes, minimums, and the rule-set version. It reads
// from the shared rules store refreshed in the background; tier tables are
// not exposed wholesale.
type CatalogHandler struct {
	rules  *statestore.Store[pricing.PricingRules]
	logger *slog.Logger
}

// NewCatalogHandler creates a catalog handler over the shared rules store.
func NewCatalogHandler(rules *statestore.Store[pricing.PricingRules], logger *slog.Logger) *CatalogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogHandler{rules: rules, logger: logger}
}

// RegisterRoutes registers the catalog API routes.
func (h *CatalogHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/pricing/catalog", h.Catalog)
}

type additiveJSON struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	Description  string `json:"description,omitempty"`
	PricingModel string `json:"pricingModel"`
	PriceCents   int64  `json:"priceCents"`
}

type catalogResponse struct {
	RulesVersion     int64                      `json:"rulesVersion"`
	Currency         string                     `json:"currency"`
	VATRate          decimal.Decimal            `json:"vatRate"`
	VolumeStepM3     decimal.Decimal            `json:"volumeStepM3"`
	ServiceTypes     []string                   `json:"serviceTypes"`
	StrengthClasses  []string                   `json:"strengthClasses"`
	MinOrderQuantity map[string]decimal.Decimal `json:"minOrderQuantity"`
	CofferedSizes    []string                   `json:"cofferedSizes"`
	Additives        []additiveJSON             `json:"additives"`
}

// Catalog handles GET /api/v1/pricing/catalog.
func (h *CatalogHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	rules := h.rules.Get()

	additives := make([]additiveJSON, 0, len(rules.Additives))
	for _, a := range rules.Additives {
		if !a.Active {
			continue
		}
		additives = append(additives, additiveJSON{
			ID:           a.ID,
			Label:        a.Label,
			Description:  a.Description,
			PricingModel: a.PricingModel,
			PriceCents:   a.PriceCents,
		})
	}

	sizes := make([]string, 0, len(rules.CofferedFactors))
	for size := range rules.CofferedFactors {
		sizes = append(sizes, size)
	}
	sort.Strings(sizes)

	writeJSON(w, http.StatusOK, catalogResponse{
		RulesVersion:     rules.Version,
		Currency:         rules.Currency,
		VATRate:          rules.VATRate,
		VolumeStepM3:     rules.VolumeStepM3,
		ServiceTypes:     pricing.ServiceTypes,
		StrengthClasses:  pricing.StrengthClasses,
		MinOrderQuantity: rules.MinOrderQuantity,
		CofferedSizes:    sizes,
		Additives:        additives,
	})
}
