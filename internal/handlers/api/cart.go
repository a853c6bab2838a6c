package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/concretoya/api/internal/pricing"
	"github.com/concretoya/api/internal/services/cart"
)

// CartHandler holds dependencies for cart API endpoints. Adding an item
// recomputes the quote server-side from the calculator inputs; client-
// supplied prices are never trusted.
type CartHandler struct {
	cartSvc  *cart.Service
	resolver *pricing.Resolver
	maxM3    decimal.Decimal
	logger   *slog.Logger
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(cartSvc *cart.Service, resolver *pricing.Resolver, maxM3 decimal.Decimal, logger *slog.Logger) *CartHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartHandler{cartSvc: cartSvc, resolver: resolver, maxM3: maxM3, logger: logger}
}

// RegisterRoutes registers all cart API routes on the given mux.
func (h *CartHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/cart", h.CreateCart)
	mux.HandleFunc("GET /api/v1/cart/{id}", h.GetCart)
	mux.HandleFunc("POST /api/v1/cart/{id}/items", h.AddItem)
	mux.HandleFunc("DELETE /api/v1/cart/{id}/items/{itemId}", h.RemoveItem)
}

type cartResponse struct {
	ID        uuid.UUID   `json:"id"`
	ExpiresAt string      `json:"expiresAt"`
	CreatedAt string      `json:"createdAt"`
	Items     []cart.Item `json:"items"`
}

// CreateCart handles POST /api/v1/cart.
func (h *CartHandler) CreateCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.cartSvc.Create(r.Context())
	if err != nil {
		h.logger.Error("failed to create cart", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, cartResponse{
		ID:        c.ID,
		ExpiresAt: c.ExpiresAt.Format("2006-01-02T15:04:05Z"),
		CreatedAt: c.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Items:     []cart.Item{},
	})
}

// GetCart handles GET /api/v1/cart/{id}.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cartID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid cart ID"})
		return
	}

	c, err := h.cartSvc.Get(r.Context(), cartID)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorJSON{Error: "cart not found"})
			return
		}
		h.logger.Error("failed to get cart", "error", err, "cart_id", cartID)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}

	items, err := h.cartSvc.ListItems(r.Context(), cartID)
	if err != nil {
		h.logger.Error("failed to list cart items", "error", err, "cart_id", cartID)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}
	if items == nil {
		items = []cart.Item{}
	}

	writeJSON(w, http.StatusOK, cartResponse{
		ID:        c.ID,
		ExpiresAt: c.ExpiresAt.Format("2006-01-02T15:04:05Z"),
		CreatedAt: c.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Items:     items,
	})
}

// AddItem handles POST /api/v1/cart/{id}/items. The body is a calculator
// input (same shape as /api/v1/quote); the priced breakdown is captured as
// an immutable snapshot.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	cartID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid cart ID"})
		return
	}

	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	rules := h.resolver.Resolve(r.Context())

	state, breakdown, err := buildQuote(req, rules, h.maxM3)
	if err != nil {
		writeQuoteError(w, h.logger, err)
		return
	}

	if len(breakdown.IgnoredAdditiveIDs) > 0 {
		h.logger.Warn("cart quote referenced unknown or inactive additives",
			"additive_ids", breakdown.IgnoredAdditiveIDs,
			"rules_version", rules.Version,
		)
	}

	item, err := h.cartSvc.AddItem(r.Context(), cartID, state, breakdown)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorJSON{Error: "cart not found"})
			return
		}
		h.logger.Error("failed to add cart item", "error", err, "cart_id", cartID)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// RemoveItem handles DELETE /api/v1/cart/{id}/items/{itemId}.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cartID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid cart ID"})
		return
	}
	itemID, err := uuid.Parse(r.PathValue("itemId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid item ID"})
		return
	}

	if err := h.cartSvc.RemoveItem(r.Context(), cartID, itemID); err != nil {
		if errors.Is(err, cart.ErrItemNotFound) {
			writeJSON(w, http.StatusNotFound, errorJSON{Error: "cart item not found"})
			return
		}
		h.logger.Error("failed to remove cart item", "error", err, "cart_id", cartID)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
