package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/concretoya/api/internal/services/cart"
	"github.com/concretoya/api/internal/services/order"
)

// OrderHandler finalizes carts into submitted orders.
type OrderHandler struct {
	orderSvc *order.Service
	cartSvc  *cart.Service
	logger   *slog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(orderSvc *order.Service, cartSvc *cart.Service, logger *slog.Logger) *OrderHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderHandler{orderSvc: orderSvc, cartSvc: cartSvc, logger: logger}
}

// RegisterRoutes registers the order API routes.
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/orders", h.SubmitOrder)
	mux.HandleFunc("GET /api/v1/orders/{folio}", h.GetOrder)
}

type submitOrderRequest struct {
	CartID        uuid.UUID      `json:"cartId"`
	Customer      order.Customer `json:"customer"`
	DeliveryNotes string         `json:"deliveryNotes,omitempty"`
}

type orderResponse struct {
	Order order.Order         `json:"order"`
	Lines []order.LineSummary `json:"lines"`
}

// SubmitOrder handles POST /api/v1/orders. The cart's captured snapshots
// become order lines as-is; the cart is cleared on success.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}
	if req.Customer.Name == "" || req.Customer.Email == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorJSON{Error: "customer name and email are required", Field: "customer"})
		return
	}

	items, err := h.cartSvc.ListItems(r.Context(), req.CartID)
	if err != nil {
		h.logger.Error("failed to load cart for submission", "error", err, "cart_id", req.CartID)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}
	if len(items) == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, errorJSON{Error: "cart is empty", Field: "cartId"})
		return
	}

	o, lines, err := h.orderSvc.Submit(r.Context(), order.SubmitParams{
		Customer:      req.Customer,
		DeliveryNotes: req.DeliveryNotes,
		Items:         items,
	})
	if err != nil {
		h.logger.Error("failed to submit order", "error", err, "cart_id", req.CartID)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}

	if err := h.cartSvc.Clear(r.Context(), req.CartID); err != nil {
		// The order is already committed; a dangling cart is only noise.
		h.logger.Warn("failed to clear cart after submission", "error", err, "cart_id", req.CartID)
	}

	writeJSON(w, http.StatusCreated, orderResponse{Order: o, Lines: lines})
}

// GetOrder handles GET /api/v1/orders/{folio}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	folio := r.PathValue("folio")

	o, err := h.orderSvc.GetByFolio(r.Context(), folio)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorJSON{Error: "order not found"})
			return
		}
		h.logger.Error("failed to get order", "error", err, "folio", folio)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}

	lines, err := h.orderSvc.ListSummaries(r.Context(), o.ID)
	if err != nil {
		h.logger.Error("failed to list order lines", "error", err, "folio", folio)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, orderResponse{Order: o, Lines: lines})
}
