// Package cart stores quote snapshots until the customer submits an order.
// A captured item is an immutable historical record: the calculator state
// and breakdown are serialized once at capture time and returned byte-for-
// byte afterwards, so later pricing-rule changes never touch a cart line.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/concretoya/api/internal/pricing"
)

var (
	// ErrNotFound is returned when a cart does not exist.
	ErrNotFound = errors.New("cart not found")
	// ErrItemNotFound is returned when a cart item does not exist.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrEmpty is returned when an operation needs a non-empty cart.
	ErrEmpty = errors.New("cart is empty")
)

// CalculatorState is the snapshot of the inputs that produced a quote, kept
// alongside the breakdown so a line can be audited or re-opened in the UI.
type CalculatorState struct {
	Mode         string                   `json:"mode"` // "volume", "slab", or "area"
	ServiceType  string                   `json:"serviceType"`
	Strength     string                   `json:"strength"`
	AdditiveIDs  []string                 `json:"additiveIds,omitempty"`
	CofferedSize string                   `json:"cofferedSize,omitempty"`
	Volume       pricing.NormalizedVolume `json:"volume"`
	RulesVersion int64                    `json:"rulesVersion"`
}

// Cart is a container of captured quote lines.
type Cart struct {
	ID        uuid.UUID `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Item is a captured quote line. State and Breakdown are the exact bytes
// written at capture time.
type Item struct {
	ID            uuid.UUID       `json:"id"`
	CartID        uuid.UUID       `json:"cartId"`
	Label         string          `json:"label"`
	ServiceType   string          `json:"serviceType"`
	Strength      string          `json:"strength"`
	BilledM3      decimal.Decimal `json:"billedM3"`
	SubtotalCents int64           `json:"subtotalCents"`
	TotalCents    int64           `json:"totalCents"`
	Currency      string          `json:"currency"`
	State         json.RawMessage `json:"state"`
	Breakdown     json.RawMessage `json:"breakdown"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Service provides cart operations.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a new cart service.
func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pool: pool, logger: logger}
}

// defaultExpiry returns the default cart expiry time (7 days from now).
func defaultExpiry() time.Time {
	return time.Now().UTC().Add(7 * 24 * time.Hour)
}

// Create creates a new empty cart.
func (s *Service) Create(ctx context.Context) (Cart, error) {
	c := Cart{
		ID:        uuid.New(),
		ExpiresAt: defaultExpiry(),
		CreatedAt: time.Now().UTC(),
	}
	c.UpdatedAt = c.CreatedAt

	_, err := s.pool.Exec(ctx, `
		INSERT INTO carts (id, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, c.ID, c.ExpiresAt, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return Cart{}, fmt.Errorf("creating cart: %w", err)
	}
	return c, nil
}

// Get retrieves a cart by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Cart, error) {
	var c Cart
	err := s.pool.QueryRow(ctx, `
		SELECT id, expires_at, created_at, updated_at FROM carts WHERE id = $1
	`, id).Scan(&c.ID, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, fmt.Errorf("getting cart: %w", err)
	}
	return c, nil
}

// AddItem captures a calculator state and its quote breakdown as a new cart
// line. Both are marshaled here, exactly once; the stored bytes are what
// every later read returns.
func (s *Service) AddItem(ctx context.Context, cartID uuid.UUID, state CalculatorState, breakdown pricing.QuoteBreakdown) (Item, error) {
	if _, err := s.Get(ctx, cartID); err != nil {
		return Item{}, err
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return Item{}, fmt.Errorf("marshaling calculator state: %w", err)
	}
	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return Item{}, fmt.Errorf("marshaling quote breakdown: %w", err)
	}

	label := fmt.Sprintf("Concrete %s kg/cm² (%s)", breakdown.Strength, breakdown.ServiceType)
	if len(breakdown.LineItems) > 0 {
		label = breakdown.LineItems[0].Label
	}

	item := Item{
		ID:            uuid.New(),
		CartID:        cartID,
		Label:         label,
		ServiceType:   breakdown.ServiceType,
		Strength:      breakdown.Strength,
		BilledM3:      breakdown.Volume.BilledM3,
		SubtotalCents: breakdown.SubtotalCents,
		TotalCents:    breakdown.TotalCents,
		Currency:      breakdown.Currency,
		State:         stateJSON,
		Breakdown:     breakdownJSON,
		CreatedAt:     time.Now().UTC(),
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Item{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO cart_items
			(id, cart_id, label, service_type, strength, billed_m3,
			 subtotal_cents, total_cents, currency, state, breakdown, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, item.ID, item.CartID, item.Label, item.ServiceType, item.Strength, item.BilledM3,
		item.SubtotalCents, item.TotalCents, item.Currency, item.State, item.Breakdown, item.CreatedAt)
	if err != nil {
		return Item{}, fmt.Errorf("adding cart item: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE carts SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), cartID)
	if err != nil {
		return Item{}, fmt.Errorf("touching cart: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Item{}, fmt.Errorf("committing cart item: %w", err)
	}

	s.logger.Info("cart item captured",
		slog.String("cart_id", cartID.String()),
		slog.String("item_id", item.ID.String()),
		slog.Int64("total_cents", item.TotalCents),
		slog.Int64("rules_version", breakdown.RulesVersion),
	)

	return item, nil
}

// ListItems returns all captured lines of a cart in capture order.
func (s *Service) ListItems(ctx context.Context, cartID uuid.UUID) ([]Item, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, cart_id, label, service_type, strength, billed_m3,
		       subtotal_cents, total_cents, currency, state, breakdown, created_at
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY created_at, id
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(
			&it.ID, &it.CartID, &it.Label, &it.ServiceType, &it.Strength, &it.BilledM3,
			&it.SubtotalCents, &it.TotalCents, &it.Currency, &it.State, &it.Breakdown, &it.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning cart item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cart items: %w", err)
	}
	return items, nil
}

// RemoveItem removes a single line from a cart.
func (s *Service) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM cart_items WHERE id = $1 AND cart_id = $2
	`, itemID, cartID)
	if err != nil {
		return fmt.Errorf("removing cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// Clear removes all lines from a cart.
func (s *Service) Clear(ctx context.Context, cartID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clearing cart: %w", err)
	}
	return nil
}

// DeleteExpired removes carts past their expiry. Intended for a background
// cleanup job.
func (s *Service) DeleteExpired(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM carts WHERE expires_at < now()`); err != nil {
		return fmt.Errorf("deleting expired carts: %w", err)
	}
	return nil
}
