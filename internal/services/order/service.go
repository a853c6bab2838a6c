// Package order finalizes carts into submitted orders. Order lines copy the
// cart's captured breakdown bytes; prices are never recomputed at
// submission time.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/concretoya/api/internal/services/cart"
)

var (
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("order not found")
)

// Customer is the contact record attached to a submitted order.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Order is a submitted order with its folio and aggregate totals.
type Order struct {
	ID            uuid.UUID `json:"id"`
	OrderNumber   int64     `json:"orderNumber"`
	Folio         string    `json:"folio"`
	CustomerName  string    `json:"customerName"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	DeliveryNotes string    `json:"deliveryNotes,omitempty"`
	Status        string    `json:"status"`
	SubtotalCents int64     `json:"subtotalCents"`
	VATCents      int64     `json:"vatCents"`
	TotalCents    int64     `json:"totalCents"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// LineSummary is the per-line view submitted downstream: id, label, billed
// volume, service type, and subtotal.
type LineSummary struct {
	ID            uuid.UUID       `json:"id"`
	Label         string          `json:"label"`
	BilledM3      decimal.Decimal `json:"billedM3"`
	ServiceType   string          `json:"serviceType"`
	SubtotalCents int64           `json:"subtotalCents"`
}

// Service provides order operations.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a new order service.
func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pool: pool, logger: logger}
}

// folioFor formats the human-readable order identifier from the sequential
// order number.
func folioFor(orderNumber int64) string {
	return fmt.Sprintf("CY-%06d", orderNumber)
}

// SubmitParams carries a submission: the customer record and the captured
// cart lines being finalized.
type SubmitParams struct {
	Customer      Customer
	DeliveryNotes string
	Items         []cart.Item
}

// Submit creates an order from captured cart lines within a single
// transaction: order row, folio from the order number, one order line per
// cart line (breakdown bytes copied verbatim), and the initial event.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (Order, []LineSummary, error) {
	if len(params.Items) == 0 {
		return Order{}, nil, cart.ErrEmpty
	}

	var subtotal, total int64
	currency := params.Items[0].Currency
	for _, it := range params.Items {
		subtotal += it.SubtotalCents
		total += it.TotalCents
	}
	vat := total - subtotal

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Order{}, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	o := Order{
		ID:            uuid.New(),
		CustomerName:  params.Customer.Name,
		Email:         params.Customer.Email,
		Phone:         params.Customer.Phone,
		DeliveryNotes: params.DeliveryNotes,
		Status:        "pending",
		SubtotalCents: subtotal,
		VATCents:      vat,
		TotalCents:    total,
		Currency:      currency,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO orders
			(id, customer_name, email, phone, delivery_notes, status,
			 subtotal_cents, vat_cents, total_cents, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING order_number
	`, o.ID, o.CustomerName, o.Email, nullable(o.Phone), nullable(o.DeliveryNotes), o.Status,
		o.SubtotalCents, o.VATCents, o.TotalCents, o.Currency, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.OrderNumber)
	if err != nil {
		return Order{}, nil, fmt.Errorf("creating order: %w", err)
	}

	o.Folio = folioFor(o.OrderNumber)
	if _, err := tx.Exec(ctx, `UPDATE orders SET folio = $1 WHERE id = $2`, o.Folio, o.ID); err != nil {
		return Order{}, nil, fmt.Errorf("setting folio: %w", err)
	}

	summaries := make([]LineSummary, 0, len(params.Items))
	for _, it := range params.Items {
		lineID := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items
				(id, order_id, label, service_type, strength, billed_m3,
				 subtotal_cents, total_cents, breakdown, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, lineID, o.ID, it.Label, it.ServiceType, it.Strength, it.BilledM3,
			it.SubtotalCents, it.TotalCents, it.Breakdown, now)
		if err != nil {
			return Order{}, nil, fmt.Errorf("creating order item %q: %w", it.Label, err)
		}
		summaries = append(summaries, LineSummary{
			ID:            lineID,
			Label:         it.Label,
			BilledM3:      it.BilledM3,
			ServiceType:   it.ServiceType,
			SubtotalCents: it.SubtotalCents,
		})
	}

	toStatus := o.Status
	if _, err := tx.Exec(ctx, `
		INSERT INTO order_events (id, order_id, event_type, to_status, created_at)
		VALUES ($1, $2, 'order_created', $3, $4)
	`, uuid.New(), o.ID, toStatus, now); err != nil {
		return Order{}, nil, fmt.Errorf("creating initial order event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, nil, fmt.Errorf("committing order submission: %w", err)
	}

	s.logger.Info("order submitted",
		slog.String("order_id", o.ID.String()),
		slog.String("folio", o.Folio),
		slog.String("email", o.Email),
		slog.Int("items", len(summaries)),
		slog.Int64("total_cents", o.TotalCents),
	)

	return o, summaries, nil
}

// Get returns a single order by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	var o Order
	var phone, notes, folio *string
	err := s.pool.QueryRow(ctx, `
		SELECT id, order_number, folio, customer_name, email, phone, delivery_notes,
		       status, subtotal_cents, vat_cents, total_cents, currency, created_at, updated_at
		FROM orders WHERE id = $1
	`, id).Scan(
		&o.ID, &o.OrderNumber, &folio, &o.CustomerName, &o.Email, &phone, &notes,
		&o.Status, &o.SubtotalCents, &o.VATCents, &o.TotalCents, &o.Currency, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("getting order %s: %w", id, err)
	}
	o.Folio = deref(folio)
	o.Phone = deref(phone)
	o.DeliveryNotes = deref(notes)
	return o, nil
}

// GetByFolio returns a single order by its folio.
func (s *Service) GetByFolio(ctx context.Context, folio string) (Order, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT id FROM orders WHERE folio = $1`, folio).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("getting order by folio %s: %w", folio, err)
	}
	return s.Get(ctx, id)
}

// ListSummaries returns the line summaries for an order.
func (s *Service) ListSummaries(ctx context.Context, orderID uuid.UUID) ([]LineSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, label, billed_m3, service_type, subtotal_cents
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing items for order %s: %w", orderID, err)
	}
	defer rows.Close()

	var summaries []LineSummary
	for rows.Next() {
		var ls LineSummary
		if err := rows.Scan(&ls.ID, &ls.Label, &ls.BilledM3, &ls.ServiceType, &ls.SubtotalCents); err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		summaries = append(summaries, ls)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order items: %w", err)
	}
	return summaries, nil
}

// UpdateStatus updates an order's status and records the transition event.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus string) (Order, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3
	`, newStatus, now, id); err != nil {
		return Order{}, fmt.Errorf("updating order status %s: %w", id, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO order_events (id, order_id, event_type, from_status, to_status, created_at)
		VALUES ($1, $2, 'status_changed', $3, $4, $5)
	`, uuid.New(), id, existing.Status, newStatus, now); err != nil {
		return Order{}, fmt.Errorf("creating status change event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, fmt.Errorf("committing status update: %w", err)
	}

	existing.Status = newStatus
	existing.UpdatedAt = now

	s.logger.Info("order status updated",
		slog.String("order_id", id.String()),
		slog.String("to_status", newStatus),
	)

	return existing, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
