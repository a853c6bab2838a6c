// Package lead captures contact leads from the marketing site, including
// the UTM attribution snapshot the landing pages collect.
package lead

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
)

var (
	// ErrNotFound is returned when a lead does not exist.
	ErrNotFound = errors.New("lead not found")
	// ErrMissingContact is returned when neither a usable name nor email
	// was provided.
	ErrMissingContact = errors.New("lead requires a name and email")
)

// Lead is a captured contact record.
type Lead struct {
	ID         uuid.UUID         `json:"id"`
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone,omitempty"`
	Message    string            `json:"message,omitempty"`
	SourcePage string            `json:"sourcePage,omitempty"`
	UTM        map[string]string `json:"utm,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Service provides lead operations.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a new lead service.
func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pool: pool, logger: logger}
}

// CreateParams carries the fields for a new lead.
type CreateParams struct {
	Name       string
	Email      string
	Phone      string
	Message    string
	SourcePage string
	UTM        map[string]string
}

// Create stores a new lead.
func (s *Service) Create(ctx context.Context, params CreateParams) (Lead, error) {
	if params.Name == "" || params.Email == "" {
		return Lead{}, ErrMissingContact
	}

	var utmJSON []byte
	if len(params.UTM) > 0 {
		var err error
		utmJSON, err = json.Marshal(params.UTM)
		if err != nil {
			return Lead{}, fmt.Errorf("marshaling utm attribution: %w", err)
		}
	}

	l := Lead{
		ID:         uuid.New(),
		Name:       params.Name,
		Email:      params.Email,
		Phone:      params.Phone,
		Message:    params.Message,
		SourcePage: params.SourcePage,
		UTM:        params.UTM,
		CreatedAt:  time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO leads (id, name, email, phone, message, source_page, utm, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, l.ID, l.Name, l.Email, nullable(l.Phone), nullable(l.Message), nullable(l.SourcePage), utmJSON, l.CreatedAt)
	if err != nil {
		return Lead{}, fmt.Errorf("creating lead: %w", err)
	}

	s.logger.Info("lead captured",
		slog.String("lead_id", l.ID.String()),
		slog.String("source_page", l.SourcePage),
	)

	return l, nil
}

// Get retrieves a lead by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Lead, error) {
	var l Lead
	var phone, message, sourcePage *string
	var utmJSON []byte

	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, message, source_page, utm, created_at
		FROM leads WHERE id = $1
	`, id).Scan(&l.ID, &l.Name, &l.Email, &phone, &message, &sourcePage, &utmJSON, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, fmt.Errorf("getting lead: %w", err)
	}

	l.Phone = deref(phone)
	l.Message = deref(message)
	l.SourcePage = deref(sourcePage)
	if len(utmJSON) > 0 {
		if err := json.Unmarshal(utmJSON, &l.UTM); err != nil {
			return Lead{}, fmt.Errorf("unmarshaling utm attribution: %w", err)
		}
	}
	return l, nil
}

// List returns leads ordered newest first, paginated.
func (s *Service) List(ctx context.Context, page, pageSize int) ([]Lead, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 250 {
		pageSize = 250
	}
	offset := (page - 1) * pageSize

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, phone, message, source_page, utm, created_at
		FROM leads
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("listing leads: %w", err)
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		var l Lead
		var phone, message, sourcePage *string
		var utmJSON []byte
		if err := rows.Scan(&l.ID, &l.Name, &l.Email, &phone, &message, &sourcePage, &utmJSON, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning lead: %w", err)
		}
		l.Phone = deref(phone)
		l.Message = deref(message)
		l.SourcePage = deref(sourcePage)
		if len(utmJSON) > 0 {
			if err := json.Unmarshal(utmJSON, &l.UTM); err != nil {
				return nil, fmt.Errorf("unmarshaling utm attribution: %w", err)
			}
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating leads: %w", err)
	}
	return leads, nil
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
