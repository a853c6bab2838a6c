package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoActiveRules is returned by a Source when no live rule set exists.
// This is the normal "use fallback" case, not a failure.
var ErrNoActiveRules = errors.New("no active pricing rules")

// Source fetches the raw live rule payload. The resolver makes a single
// bounded query per calculation context; there is no retry policy beyond
// immediate fallback.
type Source interface {
	ActiveRules(ctx context.Context) ([]byte, error)
}

// Reporter receives fire-and-forget failure reports for operator visibility.
// Implementations must never block the caller beyond their own short timeout
// and must swallow delivery failures.
type Reporter interface {
	Report(ctx context.Context, event string, err error, fields map[string]any)
}

// Resolver yields the active PricingRules for a calculation context.
// It never fails: on fetch error, missing row, or schema-invalid payload it
// returns the static fallback. Rule sets are applied all-or-nothing; there
// is no field-by-field merging of live and fallback values.
type Resolver struct {
	source   Source
	reporter Reporter
	logger   *slog.Logger
	fallback PricingRules
	timeout  time.Duration
}

// NewResolver creates a resolver over the given source. timeout bounds the
// live fetch; zero means 5 seconds.
func NewResolver(source Source, reporter Reporter, logger *slog.Logger, timeout time.Duration) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{
		source:   source,
		reporter: reporter,
		logger:   logger,
		fallback: FallbackRules(),
		timeout:  timeout,
	}
}

// Resolve returns a fully validated rule set, live or fallback. It never
// returns an error and never returns an invalid shape.
func (r *Resolver) Resolve(ctx context.Context) PricingRules {
	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.source.ActiveRules(fetchCtx)
	if err != nil {
		if errors.Is(err, ErrNoActiveRules) {
			// Absence of a live row is normal, not reportable.
			r.logger.Info("no active pricing rules, using fallback",
				"fallback_version", r.fallback.Version,
			)
			return r.fallback
		}

		r.logger.Warn("pricing rules fetch failed, using fallback", "error", err)
		r.reporter.Report(ctx, "pricing_rules_fetch_failed", err, map[string]any{
			"fallback_version": r.fallback.Version,
		})
		return r.fallback
	}

	rules, err := ParseRules(raw)
	if err != nil {
		r.logger.Warn("pricing rules payload invalid, using fallback", "error", err)
		r.reporter.Report(ctx, "pricing_rules_invalid", err, map[string]any{
			"fallback_version": r.fallback.Version,
		})
		return r.fallback
	}

	return rules
}

// Fallback exposes the static rule set, for seeding and tests.
func (r *Resolver) Fallback() PricingRules {
	return r.fallback
}

// PGSource reads the live rule blob from the pricing_rules table. At most
// one active row is consulted: the highest version marked active.
type PGSource struct {
	pool *pgxpool.Pool
}

// NewPGSource creates a PostgreSQL-backed rules source.
func NewPGSource(pool *pgxpool.Pool) *PGSource {
	return &PGSource{pool: pool}
}

// ActiveRules returns the raw JSON payload of the active rule set, or
// ErrNoActiveRules when no active row exists.
func (s *PGSource) ActiveRules(ctx context.Context) ([]byte, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `
		SELECT payload
		FROM pricing_rules
		WHERE active = true
		ORDER BY version DESC
		LIMIT 1
	`).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveRules
		}
		return nil, fmt.Errorf("querying active pricing rules: %w", err)
	}
	return payload, nil
}
