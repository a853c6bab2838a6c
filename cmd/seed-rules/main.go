// Command seed-rules inserts the static fallback rule set as the initial
// active pricing_rules row, so a fresh environment serves live rules that
// match the published price list.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/concretoya/api/internal/config"
	"github.com/concretoya/api/internal/database"
	"github.com/concretoya/api/internal/pricing"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.LoadDev()

	pool, err := database.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	rules := pricing.FallbackRules()
	payload, err := json.Marshal(rules)
	if err != nil {
		slog.Error("failed to marshal rules", "error", err)
		os.Exit(1)
	}

	// Sanity check: what we seed must round-trip through the validator.
	if _, err := pricing.ParseRules(payload); err != nil {
		slog.Error("seed rules failed validation", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	tag, err := pool.Exec(ctx, `
		INSERT INTO pricing_rules (id, version, active, payload)
		VALUES ($1, $2, true, $3)
		ON CONFLICT (version) DO NOTHING
	`, uuid.New(), rules.Version, payload)
	if err != nil {
		slog.Error("failed to insert pricing rules", "error", err)
		os.Exit(1)
	}

	if tag.RowsAffected() == 0 {
		slog.Info("pricing rules version already present", "version", rules.Version)
		return
	}

	slog.Info("pricing rules seeded", "version", rules.Version)
}
