package pricing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type stubSource struct {
	payload []byte
	err     error
	calls   int
}

func (s *stubSource) ActiveRules(ctx context.Context) ([]byte, error) {
	s.calls++
	return s.payload, s.err
}

type countingReporter struct {
	events []string
}

func (r *countingReporter) Report(ctx context.Context, event string, err error, fields map[string]any) {
	r.events = append(r.events, event)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolve_LiveRules(t *testing.T) {
	live := FallbackRules()
	live.Version = 42
	source := &stubSource{payload: mustMarshalRules(t, live)}
	reporter := &countingReporter{}

	r := NewResolver(source, reporter, discardLogger(), time.Second)
	got := r.Resolve(context.Background())

	if got.Version != 42 {
		t.Errorf("resolved version %d, want live 42", got.Version)
	}
	if len(reporter.events) != 0 {
		t.Errorf("unexpected reports: %v", reporter.events)
	}
}

func TestResolve_FetchFailureFallsBackAndReportsOnce(t *testing.T) {
	source := &stubSource{err: errors.New("connection refused")}
	reporter := &countingReporter{}

	r := NewResolver(source, reporter, discardLogger(), time.Second)
	got := r.Resolve(context.Background())

	if got.Version != FallbackRules().Version {
		t.Errorf("resolved version %d, want fallback %d", got.Version, FallbackRules().Version)
	}
	if len(reporter.events) != 1 || reporter.events[0] != "pricing_rules_fetch_failed" {
		t.Errorf("reports = %v, want exactly one pricing_rules_fetch_failed", reporter.events)
	}
}

func TestResolve_InvalidPayloadFallsBackAndReportsOnce(t *testing.T) {
	source := &stubSource{payload: []byte(`{"version": 0}`)}
	reporter := &countingReporter{}

	r := NewResolver(source, reporter, discardLogger(), time.Second)
	got := r.Resolve(context.Background())

	if got.Version != FallbackRules().Version {
		t.Errorf("resolved version %d, want fallback %d", got.Version, FallbackRules().Version)
	}
	if len(reporter.events) != 1 || reporter.events[0] != "pricing_rules_invalid" {
		t.Errorf("reports = %v, want exactly one pricing_rules_invalid", reporter.events)
	}
}

func TestResolve_NoActiveRulesIsQuietFallback(t *testing.T) {
	source := &stubSource{err: ErrNoActiveRules}
	reporter := &countingReporter{}

	r := NewResolver(source, reporter, discardLogger(), time.Second)
	got := r.Resolve(context.Background())

	if got.Version != FallbackRules().Version {
		t.Errorf("resolved version %d, want fallback %d", got.Version, FallbackRules().Version)
	}
	// Absence of a live row is an expected state; it must not page anyone.
	if len(reporter.events) != 0 {
		t.Errorf("unexpected reports for the no-rows case: %v", reporter.events)
	}
}

func TestResolve_FallbackIsUsedWholesale(t *testing.T) {
	// A payload that parses but fails validation must not contribute any
	// field to the result; the fallback applies all-or-nothing.
	bad := FallbackRules()
	bad.Version = 99
	bad.Currency = ""
	source := &stubSource{payload: mustMarshalRules(t, bad)}

	r := NewResolver(source, &countingReporter{}, discardLogger(), time.Second)
	got := r.Resolve(context.Background())

	if got.Version == 99 {
		t.Error("invalid payload leaked its version into the resolved rules")
	}
	if got.Currency != "MXN" {
		t.Errorf("currency = %q, want fallback MXN", got.Currency)
	}
}

func TestResolve_BoundsTheFetch(t *testing.T) {
	source := &deadlineSource{}
	r := NewResolver(source, &countingReporter{}, discardLogger(), time.Second)

	r.Resolve(context.Background())

	if !source.hadDeadline {
		t.Error("fetch context carried no deadline")
	}
}

type deadlineSource struct {
	hadDeadline bool
}

func (s *deadlineSource) ActiveRules(ctx context.Context) ([]byte, error) {
	_, s.hadDeadline = ctx.Deadline()
	return nil, ErrNoActiveRules
}
