package llmadapter

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeTransport struct {
	content          string
	tokensPrompt     int
	tokensCompletion int
	err              error
}

func (f fakeTransport) Do(ctx context.Context, req Request) (string, int, int, error) {
	if f.err != nil {
		return "", 0, 0, f.err
	}
	return f.content, f.tokensPrompt, f.tokensCompletion, nil
}

func TestGenerateSuccess(t *testing.T) {
	a := New([]Provider{{
		ModelID:   "gpt-test",
		Transport: fakeTransport{content: "hello", tokensPrompt: 1000, tokensCompletion: 500},
		Price:     Price{InputPerMtok: 3, OutputPerMtok: 15},
		RatePerSec: 100,
		Burst:      10,
	}})

	resp, err := a.Generate(context.Background(), Request{ModelID: "gpt-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello" {
		t.Errorf("Content = %q, want %q", resp.Content, "hello")
	}
	wantCost := (1000.0/1_000_000.0)*3 + (500.0/1_000_000.0)*15
	if resp.CostUSD != wantCost {
		t.Errorf("CostUSD = %v, want %v", resp.CostUSD, wantCost)
	}
}

func TestGenerateRecordsBudgetSpend(t *testing.T) {
	a := New([]Provider{{
		ModelID:      "gpt-test",
		Transport:    fakeTransport{content: "hello", tokensPrompt: 1_000_000, tokensCompletion: 0},
		Price:        Price{InputPerMtok: 10},
		RatePerSec:   100,
		Burst:        10,
		WeeklyCapUSD: 20,
	}})

	if _, err := a.Generate(context.Background(), Request{ModelID: "gpt-test"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pct := a.Budget().WeeklyUsagePct("gpt-test"); pct != 0.5 {
		t.Errorf("WeeklyUsagePct = %v, want 0.5", pct)
	}
	if !a.Budget().IsInHeadroomWarning("gpt-test", 0.4) {
		t.Error("expected headroom warning to trip at 40% threshold")
	}
}

func TestGenerateUnknownModel(t *testing.T) {
	a := New(nil)
	_, err := a.Generate(context.Background(), Request{ModelID: "nonexistent"})
	classified, ok := AsError(err)
	if !ok {
		t.Fatalf("expected a classified *Error, got %v", err)
	}
	if classified.Kind != ErrBadRequest {
		t.Errorf("Kind = %v, want %v", classified.Kind, ErrBadRequest)
	}
}

func TestGenerateRateLimited(t *testing.T) {
	a := New([]Provider{{
		ModelID:    "gpt-test",
		Transport:  fakeTransport{content: "ok"},
		RatePerSec: 1,
		Burst:      1,
	}})

	ctx := context.Background()
	if _, err := a.Generate(ctx, Request{ModelID: "gpt-test"}); err != nil {
		t.Fatalf("first call: unexpected error: %v", err)
	}

	_, err := a.Generate(ctx, Request{ModelID: "gpt-test"})
	classified, ok := AsError(err)
	if !ok {
		t.Fatalf("expected a classified *Error, got %v", err)
	}
	if classified.Kind != ErrRateLimited {
		t.Errorf("Kind = %v, want %v", classified.Kind, ErrRateLimited)
	}
	if !classified.Kind.Retryable() {
		t.Error("RateLimited should be retryable")
	}
}

func TestGenerateDeadlineExceeded(t *testing.T) {
	a := New([]Provider{{
		ModelID:    "gpt-test",
		Transport:  fakeTransport{content: "ok"},
		RatePerSec: 100,
		Burst:      10,
	}})

	ctx, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()

	_, err := a.Generate(ctx, Request{ModelID: "gpt-test"})
	classified, ok := AsError(err)
	if !ok {
		t.Fatalf("expected a classified *Error, got %v", err)
	}
	if classified.Kind != ErrDeadlineExceeded {
		t.Errorf("Kind = %v, want %v", classified.Kind, ErrDeadlineExceeded)
	}
}

func TestGenerateClassifiesTransportError(t *testing.T) {
	a := New([]Provider{{
		ModelID:    "gpt-test",
		Transport:  fakeTransport{err: &ClassifiedError{Kind: ErrAuthFailed, Err: errors.New("401")}},
		RatePerSec: 100,
		Burst:      10,
	}})

	_, err := a.Generate(context.Background(), Request{ModelID: "gpt-test"})
	classified, ok := AsError(err)
	if !ok {
		t.Fatalf("expected a classified *Error, got %v", err)
	}
	if classified.Kind != ErrAuthFailed {
		t.Errorf("Kind = %v, want %v", classified.Kind, ErrAuthFailed)
	}
	if classified.Kind.Retryable() {
		t.Error("AuthFailed should not be retryable")
	}
}

func TestGenerateUnclassifiedTransportErrorIsUnknown(t *testing.T) {
	a := New([]Provider{{
		ModelID:    "gpt-test",
		Transport:  fakeTransport{err: errors.New("connection reset")},
		RatePerSec: 100,
		Burst:      10,
	}})

	_, err := a.Generate(context.Background(), Request{ModelID: "gpt-test"})
	classified, ok := AsError(err)
	if !ok {
		t.Fatalf("expected a classified *Error, got %v", err)
	}
	if classified.Kind != ErrUnknown {
		t.Errorf("Kind = %v, want %v", classified.Kind, ErrUnknown)
	}
}

func TestCalculateCost(t *testing.T) {
	cost := CalculateCost(2_000_000, 1_000_000, Price{InputPerMtok: 2, OutputPerMtok: 10})
	want := 2*2.0 + 10*1.0
	if cost != want {
		t.Errorf("CalculateCost = %v, want %v", cost, want)
	}
}

func TestBudgetTrackerWeeklyUsage(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBudgetTracker(map[string]float64{"gpt-test": 100}, func() time.Time { return fixed })

	b.Record("gpt-test", 40)
	b.Record("gpt-test", 20)

	if got := b.WeeklyUsagePct("gpt-test"); got != 0.6 {
		t.Errorf("WeeklyUsagePct = %v, want 0.6", got)
	}
	if !b.IsInHeadroomWarning("gpt-test", 0.5) {
		t.Error("expected headroom warning at 0.5 threshold")
	}
	if b.IsInHeadroomWarning("gpt-test", 0.9) {
		t.Error("did not expect headroom warning at 0.9 threshold")
	}
}

func TestDowngradeTier(t *testing.T) {
	tiers := []string{"premium", "standard", "economy"}

	next, ok := DowngradeTier(tiers, "premium")
	if !ok || next != "standard" {
		t.Errorf("DowngradeTier(premium) = (%q, %v), want (standard, true)", next, ok)
	}

	next, ok = DowngradeTier(tiers, "economy")
	if ok || next != "economy" {
		t.Errorf("DowngradeTier(economy) = (%q, %v), want (economy, false)", next, ok)
	}
}
