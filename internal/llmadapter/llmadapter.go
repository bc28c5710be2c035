// Package llmadapter provides a uniform request/response surface over one or more LLM
// providers (spec §4.3): it counts tokens, prices the call, and classifies upstream
// errors into the taxonomy the calling strategy understands.
package llmadapter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Role is the speaker of a single message in a request.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in the conversation sent to the model.
type Message struct {
	Role    Role
	Content string
}

// Request is a single generation call (spec §4.3).
type Request struct {
	ModelID         string
	Messages        []Message
	Temperature     float64
	MaxOutputTokens int
}

// Response is the result of a successful generation call.
type Response struct {
	Content          string
	TokensPrompt     int
	TokensCompletion int
	CostUSD          float64
	ModelID          string
}

// ErrorKind is the taxonomy of errors the adapter can surface (spec §4.3).
type ErrorKind string

const (
	ErrDeadlineExceeded ErrorKind = "DeadlineExceeded"
	ErrRateLimited      ErrorKind = "RateLimited"
	ErrUpstream5xx      ErrorKind = "Upstream5xx"
	ErrAuthFailed       ErrorKind = "AuthFailed"
	ErrBadRequest       ErrorKind = "BadRequest"
	ErrUnknown          ErrorKind = "Unknown"
)

// Retryable reports whether the caller may retry a call that failed with this kind
// (spec §4.3: DeadlineExceeded, RateLimited and Upstream5xx are retryable).
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrDeadlineExceeded, ErrRateLimited, ErrUpstream5xx:
		return true
	default:
		return false
	}
}

// Error wraps an upstream failure with its classified kind.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// AsError extracts an *Error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Transport performs the actual wire call to a provider. Implementations translate
// provider-specific failures into plain errors; classification into ErrorKind happens
// in Adapter.Generate.
type Transport interface {
	Do(ctx context.Context, req Request) (content string, tokensPrompt, tokensCompletion int, err error)
}

// Price is a per-model price table entry, owned by the adapter (spec §9: "cost/price
// table owned by the LLM adapter, never hard-coded in strategies").
type Price struct {
	InputPerMtok  float64
	OutputPerMtok float64
}

// Provider is one configured backend the adapter can route a model id to.
type Provider struct {
	ModelID   string
	Transport Transport
	Price     Price
	// RatePerSec and Burst configure the per-model token bucket (spec §5: "the adapter
	// owns a token-bucket rate limiter per model").
	RatePerSec float64
	Burst      int
	// WeeklyCapUSD is the model's weekly spend cap for headroom tracking (SPEC_FULL.md
	// §D). Zero disables tracking for that model.
	WeeklyCapUSD float64
}

// Adapter is the LLM Adapter (L3).
type Adapter struct {
	mu        sync.Mutex
	providers map[string]*providerState
	budget    *BudgetTracker
}

type providerState struct {
	provider Provider
	limiter  *rate.Limiter
}

// New builds an Adapter from a set of configured providers, keyed by model id.
func New(providers []Provider) *Adapter {
	a := &Adapter{providers: make(map[string]*providerState, len(providers))}
	weeklyCaps := make(map[string]float64, len(providers))
	for _, p := range providers {
		burst := p.Burst
		if burst <= 0 {
			burst = 1
		}
		limit := rate.Limit(p.RatePerSec)
		if p.RatePerSec <= 0 {
			limit = rate.Inf
		}
		a.providers[p.ModelID] = &providerState{
			provider: p,
			limiter:  rate.NewLimiter(limit, burst),
		}
		weeklyCaps[p.ModelID] = p.WeeklyCapUSD
	}
	a.budget = NewBudgetTracker(weeklyCaps, time.Now)
	return a
}

// Budget returns the adapter's per-model spend tracker, so a caller (e.g. the API's
// /status handler) can report weekly usage and headroom warnings (SPEC_FULL.md §D).
func (a *Adapter) Budget() *BudgetTracker {
	return a.budget
}

// Generate performs a single generation call, respecting the caller's deadline via ctx
// and the provider's rate limit (spec §4.3, §5).
func (a *Adapter) Generate(ctx context.Context, req Request) (Response, error) {
	a.mu.Lock()
	state, ok := a.providers[req.ModelID]
	a.mu.Unlock()
	if !ok {
		return Response{}, &Error{Kind: ErrBadRequest, Err: fmt.Errorf("unknown model id %q", req.ModelID)}
	}

	if !state.limiter.Allow() {
		return Response{}, &Error{Kind: ErrRateLimited, Err: fmt.Errorf("rate limit exceeded for model %q", req.ModelID)}
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= 0 {
		return Response{}, &Error{Kind: ErrDeadlineExceeded, Err: ctx.Err()}
	}

	content, tokensPrompt, tokensCompletion, err := state.provider.Transport.Do(ctx, req)
	if err != nil {
		return Response{}, classify(ctx, err)
	}

	cost := CalculateCost(tokensPrompt, tokensCompletion, state.provider.Price)
	a.budget.Record(req.ModelID, cost)

	return Response{
		Content:          content,
		TokensPrompt:     tokensPrompt,
		TokensCompletion: tokensCompletion,
		CostUSD:          cost,
		ModelID:          req.ModelID,
	}, nil
}

// classify maps a raw transport error into the spec §4.3 taxonomy. ctx cancellation
// always takes priority, since a transport can return any error shape once its context
// has been cancelled underneath it.
func classify(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return &Error{Kind: ErrDeadlineExceeded, Err: err}
	}
	if ctx.Err() == context.Canceled {
		return &Error{Kind: ErrDeadlineExceeded, Err: err}
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return &Error{Kind: classified.Kind, Err: classified.Err}
	}

	return &Error{Kind: ErrUnknown, Err: err}
}

// ClassifiedError lets a Transport pre-classify an error (e.g. from an HTTP status
// code) without needing to import this package's internals beyond this type.
type ClassifiedError struct {
	Kind ErrorKind
	Err  error
}

func (e *ClassifiedError) Error() string { return e.Err.Error() }
func (e *ClassifiedError) Unwrap() error { return e.Err }

// CalculateCost computes total USD cost from token counts and a per-model price,
// directly grounded on the teacher's internal/cost.CalculateCost formula.
func CalculateCost(tokensPrompt, tokensCompletion int, price Price) float64 {
	inputCost := (float64(tokensPrompt) / 1_000_000.0) * price.InputPerMtok
	outputCost := (float64(tokensCompletion) / 1_000_000.0) * price.OutputPerMtok
	return inputCost + outputCost
}

