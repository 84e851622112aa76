package decision

import (
	"context"
	"math/rand"
	"time"

	"github.com/wallseat/payment-transaction-model/internal/domain"
)

// Outcome is the verdict of the business decision on a settlement.
type Outcome string

const (
	Approve Outcome = "approve"
	Reject  Outcome = "reject"
)

// Decider resolves a settlement intent into an outcome. Implementations may
// be slow (remote scoring calls, manual review); the worker bounds them with
// a deadline and treats a context error as no decision at all.
type Decider interface {
	Decide(ctx context.Context, intent domain.SettlementIntent) (Outcome, error)
}

// Func adapts a plain function to the Decider interface.
type Func func(ctx context.Context, intent domain.SettlementIntent) (Outcome, error)

func (f Func) Decide(ctx context.Context, intent domain.SettlementIntent) (Outcome, error) {
	return f(ctx, intent)
}

// Random approves roughly half of all settlements after a simulated
// processing delay. Stands in for real business rules in development.
type Random struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

func (r Random) Decide(ctx context.Context, _ domain.SettlementIntent) (Outcome, error) {
	delay := r.MinDelay
	if r.MaxDelay > r.MinDelay {
		delay += time.Duration(rand.Int63n(int64(r.MaxDelay - r.MinDelay)))
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	if rand.Intn(10) > 4 {
		return Approve, nil
	}
	return Reject, nil
}
