package decision_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallseat/payment-transaction-model/internal/decision"
	"github.com/wallseat/payment-transaction-model/internal/domain"
)

func TestRandomDecidesBothWays(t *testing.T) {
	d := decision.Random{}

	seen := map[decision.Outcome]bool{}
	for i := 0; i < 200; i++ {
		outcome, err := d.Decide(context.Background(), domain.SettlementIntent{})
		require.NoError(t, err)
		require.Contains(t, []decision.Outcome{decision.Approve, decision.Reject}, outcome)
		seen[outcome] = true
	}

	assert.True(t, seen[decision.Approve], "expected at least one approval in 200 draws")
	assert.True(t, seen[decision.Reject], "expected at least one rejection in 200 draws")
}

func TestRandomHonorsCancellation(t *testing.T) {
	d := decision.Random{MinDelay: time.Minute, MaxDelay: 2 * time.Minute}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := d.Decide(ctx, domain.SettlementIntent{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second, "cancelled decision must return promptly")
}

func TestFuncAdapter(t *testing.T) {
	called := false
	f := decision.Func(func(context.Context, domain.SettlementIntent) (decision.Outcome, error) {
		called = true
		return decision.Reject, nil
	})

	outcome, err := f.Decide(context.Background(), domain.SettlementIntent{})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, decision.Reject, outcome)
}
