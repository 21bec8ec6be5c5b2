package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/oneway/internal/algorithm"
	"github.com/wonny/oneway/pkg/logger"
)

func newSessionEngine(t *testing.T) *algorithm.Engine {
	t.Helper()
	engine, err := algorithm.NewEngine(
		algorithm.Params{LowerBound: 100, UpperBound: 200, Lambda: 1},
		nil, nil, logger.NewNop(),
	)
	require.NoError(t, err)
	return engine
}

func TestSessionRun(t *testing.T) {
	session, err := NewSession(newSessionEngine(t), 5*time.Millisecond, 3, logger.NewNop())
	require.NoError(t, err)

	session.Observe(&Trade{Price: 120})

	result, err := session.Run(context.Background())
	require.NoError(t, err)

	// flat price: everything liquidates at episode end
	require.Len(t, result.Allocation, 3)
	sum := 0.0
	for _, x := range result.Allocation {
		sum += x
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
	assert.InDelta(t, 120.0, result.Profit, 1e-6)
}

func TestSessionCancelledEarly(t *testing.T) {
	session, err := NewSession(newSessionEngine(t), 5*time.Millisecond, 1000, logger.NewNop())
	require.NoError(t, err)

	session.Observe(&Trade{Price: 150})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	result, err := session.Run(ctx)
	require.NoError(t, err)

	// early close still spends the whole budget over what was collected
	assert.Greater(t, result.Steps, 0)
	assert.Less(t, result.Steps, 1000)

	sum := 0.0
	for _, x := range result.Allocation {
		sum += x
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestSessionCancelledBeforeFirstTrade(t *testing.T) {
	session, err := NewSession(newSessionEngine(t), time.Hour, 10, logger.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = session.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSessionInvalidConfig(t *testing.T) {
	engine := newSessionEngine(t)

	if _, err := NewSession(engine, 0, 10, logger.NewNop()); err == nil {
		t.Error("expected error for zero interval")
	}
	if _, err := NewSession(engine, time.Second, 0, logger.NewNop()); err == nil {
		t.Error("expected error for zero steps")
	}
}
