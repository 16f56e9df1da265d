package connect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/matjip/internal/logger"
)

func fastPolicy() Policy {
	return Policy{
		ConnectTimeout: 500 * time.Millisecond,
		RetryInterval:  5 * time.Millisecond,
		MaxWait:        20 * time.Millisecond,
		PingTimeout:    50 * time.Millisecond,
		WarnThreshold:  2,
	}
}

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	ping := func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}

	err := WithRetry(context.Background(), "redis", "localhost:6379", fastPolicy(), ping, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryTimesOut(t *testing.T) {
	policy := fastPolicy()
	policy.ConnectTimeout = 40 * time.Millisecond

	err := WithRetry(context.Background(), "postgres", "db:5432", policy,
		func(context.Context) error { return errors.New("down") }, logger.NewNop())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres unavailable at db:5432")
	assert.Contains(t, err.Error(), "down")
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Policy)
	}{
		{"connect timeout", func(p *Policy) { p.ConnectTimeout = 0 }},
		{"retry interval", func(p *Policy) { p.RetryInterval = 0 }},
		{"max wait", func(p *Policy) { p.MaxWait = -1 }},
		{"ping timeout", func(p *Policy) { p.PingTimeout = 0 }},
		{"warn threshold", func(p *Policy) { p.WarnThreshold = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := fastPolicy()
			tt.mutate(&p)
			assert.Error(t, p.Validate())

			called := false
			err := WithRetry(context.Background(), "redis", "x", p,
				func(context.Context) error { called = true; return nil }, logger.NewNop())
			assert.Error(t, err)
			assert.False(t, called)
		})
	}
}
