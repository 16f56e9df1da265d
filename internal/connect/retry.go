// Package connect retries the first contact with a backing service.
package connect

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/matjip/internal/logger"
)

// Policy defines how long and how often a connection is retried.
type Policy struct {
	ConnectTimeout time.Duration // total time allowed for attempts (ex: 30s)
	RetryInterval  time.Duration // initial wait between attempts, doubles each time (ex: 2s)
	MaxWait        time.Duration // cap on the wait between attempts (ex: 10s)
	PingTimeout    time.Duration // timeout for each attempt (ex: 5s)
	WarnThreshold  int           // attempts logged as warnings before escalating to errors
}

// Validate ensures all durations are usable.
func (p Policy) Validate() error {
	if p.ConnectTimeout <= 0 {
		return fmt.Errorf("ConnectTimeout must be > 0, got %v", p.ConnectTimeout)
	}
	if p.RetryInterval <= 0 {
		return fmt.Errorf("RetryInterval must be > 0, got %v", p.RetryInterval)
	}
	if p.MaxWait <= 0 {
		return fmt.Errorf("MaxWait must be > 0, got %v", p.MaxWait)
	}
	if p.PingTimeout <= 0 {
		return fmt.Errorf("PingTimeout must be > 0, got %v", p.PingTimeout)
	}
	if p.WarnThreshold < 0 {
		return fmt.Errorf("WarnThreshold must be >= 0, got %d", p.WarnThreshold)
	}
	return nil
}

// PingFunc checks that the target answers.
type PingFunc func(ctx context.Context) error

// WithRetry calls ping until it succeeds or the policy's ConnectTimeout
// elapses, backing off exponentially between attempts.
func WithRetry(ctx context.Context, target, addr string, policy Policy, ping PingFunc, log logger.Logger) error {
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("%s: %w", target, err)
	}

	cl := &attemptLogger{logger: log, target: target, addr: addr}

	ctx, cancel := context.WithTimeout(ctx, policy.ConnectTimeout)
	defer cancel()

	cl.start(policy.ConnectTimeout)
	attempt := 0
	wait := policy.RetryInterval

	for {
		attempt++

		pingCtx, pingCancel := context.WithTimeout(ctx, policy.PingTimeout)
		err := ping(pingCtx)
		pingCancel()

		if err == nil {
			cl.success(attempt, policy.ConnectTimeout-timeLeft(ctx))
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			cl.timeout(attempt, policy.ConnectTimeout, err)
			return fmt.Errorf("%s unavailable at %s after %d attempts (timeout: %v): %w",
				target, addr, attempt, policy.ConnectTimeout, err)

		case <-timer.C:
			cl.retry(attempt, timeLeft(ctx), wait, policy.WarnThreshold, err)
			wait *= 2
			if wait > policy.MaxWait {
				wait = policy.MaxWait
			}
		}
	}
}

// timeLeft returns the remaining time before context deadline.
func timeLeft(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return time.Until(deadline)
}

type attemptLogger struct {
	logger logger.Logger
	target string
	addr   string
}

func (l *attemptLogger) start(timeout time.Duration) {
	l.logger.Info("connecting to "+l.target,
		logger.String("addr", l.addr),
		logger.Duration("timeout", timeout))
}

func (l *attemptLogger) success(attempts int, elapsed time.Duration) {
	if attempts > 1 {
		l.logger.Warn("connected to "+l.target+" after retry",
			logger.String("addr", l.addr),
			logger.Int("attempts", attempts),
			logger.Duration("elapsed", elapsed))
		return
	}
	l.logger.Info("connected to "+l.target, logger.String("addr", l.addr))
}

func (l *attemptLogger) timeout(attempts int, timeout time.Duration, err error) {
	l.logger.Error(l.target+" unavailable - failed to connect after timeout",
		logger.String("addr", l.addr),
		logger.Int("attempts", attempts),
		logger.Duration("timeout", timeout),
		logger.Error(err))
}

func (l *attemptLogger) retry(attempt int, remaining, nextRetry time.Duration, warnThreshold int, err error) {
	switch {
	case remaining < 10*time.Second:
		l.logger.Error(l.target+" still down - retrying but timeout approaching",
			logger.String("addr", l.addr),
			logger.Int("attempt", attempt),
			logger.Duration("remaining", remaining),
			logger.Duration("next_retry_in", nextRetry),
			logger.Error(err))
	case attempt <= warnThreshold:
		l.logger.Warn(l.target+" connection failed, retrying",
			logger.String("addr", l.addr),
			logger.Int("attempt", attempt),
			logger.Duration("next_retry_in", nextRetry),
			logger.Error(err))
	default:
		l.logger.Error(l.target+" still unavailable - connection attempts failing",
			logger.String("addr", l.addr),
			logger.Int("attempt", attempt),
			logger.Duration("next_retry_in", nextRetry),
			logger.Error(err))
	}
}
