// File: internal/browser/settle/settle.go

// Package settle decides when a rendered page has quieted enough to
// snapshot. It is a pure function over injected time, sleep, and
// activity-snapshot primitives so tests can drive it with simulated clocks.
package settle

import (
	"context"
	"time"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/browser/activity"
)

// Params configures one wait. Now, Sleep, and Snapshot default to the real
// clock and a context-aware sleep when nil.
type Params struct {
	Strategy     schemas.WaitStrategy
	Deadline     time.Time
	IdleTime     time.Duration
	PollInterval time.Duration

	Now      func() time.Time
	Sleep    func(ctx context.Context, d time.Duration) error
	Snapshot func() activity.Snapshot
}

// Result is produced exactly once per call.
type Result struct {
	TimedOut bool
}

// Wait blocks until the page settles or the deadline passes.
//
// The timeout strategy sleeps out the whole remaining budget and always
// reports a timeout; it never settles early. The networkidle strategy polls
// the activity snapshot every PollInterval and settles once nothing is
// pending and the last activity is at least IdleTime old. Activity bursts
// restart the idle countdown; the deadline is a hard ceiling and is never
// extended. Context cancellation counts as a timeout.
func Wait(ctx context.Context, p Params) Result {
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}

	switch p.Strategy {
	case schemas.WaitNetworkIdle:
		return waitNetworkIdle(ctx, p)
	default:
		// Unknown strategies degrade to the conservative timeout wait.
		return waitTimeout(ctx, p)
	}
}

func waitTimeout(ctx context.Context, p Params) Result {
	if remaining := p.Deadline.Sub(p.Now()); remaining > 0 {
		_ = p.Sleep(ctx, remaining)
	}
	return Result{TimedOut: true}
}

func waitNetworkIdle(ctx context.Context, p Params) Result {
	if p.Snapshot == nil {
		return Result{TimedOut: true}
	}
	for {
		now := p.Now()

		// The idle check is evaluated fresh on every tick; settling wins a
		// tie with the deadline.
		if p.Snapshot().Idle(now, p.IdleTime) {
			return Result{TimedOut: false}
		}
		if !now.Before(p.Deadline) {
			return Result{TimedOut: true}
		}

		step := p.PollInterval
		if remaining := p.Deadline.Sub(now); remaining < step {
			step = remaining
		}
		if err := p.Sleep(ctx, step); err != nil {
			return Result{TimedOut: true}
		}
	}
}

// sleepContext sleeps d or returns early with the context's error.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
