// File: internal/browser/settle/settle_test.go
package settle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/browser/activity"
)

// simClock is a simulated clock whose Sleep advances time instantly, so the
// scheduler's behavior can be checked against exact simulated instants.
type simClock struct {
	mu  sync.Mutex
	now time.Time
}

func newSimClock() *simClock {
	return &simClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *simClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *simClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return nil
}

func (c *simClock) At(offset time.Duration) time.Time {
	return time.Unix(1_700_000_000, 0).Add(offset)
}

func TestTimeoutStrategyConsumesExactlyTheDeadline(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := newSimClock()
	start := clock.Now()

	res := Wait(context.Background(), Params{
		Strategy: schemas.WaitTimeout,
		Deadline: start.Add(10 * time.Millisecond),
		Now:      clock.Now,
		Sleep:    clock.Sleep,
	})

	assert.True(t, res.TimedOut)
	assert.Equal(t, 10*time.Millisecond, clock.Now().Sub(start))
}

func TestTimeoutStrategyNeverSettlesEarly(t *testing.T) {
	clock := newSimClock()
	tr := activity.NewTracker(clock.Now)

	// Nothing pending at all; the timeout strategy must still run out the clock.
	res := Wait(context.Background(), Params{
		Strategy: schemas.WaitTimeout,
		Deadline: clock.Now().Add(50 * time.Millisecond),
		Now:      clock.Now,
		Sleep:    clock.Sleep,
		Snapshot: tr.Snapshot,
	})

	assert.True(t, res.TimedOut)
	assert.Equal(t, clock.At(50*time.Millisecond), clock.Now())
}

func TestNetworkIdleSettlesAfterQuietWindow(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := newSimClock()
	tr := activity.NewTracker(clock.Now)
	tr.FetchStarted()

	// The fetch clears at simulated t=5ms; with a 10ms idle window the
	// scheduler may settle no earlier than t=15ms.
	finished := false
	snapshot := func() activity.Snapshot {
		if !finished && clock.Now().Sub(clock.At(0)) >= 5*time.Millisecond {
			tr.FetchFinished()
			finished = true
		}
		return tr.Snapshot()
	}

	res := Wait(context.Background(), Params{
		Strategy:     schemas.WaitNetworkIdle,
		Deadline:     clock.At(100 * time.Millisecond),
		IdleTime:     10 * time.Millisecond,
		PollInterval: time.Millisecond,
		Now:          clock.Now,
		Sleep:        clock.Sleep,
		Snapshot:     snapshot,
	})

	assert.False(t, res.TimedOut)
	settledAt := clock.Now().Sub(clock.At(0))
	assert.GreaterOrEqual(t, settledAt, 15*time.Millisecond, "settled before the idle window elapsed")
}

func TestNetworkIdleTimesOutWhilePending(t *testing.T) {
	clock := newSimClock()
	tr := activity.NewTracker(clock.Now)
	tr.FetchStarted() // never finishes

	res := Wait(context.Background(), Params{
		Strategy:     schemas.WaitNetworkIdle,
		Deadline:     clock.At(20 * time.Millisecond),
		IdleTime:     5 * time.Millisecond,
		PollInterval: time.Millisecond,
		Now:          clock.Now,
		Sleep:        clock.Sleep,
		Snapshot:     tr.Snapshot,
	})

	assert.True(t, res.TimedOut)
	// The hard ceiling is respected: no extension past the deadline beyond
	// one poll step.
	assert.LessOrEqual(t, clock.Now().Sub(clock.At(0)), 21*time.Millisecond)
}

func TestNetworkIdleActivityBurstRestartsCountdown(t *testing.T) {
	clock := newSimClock()
	tr := activity.NewTracker(clock.Now)

	// Activity pulses at t=0..30ms every 10ms; with a 15ms idle window the
	// scheduler cannot settle before t=45ms.
	snapshot := func() activity.Snapshot {
		offset := clock.Now().Sub(clock.At(0))
		if offset <= 30*time.Millisecond && offset%(10*time.Millisecond) == 0 {
			tr.Note()
		}
		return tr.Snapshot()
	}

	res := Wait(context.Background(), Params{
		Strategy:     schemas.WaitNetworkIdle,
		Deadline:     clock.At(200 * time.Millisecond),
		IdleTime:     15 * time.Millisecond,
		PollInterval: time.Millisecond,
		Now:          clock.Now,
		Sleep:        clock.Sleep,
		Snapshot:     snapshot,
	})

	assert.False(t, res.TimedOut)
	assert.GreaterOrEqual(t, clock.Now().Sub(clock.At(0)), 45*time.Millisecond)
}

func TestNetworkIdleImmediateSettleWhenAlreadyQuiet(t *testing.T) {
	clock := newSimClock()
	tr := activity.NewTracker(clock.Now)
	clock.Sleep(context.Background(), 50*time.Millisecond) //nolint:errcheck

	start := clock.Now()
	res := Wait(context.Background(), Params{
		Strategy:     schemas.WaitNetworkIdle,
		Deadline:     start.Add(time.Second),
		IdleTime:     10 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		Now:          clock.Now,
		Sleep:        clock.Sleep,
		Snapshot:     tr.Snapshot,
	})

	assert.False(t, res.TimedOut)
	assert.Equal(t, start, clock.Now(), "already-idle page must settle on the first tick")
}

func TestCancellationCountsAsTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := activity.NewTracker(nil)
	tr.FetchStarted()

	res := Wait(ctx, Params{
		Strategy:     schemas.WaitNetworkIdle,
		Deadline:     time.Now().Add(time.Minute),
		IdleTime:     10 * time.Millisecond,
		PollInterval: time.Millisecond,
		Snapshot:     tr.Snapshot,
	})

	assert.True(t, res.TimedOut)
}

func TestRealSleepHonorsContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := sleepContext(ctx, time.Minute)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
