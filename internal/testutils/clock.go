package testutils

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
)

// NewMockClock creates a mock clock for testing
func NewMockClock(t testing.TB) *quartz.Mock {
	return quartz.NewMock(t)
}

// NewMockClockAt creates a mock clock set to now
func NewMockClockAt(t testing.TB, now time.Time) *quartz.Mock {
	mClock := quartz.NewMock(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mClock.Set(now).MustWait(ctx)
	return mClock
}

// DriveTimers fires every timer created on mClock until done is closed and
// returns the duration of each timer in the order they fired. It fails the
// test if done is not closed within timeout.
func DriveTimers(t testing.TB, mClock *quartz.Mock, done <-chan struct{}, timeout time.Duration) []time.Duration {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var fired []time.Duration
	for {
		select {
		case <-done:
			return fired
		case <-ctx.Done():
			t.Fatalf("timed out driving mock clock after %d timers", len(fired))
			return fired
		default:
		}

		if d, ok := mClock.Peek(); ok {
			fired = append(fired, d)
			_, w := mClock.AdvanceNext()
			w.MustWait(ctx)
			continue
		}

		// real-time yield while the code under test reaches its next timer
		time.Sleep(time.Millisecond)
	}
}
