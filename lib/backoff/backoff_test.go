package backoff

import (
	"context"
	"testing"
	"time"
)

func TestDelayGrowth(t *testing.T) {
	// Pin the random multiplier to its maximum so the growth factor
	// alone drives the sequence: 1, 2, 4, ... capped at MaxFactor.
	d := Delay{Rand: func(n int) int { return n - 1 }}

	factor := 1
	for i := 0; i < 10; i++ {
		want := DefaultUnit * time.Duration(DefaultJitter*factor)
		if got := d.Next(); got != want {
			t.Errorf("step %v: got %v, want %v", i, got, want)
		}
		factor *= 2
		if factor > DefaultMaxFactor {
			factor = DefaultMaxFactor
		}
	}
}

func TestDelayBounds(t *testing.T) {
	// With the real random source every wait must lie within
	// [Unit, Unit×Jitter] times the current growth factor.
	d := Delay{}
	factor := 1
	for i := 0; i < 20; i++ {
		got := d.Next()
		lo := DefaultUnit * time.Duration(factor)
		hi := DefaultUnit * time.Duration(DefaultJitter*factor)
		if got < lo || got > hi {
			t.Errorf("step %v: %v outside [%v, %v]", i, got, lo, hi)
		}
		factor *= 2
		if factor > DefaultMaxFactor {
			factor = DefaultMaxFactor
		}
	}
}

func TestWait(t *testing.T) {
	d := Delay{Unit: time.Millisecond, Jitter: 1, MaxFactor: 1}
	if err := d.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := Delay{Unit: time.Hour}
	start := time.Now()
	if err := d.Wait(ctx); err != context.Canceled {
		t.Errorf("got %v, want %v", err, context.Canceled)
	}
	if time.Since(start) > time.Second {
		t.Errorf("cancelled wait still slept")
	}
}
