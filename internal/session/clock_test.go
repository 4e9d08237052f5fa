package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClock(start *time.Time, d time.Duration, fc *fakeClock, fired *int32) *DeadlineClock {
	c := NewDeadlineClock(start, d, func() { atomic.AddInt32(fired, 1) })
	c.now = fc.Now
	return c
}

func TestDeadlineClockRemainingBeforeDeadline(t *testing.T) {
	fc := newFakeClock(t0.Add(299 * time.Second))
	var fired int32
	start := t0
	c := newTestClock(&start, 300*time.Second, fc, &fired)

	if got := c.Remaining(); got != time.Second {
		t.Fatalf("Remaining = %v, want 1s", got)
	}
	display, expired := c.Tick()
	if expired {
		t.Fatal("clock expired one second early")
	}
	if display != "00:00:01" {
		t.Fatalf("display = %q, want 00:00:01", display)
	}
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatal("onExpire fired before the deadline")
	}
}

func TestDeadlineClockFiresOnceAtAndAfterDeadline(t *testing.T) {
	fc := newFakeClock(t0)
	var fired int32
	start := t0
	c := newTestClock(&start, 300*time.Second, fc, &fired)

	fc.Set(t0.Add(300 * time.Second))
	display, expired := c.Tick()
	if !expired || display != TimeUpText {
		t.Fatalf("Tick at deadline = (%q, %v), want (%q, true)", display, expired, TimeUpText)
	}

	for i := 0; i < 5; i++ {
		fc.Advance(time.Minute)
		if display, expired := c.Tick(); !expired || display != TimeUpText {
			t.Fatalf("Tick after deadline = (%q, %v)", display, expired)
		}
	}
	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Fatalf("onExpire fired %d times, want 1", got)
	}
	if !c.Expired() || c.Display() != TimeUpText {
		t.Fatal("clock should report expiry")
	}
}

func TestDeadlineClockStartingPastDeadline(t *testing.T) {
	// remounting an expired session fires immediately
	fc := newFakeClock(t0.Add(time.Hour))
	var fired int32
	start := t0
	c := newTestClock(&start, 300*time.Second, fc, &fired)

	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after expiry")
	}
	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Fatalf("onExpire fired %d times, want 1", got)
	}
}

func TestDeadlineClockInert(t *testing.T) {
	fc := newFakeClock(t0.Add(24 * time.Hour))
	var fired int32
	c := newTestClock(nil, 300*time.Second, fc, &fired)

	if !c.Inert() {
		t.Fatal("clock without start should be inert")
	}
	if display, expired := c.Tick(); expired || display != "" {
		t.Fatalf("inert Tick = (%q, %v)", display, expired)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Run(ctx) // returns immediately
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatal("inert clock fired")
	}
}

func TestDeadlineClockDeadlineIsFixed(t *testing.T) {
	fc := newFakeClock(t0)
	var fired int32
	start := t0
	c := newTestClock(&start, 300*time.Second, fc, &fired)

	want := t0.Add(300 * time.Second)
	start = start.Add(time.Hour) // caller mutating its copy changes nothing
	if !c.EndTime().Equal(want) {
		t.Fatalf("EndTime = %v, want %v", c.EndTime(), want)
	}
}

func TestDeadlineClockInterval(t *testing.T) {
	fc := newFakeClock(t0)
	var fired int32
	start := t0
	c := newTestClock(&start, 300*time.Second, fc, &fired)

	if got := c.Interval(); got != time.Second {
		t.Fatalf("Interval with 300s left = %v, want 1s", got)
	}
	fc.Set(t0.Add(280 * time.Second))
	if got := c.Interval(); got != 100*time.Millisecond {
		t.Fatalf("Interval with 20s left = %v, want 100ms", got)
	}
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, TimeUpText},
		{-time.Second, TimeUpText},
		{999 * time.Millisecond, "00:00:00"},
		{time.Second, "00:00:01"},
		{5*time.Minute + 1500*time.Millisecond, "00:05:01"},
		{2*time.Hour + 3*time.Minute + 4*time.Second, "02:03:04"},
	}
	for _, tt := range tests {
		if got := FormatRemaining(tt.in); got != tt.want {
			t.Errorf("FormatRemaining(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
