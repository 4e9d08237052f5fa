package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TimeUpText replaces the countdown once the deadline has passed
const TimeUpText = "Time Up!"

const (
	// below this the countdown refreshes ten times a second
	fastCadenceThreshold = 30 * time.Second
	slowCadence          = time.Second
	fastCadence          = 100 * time.Millisecond
)

// DeadlineClock counts down to start+duration and fires onExpire exactly once.
// A clock built without a start time is inert: it never ticks or expires.
type DeadlineClock struct {
	endTime  time.Time
	inert    bool
	now      func() time.Time
	onExpire func()
	once     sync.Once

	mu      sync.Mutex
	expired bool
	display string
}

// NewDeadlineClock computes the deadline once; it never moves afterwards
func NewDeadlineClock(start *time.Time, duration time.Duration, onExpire func()) *DeadlineClock {
	c := &DeadlineClock{
		now:      time.Now,
		onExpire: onExpire,
	}
	if start == nil {
		c.inert = true
		return c
	}
	c.endTime = start.Add(duration)
	return c
}

// Inert reports whether the session has not begun
func (c *DeadlineClock) Inert() bool {
	return c.inert
}

// EndTime returns the absolute deadline
func (c *DeadlineClock) EndTime() time.Time {
	return c.endTime
}

// Remaining returns endTime - now; zero for an inert clock
func (c *DeadlineClock) Remaining() time.Duration {
	if c.inert {
		return 0
	}
	return c.endTime.Sub(c.now())
}

// Interval is the refresh cadence for the current remaining time
func (c *DeadlineClock) Interval() time.Duration {
	if c.Remaining() <= fastCadenceThreshold {
		return fastCadence
	}
	return slowCadence
}

// Tick refreshes the display. The first tick at or past the deadline fires
// onExpire; later ticks are no-ops that keep returning TimeUpText.
func (c *DeadlineClock) Tick() (string, bool) {
	if c.inert {
		return "", false
	}

	c.mu.Lock()
	if c.expired {
		c.mu.Unlock()
		return TimeUpText, true
	}
	remaining := c.endTime.Sub(c.now())
	if remaining > 0 {
		c.display = FormatRemaining(remaining)
		display := c.display
		c.mu.Unlock()
		return display, false
	}
	c.expired = true
	c.display = TimeUpText
	c.mu.Unlock()

	c.once.Do(func() {
		if c.onExpire != nil {
			c.onExpire()
		}
	})
	return TimeUpText, true
}

// Display returns the last rendered countdown
func (c *DeadlineClock) Display() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.display
}

// Expired reports whether expiry has fired
func (c *DeadlineClock) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// Run ticks until expiry or until ctx is cancelled
func (c *DeadlineClock) Run(ctx context.Context) {
	if c.inert {
		return
	}
	for {
		if _, expired := c.Tick(); expired {
			return
		}
		t := time.NewTimer(c.Interval())
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// FormatRemaining floors d to whole seconds and renders HH:MM:SS.
// Zero and negative durations render as TimeUpText.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return TimeUpText
	}
	total := int64(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
