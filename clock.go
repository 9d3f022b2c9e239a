package imagefall

import (
	"time"
)

// FrameClock yields the delta time of each frame in seconds.
type FrameClock interface {
	Tick() float32
}

// Clock measures wall time between ticks.
type Clock struct {
	Time time.Time
	Dt   time.Duration
	// MaxDelta clamps a single delta when positive. Zero leaves long frames
	// unclamped; the effect absorbs them as a large dt.
	MaxDelta time.Duration

	now func() time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Tick returns the seconds since the previous tick, 0 on the first.
func (c *Clock) Tick() float32 {
	if c.now == nil {
		c.now = time.Now
	}
	now := c.now()
	if c.Time.IsZero() {
		c.Dt = 0
	} else {
		c.Dt = now.Sub(c.Time)
	}
	c.Time = now
	if c.Dt < 0 {
		c.Dt = 0
	}
	if c.MaxDelta > 0 && c.Dt > c.MaxDelta {
		c.Dt = c.MaxDelta
	}
	return float32(c.Dt.Seconds())
}

// FixedClock always advances by Step seconds.
type FixedClock struct {
	Step float32
}

func (c FixedClock) Tick() float32 { return c.Step }
