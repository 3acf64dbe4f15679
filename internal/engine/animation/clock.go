package animation

import (
	gomath "math"
	"time"
)

// State is the playback state of a clock.
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Clock tracks the current frame of a fixed-rate sequence.
type Clock struct {
	CurrentFrame int
	CurrentTime  time.Duration
	State        State
	Loop         bool
}

// Advance moves the clock forward by dt while playing. Past the last frame a
// looping clock wraps to frame zero; otherwise it stops on the last frame.
func (c *Clock) Advance(dt time.Duration, frameRate float64, frameCount int) {
	if c.State != Playing || frameCount == 0 {
		return
	}
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}

	c.CurrentTime += dt
	c.CurrentFrame = int(gomath.Floor(c.CurrentTime.Seconds() * frameRate))

	if last := frameCount - 1; c.CurrentFrame > last {
		if c.Loop {
			c.CurrentFrame = 0
			c.CurrentTime = 0
			return
		}
		c.CurrentFrame = last
		c.State = Stopped
	}
}

// Play starts playback, rewinding first when stopped.
func (c *Clock) Play() {
	if c.State == Stopped {
		c.Rewind()
	}
	c.State = Playing
}

// Pause freezes the clock at its current frame.
func (c *Clock) Pause() {
	if c.State == Playing {
		c.State = Paused
	}
}

// Resume continues a paused clock.
func (c *Clock) Resume() {
	if c.State == Paused {
		c.State = Playing
	}
}

// Stop halts playback and rewinds.
func (c *Clock) Stop() {
	c.State = Stopped
	c.Rewind()
}

// Rewind returns to frame zero without changing the state.
func (c *Clock) Rewind() {
	c.CurrentFrame = 0
	c.CurrentTime = 0
}

// SetLoop enables or disables wrapping at the end.
func (c *Clock) SetLoop(loop bool) {
	c.Loop = loop
}
