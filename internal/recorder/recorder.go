// Package recorder accumulates labeled feature vectors during user recording sessions.
package recorder

import (
	"fmt"
	"time"

	"github.com/ayusman/posturecheck/internal/posture"
)

// Collector defaults.
const (
	// DefaultInterval is the minimum wall-clock gap between accepted samples (10 Hz).
	DefaultInterval = 100 * time.Millisecond
	// DefaultMinSamples is the per-class count required before training (~6s at 10 Hz).
	DefaultMinSamples = 60
)

// Mode is the current recording session.
type Mode int

const (
	// ModeNone means no session is recording.
	ModeNone Mode = iota
	// ModeGood records good-posture samples.
	ModeGood
	// ModeBad records not-good samples.
	ModeBad
)

var modeNames = [...]string{"none", "good", "bad"}

// String returns the mode name.
func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	for i, name := range modeNames {
		if name == string(text) {
			*m = Mode(i)
			return nil
		}
	}
	return fmt.Errorf("unknown recording mode %q", text)
}

// Transition describes the effect of a mode change request.
type Transition int

const (
	// Unchanged means the requested mode was already active.
	Unchanged Transition = iota
	// Started means a session began from ModeNone.
	Started
	// Stopped means the active session ended.
	Stopped
	// Switched means the active session was stopped and the other one started.
	Switched
)

var transitionNames = [...]string{"unchanged", "started", "stopped", "switched"}

// String returns the transition name.
func (t Transition) String() string {
	if t < 0 || int(t) >= len(transitionNames) {
		return fmt.Sprintf("Transition(%d)", int(t))
	}
	return transitionNames[t]
}

// transitions[from][to] is the effect of requesting mode `to` while in `from`.
var transitions = [3][3]Transition{
	ModeNone: {ModeNone: Unchanged, ModeGood: Started, ModeBad: Started},
	ModeGood: {ModeNone: Stopped, ModeGood: Unchanged, ModeBad: Switched},
	ModeBad:  {ModeNone: Stopped, ModeGood: Switched, ModeBad: Unchanged},
}

// Dataset holds the recorded samples of both sessions.
type Dataset struct {
	Good    []posture.Features
	NotGood []posture.Features
}

// Config holds collector options.
type Config struct {
	Interval   time.Duration
	MinSamples int
}

// DefaultConfig returns a Config with the default throttle and training gate.
func DefaultConfig() Config {
	return Config{Interval: DefaultInterval, MinSamples: DefaultMinSamples}
}

// Collector is the sample collector. It is not safe for concurrent use; the owner
// serializes access.
type Collector struct {
	config Config
	mode   Mode
	data   Dataset
	last   time.Time
}

// New creates an empty Collector. Non-positive config values fall back to defaults.
func New(config Config) *Collector {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.MinSamples <= 0 {
		config.MinSamples = DefaultMinSamples
	}
	return &Collector{config: config}
}

// Config returns the effective configuration.
func (c *Collector) Config() Config {
	return c.config
}

// Mode returns the active recording mode.
func (c *Collector) Mode() Mode {
	return c.mode
}

// Start begins a recording session. Starting the other session while one is active
// stops the active one first; starting the active one again is a no-op.
func (c *Collector) Start(mode Mode) (Transition, error) {
	if mode != ModeGood && mode != ModeBad {
		return Unchanged, fmt.Errorf("cannot start recording in mode %s", mode)
	}
	return c.transition(mode), nil
}

// Stop ends the active session. Stopping when idle is a no-op.
func (c *Collector) Stop() Transition {
	return c.transition(ModeNone)
}

func (c *Collector) transition(to Mode) Transition {
	t := transitions[c.mode][to]
	c.mode = to
	return t
}

// Add appends f to the sequence of the active session.
// It returns false when no session is active or when the previous sample was
// accepted less than Interval before now.
func (c *Collector) Add(f posture.Features, now time.Time) bool {
	if c.mode == ModeNone {
		return false
	}
	if !c.last.IsZero() && now.Sub(c.last) < c.config.Interval {
		return false
	}

	switch c.mode {
	case ModeGood:
		c.data.Good = append(c.data.Good, f)
	case ModeBad:
		c.data.NotGood = append(c.data.NotGood, f)
	}
	c.last = now
	return true
}

// Counts returns the number of good and not-good samples.
func (c *Collector) Counts() (good, notGood int) {
	return len(c.data.Good), len(c.data.NotGood)
}

// Ready reports whether both sequences hold at least MinSamples samples.
func (c *Collector) Ready() bool {
	good, notGood := c.Counts()
	return good >= c.config.MinSamples && notGood >= c.config.MinSamples
}

// Dataset returns a copy of the recorded samples.
func (c *Collector) Dataset() Dataset {
	ds := Dataset{
		Good:    make([]posture.Features, len(c.data.Good)),
		NotGood: make([]posture.Features, len(c.data.NotGood)),
	}
	copy(ds.Good, c.data.Good)
	copy(ds.NotGood, c.data.NotGood)
	return ds
}

// Reset discards all samples and forgets the throttle timestamp.
// An active session keeps recording into the emptied sequences.
func (c *Collector) Reset() {
	c.data = Dataset{}
	c.last = time.Time{}
}
