package posture

import "time"

// Smoothing defaults.
const (
	DefaultAlpha       = 0.2
	DefaultGracePeriod = 1500 * time.Millisecond
)

// SmoothingState carries the smoother's memory between frames.
// The zero value is the reset state: zero EMA, Unknown label and no excursion.
type SmoothingState struct {
	EMA   Probabilities
	Label Label

	// NotGoodSince is when the current excursion away from Good started.
	// Zero when no excursion is pending.
	NotGoodSince time.Time

	// Pending is the candidate label held back during an excursion.
	Pending Label
}

// InExcursion reports whether a Good label is currently being held.
func (s SmoothingState) InExcursion() bool {
	return !s.NotGoodSince.IsZero()
}

// Result is the stabilized output for one frame.
type Result struct {
	Label      Label
	Confidence float64
}

// Smoother applies exponential smoothing and hysteresis to per-frame class probabilities.
type Smoother struct {
	// Alpha is the EMA weight of the newest frame (0-1].
	Alpha float64
	// GracePeriod is how long a non-Good candidate must persist after Good
	// before it is reported.
	GracePeriod time.Duration
}

// NewSmoother returns a Smoother with the default alpha and grace period.
func NewSmoother() Smoother {
	return Smoother{Alpha: DefaultAlpha, GracePeriod: DefaultGracePeriod}
}

// Update folds raw into the state and returns the new state and the label to report.
//
// The EMA always tracks raw. When the last reported label was Good and the EMA's argmax
// moves away from Good, Good keeps being reported (with the Good confidence) until the
// excursion has lasted GracePeriod; then the new candidate is reported and the timer
// cleared. A Good candidate clears the timer immediately.
func (s Smoother) Update(state SmoothingState, raw Probabilities, now time.Time) (SmoothingState, Result) {
	next := state
	for i := range next.EMA {
		next.EMA[i] = state.EMA[i]*(1-s.Alpha) + raw[i]*s.Alpha
	}

	class := next.EMA.Argmax()
	res := Result{Label: class.Label(), Confidence: next.EMA[class]}

	switch {
	case state.Label == Good && res.Label != Good:
		if next.NotGoodSince.IsZero() {
			next.NotGoodSince = now
		}
		next.Pending = res.Label
		if now.Sub(next.NotGoodSince) < s.GracePeriod {
			res = Result{Label: Good, Confidence: next.EMA[ClassGood]}
		} else {
			next.NotGoodSince = time.Time{}
			next.Pending = Unknown
		}
	case res.Label == Good:
		next.NotGoodSince = time.Time{}
		next.Pending = Unknown
	}

	next.Label = res.Label
	return next, res
}
