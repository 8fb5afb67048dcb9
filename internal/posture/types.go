// Package posture turns body keypoints into posture features and stabilizes
// per-frame class probabilities into a reported posture label.
package posture

import "fmt"

// NumFeatures is the length of a feature vector.
const NumFeatures = 6

// Feature vector indices. The order is part of the model contract.
const (
	NeckTiltLeft = iota
	NeckTiltRight
	ShoulderSlope
	EarToShoulderLeft
	EarToShoulderRight
	TiltAsymmetry
)

// Features is the geometric feature vector extracted from one pose.
type Features [NumFeatures]float64

// Class is a classifier output index.
type Class int

// Classifier output classes.
const (
	ClassGood Class = iota
	ClassLean
	ClassSlouch
	NumClasses = 3
)

// Label returns the reported label for the class.
func (c Class) Label() Label {
	switch c {
	case ClassGood:
		return Good
	case ClassLean:
		return Lean
	case ClassSlouch:
		return Slouch
	}
	return Unknown
}

// Probabilities holds one probability per Class.
type Probabilities [NumClasses]float64

// Argmax returns the most probable class. Exact ties resolve to the lowest class index.
func (p Probabilities) Argmax() Class {
	best := 0
	for i := 1; i < NumClasses; i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return Class(best)
}

// Label is the user-facing posture status.
type Label int

// Posture labels. The zero value is Unknown.
const (
	Unknown Label = iota
	Good
	Lean
	Slouch
)

var labelNames = [...]string{"Unknown", "Good", "Lean", "Slouch"}

// String returns the label name.
func (l Label) String() string {
	if l < 0 || int(l) >= len(labelNames) {
		return fmt.Sprintf("Label(%d)", int(l))
	}
	return labelNames[l]
}

// MarshalText implements encoding.TextMarshaler.
func (l Label) MarshalText() ([]byte, error) {
	if l < 0 || int(l) >= len(labelNames) {
		return nil, fmt.Errorf("invalid label %d", int(l))
	}
	return []byte(labelNames[l]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Label) UnmarshalText(text []byte) error {
	for i, name := range labelNames {
		if name == string(text) {
			*l = Label(i)
			return nil
		}
	}
	return fmt.Errorf("unknown label %q", text)
}
