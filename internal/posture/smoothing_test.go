package posture

import (
	"testing"
	"time"
)

var (
	rawGood   = Probabilities{1, 0, 0}
	rawLean   = Probabilities{0, 1, 0}
	rawSlouch = Probabilities{0, 0, 1}
)

func TestProbabilities_Argmax(t *testing.T) {
	tests := []struct {
		name string
		p    Probabilities
		want Class
	}{
		{"clear good", Probabilities{0.7, 0.2, 0.1}, ClassGood},
		{"clear slouch", Probabilities{0.1, 0.2, 0.7}, ClassSlouch},
		{"tie good and lean picks good", Probabilities{0.4, 0.4, 0.2}, ClassGood},
		{"tie lean and slouch picks lean", Probabilities{0.1, 0.45, 0.45}, ClassLean},
		{"all zero picks good", Probabilities{}, ClassGood},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Argmax(); got != tt.want {
				t.Errorf("Argmax() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSmoother_FirstUpdateFromReset(t *testing.T) {
	s := NewSmoother()
	state, res := s.Update(SmoothingState{}, Probabilities{0.5, 0.3, 0.2}, time.Unix(0, 0))

	want := Probabilities{0.1, 0.06, 0.04}
	for i := range want {
		if !floatEqual(state.EMA[i], want[i]) {
			t.Errorf("ema[%d] = %f, want %f", i, state.EMA[i], want[i])
		}
	}
	if res.Label != Good {
		t.Errorf("label = %v, want Good", res.Label)
	}
	if !floatEqual(res.Confidence, 0.1) {
		t.Errorf("confidence = %f, want 0.1", res.Confidence)
	}
}

func TestSmoother_EMAConvergence(t *testing.T) {
	starts := []SmoothingState{
		{},
		{EMA: Probabilities{0, 1, 0}, Label: Lean},
		{EMA: Probabilities{0, 0, 1}, Label: Slouch},
		{EMA: Probabilities{0.3, 0.3, 0.4}, Label: Good},
	}

	s := NewSmoother()
	for _, start := range starts {
		state := start
		now := time.Unix(0, 0)
		prev := state.EMA[ClassGood]

		// (1-alpha)^21 < 0.01
		for i := 0; i < 21; i++ {
			now = now.Add(33 * time.Millisecond)
			state, _ = s.Update(state, rawGood, now)
			if state.EMA[ClassGood] < prev {
				t.Fatalf("from %v: ema[good] decreased at step %d: %f -> %f", start.EMA, i, prev, state.EMA[ClassGood])
			}
			prev = state.EMA[ClassGood]
		}

		if 1-state.EMA[ClassGood] > 0.01 {
			t.Errorf("from %v: ema[good] = %f after 21 steps, want within 0.01 of 1", start.EMA, state.EMA[ClassGood])
		}
		if state.EMA[ClassLean] > 0.01 || state.EMA[ClassSlouch] > 0.01 {
			t.Errorf("from %v: other classes did not decay: %v", start.EMA, state.EMA)
		}
	}
}

func TestSmoother_HysteresisSuppression(t *testing.T) {
	s := NewSmoother()
	t0 := time.Unix(1000, 0)
	state := SmoothingState{EMA: Probabilities{0.5, 0, 0.5}, Label: Good}

	// Candidate flips to Slouch on the first dip frame but Good is still reported.
	state, res := s.Update(state, rawSlouch, t0)
	if res.Label != Good {
		t.Fatalf("label = %v, want Good during grace period", res.Label)
	}
	if !floatEqual(res.Confidence, state.EMA[ClassGood]) {
		t.Errorf("confidence = %f, want ema[good] %f", res.Confidence, state.EMA[ClassGood])
	}
	if !state.NotGoodSince.Equal(t0) {
		t.Errorf("excursion start = %v, want %v", state.NotGoodSince, t0)
	}
	if state.Pending != Slouch {
		t.Errorf("pending = %v, want Slouch", state.Pending)
	}

	state, res = s.Update(state, rawSlouch, t0.Add(1499*time.Millisecond))
	if res.Label != Good {
		t.Errorf("label = %v at 1499ms, want Good", res.Label)
	}
	if !state.NotGoodSince.Equal(t0) {
		t.Error("excursion timer must not restart while pending")
	}

	state, res = s.Update(state, rawSlouch, t0.Add(1500*time.Millisecond))
	if res.Label != Slouch {
		t.Errorf("label = %v at 1500ms, want Slouch", res.Label)
	}
	if state.InExcursion() {
		t.Error("timer must be cleared once the excursion is promoted")
	}
	if state.Label != Slouch {
		t.Errorf("state label = %v, want Slouch", state.Label)
	}
}

func TestSmoother_HysteresisCancellation(t *testing.T) {
	s := NewSmoother()
	t0 := time.Unix(1000, 0)
	state := SmoothingState{EMA: Probabilities{0.5, 0, 0.5}, Label: Good}

	state, _ = s.Update(state, rawSlouch, t0)
	if !state.InExcursion() {
		t.Fatal("expected excursion to start")
	}

	state, res := s.Update(state, rawGood, t0.Add(500*time.Millisecond))
	if res.Label != Good {
		t.Errorf("label = %v, want Good", res.Label)
	}
	if state.InExcursion() {
		t.Error("a Good candidate must clear the excursion timer")
	}
	if state.Pending != Unknown {
		t.Errorf("pending = %v, want Unknown", state.Pending)
	}

	// A later dip starts a fresh excursion.
	t1 := t0.Add(2 * time.Second)
	state, res = s.Update(state, Probabilities{0, 0, 1}, t1)
	state, res = s.Update(state, Probabilities{0, 0, 1}, t1.Add(100*time.Millisecond))
	if res.Label != Good {
		t.Errorf("label = %v, want Good while new excursion is pending", res.Label)
	}
	if !state.NotGoodSince.Equal(t1) {
		t.Errorf("new excursion start = %v, want %v", state.NotGoodSince, t1)
	}
}

func TestSmoother_PendingTracksCandidate(t *testing.T) {
	s := NewSmoother()
	t0 := time.Unix(0, 0)
	state := SmoothingState{EMA: Probabilities{0.5, 0.5, 0}, Label: Good}

	state, _ = s.Update(state, rawLean, t0)
	if state.Pending != Lean {
		t.Fatalf("pending = %v, want Lean", state.Pending)
	}
	for i := 1; i <= 5; i++ {
		state, _ = s.Update(state, rawSlouch, t0.Add(time.Duration(i)*100*time.Millisecond))
	}
	if state.Pending != Slouch {
		t.Errorf("pending = %v, want Slouch", state.Pending)
	}

	_, res := s.Update(state, rawSlouch, t0.Add(2*time.Second))
	if res.Label != Slouch {
		t.Errorf("promoted label = %v, want Slouch", res.Label)
	}
}

func TestSmoother_NoHysteresisOutsideGood(t *testing.T) {
	s := NewSmoother()
	now := time.Unix(0, 0)

	t.Run("from Unknown", func(t *testing.T) {
		_, res := s.Update(SmoothingState{}, rawSlouch, now)
		if res.Label != Slouch {
			t.Errorf("label = %v, want Slouch", res.Label)
		}
	})

	t.Run("from Lean to Slouch", func(t *testing.T) {
		state := SmoothingState{EMA: Probabilities{0, 0.5, 0.5}, Label: Lean}
		state, res := s.Update(state, rawSlouch, now)
		if res.Label != Slouch {
			t.Errorf("label = %v, want Slouch", res.Label)
		}
		if state.InExcursion() {
			t.Error("no excursion timer outside Good")
		}
	})
}

func TestSmoother_DoesNotMutateInput(t *testing.T) {
	s := NewSmoother()
	state := SmoothingState{EMA: Probabilities{0.5, 0, 0.5}, Label: Good}
	before := state

	s.Update(state, rawSlouch, time.Unix(0, 0))
	if state != before {
		t.Errorf("input state changed: %+v", state)
	}
}

func TestLabel_Text(t *testing.T) {
	for _, l := range []Label{Unknown, Good, Lean, Slouch} {
		text, err := l.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d) error = %v", l, err)
		}
		var back Label
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%s) error = %v", text, err)
		}
		if back != l {
			t.Errorf("got %v, want %v", back, l)
		}
	}

	var l Label
	if err := l.UnmarshalText([]byte("Sleepy")); err == nil {
		t.Error("expected error for unknown label")
	}
	if Label(9).String() != "Label(9)" {
		t.Errorf("String() = %s", Label(9).String())
	}
}

func TestClass_Label(t *testing.T) {
	if ClassGood.Label() != Good || ClassLean.Label() != Lean || ClassSlouch.Label() != Slouch {
		t.Error("class to label mapping is wrong")
	}
	if Class(7).Label() != Unknown {
		t.Error("out of range class should map to Unknown")
	}
}
