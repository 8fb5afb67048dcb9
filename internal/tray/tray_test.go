package tray

import (
	"testing"

	"github.com/ayusman/posturecheck/internal/app"
	"github.com/ayusman/posturecheck/internal/posture"
	"github.com/ayusman/posturecheck/internal/recorder"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		label posture.Label
		want  string
	}{
		{posture.Unknown, "○ Posture"},
		{posture.Good, "● Good"},
		{posture.Lean, "◐ Lean"},
		{posture.Slouch, "◒ Slouch"},
		{posture.Label(42), "○ Posture"},
	}
	for _, tt := range tests {
		if got := Title(tt.label); got != tt.want {
			t.Errorf("Title(%d) = %q, want %q", tt.label, got, tt.want)
		}
	}
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		name string
		snap app.Snapshot
		want string
	}{
		{"untrained", app.Snapshot{}, "Status: not trained"},
		{"training", app.Snapshot{Training: true, Trained: true}, "Status: training..."},
		{"recording", app.Snapshot{Recording: recorder.ModeBad}, "Status: recording bad"},
		{"trained unknown", app.Snapshot{Trained: true}, "Status: Unknown"},
		{
			"trained good",
			app.Snapshot{Trained: true, Status: app.Status{Label: posture.Good, Confidence: 0.93}},
			"Status: Good (93%)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusText(tt.snap); got != tt.want {
				t.Errorf("StatusText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSamplesText(t *testing.T) {
	snap := app.Snapshot{GoodSamples: 12, BadSamples: 3, MinSamples: 20}
	want := "Samples: 12 good / 3 bad (need 20 each)"
	if got := SamplesText(snap); got != want {
		t.Errorf("SamplesText() = %q, want %q", got, want)
	}
}

func TestUpdateBeforeReady(t *testing.T) {
	tr := New(app.NewEngine(app.EngineConfig{}), nil)
	// Must not touch systray before Run.
	tr.Update(app.Snapshot{Trained: true})
}

var _ Controls = (*app.Engine)(nil)
