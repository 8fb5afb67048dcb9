package posture

import (
	"math"
	"testing"

	"github.com/ayusman/posturecheck/internal/detector"
)

const epsilon = 1e-2

func floatEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

// squarePose builds a pose with shoulders 10 units apart on the x axis.
// The left ear is straight above the left shoulder and the left hip straight below.
func squarePose() *detector.Pose {
	p := &detector.Pose{Score: 0.9}
	p.Set(detector.LeftShoulder, 0, 0, 0.9)
	p.Set(detector.RightShoulder, 10, 0, 0.9)
	p.Set(detector.LeftEar, 0, -10, 0.9)
	p.Set(detector.LeftHip, 0, 10, 0.9)
	p.Set(detector.RightEar, 10, -10, 0.9)
	p.Set(detector.RightHip, 20, 0, 0.9)
	p.Set(detector.Nose, 5, -12, 0.9)
	return p
}

func TestExtractFeatures_Geometry(t *testing.T) {
	f, ok := ExtractFeatures(squarePose())
	if !ok {
		t.Fatal("expected features for a fully confident pose")
	}

	tests := []struct {
		name  string
		index int
		want  float64
	}{
		{"neck tilt left is straight", NeckTiltLeft, 180},
		{"neck tilt right is square", NeckTiltRight, 90},
		{"level shoulders", ShoulderSlope, 0},
		{"left ear one shoulder width away", EarToShoulderLeft, 1},
		{"right ear one shoulder width away", EarToShoulderRight, 1},
		{"asymmetry", TiltAsymmetry, 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !floatEqual(f[tt.index], tt.want) {
				t.Errorf("feature %d = %f, want %f", tt.index, f[tt.index], tt.want)
			}
		})
	}
}

func TestExtractFeatures_ShoulderSlope(t *testing.T) {
	tests := []struct {
		name   string
		rx, ry float64
		want   float64
	}{
		{"rising to the right in image space", 10, 10, 45},
		{"falling", 10, -10, -45},
		{"reversed shoulders", -10, 0, 180},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := squarePose()
			p.Set(detector.RightShoulder, tt.rx, tt.ry, 0.9)
			f, ok := ExtractFeatures(p)
			if !ok {
				t.Fatal("expected features")
			}
			if !floatEqual(f[ShoulderSlope], tt.want) {
				t.Errorf("slope = %f, want %f", f[ShoulderSlope], tt.want)
			}
		})
	}
}

func TestExtractFeatures_Deterministic(t *testing.T) {
	pose := detector.SlouchedPose()
	first, ok := ExtractFeatures(pose)
	if !ok {
		t.Fatal("expected features for preset pose")
	}
	for i := 0; i < 10; i++ {
		again, _ := ExtractFeatures(pose)
		if again != first {
			t.Fatalf("extraction %d = %v, want %v", i, again, first)
		}
	}
}

func TestExtractFeatures_ConfidenceGating(t *testing.T) {
	required := []detector.Landmark{
		detector.LeftShoulder, detector.RightShoulder,
		detector.LeftHip, detector.RightHip,
	}

	for _, name := range required {
		for _, score := range []float64{0, 0.1, 0.29, 0.3} {
			p := squarePose()
			k, _ := p.Keypoint(name)
			p.Set(name, k.X, k.Y, score)
			if _, ok := ExtractFeatures(p); ok {
				t.Errorf("%s at score %.2f: expected no features", name, score)
			}
		}
	}

	t.Run("missing ear falls back to nose", func(t *testing.T) {
		p := squarePose()
		p.Keypoints = without(p.Keypoints, detector.LeftEar)
		f, ok := ExtractFeatures(p)
		if !ok {
			t.Fatal("expected nose to stand in for a missing ear")
		}
		nose := detector.Point2D{X: 5, Y: -12}
		want := detector.Distance(nose, detector.Point2D{}) / (10 + 1e-6)
		if !floatEqual(f[EarToShoulderLeft], want) {
			t.Errorf("ear to shoulder left = %f, want %f", f[EarToShoulderLeft], want)
		}
	})

	t.Run("weak ear is not replaced", func(t *testing.T) {
		for _, ear := range []detector.Landmark{detector.LeftEar, detector.RightEar} {
			p := squarePose()
			k, _ := p.Keypoint(ear)
			p.Set(ear, k.X, k.Y, 0.1)
			if _, ok := ExtractFeatures(p); ok {
				t.Errorf("%s at score 0.10 with a confident nose: expected no features", ear)
			}
		}
	})

	t.Run("missing ear and weak nose", func(t *testing.T) {
		p := squarePose()
		p.Keypoints = without(p.Keypoints, detector.RightEar)
		p.Set(detector.Nose, 5, -12, 0.2)
		if _, ok := ExtractFeatures(p); ok {
			t.Error("expected no features without ear or nose")
		}
	})

	t.Run("missing shoulder", func(t *testing.T) {
		p := squarePose()
		p.Keypoints = without(p.Keypoints, detector.LeftShoulder)
		if _, ok := ExtractFeatures(p); ok {
			t.Error("expected no features without left shoulder")
		}
	})

	t.Run("nil pose", func(t *testing.T) {
		if _, ok := ExtractFeatures(nil); ok {
			t.Error("expected no features for nil pose")
		}
	})

	t.Run("just above threshold", func(t *testing.T) {
		p := squarePose()
		for _, k := range p.Keypoints {
			p.Set(k.Name, k.X, k.Y, 0.31)
		}
		if _, ok := ExtractFeatures(p); !ok {
			t.Error("expected features at score 0.31")
		}
	})
}

func TestExtractFeatures_CoincidentShoulders(t *testing.T) {
	p := squarePose()
	p.Set(detector.RightShoulder, 0, 0, 0.9)
	f, ok := ExtractFeatures(p)
	if !ok {
		t.Fatal("expected features")
	}
	for i, v := range f {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("feature %d is not finite: %f", i, v)
		}
	}
}

func TestExtractFeatures_PresetsDiffer(t *testing.T) {
	upright, ok1 := ExtractFeatures(detector.UprightPose())
	slouched, ok2 := ExtractFeatures(detector.SlouchedPose())
	if !ok1 || !ok2 {
		t.Fatal("expected features for presets")
	}
	if slouched[EarToShoulderLeft] >= upright[EarToShoulderLeft] {
		t.Errorf("slouched ear-to-shoulder %f should be below upright %f",
			slouched[EarToShoulderLeft], upright[EarToShoulderLeft])
	}
}

func without(kps []detector.Keypoint, name detector.Landmark) []detector.Keypoint {
	out := make([]detector.Keypoint, 0, len(kps))
	for _, k := range kps {
		if k.Name != name {
			out = append(out, k)
		}
	}
	return out
}
