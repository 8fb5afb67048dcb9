package posture

import (
	"math"

	"github.com/ayusman/posturecheck/internal/detector"
)

// MinConfidence is the keypoint score a required landmark must exceed.
const MinConfidence = 0.3

// geomEpsilon keeps norms away from zero when points coincide.
const geomEpsilon = 1e-6

// ExtractFeatures computes the posture feature vector for a pose.
// It returns false when the pose is nil or any required landmark is missing or not
// confident enough; that is the normal "cannot observe posture" outcome.
//
// Required landmarks are both shoulders, both hips and both ears. An ear that is
// missing or below MinConfidence is replaced by the nose.
func ExtractFeatures(pose *detector.Pose) (Features, bool) {
	if pose == nil {
		return Features{}, false
	}

	ls, ok1 := confident(pose, detector.LeftShoulder)
	rs, ok2 := confident(pose, detector.RightShoulder)
	lh, ok3 := confident(pose, detector.LeftHip)
	rh, ok4 := confident(pose, detector.RightHip)
	le, ok5 := earOrNose(pose, detector.LeftEar)
	re, ok6 := earOrNose(pose, detector.RightEar)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
		return Features{}, false
	}

	shoulderWidth := detector.Distance(rs, ls) + geomEpsilon

	var f Features
	f[NeckTiltLeft] = angleAt(ls, le, lh)
	f[NeckTiltRight] = angleAt(rs, re, rh)
	f[ShoulderSlope] = degrees(math.Atan2(rs.Y-ls.Y, rs.X-ls.X))
	if f[ShoulderSlope] == -180 {
		f[ShoulderSlope] = 180
	}
	f[EarToShoulderLeft] = detector.Distance(le, ls) / shoulderWidth
	f[EarToShoulderRight] = detector.Distance(re, rs) / shoulderWidth
	f[TiltAsymmetry] = math.Abs(f[NeckTiltLeft] - f[NeckTiltRight])
	return f, true
}

func confident(pose *detector.Pose, name detector.Landmark) (detector.Point2D, bool) {
	k, ok := pose.Keypoint(name)
	if !ok || k.Score <= MinConfidence {
		return detector.Point2D{}, false
	}
	return k.Point(), true
}

// earOrNose resolves an ear, using the nose only when the ear was not detected.
// A detected but weak ear fails the confidence gate.
func earOrNose(pose *detector.Pose, ear detector.Landmark) (detector.Point2D, bool) {
	if _, ok := pose.Keypoint(ear); ok {
		return confident(pose, ear)
	}
	return confident(pose, detector.Nose)
}

// angleAt returns the angle in degrees at vertex between the rays to a and b.
func angleAt(vertex, a, b detector.Point2D) float64 {
	u := a.Sub(vertex)
	w := b.Sub(vertex)
	cos := u.Dot(w) / (u.Norm()*w.Norm() + geomEpsilon)
	return degrees(math.Acos(math.Max(-1, math.Min(1, cos))))
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
