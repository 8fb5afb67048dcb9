// Package detector provides body keypoint types and pose sources for posture inference.
package detector

import "math"

// Landmark names a body keypoint using the COCO-17 convention shared by MoveNet and
// BlazePose front ends.
type Landmark string

// Body landmark names.
const (
	Nose          Landmark = "nose"
	LeftEye       Landmark = "left_eye"
	RightEye      Landmark = "right_eye"
	LeftEar       Landmark = "left_ear"
	RightEar      Landmark = "right_ear"
	LeftShoulder  Landmark = "left_shoulder"
	RightShoulder Landmark = "right_shoulder"
	LeftElbow     Landmark = "left_elbow"
	RightElbow    Landmark = "right_elbow"
	LeftWrist     Landmark = "left_wrist"
	RightWrist    Landmark = "right_wrist"
	LeftHip       Landmark = "left_hip"
	RightHip      Landmark = "right_hip"
	LeftKnee      Landmark = "left_knee"
	RightKnee     Landmark = "right_knee"
	LeftAnkle     Landmark = "left_ankle"
	RightAnkle    Landmark = "right_ankle"
)

// Landmarks lists every known landmark in detector output order.
var Landmarks = []Landmark{
	Nose, LeftEye, RightEye, LeftEar, RightEar,
	LeftShoulder, RightShoulder, LeftElbow, RightElbow, LeftWrist, RightWrist,
	LeftHip, RightHip, LeftKnee, RightKnee, LeftAnkle, RightAnkle,
}

// Point2D is a position in frame pixel space.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns the vector from o to p.
func (p Point2D) Sub(o Point2D) Point2D {
	return Point2D{X: p.X - o.X, Y: p.Y - o.Y}
}

// Dot returns the dot product of p and o.
func (p Point2D) Dot(o Point2D) float64 {
	return p.X*o.X + p.Y*o.Y
}

// Norm returns the Euclidean length of p.
func (p Point2D) Norm() float64 {
	return math.Hypot(p.X, p.Y)
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point2D) float64 {
	return a.Sub(b).Norm()
}

// Keypoint is a single detected landmark with its detector confidence.
type Keypoint struct {
	Name  Landmark `json:"name"`
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Score float64  `json:"score"` // 0.0-1.0
}

// Point returns the keypoint position.
func (k Keypoint) Point() Point2D {
	return Point2D{X: k.X, Y: k.Y}
}

// Pose is the set of keypoints for one detected body.
type Pose struct {
	Keypoints []Keypoint `json:"keypoints"`
	Score     float64    `json:"score"`
}

// Keypoint returns the keypoint with the given name.
// The second return value is false if the detector did not report it.
func (p *Pose) Keypoint(name Landmark) (Keypoint, bool) {
	if p == nil {
		return Keypoint{}, false
	}
	for _, k := range p.Keypoints {
		if k.Name == name {
			return k, true
		}
	}
	return Keypoint{}, false
}

// Set replaces or appends the keypoint with the given name.
func (p *Pose) Set(name Landmark, x, y, score float64) {
	for i := range p.Keypoints {
		if p.Keypoints[i].Name == name {
			p.Keypoints[i] = Keypoint{Name: name, X: x, Y: y, Score: score}
			return
		}
	}
	p.Keypoints = append(p.Keypoints, Keypoint{Name: name, X: x, Y: y, Score: score})
}

// Clone returns a deep copy of the pose.
func (p *Pose) Clone() *Pose {
	if p == nil {
		return nil
	}
	c := &Pose{Score: p.Score, Keypoints: make([]Keypoint, len(p.Keypoints))}
	copy(c.Keypoints, p.Keypoints)
	return c
}
