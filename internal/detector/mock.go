package detector

import (
	"context"
	"io"
	"sync"
	"time"
)

// MockSource is a test implementation of the Source interface.
// It plays back a scripted list of frames.
type MockSource struct {
	frames []Frame
	index  int
	loop   bool
	err    error
	closed bool
	mu     sync.Mutex
}

// NewMockSource creates a MockSource that returns frames in order.
// When loop is true playback restarts after the last frame; otherwise Next returns io.EOF.
func NewMockSource(frames []Frame, loop bool) *MockSource {
	return &MockSource{frames: frames, loop: loop}
}

// SetError sets the error that will be returned by Next.
func (m *MockSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Next returns the next scripted frame or the configured error.
func (m *MockSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Frame{}, ErrSourceClosed
	}
	if m.err != nil {
		return Frame{}, m.err
	}
	if m.index >= len(m.frames) {
		if !m.loop || len(m.frames) == 0 {
			return Frame{}, io.EOF
		}
		m.index = 0
	}

	f := m.frames[m.index]
	m.index++
	return f, nil
}

// Close marks the source closed.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockSource) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// FrameSequence builds n frames of the same pose spaced interval apart starting at start.
func FrameSequence(pose *Pose, n int, start time.Time, interval time.Duration) []Frame {
	frames := make([]Frame, n)
	for i := range frames {
		frames[i] = Frame{Pose: pose, Timestamp: start.Add(time.Duration(i) * interval)}
	}
	return frames
}

func poseFrom(score float64, points map[Landmark]Point2D) *Pose {
	p := &Pose{Score: score}
	for _, name := range Landmarks {
		pt, ok := points[name]
		if !ok {
			continue
		}
		p.Keypoints = append(p.Keypoints, Keypoint{Name: name, X: pt.X, Y: pt.Y, Score: 0.9})
	}
	return p
}

// UprightPose returns a preset Pose of a person sitting straight, facing the camera
// in a 640x480 frame. Ears sit well above level shoulders.
func UprightPose() *Pose {
	return poseFrom(0.95, map[Landmark]Point2D{
		Nose:          {X: 320, Y: 150},
		LeftEye:       {X: 305, Y: 135},
		RightEye:      {X: 335, Y: 135},
		LeftEar:       {X: 285, Y: 145},
		RightEar:      {X: 355, Y: 145},
		LeftShoulder:  {X: 250, Y: 260},
		RightShoulder: {X: 390, Y: 260},
		LeftElbow:     {X: 235, Y: 360},
		RightElbow:    {X: 405, Y: 360},
		LeftHip:       {X: 270, Y: 450},
		RightHip:      {X: 370, Y: 450},
	})
}

// SlouchedPose returns a preset Pose with the head dropped forward towards
// rounded shoulders.
func SlouchedPose() *Pose {
	return poseFrom(0.9, map[Landmark]Point2D{
		Nose:          {X: 320, Y: 235},
		LeftEye:       {X: 306, Y: 222},
		RightEye:      {X: 334, Y: 222},
		LeftEar:       {X: 292, Y: 232},
		RightEar:      {X: 348, Y: 232},
		LeftShoulder:  {X: 262, Y: 290},
		RightShoulder: {X: 378, Y: 290},
		LeftElbow:     {X: 245, Y: 380},
		RightElbow:    {X: 395, Y: 380},
		LeftHip:       {X: 272, Y: 455},
		RightHip:      {X: 368, Y: 455},
	})
}

// LeaningPose returns a preset Pose with the torso tilted towards the right of the
// frame, so the shoulder line slopes and the head sits off-center.
func LeaningPose() *Pose {
	return poseFrom(0.9, map[Landmark]Point2D{
		Nose:          {X: 355, Y: 165},
		LeftEye:       {X: 340, Y: 150},
		RightEye:      {X: 370, Y: 152},
		LeftEar:       {X: 318, Y: 158},
		RightEar:      {X: 392, Y: 168},
		LeftShoulder:  {X: 262, Y: 250},
		RightShoulder: {X: 398, Y: 290},
		LeftElbow:     {X: 245, Y: 350},
		RightElbow:    {X: 410, Y: 390},
		LeftHip:       {X: 270, Y: 450},
		RightHip:      {X: 370, Y: 450},
	})
}
