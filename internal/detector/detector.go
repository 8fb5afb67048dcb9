package detector

import (
	"context"
	"time"
)

// Frame is one processed video frame as reported by the pose estimator.
// Pose is nil when no body was detected.
type Frame struct {
	Pose      *Pose
	Timestamp time.Time
}

// Source defines the interface for pose estimator implementations.
type Source interface {
	// Next blocks until the next frame is available.
	// Returns io.EOF when the source is exhausted.
	Next(ctx context.Context) (Frame, error)

	// Close releases any resources held by the source.
	Close() error
}

// Config holds configuration options for the pose source.
type Config struct {
	// Command starts an external pose estimator that writes JSON lines to stdout.
	Command []string

	// Input is a file of recorded JSON lines, used when Command is empty.
	// "-" reads standard input.
	Input string

	// MinPoseScore drops whole-body detections below this score (0.0-1.0).
	MinPoseScore float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Input:        "-",
		MinPoseScore: 0.1,
	}
}
