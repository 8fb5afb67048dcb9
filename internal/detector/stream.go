package detector

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// ErrSourceClosed is returned by Next after Close has been called.
var ErrSourceClosed = errors.New("pose source closed")

// maxLineSize bounds a single JSON line from the estimator.
const maxLineSize = 1 << 20

// jsonFrame is the line format written by the pose estimator.
type jsonFrame struct {
	Timestamp int64      `json:"timestamp"` // Unix milliseconds
	Poses     []jsonPose `json:"poses"`
}

type jsonPose struct {
	Score     float64    `json:"score"`
	Keypoints []Keypoint `json:"keypoints"`
}

// toFrame picks the highest scoring pose. Additional bodies are ignored.
func (f jsonFrame) toFrame(minScore float64) Frame {
	frame := Frame{Timestamp: time.UnixMilli(f.Timestamp)}
	if f.Timestamp == 0 {
		frame.Timestamp = time.Now()
	}

	best := -1
	for i, p := range f.Poses {
		if p.Score < minScore {
			continue
		}
		if best < 0 || p.Score > f.Poses[best].Score {
			best = i
		}
	}
	if best >= 0 {
		p := f.Poses[best]
		frame.Pose = &Pose{Score: p.Score, Keypoints: p.Keypoints}
	}
	return frame
}

type lineResult struct {
	frame Frame
	err   error
}

// StreamSource decodes newline-delimited JSON frames from a reader.
type StreamSource struct {
	r        io.Reader
	minScore float64
	lines    chan lineResult
	done     chan struct{}
	once     sync.Once
	closeFn  func() error
}

// NewStreamSource creates a StreamSource reading from r.
// If r is an io.Closer it is closed by Close.
func NewStreamSource(r io.Reader, minScore float64) *StreamSource {
	s := &StreamSource{
		r:        r,
		minScore: minScore,
		lines:    make(chan lineResult),
		done:     make(chan struct{}),
	}
	if c, ok := r.(io.Closer); ok {
		s.closeFn = c.Close
	}
	go s.read()
	return s
}

func (s *StreamSource) read() {
	defer close(s.lines)

	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var res lineResult
		var jf jsonFrame
		if err := json.Unmarshal(line, &jf); err != nil {
			res.err = fmt.Errorf("parse frame: %w", err)
		} else {
			res.frame = jf.toFrame(s.minScore)
		}

		select {
		case s.lines <- res:
		case <-s.done:
			return
		}
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	select {
	case s.lines <- lineResult{err: err}:
	case <-s.done:
	}
}

// Next returns the next decoded frame.
// A malformed line yields an error but does not end the stream.
func (s *StreamSource) Next(ctx context.Context) (Frame, error) {
	select {
	case <-s.done:
		return Frame{}, ErrSourceClosed
	default:
	}

	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-s.done:
		return Frame{}, ErrSourceClosed
	case res, ok := <-s.lines:
		if !ok {
			return Frame{}, io.EOF
		}
		return res.frame, res.err
	}
}

// Close stops reading and closes the underlying reader if it is closable.
func (s *StreamSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		if s.closeFn != nil {
			err = s.closeFn()
		}
	})
	return err
}

// ProcessSource runs an external pose estimator and reads its frames from stdout.
type ProcessSource struct {
	*StreamSource
	cmd *exec.Cmd
	mu  sync.Mutex
}

// NewProcessSource starts the estimator command.
// The process is stopped when ctx is cancelled or Close is called.
func NewProcessSource(ctx context.Context, config Config) (*ProcessSource, error) {
	if len(config.Command) == 0 {
		return nil, fmt.Errorf("pose estimator command not configured")
	}

	cmd := exec.CommandContext(ctx, config.Command[0], config.Command[1:]...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	// Estimator diagnostics go to our stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start pose estimator: %w", err)
	}

	return &ProcessSource{
		StreamSource: NewStreamSource(stdout, config.MinPoseScore),
		cmd:          cmd,
	}, nil
}

// Close stops reading and waits for the estimator process to exit.
func (p *ProcessSource) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil {
		return nil
	}

	p.StreamSource.Close()
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	err := p.cmd.Wait()
	p.cmd = nil

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Killed on purpose
		return nil
	}
	return err
}

// Open returns the Source described by config: an estimator process when Command is
// set, otherwise a recorded stream from Input.
func Open(ctx context.Context, config Config) (Source, error) {
	if len(config.Command) > 0 {
		return NewProcessSource(ctx, config)
	}

	if config.Input == "" || config.Input == "-" {
		return NewStreamSource(io.NopCloser(os.Stdin), config.MinPoseScore), nil
	}

	f, err := os.Open(config.Input)
	if err != nil {
		return nil, fmt.Errorf("open pose input: %w", err)
	}
	return NewStreamSource(f, config.MinPoseScore), nil
}
