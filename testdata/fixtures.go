// Package testdata provides pose stream fixtures for end-to-end tests.
package testdata

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ayusman/posturecheck/internal/detector"
)

//go:embed poses/*.jsonl
var posesFS embed.FS

// OpenStream returns a recorded estimator stream by file name.
func OpenStream(name string) (io.Reader, error) {
	data, err := posesFS.ReadFile("poses/" + name)
	if err != nil {
		return nil, fmt.Errorf("load stream %s: %w", name, err)
	}
	return bytes.NewReader(data), nil
}

// Segment is a run of identical poses in a generated stream.
type Segment struct {
	Pose  *detector.Pose
	Count int
}

type frameLine struct {
	Timestamp int64            `json:"timestamp"`
	Poses     []*detector.Pose `json:"poses"`
}

// Stream encodes segments as newline-delimited estimator output, one frame
// every interval starting at start. A nil Pose produces a frame with no bodies.
func Stream(start time.Time, interval time.Duration, segments ...Segment) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	ts := start
	for _, seg := range segments {
		for i := 0; i < seg.Count; i++ {
			line := frameLine{Timestamp: ts.UnixMilli(), Poses: []*detector.Pose{}}
			if seg.Pose != nil {
				line.Poses = append(line.Poses, seg.Pose)
			}
			enc.Encode(line)
			ts = ts.Add(interval)
		}
	}
	return buf.Bytes()
}
