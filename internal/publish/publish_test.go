package publish

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ayusman/posturecheck/internal/app"
	"github.com/ayusman/posturecheck/internal/posture"
)

type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu           sync.Mutex
	messages     []published
	disconnected bool
	err          error
}

func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	var b []byte
	switch v := payload.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	}
	c.messages = append(c.messages, published{topic: topic, retained: retained, payload: b})
	return doneToken{err: c.err}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

func (c *fakeClient) sent() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.messages...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func snapshot(label posture.Label, confidence float64) app.Snapshot {
	return app.Snapshot{Status: app.Status{
		Label:      label,
		Confidence: confidence,
		Timestamp:  time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
	}}
}

func TestEncode(t *testing.T) {
	payload, err := Encode(snapshot(posture.Slouch, 0.875).Status)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	want := `{"label":"Slouch","confidence":0.875,"timestamp":"2024-03-01T09:30:00Z"}`
	if string(payload) != want {
		t.Errorf("Encode() = %s, want %s", payload, want)
	}

	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if msg.Label != posture.Slouch {
		t.Errorf("decoded label = %v", msg.Label)
	}
}

func TestPublisher_Handle(t *testing.T) {
	client := &fakeClient{}
	p := New(client, "desk/posture", discardLogger())

	p.Handle(snapshot(posture.Unknown, 0))
	p.Handle(snapshot(posture.Unknown, 0))
	p.Handle(snapshot(posture.Good, 0.9))
	p.Handle(snapshot(posture.Good, 0.95))
	p.Handle(snapshot(posture.Lean, 0.7))

	msgs := client.sent()
	if len(msgs) != 3 {
		t.Fatalf("published %d messages, want 3 (one per label change)", len(msgs))
	}
	for _, m := range msgs {
		if m.topic != "desk/posture" || !m.retained {
			t.Errorf("message %+v should be retained on desk/posture", m)
		}
	}

	var last Message
	json.Unmarshal(msgs[2].payload, &last)
	if last.Label != posture.Lean || last.Confidence != 0.7 {
		t.Errorf("last message = %+v", last)
	}
}

func TestPublisher_HandleErrorDoesNotBlock(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	p := New(client, "desk/posture", discardLogger())

	p.Handle(snapshot(posture.Good, 1))
	if len(client.sent()) != 1 {
		t.Error("expected publish attempt despite error")
	}
}

func TestPublisher_Close(t *testing.T) {
	client := &fakeClient{}
	p := New(client, "desk/posture", discardLogger())
	p.Close()

	msgs := client.sent()
	if len(msgs) != 1 || msgs[0].topic != "desk/posture/availability" || string(msgs[0].payload) != "offline" {
		t.Errorf("messages = %+v, want offline marker", msgs)
	}
	if !client.disconnected {
		t.Error("client should be disconnected")
	}
}
