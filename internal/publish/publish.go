// Package publish mirrors the stabilized posture label to an MQTT broker.
package publish

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/ayusman/posturecheck/internal/app"
	"github.com/ayusman/posturecheck/internal/posture"
)

const (
	qos            = 1
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	disconnectWait = 250 // milliseconds

	online  = "online"
	offline = "offline"
)

// Client is the subset of mqtt.Client the publisher needs.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Config configures the broker connection.
type Config struct {
	Broker   string
	Topic    string
	ClientID string
	Logger   *slog.Logger
}

// Message is the JSON payload published on every label change.
type Message struct {
	Label      posture.Label `json:"label"`
	Confidence float64       `json:"confidence"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Publisher publishes label changes. Handle is safe to register with
// Engine.OnStatus: it never waits on the broker.
type Publisher struct {
	client Client
	topic  string
	log    *slog.Logger

	mu    sync.Mutex
	last  posture.Label
	valid bool
}

// AvailabilityTopic returns the topic carrying the online/offline marker.
func AvailabilityTopic(topic string) string {
	return topic + "/availability"
}

// Connect dials the broker and returns a publisher for config.Topic. The broker
// marks the service offline through a last-will message if the connection drops.
func Connect(config Config) (*Publisher, error) {
	if config.ClientID == "" {
		config.ClientID = "posture-" + uuid.NewString()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetWill(AvailabilityTopic(config.Topic), offline, qos, true)
	opts.OnConnect = func(c mqtt.Client) {
		logger.Info("mqtt connected", "broker", config.Broker, "client_id", config.ClientID)
		c.Publish(AvailabilityTopic(config.Topic), qos, true, online)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect %s: timed out", config.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", config.Broker, err)
	}

	return New(client, config.Topic, logger), nil
}

// New creates a publisher on an already connected client.
func New(client Client, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{client: client, topic: topic, log: logger}
}

// Encode returns the payload for status.
func Encode(status app.Status) ([]byte, error) {
	return json.Marshal(Message{
		Label:      status.Label,
		Confidence: status.Confidence,
		Timestamp:  status.Timestamp.UTC(),
	})
}

// Handle publishes snap's status when its label differs from the last one
// published. The message is retained so late subscribers see the current label.
func (p *Publisher) Handle(snap app.Snapshot) {
	p.mu.Lock()
	if p.valid && p.last == snap.Label {
		p.mu.Unlock()
		return
	}
	p.last, p.valid = snap.Label, true
	p.mu.Unlock()

	payload, err := Encode(snap.Status)
	if err != nil {
		p.log.Error("encode status", "error", err)
		return
	}

	token := p.client.Publish(p.topic, qos, true, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			p.log.Warn("mqtt publish timed out", "topic", p.topic)
			return
		}
		if err := token.Error(); err != nil {
			p.log.Warn("mqtt publish", "topic", p.topic, "error", err)
		}
	}()
}

// Close marks the service offline and disconnects.
func (p *Publisher) Close() {
	token := p.client.Publish(AvailabilityTopic(p.topic), qos, true, offline)
	token.WaitTimeout(publishTimeout)
	p.client.Disconnect(disconnectWait)
}
