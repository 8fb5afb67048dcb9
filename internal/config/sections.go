package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/posturecheck/internal/classifier"
	"github.com/ayusman/posturecheck/internal/detector"
	"github.com/ayusman/posturecheck/internal/posture"
	"github.com/ayusman/posturecheck/internal/recorder"
)

const (
	EnvServerAddr      = "POSTURE_SERVER_ADDR"
	EnvServerStaticDir = "POSTURE_SERVER_STATIC_DIR"
	EnvStorePath       = "POSTURE_STORE_PATH"
	EnvDetectorCommand = "POSTURE_DETECTOR_COMMAND"
	EnvDetectorInput   = "POSTURE_DETECTOR_INPUT"
	EnvTrainingSeed    = "POSTURE_TRAINING_SEED"
	EnvModelKey        = "POSTURE_MODEL_KEY"
	EnvMQTTBroker      = "POSTURE_MQTT_BROKER"
	EnvMQTTTopic       = "POSTURE_MQTT_TOPIC"
	EnvPluginsDir      = "POSTURE_PLUGINS_DIR"
)

// DefaultModelKey is the storage key of the trained model.
const DefaultModelKey = "posture-check"

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Addr      string `toml:"addr"`
	StaticDir string `toml:"static_dir"`
}

// Finalize applies defaults and environment variable overrides.
func (c *ServerConfig) Finalize() error {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if v := os.Getenv(EnvServerAddr); v != "" {
		c.Addr = v
	}
	if v := os.Getenv(EnvServerStaticDir); v != "" {
		c.StaticDir = v
	}
	return nil
}

// StoreConfig holds the SQLite database location. An empty Path means the
// per-user data directory chosen by the service.
type StoreConfig struct {
	Path string `toml:"path"`
}

// Finalize applies environment variable overrides.
func (c *StoreConfig) Finalize() error {
	if v := os.Getenv(EnvStorePath); v != "" {
		c.Path = v
	}
	return nil
}

// DataDirName is the per-user directory, under the home directory, holding
// the default database.
const DataDirName = ".posturecheck"

// ResolvePath returns the database path, creating its parent directory.
func (c *StoreConfig) ResolvePath() (string, error) {
	path := c.Path
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("home directory: %w", err)
		}
		path = filepath.Join(home, DataDirName, "posture.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return path, nil
}

// DetectorConfig selects where poses come from.
type DetectorConfig struct {
	Command      []string `toml:"command"`
	Input        string   `toml:"input"`
	MinPoseScore float64  `toml:"min_pose_score"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *DetectorConfig) Finalize() error {
	def := detector.DefaultConfig()
	if c.Input == "" {
		c.Input = def.Input
	}
	if c.MinPoseScore == 0 {
		c.MinPoseScore = def.MinPoseScore
	}
	if v := os.Getenv(EnvDetectorCommand); v != "" {
		c.Command = strings.Fields(v)
	}
	if v := os.Getenv(EnvDetectorInput); v != "" {
		c.Input = v
	}
	if c.MinPoseScore < 0 || c.MinPoseScore > 1 {
		return fmt.Errorf("invalid min_pose_score: %v", c.MinPoseScore)
	}
	return nil
}

// Source returns the detector configuration.
func (c *DetectorConfig) Source() detector.Config {
	return detector.Config{
		Command:      append([]string(nil), c.Command...),
		Input:        c.Input,
		MinPoseScore: c.MinPoseScore,
	}
}

// RecorderConfig holds sample collection parameters.
type RecorderConfig struct {
	Interval   string `toml:"interval"`
	MinSamples int    `toml:"min_samples"`
}

// Finalize applies defaults and validation.
func (c *RecorderConfig) Finalize() error {
	if c.Interval == "" {
		c.Interval = recorder.DefaultInterval.String()
	}
	if c.MinSamples == 0 {
		c.MinSamples = recorder.DefaultMinSamples
	}
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return fmt.Errorf("invalid interval: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid interval: %s", c.Interval)
	}
	if c.MinSamples < 1 {
		return fmt.Errorf("invalid min_samples: %d", c.MinSamples)
	}
	return nil
}

// Collector returns the collector configuration.
func (c *RecorderConfig) Collector() recorder.Config {
	d, _ := time.ParseDuration(c.Interval)
	return recorder.Config{Interval: d, MinSamples: c.MinSamples}
}

// SmoothingConfig holds temporal smoothing parameters.
type SmoothingConfig struct {
	Alpha       float64 `toml:"alpha"`
	GracePeriod string  `toml:"grace_period"`
}

// Finalize applies defaults and validation.
func (c *SmoothingConfig) Finalize() error {
	if c.Alpha == 0 {
		c.Alpha = posture.DefaultAlpha
	}
	if c.GracePeriod == "" {
		c.GracePeriod = posture.DefaultGracePeriod.String()
	}
	if c.Alpha <= 0 || c.Alpha > 1 {
		return fmt.Errorf("invalid alpha: %v", c.Alpha)
	}
	d, err := time.ParseDuration(c.GracePeriod)
	if err != nil {
		return fmt.Errorf("invalid grace_period: %w", err)
	}
	if d < 0 {
		return fmt.Errorf("invalid grace_period: %s", c.GracePeriod)
	}
	return nil
}

// Smoother returns the configured smoother.
func (c *SmoothingConfig) Smoother() posture.Smoother {
	d, _ := time.ParseDuration(c.GracePeriod)
	return posture.Smoother{Alpha: c.Alpha, GracePeriod: d}
}

// TrainingConfig holds classifier training parameters. Dropout is a pointer so an
// explicit 0 disables dropout; an unset value selects the default.
type TrainingConfig struct {
	Epochs       int      `toml:"epochs"`
	BatchSize    int      `toml:"batch_size"`
	LearningRate float64  `toml:"learning_rate"`
	Dropout      *float64 `toml:"dropout"`
	Seed         uint64   `toml:"seed"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *TrainingConfig) Finalize() error {
	def := classifier.DefaultTrainConfig()
	if c.Epochs == 0 {
		c.Epochs = def.Epochs
	}
	if c.BatchSize == 0 {
		c.BatchSize = def.BatchSize
	}
	if c.LearningRate == 0 {
		c.LearningRate = def.LearningRate
	}
	if c.Dropout == nil {
		dropout := def.Dropout
		c.Dropout = &dropout
	}
	if v := os.Getenv(EnvTrainingSeed); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.Seed = seed
		}
	}

	if c.Epochs < 1 {
		return fmt.Errorf("invalid epochs: %d", c.Epochs)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("invalid batch_size: %d", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("invalid learning_rate: %v", c.LearningRate)
	}
	if *c.Dropout < 0 || *c.Dropout >= 1 {
		return fmt.Errorf("invalid dropout: %v", *c.Dropout)
	}
	return nil
}

// Train returns the classifier training options.
func (c *TrainingConfig) Train() classifier.TrainConfig {
	return classifier.TrainConfig{
		Epochs:       c.Epochs,
		BatchSize:    c.BatchSize,
		LearningRate: c.LearningRate,
		Dropout:      *c.Dropout,
		Seed:         c.Seed,
	}
}

// ModelConfig names the stored model.
type ModelConfig struct {
	Key string `toml:"key"`
}

// Finalize applies defaults and environment variable overrides.
func (c *ModelConfig) Finalize() error {
	if c.Key == "" {
		c.Key = DefaultModelKey
	}
	if v := os.Getenv(EnvModelKey); v != "" {
		c.Key = v
	}
	return nil
}

// MQTTConfig configures the status publisher. An empty Broker disables it.
type MQTTConfig struct {
	Broker   string `toml:"broker"`
	Topic    string `toml:"topic"`
	ClientID string `toml:"client_id"`
}

// Enabled reports whether a broker is configured.
func (c *MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

// Finalize applies defaults and environment variable overrides.
func (c *MQTTConfig) Finalize() error {
	if c.Topic == "" {
		c.Topic = "posture/status"
	}
	if v := os.Getenv(EnvMQTTBroker); v != "" {
		c.Broker = v
	}
	if v := os.Getenv(EnvMQTTTopic); v != "" {
		c.Topic = v
	}
	if c.Enabled() && strings.ContainsAny(c.Topic, "+#") {
		return fmt.Errorf("invalid topic: %q contains a wildcard", c.Topic)
	}
	return nil
}

// PluginsConfig configures alert plugins. An empty Dir disables them.
type PluginsConfig struct {
	Dir      string `toml:"dir"`
	Timeout  string `toml:"timeout"`
	Cooldown string `toml:"cooldown"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *PluginsConfig) Finalize() error {
	if c.Timeout == "" {
		c.Timeout = "5s"
	}
	if c.Cooldown == "" {
		c.Cooldown = "1m"
	}
	if v := os.Getenv(EnvPluginsDir); v != "" {
		c.Dir = v
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Cooldown); err != nil {
		return fmt.Errorf("invalid cooldown: %w", err)
	}
	return nil
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *PluginsConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// CooldownDuration returns Cooldown as a time.Duration.
func (c *PluginsConfig) CooldownDuration() time.Duration {
	d, _ := time.ParseDuration(c.Cooldown)
	return d
}
