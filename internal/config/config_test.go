package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/posturecheck/internal/classifier"
	"github.com/ayusman/posturecheck/internal/config"
	"github.com/ayusman/posturecheck/internal/posture"
	"github.com/ayusman/posturecheck/internal/recorder"
)

const fullConfig = `
log_level = "debug"
tray = true

[server]
addr = ":9000"
static_dir = "web"

[store]
path = "/tmp/posture.db"

[detector]
command = ["python3", "estimator.py", "--camera", "0"]
min_pose_score = 0.25

[recorder]
interval = "200ms"
min_samples = 30

[smoothing]
alpha = 0.5
grace_period = "2s"

[training]
epochs = 10
batch_size = 16
learning_rate = 0.005
dropout = 0.2
seed = 7

[model]
key = "desk"

[mqtt]
broker = "tcp://localhost:1883"
topic = "home/desk/posture"

[plugins]
dir = "plugins"
timeout = "2s"
cooldown = "30s"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "posture.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("server addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Model.Key != config.DefaultModelKey {
		t.Errorf("model key = %q, want %q", cfg.Model.Key, config.DefaultModelKey)
	}
	if cfg.Detector.Input != "-" {
		t.Errorf("detector input = %q, want stdin", cfg.Detector.Input)
	}
	if cfg.MQTT.Enabled() {
		t.Error("mqtt should be disabled without a broker")
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("log level = %v, want info", cfg.SlogLevel())
	}

	if got := cfg.Recorder.Collector(); got != recorder.DefaultConfig() {
		t.Errorf("collector config = %+v, want %+v", got, recorder.DefaultConfig())
	}
	smoother := cfg.Smoothing.Smoother()
	if smoother.Alpha != posture.DefaultAlpha || smoother.GracePeriod != posture.DefaultGracePeriod {
		t.Errorf("smoother = %+v", smoother)
	}
	train := cfg.Training.Train()
	def := classifier.DefaultTrainConfig()
	if train.Epochs != def.Epochs || train.BatchSize != def.BatchSize ||
		train.LearningRate != def.LearningRate || train.Dropout != def.Dropout {
		t.Errorf("train config = %+v", train)
	}
	if cfg.Plugins.TimeoutDuration() != 5*time.Second || cfg.Plugins.CooldownDuration() != time.Minute {
		t.Errorf("plugins = %+v", cfg.Plugins)
	}
}

func TestLoad_File(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, fullConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != ":9000" || cfg.Server.StaticDir != "web" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if !cfg.Tray {
		t.Error("tray should be enabled")
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", cfg.SlogLevel())
	}

	src := cfg.Detector.Source()
	if len(src.Command) != 4 || src.Command[0] != "python3" || src.MinPoseScore != 0.25 {
		t.Errorf("detector = %+v", src)
	}

	collector := cfg.Recorder.Collector()
	if collector.Interval != 200*time.Millisecond || collector.MinSamples != 30 {
		t.Errorf("collector = %+v", collector)
	}

	smoother := cfg.Smoothing.Smoother()
	if smoother.Alpha != 0.5 || smoother.GracePeriod != 2*time.Second {
		t.Errorf("smoother = %+v", smoother)
	}

	train := cfg.Training.Train()
	if train.Epochs != 10 || train.BatchSize != 16 || train.Seed != 7 || train.Dropout != 0.2 {
		t.Errorf("train = %+v", train)
	}

	if cfg.Model.Key != "desk" {
		t.Errorf("model key = %q", cfg.Model.Key)
	}
	if !cfg.MQTT.Enabled() || cfg.MQTT.Topic != "home/desk/posture" {
		t.Errorf("mqtt = %+v", cfg.MQTT)
	}
	if cfg.Plugins.CooldownDuration() != 30*time.Second {
		t.Errorf("cooldown = %v", cfg.Plugins.CooldownDuration())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(config.EnvServerAddr, ":7000")
	t.Setenv(config.EnvDetectorCommand, "estimator --fps 15")
	t.Setenv(config.EnvMQTTBroker, "tcp://broker:1883")
	t.Setenv(config.EnvTrainingSeed, "99")
	t.Setenv(config.EnvLogLevel, "warn")

	cfg, err := config.Load(writeConfig(t, fullConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != ":7000" {
		t.Errorf("server addr = %q, want env override", cfg.Server.Addr)
	}
	if strings.Join(cfg.Detector.Command, " ") != "estimator --fps 15" {
		t.Errorf("detector command = %v", cfg.Detector.Command)
	}
	if cfg.MQTT.Broker != "tcp://broker:1883" {
		t.Errorf("mqtt broker = %q", cfg.MQTT.Broker)
	}
	if cfg.Training.Seed != 99 {
		t.Errorf("seed = %d, want 99", cfg.Training.Seed)
	}
	if cfg.SlogLevel() != slog.LevelWarn {
		t.Errorf("log level = %v, want warn", cfg.SlogLevel())
	}
}

func TestLoad_DropoutDisabled(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "[training]\ndropout = 0.0\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Training.Train().Dropout; got != 0 {
		t.Errorf("dropout = %v, want 0", got)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad toml", "[server\naddr = 1", "parse config"},
		{"alpha too large", "[smoothing]\nalpha = 1.5", "smoothing"},
		{"bad grace period", "[smoothing]\ngrace_period = \"soon\"", "grace_period"},
		{"bad interval", "[recorder]\ninterval = \"-1s\"", "interval"},
		{"bad dropout", "[training]\ndropout = 1.0", "dropout"},
		{"bad log level", "log_level = \"loud\"", "log_level"},
		{"wildcard topic", "[mqtt]\nbroker = \"tcp://x:1883\"\ntopic = \"a/#\"", "wildcard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestStoreConfig_ResolvePath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	c := config.StoreConfig{Path: filepath.Join(dir, "posture.db")}

	path, err := c.ResolvePath()
	if err != nil {
		t.Fatalf("ResolvePath() error = %v", err)
	}
	if path != c.Path {
		t.Errorf("ResolvePath() = %q, want %q", path, c.Path)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("parent directory not created: %v", err)
	}
}
