package plugin

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/posturecheck/internal/app"
	"github.com/ayusman/posturecheck/internal/posture"
)

// DefaultCooldown is the minimum time between two alerts.
const DefaultCooldown = time.Minute

// AlerterConfig configures an Alerter.
type AlerterConfig struct {
	Manager  *Manager
	Executor *Executor
	Cooldown time.Duration
	Logger   *slog.Logger
}

// Alerter runs every plugin declaring ActionAlert when the stabilized label
// moves from Good to Lean or Slouch. Unknown frames in between are ignored.
// Alerts are rate limited by Cooldown, measured on frame timestamps.
type Alerter struct {
	manager  *Manager
	executor *Executor
	cooldown time.Duration
	log      *slog.Logger

	mu    sync.Mutex
	last  posture.Label
	fired time.Time
	wg    sync.WaitGroup
}

// NewAlerter creates an Alerter.
func NewAlerter(config AlerterConfig) *Alerter {
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultCooldown
	}
	if config.Executor == nil {
		config.Executor = NewExecutor(DefaultTimeout)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Alerter{
		manager:  config.Manager,
		executor: config.Executor,
		cooldown: config.Cooldown,
		log:      config.Logger,
	}
}

// Handle inspects snap and starts an alert in the background when due. It is
// meant to be registered with Engine.OnStatus.
func (a *Alerter) Handle(snap app.Snapshot) {
	a.mu.Lock()
	prev := a.last
	if snap.Label != posture.Unknown {
		a.last = snap.Label
	}
	due := prev == posture.Good && degraded(snap.Label) &&
		(a.fired.IsZero() || snap.Timestamp.Sub(a.fired) >= a.cooldown)
	if due {
		a.fired = snap.Timestamp
	}
	a.mu.Unlock()

	if !due {
		return
	}

	req := Request{
		Action:     ActionAlert,
		Label:      snap.Label.String(),
		Previous:   prev.String(),
		Confidence: snap.Confidence,
		Timestamp:  snap.Timestamp,
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.Alert(context.Background(), req)
	}()
}

// Alert runs req against every alert plugin and returns how many succeeded.
func (a *Alerter) Alert(ctx context.Context, req Request) int {
	ok := 0
	for _, p := range a.manager.WithAction(ActionAlert) {
		r := req
		resp, err := a.executor.Execute(ctx, p, &r)
		switch {
		case err != nil:
			a.log.Warn("alert plugin failed", "plugin", p.Manifest.Name, "error", err)
		case !resp.Success:
			a.log.Warn("alert plugin reported failure", "plugin", p.Manifest.Name, "error", resp.Error)
		default:
			a.log.Info("alert sent", "plugin", p.Manifest.Name, "label", req.Label)
			ok++
		}
	}
	return ok
}

// Wait blocks until in-flight alerts finish.
func (a *Alerter) Wait() {
	a.wg.Wait()
}

func degraded(l posture.Label) bool {
	return l == posture.Lean || l == posture.Slouch
}
