// Package tray provides a system tray interface for the posture service.
package tray

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/posturecheck/internal/app"
	"github.com/ayusman/posturecheck/internal/classifier"
	"github.com/ayusman/posturecheck/internal/posture"
	"github.com/ayusman/posturecheck/internal/recorder"
)

// Controls is the engine surface driven from the menu. *app.Engine implements it.
type Controls interface {
	Snapshot() app.Snapshot
	StartGood() recorder.Transition
	StartBad() recorder.Transition
	Stop() recorder.Transition
	Train(ctx context.Context) (classifier.TrainResult, error)
	Save(ctx context.Context) error
	Load(ctx context.Context) error
	Reset()
}

// Tray represents the system tray application.
type Tray struct {
	controls   Controls
	log        *slog.Logger
	onSettings func()
	onQuit     func()
	mu         sync.RWMutex
	ready      bool

	// Menu items stored for later updates
	menuStatus  *systray.MenuItem
	menuSamples *systray.MenuItem
	menuGood    *systray.MenuItem
	menuBad     *systray.MenuItem
	menuStop    *systray.MenuItem
	menuTrain   *systray.MenuItem
	menuSave    *systray.MenuItem
}

// New creates a new Tray driving controls.
func New(controls Controls, logger *slog.Logger) *Tray {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tray{controls: controls, log: logger}
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called. It must run on the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit closes the tray.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle(Title(posture.Unknown))
	systray.SetTooltip("Posture check")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem("Status: Unknown", "Current posture")
	t.menuStatus.Disable()
	t.menuSamples = systray.AddMenuItem("Samples: 0 good / 0 bad", "Recorded samples")
	t.menuSamples.Disable()
	systray.AddSeparator()

	t.menuGood = systray.AddMenuItem("Record Good Posture", "Record samples of good posture")
	t.menuBad = systray.AddMenuItem("Record Bad Posture", "Record samples of bad posture")
	t.menuStop = systray.AddMenuItem("Stop Recording", "Stop recording samples")
	systray.AddSeparator()

	t.menuTrain = systray.AddMenuItem("Train Model", "Train on the recorded samples")
	t.menuSave = systray.AddMenuItem("Save Model", "Save the trained model")
	menuLoad := systray.AddMenuItem("Load Model", "Load the saved model")
	menuReset := systray.AddMenuItem("Reset", "Discard samples and model")
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	menuQuit := systray.AddMenuItem("Quit", "Quit posture check")
	t.ready = true
	t.mu.Unlock()

	t.Update(t.controls.Snapshot())

	go func() {
		for {
			select {
			case <-t.menuGood.ClickedCh:
				t.controls.StartGood()
			case <-t.menuBad.ClickedCh:
				t.controls.StartBad()
			case <-t.menuStop.ClickedCh:
				t.controls.Stop()
			case <-t.menuTrain.ClickedCh:
				go t.train()
			case <-t.menuSave.ClickedCh:
				t.persist("save", t.controls.Save)
			case <-menuLoad.ClickedCh:
				t.persist("load", t.controls.Load)
			case <-menuReset.ClickedCh:
				t.controls.Reset()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) train() {
	result, err := t.controls.Train(context.Background())
	if err != nil {
		t.log.Warn("tray: train", "error", err)
		return
	}
	t.log.Info("tray: trained", "examples", result.Examples, "accuracy", result.Accuracy)
}

func (t *Tray) persist(op string, fn func(context.Context) error) {
	if err := fn(context.Background()); err != nil {
		t.log.Warn("tray: "+op, "error", err)
	}
}

// Update refreshes the menu from snap. It is safe to register with
// Engine.OnStatus and is a no-op before the tray is ready.
func (t *Tray) Update(snap app.Snapshot) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.ready {
		return
	}

	systray.SetTitle(Title(snap.Label))
	t.menuStatus.SetTitle(StatusText(snap))
	t.menuSamples.SetTitle(SamplesText(snap))

	setEnabled(t.menuGood, snap.Recording != recorder.ModeGood)
	setEnabled(t.menuBad, snap.Recording != recorder.ModeBad)
	setEnabled(t.menuStop, snap.Recording != recorder.ModeNone)
	setEnabled(t.menuTrain, snap.CanTrain)
	setEnabled(t.menuSave, snap.Trained && !snap.Training)
}

func setEnabled(item *systray.MenuItem, enabled bool) {
	if enabled {
		item.Enable()
	} else {
		item.Disable()
	}
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

var titles = map[posture.Label]string{
	posture.Unknown: "○ Posture",
	posture.Good:    "● Good",
	posture.Lean:    "◐ Lean",
	posture.Slouch:  "◒ Slouch",
}

// Title returns the tray title for label.
func Title(label posture.Label) string {
	if s, ok := titles[label]; ok {
		return s
	}
	return titles[posture.Unknown]
}

// StatusText returns the status line shown in the menu.
func StatusText(snap app.Snapshot) string {
	switch {
	case snap.Training:
		return "Status: training..."
	case snap.Recording != recorder.ModeNone:
		return fmt.Sprintf("Status: recording %s", snap.Recording)
	case !snap.Trained:
		return "Status: not trained"
	case snap.Label == posture.Unknown:
		return "Status: Unknown"
	}
	return fmt.Sprintf("Status: %s (%.0f%%)", snap.Label, snap.Confidence*100)
}

// SamplesText returns the sample count line shown in the menu.
func SamplesText(snap app.Snapshot) string {
	return fmt.Sprintf("Samples: %d good / %d bad (need %d each)",
		snap.GoodSamples, snap.BadSamples, snap.MinSamples)
}
