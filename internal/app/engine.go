package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ayusman/posturecheck/internal/classifier"
	"github.com/ayusman/posturecheck/internal/detector"
	"github.com/ayusman/posturecheck/internal/posture"
	"github.com/ayusman/posturecheck/internal/recorder"
	"github.com/ayusman/posturecheck/internal/store"
)

var (
	// ErrNeedMoreSamples is returned by Train before both classes have enough samples.
	ErrNeedMoreSamples = errors.New("not enough samples recorded")
	// ErrTrainingInProgress is returned by Train while another training run is active.
	ErrTrainingInProgress = errors.New("training already in progress")
	// ErrTrainingDiscarded is returned when a reset or load happened while training.
	ErrTrainingDiscarded = errors.New("training result discarded after model change")
	// ErrNotTrained is returned by Save when no trained model exists.
	ErrNotTrained = errors.New("model is not trained")
	// ErrNoSavedModel wraps every Load failure.
	ErrNoSavedModel = errors.New("no usable saved model")
	// ErrNoStore is returned when persistence is requested without a store.
	ErrNoStore = errors.New("no model store configured")
)

// Status is the stabilized posture output for one frame.
type Status struct {
	Label      posture.Label `json:"label"`
	Confidence float64       `json:"confidence"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Snapshot is the engine state shown to users.
type Snapshot struct {
	Status
	Recording   recorder.Mode `json:"recording"`
	GoodSamples int           `json:"good_samples"`
	BadSamples  int           `json:"bad_samples"`
	MinSamples  int           `json:"min_samples"`
	Trained     bool          `json:"trained"`
	Training    bool          `json:"training"`
	CanTrain    bool          `json:"can_train"`
	Message     string        `json:"message"`
}

// EngineConfig holds engine options.
type EngineConfig struct {
	Collector recorder.Config
	Smoother  posture.Smoother
	Training  classifier.TrainConfig
	ModelKey  string
	// Store persists models, datasets and training runs. Optional.
	Store  ModelStore
	Logger *slog.Logger
}

// Engine ties feature extraction, sample collection, classification and smoothing
// together. It is safe for concurrent use: the frame loop, HTTP handlers and the
// tray all call into it.
type Engine struct {
	config EngineConfig
	log    *slog.Logger

	mu         sync.Mutex
	collector  *recorder.Collector
	model      *classifier.Model
	trained    bool
	training   bool
	generation uint64
	smoothing  posture.SmoothingState
	status     Status
	message    string
	listeners  []func(Snapshot)
}

// NewEngine creates an engine with an untrained model.
func NewEngine(config EngineConfig) *Engine {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.ModelKey == "" {
		config.ModelKey = "posture-check"
	}
	if config.Smoother.Alpha == 0 {
		config.Smoother = posture.NewSmoother()
	}

	e := &Engine{
		config:    config,
		log:       config.Logger,
		collector: recorder.New(config.Collector),
		message:   "Record good and bad posture, then train",
	}
	e.model = e.newModel()
	e.status = Status{Label: posture.Unknown, Timestamp: time.Now()}
	return e
}

func (e *Engine) newModel() *classifier.Model {
	if seed := e.config.Training.Seed; seed != 0 {
		return classifier.New(rand.New(rand.NewPCG(seed, ^seed)))
	}
	return classifier.New(nil)
}

// OnStatus registers fn to be called with a fresh snapshot after every processed
// frame and every control. fn runs on the caller's goroutine and must not block.
func (e *Engine) OnStatus(fn func(Snapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// ProcessFrame runs one frame through the pipeline and returns the stabilized status.
func (e *Engine) ProcessFrame(frame detector.Frame) Status {
	now := frame.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	features, ok := posture.ExtractFeatures(frame.Pose)

	e.mu.Lock()
	status := Status{Label: posture.Unknown, Timestamp: now}
	if ok {
		if e.collector.Mode() != recorder.ModeNone {
			e.collector.Add(features, now)
		}
		if e.trained {
			raw := e.model.Predict(features)
			var res posture.Result
			e.smoothing, res = e.config.Smoother.Update(e.smoothing, raw, now)
			status.Label = res.Label
			status.Confidence = res.Confidence
		}
	}
	e.status = status
	snap, listeners := e.snapshotLocked(), e.listeners
	e.mu.Unlock()

	notify(listeners, snap)
	return status
}

// StartGood starts recording good-posture samples.
func (e *Engine) StartGood() recorder.Transition {
	return e.start(recorder.ModeGood, "Recording good posture")
}

// StartBad starts recording not-good samples.
func (e *Engine) StartBad() recorder.Transition {
	return e.start(recorder.ModeBad, "Recording bad posture")
}

func (e *Engine) start(mode recorder.Mode, message string) recorder.Transition {
	e.mu.Lock()
	t, _ := e.collector.Start(mode)
	if t != recorder.Unchanged {
		e.message = message
	}
	snap, listeners := e.snapshotLocked(), e.listeners
	e.mu.Unlock()

	e.log.Info("recording", "mode", mode.String(), "transition", t.String())
	notify(listeners, snap)
	return t
}

// Stop ends the active recording session.
func (e *Engine) Stop() recorder.Transition {
	e.mu.Lock()
	t := e.collector.Stop()
	if t == recorder.Stopped {
		good, bad := e.collector.Counts()
		e.message = fmt.Sprintf("Recording stopped (%d good, %d bad)", good, bad)
	}
	snap, listeners := e.snapshotLocked(), e.listeners
	e.mu.Unlock()

	e.log.Info("recording", "mode", recorder.ModeNone.String(), "transition", t.String())
	notify(listeners, snap)
	return t
}

// Train fits a new model on the recorded samples. Frames keep using the current
// model until training succeeds. A Reset or Load during training discards the result.
func (e *Engine) Train(ctx context.Context) (classifier.TrainResult, error) {
	e.mu.Lock()
	if e.training {
		e.mu.Unlock()
		return classifier.TrainResult{}, ErrTrainingInProgress
	}
	if !e.collector.Ready() {
		good, bad := e.collector.Counts()
		need := e.collector.Config().MinSamples
		e.message = fmt.Sprintf("Need %d samples of each (have %d good, %d bad)", need, good, bad)
		snap, listeners := e.snapshotLocked(), e.listeners
		e.mu.Unlock()
		notify(listeners, snap)
		return classifier.TrainResult{}, fmt.Errorf("%w: have %d good and %d bad, need %d each",
			ErrNeedMoreSamples, good, bad, need)
	}

	ds := e.collector.Dataset()
	base := e.model
	generation := e.generation
	e.training = true
	e.message = "Training..."
	snap, listeners := e.snapshotLocked(), e.listeners
	e.mu.Unlock()
	notify(listeners, snap)

	e.log.Info("training started", "good", len(ds.Good), "bad", len(ds.NotGood))
	started := time.Now()
	examples := classifier.BuildExamples(ds.Good, ds.NotGood)
	model, result, err := classifier.Train(ctx, base, examples, e.config.Training)

	e.mu.Lock()
	stale := generation != e.generation
	if !stale {
		e.training = false
	}
	switch {
	case stale:
		err = ErrTrainingDiscarded
	case err != nil:
		e.message = "Training failed: " + err.Error()
	default:
		e.model = model
		e.trained = true
		e.message = fmt.Sprintf("Model trained (accuracy %.0f%%)", result.Accuracy*100)
	}
	snap, listeners = e.snapshotLocked(), e.listeners
	e.mu.Unlock()
	notify(listeners, snap)

	run := &store.TrainingRun{
		ModelName:   e.config.ModelKey,
		Status:      store.RunSucceeded,
		GoodSamples: len(ds.Good),
		BadSamples:  len(ds.NotGood),
		Epochs:      result.Epochs,
		Loss:        result.Loss,
		Accuracy:    result.Accuracy,
		StartedAt:   started,
		FinishedAt:  time.Now(),
	}

	switch {
	case stale:
		run.Status = store.RunDiscarded
		e.log.Warn("training discarded after model change")
	case err != nil:
		run.Status = store.RunFailed
		run.Error = err.Error()
		e.log.Error("training failed", "error", err)
	default:
		e.log.Info("training finished", "loss", result.Loss, "accuracy", result.Accuracy,
			"duration", result.Duration)
	}
	e.persistRun(ctx, run, ds)

	return result, err
}

// persistRun records the run and, for successful runs, the dataset it used.
func (e *Engine) persistRun(ctx context.Context, run *store.TrainingRun, ds recorder.Dataset) {
	st := e.config.Store
	if st == nil {
		return
	}
	// The training context may already be cancelled; history is still written.
	ctx = context.WithoutCancel(ctx)

	if run.Status == store.RunSucceeded {
		if err := st.SaveDataset(ctx, ds); err != nil {
			e.log.Warn("failed to store dataset", "error", err)
		}
	}
	if err := st.RecordRun(ctx, run); err != nil {
		e.log.Warn("failed to record training run", "error", err)
	}
}

// Save persists the trained model under the configured key.
func (e *Engine) Save(ctx context.Context) error {
	e.mu.Lock()
	trained, model := e.trained, e.model
	e.mu.Unlock()

	if !trained {
		return ErrNotTrained
	}
	if e.config.Store == nil {
		return ErrNoStore
	}

	data, err := model.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	if err := e.config.Store.SaveModel(ctx, e.config.ModelKey, data); err != nil {
		return fmt.Errorf("save model: %w", err)
	}

	e.log.Info("model saved", "key", e.config.ModelKey, "bytes", len(data))
	e.setMessage("Model saved")
	return nil
}

// Load replaces the current model with the stored one and discards any in-flight
// training. On any failure the current model is kept and the returned error wraps
// ErrNoSavedModel.
func (e *Engine) Load(ctx context.Context) error {
	if e.config.Store == nil {
		return fmt.Errorf("%w: %w", ErrNoSavedModel, ErrNoStore)
	}

	data, err := e.config.Store.LoadModel(ctx, e.config.ModelKey)
	if err != nil {
		e.log.Warn("no saved model", "key", e.config.ModelKey, "error", err)
		e.setMessage("No saved model")
		return fmt.Errorf("%w: %w", ErrNoSavedModel, err)
	}

	model := &classifier.Model{}
	if err := model.UnmarshalBinary(data); err != nil {
		e.log.Warn("saved model unusable", "key", e.config.ModelKey, "error", err)
		e.setMessage("Saved model could not be loaded")
		return fmt.Errorf("%w: %w", ErrNoSavedModel, err)
	}

	e.mu.Lock()
	e.generation++
	e.training = false
	e.model = model
	e.trained = true
	e.message = "Model loaded"
	snap, listeners := e.snapshotLocked(), e.listeners
	e.mu.Unlock()
	notify(listeners, snap)

	e.log.Info("model loaded", "key", e.config.ModelKey)
	return nil
}

// Reset discards samples, the trained model, any in-flight training and the
// smoothing state. Calling it repeatedly is harmless.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.generation++
	e.collector.Reset()
	e.model = e.newModel()
	e.trained = false
	e.training = false
	e.smoothing = posture.SmoothingState{}
	e.status = Status{Label: posture.Unknown, Timestamp: time.Now()}
	e.message = "Reset"
	snap, listeners := e.snapshotLocked(), e.listeners
	e.mu.Unlock()

	e.log.Info("engine reset")
	notify(listeners, snap)
}

// Status returns the most recent status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Snapshot returns the current engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Model returns the current model and whether it is trained.
func (e *Engine) Model() (*classifier.Model, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model, e.trained
}

func (e *Engine) setMessage(msg string) {
	e.mu.Lock()
	e.message = msg
	snap, listeners := e.snapshotLocked(), e.listeners
	e.mu.Unlock()
	notify(listeners, snap)
}

func (e *Engine) snapshotLocked() Snapshot {
	good, bad := e.collector.Counts()
	return Snapshot{
		Status:      e.status,
		Recording:   e.collector.Mode(),
		GoodSamples: good,
		BadSamples:  bad,
		MinSamples:  e.collector.Config().MinSamples,
		Trained:     e.trained,
		Training:    e.training,
		CanTrain:    e.collector.Ready() && !e.training,
		Message:     e.message,
	}
}

func notify(listeners []func(Snapshot), snap Snapshot) {
	for _, fn := range listeners {
		fn(snap)
	}
}
