package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ayusman/posturecheck/internal/posture"
)

// Training defaults.
const (
	DefaultEpochs       = 30
	DefaultBatchSize    = 32
	DefaultLearningRate = 0.01
)

// Adam hyperparameters.
const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-7
)

var (
	// ErrNoExamples is returned when Train is called with an empty training set.
	ErrNoExamples = errors.New("no training examples")
	// ErrInvalidExample is returned for a non-finite feature or an out-of-range class.
	ErrInvalidExample = errors.New("invalid training example")
	// ErrNonFiniteLoss is returned when the loss diverges during training.
	ErrNonFiniteLoss = errors.New("training loss is not finite")
	// ErrNonFiniteParameters is returned when an update leaves a NaN or Inf weight.
	ErrNonFiniteParameters = errors.New("model parameters are not finite")
)

// Example is one labeled training vector.
type Example struct {
	Features posture.Features
	Class    posture.Class
}

// BuildExamples labels good samples as ClassGood and splits not-good samples
// between ClassLean (even positions) and ClassSlouch (odd positions).
func BuildExamples(good, notGood []posture.Features) []Example {
	examples := make([]Example, 0, len(good)+len(notGood))
	for _, f := range good {
		examples = append(examples, Example{Features: f, Class: posture.ClassGood})
	}
	for i, f := range notGood {
		class := posture.ClassLean
		if i%2 == 1 {
			class = posture.ClassSlouch
		}
		examples = append(examples, Example{Features: f, Class: class})
	}
	return examples
}

// EpochStats reports progress after each epoch.
type EpochStats struct {
	Epoch  int
	Epochs int
	Loss   float64
}

// TrainConfig holds training options.
type TrainConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	Dropout      float64
	// Seed makes training reproducible. Zero seeds from the clock.
	Seed uint64
	// Progress, if set, is called after every epoch.
	Progress func(EpochStats)
}

// DefaultTrainConfig returns the standard training options.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Epochs:       DefaultEpochs,
		BatchSize:    DefaultBatchSize,
		LearningRate: DefaultLearningRate,
		Dropout:      DefaultDropout,
	}
}

func (c TrainConfig) withDefaults() TrainConfig {
	if c.Epochs <= 0 {
		c.Epochs = DefaultEpochs
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.LearningRate <= 0 {
		c.LearningRate = DefaultLearningRate
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		c.Dropout = DefaultDropout
	}
	if c.Seed == 0 {
		c.Seed = uint64(time.Now().UnixNano())
	}
	return c
}

// TrainResult summarizes a finished training run.
type TrainResult struct {
	Examples int
	Epochs   int
	// Loss and Accuracy are measured on the training set without dropout.
	Loss     float64
	Accuracy float64
	Duration time.Duration
}

// Train fits a copy of base to examples and returns the trained copy. base is never
// modified; a nil base starts from fresh weights. Cancelling ctx aborts training
// between batches and returns ctx.Err().
func Train(ctx context.Context, base *Model, examples []Example, config TrainConfig) (*Model, TrainResult, error) {
	if len(examples) == 0 {
		return nil, TrainResult{}, ErrNoExamples
	}
	for i, e := range examples {
		if e.Class < 0 || e.Class >= posture.NumClasses {
			return nil, TrainResult{}, fmt.Errorf("%w: example %d has class %d", ErrInvalidExample, i, e.Class)
		}
		for _, v := range e.Features {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, TrainResult{}, fmt.Errorf("%w: example %d has a non-finite feature", ErrInvalidExample, i)
			}
		}
	}

	config = config.withDefaults()
	rng := newRand(config.Seed)
	started := time.Now()

	var m *Model
	if base == nil {
		m = New(rng)
	} else {
		m = base.Clone()
	}
	m.norm = FitNormalizer(examples)
	m.dropout = config.Dropout

	inputs := make([]posture.Features, len(examples))
	for i, e := range examples {
		inputs[i] = m.norm.Apply(e.Features)
	}

	ws := acquireWorkspace(config.BatchSize)
	defer releaseWorkspace(ws)

	opt := newAdam(m, config.LearningRate)
	order := make([]int, len(examples))
	for i := range order {
		order[i] = i
	}

	for epoch := 1; epoch <= config.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var total float64
		for start := 0; start < len(order); start += config.BatchSize {
			if err := ctx.Err(); err != nil {
				return nil, TrainResult{}, err
			}

			idx := order[start:min(start+config.BatchSize, len(order))]
			b := ws.batch(len(idx))
			load(b, inputs, examples, idx)

			m.forward(b, true, rng)
			loss := crossEntropy(b)
			if math.IsNaN(loss) || math.IsInf(loss, 0) {
				return nil, TrainResult{}, fmt.Errorf("%w at epoch %d", ErrNonFiniteLoss, epoch)
			}
			total += loss * float64(b.n)

			m.backward(b, &ws.grad, m.dropout > 0)
			opt.step(m, &ws.grad)
		}

		if !m.finiteParams() {
			return nil, TrainResult{}, fmt.Errorf("%w after epoch %d", ErrNonFiniteParameters, epoch)
		}

		if config.Progress != nil {
			config.Progress(EpochStats{Epoch: epoch, Epochs: config.Epochs, Loss: total / float64(len(order))})
		}
	}

	loss, accuracy := m.evaluate(ws, inputs, examples)
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return nil, TrainResult{}, ErrNonFiniteLoss
	}

	return m, TrainResult{
		Examples: len(examples),
		Epochs:   config.Epochs,
		Loss:     loss,
		Accuracy: accuracy,
		Duration: time.Since(started),
	}, nil
}

// load copies the selected examples into b.
func load(b batch, inputs []posture.Features, examples []Example, idx []int) {
	b.y.Zero()
	for r, k := range idx {
		b.x.SetRow(r, inputs[k][:])
		b.y.Set(r, int(examples[k].Class), 1)
	}
}

// crossEntropy returns the mean categorical cross-entropy of the batch output.
func crossEntropy(b batch) float64 {
	out := b.a[numLayers-1]
	var sum float64
	for i := 0; i < b.n; i++ {
		for j := 0; j < posture.NumClasses; j++ {
			if b.y.At(i, j) == 0 {
				continue
			}
			sum -= math.Log(math.Max(out.At(i, j), 1e-12))
		}
	}
	return sum / float64(b.n)
}

// evaluate returns loss and accuracy over all examples without dropout.
func (m *Model) evaluate(ws *workspace, inputs []posture.Features, examples []Example) (float64, float64) {
	idx := make([]int, 0, ws.rows)
	var loss float64
	var correct int
	for start := 0; start < len(examples); start += ws.rows {
		idx = idx[:0]
		for k := start; k < min(start+ws.rows, len(examples)); k++ {
			idx = append(idx, k)
		}
		b := ws.batch(len(idx))
		load(b, inputs, examples, idx)
		m.forward(b, false, nil)
		loss += crossEntropy(b) * float64(b.n)

		out := b.a[numLayers-1]
		for r, k := range idx {
			var p posture.Probabilities
			for j := range p {
				p[j] = out.At(r, j)
			}
			if p.Argmax() == examples[k].Class {
				correct++
			}
		}
	}
	n := float64(len(examples))
	return loss / n, float64(correct) / n
}

// adam holds first and second moment estimates for every parameter.
type adam struct {
	lr float64
	t  int
	mW [numLayers][]float64
	vW [numLayers][]float64
	mB [numLayers][]float64
	vB [numLayers][]float64
}

func newAdam(m *Model, lr float64) *adam {
	o := &adam{lr: lr}
	for l, ly := range m.layers {
		r, c := ly.W.Dims()
		o.mW[l] = make([]float64, r*c)
		o.vW[l] = make([]float64, r*c)
		o.mB[l] = make([]float64, len(ly.B))
		o.vB[l] = make([]float64, len(ly.B))
	}
	return o
}

func (o *adam) step(m *Model, g *gradients) {
	o.t++
	c1 := 1 - math.Pow(adamBeta1, float64(o.t))
	c2 := 1 - math.Pow(adamBeta2, float64(o.t))
	for l, ly := range m.layers {
		o.update(ly.W.RawMatrix().Data, g.W[l].RawMatrix().Data, o.mW[l], o.vW[l], c1, c2)
		o.update(ly.B, g.B[l], o.mB[l], o.vB[l], c1, c2)
	}
}

func (o *adam) update(params, grads, m, v []float64, c1, c2 float64) {
	for i, g := range grads {
		m[i] = adamBeta1*m[i] + (1-adamBeta1)*g
		v[i] = adamBeta2*v[i] + (1-adamBeta2)*g*g
		mHat := m[i] / c1
		vHat := v[i] / c2
		params[i] -= o.lr * mHat / (math.Sqrt(vHat) + adamEpsilon)
	}
}
