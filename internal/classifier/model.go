// Package classifier provides the trainable posture classifier: a small feed-forward
// network mapping a feature vector to Good/Lean/Slouch probabilities.
package classifier

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ayusman/posturecheck/internal/posture"
)

// Architecture identifies the fixed network layout in serialized models.
const Architecture = "dense6-relu16-dropout-dense8-relu-dense3-softmax"

// DefaultDropout is the dropout rate applied after the first layer during training.
const DefaultDropout = 0.1

// layerSizes are the widths from input to output.
var layerSizes = [...]int{posture.NumFeatures, 16, 8, posture.NumClasses}

const numLayers = len(layerSizes) - 1

// layer is a dense layer computing x·W + b.
type layer struct {
	W *mat.Dense // in x out
	B []float64  // out
}

// newLayer initializes weights with Glorot-uniform values and zero biases.
func newLayer(in, out int, rng *rand.Rand) *layer {
	limit := math.Sqrt(6 / float64(in+out))
	data := make([]float64, in*out)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * limit
	}
	return &layer{W: mat.NewDense(in, out, data), B: make([]float64, out)}
}

func (l *layer) clone() *layer {
	b := make([]float64, len(l.B))
	copy(b, l.B)
	return &layer{W: mat.DenseCopyOf(l.W), B: b}
}

// affine writes src·W + b into dst.
func (l *layer) affine(dst, src *mat.Dense) {
	dst.Mul(src, l.W)
	dst.Apply(func(_, j int, v float64) float64 { return v + l.B[j] }, dst)
}

// Normalizer standardizes features with per-feature mean and standard deviation.
type Normalizer struct {
	Mean posture.Features
	Std  posture.Features
}

// IdentityNormalizer leaves features unchanged.
func IdentityNormalizer() Normalizer {
	var n Normalizer
	for i := range n.Std {
		n.Std[i] = 1
	}
	return n
}

// FitNormalizer computes the mean and population standard deviation of each feature.
// Constant features get a standard deviation of 1.
func FitNormalizer(examples []Example) Normalizer {
	n := IdentityNormalizer()
	if len(examples) == 0 {
		return n
	}

	count := float64(len(examples))
	for _, e := range examples {
		for i, v := range e.Features {
			n.Mean[i] += v
		}
	}
	for i := range n.Mean {
		n.Mean[i] /= count
	}

	var variance posture.Features
	for _, e := range examples {
		for i, v := range e.Features {
			d := v - n.Mean[i]
			variance[i] += d * d
		}
	}
	for i := range variance {
		std := math.Sqrt(variance[i] / count)
		if std < 1e-6 {
			std = 1
		}
		n.Std[i] = std
	}
	return n
}

// Apply standardizes f.
func (n Normalizer) Apply(f posture.Features) posture.Features {
	var out posture.Features
	for i, v := range f {
		out[i] = (v - n.Mean[i]) / n.Std[i]
	}
	return out
}

// Model holds the network parameters. A Model is never mutated after it is returned
// by New, Train or UnmarshalBinary, so it can be shared between goroutines.
type Model struct {
	layers  [numLayers]*layer
	norm    Normalizer
	dropout float64
}

// New creates an untrained model with random initial weights.
// A nil rng seeds one from the clock.
func New(rng *rand.Rand) *Model {
	if rng == nil {
		rng = newRand(uint64(time.Now().UnixNano()))
	}
	m := &Model{norm: IdentityNormalizer(), dropout: DefaultDropout}
	for i := range m.layers {
		m.layers[i] = newLayer(layerSizes[i], layerSizes[i+1], rng)
	}
	return m
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Clone returns a deep copy of the model.
func (m *Model) Clone() *Model {
	c := &Model{norm: m.norm, dropout: m.dropout}
	for i, l := range m.layers {
		c.layers[i] = l.clone()
	}
	return c
}

// finiteParams reports whether every weight and bias is a finite number.
func (m *Model) finiteParams() bool {
	for _, l := range m.layers {
		if !finite(l.W.RawMatrix().Data) || !finite(l.B) {
			return false
		}
	}
	return true
}

// Normalizer returns the input normalizer fitted at training time.
func (m *Model) Normalizer() Normalizer {
	return m.norm
}

// Predict runs a forward pass and returns the class probabilities for f.
func (m *Model) Predict(f posture.Features) posture.Probabilities {
	ws := acquireWorkspace(1)
	defer releaseWorkspace(ws)

	b := ws.batch(1)
	x := m.norm.Apply(f)
	b.x.SetRow(0, x[:])
	m.forward(b, false, nil)

	var p posture.Probabilities
	for j := range p {
		p[j] = b.a[numLayers-1].At(0, j)
	}
	return p
}

// forward fills the activations of b. Dropout is applied to the first hidden layer
// only when train is set.
func (m *Model) forward(b batch, train bool, rng *rand.Rand) {
	m.layers[0].affine(b.z[0], b.x)
	relu(b.a[0], b.z[0])
	if train && m.dropout > 0 {
		keep := 1 - m.dropout
		r, c := b.mask.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if rng.Float64() < keep {
					b.mask.Set(i, j, 1/keep)
				} else {
					b.mask.Set(i, j, 0)
				}
			}
		}
		b.a[0].MulElem(b.a[0], b.mask)
	}

	m.layers[1].affine(b.z[1], b.a[0])
	relu(b.a[1], b.z[1])

	m.layers[2].affine(b.z[2], b.a[1])
	softmax(b.a[2], b.z[2])
}

// backward computes parameter gradients for the mean cross-entropy of b into g.
func (m *Model) backward(b batch, g *gradients, dropout bool) {
	n := float64(b.n)

	out := numLayers - 1
	b.dz[out].Sub(b.a[out], b.y)
	b.dz[out].Scale(1/n, b.dz[out])

	for l := out; l >= 0; l-- {
		in := b.x
		if l > 0 {
			in = b.a[l-1]
		}
		g.W[l].Mul(in.T(), b.dz[l])
		colSums(g.B[l], b.dz[l])

		if l == 0 {
			break
		}

		b.da[l-1].Mul(b.dz[l], m.layers[l].W.T())
		z := b.z[l-1]
		useMask := dropout && l-1 == 0
		b.dz[l-1].Apply(func(i, j int, v float64) float64 {
			if z.At(i, j) <= 0 {
				return 0
			}
			if useMask {
				return v * b.mask.At(i, j)
			}
			return v
		}, b.da[l-1])
	}
}

func relu(dst, src *mat.Dense) {
	dst.Apply(func(_, _ int, v float64) float64 {
		// NaN passes through so a diverged layer still poisons the loss.
		if v > 0 || v != v {
			return v
		}
		return 0
	}, src)
}

// softmax writes the row-wise softmax of src into dst.
func softmax(dst, src *mat.Dense) {
	r, c := src.Dims()
	for i := 0; i < r; i++ {
		maxV := src.At(i, 0)
		for j := 1; j < c; j++ {
			maxV = math.Max(maxV, src.At(i, j))
		}
		var sum float64
		for j := 0; j < c; j++ {
			e := math.Exp(src.At(i, j) - maxV)
			dst.Set(i, j, e)
			sum += e
		}
		for j := 0; j < c; j++ {
			dst.Set(i, j, dst.At(i, j)/sum)
		}
	}
}

func colSums(dst []float64, m *mat.Dense) {
	r, c := m.Dims()
	for j := 0; j < c; j++ {
		var s float64
		for i := 0; i < r; i++ {
			s += m.At(i, j)
		}
		dst[j] = s
	}
}
