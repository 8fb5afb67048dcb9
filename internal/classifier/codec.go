package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ayusman/posturecheck/internal/posture"
)

// ErrIncompatible is returned when decoding a model with a different architecture
// or malformed parameters.
var ErrIncompatible = errors.New("incompatible model")

const codecVersion = 1

type encodedLayer struct {
	In      int       `json:"in"`
	Out     int       `json:"out"`
	Weights []float64 `json:"weights"`
	Biases  []float64 `json:"biases"`
}

type encodedModel struct {
	Architecture string         `json:"architecture"`
	Version      int            `json:"version"`
	Dropout      float64        `json:"dropout"`
	Mean         []float64      `json:"mean"`
	Std          []float64      `json:"std"`
	Layers       []encodedLayer `json:"layers"`
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *Model) MarshalBinary() ([]byte, error) {
	enc := encodedModel{
		Architecture: Architecture,
		Version:      codecVersion,
		Dropout:      m.dropout,
		Mean:         append([]float64(nil), m.norm.Mean[:]...),
		Std:          append([]float64(nil), m.norm.Std[:]...),
	}
	for _, l := range m.layers {
		in, out := l.W.Dims()
		weights := make([]float64, 0, in*out)
		for i := 0; i < in; i++ {
			weights = append(weights, mat.Row(nil, i, l.W)...)
		}
		enc.Layers = append(enc.Layers, encodedLayer{
			In:      in,
			Out:     out,
			Weights: weights,
			Biases:  append([]float64(nil), l.B...),
		})
	}
	return json.Marshal(enc)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. The receiver is only
// modified when data decodes to a complete, compatible model.
func (m *Model) UnmarshalBinary(data []byte) error {
	var enc encodedModel
	if err := json.Unmarshal(data, &enc); err != nil {
		return fmt.Errorf("decode model: %w", err)
	}
	if enc.Architecture != Architecture {
		return fmt.Errorf("%w: architecture %q", ErrIncompatible, enc.Architecture)
	}
	if enc.Version != codecVersion {
		return fmt.Errorf("%w: version %d", ErrIncompatible, enc.Version)
	}
	if len(enc.Mean) != posture.NumFeatures || len(enc.Std) != posture.NumFeatures {
		return fmt.Errorf("%w: normalizer has wrong size", ErrIncompatible)
	}
	if len(enc.Layers) != numLayers {
		return fmt.Errorf("%w: %d layers", ErrIncompatible, len(enc.Layers))
	}

	var decoded Model
	decoded.dropout = enc.Dropout
	for i := range decoded.norm.Mean {
		decoded.norm.Mean[i] = enc.Mean[i]
		decoded.norm.Std[i] = enc.Std[i]
		if enc.Std[i] == 0 {
			return fmt.Errorf("%w: zero standard deviation", ErrIncompatible)
		}
	}
	if !finite(enc.Mean) || !finite(enc.Std) {
		return fmt.Errorf("%w: non-finite normalizer", ErrIncompatible)
	}

	for i, l := range enc.Layers {
		in, out := layerSizes[i], layerSizes[i+1]
		if l.In != in || l.Out != out || len(l.Weights) != in*out || len(l.Biases) != out {
			return fmt.Errorf("%w: layer %d shape", ErrIncompatible, i)
		}
		if !finite(l.Weights) || !finite(l.Biases) {
			return fmt.Errorf("%w: layer %d has non-finite parameters", ErrIncompatible, i)
		}
		decoded.layers[i] = &layer{
			W: mat.NewDense(in, out, append([]float64(nil), l.Weights...)),
			B: append([]float64(nil), l.Biases...),
		}
	}

	*m = decoded
	return nil
}

func finite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
