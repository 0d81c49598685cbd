// Package model loads and runs the pre-trained risk scoring model.
//
// The model is a black box to the pipeline: a function from the fixed-order
// 29-float feature vector to a risk score in [0,1]. The shipped realization
// is a small feed-forward network whose weights are distributed as a msgpack
// file, exported from the offline training job.
package model

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/assay/types"
)

// ErrBadVector reports an input of the wrong width.
var ErrBadVector = errors.New("feature vector has wrong width")

// Scorer maps a feature vector to a risk score in [0,1]. Implementations
// must be safe for concurrent use; the inference service shares one Scorer
// across all request handlers.
type Scorer interface {
	Score(features []float32) (float32, error)
	InputDim() int
}

// layer is one dense layer: Weights is row-major [out][in].
type layer struct {
	Weights [][]float32 `msgpack:"weights"`
	Bias    []float32   `msgpack:"bias"`
}

type mlpFile struct {
	Layers []layer `msgpack:"layers"`
}

// MLP is a feed-forward network with ReLU hidden activations and a sigmoid
// head. Weights are immutable after load, so Score needs no locking.
type MLP struct {
	layers []layer
}

// Load reads a msgpack weight file and validates its shape chain: the first
// layer must accept the model feature vector, each layer must feed the next,
// and the head must emit one scalar.
func Load(path string) (*MLP, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}

	var file mlpFile
	if err := msgpack.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if len(file.Layers) == 0 {
		return nil, fmt.Errorf("model %s: no layers", path)
	}

	in := types.ModelFeatureCount
	for i, l := range file.Layers {
		if len(l.Weights) == 0 {
			return nil, fmt.Errorf("model %s: layer %d is empty", path, i)
		}
		if len(l.Bias) != len(l.Weights) {
			return nil, fmt.Errorf("model %s: layer %d bias width %d != %d outputs",
				path, i, len(l.Bias), len(l.Weights))
		}
		for j, row := range l.Weights {
			if len(row) != in {
				return nil, fmt.Errorf("model %s: layer %d row %d width %d, want %d",
					path, i, j, len(row), in)
			}
		}
		in = len(l.Weights)
	}
	if in != 1 {
		return nil, fmt.Errorf("model %s: head emits %d outputs, want 1", path, in)
	}

	return &MLP{layers: file.Layers}, nil
}

// InputDim returns the expected feature vector width.
func (m *MLP) InputDim() int {
	return len(m.layers[0].Weights[0])
}

// Score runs the forward pass: ReLU between layers, sigmoid on the head.
func (m *MLP) Score(features []float32) (float32, error) {
	if len(features) != m.InputDim() {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrBadVector, len(features), m.InputDim())
	}

	x := features
	for i, l := range m.layers {
		out := make([]float32, len(l.Weights))
		for j, row := range l.Weights {
			sum := l.Bias[j]
			for k, w := range row {
				sum += w * x[k]
			}
			if i < len(m.layers)-1 && sum < 0 {
				sum = 0 // ReLU
			}
			out[j] = sum
		}
		x = out
	}

	return sigmoid(x[0]), nil
}

func sigmoid(v float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(v))))
}

// Constant is a fixed-score Scorer for tests and smoke environments.
type Constant struct {
	V float32
}

func (c Constant) Score([]float32) (float32, error) {
	return c.V, nil
}

func (c Constant) InputDim() int {
	return types.ModelFeatureCount
}
