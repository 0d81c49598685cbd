package model

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/assay/types"
)

// writeModel serializes layers to a temp weight file.
func writeModel(t *testing.T, layers []layer) string {
	t.Helper()
	data, err := msgpack.Marshal(mlpFile{Layers: layers})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "model.msgpack")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

// identityHead is a single layer that sums no inputs: score = sigmoid(bias).
func identityHead(bias float32) []layer {
	row := make([]float32, types.ModelFeatureCount)
	return []layer{{Weights: [][]float32{row}, Bias: []float32{bias}}}
}

func TestLoadAndScore_SingleLayer(t *testing.T) {
	m, err := Load(writeModel(t, identityHead(0)))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.InputDim() != types.ModelFeatureCount {
		t.Errorf("expected input dim %d, got %d", types.ModelFeatureCount, m.InputDim())
	}

	score, err := m.Score(make([]float32, types.ModelFeatureCount))
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	// sigmoid(0) = 0.5
	if math.Abs(float64(score)-0.5) > 1e-6 {
		t.Errorf("expected 0.5, got %v", score)
	}
}

func TestScore_WeightsApplied(t *testing.T) {
	row := make([]float32, types.ModelFeatureCount)
	row[0] = 2
	m, err := Load(writeModel(t, []layer{{Weights: [][]float32{row}, Bias: []float32{-1}}}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	in := make([]float32, types.ModelFeatureCount)
	in[0] = 1.5
	score, err := m.Score(in)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	// sigmoid(2*1.5 - 1) = sigmoid(2)
	want := 1 / (1 + math.Exp(-2))
	if math.Abs(float64(score)-want) > 1e-6 {
		t.Errorf("expected %v, got %v", want, score)
	}
}

func TestScore_HiddenLayerReLU(t *testing.T) {
	hiddenRow := make([]float32, types.ModelFeatureCount)
	hiddenRow[0] = 1
	layers := []layer{
		// Two hidden units: x[0] and -x[0].
		{Weights: [][]float32{hiddenRow, negate(hiddenRow)}, Bias: []float32{0, 0}},
		{Weights: [][]float32{{1, 1}}, Bias: []float32{0}},
	}
	m, err := Load(writeModel(t, layers))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	in := make([]float32, types.ModelFeatureCount)
	in[0] = 3
	score, err := m.Score(in)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	// ReLU kills the negative unit: head input is 3, not 0.
	want := 1 / (1 + math.Exp(-3))
	if math.Abs(float64(score)-want) > 1e-6 {
		t.Errorf("expected %v, got %v", want, score)
	}
}

func TestScore_RejectsWrongWidth(t *testing.T) {
	m, err := Load(writeModel(t, identityHead(0)))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := m.Score(make([]float32, 5)); !errors.Is(err, ErrBadVector) {
		t.Errorf("expected ErrBadVector, got %v", err)
	}
}

func TestLoad_RejectsBadShapes(t *testing.T) {
	tests := []struct {
		name   string
		layers []layer
	}{
		{"no layers", nil},
		{"wrong input width", []layer{{Weights: [][]float32{{1, 2}}, Bias: []float32{0}}}},
		{"bias mismatch", []layer{{
			Weights: [][]float32{make([]float32, types.ModelFeatureCount)},
			Bias:    []float32{0, 0},
		}}},
		{"multi-output head", []layer{{
			Weights: [][]float32{
				make([]float32, types.ModelFeatureCount),
				make([]float32, types.ModelFeatureCount),
			},
			Bias: []float32{0, 0},
		}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeModel(t, tc.layers)); err == nil {
				t.Error("expected load error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.msgpack")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestConstant(t *testing.T) {
	c := Constant{V: 0.9}
	score, err := c.Score(make([]float32, c.InputDim()))
	if err != nil || score != 0.9 {
		t.Errorf("expected 0.9, got %v (%v)", score, err)
	}
}

func negate(row []float32) []float32 {
	out := make([]float32, len(row))
	for i, v := range row {
		out[i] = -v
	}
	return out
}
