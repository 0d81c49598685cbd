// Package infer assembles feature vectors and turns model scores into
// risk decisions with reason codes.
package infer

import (
	"strconv"

	"github.com/pithecene-io/assay/types"
)

// BuildVector assembles the model input from a feature snapshot in the fixed
// order V1..V28, Amount_normalized. Missing or non-numeric fields contribute
// 0 so a partially populated snapshot still scores.
func BuildVector(fields map[string]string) []float32 {
	vec := make([]float32, types.ModelFeatureCount)
	for i, name := range types.ModelFeatureNames {
		if raw, ok := fields[name]; ok {
			if v, err := strconv.ParseFloat(raw, 32); err == nil {
				vec[i] = float32(v)
			}
		}
	}
	return vec
}

// DefaultVector is the all-zero vector used when a user has no snapshot.
func DefaultVector() []float32 {
	return make([]float32, types.ModelFeatureCount)
}
