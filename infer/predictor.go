package infer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pithecene-io/assay/feature"
	"github.com/pithecene-io/assay/metrics"
	"github.com/pithecene-io/assay/model"
)

// Decisions, ordered by increasing risk.
const (
	DecisionAllow  = "allow"
	DecisionStepUp = "step_up"
	DecisionBlock  = "block"
)

// Default score thresholds.
const (
	DefaultThresholdAllow = 0.3
	DefaultThresholdBlock = 0.7
)

// Prediction is the result of one risk query.
type Prediction struct {
	UserID    string   `json:"user_id"`
	RiskScore float64  `json:"risk_score"`
	Decision  string   `json:"decision"`
	Reasons   []string `json:"reasons"`
}

// Predictor answers synchronous risk queries from the feature store and the
// scoring model. It is stateless and safe for concurrent use.
type Predictor struct {
	store   *feature.Store
	scorer  model.Scorer
	metrics *metrics.Infer

	thresholdAllow float64
	thresholdBlock float64
}

// NewPredictor wires a feature store and scorer. Threshold values <= 0 fall
// back to the defaults.
func NewPredictor(store *feature.Store, scorer model.Scorer, thresholdAllow, thresholdBlock float64) *Predictor {
	if thresholdAllow <= 0 {
		thresholdAllow = DefaultThresholdAllow
	}
	if thresholdBlock <= 0 {
		thresholdBlock = DefaultThresholdBlock
	}
	return &Predictor{
		store:          store,
		scorer:         scorer,
		thresholdAllow: thresholdAllow,
		thresholdBlock: thresholdBlock,
	}
}

// Instrument attaches the inference metric set; fetch round trips are
// observed on every Predict.
func (p *Predictor) Instrument(m *metrics.Infer) {
	p.metrics = m
}

// Predict maps a user to a risk decision. A user with no snapshot still
// scores, on the all-zero default vector, with the missing_features reason.
// Store and model failures surface as errors.
func (p *Predictor) Predict(ctx context.Context, userID string) (Prediction, error) {
	fetchStart := time.Now()
	fields, err := p.store.ReadSnapshot(ctx, userID)
	if p.metrics != nil {
		p.metrics.FetchLatency.Observe(time.Since(fetchStart).Seconds())
	}

	var vec []float32
	missing := false
	switch {
	case err == nil:
		vec = BuildVector(fields)
	case errors.Is(err, feature.ErrNoSnapshot):
		vec = DefaultVector()
		missing = true
	default:
		return Prediction{}, err
	}

	score, err := p.scorer.Score(vec)
	if err != nil {
		return Prediction{}, fmt.Errorf("score %s: %w", userID, err)
	}

	pred := Prediction{
		UserID:    userID,
		RiskScore: round4(float64(score)),
		Decision:  p.Decide(float64(score)),
	}
	if missing {
		pred.Reasons = []string{"missing_features"}
	} else {
		pred.Reasons = Reasons(fields)
	}
	return pred, nil
}

// Decide maps a raw score to a decision via the two thresholds.
func (p *Predictor) Decide(score float64) string {
	switch {
	case score < p.thresholdAllow:
		return DecisionAllow
	case score < p.thresholdBlock:
		return DecisionStepUp
	default:
		return DecisionBlock
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
