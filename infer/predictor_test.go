package infer

import (
	"context"
	"reflect"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pithecene-io/assay/feature"
	"github.com/pithecene-io/assay/model"
	"github.com/pithecene-io/assay/types"
)

func testStore(t *testing.T) (*feature.Store, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return feature.NewStore(client), client
}

func TestBuildVector_FixedOrder(t *testing.T) {
	fields := map[string]string{
		"V1":                "1.5",
		"V28":               "-2",
		"Amount_normalized": "0.25",
		"V5":                "not-a-number",
	}

	vec := BuildVector(fields)
	if len(vec) != types.ModelFeatureCount {
		t.Fatalf("expected %d entries, got %d", types.ModelFeatureCount, len(vec))
	}
	if vec[0] != 1.5 {
		t.Errorf("V1 slot: %v", vec[0])
	}
	if vec[27] != -2 {
		t.Errorf("V28 slot: %v", vec[27])
	}
	if vec[28] != 0.25 {
		t.Errorf("Amount_normalized slot: %v", vec[28])
	}
	if vec[4] != 0 {
		t.Errorf("non-numeric field must map to 0, got %v", vec[4])
	}
}

func TestReasons_PriorityAndCap(t *testing.T) {
	fields := map[string]string{
		"txns_last_5m":         "6",
		"txns_last_1h":         "21",
		"avg_amount_1h":        "50",
		"amount_zscore":        "3.5",
		"device_churn_24h":     "3",
		"ip_changes_24h":       "4",
		"merchant_velocity_1h": "6",
	}

	got := Reasons(fields)
	want := []string{"high_velocity_5m", "unusual_amount", "high_device_churn"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestReasons_ThresholdsAreStrict(t *testing.T) {
	// Every value exactly at its threshold; nothing fires.
	fields := map[string]string{
		"txns_last_5m":         "5",
		"txns_last_1h":         "20",
		"avg_amount_1h":        "50",
		"amount_zscore":        "3.0",
		"device_churn_24h":     "2",
		"ip_changes_24h":       "3",
		"merchant_velocity_1h": "5",
	}

	got := Reasons(fields)
	if !reflect.DeepEqual(got, []string{"no_significant_indicators"}) {
		t.Errorf("expected fallback reason, got %v", got)
	}
}

func TestReasons_UnusualAmountNeedsSpend(t *testing.T) {
	// High z-score without 1h spend must not fire.
	fields := map[string]string{
		"avg_amount_1h": "0",
		"amount_zscore": "10",
	}
	got := Reasons(fields)
	if !reflect.DeepEqual(got, []string{"no_significant_indicators"}) {
		t.Errorf("expected fallback, got %v", got)
	}
}

func TestPredict_MissingUser(t *testing.T) {
	store, _ := testStore(t)
	p := NewPredictor(store, model.Constant{V: 0.1}, 0, 0)

	pred, err := p.Predict(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if pred.Decision != DecisionAllow {
		t.Errorf("expected allow, got %s", pred.Decision)
	}
	if !reflect.DeepEqual(pred.Reasons, []string{"missing_features"}) {
		t.Errorf("expected missing_features, got %v", pred.Reasons)
	}
	if pred.RiskScore != 0.1 {
		t.Errorf("expected 0.1, got %v", pred.RiskScore)
	}
}

func TestPredict_SnapshotReasons(t *testing.T) {
	store, _ := testStore(t)
	fields := map[string]string{
		"txns_last_5m": "6",
		"V1":           "0.5",
	}
	if err := store.WriteSnapshot(context.Background(), "u2", fields); err != nil {
		t.Fatalf("write: %v", err)
	}

	p := NewPredictor(store, model.Constant{V: 0.85}, 0, 0)
	pred, err := p.Predict(context.Background(), "u2")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if pred.Decision != DecisionBlock {
		t.Errorf("expected block, got %s", pred.Decision)
	}
	if !reflect.DeepEqual(pred.Reasons, []string{"high_velocity_5m"}) {
		t.Errorf("expected high_velocity_5m, got %v", pred.Reasons)
	}
}

func TestPredict_RoundsScore(t *testing.T) {
	store, _ := testStore(t)
	p := NewPredictor(store, model.Constant{V: 0.123456}, 0, 0)

	pred, err := p.Predict(context.Background(), "u3")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if pred.RiskScore != 0.1235 {
		t.Errorf("expected 0.1235, got %v", pred.RiskScore)
	}
}

func TestDecide_Thresholds(t *testing.T) {
	store, _ := testStore(t)
	p := NewPredictor(store, model.Constant{V: 0}, 0.3, 0.7)

	tests := []struct {
		score float64
		want  string
	}{
		{0.0, DecisionAllow},
		{0.29, DecisionAllow},
		{0.3, DecisionStepUp},
		{0.69, DecisionStepUp},
		{0.7, DecisionBlock},
		{1.0, DecisionBlock},
	}
	for _, tc := range tests {
		if got := p.Decide(tc.score); got != tc.want {
			t.Errorf("score %v: expected %s, got %s", tc.score, tc.want, got)
		}
	}
}
