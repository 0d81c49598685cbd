// Package types defines the transaction event schema shared by all three
// pipeline stages, plus the string codec used on the event log.
package types

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ModelFeatureCount is the width of the scoring model's input vector.
const ModelFeatureCount = 29

// ModelFeatureNames lists the passthrough model features in vector order:
// V1..V28 followed by Amount_normalized. The order is fixed by training
// and must never change.
var ModelFeatureNames = buildModelFeatureNames()

func buildModelFeatureNames() []string {
	names := make([]string, 0, ModelFeatureCount)
	for i := 1; i <= 28; i++ {
		names = append(names, "V"+strconv.Itoa(i))
	}
	return append(names, "Amount_normalized")
}

// Validation errors. Use errors.Is for typed assertions.
var (
	ErrMissingEventID = errors.New("event_id is required")
	ErrMissingUserID  = errors.New("user_id is required")
	ErrNegativeAmount = errors.New("amount must be >= 0")
	ErrBadTimestamp   = errors.New("ts is not a valid ISO 8601 timestamp")
)

// TransactionEvent is the flat per-transaction record accepted at the
// ingest boundary, written to columnar storage, and republished on the
// event log. V1..V28 and Amount_normalized are opaque model features
// carried through untouched.
type TransactionEvent struct {
	EventID    string  `json:"event_id" parquet:"event_id"`
	Ts         string  `json:"ts" parquet:"ts"`
	UserID     string  `json:"user_id" parquet:"user_id"`
	Amount     float64 `json:"amount" parquet:"amount"`
	Currency   string  `json:"currency" parquet:"currency"`
	Country    string  `json:"country" parquet:"country"`
	DeviceID   string  `json:"device_id" parquet:"device_id"`
	IP         string  `json:"ip" parquet:"ip"`
	MerchantID string  `json:"merchant_id" parquet:"merchant_id"`

	V1  float64 `json:"V1" parquet:"V1"`
	V2  float64 `json:"V2" parquet:"V2"`
	V3  float64 `json:"V3" parquet:"V3"`
	V4  float64 `json:"V4" parquet:"V4"`
	V5  float64 `json:"V5" parquet:"V5"`
	V6  float64 `json:"V6" parquet:"V6"`
	V7  float64 `json:"V7" parquet:"V7"`
	V8  float64 `json:"V8" parquet:"V8"`
	V9  float64 `json:"V9" parquet:"V9"`
	V10 float64 `json:"V10" parquet:"V10"`
	V11 float64 `json:"V11" parquet:"V11"`
	V12 float64 `json:"V12" parquet:"V12"`
	V13 float64 `json:"V13" parquet:"V13"`
	V14 float64 `json:"V14" parquet:"V14"`
	V15 float64 `json:"V15" parquet:"V15"`
	V16 float64 `json:"V16" parquet:"V16"`
	V17 float64 `json:"V17" parquet:"V17"`
	V18 float64 `json:"V18" parquet:"V18"`
	V19 float64 `json:"V19" parquet:"V19"`
	V20 float64 `json:"V20" parquet:"V20"`
	V21 float64 `json:"V21" parquet:"V21"`
	V22 float64 `json:"V22" parquet:"V22"`
	V23 float64 `json:"V23" parquet:"V23"`
	V24 float64 `json:"V24" parquet:"V24"`
	V25 float64 `json:"V25" parquet:"V25"`
	V26 float64 `json:"V26" parquet:"V26"`
	V27 float64 `json:"V27" parquet:"V27"`
	V28 float64 `json:"V28" parquet:"V28"`

	AmountNormalized float64 `json:"Amount_normalized" parquet:"Amount_normalized"`
}

// vSlots returns pointers to V1..V28 in index order, for codec use.
func (e *TransactionEvent) vSlots() []*float64 {
	return []*float64{
		&e.V1, &e.V2, &e.V3, &e.V4, &e.V5, &e.V6, &e.V7,
		&e.V8, &e.V9, &e.V10, &e.V11, &e.V12, &e.V13, &e.V14,
		&e.V15, &e.V16, &e.V17, &e.V18, &e.V19, &e.V20, &e.V21,
		&e.V22, &e.V23, &e.V24, &e.V25, &e.V26, &e.V27, &e.V28,
	}
}

// Validate checks the ingest-boundary invariant: identifying fields present,
// amount non-negative, timestamp parseable.
func (e *TransactionEvent) Validate() error {
	if e.EventID == "" {
		return ErrMissingEventID
	}
	if e.UserID == "" {
		return ErrMissingUserID
	}
	if e.Amount < 0 {
		return ErrNegativeAmount
	}
	if _, err := e.EventTime(); err != nil {
		return err
	}
	return nil
}

// EventTime parses the logical event timestamp and normalizes it to UTC.
// All window comparisons across the pipeline operate on this naive-UTC value.
func (e *TransactionEvent) EventTime() (time.Time, error) {
	return ParseEventTime(e.Ts)
}

// ParseEventTime parses an ISO 8601 timestamp, with or without a zone
// offset, into naive UTC. Offset-less timestamps are taken as UTC.
func ParseEventTime(ts string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", ts); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, ts)
}

// FormatFloat renders a float the way the pipeline stringifies all numeric
// fields: shortest representation that round-trips at full precision.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Record flattens the event to the string map published on the event log.
// Every field is stringified; floats keep full precision.
func (e *TransactionEvent) Record() map[string]string {
	r := map[string]string{
		"event_id":    e.EventID,
		"ts":          e.Ts,
		"user_id":     e.UserID,
		"amount":      FormatFloat(e.Amount),
		"currency":    e.Currency,
		"country":     e.Country,
		"device_id":   e.DeviceID,
		"ip":          e.IP,
		"merchant_id": e.MerchantID,
	}
	for i, p := range e.vSlots() {
		r[ModelFeatureNames[i]] = FormatFloat(*p)
	}
	r["Amount_normalized"] = FormatFloat(e.AmountNormalized)
	return r
}

// EventFromRecord is the inverse of Record. Numeric fields that fail to
// parse are an error; the consumer treats such records as poison pills.
func EventFromRecord(r map[string]string) (*TransactionEvent, error) {
	e := &TransactionEvent{
		EventID:    r["event_id"],
		Ts:         r["ts"],
		UserID:     r["user_id"],
		Currency:   r["currency"],
		Country:    r["country"],
		DeviceID:   r["device_id"],
		IP:         r["ip"],
		MerchantID: r["merchant_id"],
	}

	amount, err := strconv.ParseFloat(r["amount"], 64)
	if err != nil {
		return nil, fmt.Errorf("record field amount: %w", err)
	}
	e.Amount = amount

	for i, p := range e.vSlots() {
		name := ModelFeatureNames[i]
		v, err := strconv.ParseFloat(r[name], 64)
		if err != nil {
			return nil, fmt.Errorf("record field %s: %w", name, err)
		}
		*p = v
	}
	norm, err := strconv.ParseFloat(r["Amount_normalized"], 64)
	if err != nil {
		return nil, fmt.Errorf("record field Amount_normalized: %w", err)
	}
	e.AmountNormalized = norm

	return e, nil
}

// ModelFeatures returns the 29 passthrough model features in vector order.
func (e *TransactionEvent) ModelFeatures() []float64 {
	out := make([]float64, 0, ModelFeatureCount)
	for _, p := range e.vSlots() {
		out = append(out, *p)
	}
	return append(out, e.AmountNormalized)
}
