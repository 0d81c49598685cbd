// Package feature implements the windowed aggregation engine for Stage B.
//
// A single consumer loop owns all per-user windows, derives behavioral
// features on every event, and publishes atomic per-user snapshots to the
// feature store.
package feature

import (
	"time"

	"github.com/pithecene-io/assay/types"
)

// Rolling horizons measured from wall-clock now at processing time.
const (
	Horizon5m  = 5 * time.Minute
	Horizon1h  = time.Hour
	Horizon24h = 24 * time.Hour

	// Retention bounds per-user window memory and the snapshot TTL.
	Retention = 48 * time.Hour
)

// entry pairs a retained event with its parsed timestamp so horizon scans
// never re-parse.
type entry struct {
	event *types.TransactionEvent
	ts    time.Time
}

// Window is the retained event history for one user, oldest first.
//
// Running aggregates cover ALL retained events and feed the cumulative
// z-score baseline. The invariant: totalAmount and amountCount always equal
// the sum and count of the amounts of currently retained events.
type Window struct {
	entries     []entry
	totalAmount float64
	amountCount int
}

// Add appends an event with its parsed timestamp. Events arrive in log
// order; the window does not re-sort.
func (w *Window) Add(event *types.TransactionEvent, ts time.Time) {
	w.entries = append(w.entries, entry{event: event, ts: ts})
	w.totalAmount += event.Amount
	w.amountCount++
}

// EvictBefore drops the prefix of events with ts < cutoff, decrementing the
// running aggregates. Amortized O(1) per insert; O(k) after a long idle gap.
func (w *Window) EvictBefore(cutoff time.Time) {
	i := 0
	for i < len(w.entries) && w.entries[i].ts.Before(cutoff) {
		w.totalAmount -= w.entries[i].event.Amount
		w.amountCount--
		i++
	}
	if i > 0 {
		w.entries = w.entries[i:]
	}
}

// Recent returns the retained events with ts >= now - horizon, oldest first.
func (w *Window) Recent(horizon time.Duration, now time.Time) []*types.TransactionEvent {
	cutoff := now.Add(-horizon)
	var out []*types.TransactionEvent
	for _, e := range w.entries {
		if !e.ts.Before(cutoff) {
			out = append(out, e.event)
		}
	}
	return out
}

// MeanAmount is the cumulative mean over all retained events, 0 when empty.
func (w *Window) MeanAmount() float64 {
	if w.amountCount == 0 {
		return 0
	}
	return w.totalAmount / float64(w.amountCount)
}

// Len returns the retained event count.
func (w *Window) Len() int { return len(w.entries) }

// TotalAmount returns the running amount sum over retained events.
func (w *Window) TotalAmount() float64 { return w.totalAmount }

// AmountCount returns the running count backing the z-score baseline.
func (w *Window) AmountCount() int { return w.amountCount }

// OldestTS returns the timestamp of the oldest retained event and whether
// the window is non-empty.
func (w *Window) OldestTS() (time.Time, bool) {
	if len(w.entries) == 0 {
		return time.Time{}, false
	}
	return w.entries[0].ts, true
}
