package feature

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/pithecene-io/assay/log"
	"github.com/pithecene-io/assay/metrics"
	"github.com/pithecene-io/assay/stream"
	"github.com/pithecene-io/assay/types"
)

// ErrAlreadyRunning reports a second Run on the same Featurizer. The cursor
// and the window map tolerate exactly one consumer loop.
var ErrAlreadyRunning = errors.New("featurizer already running")

// readBackoff is the pause after an event-log read failure.
const readBackoff = time.Second

// Featurizer drives the Stage B loop: tail the event log, maintain per-user
// windows, and publish feature snapshots.
//
// All window state is owned by the single Run loop; no locking is needed
// between events.
type Featurizer struct {
	consumer *stream.Consumer
	store    *Store
	logger   *log.Logger
	metrics  *metrics.Featurizer

	windows map[string]*Window
	running atomic.Bool

	// now is swappable for tests that steer eviction.
	now func() time.Time
}

// NewFeaturizer wires a consumer and a feature store into a featurizer.
// Logger and metrics are optional.
func NewFeaturizer(consumer *stream.Consumer, store *Store, logger *log.Logger, m *metrics.Featurizer) *Featurizer {
	return &Featurizer{
		consumer: consumer,
		store:    store,
		logger:   logger,
		metrics:  m,
		windows:  make(map[string]*Window),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run consumes the event log until ctx is cancelled. Read failures back off
// one second and retry with the same cursor; per-event failures are logged
// and skipped so one poison entry cannot stall the stream.
func (f *Featurizer) Run(ctx context.Context) error {
	if !f.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer f.running.Store(false)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		entries, err := f.consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logError("stream read failed", err, "")
			select {
			case <-time.After(readBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		for _, entry := range entries {
			if err := f.processEntry(ctx, entry); err != nil {
				// Cursor already advanced past this entry; drop it.
				f.logError("event processing failed", err, entry.ID)
			}
		}
	}
}

// processEntry decodes one log entry and runs the window update, feature
// derivation, and snapshot publish for it.
func (f *Featurizer) processEntry(ctx context.Context, e stream.Entry) error {
	event, err := e.Event()
	if err != nil {
		return err
	}
	return f.Apply(ctx, event)
}

// Apply folds one validated event into its user's window and publishes the
// resulting snapshot. Events without a user cannot be keyed and are rejected
// before any window state is touched.
func (f *Featurizer) Apply(ctx context.Context, event *types.TransactionEvent) error {
	if event.UserID == "" {
		return types.ErrMissingUserID
	}

	eventTS, err := event.EventTime()
	if err != nil {
		return err
	}

	now := f.now()

	w := f.windows[event.UserID]
	if w == nil {
		w = &Window{}
		f.windows[event.UserID] = w
	}

	// Insert first, then evict, then derive. The current event is part of
	// every horizon count and closes the churn traversal.
	w.Add(event, eventTS)
	w.EvictBefore(now.Add(-Retention))

	fields := f.snapshotFields(event, Compute(event, w, now), now)

	start := time.Now()
	if err := f.store.WriteSnapshot(ctx, event.UserID, fields); err != nil {
		return err
	}

	if m := f.metrics; m != nil {
		m.WriteLatency.Observe(time.Since(start).Seconds())
		m.UpdatesTotal.Inc()
		m.FreshnessLag.Observe(max(0, now.Sub(eventTS).Seconds()))
	}
	return nil
}

// snapshotFields merges the opaque passthrough features, the derived
// behavioral features, and the two timestamp fields into one snapshot.
func (f *Featurizer) snapshotFields(event *types.TransactionEvent, fs FeatureSet, now time.Time) map[string]string {
	fields := fs.Fields()

	values := event.ModelFeatures()
	for i, name := range types.ModelFeatureNames {
		fields[name] = types.FormatFloat(values[i])
	}

	fields["last_event_ts"] = event.Ts
	fields["last_feature_update_ts"] = now.UTC().Format(time.RFC3339Nano)
	return fields
}

// WindowFor exposes a user's window for inspection; nil if the user has not
// been seen.
func (f *Featurizer) WindowFor(userID string) *Window {
	return f.windows[userID]
}

func (f *Featurizer) logError(msg string, err error, entryID string) {
	if f.logger == nil {
		return
	}
	fields := map[string]any{"error": err.Error()}
	if entryID != "" {
		fields["entry_id"] = entryID
	}
	f.logger.Error(msg, fields)
}
