// Package sink implements the buffered columnar writer for Stage A.
//
// Validated events accumulate in an in-memory buffer and are flushed as
// snappy-compressed parquet blobs to hour-partitioned paths, triggered by
// batch size or a background interval.
package sink

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/pithecene-io/assay/types"
)

// encodeBatch renders a batch of events as one snappy-compressed parquet
// blob. The column schema is derived from the event struct tags and matches
// the ingest schema field-for-field.
func encodeBatch(events []*types.TransactionEvent) ([]byte, error) {
	var buf bytes.Buffer

	w := parquet.NewGenericWriter[types.TransactionEvent](&buf, parquet.Compression(&parquet.Snappy))

	rows := make([]types.TransactionEvent, len(events))
	for i, e := range events {
		rows[i] = *e
	}
	if _, err := w.Write(rows); err != nil {
		return nil, fmt.Errorf("parquet write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("parquet close: %w", err)
	}

	return buf.Bytes(), nil
}

// decodeBatch reads all events back from a parquet blob. Test helper and
// debugging aid; the pipeline itself never reads blobs.
func decodeBatch(data []byte) ([]types.TransactionEvent, error) {
	return parquet.Read[types.TransactionEvent](bytes.NewReader(data), int64(len(data)))
}

// blobKey computes the partitioned storage key for a batch. The partition
// is derived from the timestamp of the FIRST event in the batch; later rows
// may spill past the hour boundary but stay in the same blob, preserving
// burst locality.
func blobKey(first time.Time) string {
	u := uuid.New()
	return fmt.Sprintf("events/dt=%s/hour=%s/events-%s.parquet",
		first.UTC().Format("2006-01-02"),
		first.UTC().Format("15"),
		hex.EncodeToString(u[:])[:8],
	)
}
