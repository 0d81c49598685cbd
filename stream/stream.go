// Package stream carries events between pipeline stages over a Redis stream.
//
// The stream is a capped ring: XADD with MAXLEN trims the oldest entries once
// the cap is reached, bounding memory at the cost of losing history when the
// consumer falls behind the trim horizon.
package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pithecene-io/assay/types"
)

const (
	// DefaultMaxLen caps the stream; Redis trims approximately (~) for speed.
	DefaultMaxLen = 10000

	// DefaultReadCount bounds entries per consumer read.
	DefaultReadCount = 10

	// DefaultBlock is how long a read waits for new entries before returning
	// empty. Must stay non-zero: a zero BLOCK means block forever.
	DefaultBlock = time.Second
)

// Entry is one raw stream record: the Redis-assigned ID plus the event fields
// as written by the publisher. Decoding is left to the consumer so one
// malformed record cannot take down the read path.
type Entry struct {
	ID     string
	Fields map[string]string
}

// Event decodes the entry's fields into a transaction event.
func (e Entry) Event() (*types.TransactionEvent, error) {
	return types.EventFromRecord(e.Fields)
}

// Publisher appends events to the stream.
type Publisher struct {
	client *redis.Client
	key    string
	maxLen int64
}

// NewPublisher creates a publisher on the given stream key. maxLen <= 0 uses
// DefaultMaxLen.
func NewPublisher(client *redis.Client, key string, maxLen int64) *Publisher {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	return &Publisher{client: client, key: key, maxLen: maxLen}
}

// Ping verifies the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Publish appends one event and returns the assigned stream ID.
func (p *Publisher) Publish(ctx context.Context, event *types.TransactionEvent) (string, error) {
	record := event.Record()
	values := make(map[string]any, len(record))
	for k, v := range record {
		values[k] = v
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.key,
		MaxLen: p.maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", p.key, err)
	}
	return id, nil
}

// Consumer reads the stream with a private in-memory cursor.
//
// There are no consumer groups and no acknowledgements: exactly one consumer
// process reads the stream, and the cursor starts at the beginning of the
// retained window on every boot. Entries still in the ring are reprocessed
// after a restart; feature writes are idempotent per event so the replay is
// harmless.
type Consumer struct {
	client *redis.Client
	key    string
	count  int64
	block  time.Duration

	cursor string
}

// NewConsumer creates a consumer positioned at the start of the stream.
// count <= 0 uses DefaultReadCount; block <= 0 uses DefaultBlock.
func NewConsumer(client *redis.Client, key string, count int64, block time.Duration) *Consumer {
	if count <= 0 {
		count = DefaultReadCount
	}
	if block <= 0 {
		block = DefaultBlock
	}
	return &Consumer{
		client: client,
		key:    key,
		count:  count,
		block:  block,
		cursor: "0",
	}
}

// Cursor returns the last-read stream ID, or "0" before the first read.
func (c *Consumer) Cursor() string {
	return c.cursor
}

// Read returns the next batch of entries after the cursor, blocking up to the
// configured interval when the stream is drained. A block timeout returns an
// empty batch and a nil error. The cursor advances past every returned entry,
// including ones that later fail to decode.
func (c *Consumer) Read(ctx context.Context) ([]Entry, error) {
	streams, err := c.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{c.key, c.cursor},
		Count:   c.count,
		Block:   c.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		// BLOCK expired with nothing new.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xread %s: %w", c.key, err)
	}

	var entries []Entry
	for _, s := range streams {
		for _, msg := range s.Messages {
			entries = append(entries, Entry{ID: msg.ID, Fields: stringFields(msg.Values)})
			c.cursor = msg.ID
		}
	}
	return entries, nil
}

// Ping verifies the Redis connection.
func (c *Consumer) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func stringFields(values map[string]any) map[string]string {
	fields := make(map[string]string, len(values))
	for k, v := range values {
		if s, ok := v.(string); ok {
			fields[k] = s
		} else {
			fields[k] = fmt.Sprint(v)
		}
	}
	return fields
}
