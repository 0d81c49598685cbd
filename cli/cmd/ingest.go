package cmd

import (
	"context"
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/assay/api"
	"github.com/pithecene-io/assay/config"
	"github.com/pithecene-io/assay/iox"
	"github.com/pithecene-io/assay/log"
	"github.com/pithecene-io/assay/metrics"
	"github.com/pithecene-io/assay/sink"
	"github.com/pithecene-io/assay/storage"
	"github.com/pithecene-io/assay/stream"
)

// IngestCommand returns the ingest service command.
func IngestCommand() *cli.Command {
	return &cli.Command{
		Name:   "ingest",
		Usage:  "Run the event ingest service",
		Flags:  ServiceFlags(),
		Action: ingestAction,
	}
}

func ingestAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger := log.NewLogger("ingest")

	ctx, stop := signalContext(c.Context)
	defer stop()

	store, err := newBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	m := metrics.NewIngest()
	writer := sink.NewWriter(store, sink.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval.Duration,
		Logger:        logger,
		Metrics:       m,
	})
	// Close stops the flush loop, drains the buffer, and closes the store.
	defer iox.DiscardErr(writer.Close)

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()})
	defer iox.DiscardClose(client)

	publisher := stream.NewPublisher(client, cfg.StreamKey, 0)
	handler := api.NewIngest(writer, publisher, m, logger)
	server := api.NewServer(cfg.ListenAddr, handler.Routes(), logger)

	logger.Info("ingest starting", map[string]any{
		"addr":       cfg.ListenAddr,
		"stream_key": cfg.StreamKey,
		"batch_size": cfg.BatchSize,
	})

	if err := server.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newBlobStore selects the blob backend: S3 when a bucket is configured,
// local filesystem otherwise.
func newBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	if cfg.Storage.Bucket != "" {
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:       cfg.Storage.Bucket,
			Prefix:       cfg.Storage.Path,
			Region:       cfg.Storage.Region,
			Endpoint:     cfg.Storage.Endpoint,
			UsePathStyle: cfg.Storage.PathStyle,
		})
	}
	return storage.NewFSStore(cfg.Storage.Path)
}
