package cmd

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/assay/api"
	"github.com/pithecene-io/assay/feature"
	"github.com/pithecene-io/assay/iox"
	"github.com/pithecene-io/assay/log"
	"github.com/pithecene-io/assay/metrics"
	"github.com/pithecene-io/assay/stream"
)

// FeaturizeCommand returns the featurizer service command.
func FeaturizeCommand() *cli.Command {
	return &cli.Command{
		Name:   "featurize",
		Usage:  "Run the feature computation service",
		Flags:  ServiceFlags(),
		Action: featurizeAction,
	}
}

func featurizeAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger := log.NewLogger("featurizer")

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()})
	defer iox.DiscardClose(client)

	consumer := stream.NewConsumer(client, cfg.StreamKey, 0, 0)
	store := feature.NewStore(client)
	m := metrics.NewFeaturizer()
	featurizer := feature.NewFeaturizer(consumer, store, logger, m)

	handler := api.NewFeaturize(consumer, m)
	server := api.NewServer(cfg.ListenAddr, handler.Routes(), logger)

	logger.Info("featurizer starting", map[string]any{
		"addr":       cfg.ListenAddr,
		"stream_key": cfg.StreamKey,
	})

	return runUntilSignal(c.Context, func(ctx context.Context) error {
		return featurizer.Run(ctx)
	}, func(ctx context.Context) error {
		return server.Run(ctx)
	})
}

// runUntilSignal runs the given tasks until one fails or a termination
// signal arrives, then cancels the rest and collects their exits. A
// context.Canceled exit is a clean shutdown, not an error.
func runUntilSignal(parent context.Context, tasks ...func(context.Context) error) error {
	ctx, stop := signalContext(parent)
	defer stop()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(tasks))
	for _, task := range tasks {
		go func(task func(context.Context) error) {
			errCh <- task(runCtx)
		}(task)
	}

	var first error
	for range tasks {
		err := <-errCh
		cancel()
		if err != nil && !errors.Is(err, context.Canceled) && first == nil {
			first = err
		}
	}
	return first
}
