package cmd

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/assay/api"
	"github.com/pithecene-io/assay/feature"
	"github.com/pithecene-io/assay/infer"
	"github.com/pithecene-io/assay/iox"
	"github.com/pithecene-io/assay/log"
	"github.com/pithecene-io/assay/metrics"
	"github.com/pithecene-io/assay/model"
)

// InferCommand returns the inference service command.
func InferCommand() *cli.Command {
	return &cli.Command{
		Name:   "infer",
		Usage:  "Run the risk inference service",
		Flags:  ServiceFlags(),
		Action: inferAction,
	}
}

func inferAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.ModelPath == "" {
		return errors.New("MODEL_PATH is required for the inference service")
	}

	logger := log.NewLogger("infer")

	// Startup failures are fatal; a service without a model cannot answer.
	scorer, err := model.Load(cfg.ModelPath)
	if err != nil {
		return err
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()})
	defer iox.DiscardClose(client)

	store := feature.NewStore(client)
	predictor := infer.NewPredictor(store, scorer, cfg.ThresholdAllow, cfg.ThresholdBlock)
	handler := api.NewInfer(predictor, store, metrics.NewInfer(), logger)
	server := api.NewServer(cfg.ListenAddr, handler.Routes(), logger)

	logger.Info("infer starting", map[string]any{
		"addr":            cfg.ListenAddr,
		"model_path":      cfg.ModelPath,
		"threshold_allow": cfg.ThresholdAllow,
		"threshold_block": cfg.ThresholdBlock,
	})

	ctx, stop := signalContext(c.Context)
	defer stop()

	if err := server.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
