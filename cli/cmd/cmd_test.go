package cmd

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/assay/types"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	app := &cli.App{
		Writer:   &out,
		Commands: []*cli.Command{VersionCommand("abc1234")},
	}

	if err := app.Run([]string{"assay", "version"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, types.Version) || !strings.Contains(got, "abc1234") {
		t.Errorf("unexpected version output %q", got)
	}
}

func TestLoadConfig_DefaultListenAddr(t *testing.T) {
	app := cli.NewApp()
	set := flagSet(t, app)

	cfg, err := loadConfig(cli.NewContext(app, set, nil))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("expected %s, got %s", DefaultListenAddr, cfg.ListenAddr)
	}
}

func TestLoadConfig_ListenAddrFromEnv(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9100")

	app := cli.NewApp()
	cfg, err := loadConfig(cli.NewContext(app, flagSet(t, app), nil))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.ListenAddr != ":9100" {
		t.Errorf("expected :9100, got %s", cfg.ListenAddr)
	}
}

func TestRunUntilSignal_PropagatesTaskError(t *testing.T) {
	sentinel := errors.New("task blew up")

	err := runUntilSignal(context.Background(),
		func(ctx context.Context) error {
			return sentinel
		},
		func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	)
	if !errors.Is(err, sentinel) {
		t.Errorf("expected task error, got %v", err)
	}
}

func TestRunUntilSignal_CleanCancelIsNil(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := runUntilSignal(ctx,
		func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	)
	if err != nil {
		t.Errorf("expected nil on clean shutdown, got %v", err)
	}
}

func flagSet(t *testing.T, _ *cli.App) *flag.FlagSet {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range ServiceFlags() {
		if err := f.Apply(set); err != nil {
			t.Fatalf("apply flag: %v", err)
		}
	}
	return set
}
