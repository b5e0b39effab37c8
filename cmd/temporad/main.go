package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"

	"tempora/internal/api"
	"tempora/internal/config"
	"tempora/internal/horizon"
	"tempora/internal/model"
	"tempora/internal/storage"
	"tempora/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./tempora.yaml", "path to config yaml/json")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, closer, err := logx.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	mgr.SetLogger(log)

	busyTimeout, err := cfg.BusyTimeout()
	if err != nil {
		return err
	}
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
		// Reading through the manager keeps edited preference defaults
		// live across config reloads.
		Defaults: func() model.Preferences { return mgr.Get().PreferenceDefaults() },
	}, log.With(logx.String("component", "storage")))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	srv := api.NewServer(api.Config{
		Addr:              cfg.Server.Addr,
		OptimizePerMinute: cfg.Server.OptimizePerMinute,
	}, store, log.With(logx.String("component", "api")))

	errCh := make(chan error, 3)
	go func() { errCh <- srv.Run(ctx) }()

	if cfg.Horizon.Enabled {
		svc := horizon.New(store, horizon.Config{
			Cron: cfg.Horizon.Cron,
			Days: cfg.Horizon.Days,
		}, log.With(logx.String("component", "horizon")))
		go func() { errCh <- svc.Start(ctx) }()
	}

	go func() { errCh <- mgr.Watch(ctx) }()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	log.Info("tempora started",
		logx.String("addr", cfg.Server.Addr),
		logx.String("storage", cfg.Storage.Driver))

	select {
	case <-ctx.Done():
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
