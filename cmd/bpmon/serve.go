package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/bpmon"
	"github.com/loykin/bpmon/internal/client"
	"github.com/loykin/bpmon/internal/logger"
)

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	ConfigPath string
}

// createServeCommand creates the serve subcommand.
func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	serveFlags := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the bpmon daemon",
		Long: `Start the bpmon daemon. All configuration is loaded from the TOML
config file.

Examples:
  bpmon serve config.toml
  bpmon serve --config=config.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			serveFlags.ConfigPath = globalFlags.ConfigPath
			if len(args) > 0 {
				serveFlags.ConfigPath = args[0]
			}
			return runServe(serveFlags)
		},
	}
	return cmd
}

func runServe(flags *ServeFlags) error {
	if flags.ConfigPath == "" {
		return fmt.Errorf("config file required. Use --config=config.toml or provide as argument")
	}

	cfg, err := bpmon.LoadConfig(flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Path:       cfg.Log.Path,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	slog.SetDefault(log)

	store, err := bpmon.NewStore(cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("open store %s: %w", cfg.Store.DSN, err)
	}
	defer func() { _ = store.Close() }()

	clients := func() (*client.Client, error) {
		return client.New(client.Config{
			BaseURL:   cfg.BaseURL,
			Username:  cfg.Auth.Username,
			Password:  cfg.Auth.Password,
			APIKey:    cfg.Auth.APIKey,
			VerifySSL: cfg.TLS.VerifySSL,
			CABundle:  cfg.TLS.CABundle,
			Timeout:   cfg.CheckTimeout,
			Logger:    log,
		})
	}

	if cfg.Metrics.Enabled {
		if err := bpmon.RegisterMetricsDefault(); err != nil {
			log.Warn("failed to register metrics", "error", err)
		}
		if cfg.Metrics.Listen != "" {
			go func() {
				if err := bpmon.ServeMetrics(cfg.Metrics.Listen); err != nil {
					log.Error("metrics listener failed", "error", err)
				}
			}()
		}
	}

	mgr := bpmon.NewManager(store, clients, bpmon.WithCheckTimeout(cfg.CheckTimeout))
	mgr.Start()
	defer mgr.Stop()

	srv, err := bpmon.NewHTTPServer(cfg.Server.Listen, cfg.Server.BasePath, mgr, clients)
	if err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	log.Info("bpmon serving",
		"listen", cfg.Server.Listen,
		"base_path", cfg.Server.BasePath,
		"upstream", cfg.BaseURL,
		"bearer_mode", cfg.BearerMode())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
