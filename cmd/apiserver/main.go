// Package main runs the hand analysis REST and websocket API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ramonehamilton/NMJL-Companion/internal/api"
	"github.com/ramonehamilton/NMJL-Companion/internal/app"
	"github.com/ramonehamilton/NMJL-Companion/internal/config"
	"github.com/ramonehamilton/NMJL-Companion/internal/logging"
	"github.com/ramonehamilton/NMJL-Companion/internal/version"
)

var (
	configPath = flag.String("config", "", "Config file (default: ~/.nmjl-companion/config.toml)")
	envFile    = flag.String("env", ".env", "Env file loaded before NMJL_* overrides")
	port       = flag.Int("port", 0, "API server port (overrides config)")
	dbPath     = flag.String("db-path", "", "Catalog store path (overrides config)")
	watch      = flag.Bool("watch", true, "Reload policies when the config file changes")
	debug      = flag.Bool("debug", false, "Mount /debug/statsviz and log at debug level")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "apiserver:", err)
		os.Exit(1)
	}
}

func run() error {
	path := *configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := config.LoadEnv(*envFile); err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Storage.Path = *dbPath
	}
	if *debug {
		cfg.Server.Debug = true
		cfg.Logging.Level = "debug"
	}

	logger := logging.Init("nmjl-api", cfg.Logging.Level)
	logger.Info("starting", "version", version.GetVersion(), "config", path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("error closing services", "err", err)
		}
	}()

	if *watch {
		watcher := config.NewWatcher(path, func(next *config.Config) {
			if err := a.Reload(ctx, next, path); err != nil {
				logger.Warn("config reload rejected", "err", err)
			}
		}, logger)
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("config watcher stopped", "err", err)
			}
		}()
	}

	server, err := api.NewServer(&api.Config{
		Port:           cfg.Server.Port,
		CORSOrigins:    cfg.Server.CORSOrigins,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		RequestTimeout: cfg.RequestTimeout(),
		ScanTimeout:    cfg.ScanTimeout(),
		Debug:          cfg.Server.Debug,
	}, api.Deps{
		Engine:  a.Engine,
		Storage: a.Storage,
		Events:  a.Events,
	}, logger)
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}
	logger.Info("API server running", "url", fmt.Sprintf("http://localhost:%d", cfg.Server.Port))

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("API server stopped")
	return nil
}
