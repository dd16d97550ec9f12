// Package app assembles the engine and its collaborators from configuration.
// Both binaries start through it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/ramonehamilton/NMJL-Companion/internal/cache"
	"github.com/ramonehamilton/NMJL-Companion/internal/config"
	"github.com/ramonehamilton/NMJL-Companion/internal/events"
	"github.com/ramonehamilton/NMJL-Companion/internal/logging"
	"github.com/ramonehamilton/NMJL-Companion/internal/metrics"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/catalog"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/engine"
	"github.com/ramonehamilton/NMJL-Companion/internal/storage"
)

// Catalog sources reported in logs and catalog:updated events.
const (
	SourceFile    = "file"
	SourceStore   = "store"
	SourceBuiltin = "builtin"
)

// App holds the running services.
type App struct {
	Config  *config.Config
	Engine  *engine.Engine
	Events  *events.Dispatcher
	Metrics *metrics.AnalysisMetrics
	// Storage is nil when no database path is configured.
	Storage *storage.Service
	// Cache is nil when caching is disabled.
	Cache cache.Store

	CatalogSource string

	nats   *events.NATSPublisher
	logger *log.Logger
}

// New opens the configured stores, resolves the catalog and builds the
// engine. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (_ *App, err error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger = logging.Or(logger)
	a := &App{
		Config:  cfg,
		Events:  events.NewDispatcher(logger),
		Metrics: metrics.NewAnalysisMetrics(),
		logger:  logger.With("component", "app"),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if logger.GetLevel() == log.DebugLevel {
		a.Events.Register(events.NewLoggingObserver(logger, false))
	}

	if cfg.Storage.Path != "" {
		db, err := storage.Open(storage.DefaultConfig(cfg.Storage.Path))
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.Storage = storage.NewService(db)
		a.Events.Register(storage.NewRunLog(a.Storage, logger))
		a.logger.Info("storage ready", "path", cfg.Storage.Path)
	}

	if a.Cache, err = cache.Open(ctx, cfg.CacheOptions(), logger); err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	if nc := cfg.NATSOptions(); nc.Enabled {
		pub, err := events.ConnectNATS(nc, logger)
		if err != nil {
			// Analysis does not depend on the bridge.
			a.logger.Warn("NATS bridge disabled", "err", err)
		} else {
			a.nats = pub
			a.Events.Register(pub)
			a.logger.Info("NATS bridge ready", "url", nc.URL, "subject", nc.Subject)
		}
	}

	cat, source, err := a.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	a.CatalogSource = source

	a.Engine, err = engine.New(cat, cfg.Policy, engine.Options{
		Store:             a.Cache,
		Metrics:           a.Metrics,
		Events:            a.Events,
		SlowScanThreshold: cfg.SlowThreshold(),
	}, logger)
	if err != nil {
		return nil, err
	}
	a.logger.Info("engine ready",
		"catalog", cat.Version(),
		"patterns", cat.Len(),
		"source", source,
		"policy", a.Engine.PolicyVersion(),
	)
	return a, nil
}

// loadCatalog resolves the catalog: the configured file, then the store, then
// the built-in card. A file or built-in catalog is written back to the store.
func (a *App) loadCatalog(ctx context.Context) (*catalog.Catalog, string, error) {
	if path := a.Config.Catalog.Path; path != "" {
		cat, err := LoadCatalogFile(path)
		if err != nil {
			return nil, "", err
		}
		a.remember(ctx, cat, path)
		return cat, SourceFile, nil
	}

	if a.Storage != nil {
		cat, err := a.Storage.LoadCatalog(ctx, catalog.DefaultMaxVariations)
		switch {
		case err == nil:
			return cat, SourceStore, nil
		case !errors.Is(err, storage.ErrNoCatalog):
			return nil, "", fmt.Errorf("load stored catalog: %w", err)
		}
	}

	cat, err := catalog.LoadBuiltin()
	if err != nil {
		return nil, "", err
	}
	a.remember(ctx, cat, SourceBuiltin)
	return cat, SourceBuiltin, nil
}

// remember saves cat to the store when one is configured. A failed save only
// costs the next start a reload.
func (a *App) remember(ctx context.Context, cat *catalog.Catalog, source string) {
	if a.Storage == nil {
		return
	}
	if err := a.Storage.SaveCatalog(ctx, cat, source); err != nil {
		a.logger.Warn("catalog not saved", "source", source, "err", err)
	}
}

// LoadCatalogFile reads and indexes a catalog file. Patterns that fail to
// expand are kept, so callers that need a clean card run catalog.Validate.
func LoadCatalogFile(path string) (*catalog.Catalog, error) {
	patterns, err := catalog.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	cat, err := catalog.New(patterns, catalog.DefaultMaxVariations)
	if err != nil {
		return nil, fmt.Errorf("index catalog %s: %w", path, err)
	}
	return cat, nil
}

// Reload applies a changed configuration: the log level and the engine
// policies. Other sections need a restart.
func (a *App) Reload(ctx context.Context, cfg *config.Config, source string) error {
	logging.SetLevel(cfg.Logging.Level)
	a.Config.Logging = cfg.Logging
	if cfg.Policy.Version() == a.Engine.PolicyVersion() {
		a.logger.Debug("config reloaded, policies unchanged", "source", source)
		return nil
	}
	if err := a.Engine.SetPolicies(ctx, cfg.Policy, source); err != nil {
		return fmt.Errorf("apply policies: %w", err)
	}
	a.Config.Policy = cfg.Policy
	return nil
}

// Close releases the cache, the NATS bridge and the store.
func (a *App) Close() error {
	var errs []error
	if a.nats != nil {
		a.Events.Unregister(a.nats)
		errs = append(errs, a.nats.Close())
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.Storage != nil {
		errs = append(errs, a.Storage.Close())
	}
	return errors.Join(errs...)
}
