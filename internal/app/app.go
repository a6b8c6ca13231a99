// Package app provides application initialization and wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jobrunner/tarantula/internal/adapters/cache"
	httpAdapter "github.com/jobrunner/tarantula/internal/adapters/http"
	"github.com/jobrunner/tarantula/internal/adapters/metrics"
	"github.com/jobrunner/tarantula/internal/adapters/source"
	"github.com/jobrunner/tarantula/internal/adapters/storage"
	tlsAdapter "github.com/jobrunner/tarantula/internal/adapters/tls"
	"github.com/jobrunner/tarantula/internal/adapters/watcher"
	"github.com/jobrunner/tarantula/internal/application"
	"github.com/jobrunner/tarantula/internal/config"
	"github.com/jobrunner/tarantula/internal/domain"
	"github.com/jobrunner/tarantula/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Storage       output.ObjectStorage
	Source        *source.Router
	PostGIS       *source.PostGIS
	Cache         *cache.RedisCache
	Registry      *application.LayerRegistry
	SearchService *application.SearchService
	HealthService *application.HealthService
	SyncService   *application.SyncService
	HTTPServer    *httpAdapter.Server
	Server        *tlsAdapter.Server
	Watcher       *watcher.Watcher
	Metrics       *metrics.Collector
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	var metricsCollector output.MetricsCollector = &output.NoOpMetrics{}
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector(cfg.Metrics.Namespace, nil)
		metricsCollector = app.Metrics
	}

	store, err := initStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	app.Storage = store

	if err := app.initSources(cfg.Search, metricsCollector); err != nil {
		return nil, err
	}

	var opts []application.RegistryOption
	if app.PostGIS != nil {
		opts = append(opts, application.WithPostGIS(source.PostGISPath))
	}
	app.Registry = application.NewLayerRegistry(
		NewCatalog(cfg.Search),
		app.Source,
		app.Storage,
		metricsCollector,
		logger,
		cfg.Storage.LocalPath,
		opts...,
	)

	var resultCache output.ResultCache
	if cfg.Cache.Enabled {
		app.Cache = cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			TTL:      cfg.Cache.TTL,
			Prefix:   cfg.Cache.Prefix,
		}, logger)
		resultCache = app.Cache
	}

	app.SearchService = application.NewSearchService(
		app.Registry,
		resultCache,
		metricsCollector,
		logger,
		application.SearchServiceConfig{Debug: cfg.Search.Debug},
	)

	app.HealthService = application.NewHealthService(app.Registry)
	if app.Cache != nil {
		app.HealthService.AddCheck("cache", app.Cache.Ping)
	}

	var serverOpts []httpAdapter.Option
	if cfg.Sync.Enabled {
		app.SyncService = application.NewSyncService(app.Registry, cfg.Sync.Interval, logger,
			application.WithCooldown(cfg.Sync.Cooldown))
		app.SyncService.OnChange(app.SearchService.Invalidate)
		serverOpts = append(serverOpts, httpAdapter.WithSync(app.SyncService))
	}
	if app.Metrics != nil {
		serverOpts = append(serverOpts, httpAdapter.WithMiddleware(app.Metrics.Middleware))
	}

	app.HTTPServer = httpAdapter.NewServer(
		cfg.Server,
		app.SearchService,
		app.Registry,
		app.HealthService,
		logger,
		serverOpts...,
	)
	if app.Metrics != nil {
		app.HTTPServer.Router().Handle(cfg.Metrics.Path, metrics.Handler())
	}

	app.Server, err = tlsAdapter.NewServer(
		tlsAdapter.Config{
			Enabled:  cfg.TLS.Enabled,
			Domains:  cfg.TLS.Domains,
			Email:    cfg.TLS.Email,
			CacheDir: cfg.TLS.CacheDir,
			Staging:  cfg.TLS.Staging,
			DNS: tlsAdapter.DNSConfig{
				SubscriptionID:    cfg.TLS.DNS.SubscriptionID,
				ResourceGroupName: cfg.TLS.DNS.ResourceGroupName,
				ClientID:          cfg.TLS.DNS.ClientID,
			},
		},
		tlsAdapter.Timeouts{
			Read:  cfg.Server.ReadTimeout,
			Write: cfg.Server.WriteTimeout,
			Idle:  cfg.Server.IdleTimeout,
		},
		app.HTTPServer.Router(),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("initializing TLS: %w", err)
	}

	// Hot reload only works on files we own.
	if output.StorageType(cfg.Storage.Type) == output.StorageTypeLocal && cfg.Watch.Enabled && app.PostGIS == nil {
		w, err := watcher.New(
			watcher.Config{
				Paths:    []string{cfg.Storage.LocalPath},
				Debounce: cfg.Watch.Debounce,
			},
			app.handleFileEvent,
			logger,
		)
		if err != nil {
			logger.Warn("failed to initialize file watcher", "error", err)
		} else {
			app.Watcher = w
		}
	}

	return app, nil
}

// initSources sets up the layer readers. Layers come from PostGIS when a DSN
// is configured and from layer files otherwise.
func (a *App) initSources(cfg config.SearchConfig, m output.MetricsCollector) error {
	builder := source.NewBuilder(source.BuildOptions{
		Debug:     cfg.Debug,
		DebugName: cfg.DebugName,
		Strict:    cfg.Strict,
	}, m, a.Logger)

	sources := []output.LayerSource{
		source.NewShapefile(builder),
		source.NewGeoJSON(builder),
		source.NewGeoPackage(builder),
	}

	if cfg.PostGIS.Enabled() {
		pg, err := source.NewPostGIS(source.PostGISConfig{
			DSN:            cfg.PostGIS.DSN,
			Schema:         cfg.PostGIS.Schema,
			GeometryColumn: cfg.PostGIS.GeometryColumn,
			DistrictColumn: cfg.PostGIS.DistrictColumn,
		}, builder)
		if err != nil {
			return fmt.Errorf("initializing postgis: %w", err)
		}
		a.PostGIS = pg
		sources = append(sources, pg)
	}

	a.Source = source.NewRouter(sources...)
	return nil
}

// NewCatalog builds the layer catalog from the search configuration.
func NewCatalog(cfg config.SearchConfig) application.Catalog {
	layers := make(map[string]domain.LayerSpec, len(cfg.Layers))
	for name, l := range cfg.Layers {
		layers[name] = domain.LayerSpec{
			Name:          name,
			Level:         l.Level,
			Attributes:    l.Attributes,
			NameAttribute: l.NameAttribute,
			Encoding:      l.Encoding,
		}
	}

	return application.Catalog{
		Districts:      cfg.Districts,
		Hierarchies:    cfg.Hierarchies,
		DistrictPar:    cfg.DistrictPar,
		DistrictParAny: cfg.DistrictParAny,
		Layers:         layers,
	}
}

// Start loads the layers and serves requests until Shutdown is called.
func (a *App) Start(ctx context.Context) error {
	if err := a.Registry.LoadAll(ctx); err != nil {
		a.Logger.Warn("failed to load layers", "error", err)
	}

	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			a.Logger.Warn("failed to start file watcher", "error", err)
		}
	}

	if a.SyncService != nil {
		a.SyncService.Start(ctx)
	}

	return a.Server.ListenAndServe(a.Config.Server.Address())
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}

	if a.SyncService != nil {
		a.SyncService.Stop()
	}

	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		a.Logger.Error("server shutdown error", "error", err)
		errs = append(errs, err)
	}

	layers, _ := a.Registry.ListLayers(ctx)
	for _, layer := range layers {
		if err := a.Registry.UnloadLayer(ctx, layer.ID); err != nil {
			a.Logger.Error("failed to unload layer", "id", layer.ID, "error", err)
		}
	}

	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing cache: %w", err))
		}
	}
	if a.PostGIS != nil {
		if err := a.PostGIS.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing postgis: %w", err))
		}
	}

	return errors.Join(errs...)
}

// handleFileEvent reloads or drops the layer behind a changed file.
func (a *App) handleFileEvent(ctx context.Context, event watcher.Event) error {
	a.Logger.Info("file event", "path", event.Path, "operation", event.Operation.String())

	var err error
	switch event.Operation {
	case watcher.OpCreate, watcher.OpModify:
		err = a.Registry.LoadLayer(ctx, event.Path)
	case watcher.OpDelete:
		err = a.Registry.UnloadPath(ctx, event.Path)
	}

	// Files outside the catalog are expected in a watched directory.
	if errors.Is(err, domain.ErrLayerNotFound) {
		a.Logger.Debug("ignoring file outside the catalog", "path", event.Path)
		return nil
	}
	if err != nil {
		return err
	}

	a.SearchService.Invalidate(ctx)
	return nil
}

// initStorage initializes the appropriate storage adapter.
func initStorage(ctx context.Context, cfg config.StorageConfig) (output.ObjectStorage, error) {
	switch output.StorageType(cfg.Type) {
	case output.StorageTypeLocal:
		return storage.NewLocalStorage(cfg.LocalPath), nil

	case output.StorageTypeS3:
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})

	case output.StorageTypeAzure:
		return storage.NewAzureStorage(storage.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
		})

	case output.StorageTypeHTTP:
		return storage.NewHTTPStorage(storage.HTTPConfig{
			BaseURL:   cfg.HTTP.BaseURL,
			IndexFile: cfg.HTTP.IndexFile,
			Timeout:   cfg.HTTP.Timeout,
			Username:  cfg.HTTP.Username,
			Password:  cfg.HTTP.Password,
		}), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
