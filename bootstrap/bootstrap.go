// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cloudmeter/cloudmeter/adapters/clock"
	"github.com/cloudmeter/cloudmeter/adapters/graphite"
	"github.com/cloudmeter/cloudmeter/adapters/idgen"
	"github.com/cloudmeter/cloudmeter/adapters/metrics"
	"github.com/cloudmeter/cloudmeter/adapters/sqlite"
	"github.com/cloudmeter/cloudmeter/app"
	"github.com/cloudmeter/cloudmeter/config"
	"github.com/cloudmeter/cloudmeter/ports"
	"github.com/cloudmeter/cloudmeter/web"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	DB         *sqlite.DB
	Metrics    *metrics.Collector
	Reports    *app.Service
	HTTPServer *http.Server

	holder *config.Holder
}

// New creates and initializes the application from a loaded configuration.
func New(cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg.Logging)

	logger.Info().Msg("initializing cloudmeter")

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	a := &App{
		Logger: logger,
		Config: cfg,
		DB:     db,
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	var metricsSrc ports.MetricsSource
	if cfg.Graphite.URL != "" {
		metricsSrc = graphite.New(graphite.Config{
			BaseURL:  cfg.Graphite.URL,
			Timezone: cfg.Graphite.Timezone,
			Timeout:  cfg.Graphite.Timeout,
		}, logger)
	} else {
		logger.Warn().Msg("graphite url not configured, object-storage usage disabled")
	}

	a.Reports = app.NewService(app.Deps{
		Records:               sqlite.NewRecordStore(db),
		Identity:              sqlite.NewIdentityStore(db),
		Metrics:               metricsSrc,
		Clock:                 clock.Real{},
		IDs:                   idgen.UUID{},
		Logger:                logger,
		Collector:             a.Metrics,
		BillingRole:           cfg.Billing.Role,
		FailOnDegradedMetrics: cfg.Billing.FailOnDegradedMetrics,
	})

	a.buildHTTPServer()
	return a, nil
}

// NewWithHotReload creates the application with config file watching.
func NewWithHotReload(path string) (*App, error) {
	bootLogger := setupLogger(config.LoggingConfig{Level: "info", Format: "json"})

	holder, err := config.NewHolder(path, bootLogger)
	if err != nil {
		return nil, err
	}

	a, err := New(holder.Get())
	if err != nil {
		return nil, err
	}
	a.holder = holder

	holder.OnChange(func(cfg *config.Config) {
		if a.Metrics != nil {
			a.Metrics.ConfigReloads.Inc()
		}
		a.Logger.Info().Msg("configuration updated, restart required for non-reloadable fields")
	})

	if err := holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watching unavailable")
	}
	holder.WatchSignals()

	return a, nil
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("http server listening")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("http shutdown failed")
	}
	return a.Close()
}

// Close releases application resources.
func (a *App) Close() error {
	if a.holder != nil {
		a.holder.Stop()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

func (a *App) buildHTTPServer() {
	handler := web.New(web.Deps{
		Reports: a.Reports,
		Logger:  a.Logger,
	})

	r := handler.Routes()
	if a.Metrics != nil {
		r.Handle(a.Config.Metrics.Path, a.Metrics.Handler())
	}

	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port),
		Handler:      r,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
