package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"homepage-aggregator/internal/analytics"
	"homepage-aggregator/internal/api"
	"homepage-aggregator/internal/cms"
	"homepage-aggregator/internal/config"
	"homepage-aggregator/internal/content"
	"homepage-aggregator/internal/homepage"
	"homepage-aggregator/internal/listener"
	"homepage-aggregator/internal/storage"
	"homepage-aggregator/internal/target"
)

// App is the fully wired service.
type App struct {
	cfg       config.Config
	handler   http.Handler
	telemeter *analytics.Telemeter
	fetcher   *cms.Fetcher
	store     *storage.Store // nil when the fallback store is disabled
	fallback  *storage.Fallback
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	strategy, err := content.ParseStrategy(cfg.Merge.Strategy)
	if err != nil {
		return nil, err
	}
	app := &App{cfg: cfg}

	var fb cms.Fallback
	if cfg.FallbackEnabled() {
		store, err := storage.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		app.store = store
		app.fallback = storage.NewFallback(store)
		// warmup; the listener retries on its own
		if err := app.fallback.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("initial fallback snapshot")
		}
		fb = app.fallback
	}

	cmsClient := cms.NewClient(cms.ClientConfig{
		SpaceID:       cfg.CMS.SpaceID,
		Environment:   cfg.CMS.Environment,
		DeliveryHost:  cfg.CMS.DeliveryHost,
		DeliveryToken: cfg.CMS.DeliveryToken,
		PreviewHost:   cfg.CMS.PreviewHost,
		PreviewToken:  cfg.CMS.PreviewToken,
		Timeout:       cfg.CMS.Timeout,
	}, nil)
	targetClient := target.NewClient(target.Config{
		Host:          cfg.Target.Host,
		ClientCode:    cfg.Target.ClientCode,
		PropertyToken: cfg.Target.PropertyToken,
		Timeout:       cfg.Target.Timeout,
	}, nil)
	app.telemeter = analytics.New(cfg.Analytics.Endpoint, cfg.Analytics.Timeout, nil)
	app.fetcher = cms.NewFetcher(cmsClient, fb)

	svc := homepage.NewService(
		app.fetcher,
		targetClient,
		content.NewMerger(strategy, cfg.Merge.DisplayLength),
		app.telemeter,
		cfg.Target.DefaultVisitorID,
	)
	app.handler = api.Router(api.NewHomepageHandler(svc), api.RouterConfig{
		Timeout:     cfg.Server.RequestTimeout,
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimit:   cfg.Server.RateLimit,
	})
	return app, nil
}

func (a *App) Handler() http.Handler { return a.handler }

// Drain waits for detached analytics hits and last-known-good writes.
func (a *App) Drain(ctx context.Context) error {
	return errors.Join(a.telemeter.Wait(ctx), a.fetcher.Wait(ctx))
}

func (a *App) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

func Run(cfg config.Config) {
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := New(rootCtx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init app")
	}
	defer app.Close()

	// Listener (LISTEN/NOTIFY)
	if app.store != nil {
		go listener.ListenAndRefresh(rootCtx, app.store, app.fallback, cfg.Listener.Channel, cfg.Backoff())
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Server goroutine
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("merge_strategy", cfg.Merge.Strategy).Bool("fallback", cfg.FallbackEnabled()).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server crashed")
		}
	}()

	// Wait for signal
	waitForSignal()
	log.Info().Msg("shutdown...")

	// Graceful shutdown
	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	cancel() // stop background goroutines
	_ = srv.Shutdown(shCtx)
	if err := app.Drain(shCtx); err != nil {
		log.Warn().Err(err).Msg("background work still in flight")
	}
}

func waitForSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
