package main

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"jetpreview/internal/browser"
	"jetpreview/internal/cache"
	"jetpreview/internal/config"
	"jetpreview/internal/pool"
	"jetpreview/internal/preview"
	"jetpreview/internal/scraper"
	"jetpreview/internal/storage"
)

// app holds the wired pipeline and the resources it owns.
type app struct {
	cfg       config.Config
	log       logrus.FieldLogger
	db        *badger.DB
	redis     *redis.Client
	memory    *cache.MemoryStore
	renderers *pool.Pool[browser.Renderer]
	previews  *preview.Service
}

// newApp wires the extraction pipeline. The badger database is opened when
// needDB is set or when it backs the cache.
func newApp(ctx context.Context, cfg config.Config, log logrus.FieldLogger, needDB bool) (*app, error) {
	a := &app{cfg: cfg, log: log}
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()

	var err error
	if needDB || cfg.Cache.Backend == config.CacheBadger {
		a.db, err = storage.OpenBadger(cfg.Storage.BadgerPath, log)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Browser.Enabled {
		factory := browser.NewRodFactory(browser.Options{
			Bin:       cfg.Browser.Bin,
			Headless:  cfg.Browser.Headless,
			UserAgent: cfg.Browser.UserAgent,
			Locale:    cfg.Browser.Locale,
			NoSandbox: cfg.Browser.NoSandbox,
		}, log)
		a.renderers, err = pool.New[browser.Renderer](ctx, factory, pool.Config{
			Name:             "renderer",
			MinIdle:          cfg.Pool.MinIdle,
			MaxTotal:         cfg.Pool.MaxTotal,
			EvictionInterval: cfg.Pool.EvictionInterval,
			IdleTimeout:      cfg.Pool.IdleTimeout,
			ValidateTimeout:  cfg.Pool.ValidateTimeout,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("start renderer pool: %w", err)
		}
	} else {
		log.Info("Browser rendering disabled, render strategies fall back to plain fetch")
	}

	fetcher := scraper.NewHTTPFetcher(scraper.FetchOptions{
		Timeout:        cfg.Scraper.FetchTimeout,
		UserAgent:      cfg.Browser.UserAgent,
		AcceptLanguage: cfg.Browser.Locale,
		MaxBodyBytes:   cfg.Scraper.MaxBodyBytes,
	}, log)

	var youtube *scraper.YouTubeClient
	if cfg.YouTube.APIKey != "" {
		youtube = scraper.NewYouTubeClient(cfg.YouTube.BaseURL, cfg.YouTube.APIKey, cfg.YouTube.Timeout, log)
	}
	registry, err := scraper.NewRegistry(scraper.DefaultStrategies(youtube)...)
	if err != nil {
		return nil, fmt.Errorf("build strategy registry: %w", err)
	}

	dispatcher := scraper.NewDispatcher(registry, a.renderers, fetcher, scraper.Options{
		BorrowTimeout: cfg.Pool.BorrowTimeout,
		WaitTimeout:   cfg.Scraper.WaitTimeout,
		ResetTimeout:  cfg.Scraper.ResetTimeout,
	}, log)

	store, err := a.newStore(ctx)
	if err != nil {
		return nil, err
	}
	c := cache.New(store, cache.Options{
		TTL:            cfg.Cache.TTL,
		ComputeTimeout: cfg.Cache.ComputeTimeout,
	}, log)

	a.previews = preview.NewService(c, dispatcher, log)
	ready = true
	return a, nil
}

func (a *app) newStore(ctx context.Context) (cache.Store, error) {
	switch a.cfg.Cache.Backend {
	case config.CacheBadger:
		return cache.NewBadgerStore(a.db), nil
	case config.CacheRedis:
		client, err := cache.NewRedisClient(ctx, a.cfg.Cache.RedisURL, a.log)
		if err != nil {
			return nil, err
		}
		a.redis = client
		return cache.NewRedisStore(client), nil
	default:
		a.memory = cache.NewMemoryStore(nil)
		return a.memory, nil
	}
}

// runMaintenance starts the background loops of the owned stores until ctx
// is done.
func (a *app) runMaintenance(ctx context.Context) {
	if a.db != nil && a.cfg.Storage.GCInterval > 0 {
		go storage.RunGC(ctx, a.db, a.cfg.Storage.GCInterval, a.log)
	}
	if a.memory != nil && a.cfg.Cache.PurgeInterval > 0 {
		go a.memory.RunJanitor(ctx, a.cfg.Cache.PurgeInterval)
	}
}

// Close releases everything newApp opened. The renderer pool goes last so
// that no extraction is left holding a browser.
func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Error("Error closing Redis client")
		}
	}
	if a.db != nil {
		a.log.Info("Closing database...")
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Error("Error closing database")
		}
	}
	if a.renderers != nil {
		a.log.Info("Closing renderer pool...")
		a.renderers.Close()
	}
}

// poolStats is nil when rendering is disabled.
func (a *app) poolStats() func() pool.Stats {
	if a.renderers == nil {
		return nil
	}
	return a.renderers.Stats
}
