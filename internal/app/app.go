// Package app wires the stores, the crawler, the sequencer and the
// mailer into the four stage crawl pipeline.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/newsherd/newsherd/internal/config"
	"github.com/newsherd/newsherd/internal/crawler"
	"github.com/newsherd/newsherd/internal/fetch"
	"github.com/newsherd/newsherd/internal/mailer"
	"github.com/newsherd/newsherd/internal/metrics"
	"github.com/newsherd/newsherd/internal/retry"
	"github.com/newsherd/newsherd/internal/sequencer"
	"github.com/newsherd/newsherd/internal/storage"
)

// App holds the assembled pipeline.
type App struct {
	cfg     *config.Config
	profile *config.Profile
	store   storage.Store
	crawler *crawler.Crawler
	mailer  *mailer.Mailer
}

// New assembles the pipeline from configuration. Close the returned app
// when done.
func New(cfg *config.Config) (*App, error) {
	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	fetcher := fetch.New(cfg.RequestTimeout, retry.Config{
		MaxAttempts: cfg.RetryAttempts,
		Delay:       cfg.RetryDelay,
		Backoff:     true,
	})

	return &App{
		cfg:     cfg,
		profile: profile,
		store:   store,
		crawler: crawler.New(store, fetcher, profile),
		mailer:  mailer.New(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.EmailFrom),
	}, nil
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		return storage.NewPostgresStore(cfg.DatabaseURL, cfg.MinTextLength)
	default:
		return storage.NewSQLiteStore(cfg.DatabasePath, cfg.MinTextLength)
	}
}

func (a *App) Close() error {
	return a.store.Close()
}

// Run executes one full crawl: discover links, download articles, group
// them by similarity, and send the digest.
func (a *App) Run(ctx context.Context) error {
	start := time.Now()

	slog.Info("(1/4) crawl sources")
	if err := a.crawler.CrawlSources(ctx); err != nil {
		metrics.Global.SetError(err.Error())
		return err
	}

	slog.Info("(2/4) crawl articles")
	if err := a.crawler.CrawlArticles(ctx); err != nil {
		metrics.Global.SetError(err.Error())
		return err
	}

	slog.Info("(3/4) group crawled articles by similarity")
	opts := sequencer.Options{
		ShingleLength:        a.cfg.ShingleLength,
		ImprovementThreshold: a.cfg.ImprovementThreshold,
		Concurrency:          a.cfg.SimilarityConcurrency,
	}
	if err := sequencer.Sequence(ctx, a.store, opts); err != nil {
		metrics.Global.SetError(err.Error())
		return err
	}

	slog.Info("(4/4) send crawl digest")
	items, err := a.store.RecentQueue(ctx, a.cfg.DigestWindow)
	if err != nil {
		metrics.Global.SetError(err.Error())
		return err
	}
	if err := mailer.SendDigest(ctx, a.mailer, a.profile.Recipients, items); err != nil {
		metrics.Global.SetError(err.Error())
		return err
	}

	metrics.Global.RecordRun(time.Since(start))
	slog.Info("crawl finished", "duration", time.Since(start))
	return nil
}
