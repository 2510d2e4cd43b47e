package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"shiftsync/internal/config"
	"shiftsync/internal/daemon"
	"shiftsync/internal/display"
	"shiftsync/internal/logging"
	"shiftsync/internal/names"
	"shiftsync/internal/notifications"
	"shiftsync/internal/pairing"
	"shiftsync/internal/parser"
	"shiftsync/internal/reconcile"
	"shiftsync/internal/refresh"
	"shiftsync/internal/source"
	"shiftsync/internal/store"
)

// app is the wired component graph shared by commands and the daemon.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	loc        *time.Location
	store      store.Store
	names      *names.Normalizer
	reconciler *reconcile.Reconciler
	notifier   notifications.Service
	parser     *parser.Parser
	runner     *refresh.Runner
	pairer     pairing.Pairer
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("display timezone: %w", err)
	}
	p, err := newParser(cfg)
	if err != nil {
		return nil, err
	}
	fetcher, err := source.NewFetcher(cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	normalizer, err := names.New(ctx, st, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	recon := reconcile.New(st, normalizer, logger)
	notifier := notifications.NewService(cfg)
	collector := source.Collector{
		Fetcher: fetcher,
		Parser:  p,
		Limiter: source.NewLimiter(cfg.SiteDelay()),
		Logger:  logging.NewComponentLogger(logger, "source"),
	}
	runner := refresh.New(cfg, collector, recon, normalizer, notifier, logger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		loc:        loc,
		store:      st,
		names:      normalizer,
		reconciler: recon,
		notifier:   notifier,
		parser:     p,
		runner:     runner,
		pairer:     pairing.New(time.Duration(cfg.Display.PAToleranceMinutes) * time.Minute),
	}, nil
}

func newParser(cfg *config.Config) (*parser.Parser, error) {
	p, err := parser.New(parser.Options{
		PrimaryPrefix:   cfg.Parser.PrimaryPrefix,
		SecondaryPrefix: cfg.Parser.SecondaryPrefix,
		Directions:      cfg.Parser.Directions,
	})
	if err != nil {
		return nil, fmt.Errorf("build parser: %w", err)
	}
	return p, nil
}

func (a *app) displayRefresher() *display.Refresher {
	return display.NewRefresher(a.store, a.pairer, a.loc, a.cfg.Display.TomorrowAfterHour, a.logger)
}

func (a *app) newDaemon() (*daemon.Daemon, error) {
	return daemon.New(a.cfg, daemon.Deps{
		Store:      a.store,
		Runner:     a.runner,
		Reconciler: a.reconciler,
		Names:      a.names,
		Display:    a.displayRefresher(),
		Logger:     a.logger,
	})
}

// relevantDate is the schedule day shown when no date is given.
func (a *app) relevantDate() string {
	return pairing.RelevantDate(time.Now(), a.loc, a.cfg.Display.TomorrowAfterHour)
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}
