package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hotstory/radar/config"
	"github.com/hotstory/radar/internal/aggregator"
	"github.com/hotstory/radar/internal/collector"
	"github.com/hotstory/radar/internal/collector/webfetch"
	"github.com/hotstory/radar/internal/feedcache"
	"github.com/hotstory/radar/internal/learning"
	"github.com/hotstory/radar/internal/radar"
	"github.com/hotstory/radar/internal/research"
	"github.com/hotstory/radar/internal/store"
	"github.com/hotstory/radar/internal/summary"
	"github.com/hotstory/radar/internal/updater"
	"github.com/hotstory/radar/internal/worker"
	"github.com/hotstory/radar/provider"
)

// Components is the shared dependency graph behind both the API server and
// the worker binary.
type Components struct {
	Store    *store.Store
	Cache    *feedcache.Cache
	Provider provider.Provider
	Pipeline *radar.Pipeline
	Updater  *updater.Updater
	Learning *learning.Engine
	Worker   *worker.Worker
}

// NewComponents wires the full dependency graph from config.
func NewComponents(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Components, error) {
	st, err := store.New(ctx, cfg.Storage.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	cache, err := feedcache.New(ctx, cfg.Storage.Redis, time.Duration(cfg.Feed.CacheTTLMinutes)*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	prov, err := provider.NewProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}

	coll := collector.New(cfg.Sources, logger)
	var upgrader radar.ContentUpgrader
	if cfg.Pipeline.EnableWebFetch {
		upgrader = webfetch.New(logger)
	}
	researcher := research.New(cfg.Provider, cfg.Pipeline, prov, logger)
	pipeline, err := radar.New(cfg.Pipeline, coll, prov, researcher, upgrader, logger)
	if err != nil {
		return nil, err
	}

	summarizer := summary.NewGenerator(prov, logger)
	agg := aggregator.New(summarizer, cfg.Feed, cfg.Pipeline, logger)
	upd := updater.New(st, cache, coll, agg, cfg.Feed, cfg.Pipeline, logger)
	engine := learning.NewEngine(st, cfg.Worker, logger)
	wrk := worker.New(cfg.Worker, cfg.Feed, st, upd, engine, logger)

	return &Components{
		Store:    st,
		Cache:    cache,
		Provider: prov,
		Pipeline: pipeline,
		Updater:  upd,
		Learning: engine,
		Worker:   wrk,
	}, nil
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
}
