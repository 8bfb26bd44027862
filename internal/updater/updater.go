// Package updater decides how to satisfy a feed request: serve the cached
// copy, extend the stored feed with a narrow incremental collection pass,
// or regenerate it from a full time window. The goal is that repeated
// requests cost progressively less than a fresh scan.
package updater

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hotstory/radar/config"
	"github.com/hotstory/radar/internal/feedcache"
	"github.com/hotstory/radar/internal/metrics"
	"github.com/hotstory/radar/models"
)

// Storage is the slice of the record store the updater needs.
type Storage interface {
	GetPreferences(ctx context.Context, userID string) (models.Preferences, error)
	GetKeywordWeights(ctx context.Context, userID string) (map[string]float64, error)
	UpsertArticles(ctx context.Context, articles []models.Article) error
	SaveFeedItems(ctx context.Context, userID string, items []models.FeedItem) error
	ListFeedItems(ctx context.Context, userID string, limit int) ([]models.FeedItem, error)
	LatestFeedItemTime(ctx context.Context, userID string) (time.Time, error)
}

// Cache holds one live feed per user.
type Cache interface {
	Get(ctx context.Context, userID string) (feedcache.Entry, error)
	Set(ctx context.Context, userID string, feed models.FeedResponse) error
}

// Source supplies fresh articles for a window.
type Source interface {
	FetchSince(ctx context.Context, cutoff time.Time) ([]models.Article, error)
}

// Builder turns candidate articles into a scored feed.
type Builder interface {
	BuildFeed(ctx context.Context, prefs models.Preferences, weights map[string]float64,
		articles []models.Article, clusterSizes map[string]int) (models.FeedResponse, error)
}

// Updater implements the get-or-refresh contract.
type Updater struct {
	storage    Storage
	cache      Cache
	source     Source
	builder    Builder
	feedCfg    config.FeedConfig
	fullWindow time.Duration
	logger     *log.Logger

	now func() time.Time
}

func New(storage Storage, cache Cache, source Source, builder Builder,
	feedCfg config.FeedConfig, pipelineCfg config.PipelineConfig, logger *log.Logger) *Updater {
	return &Updater{
		storage:    storage,
		cache:      cache,
		source:     source,
		builder:    builder,
		feedCfg:    feedCfg,
		fullWindow: time.Duration(pipelineCfg.TimeWindowHours) * time.Hour,
		logger:     logger,
		now:        time.Now,
	}
}

// GetOrRefresh returns the user's feed, refreshing only as much as
// staleness demands.
func (u *Updater) GetOrRefresh(ctx context.Context, userID string, forceRefresh, useCache bool) (models.FeedResponse, error) {
	if useCache && !forceRefresh {
		entry, err := u.cache.Get(ctx, userID)
		if err == nil {
			metrics.FeedCacheLookups.WithLabelValues("hit").Inc()
			return entry.Feed, nil
		}
		if err != models.ErrCacheMiss {
			u.logger.Printf("feed cache read failed for user %s: %v", userID, err)
		}
		metrics.FeedCacheLookups.WithLabelValues("miss").Inc()
	} else {
		metrics.FeedCacheLookups.WithLabelValues("bypass").Inc()
	}

	prefs, err := u.storage.GetPreferences(ctx, userID)
	if err == models.ErrNotFound {
		prefs = u.defaultPreferences(userID)
	} else if err != nil {
		return models.FeedResponse{}, fmt.Errorf("loading preferences: %w", err)
	}

	latest, err := u.storage.LatestFeedItemTime(ctx, userID)
	if err != nil {
		return models.FeedResponse{}, fmt.Errorf("checking feed freshness: %w", err)
	}

	now := u.now()
	if latest.IsZero() {
		// First feed for this user: full scan of the default window.
		metrics.FeedRefreshes.WithLabelValues("full").Inc()
		return u.refresh(ctx, prefs, now.Add(-u.fullWindow))
	}

	updateFreq := time.Duration(prefs.UpdateFrequencyMinutes) * time.Minute
	if updateFreq <= 0 {
		updateFreq = time.Duration(u.feedCfg.UpdateFrequencyMinutes) * time.Minute
	}
	sinceLatest := now.Sub(latest)
	if sinceLatest > updateFreq || forceRefresh {
		// Incremental: only look as far back as needed to catch up, never
		// wider than a full scan and never wider than the incremental cap.
		window := sinceLatest + time.Hour
		if window > u.fullWindow {
			window = u.fullWindow
		}
		if limit := time.Duration(u.feedCfg.IncrementalWindowHours) * time.Hour; limit > 0 && window > limit {
			window = limit
		}
		metrics.FeedRefreshes.WithLabelValues("incremental").Inc()
		u.logger.Printf("incremental refresh for user %s, window %s", userID, window)
		return u.refresh(ctx, prefs, now.Add(-window))
	}

	// Fresh enough: rebuild the response from stored items.
	return u.serveStored(ctx, prefs)
}

func (u *Updater) refresh(ctx context.Context, prefs models.Preferences, since time.Time) (models.FeedResponse, error) {
	articles, err := u.source.FetchSince(ctx, since)
	if err != nil {
		return models.FeedResponse{}, fmt.Errorf("collecting articles: %w", err)
	}
	if err := u.storage.UpsertArticles(ctx, articles); err != nil {
		return models.FeedResponse{}, fmt.Errorf("storing articles: %w", err)
	}

	weights, err := u.storage.GetKeywordWeights(ctx, prefs.UserID)
	if err != nil {
		u.logger.Printf("keyword weights unavailable for user %s: %v", prefs.UserID, err)
		weights = nil
	}

	feed, err := u.builder.BuildFeed(ctx, prefs, weights, articles, nil)
	if err != nil {
		return models.FeedResponse{}, fmt.Errorf("building feed: %w", err)
	}
	if err := u.storage.SaveFeedItems(ctx, prefs.UserID, feed.Items); err != nil {
		return models.FeedResponse{}, fmt.Errorf("persisting feed items: %w", err)
	}

	// After an incremental pass the stored set is the union of old and new
	// items; serve that, not just the narrow window's output.
	stored, err := u.serveStored(ctx, prefs)
	if err != nil {
		return models.FeedResponse{}, err
	}
	stored.TotalArticlesProcessed = feed.TotalArticlesProcessed
	stored.FilteredCount = feed.FilteredCount
	stored.ProcessingTime = feed.ProcessingTime
	return stored, nil
}

func (u *Updater) serveStored(ctx context.Context, prefs models.Preferences) (models.FeedResponse, error) {
	limit := prefs.MaxArticlesPerFeed
	if limit <= 0 {
		limit = u.feedCfg.MaxArticlesPerFeed
	}
	items, err := u.storage.ListFeedItems(ctx, prefs.UserID, limit)
	if err != nil {
		return models.FeedResponse{}, fmt.Errorf("loading stored feed: %w", err)
	}
	feed := models.FeedResponse{
		Items:       items,
		GeneratedAt: u.now().UTC(),
		UserID:      prefs.UserID,
	}
	if err := u.cache.Set(ctx, prefs.UserID, feed); err != nil {
		u.logger.Printf("feed cache write failed for user %s: %v", prefs.UserID, err)
	}
	return feed, nil
}

func (u *Updater) defaultPreferences(userID string) models.Preferences {
	return models.Preferences{
		UserID:                 userID,
		UpdateFrequencyMinutes: u.feedCfg.UpdateFrequencyMinutes,
		MaxArticlesPerFeed:     u.feedCfg.MaxArticlesPerFeed,
		AutoRefreshEnabled:     true,
	}
}
