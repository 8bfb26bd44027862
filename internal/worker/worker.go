// Package worker runs the four maintenance routines: periodic feed
// refresh for recently active users, keyword-weight retraining, new
// interest discovery, and retention cleanup. Routines process users in
// fixed-size batches, finish each batch before starting the next, and a
// failing user never stops their batch.
package worker

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/hotstory/radar/config"
	"github.com/hotstory/radar/internal/metrics"
	"github.com/hotstory/radar/models"
)

// Job names accepted by RunJobNow.
const (
	JobRefresh  = "refresh"
	JobRetrain  = "retrain"
	JobDiscover = "discover"
	JobCleanup  = "cleanup"
)

// StoreAPI captures the store methods required by the worker.
type StoreAPI interface {
	ListActiveUserIDs(ctx context.Context, since time.Time) ([]string, error)
	GetPreferences(ctx context.Context, userID string) (models.Preferences, error)
	UpsertPreferences(ctx context.Context, prefs models.Preferences) error
	Cleanup(ctx context.Context, feedItemRetention, interactionRetention time.Duration) error
}

// Refresher regenerates one user's feed.
type Refresher interface {
	GetOrRefresh(ctx context.Context, userID string, forceRefresh, useCache bool) (models.FeedResponse, error)
}

// Trainer retrains weights and proposes new interests.
type Trainer interface {
	Retrain(ctx context.Context, userID string) error
	DiscoverInterests(ctx context.Context, userID string) ([]string, error)
}

// Worker owns the routine schedules.
type Worker struct {
	cfg       config.WorkerConfig
	feedCfg   config.FeedConfig
	store     StoreAPI
	refresher Refresher
	trainer   Trainer
	logger    *log.Logger
}

func New(cfg config.WorkerConfig, feedCfg config.FeedConfig, store StoreAPI, refresher Refresher, trainer Trainer, logger *log.Logger) *Worker {
	return &Worker{
		cfg:       cfg,
		feedCfg:   feedCfg,
		store:     store,
		refresher: refresher,
		trainer:   trainer,
		logger:    logger,
	}
}

// Start blocks, running all routines on their schedules until the context
// is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	cleanupExpr, err := cronexpr.Parse(w.cfg.CleanupCron)
	if err != nil {
		return fmt.Errorf("parsing cleanup cron %q: %w", w.cfg.CleanupCron, err)
	}
	w.logger.Printf("worker starting: refresh %s, retrain %s, discover %s, cleanup %q",
		w.cfg.RefreshInterval, w.cfg.RetrainInterval, w.cfg.DiscoveryInterval, w.cfg.CleanupCron)

	refreshTicker := time.NewTicker(w.cfg.RefreshInterval)
	retrainTicker := time.NewTicker(w.cfg.RetrainInterval)
	discoverTicker := time.NewTicker(w.cfg.DiscoveryInterval)
	defer refreshTicker.Stop()
	defer retrainTicker.Stop()
	defer discoverTicker.Stop()

	cleanupTimer := time.NewTimer(time.Until(cleanupExpr.Next(time.Now())))
	defer cleanupTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Printf("worker stopping: %v", ctx.Err())
			return nil
		case <-refreshTicker.C:
			w.runJob(ctx, JobRefresh)
		case <-retrainTicker.C:
			w.runJob(ctx, JobRetrain)
		case <-discoverTicker.C:
			w.runJob(ctx, JobDiscover)
		case <-cleanupTimer.C:
			w.runJob(ctx, JobCleanup)
			cleanupTimer.Reset(time.Until(cleanupExpr.Next(time.Now())))
		}
	}
}

// RunJobNow triggers one routine immediately, outside its schedule.
func (w *Worker) RunJobNow(ctx context.Context, job string) error {
	switch strings.ToLower(job) {
	case JobRefresh, JobRetrain, JobDiscover, JobCleanup:
		w.runJob(ctx, strings.ToLower(job))
		return nil
	default:
		return fmt.Errorf("unknown job %q", job)
	}
}

func (w *Worker) runJob(ctx context.Context, job string) {
	start := time.Now()
	var err error
	switch job {
	case JobRefresh:
		err = w.refreshActiveUsers(ctx)
	case JobRetrain:
		err = w.retrainUsers(ctx)
	case JobDiscover:
		err = w.discoverInterests(ctx)
	case JobCleanup:
		err = w.cleanup(ctx)
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		w.logger.Printf("job %s failed: %v", job, err)
	}
	metrics.WorkerJobRuns.WithLabelValues(job, outcome).Inc()
	w.logger.Printf("job %s finished in %s", job, time.Since(start).Round(time.Millisecond))
}

func (w *Worker) refreshActiveUsers(ctx context.Context) error {
	since := time.Now().Add(-time.Duration(w.cfg.ActiveWindowHours) * time.Hour)
	users, err := w.store.ListActiveUserIDs(ctx, since)
	if err != nil {
		return fmt.Errorf("listing active users: %w", err)
	}
	w.forEachUser(ctx, users, func(ctx context.Context, userID string) error {
		prefs, err := w.store.GetPreferences(ctx, userID)
		if err == nil && !prefs.AutoRefreshEnabled {
			return nil
		}
		_, err = w.refresher.GetOrRefresh(ctx, userID, false, false)
		return err
	})
	return nil
}

func (w *Worker) retrainUsers(ctx context.Context) error {
	since := time.Now().Add(-time.Duration(w.cfg.RetrainWindowHours) * time.Hour)
	users, err := w.store.ListActiveUserIDs(ctx, since)
	if err != nil {
		return fmt.Errorf("listing active users: %w", err)
	}
	w.forEachUser(ctx, users, w.trainer.Retrain)
	return nil
}

func (w *Worker) discoverInterests(ctx context.Context) error {
	since := time.Now().Add(-time.Duration(w.cfg.RetrainWindowHours) * time.Hour)
	users, err := w.store.ListActiveUserIDs(ctx, since)
	if err != nil {
		return fmt.Errorf("listing active users: %w", err)
	}
	w.forEachUser(ctx, users, func(ctx context.Context, userID string) error {
		interests, err := w.trainer.DiscoverInterests(ctx, userID)
		if err != nil {
			return err
		}
		if len(interests) == 0 {
			return nil
		}
		prefs, err := w.store.GetPreferences(ctx, userID)
		if err == models.ErrNotFound {
			prefs = models.Preferences{UserID: userID, AutoRefreshEnabled: true}
		} else if err != nil {
			return err
		}
		existing := make(map[string]bool, len(prefs.Keywords))
		for _, kw := range prefs.Keywords {
			existing[strings.ToLower(kw)] = true
		}
		added := 0
		for _, interest := range interests {
			if !existing[strings.ToLower(interest)] {
				prefs.Keywords = append(prefs.Keywords, interest)
				added++
			}
		}
		if added == 0 {
			return nil
		}
		w.logger.Printf("discovered %d new interests for user %s", added, userID)
		return w.store.UpsertPreferences(ctx, prefs)
	})
	return nil
}

func (w *Worker) cleanup(ctx context.Context) error {
	feedRetention := time.Duration(w.feedCfg.FeedItemRetentionDays) * 24 * time.Hour
	interactionRetention := time.Duration(w.feedCfg.InteractionRetentionDays) * 24 * time.Hour
	return w.store.Cleanup(ctx, feedRetention, interactionRetention)
}

// forEachUser walks the user list in batches of cfg.BatchSize, running the
// batch concurrently and waiting for it to drain before starting the
// next. A user's failure is logged and dropped.
func (w *Worker) forEachUser(ctx context.Context, users []string, fn func(ctx context.Context, userID string) error) {
	batchSize := w.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	for start := 0; start < len(users); start += batchSize {
		end := start + batchSize
		if end > len(users) {
			end = len(users)
		}
		var wg sync.WaitGroup
		for _, userID := range users[start:end] {
			userID := userID
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := fn(ctx, userID); err != nil {
					w.logger.Printf("user %s failed: %v", userID, err)
				}
			}()
		}
		wg.Wait()
		if ctx.Err() != nil {
			return
		}
	}
}
