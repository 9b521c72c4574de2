package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/itbasis/go-clock"
	"github.com/turfwar-server/internal/config"
)

// MatchListRefresher reloads the cached match list from the store
type MatchListRefresher interface {
	RefreshMatchList(ctx context.Context) (int, error)
}

// CacheRefresher keeps the match-list cache warm between invalidations
type CacheRefresher struct {
	refresher MatchListRefresher
	config    *config.CacheConfig
	clock     clock.Clock
	logger    *slog.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
	mu        sync.Mutex
	running   bool
}

// NewCacheRefresher creates a new cache refresher
func NewCacheRefresher(
	refresher MatchListRefresher,
	cfg *config.CacheConfig,
	clk clock.Clock,
	logger *slog.Logger,
) *CacheRefresher {
	return &CacheRefresher{
		refresher: refresher,
		config:    cfg,
		clock:     clk,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start warms the cache and then refreshes it on every interval
func (w *CacheRefresher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("cache refresher started", "interval", w.config.RefreshInterval)

	ticker := w.clock.Ticker(w.config.RefreshInterval)
	go w.run(ctx, ticker)
	return nil
}

// Stop stops the background refresh
func (w *CacheRefresher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("cache refresher stopped")
	return nil
}

// run is the main worker loop
func (w *CacheRefresher) run(ctx context.Context, ticker *clock.Ticker) {
	defer close(w.doneCh)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single refresh
func (w *CacheRefresher) RunOnce(ctx context.Context) {
	startTime := time.Now()
	count, err := w.refresher.RefreshMatchList(ctx)
	if err != nil {
		w.logger.Error("failed to refresh match list cache", "error", err)
		return
	}
	w.logger.Debug("match list cache refreshed",
		"duration", time.Since(startTime),
		"matches", count,
	)
}

// IsRunning returns whether the worker is currently running
func (w *CacheRefresher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
