package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nucypher/monitor/internal/crawler"
	"github.com/nucypher/monitor/internal/metrics"
)

// ErrUnavailable is returned when no snapshot is stored and none could be fetched.
var ErrUnavailable = errors.New("no crawler snapshot available")

// flightKey is shared by every fetch so at most one request is in flight.
const flightKey = "crawler"

// Fetcher retrieves one snapshot from upstream.
type Fetcher interface {
	FetchMetrics(ctx context.Context) (*crawler.Snapshot, error)
}

// Store keeps the most recent successful crawler snapshot.
// Reads never block on a refresh; writes replace the whole snapshot at once.
type Store struct {
	fetcher  Fetcher
	interval time.Duration
	logger   *zap.Logger

	current atomic.Pointer[crawler.Snapshot]
	group   singleflight.Group

	mu        sync.Mutex
	hooks     []func(*crawler.Snapshot)
	notifying sync.WaitGroup

	// ctx outlives any single caller; shared fetches run on it.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewStore creates an empty store. Call Run to start periodic refreshes.
func NewStore(fetcher Fetcher, interval time.Duration, logger *zap.Logger) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		fetcher:  fetcher,
		interval: interval,
		logger:   logger.Named("snapshot_store"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OnUpdate registers fn to be called with every newly stored snapshot.
// Hooks run in their own goroutine and never delay callers waiting on a fetch.
func (s *Store) OnUpdate(fn func(*crawler.Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Run refreshes the store immediately and then on every tick until ctx is done.
func (s *Store) Run(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("Initial snapshot refresh failed", zap.Error(err))
	}

	if s.interval <= 0 {
		s.logger.Info("Refresh interval is zero, snapshot will not be updated periodically.")
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping snapshot refresh loop")
			return
		case <-ticker.C:
			// failures are logged and counted in refresh
			_ = s.Refresh(ctx)
		}
	}
}

// Close abandons any in-flight fetch and waits for running update hooks.
func (s *Store) Close() {
	s.cancel()
	s.notifying.Wait()
}

// Refresh fetches a new snapshot, joining a fetch already in flight if there is one.
// On failure the previous snapshot stays current.
func (s *Store) Refresh(ctx context.Context) error {
	_, err := s.fetch(ctx, false)
	return err
}

// Current returns the stored snapshot without blocking, or nil before the first success.
func (s *Store) Current() *crawler.Snapshot {
	return s.current.Load()
}

// Snapshot returns the snapshot consumers should render.
//
// With staleOK the stored snapshot is returned as is; on a cold start the caller
// waits for a single shared fetch. Without staleOK a refresh is forced and the
// previous snapshot is returned if it fails.
func (s *Store) Snapshot(ctx context.Context, staleOK bool) (*crawler.Snapshot, error) {
	if staleOK {
		if snap := s.current.Load(); snap != nil {
			return snap, nil
		}
		snap, err := s.fetch(ctx, true)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return snap, nil
	}

	previous := s.current.Load()
	snap, err := s.fetch(ctx, false)
	if err == nil {
		return snap, nil
	}
	if previous != nil {
		s.logger.Warn("Forced refresh failed, serving previous snapshot",
			zap.Time("fetched_at", previous.FetchedAt),
			zap.Error(err))
		return previous, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func (s *Store) fetch(ctx context.Context, coldStart bool) (*crawler.Snapshot, error) {
	ch := s.group.DoChan(flightKey, func() (interface{}, error) {
		if coldStart {
			// another caller may have filled the store while this one waited to enter
			if snap := s.current.Load(); snap != nil {
				return snap, nil
			}
			metrics.ColdStartFetches.Inc()
		}
		return s.refresh()
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*crawler.Snapshot), nil
	}
}

// refresh runs inside the single flight.
func (s *Store) refresh() (*crawler.Snapshot, error) {
	start := time.Now()
	snap, err := s.fetcher.FetchMetrics(s.ctx)
	metrics.SnapshotFetchDuration.Observe(time.Since(start).Seconds())
	if err == nil && snap == nil {
		err = errors.New("fetcher returned no snapshot")
	}
	if err != nil {
		metrics.SnapshotRefreshes.WithLabelValues("failure").Inc()
		s.logger.Error("Failed to refresh snapshot", zap.Error(err))
		return nil, err
	}

	s.current.Store(snap)
	metrics.SnapshotRefreshes.WithLabelValues("success").Inc()
	metrics.SnapshotLastSuccess.SetToCurrentTime()
	s.logger.Info("Snapshot updated successfully",
		zap.Int("known_nodes", len(snap.NodeDetails)),
		zap.Int64("current_period", snap.CurrentPeriod),
		zap.Duration("took", time.Since(start)))

	s.mu.Lock()
	hooks := append([]func(*crawler.Snapshot){}, s.hooks...)
	s.mu.Unlock()
	if len(hooks) > 0 {
		s.notifying.Add(1)
		go func() {
			defer s.notifying.Done()
			for _, fn := range hooks {
				fn(snap)
			}
		}()
	}
	return snap, nil
}
