// Package dashboard renders dashboard widgets from the shared crawler snapshot.
//
// Each widget is a Consumer bound to one or more triggers. Dispatching a
// trigger renders every bound consumer against a single snapshot, so widgets
// updated together never disagree about the network state.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nucypher/monitor/internal/contracts"
	"github.com/nucypher/monitor/internal/crawler"
	"github.com/nucypher/monitor/internal/geo"
	"github.com/nucypher/monitor/internal/history"
	"github.com/nucypher/monitor/internal/metrics"
	"github.com/nucypher/monitor/internal/registry"
)

// Triggers
const (
	TriggerURL     = "url"
	TriggerMinute  = "minute-interval"
	TriggerDaily   = "daily-interval"
	TriggerTabs    = "network-info-tabs"
	TriggerDomain  = "domain"
	TabNodeDetails = "node-details"
	TabEvents      = "events"
)

// ErrUnknownTrigger is returned by Dispatch for a trigger no consumer is bound to.
var ErrUnknownTrigger = errors.New("unknown trigger")

// Request is one widget update request.
type Request struct {
	Trigger string
	Tab     string
	At      time.Time
}

type SnapshotSource interface {
	Snapshot(ctx context.Context, staleOK bool) (*crawler.Snapshot, error)
}

type HistorySource interface {
	NumStakersOverRange(ctx context.Context, days int) ([]history.Point[int64], error)
	LockedTokensOverRange(ctx context.Context, days int) ([]history.Point[*big.Int], error)
	Events(ctx context.Context, days int) ([]history.Event, error)
}

type Locator interface {
	Locate(host string) (geo.Location, bool)
}

type ChainInfo interface {
	ChainID(ctx context.Context) (*big.Int, error)
	Deployments() []contracts.Deployment
}

type RegistrySource interface {
	Latest(ctx context.Context) (*registry.Registry, error)
}

// Sources are the collaborators widgets read from.
type Sources struct {
	Snapshots SnapshotSource
	History   HistorySource
	Locator   Locator
	Chain     ChainInfo
	Registry  RegistrySource
}

type Options struct {
	Version      string
	Network      string
	EtherscanURL string
	HistoryDays  int
}

// Consumer renders one widget.
type Consumer struct {
	ID            string
	Triggers      []string
	NeedsSnapshot bool
	Render        func(ctx context.Context, snap *crawler.Snapshot, req Request) (Fragment, error)
}

func (c Consumer) boundTo(trigger string) bool {
	for _, t := range c.Triggers {
		if t == trigger {
			return true
		}
	}
	return false
}

type Dashboard struct {
	sources   Sources
	opts      Options
	consumers []Consumer
	logger    *zap.Logger
}

func New(sources Sources, opts Options, logger *zap.Logger) *Dashboard {
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = 30
	}
	d := &Dashboard{
		sources: sources,
		opts:    opts,
		logger:  logger.Named("dashboard"),
	}
	d.consumers = d.widgets()
	return d
}

func (d *Dashboard) Consumers() []Consumer {
	return append([]Consumer(nil), d.consumers...)
}

// Triggers lists every trigger at least one consumer is bound to.
func (d *Dashboard) Triggers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range d.consumers {
		for _, t := range c.Triggers {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// Dispatch renders every consumer bound to req.Trigger. The snapshot is read at
// most once and shared by all of them. A failing consumer yields an unavailable
// fragment and does not affect the others.
func (d *Dashboard) Dispatch(ctx context.Context, req Request) ([]Fragment, error) {
	if req.At.IsZero() {
		req.At = time.Now()
	}

	var bound []Consumer
	needsSnapshot := false
	for _, c := range d.consumers {
		if c.boundTo(req.Trigger) {
			bound = append(bound, c)
			needsSnapshot = needsSnapshot || c.NeedsSnapshot
		}
	}
	if len(bound) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTrigger, req.Trigger)
	}

	var snap *crawler.Snapshot
	var snapErr error
	if needsSnapshot {
		snap, snapErr = d.sources.Snapshots.Snapshot(ctx, true)
		if snapErr != nil {
			d.logger.Warn("No snapshot for dispatch", zap.String("trigger", req.Trigger), zap.Error(snapErr))
		}
	}

	fragments := make([]Fragment, len(bound))
	var wg sync.WaitGroup
	for i, c := range bound {
		if c.NeedsSnapshot && snapErr != nil {
			fragments[i] = unavailable(c.ID, req.At, snapErr)
			metrics.WidgetRenders.WithLabelValues(c.ID, "unavailable").Inc()
			continue
		}
		wg.Add(1)
		go func(i int, c Consumer) {
			defer wg.Done()
			fragments[i] = d.render(ctx, c, snap, req)
		}(i, c)
	}
	wg.Wait()
	return fragments, nil
}

func (d *Dashboard) render(ctx context.Context, c Consumer, snap *crawler.Snapshot, req Request) (fragment Fragment) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Widget render panicked", zap.String("widget", c.ID), zap.Any("panic", r))
			fragment = unavailable(c.ID, req.At, fmt.Errorf("render panic: %v", r))
			metrics.WidgetRenders.WithLabelValues(c.ID, "error").Inc()
		}
	}()

	fragment, err := c.Render(ctx, snap, req)
	if err != nil {
		d.logger.Warn("Widget render failed", zap.String("widget", c.ID), zap.Error(err))
		metrics.WidgetRenders.WithLabelValues(c.ID, "error").Inc()
		return unavailable(c.ID, req.At, err)
	}
	fragment.ID = c.ID
	fragment.RenderedAt = req.At
	metrics.WidgetRenders.WithLabelValues(c.ID, "ok").Inc()
	return fragment
}
