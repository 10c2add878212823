package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/nucypher/monitor/internal/config"
	"github.com/nucypher/monitor/internal/contracts"
	"github.com/nucypher/monitor/internal/crawler"
	"github.com/nucypher/monitor/internal/dashboard"
	"github.com/nucypher/monitor/internal/geo"
	"github.com/nucypher/monitor/internal/history"
	"github.com/nucypher/monitor/internal/registry"
	"github.com/nucypher/monitor/internal/server"
	"github.com/nucypher/monitor/internal/snapshot"
	"github.com/nucypher/monitor/pkg/ethclient"
)

const (
	dialTimeout       = 30 * time.Second
	retentionInterval = 24 * time.Hour
)

func serveCommand(env *runtimeEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the dashboard",
		Action: func(c *cli.Context) error {
			figure.NewFigure(env.cfg.Dashboard.Title, "", true).Print()
			app := fx.New(serviceOptions(env.cfg, env.log))
			app.Run()
			return app.Err()
		},
	}
}

// serviceOptions composes the dashboard service. Stores, loops and the HTTP
// server are started and stopped by the fx lifecycle.
func serviceOptions(cfg *config.Config, log *zap.Logger) fx.Option {
	return fx.Options(
		fx.Supply(cfg, log),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Provide(
			newCrawlerClient,
			newSnapshotStore,
			newHistoryStore,
			newLocator,
			newEthClient,
			newRegistrySource,
			newAgency,
			newDashboard,
			newServer,
		),
		fx.Invoke(func(*server.Server) {}),
	)
}

func newCrawlerClient(cfg *config.Config, log *zap.Logger) *crawler.Client {
	return crawler.NewClient(cfg.CrawlerURL(), cfg.Crawler.Timeout, log)
}

func newSnapshotStore(lc fx.Lifecycle, cfg *config.Config, client *crawler.Client, hist *history.Store, log *zap.Logger) *snapshot.Store {
	store := snapshot.NewStore(client, cfg.Dashboard.Intervals.Request, log)
	store.OnUpdate(hist.RecordSnapshot)

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("Polling crawler", zap.String("url", client.URL()), zap.Duration("interval", cfg.Dashboard.Intervals.Request))
			go store.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			store.Close()
			return nil
		},
	})
	return store
}

func newHistoryStore(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*history.Store, error) {
	hist, err := history.Open(cfg.History.Path, log)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go hist.RunRetention(ctx, retentionInterval, cfg.History.Retention)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return hist.Close()
		},
	})
	return hist, nil
}

// newLocator opens the geolocation table. Without one the map stays empty.
func newLocator(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) dashboard.Locator {
	if _, err := os.Stat(cfg.Geolocation.Path); errors.Is(err, fs.ErrNotExist) {
		log.Warn("No geolocation table, run 'monitor geo import' to build one", zap.String("path", cfg.Geolocation.Path))
		return (*geo.Locator)(nil)
	}
	locator, err := geo.Open(cfg.Geolocation.Path, cfg.Geolocation.CacheTTL, log)
	if err != nil {
		log.Error("Failed to open geolocation table", zap.Error(err))
		return (*geo.Locator)(nil)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return locator.Close()
		},
	})
	return locator
}

func newEthClient(cfg *config.Config, log *zap.Logger) (ethclient.EthClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	client, err := ethclient.Dial(ctx, cfg.RpcProvider)
	if err != nil {
		log.Error("Failed to connect to Ethereum RPC provider", zap.String("provider", cfg.RpcProvider), zap.Error(err))
		return nil, err
	}
	return client, nil
}

// newRegistrySource prefers a local registry file over the network's publication.
func newRegistrySource(cfg *config.Config, log *zap.Logger) (dashboard.RegistrySource, error) {
	if cfg.Registry.Filepath != "" {
		log.Info("Using local contract registry", zap.String("path", cfg.Registry.Filepath))
		return registry.NewLocal(cfg.Registry.Filepath)
	}
	return registry.NewPublication(cfg.Registry.PublicationURL, cfg.Network, cfg.Registry.CacheTTL, log), nil
}

func newAgency(client ethclient.EthClient, source dashboard.RegistrySource, log *zap.Logger) (*contracts.Agency, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	reg, err := source.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return contracts.NewAgency(client, reg, log)
}

func newDashboard(cfg *config.Config, store *snapshot.Store, hist *history.Store, locator dashboard.Locator, agency *contracts.Agency, source dashboard.RegistrySource, log *zap.Logger) *dashboard.Dashboard {
	return dashboard.New(dashboard.Sources{
		Snapshots: store,
		History:   hist,
		Locator:   locator,
		Chain:     agency,
		Registry:  source,
	}, dashboard.Options{
		Version:      version,
		Network:      cfg.Network,
		EtherscanURL: cfg.Dashboard.EtherscanURL,
		HistoryDays:  cfg.Dashboard.HistoryDays,
	}, log)
}

func newServer(lc fx.Lifecycle, cfg *config.Config, store *snapshot.Store, dash *dashboard.Dashboard, agency *contracts.Agency, log *zap.Logger) (*server.Server, error) {
	mux, err := server.NewMux(cfg, server.Deps{
		Snapshots:  store,
		Dispatcher: dash,
		Token:      agency,
		Chain:      agency,
	}, log)
	if err != nil {
		return nil, err
	}
	srv := server.New(cfg.ListenAddr(), mux, log)
	lc.Append(fx.Hook{
		OnStart: srv.Start,
		OnStop:  srv.Shutdown,
	})
	return srv, nil
}
