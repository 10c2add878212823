package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nucypher/monitor/internal/config"
	"github.com/nucypher/monitor/internal/dashboard"
	"github.com/nucypher/monitor/internal/economics"
	"github.com/nucypher/monitor/internal/metrics"
	"github.com/nucypher/monitor/internal/staker"
)

//go:embed static/index.html
var static embed.FS

var pageTemplate = template.Must(template.ParseFS(static, "static/index.html"))

// Deps are the components the HTTP surface serves.
type Deps struct {
	Snapshots  SnapshotStore
	Dispatcher Dispatcher
	Token      economics.TokenSupplier
	Chain      staker.Chain
}

// NewMux registers every route. Each route is counted by the response metrics middleware.
func NewMux(cfg *config.Config, deps Deps, log *zap.Logger) (*http.ServeMux, error) {
	initialSupply, err := economics.ToNUnits(cfg.Economics.InitialSupply)
	if err != nil {
		return nil, fmt.Errorf("economics.initialSupply: %w", err)
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.StakerEndpoint.Rate), cfg.StakerEndpoint.Burst)

	page := PageData{
		Title:    cfg.Dashboard.Title,
		RouteURL: cfg.Dashboard.RouteURL,
		Intervals: map[string]int64{
			dashboard.TriggerMinute: cfg.Dashboard.Intervals.Minute.Milliseconds(),
			dashboard.TriggerDaily:  cfg.Dashboard.Intervals.Daily.Milliseconds(),
		},
	}

	mux := http.NewServeMux()
	handle := func(pattern, label string, h http.Handler) {
		mux.Handle(pattern, metrics.Middleware(h, label))
	}
	handle("GET "+routePattern(cfg.Dashboard.RouteURL), cfg.Dashboard.RouteURL, IndexHandler(log, pageTemplate, page))
	handle("GET /api/dashboard/{trigger}", "/api/dashboard", DashboardHandler(log, deps.Dispatcher))
	handle("GET /api/snapshot", "/api/snapshot", SnapshotHandler(log, deps.Snapshots))
	handle("GET /supply_information", "/supply_information", SupplyHandler(log, deps.Token, initialSupply))
	handle("GET /staker_information/{address}", "/staker_information", StakerHandler(log, deps.Chain, limiter))
	handle("GET /healthz", "/healthz", HealthHandler(deps.Snapshots))
	handle("GET /metrics", "/metrics", promhttp.Handler())
	return mux, nil
}

// routePattern matches the dashboard route exactly; "/status/" does not swallow "/status/x".
func routePattern(route string) string {
	if route == "" {
		route = "/"
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	if strings.HasSuffix(route, "/") {
		return route + "{$}"
	}
	return route
}

type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *zap.Logger
}

func New(addr string, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.Named("server"),
	}
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln
	s.logger.Info("Starting server on", zap.String("address", ln.Addr().String()))

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr is the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.httpServer.Addr
	}
	return s.listener.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}
