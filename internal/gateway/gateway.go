// ABOUTME: Gateway orchestrator that wires the marketplace, ledger, and MCP server
// ABOUTME: Manages the HTTP listener, startup seeding, and graceful shutdown

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/agoramesh/agora-gateway/internal/config"
	"github.com/agoramesh/agora-gateway/internal/ledger"
	"github.com/agoramesh/agora-gateway/internal/market"
	"github.com/agoramesh/agora-gateway/internal/mcp"
	"github.com/agoramesh/agora-gateway/internal/prompts"
	"github.com/agoramesh/agora-gateway/internal/resources"
	"github.com/agoramesh/agora-gateway/internal/seed"
	"github.com/agoramesh/agora-gateway/internal/store"
	"github.com/agoramesh/agora-gateway/internal/tools"
)

// Version is stamped by the build; "dev" otherwise.
var Version = "dev"

// Gateway orchestrates the agora-gateway server components.
// It owns the marketplace state, the tool dispatcher, the audit ledger,
// and the HTTP server carrying the MCP endpoint.
type Gateway struct {
	config     *config.Config
	logger     *slog.Logger
	market     *market.Market
	registry   *tools.Registry
	dispatcher *tools.Dispatcher
	ledger     *ledger.Ledger
	resources  *resources.Registry
	prompts    *prompts.Registry
	mcpServer  *mcp.Server
	httpServer *http.Server

	// watchDone stops the docs directory watcher on shutdown
	watchDone chan struct{}
}

// New assembles a Gateway from the given configuration. State is held
// in memory; only the audit ledger persists across restarts.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	mkt := market.New(market.Config{
		Store:  store.NewMemStore(),
		Logger: logger.With("component", "market"),
	})

	registry := tools.NewRegistry(logger.With("component", "registry"))
	for _, pack := range mkt.Packs() {
		if err := registry.RegisterPack(pack); err != nil {
			return nil, fmt.Errorf("registering pack %s: %w", pack.ID, err)
		}
	}

	led, err := ledger.Open(cfg.Ledger.Path, logger.With("component", "ledger"))
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	dispatcher := tools.NewDispatcher(tools.DispatcherConfig{
		Registry: registry,
		Logger:   logger.With("component", "dispatcher"),
		Recorder: led,
	})

	res, err := resources.New(logger.With("component", "resources"))
	if err != nil {
		_ = led.Close()
		return nil, fmt.Errorf("loading resources: %w", err)
	}
	if cfg.Docs.Dir != "" {
		if err := res.LoadDir(cfg.Docs.Dir); err != nil {
			_ = led.Close()
			return nil, fmt.Errorf("loading docs dir: %w", err)
		}
	}

	prm, err := prompts.New()
	if err != nil {
		_ = led.Close()
		return nil, fmt.Errorf("loading prompts: %w", err)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Registry:   registry,
		Dispatcher: dispatcher,
		Resources:  res,
		Prompts:    prm,
		Logger:     logger.With("component", "mcp"),
		ServerName: cfg.Server.Name,
		Version:    Version,
	})
	if err != nil {
		_ = led.Close()
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	g := &Gateway{
		config:     cfg,
		logger:     logger.With("component", "gateway"),
		market:     mkt,
		registry:   registry,
		dispatcher: dispatcher,
		ledger:     led,
		resources:  res,
		prompts:    prm,
		mcpServer:  mcpServer,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/health/ready", g.handleReady)
	mux.HandleFunc("/docs", g.handleDocsIndex)
	mux.HandleFunc("/docs/", g.handleDocsPage)
	mux.HandleFunc("/stats/tools", g.handleToolStats)
	mux.HandleFunc("/stats/calls", g.handleRecentCalls)
	mcpServer.RegisterRoutes(mux)

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Seed.Path != "" {
		f, err := seed.Load(cfg.Seed.Path)
		if err != nil {
			_ = led.Close()
			return nil, err
		}
		if _, err := g.ApplySeed(context.Background(), f); err != nil {
			_ = led.Close()
			return nil, fmt.Errorf("applying seed file: %w", err)
		}
	}

	return g, nil
}

// ApplySeed replays a fixture file through the dispatcher.
func (g *Gateway) ApplySeed(ctx context.Context, f *seed.File) (seed.Summary, error) {
	sum, err := seed.Apply(ctx, g.dispatcher, f, g.logger.With("component", "seed"))
	if err != nil {
		return sum, err
	}
	g.logger.Info("seeded marketplace",
		"agents", sum.Agents,
		"tasks", sum.Tasks,
		"proposals", sum.Proposals,
	)
	return sum, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	if g.config.Docs.Watch {
		g.watchDone = make(chan struct{})
		if err := g.resources.Watch(g.watchDone, g.config.Docs.Dir); err != nil {
			_ = ln.Close()
			return fmt.Errorf("watching docs dir: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening",
			"addr", ln.Addr().String(),
			"tools", g.registry.Count(),
		)
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), g.config.Server.ShutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server, the docs watcher, and closes the ledger.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	if g.watchDone != nil {
		close(g.watchDone)
		g.watchDone = nil
	}

	if err := g.ledger.Close(); err != nil {
		errs = append(errs, fmt.Errorf("ledger close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
