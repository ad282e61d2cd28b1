package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/vulntor/volworker/pkg/config"
	"github.com/vulntor/volworker/pkg/server/api"
	"github.com/vulntor/volworker/pkg/server/httpx"
)

const shutdownTimeout = 30 * time.Second

// App orchestrates the worker runtime components:
// - Background job manager
// - Optional inbox watcher
// - Optional HTTP server (health + job API)
type App struct {
	HTTP   *http.Server
	Ready  *atomic.Bool
	Config config.ServerConfig
	Deps   *Deps

	addr atomic.Value
}

// New creates and configures a new worker application.
func New(cfg config.ServerConfig, deps *Deps) (*App, error) {
	if deps == nil || deps.Jobs == nil {
		return nil, errors.New("job manager is required")
	}

	ready := &atomic.Bool{}
	a := &App{
		Ready:  ready,
		Config: cfg,
		Deps:   deps,
	}

	if cfg.Enabled {
		apiCfg, err := api.FromServerConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("server config: %w", err)
		}
		router := httpx.NewRouter(&api.Deps{
			Jobs:         deps.Jobs,
			Catalog:      deps.Catalog,
			TaskDefaults: deps.TaskDefaults,
			Ready:        ready,
			Config:       apiCfg,
		})
		a.HTTP = &http.Server{
			Addr:         net.JoinHostPort(cfg.Addr, strconv.Itoa(cfg.Port)),
			Handler:      httpx.Chain(cfg, deps.Logger.With().Str("component", "http").Logger(), router),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		}
		if cfg.AuthToken == "" {
			deps.Logger.Warn().Msg("Job API authentication disabled")
		}
	}

	return a, nil
}

// Addr returns the address the HTTP server listens on, once it is running.
func (a *App) Addr() string {
	if v, ok := a.addr.Load().(string); ok {
		return v
	}
	return ""
}

// Run starts all components and blocks until ctx is canceled or a component fails.
func (a *App) Run(ctx context.Context) error {
	logger := a.Deps.Logger
	logger.Info().
		Bool("http", a.HTTP != nil).
		Bool("inbox", a.Deps.Inbox != nil).
		Msg("Starting volworker")

	runErr := make(chan error, 2)

	if a.HTTP != nil {
		ln, err := net.Listen("tcp", a.HTTP.Addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", a.HTTP.Addr, err)
		}
		a.addr.Store(ln.Addr().String())
		logger.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")

		go func() {
			if err := a.HTTP.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				runErr <- fmt.Errorf("HTTP server failed: %w", err)
			}
		}()
	}

	if err := a.Deps.Jobs.Start(ctx); err != nil {
		a.closeHTTP()
		return fmt.Errorf("start jobs: %w", err)
	}

	inboxCtx, stopInbox := context.WithCancel(ctx)
	defer stopInbox()
	inboxDone := make(chan struct{})
	if a.Deps.Inbox != nil {
		go func() {
			defer close(inboxDone)
			if err := a.Deps.Inbox.Start(inboxCtx); err != nil && !errors.Is(err, context.Canceled) {
				runErr <- fmt.Errorf("inbox watcher failed: %w", err)
			}
		}()
	} else {
		close(inboxDone)
	}

	a.Ready.Store(true)
	logger.Info().Msg("Worker is ready")

	var failure error
	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	case failure = <-runErr:
		logger.Error().Err(failure).Msg("Worker component failed")
	}

	stopInbox()
	<-inboxDone

	if err := a.shutdown(); err != nil && failure == nil {
		failure = err
	}
	return failure
}

// shutdown performs graceful shutdown of all components.
func (a *App) shutdown() error {
	logger := a.Deps.Logger
	logger.Info().Msg("Initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.Ready.Store(false)

	if a.HTTP != nil {
		if err := a.HTTP.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown failed")
			return err
		}
		logger.Info().Msg("HTTP server stopped")
	}

	if err := a.Deps.Jobs.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Jobs shutdown failed")
		return err
	}
	logger.Info().Msg("Shutdown complete")
	return nil
}

func (a *App) closeHTTP() {
	if a.HTTP != nil {
		_ = a.HTTP.Close()
	}
}
