package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"salesbot/internal/config"
)

const hookTimeout = 10 * time.Second

// GracefulServer runs the HTTP server and background workers until a
// signal arrives or a worker stops, then runs the shutdown hooks. The HTTP
// server is optional.
type GracefulServer struct {
	server     *http.Server
	logger     *slog.Logger
	config     *config.Config
	shutdownFn []func(ctx context.Context) error
	workers    []func(ctx context.Context) error
	mu         sync.RWMutex
}

func NewGracefulServer(server *http.Server, logger *slog.Logger, config *config.Config) *GracefulServer {
	return &GracefulServer{
		server:     server,
		logger:     logger,
		config:     config,
		shutdownFn: make([]func(ctx context.Context) error, 0),
	}
}

func (gs *GracefulServer) RegisterShutdownHook(fn func(ctx context.Context) error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.shutdownFn = append(gs.shutdownFn, fn)
}

// Go registers a worker that runs until its context is canceled. A worker
// returning, with or without error, stops everything else.
func (gs *GracefulServer) Go(fn func(ctx context.Context) error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.workers = append(gs.workers, fn)
}

func (gs *GracefulServer) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return gs.Run(ctx)
}

// Run blocks until ctx is done or a worker stops. Shutdown then stops the
// HTTP server, waits for every worker to return and only after that runs the
// hooks, so hooks may release resources the workers were still using.
func (gs *GracefulServer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	gs.mu.RLock()
	workers := make([]func(ctx context.Context) error, len(gs.workers))
	copy(workers, gs.workers)
	gs.mu.RUnlock()

	var g errgroup.Group

	for i, worker := range workers {
		g.Go(func() error {
			defer cancel()
			if err := worker(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("worker %d failed: %w", i, err)
			}
			return nil
		})
	}

	if gs.server != nil {
		g.Go(func() error {
			defer cancel()
			gs.logger.Info("starting server",
				"addr", gs.server.Addr,
				"read_timeout", gs.config.Server.ReadTimeout,
				"write_timeout", gs.config.Server.WriteTimeout,
			)
			if err := gs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		})
	}

	<-ctx.Done()
	gs.logger.Info("shutdown requested", "cause", context.Cause(ctx))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), gs.config.Server.ShutdownTimeout)
	defer cancelShutdown()
	return gs.shutdown(shutdownCtx, &g)
}

func (gs *GracefulServer) shutdown(ctx context.Context, g *errgroup.Group) error {
	gs.logger.Info("starting graceful shutdown",
		"timeout", gs.config.Server.ShutdownTimeout,
	)

	var serverErr error
	if gs.server != nil {
		gs.logger.Info("stopping HTTP server")
		if err := gs.server.Shutdown(ctx); err != nil {
			gs.logger.Error("HTTP server shutdown failed", "error", err)
			serverErr = fmt.Errorf("HTTP server shutdown failed: %w", err)
		} else {
			gs.logger.Info("HTTP server stopped gracefully")
		}
	}

	stopped := make(chan error, 1)
	go func() { stopped <- g.Wait() }()

	var workerErr error
	select {
	case workerErr = <-stopped:
		gs.logger.Info("workers stopped")
	case <-ctx.Done():
		gs.logger.Warn("shutdown timeout exceeded while waiting for workers, forcing exit")
		return ctx.Err()
	}

	if err := gs.runHooks(ctx); err != nil {
		return errors.Join(workerErr, serverErr, err)
	}
	gs.logger.Info("graceful shutdown completed")
	return errors.Join(workerErr, serverErr)
}

func (gs *GracefulServer) runHooks(ctx context.Context) error {
	gs.mu.RLock()
	hooks := make([]func(ctx context.Context) error, len(gs.shutdownFn))
	copy(hooks, gs.shutdownFn)
	gs.mu.RUnlock()

	var wg sync.WaitGroup
	errChan := make(chan error, len(hooks))

	for i, hook := range hooks {
		wg.Add(1)
		go func(idx int, fn func(ctx context.Context) error) {
			defer wg.Done()

			hookCtx, cancel := context.WithTimeout(ctx, hookTimeout)
			defer cancel()

			gs.logger.Debug("executing shutdown hook", "hook_index", idx)
			if err := fn(hookCtx); err != nil {
				gs.logger.Error("shutdown hook failed",
					"hook_index", idx,
					"error", err,
				)
				errChan <- fmt.Errorf("shutdown hook %d failed: %w", idx, err)
			} else {
				gs.logger.Debug("shutdown hook completed", "hook_index", idx)
			}
		}(i, hook)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		close(errChan)
		var errs []error
		for err := range errChan {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	case <-ctx.Done():
		gs.logger.Warn("shutdown timeout exceeded, forcing exit")
		return ctx.Err()
	}
}
