package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"salesbot/internal/charts"
	"salesbot/internal/config"
	"salesbot/internal/models"
	"salesbot/internal/services"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ShutdownTimeout: 2 * time.Second},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	table, err := services.NewTableFromRecords([]models.Record{
		{OrderID: 1, CustomerID: 1, ItemName: "Latte", CategoryName: "Coffee", Date: "2023-06-14", Revenue: decimal.NewFromInt(50)},
	})
	if err != nil {
		t.Fatalf("NewTableFromRecords() error = %v", err)
	}
	analytics := services.NewAnalytics(table, testLogger())
	dashboard := func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("dashboard")) }
	return NewServer(analytics, charts.NewRenderer(table, testLogger()), testLogger(), &TemplateHandlers{Dashboard: dashboard})
}

func TestServer_Routes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/", http.StatusOK},
		{"/health", http.StatusOK},
		{"/admin/stats", http.StatusOK},
		{"/api/metrics/2023-06-14", http.StatusOK},
		{"/api/metrics/2023-06", http.StatusOK},
		{"/api/monthly-revenue", http.StatusOK},
		{"/api/charts/revenue_by_day?period=2023-06", http.StatusOK},
		{"/sse/metrics?period=2023-06", http.StatusOK},
		{"/sse/monthly-revenue", http.StatusOK},
		{"/nonexistent", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/monthly-revenue", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, w.Code)
	}
}

func TestGracefulServer_RunsWorkersAndHooks(t *testing.T) {
	gs := NewGracefulServer(nil, testLogger(), testConfig())

	var started, hooked atomic.Bool
	gs.Go(func(ctx context.Context) error {
		started.Store(true)
		<-ctx.Done()
		return ctx.Err()
	})
	gs.RegisterShutdownHook(func(ctx context.Context) error {
		hooked.Store(true)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}

	if !started.Load() || !hooked.Load() {
		t.Errorf("expected worker and hook to run, got started=%v hooked=%v", started.Load(), hooked.Load())
	}
}

func TestGracefulServer_WorkerFailureStopsServer(t *testing.T) {
	httpServer := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	gs := NewGracefulServer(httpServer, testLogger(), testConfig())

	gs.Go(func(ctx context.Context) error {
		return errors.New("telegram unreachable")
	})

	done := make(chan error, 1)
	go func() { done <- gs.Run(context.Background()) }()

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "telegram unreachable") {
			t.Errorf("expected worker error, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after worker failure")
	}
}

func TestGracefulServer_HookErrorIsReported(t *testing.T) {
	gs := NewGracefulServer(nil, testLogger(), testConfig())
	gs.RegisterShutdownHook(func(ctx context.Context) error {
		return errors.New("flush failed")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := gs.Run(ctx)
	if err == nil || !strings.Contains(err.Error(), "flush failed") {
		t.Errorf("expected hook error, got %v", err)
	}
}

func TestGracefulServer_HooksRunAfterWorkersReturn(t *testing.T) {
	gs := NewGracefulServer(nil, testLogger(), testConfig())

	var workerDone atomic.Bool
	gs.Go(func(ctx context.Context) error {
		<-ctx.Done()
		// Still draining in-flight work after cancellation.
		time.Sleep(100 * time.Millisecond)
		workerDone.Store(true)
		return nil
	})

	var closedEarly atomic.Bool
	gs.RegisterShutdownHook(func(ctx context.Context) error {
		if !workerDone.Load() {
			closedEarly.Store(true)
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := gs.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if closedEarly.Load() {
		t.Error("shutdown hook ran while a worker was still running")
	}
}
