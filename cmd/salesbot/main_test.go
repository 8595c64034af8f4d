package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"salesbot/internal/charts"
	"salesbot/internal/config"
	"salesbot/internal/middleware"
	"salesbot/internal/server"
	"salesbot/internal/services"
	"salesbot/internal/session"
)

const fixtureSchema = `
CREATE TABLE customers (customer_id INTEGER PRIMARY KEY, first_name TEXT);
CREATE TABLE categories (category_id INTEGER PRIMARY KEY, category_name TEXT);
CREATE TABLE items (item_id INTEGER PRIMARY KEY, item_name TEXT, category_id INTEGER);
CREATE TABLE orders (order_id INTEGER, customer_id INTEGER, item_id INTEGER, date TEXT, revenue NUMERIC);

INSERT INTO customers VALUES (1, 'Ann'), (2, 'Bob');
INSERT INTO categories VALUES (1, 'Drinks'), (2, 'Snacks');
INSERT INTO items VALUES (10, 'Coffee', 1), (11, 'Cookie', 2);
INSERT INTO orders VALUES
	(100, 1, 10, '2023-05-30', 60),
	(101, 1, 10, '2023-06-15', 100),
	(102, 2, 11, '2023-06-16', 20),
	(103, 9, 10, '2023-06-17', 40);
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fixtureDatabase(t *testing.T) config.DatabaseConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(fixtureSchema); err != nil {
		t.Fatalf("create fixture: %v", err)
	}

	return config.DatabaseConfig{Driver: "sqlite3", DSN: path, LoadTimeout: 5 * time.Second}
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ShutdownTimeout: time.Second},
		Security: config.SecurityConfig{
			EnableRateLimit: true,
			RateLimitRPS:    100,
			RateLimitBurst:  100,
			AllowedOrigins:  []string{"http://localhost:8084"},
			TrustedProxies:  []string{"127.0.0.1"},
		},
	}
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	table, err := loadTable(fixtureDatabase(t), testLogger())
	if err != nil {
		t.Fatalf("loadTable() error = %v", err)
	}
	analytics := services.NewAnalytics(table, testLogger())
	srv := server.NewServer(analytics, charts.NewRenderer(table, testLogger()), testLogger(),
		&server.TemplateHandlers{Dashboard: handleDashboard(analytics)}).WithVersion(version)

	cfg := testConfig()
	return newHandler(cfg, srv, middleware.NewRateLimiter(cfg.Security), testLogger())
}

func TestLoadTable(t *testing.T) {
	table, err := loadTable(fixtureDatabase(t), testLogger())
	if err != nil {
		t.Fatalf("loadTable() error = %v", err)
	}

	if table.Len() != 3 {
		t.Errorf("expected 3 records, got %d", table.Len())
	}
	if table.Dropped() != 1 {
		t.Errorf("expected 1 dropped order, got %d", table.Dropped())
	}
	if months := table.Months(); len(months) != 2 || months[0] != "2023-05" {
		t.Errorf("unexpected months %v", months)
	}
}

func TestLoadTable_Unreachable(t *testing.T) {
	cfg := config.DatabaseConfig{
		Driver:      "sqlite3",
		DSN:         filepath.Join(t.TempDir(), "missing", "sales.db"),
		LoadTimeout: time.Second,
	}
	if _, err := loadTable(cfg, testLogger()); err == nil {
		t.Error("expected error for unreachable database")
	}
}

func TestHandler_EndToEnd(t *testing.T) {
	handler := newTestHandler(t)

	tests := []struct {
		path        string
		wantStatus  int
		contentType string
	}{
		{"/", http.StatusOK, "text/html"},
		{"/health", http.StatusOK, "application/json"},
		{"/api/metrics/2023-06", http.StatusOK, "application/json"},
		{"/api/metrics/2023-06-15", http.StatusOK, "application/json"},
		{"/api/metrics/2023-07", http.StatusNotFound, "application/json"},
		{"/api/metrics/23-07", http.StatusBadRequest, "application/json"},
		{"/api/charts/revenue_by_category?period=2023-06", http.StatusOK, "image/png"},
		{"/sse/metrics?period=2023-06", http.StatusOK, "text/event-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, tt.contentType) {
				t.Errorf("expected content-type %q, got %q", tt.contentType, ct)
			}
			if w.Header().Get("X-Request-ID") == "" {
				t.Error("expected X-Request-ID header")
			}
			if w.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Error("expected security headers")
			}
		})
	}
}

func TestHandler_MonthlyMetrics(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/metrics/2023-06", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var response struct {
		Data struct {
			Revenue struct {
				Current string `json:"current"`
				Change  struct {
					Percent   float64 `json:"percent"`
					Available bool    `json:"available"`
				} `json:"change"`
			} `json:"revenue"`
			ARPU struct {
				Current string `json:"current"`
			} `json:"arpu"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}

	if response.Data.Revenue.Current != "120" {
		t.Errorf("expected revenue 120, got %s", response.Data.Revenue.Current)
	}
	if !response.Data.Revenue.Change.Available || response.Data.Revenue.Change.Percent != 100 {
		t.Errorf("expected +100%% change, got %+v", response.Data.Revenue.Change)
	}
	if response.Data.ARPU.Current != "60" {
		t.Errorf("expected ARPU 60, got %s", response.Data.ARPU.Current)
	}
}

func TestHandler_HealthReportsVersion(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var response struct {
		Data map[string]string `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if response.Data["version"] != version {
		t.Errorf("expected version %s, got %q", version, response.Data["version"])
	}
}

func TestHandleDashboard(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	body := w.Body.String()
	for _, want := range []string{"Sales report", "Data from 2023-05-30 to 2023-06-16", `<option value="2023-06">`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected dashboard to contain %q", want)
		}
	}
	if cc := w.Header().Get("Cache-Control"); cc != cacheMaxAge {
		t.Errorf("expected cache-control %q, got %q", cacheMaxAge, cc)
	}
}

func TestNewSessionStore(t *testing.T) {
	ctx := context.Background()

	store, closeFn, err := newSessionStore(ctx, config.SessionConfig{Backend: "memory"})
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	if _, ok := store.(*session.MemoryStore); !ok {
		t.Errorf("expected memory store, got %T", store)
	}
	if err := closeFn(); err != nil {
		t.Errorf("close memory store: %v", err)
	}

	mr := miniredis.RunT(t)
	store, closeFn, err = newSessionStore(ctx, config.SessionConfig{
		Backend:     "redis",
		RedisAddr:   mr.Addr(),
		RedisPrefix: "salesbot:session:",
		TTL:         time.Hour,
	})
	if err != nil {
		t.Fatalf("redis store: %v", err)
	}
	defer closeFn()
	if _, ok := store.(*session.RedisStore); !ok {
		t.Errorf("expected redis store, got %T", store)
	}

	addr := mr.Addr()
	mr.Close()
	if _, _, err := newSessionStore(ctx, config.SessionConfig{Backend: "redis", RedisAddr: addr}); err == nil {
		t.Error("expected error when redis is unreachable")
	}
}
