// Package loader reads the four source tables the working table is built from.
package loader

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/errgroup"

	"salesbot/internal/models"
)

// Source table names. Each is read with a single flat SELECT.
const (
	TableOrders     = "orders"
	TableCustomers  = "customers"
	TableItems      = "items"
	TableCategories = "categories"
)

// Querier is the subset of *sql.DB the loader needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Loader struct {
	db     Querier
	logger *slog.Logger
}

func New(db Querier, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{db: db, logger: logger}
}

// Open opens a database handle for driver ("postgres", "pgx" or "sqlite3")
// and verifies connectivity.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

// Load reads all four tables concurrently. Any failure aborts the others.
func (l *Loader) Load(ctx context.Context) (*models.RowSets, error) {
	start := time.Now()
	var rows models.RowSets

	g, ctx := errgroup.WithContext(ctx)
	targets := []struct {
		table string
		dst   *[]models.Row
	}{
		{TableOrders, &rows.Orders},
		{TableCustomers, &rows.Customers},
		{TableItems, &rows.Items},
		{TableCategories, &rows.Categories},
	}
	for _, target := range targets {
		g.Go(func() error {
			result, err := l.queryTable(ctx, target.table)
			if err != nil {
				return err
			}
			*target.dst = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	l.logger.Info("source tables loaded",
		"orders", len(rows.Orders),
		"customers", len(rows.Customers),
		"items", len(rows.Items),
		"categories", len(rows.Categories),
		"duration", time.Since(start),
	)
	return &rows, nil
}

func (l *Loader) queryTable(ctx context.Context, table string) ([]models.Row, error) {
	rows, err := l.db.QueryContext(ctx, "SELECT * FROM "+table)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns %s: %w", table, err)
	}

	var result []models.Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}

		row := make(models.Row, len(columns))
		for i, col := range columns {
			// Drivers reuse []byte buffers between rows.
			if b, ok := values[i].([]byte); ok {
				values[i] = string(b)
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return result, nil
}
