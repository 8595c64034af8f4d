// Package charts renders PNG charts from the working table. Renderers only
// read the table; every grouping they need is built locally per call.
package charts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"salesbot/internal/errors"
	"salesbot/internal/models"
	"salesbot/internal/observability"
	"salesbot/internal/services"
)

const (
	defaultWidth  = 1200
	defaultHeight = 600
	wideWidth     = 2000

	rollingWindow = 10
)

// Chart is a rendered image ready to be delivered.
type Chart struct {
	Kind   models.ChartKind
	Period string
	Title  string
	PNG    []byte
}

type Renderer struct {
	table  *services.Table
	logger *slog.Logger
}

func NewRenderer(table *services.Table, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		table:  table,
		logger: logger,
	}
}

// Render dispatches to the renderer for kind. period is required for the
// month-scoped charts and ignored by the whole-dataset ones.
func (r *Renderer) Render(ctx context.Context, kind models.ChartKind, period string) (*Chart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if kind.NeedsMonth() && period == "" {
		return nil, errors.Format(fmt.Sprintf("%s needs a month in yyyy-mm format", kind))
	}

	_, span := observability.StartSpan(ctx, "chart.render")
	span.SetTag("kind", string(kind))

	var (
		chart *Chart
		err   error
	)
	switch kind {
	case models.ChartRevenueByDay:
		chart, err = r.RevenueByDay(period)
	case models.ChartRevenueByItem:
		chart, err = r.RevenueByItem(period)
	case models.ChartRevenueByCategory:
		chart, err = r.RevenueByCategory(period)
	case models.ChartAnnualTrend:
		chart, err = r.AnnualRevenueTrend()
	case models.ChartOrderSpread:
		chart, err = r.OrderCountSpreadByItem()
	case models.ChartARPUAndAOV:
		chart, err = r.ARPUAndAOVByMonth()
	default:
		return nil, errors.BadRequest(fmt.Sprintf("unknown chart %q", kind))
	}
	if err != nil {
		span.SetError(err)
		span.Finish()
		r.logger.Debug("chart not rendered", append(span.Attrs(), "period", period)...)
		return nil, err
	}

	span.Finish()
	r.logger.Debug("chart rendered", append(span.Attrs(), "period", period, "bytes", len(chart.PNG))...)
	return chart, nil
}

// monthRecords returns the records of month or a FORMAT_ERROR / NO_DATA error.
func (r *Renderer) monthRecords(month string) (services.Period, []models.Record, error) {
	p, err := services.ParseMonth(month)
	if err != nil {
		return p, nil, err
	}
	records := r.table.Filter(p.Contains)
	if len(records) == 0 {
		return p, nil, errors.NoData(fmt.Sprintf("no data available for %s", p.Key))
	}
	return p, records, nil
}

func (r *Renderer) allRecords() ([]models.Record, error) {
	if r.table.Len() == 0 {
		return nil, errors.NoData("no data available")
	}
	return r.table.Records(), nil
}

// safeRender runs a rendering function, turning library errors and panics into
// RENDER_ERROR.
func safeRender(kind models.ChartKind, fn func() ([]byte, error)) (png []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Render(fmt.Sprintf("render %s: %v", kind, rec))
		}
	}()

	png, err = fn()
	if err != nil {
		return nil, errors.RenderWrap(err, fmt.Sprintf("render %s", kind))
	}
	if len(png) == 0 {
		return nil, errors.Render(fmt.Sprintf("render %s: empty image", kind))
	}
	return png, nil
}

type sums struct {
	keys   []string
	values map[string]decimal.Decimal
}

// sumBy groups revenue by key and returns the keys sorted ascending.
func sumBy(records []models.Record, key func(models.Record) string) sums {
	s := sums{values: make(map[string]decimal.Decimal)}
	for _, rec := range records {
		k := key(rec)
		if _, ok := s.values[k]; !ok {
			s.keys = append(s.keys, k)
		}
		s.values[k] = s.values[k].Add(rec.Revenue)
	}
	sort.Strings(s.keys)
	return s
}

func (s sums) floats() []float64 {
	out := make([]float64, len(s.keys))
	for i, k := range s.keys {
		out[i] = s.values[k].Round(2).InexactFloat64()
	}
	return out
}

// trailingMean averages each value with up to window-1 predecessors.
func trailingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		n := min(i+1, window)
		out[i] = sum / float64(n)
	}
	return out
}
