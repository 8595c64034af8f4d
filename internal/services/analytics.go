package services

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/shopspring/decimal"

	"salesbot/internal/errors"
	"salesbot/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Analytics answers metric queries against a shared Table. It holds no
// mutable state, so one value serves any number of concurrent callers.
type Analytics struct {
	table  *Table
	logger *slog.Logger
}

func NewAnalytics(table *Table, logger *slog.Logger) *Analytics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analytics{
		table:  table,
		logger: logger,
	}
}

func (a *Analytics) Table() *Table {
	return a.table
}

type periodTotals struct {
	records   int
	revenue   decimal.Decimal
	orders    int
	customers int
}

func (t periodTotals) aov() decimal.Decimal {
	if t.orders == 0 {
		return decimal.Zero
	}
	return t.revenue.Div(decimal.NewFromInt(int64(t.orders)))
}

func (t periodTotals) arpu() decimal.Decimal {
	if t.customers == 0 {
		return decimal.Zero
	}
	return t.revenue.Div(decimal.NewFromInt(int64(t.customers)))
}

func (t periodTotals) total() decimal.Decimal {
	return t.revenue
}

func (a *Analytics) totals(p Period) periodTotals {
	orders := make(map[int64]struct{})
	customers := make(map[int64]struct{})
	t := periodTotals{revenue: decimal.Zero}

	for _, rec := range a.table.records {
		if !p.Contains(rec) {
			continue
		}
		t.records++
		t.revenue = t.revenue.Add(rec.Revenue)
		orders[rec.OrderID] = struct{}{}
		customers[rec.CustomerID] = struct{}{}
	}

	t.orders = len(orders)
	t.customers = len(customers)
	return t
}

func (a *Analytics) metric(period string, previous bool, pick func(periodTotals) decimal.Decimal) (decimal.Decimal, error) {
	p, err := ParsePeriod(period)
	if err != nil {
		return decimal.Zero, err
	}
	if previous {
		p = p.Previous()
	}

	t := a.totals(p)
	if t.records == 0 {
		return decimal.Zero, noData(p)
	}
	return pick(t), nil
}

func noData(p Period) *errors.AppError {
	return errors.NoData(fmt.Sprintf("no data available for %s", p.Key))
}

// TotalRevenue sums revenue over the day (yyyy-mm-dd) or month (yyyy-mm).
// A period without records yields zero and a NO_DATA error.
func (a *Analytics) TotalRevenue(period string) (decimal.Decimal, error) {
	return a.metric(period, false, periodTotals.total)
}

// AvgRevenuePerOrder divides the period revenue by its distinct orders.
func (a *Analytics) AvgRevenuePerOrder(period string) (decimal.Decimal, error) {
	return a.metric(period, false, periodTotals.aov)
}

// ARPU divides the period revenue by its distinct customers.
func (a *Analytics) ARPU(period string) (decimal.Decimal, error) {
	return a.metric(period, false, periodTotals.arpu)
}

func (a *Analytics) PreviousTotalRevenue(period string) (decimal.Decimal, error) {
	return a.metric(period, true, periodTotals.total)
}

func (a *Analytics) PreviousAvgRevenuePerOrder(period string) (decimal.Decimal, error) {
	return a.metric(period, true, periodTotals.aov)
}

func (a *Analytics) PreviousARPU(period string) (decimal.Decimal, error) {
	return a.metric(period, true, periodTotals.arpu)
}

// PercentChange compares current against previous. The change is reported as
// unavailable when previous is not positive.
func PercentChange(current, previous decimal.Decimal) models.Change {
	if previous.Sign() <= 0 {
		return models.Change{}
	}
	pct := current.Sub(previous).Div(previous).Mul(hundred)
	return models.Change{Percent: pct.InexactFloat64(), Available: true}
}

// Summary computes all three metrics for period and its predecessor. When the
// period itself has no records the zeroed summary is returned together with
// a NO_DATA error.
func (a *Analytics) Summary(period string) (*models.MetricSummary, error) {
	p, err := ParsePeriod(period)
	if err != nil {
		return nil, err
	}
	return a.summary(p)
}

// DailySummary is Summary restricted to yyyy-mm-dd input.
func (a *Analytics) DailySummary(day string) (*models.MetricSummary, error) {
	p, err := ParseDay(day)
	if err != nil {
		return nil, err
	}
	return a.summary(p)
}

// MonthlySummary is Summary restricted to yyyy-mm input.
func (a *Analytics) MonthlySummary(month string) (*models.MetricSummary, error) {
	p, err := ParseMonth(month)
	if err != nil {
		return nil, err
	}
	return a.summary(p)
}

func (a *Analytics) summary(p Period) (*models.MetricSummary, error) {
	prev := p.Previous()
	cur := a.totals(p)
	old := a.totals(prev)

	s := &models.MetricSummary{
		Period:         p.Key,
		PreviousPeriod: prev.Key,
		Kind:           p.Kind,
		Records:        cur.records,
		Revenue:        pair(cur.total(), old.total()),
		AOV:            pair(cur.aov(), old.aov()),
		ARPU:           pair(cur.arpu(), old.arpu()),
	}

	a.logger.Debug("metric summary computed",
		"period", p.Key,
		"records", cur.records,
		"previous_records", old.records,
	)

	if cur.records == 0 {
		return s, noData(p)
	}
	return s, nil
}

func pair(current, previous decimal.Decimal) models.MetricPair {
	return models.MetricPair{
		Current:  current,
		Previous: previous,
		Change:   PercentChange(current, previous),
	}
}

func (a *Analytics) DateRange() models.DateRange {
	return a.table.DateRange()
}

// MonthlyRevenue aggregates revenue, distinct orders and distinct customers
// per month in chronological order.
func (a *Analytics) MonthlyRevenue() []models.MonthlyData {
	type acc struct {
		revenue   decimal.Decimal
		orders    map[int64]struct{}
		customers map[int64]struct{}
	}

	groups := make(map[string]*acc)
	for _, rec := range a.table.records {
		g := groups[rec.YearMonth]
		if g == nil {
			g = &acc{
				orders:    make(map[int64]struct{}),
				customers: make(map[int64]struct{}),
			}
			groups[rec.YearMonth] = g
		}
		g.revenue = g.revenue.Add(rec.Revenue)
		g.orders[rec.OrderID] = struct{}{}
		g.customers[rec.CustomerID] = struct{}{}
	}

	result := make([]models.MonthlyData, 0, len(groups))
	for month, g := range groups {
		result = append(result, models.MonthlyData{
			Month:   month,
			Revenue: g.revenue.InexactFloat64(),
			Orders:  len(g.orders),
			Users:   len(g.customers),
		})
	}
	slices.SortFunc(result, func(a, b models.MonthlyData) int {
		if a.Month < b.Month {
			return -1
		}
		if a.Month > b.Month {
			return 1
		}
		return 0
	})
	return result
}

// Utility method for monitoring
func (a *Analytics) Stats() map[string]any {
	dr := a.table.DateRange()
	stats := map[string]any{
		"record_count":   a.table.Len(),
		"dropped_orders": a.table.Dropped(),
		"months":         len(a.table.months),
	}
	if !dr.IsZero() {
		stats["first_date"] = dr.From.Format(DayLayout)
		stats["last_date"] = dr.To.Format(DayLayout)
	}
	return stats
}
