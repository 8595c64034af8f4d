package charts

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"salesbot/internal/models"
)

// series is a labelled sequence of values ready to plot.
type series struct {
	labels []string
	values []float64
}

// dailyRevenue sums revenue per date. Labels are the day of month.
func dailyRevenue(records []models.Record) series {
	// Dates are zero-padded, so sorting by the full date orders the days.
	daily := sumBy(records, func(rec models.Record) string { return rec.Date })
	labels := make([]string, len(daily.keys))
	for i, date := range daily.keys {
		day, _ := strconv.Atoi(date[8:])
		labels[i] = strconv.Itoa(day)
	}
	return series{labels: labels, values: daily.floats()}
}

func itemRevenue(records []models.Record) series {
	byItem := sumBy(records, func(rec models.Record) string { return rec.ItemName })
	return series{labels: byItem.keys, values: byItem.floats()}
}

// categoryShares sums revenue per category and labels each slice with its
// share of the total. ok is false when the total is zero.
func categoryShares(records []models.Record) (s series, ok bool) {
	byCategory := sumBy(records, func(rec models.Record) string { return rec.CategoryName })

	total := decimal.Zero
	for _, v := range byCategory.values {
		total = total.Add(v)
	}
	if !total.IsPositive() {
		return series{}, false
	}

	s = series{
		labels: make([]string, len(byCategory.keys)),
		values: byCategory.floats(),
	}
	for i, name := range byCategory.keys {
		share := byCategory.values[name].Div(total).Mul(decimal.NewFromInt(100))
		s.labels[i] = fmt.Sprintf("%s (%s%%)", name, share.StringFixed(1))
	}
	return s, true
}

// monthlyTrend sums revenue per month and the trailing mean over it.
func monthlyTrend(records []models.Record) (s series, rolling []float64) {
	monthly := sumBy(records, func(rec models.Record) string { return rec.YearMonth })
	s = series{labels: monthly.keys, values: monthly.floats()}
	return s, trailingMean(s.values, rollingWindow)
}

// orderCountsByItem counts records per item and month. Months without
// orders for an item are absent from its map.
func orderCountsByItem(records []models.Record) map[string]map[string]int {
	counts := make(map[string]map[string]int)
	for _, rec := range records {
		byMonth := counts[rec.ItemName]
		if byMonth == nil {
			byMonth = make(map[string]int)
			counts[rec.ItemName] = byMonth
		}
		byMonth[rec.YearMonth]++
	}
	return counts
}

// monthlyARPUAndAOV returns, per month in order, revenue over distinct
// customers and revenue over distinct orders, rounded to cents.
func monthlyARPUAndAOV(records []models.Record) (months []string, arpu, aov []float64) {
	type group struct {
		revenue   decimal.Decimal
		orders    map[int64]struct{}
		customers map[int64]struct{}
	}
	groups := make(map[string]*group)
	for _, rec := range records {
		g := groups[rec.YearMonth]
		if g == nil {
			g = &group{
				orders:    make(map[int64]struct{}),
				customers: make(map[int64]struct{}),
			}
			groups[rec.YearMonth] = g
			months = append(months, rec.YearMonth)
		}
		g.revenue = g.revenue.Add(rec.Revenue)
		g.orders[rec.OrderID] = struct{}{}
		g.customers[rec.CustomerID] = struct{}{}
	}
	sort.Strings(months)

	arpu = make([]float64, len(months))
	aov = make([]float64, len(months))
	for i, month := range months {
		g := groups[month]
		arpu[i] = g.revenue.Div(decimal.NewFromInt(int64(len(g.customers)))).Round(2).InexactFloat64()
		aov[i] = g.revenue.Div(decimal.NewFromInt(int64(len(g.orders)))).Round(2).InexactFloat64()
	}
	return months, arpu, aov
}
