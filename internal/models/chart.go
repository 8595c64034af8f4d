package models

// ChartKind names one of the charts the renderer can produce.
type ChartKind string

const (
	ChartRevenueByDay      ChartKind = "revenue_by_day"
	ChartRevenueByItem     ChartKind = "revenue_by_item"
	ChartRevenueByCategory ChartKind = "revenue_by_category"
	ChartAnnualTrend       ChartKind = "annual_revenue"
	ChartOrderSpread       ChartKind = "order_spread"
	ChartARPUAndAOV        ChartKind = "arpu_aov"
)

var AnnualCharts = []ChartKind{ChartAnnualTrend, ChartARPUAndAOV, ChartOrderSpread}

// NeedsMonth reports whether the chart is scoped to a single month.
func (k ChartKind) NeedsMonth() bool {
	switch k {
	case ChartRevenueByDay, ChartRevenueByItem, ChartRevenueByCategory:
		return true
	}
	return false
}

func (k ChartKind) Valid() bool {
	switch k {
	case ChartRevenueByDay, ChartRevenueByItem, ChartRevenueByCategory,
		ChartAnnualTrend, ChartOrderSpread, ChartARPUAndAOV:
		return true
	}
	return false
}
