package models

import "github.com/shopspring/decimal"

type PeriodKind string

const (
	PeriodDay   PeriodKind = "day"
	PeriodMonth PeriodKind = "month"
)

// Change is a percent change against the previous period. Available is false
// when the previous value is zero or missing.
type Change struct {
	Percent   float64 `json:"percent"`
	Available bool    `json:"available"`
}

type MetricPair struct {
	Current  decimal.Decimal `json:"current"`
	Previous decimal.Decimal `json:"previous"`
	Change   Change          `json:"change"`
}

type MetricSummary struct {
	Period         string     `json:"period"`
	PreviousPeriod string     `json:"previous_period"`
	Kind           PeriodKind `json:"kind"`
	Records        int        `json:"records"`
	Revenue        MetricPair `json:"revenue"`
	AOV            MetricPair `json:"aov"`
	ARPU           MetricPair `json:"arpu"`
}
