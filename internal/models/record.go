package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Row is one source row keyed by column name, as returned by a flat SELECT.
type Row map[string]any

// RowSets holds the four source tables the working table is built from.
type RowSets struct {
	Orders     []Row
	Customers  []Row
	Items      []Row
	Categories []Row
}

// Record is one order line of the working table.
type Record struct {
	OrderID      int64           `json:"order_id"`
	CustomerID   int64           `json:"customer_id"`
	ItemName     string          `json:"item_name"`
	CategoryName string          `json:"category_name"`
	Revenue      decimal.Decimal `json:"revenue"`
	Date         string          `json:"date"`
	YearMonth    string          `json:"year_month"`
}

type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

type MonthlyData struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
	Orders  int     `json:"orders"`
	Users   int     `json:"customers"`
}
