package services

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"salesbot/internal/errors"
	"salesbot/internal/models"
)

var dateLayouts = []string{
	DayLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
}

// Table is the joined, read-only working table. All accessors return fresh
// slices so callers can never modify the shared records.
type Table struct {
	records   []models.Record
	months    []string
	dateRange models.DateRange
	dropped   int
}

type itemRow struct {
	name       string
	categoryID int64
}

// BuildTable inner-joins orders with customers, items and categories.
// Orders whose keys have no match are dropped and counted in Dropped.
func BuildTable(rows models.RowSets) (*Table, error) {
	customers := make(map[int64]int, len(rows.Customers))
	for i, row := range rows.Customers {
		id, err := intColumn(row, "customer_id")
		if err != nil {
			return nil, errors.DataWrap(err, fmt.Sprintf("customers row %d", i))
		}
		customers[id]++
	}

	items := make(map[int64][]itemRow, len(rows.Items))
	for i, row := range rows.Items {
		id, err := intColumn(row, "item_id")
		if err != nil {
			return nil, errors.DataWrap(err, fmt.Sprintf("items row %d", i))
		}
		categoryID, err := intColumn(row, "category_id")
		if err != nil {
			return nil, errors.DataWrap(err, fmt.Sprintf("items row %d", i))
		}
		name, err := stringColumn(row, "item_name")
		if err != nil {
			return nil, errors.DataWrap(err, fmt.Sprintf("items row %d", i))
		}
		items[id] = append(items[id], itemRow{name: name, categoryID: categoryID})
	}

	categories := make(map[int64][]string, len(rows.Categories))
	for i, row := range rows.Categories {
		id, err := intColumn(row, "category_id")
		if err != nil {
			return nil, errors.DataWrap(err, fmt.Sprintf("categories row %d", i))
		}
		name, err := stringColumn(row, "category_name")
		if err != nil {
			return nil, errors.DataWrap(err, fmt.Sprintf("categories row %d", i))
		}
		categories[id] = append(categories[id], name)
	}

	records := make([]models.Record, 0, len(rows.Orders))
	dropped := 0
	for i, row := range rows.Orders {
		order, err := parseOrder(row)
		if err != nil {
			return nil, errors.DataWrap(err, fmt.Sprintf("orders row %d", i))
		}

		matchedCustomers := customers[order.CustomerID]
		matched := false
		for range matchedCustomers {
			for _, item := range items[order.itemID] {
				for _, category := range categories[item.categoryID] {
					rec := order.Record
					rec.ItemName = item.name
					rec.CategoryName = category
					records = append(records, rec)
					matched = true
				}
			}
		}
		if !matched {
			dropped++
		}
	}

	t := newTable(records)
	t.dropped = dropped
	return t, nil
}

// NewTableFromRecords builds a table from already joined records, deriving
// YearMonth from Date. It is the entry point for fixtures and tests.
func NewTableFromRecords(records []models.Record) (*Table, error) {
	out := make([]models.Record, len(records))
	for i, rec := range records {
		d, err := parseDate(rec.Date)
		if err != nil {
			return nil, errors.DataWrap(err, fmt.Sprintf("record %d", i))
		}
		if rec.Revenue.IsNegative() {
			return nil, errors.Data(fmt.Sprintf("record %d has negative revenue %s", i, rec.Revenue))
		}
		rec.Date = d.Format(DayLayout)
		rec.YearMonth = d.Format(MonthLayout)
		out[i] = rec
	}
	return newTable(out), nil
}

func newTable(records []models.Record) *Table {
	t := &Table{records: records}

	seen := make(map[string]struct{})
	for _, rec := range records {
		if _, ok := seen[rec.YearMonth]; !ok {
			seen[rec.YearMonth] = struct{}{}
			t.months = append(t.months, rec.YearMonth)
		}
	}
	slices.Sort(t.months)

	if len(records) > 0 {
		first, last := records[0].Date, records[0].Date
		for _, rec := range records[1:] {
			first = min(first, rec.Date)
			last = max(last, rec.Date)
		}
		from, _ := time.Parse(DayLayout, first)
		to, _ := time.Parse(DayLayout, last)
		t.dateRange = models.DateRange{From: from, To: to}
	}
	return t
}

func (t *Table) Len() int {
	return len(t.records)
}

// Dropped is the number of orders that found no match during the joins.
func (t *Table) Dropped() int {
	return t.dropped
}

func (t *Table) Records() []models.Record {
	return slices.Clone(t.records)
}

func (t *Table) Filter(keep func(models.Record) bool) []models.Record {
	var out []models.Record
	for _, rec := range t.records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// Months lists the distinct year_month keys in chronological order.
func (t *Table) Months() []string {
	return slices.Clone(t.months)
}

func (t *Table) DateRange() models.DateRange {
	return t.dateRange
}

type orderRow struct {
	models.Record
	itemID int64
}

func parseOrder(row models.Row) (orderRow, error) {
	var o orderRow
	var err error

	if o.OrderID, err = intColumn(row, "order_id"); err != nil {
		return o, err
	}
	if o.CustomerID, err = intColumn(row, "customer_id"); err != nil {
		return o, err
	}
	if o.itemID, err = intColumn(row, "item_id"); err != nil {
		return o, err
	}

	raw, ok := row["revenue"]
	if !ok {
		return o, fmt.Errorf("missing column revenue")
	}
	if o.Revenue, err = toDecimal(raw); err != nil {
		return o, fmt.Errorf("column revenue: %w", err)
	}
	if o.Revenue.IsNegative() {
		return o, fmt.Errorf("negative revenue %s", o.Revenue)
	}

	raw, ok = row["date"]
	if !ok {
		return o, fmt.Errorf("missing column date")
	}
	d, err := toDate(raw)
	if err != nil {
		return o, fmt.Errorf("column date: %w", err)
	}
	o.Date = d.Format(DayLayout)
	o.YearMonth = d.Format(MonthLayout)

	return o, nil
}

func intColumn(row models.Row, column string) (int64, error) {
	raw, ok := row[column]
	if !ok || raw == nil {
		return 0, fmt.Errorf("missing column %s", column)
	}
	v, err := toInt64(raw)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", column, err)
	}
	return v, nil
}

func stringColumn(row models.Row, column string) (string, error) {
	raw, ok := row[column]
	if !ok || raw == nil {
		return "", fmt.Errorf("missing column %s", column)
	}
	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return fmt.Sprint(v), nil
	}
}

func toInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("non-integer key %v", v)
		}
		return int64(v), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported key type %T", raw)
	}
}

func toDecimal(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	case []byte:
		return decimal.NewFromString(strings.TrimSpace(string(v)))
	case nil:
		return decimal.Zero, fmt.Errorf("null value")
	default:
		return decimal.Zero, fmt.Errorf("unsupported numeric type %T", raw)
	}
}

func toDate(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		return parseDate(v)
	case []byte:
		return parseDate(string(v))
	default:
		return time.Time{}, fmt.Errorf("unsupported date type %T", raw)
	}
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}
