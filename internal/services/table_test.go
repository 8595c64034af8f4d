package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"salesbot/internal/errors"
	"salesbot/internal/models"
)

func sourceRows() models.RowSets {
	return models.RowSets{
		Orders: []models.Row{
			{"order_id": int64(1), "customer_id": int64(10), "item_id": int64(100), "date": time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC), "revenue": []byte("100.50")},
			{"order_id": int64(2), "customer_id": int64(11), "item_id": int64(101), "date": "2023-07-01", "revenue": 20.0},
			{"order_id": int64(3), "customer_id": int64(99), "item_id": int64(100), "date": "2023-07-02", "revenue": int64(5)},
			{"order_id": int64(4), "customer_id": int64(10), "item_id": int64(555), "date": "2023-07-03", "revenue": "7"},
		},
		Customers: []models.Row{
			{"customer_id": int64(10), "first_name": "Ann", "last_name": "Lee"},
			{"customer_id": "11", "first_name": "Bob", "last_name": "Ray"},
		},
		Items: []models.Row{
			{"item_id": int64(100), "item_name": "Coffee", "category_id": int64(1), "description": "hot"},
			{"item_id": int64(101), "item_name": []byte("Tea"), "category_id": int64(2), "description": "green"},
		},
		Categories: []models.Row{
			{"category_id": int64(1), "category_name": "Drinks", "description": "d"},
			{"category_id": int64(2), "category_name": "Leaves", "description": "l"},
		},
	}
}

func TestBuildTable_JoinsAndDrops(t *testing.T) {
	table, err := BuildTable(sourceRows())
	if err != nil {
		t.Fatalf("BuildTable() error = %v", err)
	}

	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}
	if table.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", table.Dropped())
	}

	records := table.Records()
	first := records[0]
	if first.ItemName != "Coffee" || first.CategoryName != "Drinks" {
		t.Errorf("first record joined to %q/%q", first.ItemName, first.CategoryName)
	}
	if !first.Revenue.Equal(decimal.RequireFromString("100.50")) {
		t.Errorf("revenue = %s, want 100.50", first.Revenue)
	}
	if first.Date != "2023-06-15" || first.YearMonth != "2023-06" {
		t.Errorf("date = %q, year_month = %q", first.Date, first.YearMonth)
	}
	if records[1].ItemName != "Tea" {
		t.Errorf("second record item = %q, want Tea", records[1].ItemName)
	}

	months := table.Months()
	if len(months) != 2 || months[0] != "2023-06" || months[1] != "2023-07" {
		t.Errorf("Months() = %v", months)
	}
}

func TestBuildTable_YearMonthInvariant(t *testing.T) {
	table, err := BuildTable(sourceRows())
	if err != nil {
		t.Fatal(err)
	}
	for _, rec := range table.Records() {
		if rec.YearMonth != rec.Date[:7] {
			t.Errorf("year_month %q does not match date %q", rec.YearMonth, rec.Date)
		}
	}
}

func TestBuildTable_DataErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.RowSets)
	}{
		{
			name:   "missing order key",
			mutate: func(rs *models.RowSets) { delete(rs.Orders[0], "customer_id") },
		},
		{
			name:   "unparseable date",
			mutate: func(rs *models.RowSets) { rs.Orders[1]["date"] = "01/07/2023" },
		},
		{
			name:   "negative revenue",
			mutate: func(rs *models.RowSets) { rs.Orders[1]["revenue"] = -1.0 },
		},
		{
			name:   "item without category key",
			mutate: func(rs *models.RowSets) { delete(rs.Items[0], "category_id") },
		},
		{
			name:   "non numeric customer key",
			mutate: func(rs *models.RowSets) { rs.Customers[1]["customer_id"] = "eleven" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := sourceRows()
			tt.mutate(&rows)

			_, err := BuildTable(rows)
			if !errors.IsData(err) {
				t.Errorf("BuildTable() error = %v, want DATA_ERROR", err)
			}
		})
	}
}

func TestTable_RecordsAreCopies(t *testing.T) {
	table, err := BuildTable(sourceRows())
	if err != nil {
		t.Fatal(err)
	}

	records := table.Records()
	records[0].Date = "1999-01-01"

	if table.Records()[0].Date != "2023-06-15" {
		t.Error("mutating Records() result changed the table")
	}
}

func TestNewTableFromRecords_DateRange(t *testing.T) {
	table, err := NewTableFromRecords([]models.Record{
		{OrderID: 1, CustomerID: 1, Date: "2023-03-02", Revenue: decimal.NewFromInt(1)},
		{OrderID: 2, CustomerID: 1, Date: "2023-01-09", Revenue: decimal.NewFromInt(1)},
	})
	if err != nil {
		t.Fatal(err)
	}

	dr := table.DateRange()
	if got := dr.From.Format(DayLayout); got != "2023-01-09" {
		t.Errorf("From = %s", got)
	}
	if got := dr.To.Format(DayLayout); got != "2023-03-02" {
		t.Errorf("To = %s", got)
	}
}
