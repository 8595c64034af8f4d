package charts

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"os"
	"reflect"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"salesbot/internal/errors"
	"salesbot/internal/models"
	"salesbot/internal/services"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

func record(orderID, customerID int64, item, category, date string, revenue int64) models.Record {
	return models.Record{
		OrderID:      orderID,
		CustomerID:   customerID,
		ItemName:     item,
		CategoryName: category,
		Date:         date,
		Revenue:      decimal.NewFromInt(revenue),
	}
}

func newTestRenderer(t *testing.T, records []models.Record) *Renderer {
	t.Helper()
	table, err := services.NewTableFromRecords(records)
	if err != nil {
		t.Fatalf("NewTableFromRecords() error = %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewRenderer(table, logger)
}

func fixture() []models.Record {
	return []models.Record{
		record(1, 1, "Espresso", "Coffee", "2023-05-02", 40),
		record(2, 2, "Latte", "Coffee", "2023-05-20", 55),
		record(3, 1, "Croissant", "Bakery", "2023-06-01", 30),
		record(3, 1, "Latte", "Coffee", "2023-06-01", 45),
		record(4, 3, "Espresso", "Coffee", "2023-06-15", 20),
		record(5, 2, "Bagel", "Bakery", "2023-06-15", 25),
		record(6, 3, "Espresso", "Coffee", "2023-07-04", 60),
	}
}

func TestRenderer_RenderAllKinds(t *testing.T) {
	r := newTestRenderer(t, fixture())

	tests := []struct {
		kind   models.ChartKind
		period string
	}{
		{models.ChartRevenueByDay, "2023-06"},
		{models.ChartRevenueByItem, "2023-06"},
		{models.ChartRevenueByCategory, "2023-06"},
		{models.ChartAnnualTrend, ""},
		{models.ChartOrderSpread, ""},
		{models.ChartARPUAndAOV, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			chart, err := r.Render(context.Background(), tt.kind, tt.period)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if chart.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", chart.Kind, tt.kind)
			}
			if chart.Period != tt.period {
				t.Errorf("Period = %q, want %q", chart.Period, tt.period)
			}
			if chart.Title == "" {
				t.Error("expected a title")
			}
			if !bytes.HasPrefix(chart.PNG, pngSignature) {
				t.Errorf("expected PNG bytes, got %d bytes", len(chart.PNG))
			}
		})
	}
}

func TestRenderer_MonthWithoutData(t *testing.T) {
	r := newTestRenderer(t, fixture())

	for _, kind := range []models.ChartKind{
		models.ChartRevenueByDay,
		models.ChartRevenueByItem,
		models.ChartRevenueByCategory,
	} {
		_, err := r.Render(context.Background(), kind, "2022-01")
		if !errors.IsNoData(err) {
			t.Errorf("Render(%s, 2022-01) error = %v, want NO_DATA", kind, err)
		}
	}
}

func TestRenderer_MalformedMonth(t *testing.T) {
	r := newTestRenderer(t, fixture())

	for _, period := range []string{"2023/06", "2023-06-01", "June", ""} {
		_, err := r.RevenueByDay(period)
		if !errors.IsFormat(err) {
			t.Errorf("RevenueByDay(%q) error = %v, want FORMAT_ERROR", period, err)
		}
	}
}

func TestRenderer_EmptyTable(t *testing.T) {
	r := newTestRenderer(t, nil)

	for _, kind := range []models.ChartKind{
		models.ChartAnnualTrend,
		models.ChartOrderSpread,
		models.ChartARPUAndAOV,
	} {
		_, err := r.Render(context.Background(), kind, "")
		if !errors.IsNoData(err) {
			t.Errorf("Render(%s) error = %v, want NO_DATA", kind, err)
		}
	}
}

func TestRenderer_UnknownKind(t *testing.T) {
	r := newTestRenderer(t, fixture())

	_, err := r.Render(context.Background(), models.ChartKind("heatmap"), "")
	if !errors.HasCode(err, errors.CodeBadRequest) {
		t.Errorf("Render(heatmap) error = %v, want BAD_REQUEST", err)
	}
}

func TestRenderer_CanceledContext(t *testing.T) {
	r := newTestRenderer(t, fixture())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Render(ctx, models.ChartAnnualTrend, ""); err != context.Canceled {
		t.Errorf("Render() error = %v, want context.Canceled", err)
	}
}

func TestRenderer_ConcurrentRendersMatchSerial(t *testing.T) {
	r := newTestRenderer(t, fixture())
	before := r.table.Records()

	type job struct {
		kind   models.ChartKind
		period string
	}
	var jobs []job
	for _, month := range []string{"2023-05", "2023-06", "2023-07"} {
		for _, kind := range []models.ChartKind{models.ChartRevenueByDay, models.ChartRevenueByItem, models.ChartRevenueByCategory} {
			jobs = append(jobs, job{kind, month})
		}
	}
	for _, kind := range models.AnnualCharts {
		jobs = append(jobs, job{kind, ""})
	}

	serial := make([][]byte, len(jobs))
	for i, j := range jobs {
		chart, err := r.Render(context.Background(), j.kind, j.period)
		if err != nil {
			t.Fatalf("Render(%s, %q) error = %v", j.kind, j.period, err)
		}
		serial[i] = chart.PNG
	}

	concurrent := make([][]byte, len(jobs))
	errs := make([]error, len(jobs))
	var wg sync.WaitGroup
	for round := 0; round < 3; round++ {
		for i, j := range jobs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				chart, err := r.Render(context.Background(), j.kind, j.period)
				if err != nil {
					errs[i] = err
					return
				}
				if round == 0 {
					concurrent[i] = chart.PNG
				}
			}()
		}
		wg.Wait()
	}

	for i, j := range jobs {
		if errs[i] != nil {
			t.Errorf("concurrent Render(%s, %q) error = %v", j.kind, j.period, errs[i])
			continue
		}
		if !bytes.Equal(concurrent[i], serial[i]) {
			t.Errorf("concurrent Render(%s, %q) differs from the serial render", j.kind, j.period)
		}
	}

	if !reflect.DeepEqual(r.table.Records(), before) {
		t.Error("rendering modified the table")
	}
}

func TestRenderer_Deterministic(t *testing.T) {
	first := newTestRenderer(t, fixture())
	second := newTestRenderer(t, fixture())

	for _, kind := range []models.ChartKind{models.ChartRevenueByDay, models.ChartRevenueByItem, models.ChartRevenueByCategory} {
		a, err := first.Render(context.Background(), kind, "2023-06")
		if err != nil {
			t.Fatalf("Render(%s) error = %v", kind, err)
		}
		b, err := second.Render(context.Background(), kind, "2023-06")
		if err != nil {
			t.Fatalf("Render(%s) error = %v", kind, err)
		}
		if !bytes.Equal(a.PNG, b.PNG) || a.Title != b.Title {
			t.Errorf("Render(%s) is not deterministic", kind)
		}
	}
	for _, kind := range models.AnnualCharts {
		a, err := first.Render(context.Background(), kind, "")
		if err != nil {
			t.Fatalf("Render(%s) error = %v", kind, err)
		}
		b, err := second.Render(context.Background(), kind, "")
		if err != nil {
			t.Fatalf("Render(%s) error = %v", kind, err)
		}
		if !bytes.Equal(a.PNG, b.PNG) {
			t.Errorf("Render(%s) is not deterministic", kind)
		}
	}
}

func TestRenderer_MissingMonth(t *testing.T) {
	r := newTestRenderer(t, fixture())

	_, err := r.Render(context.Background(), models.ChartRevenueByItem, "")
	if !errors.IsFormat(err) {
		t.Errorf("Render(revenue_by_item, \"\") error = %v, want FORMAT_ERROR", err)
	}
}

func TestRenderer_ZeroRevenueMonth(t *testing.T) {
	r := newTestRenderer(t, []models.Record{
		record(1, 1, "Espresso", "Coffee", "2023-08-01", 0),
		record(2, 2, "Bagel", "Bakery", "2023-08-02", 0),
	})

	_, err := r.Render(context.Background(), models.ChartRevenueByCategory, "2023-08")
	if !errors.IsNoData(err) {
		t.Errorf("RevenueByCategory on zero revenue: error = %v, want NO_DATA", err)
	}

	for _, kind := range []models.ChartKind{models.ChartRevenueByDay, models.ChartRevenueByItem} {
		if _, err := r.Render(context.Background(), kind, "2023-08"); err != nil {
			t.Errorf("Render(%s) on zero revenue: error = %v", kind, err)
		}
	}
}

func TestSafeRender(t *testing.T) {
	_, err := safeRender(models.ChartRevenueByDay, func() ([]byte, error) {
		panic("bad geometry")
	})
	if !errors.IsRender(err) {
		t.Errorf("panic: error = %v, want RENDER_ERROR", err)
	}

	_, err = safeRender(models.ChartRevenueByDay, func() ([]byte, error) {
		return nil, nil
	})
	if !errors.IsRender(err) {
		t.Errorf("empty image: error = %v, want RENDER_ERROR", err)
	}
}

func TestSumBySortsKeys(t *testing.T) {
	s := sumBy(fixture(), func(rec models.Record) string { return rec.ItemName })

	want := []string{"Bagel", "Croissant", "Espresso", "Latte"}
	if len(s.keys) != len(want) {
		t.Fatalf("keys = %v, want %v", s.keys, want)
	}
	for i := range want {
		if s.keys[i] != want[i] {
			t.Errorf("keys[%d] = %s, want %s", i, s.keys[i], want[i])
		}
	}
	if got := s.values["Espresso"]; !got.Equal(decimal.NewFromInt(120)) {
		t.Errorf("Espresso = %s, want 120", got)
	}
}

func TestTrailingMean(t *testing.T) {
	values := []float64{10, 20, 30, 40}

	got := trailingMean(values, 2)
	want := []float64{10, 15, 25, 35}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("trailingMean[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	got = trailingMean(values, 10)
	if math.Abs(got[3]-25) > 1e-9 {
		t.Errorf("partial window mean = %v, want 25", got[3])
	}
}
