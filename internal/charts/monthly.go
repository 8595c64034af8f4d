package charts

import (
	"fmt"

	gocharts "github.com/vicanso/go-charts/v2"

	"salesbot/internal/errors"
	"salesbot/internal/models"
)

// RevenueByDay draws one bar per day of month with that day's revenue.
func (r *Renderer) RevenueByDay(month string) (*Chart, error) {
	p, records, err := r.monthRecords(month)
	if err != nil {
		return nil, err
	}

	daily := dailyRevenue(records)

	title := fmt.Sprintf("Revenue Distribution for %s", p.Key)
	png, err := safeRender(models.ChartRevenueByDay, func() ([]byte, error) {
		return barPNG(title, "Day of the Month", daily.labels, daily.values, defaultWidth)
	})
	if err != nil {
		return nil, err
	}
	return &Chart{Kind: models.ChartRevenueByDay, Period: p.Key, Title: title, PNG: png}, nil
}

// RevenueByItem draws one bar per item with its revenue in month.
func (r *Renderer) RevenueByItem(month string) (*Chart, error) {
	p, records, err := r.monthRecords(month)
	if err != nil {
		return nil, err
	}

	byItem := itemRevenue(records)

	title := fmt.Sprintf("Revenue Distribution by Items for %s", p.Key)
	png, err := safeRender(models.ChartRevenueByItem, func() ([]byte, error) {
		return barPNG(title, "Item", byItem.labels, byItem.values, defaultWidth)
	})
	if err != nil {
		return nil, err
	}
	return &Chart{Kind: models.ChartRevenueByItem, Period: p.Key, Title: title, PNG: png}, nil
}

// RevenueByCategory draws the category share of month revenue as a pie.
func (r *Renderer) RevenueByCategory(month string) (*Chart, error) {
	p, records, err := r.monthRecords(month)
	if err != nil {
		return nil, err
	}

	shares, ok := categoryShares(records)
	if !ok {
		return nil, errors.NoData(fmt.Sprintf("no revenue recorded for %s", p.Key))
	}

	title := fmt.Sprintf("Revenue Distribution by Category for %s", p.Key)
	png, err := safeRender(models.ChartRevenueByCategory, func() ([]byte, error) {
		return piePNG(title, shares.labels, shares.values)
	})
	if err != nil {
		return nil, err
	}
	return &Chart{Kind: models.ChartRevenueByCategory, Period: p.Key, Title: title, PNG: png}, nil
}

func barPNG(title, xLabel string, labels []string, values []float64, width int) ([]byte, error) {
	p, err := gocharts.BarRender(
		[][]float64{values},
		gocharts.PNGTypeOption(),
		gocharts.TitleOptionFunc(gocharts.TitleOption{
			Text:    title,
			Subtext: xLabel,
			Left:    gocharts.PositionCenter,
		}),
		gocharts.XAxisOptionFunc(gocharts.XAxisOption{
			Data: labels,
		}),
		gocharts.ThemeOptionFunc(gocharts.ThemeLight),
		gocharts.WidthOptionFunc(width),
		gocharts.HeightOptionFunc(defaultHeight),
	)
	if err != nil {
		return nil, err
	}
	return p.Bytes()
}

func piePNG(title string, labels []string, values []float64) ([]byte, error) {
	p, err := gocharts.PieRender(
		values,
		gocharts.PNGTypeOption(),
		gocharts.TitleTextOptionFunc(title),
		gocharts.LegendOptionFunc(gocharts.LegendOption{
			Data: labels,
			Top:  gocharts.PositionBottom,
		}),
		gocharts.ThemeOptionFunc(gocharts.ThemeLight),
		gocharts.WidthOptionFunc(defaultWidth),
		gocharts.HeightOptionFunc(defaultHeight),
	)
	if err != nil {
		return nil, err
	}
	return p.Bytes()
}
