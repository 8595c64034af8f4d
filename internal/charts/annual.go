package charts

import (
	"fmt"

	gocharts "github.com/vicanso/go-charts/v2"

	"salesbot/internal/models"
)

const (
	revenueSeries = "Monthly Revenue"
	rollingSeries = "Rolling Average (10 months)"
)

// AnnualRevenueTrend draws monthly revenue as bars with a trailing 10-month
// mean as a line over the whole dataset.
func (r *Renderer) AnnualRevenueTrend() (*Chart, error) {
	records, err := r.allRecords()
	if err != nil {
		return nil, err
	}

	monthly, rolling := monthlyTrend(records)
	months := monthly.labels

	title := fmt.Sprintf("Revenue by Month, %s to %s", months[0], months[len(months)-1])
	png, err := safeRender(models.ChartAnnualTrend, func() ([]byte, error) {
		series := gocharts.SeriesList{
			gocharts.NewSeriesFromValues(monthly.values, gocharts.ChartTypeBar),
			gocharts.NewSeriesFromValues(rolling, gocharts.ChartTypeLine),
		}
		series[0].Name = revenueSeries
		series[1].Name = rollingSeries

		p, err := gocharts.Render(gocharts.ChartOption{
			Type:  gocharts.ChartOutputPNG,
			Theme: gocharts.ThemeLight,
			Title: gocharts.TitleOption{
				Text: title,
				Left: gocharts.PositionCenter,
			},
			Legend: gocharts.LegendOption{
				Data: []string{revenueSeries, rollingSeries},
				Top:  gocharts.PositionBottom,
			},
			XAxis: gocharts.XAxisOption{
				Data: months,
			},
			SeriesList: series,
			Width:      defaultWidth,
			Height:     defaultHeight,
		})
		if err != nil {
			return nil, err
		}
		return p.Bytes()
	})
	if err != nil {
		return nil, err
	}
	return &Chart{Kind: models.ChartAnnualTrend, Title: title, PNG: png}, nil
}

// OrderCountSpreadByItem draws, per item, the spread of its monthly order
// counts. Months in which an item had no orders are not part of its sample.
func (r *Renderer) OrderCountSpreadByItem() (*Chart, error) {
	records, err := r.allRecords()
	if err != nil {
		return nil, err
	}

	counts := orderCountsByItem(records)

	title := "Monthly Order Count Spread by Item"
	png, err := safeRender(models.ChartOrderSpread, func() ([]byte, error) {
		return boxPlotPNG(title, counts, wideWidth, defaultHeight)
	})
	if err != nil {
		return nil, err
	}
	return &Chart{Kind: models.ChartOrderSpread, Title: title, PNG: png}, nil
}

// ARPUAndAOVByMonth draws monthly ARPU and monthly AOV as two bar panels
// side by side.
func (r *Renderer) ARPUAndAOVByMonth() (*Chart, error) {
	records, err := r.allRecords()
	if err != nil {
		return nil, err
	}

	months, arpu, aov := monthlyARPUAndAOV(records)

	title := "Monthly ARPU and AOV"
	png, err := safeRender(models.ChartARPUAndAOV, func() ([]byte, error) {
		return sideBySidePNG(
			panel{title: "Monthly ARPU", yLabel: "ARPU", labels: months, values: arpu},
			panel{title: "Monthly AOV", yLabel: "AOV", labels: months, values: aov},
			wideWidth, defaultHeight,
		)
	})
	if err != nil {
		return nil, err
	}
	return &Chart{Kind: models.ChartARPUAndAOV, Title: title, PNG: png}, nil
}
