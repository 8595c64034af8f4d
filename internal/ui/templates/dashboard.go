// Package templates holds the HTML views served by the dashboard.
package templates

import (
	"context"
	"html/template"
	"io"

	"github.com/a-h/templ"
)

// DashboardData is what the dashboard page needs to render its period form.
type DashboardData struct {
	Title     string
	FirstDate string
	LastDate  string
	Months    []string
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.5/bundles/datastar.js"></script>
</head>
<body data-signals="{period: '{{.LastMonth}}', metrics: {}, monthlyData: []}">
<header>
<h1>{{.Title}}</h1>
{{if .FirstDate}}<p class="range">Data from {{.FirstDate}} to {{.LastDate}}</p>{{end}}
</header>
<section>
<label for="period">Day (yyyy-mm-dd) or month (yyyy-mm)</label>
<input id="period" data-bind-period list="months">
<datalist id="months">{{range .Months}}<option value="{{.}}">{{end}}</datalist>
<button data-on-click="@get('/sse/metrics?period=' + $period)">Show metrics</button>
<div id="metrics-content"></div>
</section>
<section data-on-load="@get('/sse/monthly-revenue')">
<h2>Monthly revenue</h2>
<div id="monthly-content"></div>
<img src="/api/charts/annual_revenue" alt="Monthly revenue with rolling average">
<img src="/api/charts/arpu_aov" alt="Monthly ARPU and AOV">
<img src="/api/charts/order_spread" alt="Monthly order count spread by item">
</section>
</body>
</html>
`))

// Dashboard renders the single-page dashboard.
func Dashboard(data DashboardData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		view := struct {
			DashboardData
			LastMonth string
		}{DashboardData: data}
		if len(data.Months) > 0 {
			view.LastMonth = data.Months[len(data.Months)-1]
		}
		return dashboardTemplate.Execute(w, view)
	})
}
