package handlers

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"salesbot/internal/errors"
	"salesbot/internal/models"
	"salesbot/internal/services"
)

const maxMonthRows = 24

var metricsPanelTemplate = template.Must(template.New("metricsPanel").Funcs(template.FuncMap{
	"change": formatChange,
}).Parse(`
<div id="metrics-content">
<h3>{{.Period}}</h3>
<table class="modern-table">
<thead><tr><th>Metric</th><th>Value</th><th>vs {{.PreviousPeriod}}</th></tr></thead>
<tbody>
<tr><td>Total revenue</td><td><strong>${{.Revenue.Current.StringFixed 2}}</strong></td><td>{{change .Revenue.Change}}</td></tr>
<tr><td>Average revenue per order</td><td><strong>${{.AOV.Current.StringFixed 2}}</strong></td><td>{{change .AOV.Change}}</td></tr>
<tr><td>ARPU</td><td><strong>${{.ARPU.Current.StringFixed 2}}</strong></td><td>{{change .ARPU.Change}}</td></tr>
</tbody>
</table>
</div>`))

var noDataTemplate = template.Must(template.New("noData").Parse(`
<div id="metrics-content"><p class="no-data">No revenue data available for {{.Period}}.{{if .Range}} Data covers {{.Range}}.{{end}}</p></div>`))

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

func formatChange(c models.Change) string {
	if !c.Available {
		return "n/a"
	}
	return fmt.Sprintf("%+.2f%%", c.Percent)
}

func (h *SSEHandlers) renderMetricsPanel(summary *models.MetricSummary) (string, error) {
	var buf strings.Builder
	err := metricsPanelTemplate.Execute(&buf, summary)
	return buf.String(), err
}

func (h *SSEHandlers) renderNoData(period string) (string, error) {
	data := struct {
		Period string
		Range  string
	}{Period: period}

	if dr := h.analytics.DateRange(); !dr.IsZero() {
		data.Range = dr.From.Format(services.DayLayout) + " to " + dr.To.Format(services.DayLayout)
	}

	var buf strings.Builder
	err := noDataTemplate.Execute(&buf, data)
	return buf.String(), err
}

// HandleMetrics patches the metrics panel for the period query parameter and
// publishes the summary as the metrics signal.
func (h *SSEHandlers) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	summary, err := h.analytics.Summary(period)

	sse := datastar.NewSSE(w, r)

	var html string
	switch {
	case errors.IsNoData(err):
		html, err = h.renderNoData(period)
		summary = nil
	case err != nil:
		html = `<div id="metrics-content"><p class="error">Please enter a period as yyyy-mm-dd or yyyy-mm</p></div>`
		err = nil
		summary = nil
	default:
		html, err = h.renderMetricsPanel(summary)
	}
	if err != nil {
		h.logger.Error("render metrics panel", "error", err)
		return
	}
	sse.PatchElements(html)

	if summary != nil {
		jsonData, err := json.Marshal(map[string]any{
			"metrics": summary,
		})
		if err != nil {
			h.logger.Error("marshal metrics signal", "error", err)
			return
		}
		sse.PatchSignals(jsonData)
	}

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) HandleMonthlyRevenue(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	data := h.analytics.MonthlyRevenue()
	if len(data) > maxMonthRows {
		data = data[len(data)-maxMonthRows:]
	}
	jsonData, err := json.Marshal(map[string]any{
		"monthlyData": data,
	})
	if err != nil {
		h.logger.Error("marshal monthly data", "error", err)
		return
	}
	sse.PatchSignals(jsonData)

	sse.PatchElements(`<div id="monthly-content">✅ Monthly revenue data loaded</div>`)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
