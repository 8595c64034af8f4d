package bot

import (
	"strings"

	"salesbot/internal/models"
)

// Callback data sent by the inline keyboards.
const (
	CallbackToday        = "today"
	CallbackExactDate    = "select_exact_date"
	CallbackMonth        = "select_month"
	CallbackAnnualReport = "annual_report"
	CallbackBack         = "back_to_keyboard"

	prefixRevenuePlot  = "revenue_plot_"
	prefixItemPlot     = "item_plot_"
	prefixCategoryPlot = "category_plot_"
)

type Button struct {
	Text string
	Data string
}

// Keyboard is a list of rows of inline buttons.
type Keyboard [][]Button

func MainKeyboard() Keyboard {
	return Keyboard{
		{{Text: "Today", Data: CallbackToday}},
		{{Text: "Select exact date", Data: CallbackExactDate}},
		{{Text: "Select month", Data: CallbackMonth}},
		{{Text: "Annual report", Data: CallbackAnnualReport}},
	}
}

// ChartKeyboard offers the month-scoped charts for month.
func ChartKeyboard(month string) Keyboard {
	return Keyboard{
		{{Text: "Revenue Distribution", Data: prefixRevenuePlot + month}},
		{{Text: "Distribution by item", Data: prefixItemPlot + month}},
		{{Text: "Distribution by category", Data: prefixCategoryPlot + month}},
		{{Text: "Back", Data: CallbackBack}},
	}
}

// parseChartCallback splits chart button data into its chart kind and month.
func parseChartCallback(data string) (models.ChartKind, string, bool) {
	for prefix, kind := range map[string]models.ChartKind{
		prefixRevenuePlot:  models.ChartRevenueByDay,
		prefixItemPlot:     models.ChartRevenueByItem,
		prefixCategoryPlot: models.ChartRevenueByCategory,
	} {
		if month, ok := strings.CutPrefix(data, prefix); ok {
			return kind, month, true
		}
	}
	return "", "", false
}
