package bot

import (
	"fmt"
	"strings"

	"salesbot/internal/models"
	"salesbot/internal/services"
)

const (
	textGreeting = "Hi, dude!👋\n\nI can send you some metrics and graphics and other smart stuff🙂\n\n" +
		"Just select the date and check this out"
	textToday        = "There is still no data about today's sales, try again later or choose another date"
	textAskDate      = "Please enter the date in the format <em>yyyy-mm-dd</em>:"
	textAskMonth     = "Please enter the month in the format <em>yyyy-mm</em>:"
	textBadDate      = "Invalid format🫠\nPlease enter the date in the format <em>yyyy-mm-dd</em>"
	textBadMonth     = "Invalid format🫠\nPlease enter the month in the format <em>yyyy-mm</em>"
	textAnnual       = "Here are your annual reports below:"
	textNoAnnual     = "No data available for the annual report."
	textChooseReport = "Choose the type of report on keyboard"
	textChooseChart  = "Choose a chart for <em>%s</em> or go back"
	textFailure      = "Something went wrong on our side, please try again later"
)

var noChartText = map[models.ChartKind]string{
	models.ChartRevenueByDay:      "No revenue plot available for %s.",
	models.ChartRevenueByItem:     "No item distribution chart available for %s.",
	models.ChartRevenueByCategory: "No category distribution chart available for %s.",
}

// formatSummary renders the three metrics with their change against the
// previous period.
func formatSummary(s *models.MetricSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here is your statistics for <em>%s</em>:\n\n", s.Period)
	fmt.Fprintf(&b, "Total revenue: %s$ %s\n", s.Revenue.Current.StringFixed(2), formatChange(s.Revenue.Change, s.Kind))
	fmt.Fprintf(&b, "Average revenue per order: %s$ %s\n", s.AOV.Current.StringFixed(2), formatChange(s.AOV.Change, s.Kind))
	fmt.Fprintf(&b, "ARPU: %s$ %s", s.ARPU.Current.StringFixed(2), formatChange(s.ARPU.Change, s.Kind))
	return b.String()
}

func formatChange(c models.Change, kind models.PeriodKind) string {
	if !c.Available {
		return fmt.Sprintf("(No previous %s data available)", kind)
	}
	if c.Percent > 0 {
		return fmt.Sprintf("(+%.2f%%) 📈", c.Percent)
	}
	return fmt.Sprintf("(%.2f%%) 📉", c.Percent)
}

// formatNoData asks for another period, pointing at the range the dataset
// actually covers.
func formatNoData(period string, kind models.PeriodKind, dr models.DateRange) string {
	text := fmt.Sprintf("No revenue data available for <em>%s</em>.\n\n", period)
	if dr.IsZero() {
		return text + "The sales dataset is empty at the moment😉"
	}

	layout := services.DayLayout
	if kind == models.PeriodMonth {
		layout = services.MonthLayout
	}
	return text + fmt.Sprintf("Please choose another %s between <u><em>%s</em></u> and <u><em>%s</em></u>😉",
		kind, dr.From.Format(layout), dr.To.Format(layout))
}
