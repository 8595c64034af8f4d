// Package bot implements the chat front end: a transport-agnostic
// conversation state machine and its Telegram adapter.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"salesbot/internal/charts"
	"salesbot/internal/errors"
	"salesbot/internal/models"
	"salesbot/internal/observability"
	"salesbot/internal/session"
)

// Reply is one outgoing message. A reply with a Chart is delivered as a
// photo captioned with Text.
type Reply struct {
	Text     string
	Keyboard Keyboard
	Chart    *charts.Chart
}

type Metrics interface {
	DailySummary(day string) (*models.MetricSummary, error)
	MonthlySummary(month string) (*models.MetricSummary, error)
	DateRange() models.DateRange
}

type ChartRenderer interface {
	Render(ctx context.Context, kind models.ChartKind, period string) (*charts.Chart, error)
}

// Controller drives one conversation per chat through the states
// idle, awaiting date, awaiting month and awaiting chart choice.
type Controller struct {
	metrics  Metrics
	charts   ChartRenderer
	sessions session.Store
	logger   *slog.Logger
}

func NewController(metrics Metrics, renderer ChartRenderer, sessions session.Store, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		metrics:  metrics,
		charts:   renderer,
		sessions: sessions,
		logger:   logger,
	}
}

// HandleCommand handles a slash command given without its leading slash.
func (c *Controller) HandleCommand(ctx context.Context, chatID int64, command string) ([]Reply, error) {
	s, err := c.sessions.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(command) {
	case "start":
		return c.transition(ctx, s, session.StateIdle, Reply{Text: textGreeting, Keyboard: MainKeyboard()})
	default:
		return c.hint(ctx, s)
	}
}

// HandleText handles free text, which is only meaningful while a date or a
// month is expected.
func (c *Controller) HandleText(ctx context.Context, chatID int64, text string) ([]Reply, error) {
	s, err := c.sessions.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	switch s.State {
	case session.StateAwaitingDate:
		return c.handleDate(ctx, s, text)
	case session.StateAwaitingMonth:
		return c.handleMonth(ctx, s, text)
	default:
		return c.hint(ctx, s)
	}
}

// HandleCallback handles an inline button press.
func (c *Controller) HandleCallback(ctx context.Context, chatID int64, data string) ([]Reply, error) {
	s, err := c.sessions.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}

	switch data {
	case CallbackToday:
		return c.transition(ctx, s, session.StateIdle, Reply{Text: textToday, Keyboard: MainKeyboard()})
	case CallbackExactDate:
		return c.transition(ctx, s, session.StateAwaitingDate, Reply{Text: textAskDate})
	case CallbackMonth:
		return c.transition(ctx, s, session.StateAwaitingMonth, Reply{Text: textAskMonth})
	case CallbackAnnualReport:
		replies := c.annualReport(ctx)
		return c.transition(ctx, s, session.StateIdle, replies...)
	case CallbackBack:
		return c.transition(ctx, s, session.StateIdle, Reply{Text: textChooseReport, Keyboard: MainKeyboard()})
	}

	if kind, month, ok := parseChartCallback(data); ok {
		return []Reply{c.monthChart(ctx, kind, month)}, nil
	}

	observability.LoggerFrom(ctx, c.logger).Warn("unknown callback", "data", data)
	return c.hint(ctx, s)
}

func (c *Controller) handleDate(ctx context.Context, s *session.Session, text string) ([]Reply, error) {
	summary, err := c.metrics.DailySummary(text)
	switch {
	case errors.IsFormat(err):
		return c.transition(ctx, s, session.StateAwaitingDate, Reply{Text: textBadDate})
	case errors.IsNoData(err):
		return c.transition(ctx, s, session.StateAwaitingDate,
			Reply{Text: formatNoData(text, models.PeriodDay, c.metrics.DateRange())})
	case err != nil:
		return nil, fmt.Errorf("daily summary %s: %w", text, err)
	}

	return c.transition(ctx, s, session.StateIdle, Reply{Text: formatSummary(summary), Keyboard: MainKeyboard()})
}

func (c *Controller) handleMonth(ctx context.Context, s *session.Session, text string) ([]Reply, error) {
	summary, err := c.metrics.MonthlySummary(text)
	switch {
	case errors.IsFormat(err):
		return c.transition(ctx, s, session.StateAwaitingMonth, Reply{Text: textBadMonth})
	case errors.IsNoData(err):
		return c.transition(ctx, s, session.StateAwaitingMonth,
			Reply{Text: formatNoData(text, models.PeriodMonth, c.metrics.DateRange())})
	case err != nil:
		return nil, fmt.Errorf("monthly summary %s: %w", text, err)
	}

	s.Month = summary.Period
	return c.transition(ctx, s, session.StateAwaitingChartChoice,
		Reply{Text: formatSummary(summary), Keyboard: ChartKeyboard(summary.Period)})
}

// monthChart renders a month-scoped chart. Any failure becomes a "no chart"
// message so older buttons never break the conversation.
func (c *Controller) monthChart(ctx context.Context, kind models.ChartKind, month string) Reply {
	chart, err := c.charts.Render(ctx, kind, month)
	if err != nil {
		logger := observability.LoggerFrom(ctx, c.logger)
		if errors.IsRender(err) {
			logger.Error("chart rendering failed", "kind", kind, "month", month, "error", err)
		} else {
			logger.Debug("chart unavailable", "kind", kind, "month", month, "error", err)
		}
		return Reply{Text: fmt.Sprintf(noChartText[kind], month)}
	}
	return Reply{Text: chart.Title, Chart: chart}
}

func (c *Controller) annualReport(ctx context.Context) []Reply {
	replies := []Reply{{Text: textAnnual}}
	for _, kind := range models.AnnualCharts {
		chart, err := c.charts.Render(ctx, kind, "")
		if err != nil {
			observability.LoggerFrom(ctx, c.logger).Warn("annual chart skipped", "kind", kind, "error", err)
			continue
		}
		replies = append(replies, Reply{Text: chart.Title, Chart: chart})
	}
	if len(replies) == 1 {
		replies = append(replies, Reply{Text: textNoAnnual, Keyboard: MainKeyboard()})
	}
	return replies
}

// hint reminds the user of the available actions without changing state.
func (c *Controller) hint(ctx context.Context, s *session.Session) ([]Reply, error) {
	if s.State == session.StateAwaitingChartChoice && s.Month != "" {
		return []Reply{{Text: fmt.Sprintf(textChooseChart, s.Month), Keyboard: ChartKeyboard(s.Month)}}, nil
	}
	return c.transition(ctx, s, session.StateIdle, Reply{Text: textChooseReport, Keyboard: MainKeyboard()})
}

func (c *Controller) transition(ctx context.Context, s *session.Session, next session.State, replies ...Reply) ([]Reply, error) {
	if s.State != next {
		observability.LoggerFrom(ctx, c.logger).Debug("conversation transition",
			"from", s.State,
			"to", next,
		)
	}
	s.State = next
	if next != session.StateAwaitingChartChoice {
		s.Month = ""
	}
	if err := c.sessions.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return replies, nil
}
