package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"salesbot/internal/artifacts"
	"salesbot/internal/charts"
	"salesbot/internal/config"
	"salesbot/internal/observability"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type ChartStore interface {
	Save(ctx context.Context, chart *charts.Chart, sessionID string) (*artifacts.Artifact, error)
}

type Archiver interface {
	Put(ctx context.Context, chart *charts.Chart, sessionID string) (string, error)
}

// NewTelegramAPI connects to the Bot API with the configured token.
func NewTelegramAPI(cfg config.BotConfig) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	api.Debug = cfg.Debug
	return api, nil
}

// Bot polls for updates and feeds them to the Controller. Different chats are
// handled concurrently up to the configured limit; updates of one chat are
// handled one at a time, in the order they were received.
type Bot struct {
	api        API
	controller *Controller
	store      ChartStore
	archive    Archiver
	logger     *slog.Logger

	pollTimeout    int
	maxConcurrency int

	mu     sync.Mutex
	queues map[int64][]tgbotapi.Update
}

func NewBot(api API, controller *Controller, store ChartStore, cfg config.BotConfig, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:            api,
		controller:     controller,
		store:          store,
		logger:         logger,
		pollTimeout:    cfg.PollTimeout,
		maxConcurrency: cfg.MaxConcurrency,
		queues:         make(map[int64][]tgbotapi.Update),
	}
}

// WithArchive enables a copy of every delivered chart in long-term storage.
func (b *Bot) WithArchive(archive Archiver) *Bot {
	b.archive = archive
	return b
}

// Run blocks until ctx is done or the update channel closes, then waits for
// in-flight updates.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)

	var g errgroup.Group
	g.SetLimit(max(b.maxConcurrency, 1))

	b.logger.Info("bot started", "max_concurrency", b.maxConcurrency)
	defer b.logger.Info("bot stopped")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return g.Wait()
		case update, ok := <-updates:
			if !ok {
				return g.Wait()
			}
			b.enqueue(ctx, &g, update)
		}
	}
}

// enqueue appends update to its chat's queue. The first update of an idle
// chat starts a worker that drains the queue and removes it once empty.
func (b *Bot) enqueue(ctx context.Context, g *errgroup.Group, update tgbotapi.Update) {
	chat := update.FromChat()
	if chat == nil {
		return
	}
	chatID := chat.ID

	b.mu.Lock()
	if pending, busy := b.queues[chatID]; busy {
		b.queues[chatID] = append(pending, update)
		b.mu.Unlock()
		return
	}
	b.queues[chatID] = []tgbotapi.Update{}
	b.mu.Unlock()

	g.Go(func() error {
		b.drain(ctx, chatID, update)
		return nil
	})
}

func (b *Bot) drain(ctx context.Context, chatID int64, update tgbotapi.Update) {
	for {
		b.HandleUpdate(ctx, update)

		b.mu.Lock()
		pending := b.queues[chatID]
		if len(pending) == 0 {
			delete(b.queues, chatID)
			b.mu.Unlock()
			return
		}
		update = pending[0]
		b.queues[chatID] = pending[1:]
		b.mu.Unlock()
	}
}

// HandleUpdate dispatches one update. Failures are logged and answered with
// an apology; they never stop the bot.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	chat := update.FromChat()
	if chat == nil {
		return
	}
	chatID := chat.ID
	ctx = observability.WithChatID(ctx, chatID)
	logger := observability.LoggerFrom(ctx, b.logger)

	ctx, span := observability.StartSpan(ctx, "bot.update")
	span.SetTag("update_id", update.UpdateID)
	defer func() {
		span.Finish()
		logger.Debug("update finished", span.Attrs()...)
	}()

	var (
		replies []Reply
		err     error
	)
	switch {
	case update.CallbackQuery != nil:
		span.SetTag("callback", update.CallbackQuery.Data)
		if _, ackErr := b.api.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "")); ackErr != nil {
			logger.Warn("failed to acknowledge callback", "error", ackErr)
		}
		replies, err = b.controller.HandleCallback(ctx, chatID, update.CallbackQuery.Data)
	case update.Message != nil && update.Message.IsCommand():
		replies, err = b.controller.HandleCommand(ctx, chatID, update.Message.Command())
	case update.Message != nil:
		replies, err = b.controller.HandleText(ctx, chatID, update.Message.Text)
	default:
		return
	}

	if err != nil {
		span.SetError(err)
		logger.Error("update handling failed", "update_id", update.UpdateID, "error", err)
		replies = []Reply{{Text: textFailure, Keyboard: MainKeyboard()}}
	}

	for _, reply := range replies {
		if err := b.deliver(ctx, chatID, reply); err != nil {
			span.SetError(err)
			logger.Error("reply delivery failed", "error", err)
			return
		}
	}
}

func (b *Bot) deliver(ctx context.Context, chatID int64, reply Reply) error {
	if reply.Chart == nil {
		msg := tgbotapi.NewMessage(chatID, reply.Text)
		msg.ParseMode = tgbotapi.ModeHTML
		if len(reply.Keyboard) > 0 {
			msg.ReplyMarkup = inlineMarkup(reply.Keyboard)
		}
		_, err := b.api.Send(msg)
		return err
	}
	return b.sendChart(ctx, chatID, reply)
}

// sendChart writes the chart to a request-scoped file, sends it and removes
// the file whatever the outcome.
func (b *Bot) sendChart(ctx context.Context, chatID int64, reply Reply) error {
	sessionID := strconv.FormatInt(chatID, 10)
	logger := observability.LoggerFrom(ctx, b.logger)

	art, err := b.store.Save(ctx, reply.Chart, sessionID)
	if err != nil {
		return fmt.Errorf("save chart: %w", err)
	}
	defer func() {
		if err := art.Remove(); err != nil {
			logger.Warn("failed to remove chart file", "file", art.Name, "error", err)
		}
	}()

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(art.Path))
	photo.Caption = reply.Text
	if len(reply.Keyboard) > 0 {
		photo.ReplyMarkup = inlineMarkup(reply.Keyboard)
	}
	if _, err := b.api.Send(photo); err != nil {
		return fmt.Errorf("send chart %s: %w", art.Name, err)
	}

	if b.archive != nil {
		if key, err := b.archive.Put(ctx, reply.Chart, sessionID); err != nil {
			logger.Warn("chart archiving failed", "file", art.Name, "error", err)
		} else {
			logger.Debug("chart archived", "key", key)
		}
	}
	return nil
}

func inlineMarkup(kb Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
