package workers

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type UpdatesSource interface {
	GetUpdates(timeout int) tgbotapi.UpdatesChannel
	StopUpdates()
}

type telegramPoller struct {
	source  UpdatesSource
	timeout int
	out     chan<- tgbotapi.Update
}

// NewTelegramPoller long-polls Telegram and forwards every update to out. It is the
// only sender on out and closes it when it stops.
func NewTelegramPoller(source UpdatesSource, timeout int, out chan<- tgbotapi.Update) (*telegramPoller, error) {
	return &telegramPoller{
		source:  source,
		timeout: timeout,
		out:     out,
	}, nil
}

func (t *telegramPoller) Name() string { return "telegram_poller" }

func (t *telegramPoller) Start(ctx context.Context) error {
	slog.Info("Starting worker", "name", t.Name())
	defer slog.Info("Worker stopped", "name", t.Name())

	defer close(t.out)

	updates := t.source.GetUpdates(t.timeout)
	defer t.source.StopUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			select {
			case t.out <- update:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
