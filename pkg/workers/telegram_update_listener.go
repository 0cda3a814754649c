package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dskvich/sticker-pack-bot/pkg/logger"
)

type Handler interface {
	HandleUpdate(ctx context.Context, update *tgbotapi.Update)
}

type Authenticator interface {
	IsAuthorized(userID int64) bool
}

type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, replyTo int, text string) error
}

type telegramUpdateListener struct {
	updates       <-chan tgbotapi.Update
	sender        MessageSender
	authenticator Authenticator
	handler       Handler
	wg            sync.WaitGroup
}

func NewTelegramUpdateListener(
	updates <-chan tgbotapi.Update,
	sender MessageSender,
	authenticator Authenticator,
	handler Handler,
) (*telegramUpdateListener, error) {
	return &telegramUpdateListener{
		updates:       updates,
		sender:        sender,
		authenticator: authenticator,
		handler:       handler,
	}, nil
}

func (t *telegramUpdateListener) Name() string { return "telegram_listener_worker" }

// Start handles each update in its own goroutine until the producer closes the
// queue, so updates already accepted are still handled after ctx is cancelled. It
// returns once the handlers in flight are done.
func (t *telegramUpdateListener) Start(ctx context.Context) error {
	slog.Info("Starting worker", "name", t.Name())
	defer slog.Info("Worker stopped", "name", t.Name())

	defer t.wg.Wait()

	handlerCtx := context.WithoutCancel(ctx)
	for update := range t.updates {
		t.wg.Add(1)
		go func(update tgbotapi.Update) {
			defer t.wg.Done()
			t.processUpdate(handlerCtx, &update)
		}(update)
	}
	return nil
}

func (t *telegramUpdateListener) processUpdate(ctx context.Context, update *tgbotapi.Update) {
	ctx = logger.ContextWithRequestID(ctx, int64(update.UpdateID))

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		slog.WarnContext(ctx, "Received unsupported update type")
		return
	}

	chatID, userID := msg.Chat.ID, msg.From.ID
	slog.InfoContext(ctx, "Processing update", "chat_id", chatID, "user_id", userID)

	if !t.authenticator.IsAuthorized(userID) {
		slog.WarnContext(ctx, "Unauthorized access attempt", "user_id", userID)
		text := fmt.Sprintf("User ID %d is not authorized to use this bot.", userID)
		if err := t.sender.SendMessage(ctx, chatID, msg.MessageID, text); err != nil {
			slog.ErrorContext(ctx, "Sending reply failed", logger.Err(err))
		}
		return
	}

	t.handler.HandleUpdate(ctx, update)
}
