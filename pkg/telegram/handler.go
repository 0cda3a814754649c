package telegram

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dskvich/sticker-pack-bot/pkg/domain"
)

type StickerService interface {
	HandleEvent(ctx context.Context, ev domain.IncomingEvent)
}

type handler struct {
	stickerService StickerService
}

func NewHandler(stickerService StickerService) *handler {
	return &handler{
		stickerService: stickerService,
	}
}

func (h *handler) HandleUpdate(ctx context.Context, update *tgbotapi.Update) {
	if update.Message == nil {
		slog.WarnContext(ctx, "Unhandled update type", "update_id", update.UpdateID)
		return
	}

	h.stickerService.HandleEvent(ctx, NewIncomingEvent(update.Message))
}

// NewIncomingEvent maps a Telegram message to the event the sticker service works on.
func NewIncomingEvent(msg *tgbotapi.Message) domain.IncomingEvent {
	ev := domain.IncomingEvent{
		MessageID: msg.MessageID,
		Kind:      messageKind(msg),
	}
	if msg.Chat != nil {
		ev.ChatID = msg.Chat.ID
	}
	if msg.From != nil {
		ev.SenderID = msg.From.ID
		ev.SenderName = msg.From.FirstName
	}
	if msg.Sticker != nil {
		ev.Sticker = &domain.StickerRef{
			FileID:  msg.Sticker.FileID,
			Emoji:   msg.Sticker.Emoji,
			SetName: msg.Sticker.SetName,
		}
	}
	return ev
}

func messageKind(msg *tgbotapi.Message) domain.MessageKind {
	switch {
	case msg.Sticker != nil:
		return domain.MessageKindSticker
	case len(msg.Photo) > 0:
		return domain.MessageKindPhoto
	case msg.Text != "":
		return domain.MessageKindText
	default:
		return domain.MessageKindOther
	}
}
