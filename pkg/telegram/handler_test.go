package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dskvich/sticker-pack-bot/pkg/domain"
)

type recordingService struct {
	events []domain.IncomingEvent
}

func (r *recordingService) HandleEvent(_ context.Context, ev domain.IncomingEvent) {
	r.events = append(r.events, ev)
}

func TestNewIncomingEvent(t *testing.T) {
	from := &tgbotapi.User{ID: 5, FirstName: "Ann"}
	chat := &tgbotapi.Chat{ID: 10}

	tests := []struct {
		name    string
		msg     *tgbotapi.Message
		want    domain.MessageKind
		sticker *domain.StickerRef
	}{
		{
			name: "sticker",
			msg: &tgbotapi.Message{MessageID: 7, From: from, Chat: chat, Sticker: &tgbotapi.Sticker{
				FileID: "abc123", Emoji: "😀", SetName: "SomePack",
			}},
			want:    domain.MessageKindSticker,
			sticker: &domain.StickerRef{FileID: "abc123", Emoji: "😀", SetName: "SomePack"},
		},
		{
			name: "photo",
			msg:  &tgbotapi.Message{MessageID: 7, From: from, Chat: chat, Photo: []tgbotapi.PhotoSize{{FileID: "p"}}},
			want: domain.MessageKindPhoto,
		},
		{
			name: "text",
			msg:  &tgbotapi.Message{MessageID: 7, From: from, Chat: chat, Text: "hello"},
			want: domain.MessageKindText,
		},
		{
			name: "other",
			msg:  &tgbotapi.Message{MessageID: 7, From: from, Chat: chat},
			want: domain.MessageKindOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := NewIncomingEvent(tt.msg)

			assert.Equal(t, tt.want, ev.Kind)
			assert.Equal(t, tt.sticker, ev.Sticker)
			assert.Equal(t, 7, ev.MessageID)
			assert.Equal(t, int64(10), ev.ChatID)
			assert.Equal(t, int64(5), ev.SenderID)
			assert.Equal(t, "Ann", ev.SenderName)
		})
	}
}

func TestHandlerIgnoresUpdatesWithoutMessage(t *testing.T) {
	svc := &recordingService{}
	h := NewHandler(svc)

	h.HandleUpdate(context.Background(), &tgbotapi.Update{UpdateID: 1, CallbackQuery: &tgbotapi.CallbackQuery{ID: "q"}})
	assert.Empty(t, svc.events)

	h.HandleUpdate(context.Background(), &tgbotapi.Update{UpdateID: 2, Message: &tgbotapi.Message{Text: "hi"}})
	require.Len(t, svc.events, 1)
	assert.Equal(t, domain.MessageKindText, svc.events[0].Kind)
}

func newWebhook(queue int) (*http.ServeMux, chan tgbotapi.Update) {
	updates := make(chan tgbotapi.Update, queue)
	return NewWebhookMux(&tgbotapi.BotAPI{}, updates, WebhookConfig{Path: "/hook", RPS: 100, Burst: 10}), updates
}

func TestWebhookQueuesUpdate(t *testing.T) {
	mux, updates := newWebhook(1)

	body := `{"update_id":42,"message":{"message_id":7,"chat":{"id":10,"type":"private"},"sticker":{"file_id":"abc123","emoji":"😀"}}}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, updates, 1)
	update := <-updates
	assert.Equal(t, 42, update.UpdateID)
	assert.Equal(t, "abc123", update.Message.Sticker.FileID)
}

func TestWebhookRejects(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		body     string
		queue    int
		wantCode int
	}{
		{name: "wrong method", method: http.MethodGet, queue: 1, wantCode: http.StatusMethodNotAllowed},
		{name: "bad json", method: http.MethodPost, body: "{", queue: 1, wantCode: http.StatusBadRequest},
		{name: "queue full", method: http.MethodPost, body: `{"update_id":1}`, queue: 0, wantCode: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, _ := newWebhook(tt.queue)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, "/hook", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestWebhookRateLimit(t *testing.T) {
	updates := make(chan tgbotapi.Update, 10)
	mux := NewWebhookMux(&tgbotapi.BotAPI{}, updates, WebhookConfig{Path: "/hook", RPS: 0.001, Burst: 1})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(`{"update_id":1}`)))
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestHealthz(t *testing.T) {
	mux, _ := newWebhook(1)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, HealthPath, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
