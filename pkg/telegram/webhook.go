package telegram

import (
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/dskvich/sticker-pack-bot/pkg/api/response"
	"github.com/dskvich/sticker-pack-bot/pkg/logger"
)

const HealthPath = "/healthz"

// UpdateDecoder parses the body Telegram posts to the webhook. *tgbotapi.BotAPI
// satisfies it.
type UpdateDecoder interface {
	HandleUpdate(r *http.Request) (*tgbotapi.Update, error)
}

type webhookHandler struct {
	decoder UpdateDecoder
	updates chan<- tgbotapi.Update
	limiter *rate.Limiter
}

type WebhookConfig struct {
	// Path is the URL path Telegram posts updates to.
	Path  string
	RPS   float64
	Burst int
}

// NewWebhookMux serves the webhook on cfg.Path and a liveness check on HealthPath.
// Decoded updates are queued on updates; a full queue answers 503 so Telegram retries.
func NewWebhookMux(decoder UpdateDecoder, updates chan<- tgbotapi.Update, cfg WebhookConfig) *http.ServeMux {
	path := cfg.Path
	if path == "" {
		path = "/"
	}

	mux := http.NewServeMux()
	mux.Handle(path, &webhookHandler{
		decoder: decoder,
		updates: updates,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
	})
	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		response.WriteJSON(w, http.StatusOK, response.StatusResponse{Status: "ok"})
	})
	return mux
}

func (h *webhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow() {
		h.fail(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	if r.Method != http.MethodPost {
		h.fail(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	update, err := h.decoder.HandleUpdate(r)
	if err != nil {
		slog.Warn("decoding webhook update", logger.Err(err))
		h.fail(w, "invalid update", http.StatusBadRequest)
		return
	}

	select {
	case h.updates <- *update:
		slog.Debug("update queued", "update_id", update.UpdateID)
	default:
		h.fail(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *webhookHandler) fail(w http.ResponseWriter, msg string, code int) {
	slog.Error(msg, "code", code)
	response.WriteError(w, code, msg)
}
