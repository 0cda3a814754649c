package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/dskvich/sticker-pack-bot/pkg/domain"
	"github.com/dskvich/sticker-pack-bot/pkg/logger"
	"github.com/dskvich/sticker-pack-bot/pkg/resilience"
)

type client struct {
	bot          *tgbotapi.BotAPI
	http         *http.Client
	limiter      *resilience.RateLimiter
	fileEndpoint string
	downloadPath string
}

type ClientConfig struct {
	Token        string
	APIEndpoint  string
	DownloadPath string
	RateLimit    resilience.RateLimiterConfig
}

func NewClient(cfg ClientConfig) (*client, error) {
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	httpClient := cleanhttp.DefaultPooledClient()
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("creating bot api instance: %w", err)
	}

	if err := os.MkdirAll(cfg.DownloadPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating download directory '%s': %w", cfg.DownloadPath, err)
	}

	slog.Info("authorized on telegram", "account", bot.Self.UserName)

	return &client{
		bot:          bot,
		http:         httpClient,
		limiter:      resilience.NewRateLimiter(cfg.RateLimit),
		fileEndpoint: fileEndpointFor(endpoint),
		downloadPath: cfg.DownloadPath,
	}, nil
}

// fileEndpointFor derives the file download endpoint from an API endpoint of the
// form ".../bot%s/%s", so a self-hosted Bot API server serves both.
func fileEndpointFor(apiEndpoint string) string {
	const methodSuffix = "/bot%s/%s"
	if base, ok := strings.CutSuffix(apiEndpoint, methodSuffix); ok {
		return base + "/file" + methodSuffix
	}
	return tgbotapi.FileEndpoint
}

func (c *client) Username() string {
	return c.bot.Self.UserName
}

// GetUpdates starts long polling. The channel is closed by StopUpdates.
func (c *client) GetUpdates(timeout int) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeout
	return c.bot.GetUpdatesChan(u)
}

func (c *client) StopUpdates() {
	c.bot.StopReceivingUpdates()
}

// HandleUpdate decodes an update delivered to the webhook.
func (c *client) HandleUpdate(r *http.Request) (*tgbotapi.Update, error) {
	return c.bot.HandleUpdate(r)
}

func (c *client) SetWebhook(ctx context.Context, link string) (string, error) {
	wh, err := tgbotapi.NewWebhook(link)
	if err != nil {
		return "", fmt.Errorf("parsing webhook url: %w", err)
	}
	resp, err := c.request(ctx, "", "setWebhook", wh)
	if err != nil {
		return "", err
	}
	return resp.Description, nil
}

func (c *client) DeleteWebhook(ctx context.Context) (string, error) {
	resp, err := c.request(ctx, "", "deleteWebhook", tgbotapi.DeleteWebhookConfig{})
	if err != nil {
		return "", err
	}
	return resp.Description, nil
}

func (c *client) SendChatAction(ctx context.Context, chatID int64, action string) error {
	_, err := c.request(ctx, chatKey(chatID), "sendChatAction", tgbotapi.NewChatAction(chatID, action))
	return err
}

func (c *client) SendMessage(ctx context.Context, chatID int64, replyTo int, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	_, err := c.send(ctx, chatKey(chatID), "sendMessage", msg)
	return err
}

func (c *client) SendSticker(ctx context.Context, chatID int64, replyTo int, fileID string) error {
	sticker := tgbotapi.NewSticker(chatID, tgbotapi.FileID(fileID))
	sticker.ReplyToMessageID = replyTo
	_, err := c.send(ctx, chatKey(chatID), "sendSticker", sticker)
	return err
}

func (c *client) GetFile(ctx context.Context, fileID string) (domain.RemoteFile, error) {
	if err := c.limiter.Wait(ctx, ""); err != nil {
		return domain.RemoteFile{}, &domain.TransportError{Op: "getFile", Err: err}
	}
	file, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return domain.RemoteFile{}, convertError("getFile", err)
	}
	return domain.RemoteFile{FileID: file.FileID, FilePath: file.FilePath, Size: file.FileSize}, nil
}

// DownloadFile stores the file under the download path, keeping Telegram's relative
// file path, and returns the local path.
func (c *client) DownloadFile(ctx context.Context, file domain.RemoteFile) (string, error) {
	link := fmt.Sprintf(c.fileEndpoint, c.bot.Token, file.FilePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// The error text contains the url, and with it the bot token.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer func(body io.ReadCloser) {
		if closeErr := body.Close(); closeErr != nil {
			slog.Error("closing body", logger.Err(closeErr))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	filePath := filepath.Join(c.downloadPath, filepath.Clean("/"+file.FilePath))
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return "", fmt.Errorf("creating directories for '%s': %w", filePath, err)
	}

	out, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	n, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("saving file: %w", err)
	}

	slog.DebugContext(ctx, "Downloaded file", "path", filePath, "size", humanize.Bytes(uint64(n)))
	return filePath, nil
}

func (c *client) DeleteStickerFromSet(ctx context.Context, fileID string) error {
	_, err := c.request(ctx, "", "deleteStickerFromSet", tgbotapi.DeleteStickerConfig{Sticker: fileID})
	return err
}

func (c *client) GetStickerSet(ctx context.Context, name string) (*domain.StickerSet, error) {
	if err := c.limiter.Wait(ctx, ""); err != nil {
		return nil, &domain.TransportError{Op: "getStickerSet", Err: err}
	}
	set, err := c.bot.GetStickerSet(tgbotapi.GetStickerSetConfig{Name: name})
	if err != nil {
		return nil, convertError("getStickerSet", err)
	}

	result := &domain.StickerSet{Name: set.Name, Title: set.Title}
	for _, s := range set.Stickers {
		result.Stickers = append(result.Stickers, domain.Sticker{FileID: s.FileID, Emoji: s.Emoji})
	}
	return result, nil
}

func (c *client) AddStickerToSet(ctx context.Context, s domain.NewSticker) error {
	return c.uploadSticker(ctx, "addStickerToSet", s)
}

func (c *client) CreateNewStickerSet(ctx context.Context, s domain.NewSticker) error {
	return c.uploadSticker(ctx, "createNewStickerSet", s)
}

// uploadSticker builds the multipart request itself: the library configs always send
// an emojis field, even an empty one, which Telegram rejects.
func (c *client) uploadSticker(ctx context.Context, method string, s domain.NewSticker) error {
	params := make(tgbotapi.Params)
	params.AddNonZero64("user_id", s.UserID)
	params["name"] = s.SetName
	params.AddNonEmpty("title", s.Title)
	params.AddNonEmpty("emojis", s.Emoji)

	files := []tgbotapi.RequestFile{{
		Name: "png_sticker",
		Data: tgbotapi.FileReader{Name: s.ImageName, Reader: s.Image},
	}}

	if err := c.limiter.Wait(ctx, ""); err != nil {
		return &domain.TransportError{Op: method, Err: err}
	}
	if _, err := c.bot.UploadFiles(method, params, files); err != nil {
		return convertError(method, err)
	}
	return nil
}

func (c *client) request(ctx context.Context, key, op string, cfg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if err := c.limiter.Wait(ctx, key); err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	resp, err := c.bot.Request(cfg)
	if err != nil {
		return nil, convertError(op, err)
	}
	return resp, nil
}

func (c *client) send(ctx context.Context, key, op string, cfg tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := c.limiter.Wait(ctx, key); err != nil {
		return tgbotapi.Message{}, &domain.TransportError{Op: op, Err: err}
	}
	msg, err := c.bot.Send(cfg)
	if err != nil {
		return tgbotapi.Message{}, convertError(op, err)
	}
	return msg, nil
}

// convertError turns a non-ok envelope into domain.APIError and everything else into
// domain.TransportError.
func convertError(op string, err error) error {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return &domain.APIError{
			Description: tgErr.Message,
			Code:        tgErr.Code,
			RetryAfter:  tgErr.RetryAfter,
		}
	}
	var tgErrValue tgbotapi.Error
	if errors.As(err, &tgErrValue) {
		return &domain.APIError{
			Description: tgErrValue.Message,
			Code:        tgErrValue.Code,
			RetryAfter:  tgErrValue.RetryAfter,
		}
	}
	return &domain.TransportError{Op: op, Err: err}
}

func chatKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
