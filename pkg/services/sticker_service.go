package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/lo"

	"github.com/dskvich/sticker-pack-bot/pkg/domain"
	"github.com/dskvich/sticker-pack-bot/pkg/logger"
)

const chatActionUploadPhoto = "upload_photo"

type TelegramClient interface {
	SendChatAction(ctx context.Context, chatID int64, action string) error
	SendMessage(ctx context.Context, chatID int64, replyTo int, text string) error
	SendSticker(ctx context.Context, chatID int64, replyTo int, fileID string) error
	GetFile(ctx context.Context, fileID string) (domain.RemoteFile, error)
	DownloadFile(ctx context.Context, file domain.RemoteFile) (string, error)
	DeleteStickerFromSet(ctx context.Context, fileID string) error
	GetStickerSet(ctx context.Context, name string) (*domain.StickerSet, error)
	AddStickerToSet(ctx context.Context, sticker domain.NewSticker) error
	CreateNewStickerSet(ctx context.Context, sticker domain.NewSticker) error
}

// ImageConverter turns the downloaded sticker at srcPath into a PNG at dstPath. It
// removes srcPath on every exit path and returns *domain.ConversionError on failure.
type ImageConverter interface {
	Convert(ctx context.Context, srcPath, dstPath string) error
}

type ImageCache interface {
	Path(fileID string) string
	Has(fileID string) bool
	Remove(fileID string) error
}

type StickerOptions struct {
	BotUsername       string
	CacheUploads      bool
	PackExistsBackoff time.Duration
}

type stickerService struct {
	client    TelegramClient
	converter ImageConverter
	cache     ImageCache
	opts      StickerOptions
	senders   *keyedMutex[int64]
	// files guards the cache entry of a file_id from download until upload, as
	// senders share it.
	files *keyedMutex[string]
}

func NewStickerService(
	client TelegramClient,
	converter ImageConverter,
	cache ImageCache,
	opts StickerOptions,
) *stickerService {
	return &stickerService{
		client:    client,
		converter: converter,
		cache:     cache,
		opts:      opts,
		senders:   newKeyedMutex[int64](),
		files:     newKeyedMutex[string](),
	}
}

// HandleEvent runs one inbound message through the pipeline. Every failure ends in a
// reply to the user; nothing is returned to the caller.
func (s *stickerService) HandleEvent(ctx context.Context, ev domain.IncomingEvent) {
	if ev.Kind != domain.MessageKindSticker || ev.Sticker == nil {
		slog.DebugContext(ctx, "Ignoring non-sticker message", "kind", ev.Kind, "chat_id", ev.ChatID)
		s.reply(ctx, ev, "Please send a sticker.")
		return
	}

	packName := domain.PackName(ev.SenderID, s.opts.BotUsername)

	slog.InfoContext(ctx, "Received sticker",
		"file_id", ev.Sticker.FileID,
		"emoji", ev.Sticker.Emoji,
		"set_name", ev.Sticker.SetName,
		"user_id", ev.SenderID,
		"user_name", ev.SenderName,
	)

	unlock := s.senders.Lock(ev.SenderID)
	defer unlock()

	var err error
	if ev.Sticker.SetName == packName {
		err = s.deleteFromPack(ctx, ev)
	} else {
		err = s.addToPack(ctx, ev, packName)
	}

	var userErr *domain.UserFacingError
	if errors.As(err, &userErr) {
		slog.ErrorContext(ctx, "Handling sticker failed",
			"file_id", ev.Sticker.FileID,
			"set_name", packName,
			"user_id", ev.SenderID,
			"chat_id", ev.ChatID,
			logger.Err(userErr.Err),
		)
		s.reply(ctx, ev, userErr.Reply)
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "Handling sticker failed", "file_id", ev.Sticker.FileID, logger.Err(err))
	}
}

func (s *stickerService) deleteFromPack(ctx context.Context, ev domain.IncomingEvent) error {
	fileID := ev.Sticker.FileID

	if err := s.client.DeleteStickerFromSet(ctx, fileID); err != nil {
		return domain.NewUserFacingError(
			"Deletion of sticker failed: "+domain.Description(err),
			fmt.Errorf("deleting sticker %s from set: %w", fileID, err),
		)
	}

	slog.InfoContext(ctx, "Deleted sticker from set", "file_id", fileID, "set_name", ev.Sticker.SetName)
	s.reply(ctx, ev, "Deleted sticker from pack.")
	return nil
}

func (s *stickerService) addToPack(ctx context.Context, ev domain.IncomingEvent, packName string) error {
	if err := s.convertAndUpload(ctx, ev, packName); err != nil {
		return err
	}

	s.deliver(ctx, ev, packName)
	return nil
}

// convertAndUpload holds the file lock, always taken after the sender lock, for as
// long as the cache entry is in use.
func (s *stickerService) convertAndUpload(ctx context.Context, ev domain.IncomingEvent, packName string) error {
	unlock := s.files.Lock(ev.Sticker.FileID)
	defer unlock()

	pngPath, err := s.ensureConverted(ctx, ev)
	if err != nil {
		return err
	}
	return s.upload(ctx, ev, packName, pngPath)
}

// ensureConverted returns the cache path of the sticker's PNG, downloading and
// converting it first on a cache miss.
func (s *stickerService) ensureConverted(ctx context.Context, ev domain.IncomingEvent) (string, error) {
	fileID := ev.Sticker.FileID
	pngPath := s.cache.Path(fileID)

	if s.cache.Has(fileID) {
		slog.DebugContext(ctx, "Cache hit", "file_id", fileID, "path", pngPath)
		return pngPath, nil
	}

	if err := s.client.SendChatAction(ctx, ev.ChatID, chatActionUploadPhoto); err != nil {
		slog.WarnContext(ctx, "Sending chat action failed", "chat_id", ev.ChatID, logger.Err(err))
	}

	slog.DebugContext(ctx, "Downloading sticker", "file_id", fileID)

	file, err := s.client.GetFile(ctx, fileID)
	if err != nil {
		return "", domain.NewUserFacingError(
			"Unable to download this sticker: "+domain.Description(err),
			fmt.Errorf("getting file %s: %w", fileID, err),
		)
	}

	srcPath, err := s.client.DownloadFile(ctx, file)
	if err != nil {
		return "", domain.NewUserFacingError(
			"Unable to download this sticker: "+domain.Description(err),
			fmt.Errorf("downloading file %s: %w", fileID, err),
		)
	}

	slog.DebugContext(ctx, "Converting sticker", "file_id", fileID, "src", srcPath, "dst", pngPath)

	if err := s.converter.Convert(ctx, srcPath, pngPath); err != nil {
		return "", domain.NewUserFacingError(conversionReply(fileID, err), fmt.Errorf("converting %s: %w", fileID, err))
	}

	return pngPath, nil
}

func conversionReply(fileID string, err error) string {
	var convErr *domain.ConversionError
	if !errors.As(err, &convErr) {
		return "Sticker conversion failed: unable to convert sticker " + fileID + "."
	}

	switch convErr.Kind {
	case domain.ConversionInvalidConfig:
		return "Sticker conversion failed: configuration is invalid!"
	case domain.ConversionBadRequest:
		return "Sticker conversion failed: " + convErr.Message
	case domain.ConversionUnconvertible:
		return "This sticker cannot be converted: " + convErr.Message
	case domain.ConversionTemporarilyUnavailable:
		return fmt.Sprintf(
			"Sticker conversion failed: image conversion API temporarily unavailable: %s. Retry in %d seconds",
			convErr.Message, int(convErr.RetryAfter.Seconds()),
		)
	case domain.ConversionProviderError:
		return "Conversion failed: unable to convert sticker, cannot reach image conversion API."
	case domain.ConversionTransport:
		return "Sticker conversion failed: cannot reach image conversion API."
	default:
		return "Sticker conversion failed: unable to convert sticker " + fileID + "."
	}
}

// upload adds the PNG to the user's pack, creating the pack on first use.
func (s *stickerService) upload(ctx context.Context, ev domain.IncomingEvent, packName, pngPath string) error {
	fileID := ev.Sticker.FileID

	f, err := os.Open(pngPath)
	if err != nil {
		return domain.NewUserFacingError(
			"Unable to add sticker to sticker set "+packName+": cannot open png file.",
			fmt.Errorf("opening %s: %w", pngPath, err),
		)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.WarnContext(ctx, "Closing png failed", "path", pngPath, logger.Err(err))
		}
		if s.opts.CacheUploads {
			return
		}
		if err := s.cache.Remove(fileID); err != nil {
			slog.ErrorContext(ctx, "Removing uploaded png failed", "file_id", fileID, logger.Err(err))
		}
	}()

	sticker := domain.NewSticker{
		UserID:    ev.SenderID,
		SetName:   packName,
		Emoji:     ev.Sticker.Emoji,
		ImageName: filepath.Base(pngPath),
		Image:     f,
	}

	slog.DebugContext(ctx, "Checking if sticker set exists", "set_name", packName)

	if s.packExists(ctx, packName) {
		slog.DebugContext(ctx, "Sticker set exists, adding sticker", "set_name", packName)
		if err := s.client.AddStickerToSet(ctx, sticker); err != nil {
			return domain.NewUserFacingError(
				"Unable to add sticker to set "+packName+": "+domain.Description(err),
				fmt.Errorf("adding sticker to set %s: %w", packName, err),
			)
		}
		return nil
	}

	slog.DebugContext(ctx, "Sticker set does not exist yet, creating it", "set_name", packName)
	sticker.Title = domain.PackTitle(ev.SenderName)
	if err := s.client.CreateNewStickerSet(ctx, sticker); err != nil {
		return domain.NewUserFacingError(
			"Unable to create sticker set "+packName+": "+domain.Description(err),
			fmt.Errorf("creating sticker set %s: %w", packName, err),
		)
	}
	return nil
}

// packExists treats any failure as absence, after a short pause so a flaky API is not
// hit again right away.
func (s *stickerService) packExists(ctx context.Context, packName string) bool {
	_, err := s.client.GetStickerSet(ctx, packName)
	if err == nil {
		return true
	}
	slog.DebugContext(ctx, "Sticker set lookup failed", "set_name", packName, logger.Err(err))

	t := time.NewTimer(s.opts.PackExistsBackoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
	return false
}

// deliver sends the newest sticker of the pack back, or a link when Telegram does not
// show it yet. The last sticker of the set is taken to be the one just added.
func (s *stickerService) deliver(ctx context.Context, ev domain.IncomingEvent, packName string) {
	link := domain.PackLink(packName)

	slog.DebugContext(ctx, "Retrieving stickers in sticker set", "set_name", packName)

	set, err := s.client.GetStickerSet(ctx, packName)
	if err != nil {
		slog.ErrorContext(ctx, "Getting personal sticker set failed", "set_name", packName, logger.Err(err))
		s.reply(ctx, ev, "Sticker was added successfully, but telegram needs a bit of time. Here is a link instead: "+link)
		return
	}

	if len(set.Stickers) == 0 {
		slog.ErrorContext(ctx, "Personal sticker set is empty", "set_name", packName)
		s.reply(ctx, ev, "Sticker was added successfully, but telegram says the stickerpack is still empty (it needs a bit of time). Here is a link instead: "+link)
		return
	}
	last := lo.LastOrEmpty(set.Stickers)

	slog.InfoContext(ctx, "Sending reply sticker", "file_id", last.FileID, "user_id", ev.SenderID)

	if err := s.client.SendSticker(ctx, ev.ChatID, ev.MessageID, last.FileID); err != nil {
		slog.ErrorContext(ctx, "Sending reply sticker failed", "file_id", last.FileID, logger.Err(err))
	}
}

// reply is best effort: a failed send is logged and dropped.
func (s *stickerService) reply(ctx context.Context, ev domain.IncomingEvent, text string) {
	if err := s.client.SendMessage(ctx, ev.ChatID, ev.MessageID, text); err != nil {
		slog.ErrorContext(ctx, "Sending reply failed", "chat_id", ev.ChatID, logger.Err(err))
	}
}
