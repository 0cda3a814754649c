package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

type Config struct {
	TelegramBotToken          string        `env:"TELEGRAM_BOT_TOKEN,required"`
	TelegramBotUsername       string        `env:"TELEGRAM_BOT_USERNAME"`
	TelegramAPIEndpoint       string        `env:"TELEGRAM_API_ENDPOINT"`
	TelegramAuthorizedUserIDs []int64       `env:"TELEGRAM_AUTHORIZED_USER_IDS" envSeparator:" "`
	TelegramGlobalRPS         float64       `env:"TELEGRAM_GLOBAL_RPS" envDefault:"30"`
	TelegramChatRPS           float64       `env:"TELEGRAM_CHAT_RPS" envDefault:"1"`
	UpdateTimeout             int           `env:"UPDATE_TIMEOUT" envDefault:"60"`
	UpdateQueueSize           int           `env:"UPDATE_QUEUE_SIZE" envDefault:"100"`
	WebhookURL                string        `env:"WEBHOOK_URL"`
	WebhookRPS                float64       `env:"WEBHOOK_RPS" envDefault:"50"`
	ListenAddr                string        `env:"LISTEN_ADDR" envDefault:":8080"`
	DownloadPath              string        `env:"DOWNLOAD_PATH" envDefault:"downloads"`
	UploadPath                string        `env:"UPLOAD_PATH" envDefault:"uploads"`
	CacheUploads              bool          `env:"CACHE_UPLOADS" envDefault:"true"`
	CloudConvert              bool          `env:"CLOUDCONVERT" envDefault:"false"`
	CCAPIKey                  string        `env:"CC_API_KEY"`
	CCBreakerThreshold        uint32        `env:"CC_BREAKER_THRESHOLD" envDefault:"5"`
	CCBreakerTimeout          time.Duration `env:"CC_BREAKER_TIMEOUT" envDefault:"30s"`
	PackExistsBackoff         time.Duration `env:"PACK_EXISTS_BACKOFF" envDefault:"2s"`
	LogErrors                 bool          `env:"LOG_ERRORS" envDefault:"true"`
	LogDebug                  bool          `env:"LOG_DEBUG" envDefault:"false"`
	LogLocation               string        `env:"LOG_LOCATION" envDefault:"logs"`
}

// Load reads an optional .env file into the environment, then parses Config from it.
// Variables already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
		slog.Debug("loaded env file", "file", f)
	}

	return Parse(env.Options{})
}

// Parse reads Config with the given env options and validates it.
func Parse(opts env.Options) (Config, error) {
	cfg := Config{}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parsing env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DownloadPath == "" || c.UploadPath == "" {
		return errors.New("DOWNLOAD_PATH and UPLOAD_PATH must not be empty")
	}
	if c.TelegramGlobalRPS <= 0 || c.TelegramChatRPS <= 0 {
		return errors.New("TELEGRAM_GLOBAL_RPS and TELEGRAM_CHAT_RPS must be positive")
	}
	if c.UpdateQueueSize < 0 {
		return errors.New("UPDATE_QUEUE_SIZE must not be negative")
	}
	if c.WebhookURL != "" {
		u, err := url.Parse(c.WebhookURL)
		if err != nil {
			return fmt.Errorf("parsing WEBHOOK_URL: %w", err)
		}
		if u.Scheme != "https" {
			return fmt.Errorf("WEBHOOK_URL must use https, got %q", u.Scheme)
		}
	}
	if c.CloudConvert && c.CCAPIKey == "" {
		slog.Warn("CLOUDCONVERT is enabled without CC_API_KEY, conversions will fail")
	}
	return nil
}

// WebhookPath is the path part of WebhookURL, "/" when unset.
func (c Config) WebhookPath() string {
	u, err := url.Parse(c.WebhookURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
