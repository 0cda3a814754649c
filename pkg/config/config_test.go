package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(vars map[string]string) (Config, error) {
	return Parse(env.Options{Environment: vars})
}

func TestParseDefaults(t *testing.T) {
	cfg, err := parse(map[string]string{"TELEGRAM_BOT_TOKEN": "123:abc"})
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.TelegramBotToken)
	assert.True(t, cfg.CacheUploads)
	assert.False(t, cfg.CloudConvert)
	assert.True(t, cfg.LogErrors)
	assert.False(t, cfg.LogDebug)
	assert.Equal(t, 2*time.Second, cfg.PackExistsBackoff)
	assert.Equal(t, "downloads", cfg.DownloadPath)
	assert.Equal(t, "uploads", cfg.UploadPath)
	assert.Empty(t, cfg.TelegramAuthorizedUserIDs)
	assert.Equal(t, "/", cfg.WebhookPath())
}

func TestParseOverrides(t *testing.T) {
	cfg, err := parse(map[string]string{
		"TELEGRAM_BOT_TOKEN":           "123:abc",
		"TELEGRAM_AUTHORIZED_USER_IDS": "5 42",
		"CLOUDCONVERT":                 "true",
		"CC_API_KEY":                   "key",
		"CACHE_UPLOADS":                "false",
		"PACK_EXISTS_BACKOFF":          "500ms",
		"WEBHOOK_URL":                  "https://bot.example.com/hook/secret",
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{5, 42}, cfg.TelegramAuthorizedUserIDs)
	assert.True(t, cfg.CloudConvert)
	assert.False(t, cfg.CacheUploads)
	assert.Equal(t, 500*time.Millisecond, cfg.PackExistsBackoff)
	assert.Equal(t, "/hook/secret", cfg.WebhookPath())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{name: "missing token", vars: map[string]string{}},
		{name: "plain http webhook", vars: map[string]string{"TELEGRAM_BOT_TOKEN": "t", "WEBHOOK_URL": "http://bot.example.com"}},
		{name: "zero rps", vars: map[string]string{"TELEGRAM_BOT_TOKEN": "t", "TELEGRAM_CHAT_RPS": "0"}},
		{name: "bad bool", vars: map[string]string{"TELEGRAM_BOT_TOKEN": "t", "CACHE_UPLOADS": "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(tt.vars)
			assert.Error(t, err)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.env")
	require.NoError(t, os.WriteFile(path, []byte("TELEGRAM_BOT_TOKEN=from-file\nUPLOAD_PATH=cache\n"), 0o644))
	t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")
	t.Setenv("UPLOAD_PATH", "")
	os.Unsetenv("UPLOAD_PATH")

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.TelegramBotToken)
	assert.Equal(t, "cache", cfg.UploadPath)
}
