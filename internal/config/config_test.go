package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every key Load reads for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"BOT_TOKEN", "HTTP_ADDR",
		"DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD", "DB_SSLMODE",
		"DOWNLOADER_COMMAND", "DOWNLOADER_ARGS", "DOWNLOADER_ROOT_DIR", "DOWNLOADER_TIMEOUT", "DOWNLOADER_KILL_GRACE",
		"RECEIVER_POLL_TIMEOUT", "RECEIVER_COOLDOWN", "RECEIVER_WORKERS",
		"API_BASE_ADDRESS", "API_KEY", "API_RETRIES",
		"RATE_LIMIT_PERMITS", "RATE_LIMIT_WINDOW",
	}
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "testuser",
			Password: "testpass",
			Name:     "testdb",
			SSLMode:  "disable",
		},
	}

	dsn := cfg.DSN()
	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	assert.Equal(t, expected, dsn)
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		missing string
	}{
		{
			name:    "missing bot token",
			env:     map[string]string{"DB_PASSWORD": "test_db_password"},
			missing: "BOT_TOKEN",
		},
		{
			name:    "missing db password",
			env:     map[string]string{"BOT_TOKEN": "test_token"},
			missing: "DB_PASSWORD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			assert.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.missing)
		})
	}
}

func TestLoad_WithDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "test_token")
	t.Setenv("DB_PASSWORD", "test_db_password")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "test_token", cfg.BotToken)
	assert.Equal(t, ":8080", cfg.HTTPAddr)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "musicpipe", cfg.Database.Name)
	assert.Equal(t, "musicpipe", cfg.Database.User)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "spotdl", cfg.Downloader.Command)
	assert.Equal(t, []string{"download"}, cfg.Downloader.Args)
	assert.Equal(t, "userfiles", cfg.Downloader.RootDir)
	assert.Equal(t, 5*time.Minute, cfg.Downloader.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Downloader.KillGrace)

	assert.Equal(t, 10*time.Second, cfg.Receiver.PollTimeout)
	assert.Equal(t, 3*time.Second, cfg.Receiver.Cooldown)
	assert.Equal(t, 1, cfg.Receiver.Workers)

	assert.Equal(t, 3, cfg.API.Retries)
	assert.Equal(t, 200, cfg.RateLimit.Permits)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "test_token")
	t.Setenv("DB_PASSWORD", "test_db_password")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DOWNLOADER_ARGS", "download,--format,mp3")
	t.Setenv("RECEIVER_COOLDOWN", "500ms")
	t.Setenv("RECEIVER_WORKERS", "4")
	t.Setenv("API_BASE_ADDRESS", "http://api:8080")
	t.Setenv("API_KEY", "key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, []string{"download", "--format", "mp3"}, cfg.Downloader.Args)
	assert.Equal(t, 500*time.Millisecond, cfg.Receiver.Cooldown)
	assert.Equal(t, 4, cfg.Receiver.Workers)
	assert.Equal(t, "http://api:8080", cfg.API.BaseAddress)
	assert.Equal(t, "key", cfg.API.Key)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "zero workers", key: "RECEIVER_WORKERS", value: "0"},
		{name: "malformed duration", key: "RECEIVER_COOLDOWN", value: "soon"},
		{name: "negative timeout", key: "DOWNLOADER_TIMEOUT", value: "-1s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("BOT_TOKEN", "test_token")
			t.Setenv("DB_PASSWORD", "test_db_password")
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}
