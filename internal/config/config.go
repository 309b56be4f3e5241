package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	BotToken string `envconfig:"BOT_TOKEN" required:"true"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	// Nested keys are looked up by their full tag name, e.g. DB_HOST
	Database   DatabaseConfig
	Downloader DownloaderConfig
	Receiver   ReceiverConfig
	API        APIConfig
	RateLimit  RateLimitConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"musicpipe"`
	User     string `envconfig:"DB_USER" default:"musicpipe"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// DownloaderConfig configures the external track downloader
type DownloaderConfig struct {
	Command   string        `envconfig:"DOWNLOADER_COMMAND" default:"spotdl"`
	Args      []string      `envconfig:"DOWNLOADER_ARGS" default:"download"`
	RootDir   string        `envconfig:"DOWNLOADER_ROOT_DIR" default:"userfiles"`
	Timeout   time.Duration `envconfig:"DOWNLOADER_TIMEOUT" default:"5m"`
	KillGrace time.Duration `envconfig:"DOWNLOADER_KILL_GRACE" default:"5s"`
}

// ReceiverConfig configures the update receive loop
type ReceiverConfig struct {
	PollTimeout time.Duration `envconfig:"RECEIVER_POLL_TIMEOUT" default:"10s"`
	Cooldown    time.Duration `envconfig:"RECEIVER_COOLDOWN" default:"3s"`
	Workers     int           `envconfig:"RECEIVER_WORKERS" default:"1"`
}

// APIConfig configures the backend API client
type APIConfig struct {
	BaseAddress string `envconfig:"API_BASE_ADDRESS"`
	Key         string `envconfig:"API_KEY"`
	Retries     int    `envconfig:"API_RETRIES" default:"3"`
}

// RateLimitConfig limits the webhook endpoint
type RateLimitConfig struct {
	Permits int           `envconfig:"RATE_LIMIT_PERMITS" default:"200"`
	Window  time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"60s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Receiver.Workers < 1 {
		return nil, fmt.Errorf("RECEIVER_WORKERS must be at least 1, got %d", cfg.Receiver.Workers)
	}
	if cfg.Downloader.Timeout <= 0 {
		return nil, fmt.Errorf("DOWNLOADER_TIMEOUT must be positive")
	}

	return &cfg, nil
}

// DSN returns PostgreSQL connection string
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
