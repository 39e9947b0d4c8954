package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"` // SQLite file path
}

// AnthropicConfig holds Claude API settings
type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// TelegramConfig holds Bot API settings for publishing
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	Channel  string `mapstructure:"channel"` // Destination channel handle
}

// IngestConfig holds ingestion settings
type IngestConfig struct {
	FetchLimit int `mapstructure:"fetch_limit"` // Max candidates per source per pass
}

// SchedulerConfig holds cron expressions for the three passes
type SchedulerConfig struct {
	IngestCron   string `mapstructure:"ingest_cron"`
	GenerateCron string `mapstructure:"generate_cron"`
	PublishCron  string `mapstructure:"publish_cron"`
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	AnthropicRequestsPerMinute int `mapstructure:"anthropic_requests_per_minute"`
	TelegramMessagesPerMinute  int `mapstructure:"telegram_messages_per_minute"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in current directory and configs folder
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		// Also check user's home directory
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".newsagent"))
		}
	}

	// Environment variables
	v.SetEnvPrefix("NEWSAGENT")
	v.AutomaticEnv()

	// Explicit bindings for nested keys (Viper doesn't auto-bind underscored nested keys)
	v.BindEnv("database.dsn", "NEWSAGENT_DATABASE_DSN")
	v.BindEnv("anthropic.api_key", "NEWSAGENT_ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.model", "NEWSAGENT_ANTHROPIC_MODEL")
	v.BindEnv("telegram.bot_token", "NEWSAGENT_TELEGRAM_BOT_TOKEN")
	v.BindEnv("telegram.channel", "NEWSAGENT_TELEGRAM_CHANNEL")
	v.BindEnv("logging.level", "NEWSAGENT_LOGGING_LEVEL")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.dsn", "./data/newsagent.db")

	// Anthropic defaults
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 1024)

	// Ingest defaults
	v.SetDefault("ingest.fetch_limit", 50)

	// Scheduler defaults
	v.SetDefault("scheduler.ingest_cron", "*/30 * * * *") // Every 30 minutes
	v.SetDefault("scheduler.generate_cron", "5 * * * *")  // Hourly safety net behind chaining
	v.SetDefault("scheduler.publish_cron", "10 * * * *")

	// Rate limit defaults
	v.SetDefault("rate_limit.anthropic_requests_per_minute", 10)
	v.SetDefault("rate_limit.telegram_messages_per_minute", 20)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration needed by the publishing daemon.
// The Anthropic key is deliberately optional: generation falls back to the
// local composer without it.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.Channel == "" {
		return fmt.Errorf("telegram.channel is required")
	}
	return nil
}
