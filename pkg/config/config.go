// Package config loads and validates the daemon configuration.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the full configuration of the gift ingestion daemon.
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Telegram       TelegramConfig       `mapstructure:"telegram"`
	Assets         AssetsConfig         `mapstructure:"assets"`
	Events         EventsConfig         `mapstructure:"events"`
	Auth           AuthConfig           `mapstructure:"auth"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
	Logging        LoggingConfig        `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database" validate:"required"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// TelegramConfig describes the session bridge that owns the authenticated
// platform connection.
type TelegramConfig struct {
	BridgeURL          string        `mapstructure:"bridge_url" validate:"required,url"`
	AuthToken          string        `mapstructure:"auth_token"`
	PollTimeout        time.Duration `mapstructure:"poll_timeout"`
	DownloadTimeout    time.Duration `mapstructure:"download_timeout"`
	DownloadsPerSecond int           `mapstructure:"downloads_per_second"`
}

// AssetsConfig selects and configures the materialized-asset storage backend.
type AssetsConfig struct {
	// Backend is "fs" for the local uploads directory or "s3" for
	// S3-compatible object storage.
	Backend       string   `mapstructure:"backend" validate:"oneof=fs s3"`
	Dir           string   `mapstructure:"dir"`
	PublicBaseURL string   `mapstructure:"public_base_url"`
	S3            S3Config `mapstructure:"s3"`
}

// S3Config contains S3-compatible object storage settings (MinIO included).
type S3Config struct {
	Endpoint      string `mapstructure:"endpoint"`
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// EventsConfig configures downstream event fan-out. An empty URL disables
// publishing (a noop publisher is used).
type EventsConfig struct {
	NATSURL string `mapstructure:"nats_url"`
}

// AuthConfig contains API authentication settings.
type AuthConfig struct {
	// AdminJWTSecret signs/validates bearer tokens for mutating endpoints.
	AdminJWTSecret string `mapstructure:"admin_jwt_secret"`
	// BotToken validates Telegram mini-app initData.
	BotToken string `mapstructure:"bot_token"`
}

// ReconciliationConfig contains settings for the periodic full re-sync.
type ReconciliationConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	InitialTimeout time.Duration `mapstructure:"initial_timeout"`
	PassTimeout    time.Duration `mapstructure:"pass_timeout"`
	PageLimit      int           `mapstructure:"page_limit" validate:"gt=0,lte=100"`
	// OverwriteWithdrawn lets a reconciliation pass overwrite withdrawal
	// state discovered live. Off by default: the live listener is
	// authoritative for withdrawals.
	OverwriteWithdrawn bool `mapstructure:"overwrite_withdrawn"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "giftstream")

	// Telegram bridge defaults
	viper.SetDefault("telegram.poll_timeout", "25s")
	viper.SetDefault("telegram.download_timeout", "60s")
	viper.SetDefault("telegram.downloads_per_second", 2)

	// Asset defaults
	viper.SetDefault("assets.backend", "fs")
	viper.SetDefault("assets.dir", "./uploads/gifts")
	viper.SetDefault("assets.public_base_url", "/uploads/gifts")

	// Reconciliation defaults
	viper.SetDefault("reconciliation.interval", "10m")
	viper.SetDefault("reconciliation.initial_timeout", "2m")
	viper.SetDefault("reconciliation.pass_timeout", "5m")
	viper.SetDefault("reconciliation.page_limit", 50)
	viper.SetDefault("reconciliation.overwrite_withdrawn", false)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")
}
