package configs

import (
	"fmt"
	"time"

	"invites.fest2.fun/configs/configslog"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// AppConfig is the full process configuration, read from the environment.
type AppConfig struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Host string `env:"APP_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"APP_PORT" envDefault:"3000"`

	Database DatabaseConfig `envPrefix:"DB_"`
	Storage  StorageConfig  `envPrefix:"STORAGE_"`
	Pools    PoolConfig     `envPrefix:"POOL_"`
	Mail     MailConfig     `envPrefix:"MAIL_"`

	// StoreDriver selects the key-value backend: "gorm" or "memory".
	StoreDriver string `env:"STORE_DRIVER" envDefault:"gorm"`
	// DefaultLogoURL is rendered when neither the template nor the event carries a logo.
	DefaultLogoURL string `env:"DEFAULT_LOGO_URL"`
}

// DatabaseConfig describes the GORM connection.
type DatabaseConfig struct {
	Driver   string `env:"DRIVER" envDefault:"postgres"`
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5432"`
	User     string `env:"USERNAME" envDefault:"postgres"`
	Password string `env:"PASSWORD"`
	Name     string `env:"NAME" envDefault:"invitations"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"`
	Timezone string `env:"TIMEZONE" envDefault:"UTC"`
	// Path is the SQLite file used when Driver is "sqlite".
	Path string `env:"PATH" envDefault:"invitations.db"`
}

// DSN renders the postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode, c.Timezone)
}

// StorageConfig describes the object store and its retry budget.
type StorageConfig struct {
	Driver          string        `env:"DRIVER" envDefault:"s3"`
	Bucket          string        `env:"BUCKET" envDefault:"fest2fun-invites"`
	Region          string        `env:"REGION" envDefault:"eu-west-1"`
	Endpoint        string        `env:"ENDPOINT"`
	AccessKeyID     string        `env:"ACCESS_KEY_ID"`
	SecretAccessKey string        `env:"SECRET_ACCESS_KEY"`
	KeyPrefix       string        `env:"KEY_PREFIX" envDefault:"fest2fun"`
	PresignTTL      time.Duration `env:"PRESIGN_TTL" envDefault:"168h"`
	MaxAttempts     uint          `env:"MAX_ATTEMPTS" envDefault:"3"`
	BaseDelay       time.Duration `env:"BASE_DELAY" envDefault:"100ms"`
}

// PoolConfig sizes the two worker pools.
type PoolConfig struct {
	Creation int `env:"CREATION_SIZE" envDefault:"30"`
	Dispatch int `env:"DISPATCH_SIZE" envDefault:"10"`
}

// MailConfig describes the outgoing mail transport.
type MailConfig struct {
	Driver   string `env:"DRIVER" envDefault:"log"`
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"invitations@fest2.fun"`
}

// Load reads an optional .env file and parses the environment into AppConfig.
func Load() (AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		configslog.SLog.Debugf(".env file not loaded, using process environment: %v", err)
	}
	return Parse()
}

// Parse parses the current environment without touching .env files.
func Parse() (AppConfig, error) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Pools.Creation <= 0 || cfg.Pools.Dispatch <= 0 {
		return AppConfig{}, fmt.Errorf("parse env: pool sizes must be positive (creation=%d, dispatch=%d)",
			cfg.Pools.Creation, cfg.Pools.Dispatch)
	}
	if cfg.Storage.MaxAttempts == 0 {
		return AppConfig{}, fmt.Errorf("parse env: STORAGE_MAX_ATTEMPTS must be at least 1")
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
