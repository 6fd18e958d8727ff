// Package config loads server settings from the environment.
//
// A .env file in the working directory is read first if present; variables
// already set in the real environment win over it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Message store backends.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Port     int    `env:"PORT"      envDefault:"3000"`
	DBPath   string `env:"DB_PATH"   envDefault:"data/candle.db"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	MessageStore  string `env:"MESSAGE_STORE"  envDefault:"sqlite"`
	RedisAddr     string `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"       envDefault:"0"`

	// Cron spec for physically deleting expired messages. Reads never
	// depend on it.
	MessageSweepSchedule string `env:"MESSAGE_SWEEP_SCHEDULE" envDefault:"@every 1m"`

	// PublicationRetention caps each account's feed. 0 keeps everything.
	PublicationRetention int `env:"PUBLICATION_RETENTION" envDefault:"0"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	BcryptCost         int      `env:"BCRYPT_COST"          envDefault:"12"`
}

// Load reads .env (if any) and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: loading .env: %w", err)
	}
	return parse()
}

func parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server could not start with.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}
	switch c.MessageStore {
	case StoreSQLite:
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("config: REDIS_ADDR is required when MESSAGE_STORE=redis")
		}
	default:
		return fmt.Errorf("config: unknown MESSAGE_STORE %q (want %q or %q)", c.MessageStore, StoreSQLite, StoreRedis)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("config: BCRYPT_COST %d outside [%d, %d]", c.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.PublicationRetention < 0 {
		return fmt.Errorf("config: PUBLICATION_RETENTION must not be negative")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// SlogLevel converts LogLevel to a slog.Level. Invalid values were already
// rejected by Validate, so they fall back to Info here.
func (c Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}
