package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Overrides are environment values applied on top of the file config. Only
// non-empty values override.
type Overrides struct {
	Port          string `env:"PORT"`
	Addr          string `env:"WABLAST_ADDR"`
	Timezone      string `env:"WABLAST_TIMEZONE"`
	LogLevel      string `env:"WABLAST_LOG_LEVEL"`
	StorageDriver string `env:"WABLAST_STORAGE_DRIVER"`
	StoragePath   string `env:"WABLAST_STORAGE_PATH"`
	StorageDSN    string `env:"WABLAST_STORAGE_DSN"`

	TransportDriver   string `env:"WABLAST_TRANSPORT_DRIVER"`
	TransportURL      string `env:"WABLAST_TRANSPORT_URL"`
	TransportUsername string `env:"WABLAST_TRANSPORT_USERNAME"`
	TransportPassword string `env:"WABLAST_TRANSPORT_PASSWORD"`

	RedisAddr     string `env:"WABLAST_REDIS_ADDR"`
	RedisPassword string `env:"WABLAST_REDIS_PASSWORD"`

	TelegramToken  string `env:"TELEGRAM_TOKEN"`
	TelegramChatID int64  `env:"TELEGRAM_CHAT_ID"`
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are not an error; existing variables are never overwritten.
func LoadDotEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return fmt.Errorf("load .env file: %w", err)
		}
	}
	return nil
}

// ParseOverrides reads overrides from environ (nil means the process
// environment).
func ParseOverrides(environ map[string]string) (Overrides, error) {
	var o Overrides
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&o, opts); err != nil {
		return Overrides{}, fmt.Errorf("parse env: %w", err)
	}
	return o, nil
}

// Apply copies set overrides into cfg.
func (o Overrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	if p := strings.TrimSpace(o.Port); p != "" {
		cfg.Server.Addr = ":" + strings.TrimPrefix(p, ":")
	}
	set(&cfg.Server.Addr, o.Addr)
	set(&cfg.Scheduler.Timezone, o.Timezone)
	set(&cfg.Logging.Level, o.LogLevel)
	set(&cfg.Storage.Driver, o.StorageDriver)
	set(&cfg.Storage.Path, o.StoragePath)
	set(&cfg.Storage.DSN, o.StorageDSN)
	set(&cfg.Transport.Driver, o.TransportDriver)
	set(&cfg.Transport.BaseURL, o.TransportURL)
	set(&cfg.Transport.Username, o.TransportUsername)
	set(&cfg.Transport.Password, o.TransportPassword)
	if strings.TrimSpace(o.RedisAddr) != "" {
		cfg.Notify.Redis.Addr = strings.TrimSpace(o.RedisAddr)
		cfg.Notify.Redis.Enabled = true
	}
	set(&cfg.Notify.Redis.Password, o.RedisPassword)
	set(&cfg.Logging.Telegram.Token, o.TelegramToken)
	if o.TelegramChatID != 0 {
		cfg.Logging.Telegram.ChatID = o.TelegramChatID
	}
}
