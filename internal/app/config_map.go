package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"wablast/internal/clock"
	"wablast/internal/config"
	"wablast/internal/dispatch"
	"wablast/internal/notify"
	"wablast/internal/storage"
	"wablast/internal/task/scheduler"
	"wablast/internal/transport"
	"wablast/internal/transport/telegram"
	logx "wablast/pkg/logx"
)

const (
	defaultAddr     = ":3000"
	defaultTimezone = "Asia/Jakarta"
	defaultJobsPath = "./data/jobs.json"
	worldTimeAPI    = "https://worldtimeapi.org/api/timezone/"
)

type serverConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

func mapServerConfig(cfg *config.Config) (serverConfig, error) {
	sc := cfg.Server
	out := serverConfig{Addr: strings.TrimSpace(sc.Addr)}
	if out.Addr == "" {
		out.Addr = defaultAddr
	}
	var err error
	if out.ReadTimeout, err = config.ParseDurationField("server.read_timeout", sc.ReadTimeout); err != nil {
		return serverConfig{}, err
	}
	if out.WriteTimeout, err = config.ParseDurationField("server.write_timeout", sc.WriteTimeout); err != nil {
		return serverConfig{}, err
	}
	if out.ShutdownTimeout, err = config.ParseDurationOrDefault("server.shutdown_timeout", sc.ShutdownTimeout, 5*time.Second); err != nil {
		return serverConfig{}, err
	}
	return out, nil
}

func timezoneOf(cfg *config.Config) string {
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		return tz
	}
	return defaultTimezone
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	tz := timezoneOf(cfg)
	if _, err := time.LoadLocation(tz); err != nil {
		return scheduler.Config{}, fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
	}
	return scheduler.Config{Timezone: tz}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "", "file", "json":
		if path == "" {
			path = defaultJobsPath
		}
		return storage.Config{Driver: "file", Path: path}, nil
	case "none", "memory":
		return storage.Config{Driver: driver}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, errors.New("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, nil
	case "postgres", "postgresql":
		if strings.TrimSpace(sc.DSN) == "" {
			return storage.Config{}, errors.New("storage.dsn is required when storage.driver=postgres")
		}
		return storage.Config{Driver: "postgres", DSN: strings.TrimSpace(sc.DSN)}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapTransportConfig(cfg *config.Config) (transport.Config, error) {
	tc := cfg.Transport
	out := transport.Config{
		Driver:   strings.ToLower(strings.TrimSpace(tc.Driver)),
		BaseURL:  strings.TrimSpace(tc.BaseURL),
		Username: tc.Username,
		Password: tc.Password,
	}
	switch out.Driver {
	case "", "dryrun":
	case "gateway", "http":
		if out.BaseURL == "" {
			return transport.Config{}, errors.New("transport.base_url is required when transport.driver=gateway")
		}
		if _, err := url.Parse(out.BaseURL); err != nil {
			return transport.Config{}, fmt.Errorf("transport.base_url: %w", err)
		}
	default:
		return transport.Config{}, fmt.Errorf("unknown transport.driver: %s", tc.Driver)
	}
	var err error
	if out.Timeout, err = config.ParseDurationField("transport.timeout", tc.Timeout); err != nil {
		return transport.Config{}, err
	}
	if out.HealthInterval, err = config.ParseDurationField("transport.health_interval", tc.HealthInterval); err != nil {
		return transport.Config{}, err
	}
	return out, nil
}

func mapDelayRange(path string, r *config.DelayRange, def dispatch.Range) (dispatch.Range, error) {
	if r == nil {
		return def, nil
	}
	lo, err := config.ParseDurationField(path+".min", r.Min)
	if err != nil {
		return dispatch.Range{}, err
	}
	hi, err := config.ParseDurationField(path+".max", r.Max)
	if err != nil {
		return dispatch.Range{}, err
	}
	if hi < lo {
		return dispatch.Range{}, fmt.Errorf("%s: max must be >= min", path)
	}
	return dispatch.Range{Min: lo, Max: hi}, nil
}

func mapDispatchConfig(cfg *config.Config) (dispatch.Config, error) {
	dc := cfg.Dispatch
	out := dispatch.DefaultConfig()
	var err error
	if out.BroadcastDelay, err = mapDelayRange("dispatch.broadcast_delay", dc.BroadcastDelay, out.BroadcastDelay); err != nil {
		return dispatch.Config{}, err
	}
	if out.ValidateDelay, err = mapDelayRange("dispatch.validate_delay", dc.ValidateDelay, out.ValidateDelay); err != nil {
		return dispatch.Config{}, err
	}
	if s := strings.TrimSpace(dc.CountryCode); s != "" {
		out.CountryCode = s
	}
	if s := strings.TrimSpace(dc.ContactSuffix); s != "" {
		out.ContactSuffix = s
	}
	switch {
	case dc.MaxConcurrentPasses < 0:
		return dispatch.Config{}, errors.New("dispatch.max_concurrent_passes must be >= 0")
	case dc.MaxConcurrentPasses > 0:
		out.MaxConcurrentPasses = dc.MaxConcurrentPasses
	}
	switch {
	case dc.SendsPerMinute < 0:
		out.SendsPerMinute = 0
	case dc.SendsPerMinute > 0:
		out.SendsPerMinute = dc.SendsPerMinute
	}
	if out.SendTimeout, err = config.ParseDurationOrDefault("dispatch.send_timeout", dc.SendTimeout, out.SendTimeout); err != nil {
		return dispatch.Config{}, err
	}
	return out, nil
}

func mapClockConfig(cfg *config.Config) (clock.Config, error) {
	cc := cfg.Clock
	tz := timezoneOf(cfg)
	out := clock.Config{URL: strings.TrimSpace(cc.URL), Timezone: tz}
	switch strings.ToLower(out.URL) {
	case "":
		out.URL = worldTimeAPI + tz
	case "off", "none", "system":
		out.URL = ""
	}
	var err error
	if out.Interval, err = config.ParseDurationOrDefault("clock.sync_interval", cc.Interval, time.Hour); err != nil {
		return clock.Config{}, err
	}
	if out.Timeout, err = config.ParseDurationOrDefault("clock.timeout", cc.Timeout, 10*time.Second); err != nil {
		return clock.Config{}, err
	}
	return out, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	lc := cfg.Logging
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File:    logx.FileConfig{Enabled: lc.File.Enabled, Path: lc.File.Path},
		Alert: logx.AlertConfig{
			Enabled:    lc.Telegram.Enabled,
			MinLevel:   lc.Telegram.MinLevel,
			RatePerSec: lc.Telegram.RatePerSec,
		},
	}
}

// mapAlertConfig returns ok=false when no alert sink is configured.
func mapAlertConfig(cfg *config.Config) (telegram.Config, bool, error) {
	tc := cfg.Logging.Telegram
	if !tc.Enabled {
		return telegram.Config{}, false, nil
	}
	if strings.TrimSpace(tc.Token) == "" {
		return telegram.Config{}, false, errors.New("logging.telegram.enabled requires a token (TELEGRAM_TOKEN)")
	}
	if tc.ChatID == 0 {
		return telegram.Config{}, false, errors.New("logging.telegram.chat_id is required")
	}
	return telegram.Config{Token: tc.Token, ChatID: tc.ChatID, ThreadID: tc.ThreadID}, true, nil
}

func mapHubConfig(cfg *config.Config) notify.HubConfig {
	return notify.HubConfig{AllowedOrigins: cfg.Notify.Websocket.AllowedOrigins}
}

// mapRedisConfig returns ok=false when the redis publisher is disabled.
func mapRedisConfig(cfg *config.Config) (notify.RedisConfig, bool, error) {
	rc := cfg.Notify.Redis
	if !rc.Enabled {
		return notify.RedisConfig{}, false, nil
	}
	if strings.TrimSpace(rc.Addr) == "" {
		return notify.RedisConfig{}, false, errors.New("notify.redis.addr is required when notify.redis.enabled")
	}
	if rc.DB < 0 {
		return notify.RedisConfig{}, false, errors.New("notify.redis.db must be >= 0")
	}
	return notify.RedisConfig{Addr: rc.Addr, Password: rc.Password, DB: rc.DB, Channel: rc.Channel}, true, nil
}

// validateConfig rejects a config before it is committed, on load and on
// every hot reload.
func validateConfig(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if _, err := mapServerConfig(cfg); err != nil {
		return err
	}
	if _, err := mapSchedulerConfig(cfg); err != nil {
		return err
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapTransportConfig(cfg); err != nil {
		return err
	}
	if _, err := mapDispatchConfig(cfg); err != nil {
		return err
	}
	if _, err := mapClockConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapAlertConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapRedisConfig(cfg); err != nil {
		return err
	}
	return nil
}
