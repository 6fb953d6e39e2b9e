package config

import (
	"reflect"
	"sort"
	"strings"

	logx "wablast/pkg/logx"
)

// Sections that cannot be applied to a running process.
var restartSections = map[string]bool{
	"server":    true,
	"storage":   true,
	"transport": true,
	"notify":    true,
	"clock":     true,
}

// RestartRequired reports which of the changed sections only take effect
// after a restart.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		if restartSections[s] {
			out = append(out, s)
		}
	}
	return out
}

// SummarizeConfigChange returns the changed section names and safe
// structured attrs for logging. Secrets (passwords, tokens, DSNs) are never
// included; only whether they are set.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Server != newCfg.Server {
		changed = append(changed, "server")
		attrs = append(attrs, logx.String("server.addr", newCfg.Server.Addr))
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newCfg.Storage.Path) != ""),
			logx.Bool("storage.dsn_set", strings.TrimSpace(newCfg.Storage.DSN) != ""),
		)
	}

	if oldCfg.Transport != newCfg.Transport {
		changed = append(changed, "transport")
		attrs = append(attrs,
			logx.String("transport.driver", newCfg.Transport.Driver),
			logx.String("transport.base_url", newCfg.Transport.BaseURL),
			logx.Bool("transport.auth_set", newCfg.Transport.Username != "" || newCfg.Transport.Password != ""),
		)
	}

	if strings.TrimSpace(oldCfg.Scheduler.Timezone) != strings.TrimSpace(newCfg.Scheduler.Timezone) {
		changed = append(changed, "scheduler")
		attrs = append(attrs, logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)))
	}

	if !reflect.DeepEqual(oldCfg.Dispatch, newCfg.Dispatch) {
		changed = append(changed, "dispatch")
		attrs = append(attrs,
			logx.Int("dispatch.max_concurrent_passes", newCfg.Dispatch.MaxConcurrentPasses),
			logx.Int("dispatch.sends_per_minute", newCfg.Dispatch.SendsPerMinute),
		)
	}

	if oldCfg.Clock != newCfg.Clock {
		changed = append(changed, "clock")
		attrs = append(attrs,
			logx.Bool("clock.sync_enabled", strings.TrimSpace(newCfg.Clock.URL) != ""),
			logx.String("clock.interval", newCfg.Clock.Interval),
		)
	}

	ol, nl := oldCfg.Logging, newCfg.Logging
	if ol.Level != nl.Level || ol.Console != nl.Console || ol.File != nl.File ||
		ol.Telegram.Enabled != nl.Telegram.Enabled || ol.Telegram.ChatID != nl.Telegram.ChatID ||
		ol.Telegram.ThreadID != nl.Telegram.ThreadID || ol.Telegram.MinLevel != nl.Telegram.MinLevel ||
		ol.Telegram.RatePerSec != nl.Telegram.RatePerSec || ol.Telegram.Token != nl.Telegram.Token {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", nl.Level),
			logx.Bool("logging.file_enabled", nl.File.Enabled),
			logx.Bool("logging.telegram_enabled", nl.Telegram.Enabled),
			logx.Bool("logging.telegram_token_set", strings.TrimSpace(nl.Telegram.Token) != ""),
		)
	}

	if !reflect.DeepEqual(oldCfg.Notify, newCfg.Notify) {
		changed = append(changed, "notify")
		attrs = append(attrs,
			logx.Int("notify.websocket_origins", len(newCfg.Notify.Websocket.AllowedOrigins)),
			logx.Bool("notify.redis_enabled", newCfg.Notify.Redis.Enabled),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
