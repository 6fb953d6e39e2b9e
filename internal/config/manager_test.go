package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func newManager(t *testing.T, name, body string) *ConfigManager {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	writeFile(t, path, body)
	m := NewConfigManager(path)
	m.SetEnvironment(map[string]string{})
	return m
}

func TestParseJSON(t *testing.T) {
	m := newManager(t, "config.json", `{
		"server": {"addr": ":8080"},
		"storage": {"driver": "sqlite", "path": "jobs.db", "busy_timeout": "2s"},
		"scheduler": {"timezone": "Asia/Jakarta"},
		"dispatch": {"broadcast_delay": {"min": "1s", "max": "2s"}, "sends_per_minute": 30}
	}`)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Storage.Driver != "sqlite" || cfg.Storage.BusyTimeout != "2s" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Dispatch.BroadcastDelay == nil || cfg.Dispatch.BroadcastDelay.Max != "2s" {
		t.Fatalf("broadcast delay not decoded: %+v", cfg.Dispatch)
	}
	if m.Get() != cfg {
		t.Fatalf("Load must commit the parsed config")
	}
}

func TestParseYAML(t *testing.T) {
	m := newManager(t, "config.yaml", `
server:
  addr: ":9000"
logging:
  level: debug
  telegram:
    enabled: true
    chat_id: -100123
notify:
  websocket:
    allowed_origins: ["https://panel.example"]
`)
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Server.Addr != ":9000" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Logging.Telegram.ChatID != -100123 || !cfg.Logging.Telegram.Enabled {
		t.Fatalf("telegram section: %+v", cfg.Logging.Telegram)
	}
	if got := cfg.Notify.Websocket.AllowedOrigins; len(got) != 1 || got[0] != "https://panel.example" {
		t.Fatalf("origins: %v", got)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	for name, body := range map[string]string{
		"config.json": `{"server": {"adr": ":1"}}`,
		"config.yml":  "scheduler:\n  tz: UTC\n",
	} {
		m := newManager(t, name, body)
		if _, err := m.Parse(); err == nil {
			t.Fatalf("%s: expected unknown field error", name)
		}
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	m := newManager(t, "config.json", `{"server":{}}{"server":{}}`)
	if _, err := m.Parse(); err == nil {
		t.Fatalf("expected trailing data error")
	}
}

func TestMissingFileUsesEnvironment(t *testing.T) {
	m := NewConfigManager(filepath.Join(t.TempDir(), "absent.json"))
	m.SetEnvironment(map[string]string{
		"PORT":                   "4000",
		"WABLAST_STORAGE_DRIVER": "memory",
		"TELEGRAM_TOKEN":         "123:abc",
		"TELEGRAM_CHAT_ID":       "-42",
		"WABLAST_REDIS_ADDR":     "localhost:6379",
	})
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Server.Addr != ":4000" {
		t.Fatalf("PORT override: %q", cfg.Server.Addr)
	}
	if cfg.Storage.Driver != "memory" {
		t.Fatalf("storage driver: %q", cfg.Storage.Driver)
	}
	if cfg.Logging.Telegram.Token != "123:abc" || cfg.Logging.Telegram.ChatID != -42 {
		t.Fatalf("telegram overrides: %+v", cfg.Logging.Telegram)
	}
	if !cfg.Notify.Redis.Enabled || cfg.Notify.Redis.Addr != "localhost:6379" {
		t.Fatalf("redis override: %+v", cfg.Notify.Redis)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	m := newManager(t, "config.json", `{"server":{"addr":":1"},"scheduler":{"timezone":"UTC"}}`)
	m.SetEnvironment(map[string]string{"WABLAST_TIMEZONE": "Asia/Makassar", "WABLAST_ADDR": "127.0.0.1:9"})
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Scheduler.Timezone != "Asia/Makassar" || cfg.Server.Addr != "127.0.0.1:9" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestParseOverridesBadNumber(t *testing.T) {
	if _, err := ParseOverrides(map[string]string{"TELEGRAM_CHAT_ID": "abc"}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("missing .env must be ignored: %v", err)
	}
}

func TestReloadValidatesAndPublishes(t *testing.T) {
	m := newManager(t, "config.json", `{"scheduler":{"timezone":"UTC"}}`)
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	changed, err := m.Reload(context.Background())
	if err != nil || changed {
		t.Fatalf("unchanged reload: changed=%v err=%v", changed, err)
	}

	m.SetValidator(func(_ context.Context, cfg *Config) error {
		if cfg.Scheduler.Timezone == "Mars/Base" {
			return errors.New("bad zone")
		}
		return nil
	})
	writeFile(t, m.Path(), `{"scheduler":{"timezone":"Mars/Base"}}`)
	if _, err := m.Reload(context.Background()); err == nil {
		t.Fatalf("expected validator rejection")
	}
	if m.Get().Scheduler.Timezone != "UTC" {
		t.Fatalf("rejected config must not be committed")
	}

	writeFile(t, m.Path(), `{"scheduler":{"timezone":"Asia/Jakarta"}}`)
	changed, err = m.Reload(context.Background())
	if err != nil || !changed {
		t.Fatalf("reload: changed=%v err=%v", changed, err)
	}
	select {
	case cfg := <-sub:
		if cfg.Scheduler.Timezone != "Asia/Jakarta" {
			t.Fatalf("published %+v", cfg.Scheduler)
		}
	default:
		t.Fatalf("no config published")
	}
}

func TestPublishKeepsLatest(t *testing.T) {
	m := NewConfigManager("unused.json")
	sub := m.Subscribe(1)
	a, b := &Config{}, &Config{}
	m.publish(a)
	m.publish(b)
	if got := <-sub; got != b {
		t.Fatalf("slow subscriber should receive the newest config")
	}
	m.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatalf("unsubscribe must close the channel")
	}
}

func TestWatchPicksUpChanges(t *testing.T) {
	m := newManager(t, "config.json", `{"logging":{"level":"info"}}`)
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	sub := m.Subscribe(4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = m.Watch(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(300 * time.Millisecond)
	defer tick.Stop()
	for {
		// Rewrite until the watcher has started and observed a change.
		writeFile(t, m.Path(), `{"logging":{"level":"debug"}}`)
		select {
		case cfg := <-sub:
			if cfg.Logging.Level != "debug" {
				t.Fatalf("published %+v", cfg.Logging)
			}
			return
		case <-tick.C:
		case <-deadline:
			t.Fatalf("watch did not publish")
		}
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	oldCfg := &Config{Logging: LoggingConfig{Level: "info"}, Storage: StorageConfig{Driver: "file"}}
	newCfg := &Config{
		Logging:   LoggingConfig{Level: "debug", Telegram: LoggingTelegram{Token: "secret"}},
		Storage:   StorageConfig{Driver: "postgres", DSN: "postgres://u:pw@h/db"},
		Scheduler: SchedulerConfig{Timezone: "UTC"},
	}
	changed, _ := SummarizeConfigChange(oldCfg, newCfg)
	if got := strings.Join(changed, ","); got != "logging,scheduler,storage" {
		t.Fatalf("changed = %q", got)
	}
	if got := RestartRequired(changed); len(got) != 1 || got[0] != "storage" {
		t.Fatalf("restart required = %v", got)
	}
	if changed, _ := SummarizeConfigChange(newCfg, newCfg); len(changed) != 0 {
		t.Fatalf("identical configs reported changes: %v", changed)
	}
}

func TestParseDurationField(t *testing.T) {
	if d, err := ParseDurationOrDefault("x", "", 3*time.Second); err != nil || d != 3*time.Second {
		t.Fatalf("default: %v %v", d, err)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatalf("negative duration accepted")
	}
	if _, err := ParseDurationField("x", "soon"); err == nil || !strings.Contains(err.Error(), "x:") {
		t.Fatalf("error should name the field: %v", err)
	}
}
