package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"wablast/internal/config"
)

const testConfig = `{
	"server": {"addr": "127.0.0.1:0"},
	"storage": {"driver": "memory"},
	"transport": {"driver": "dryrun"},
	"scheduler": {"timezone": "Asia/Jakarta"},
	"clock": {"url": "off"},
	"logging": {"level": "error"}
}`

func startTestApp(t *testing.T) (*App, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(testConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfgm := config.NewConfigManager(path)
	cfgm.SetEnvironment(map[string]string{})
	cfg, err := cfgm.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	a, err := newApp(cfgm, cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := a.Start(ctx); err != nil {
		cancel()
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		sctx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := a.Stop(sctx); err != nil {
			t.Errorf("stop: %v", err)
		}
	})
	return a, "http://" + a.Addr()
}

func TestAppServesJobs(t *testing.T) {
	_, base := startTestApp(t)

	resp, err := http.Get(base + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", resp.StatusCode)
	}

	body := []byte(`{"targets":["08123"],"message":"Reminder","scheduleType":"daily","scheduleData":{"time":"08:00"}}`)
	resp, err = http.Post(base+"/api/jobs", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	var created struct {
		ID string `json:"id"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || created.ID == "" {
		t.Fatalf("create status %d id %q", resp.StatusCode, created.ID)
	}

	resp, err = http.Get(base + "/api/jobs")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var list []map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if len(list) != 1 || list[0]["id"] != created.ID || list[0]["scheduleString"] != "Setiap Hari, 08:00" {
		t.Fatalf("list = %v", list)
	}
	if list[0]["nextRun"] == nil {
		t.Fatalf("armed job should report nextRun")
	}

	resp, err = http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var st map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&st)
	resp.Body.Close()
	if st["connected"] != true {
		t.Fatalf("dryrun transport should be connected: %v", st)
	}
}

func TestAppHotAppliesTimezone(t *testing.T) {
	a, _ := startTestApp(t)

	updated := []byte(`{
	"server": {"addr": "127.0.0.1:0"},
	"storage": {"driver": "memory"},
	"transport": {"driver": "dryrun"},
	"scheduler": {"timezone": "UTC"},
	"clock": {"url": "off"},
	"logging": {"level": "error"}
}`)
	if err := os.WriteFile(a.cfgm.Path(), updated, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Reload directly; the watcher may or may not observe the write first.
	if _, err := a.cfgm.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for a.sched.Location().String() != "UTC" {
		if time.Now().After(deadline) {
			t.Fatalf("timezone not applied: %s", a.sched.Location())
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestAppRejectsInvalidReload(t *testing.T) {
	a, _ := startTestApp(t)
	if err := os.WriteFile(a.cfgm.Path(), []byte(`{"scheduler":{"timezone":"Mars/Base"}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := a.cfgm.Reload(context.Background()); err == nil {
		t.Fatalf("expected validation error")
	}
	if got := a.cfgm.Get().Scheduler.Timezone; got != "Asia/Jakarta" {
		t.Fatalf("rejected config committed: %q", got)
	}
}
