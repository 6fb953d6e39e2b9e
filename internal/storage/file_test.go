package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wablast/internal/job"
	logx "wablast/pkg/logx"
)

func sampleJobs() []job.Job {
	return []job.Job{
		{ID: "a", Targets: []string{"0812"}, Message: "pagi", Type: job.TypeDaily, Rule: job.Daily{Time: "08:00"}, Status: job.StatusActive},
		{ID: "b", Groups: []string{"1@g.us"}, Message: "rapat", Type: job.TypeWeekly, Rule: job.Weekly{Time: "09:00", Days: []int{1, 3}}, Status: job.StatusPaused},
	}
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "data", "jobs.json")}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	jobs, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected empty collection, got %d", len(jobs))
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	if err := st.Save(ctx, sampleJobs()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
	got, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("order not preserved: %+v", got)
	}
	if got[1].Status != job.StatusPaused {
		t.Fatalf("status lost: %q", got[1].Status)
	}
	if err := st.Save(ctx, nil); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	got, _ = st.Load(ctx)
	if len(got) != 0 {
		t.Fatalf("expected empty after save(nil), got %d", len(got))
	}
}

func TestFileStoreKeepsBrokenRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	doc := `[{"id":"a","targets":["1"],"message":"m","scheduleType":"monthly","scheduleData":{"time":"08:00","date":"abc"}}, "junk"]`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	st, _ := Open(Config{Driver: "file", Path: path}, logx.Nop())
	got, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || !job.IsInvalid(got[0].Rule) || !got[1].Unreadable() {
		t.Fatalf("expected an invalid rule and an unreadable record, got %+v", got)
	}
}

func TestFileStoreSaveKeepsUnreadableRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	doc := `[
		{"id":"a","targets":["0812"],"message":"m","scheduleType":"daily","scheduleData":{"time":"08:00"}},
		{"id":"odd","targets":"0812","message":"m","scheduleType":"daily","scheduleData":{"time":"09:00"}}
	]`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	st, _ := Open(Config{Driver: "file", Path: path}, logx.Nop())
	ctx := context.Background()

	jobs, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(jobs) != 2 || !jobs[1].Unreadable() || jobs[1].ID != "odd" {
		t.Fatalf("unexpected load: %+v", jobs)
	}
	jobs = append(jobs, job.Job{ID: "c", Targets: []string{"1"}, Message: "m", Type: job.TypeDaily, Rule: job.Daily{Time: "10:00"}, Status: job.StatusActive})
	if err := st.Save(ctx, jobs); err != nil {
		t.Fatalf("save: %v", err)
	}

	again, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(again) != 3 || again[1].ID != "odd" || !again[1].Unreadable() || again[2].ID != "c" {
		t.Fatalf("record lost across save: %+v", again)
	}
	b, _ := os.ReadFile(path)
	if !strings.Contains(string(b), `"targets": "0812"`) {
		t.Fatalf("unreadable record not written verbatim:\n%s", b)
	}
}

func TestFileStoreCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	st, _ := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if _, err := st.Load(context.Background()); err == nil {
		t.Fatalf("expected error for corrupt document")
	}
}

func TestOpenDisabled(t *testing.T) {
	if _, err := Open(Config{Driver: "none"}, logx.Nop()); err != ErrDisabled {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if _, err := Open(Config{Driver: "mongo"}, logx.Nop()); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestMemoryStoreCopies(t *testing.T) {
	m := NewMemory(sampleJobs()...)
	got, _ := m.Load(context.Background())
	got[0].Targets[0] = "changed"
	again, _ := m.Load(context.Background())
	if again[0].Targets[0] != "0812" {
		t.Fatalf("memory store aliased caller data")
	}
}
