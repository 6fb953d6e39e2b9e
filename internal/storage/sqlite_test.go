package storage

import (
	"context"
	"path/filepath"
	"testing"

	"wablast/internal/job"
	logx "wablast/pkg/logx"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "jobs.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Save(ctx, sampleJobs()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := st.Save(ctx, sampleJobs()[1:]); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("save should replace the collection, got %+v", got)
	}
	if w, ok := got[0].Rule.(job.Weekly); !ok || len(w.Days) != 2 {
		t.Fatalf("rule lost: %#v", got[0].Rule)
	}
}
