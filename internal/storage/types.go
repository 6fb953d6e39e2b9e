package storage

import (
	"context"
	"errors"
	"time"

	"wablast/internal/job"
)

var ErrDisabled = errors.New("storage disabled")

// Store is the Job Store contract. Save is last-writer-wins.
type Store interface {
	Load(ctx context.Context) ([]job.Job, error)
	Save(ctx context.Context, jobs []job.Job) error
	Close() error
}

// Config configures storage.
//
// If Driver is empty or "none", Open returns ErrDisabled.
type Config struct {
	Driver      string
	Path        string        // file, sqlite
	DSN         string        // postgres
	BusyTimeout time.Duration // sqlite only; 0 means default
}
