package storage

import (
	"context"
	"sync"

	"wablast/internal/job"
)

// Memory is an in-process Store. Saved jobs are deep-copied in both directions.
type Memory struct {
	mu    sync.Mutex
	jobs  []job.Job
	saves int
	err   error
}

func NewMemory(seed ...job.Job) *Memory {
	m := &Memory{}
	m.jobs = cloneAll(seed)
	return m
}

func (m *Memory) Load(ctx context.Context) ([]job.Job, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return cloneAll(m.jobs), nil
}

func (m *Memory) Save(ctx context.Context, jobs []job.Job) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.jobs = cloneAll(jobs)
	m.saves++
	return nil
}

func (m *Memory) Close() error { return nil }

// Fail makes subsequent Load/Save calls return err (nil restores).
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Saves reports how many successful saves happened.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func cloneAll(in []job.Job) []job.Job {
	out := make([]job.Job, len(in))
	for i, j := range in {
		out[i] = j.Clone()
	}
	return out
}
