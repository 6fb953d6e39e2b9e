package scheduler

import (
	"context"
	"errors"
	"time"

	"wablast/internal/job"
)

// ErrExpired is returned by Arm for once jobs whose fire time is not in the future.
var ErrExpired = errors.New("fire time already elapsed")

// Config controls the trigger scheduler.
type Config struct {
	Timezone string // IANA TZ, e.g. "Asia/Jakarta"
}

// Handler is invoked when a trigger fires. at is the nominal fire time.
// It runs on the timer's goroutine; the trigger is already re-armed.
type Handler func(ctx context.Context, id string, at time.Time)

// State of a job id in the registry.
type State int

const (
	NotArmed State = iota
	Armed
	Suspended
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Suspended:
		return "suspended"
	default:
		return "not_armed"
	}
}

type TriggerInfo struct {
	ID    string
	Type  job.ScheduleType
	Spec  string // cron spec; empty for once
	State State
	Next  time.Time
	Fires uint64
}

type trigger struct {
	job   job.Job
	fn    Handler
	spec  string
	sched interface{ Next(time.Time) time.Time }
	next  time.Time
	ver   uint64
	timer *time.Timer
	fires uint64
}

func (t *trigger) paused() bool { return t.job.Paused() }

func (t *trigger) stop() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
