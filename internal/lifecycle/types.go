package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"wablast/internal/dispatch"
	"wablast/internal/job"
	"wablast/internal/task/scheduler"
)

var (
	ErrNotFound          = errors.New("job not found")
	ErrGroupsUnsupported = errors.New("transport cannot list groups")
)

// NextRunPaused is reported instead of a timestamp for paused jobs.
const NextRunPaused = "Dijeda"

// Triggers is the subset of the trigger registry the manager drives.
type Triggers interface {
	Arm(j job.Job, fn scheduler.Handler) (time.Time, error)
	Disarm(id string) bool
	Clear() int
	Next(id string) (time.Time, scheduler.State)
	Location() *time.Location
}

// Dispatcher runs delivery and validation passes.
type Dispatcher interface {
	Deliver(ctx context.Context, recipients []string, body string) (dispatch.Result, error)
	Validate(ctx context.Context, numbers []string, progress dispatch.Progress) ([]dispatch.CheckStatus, error)
	Connected() bool
}

// CreateRequest is the caller-supplied part of a new job. ScheduleData is
// decoded according to ScheduleType.
type CreateRequest struct {
	Targets      []string         `json:"targets"`
	Groups       []string         `json:"groups"`
	Message      string           `json:"message"`
	TemplateName string           `json:"templateName,omitempty"`
	ScheduleType job.ScheduleType `json:"scheduleType"`
	ScheduleData json.RawMessage  `json:"scheduleData,omitempty"`
}

type CreateResult struct {
	ID        string    `json:"id"`
	Immediate bool      `json:"immediate"`
	NextRun   time.Time `json:"nextRun,omitzero"`
}

// Detail is one row of the detailed job listing.
type Detail struct {
	Job             job.Job
	RecipientString string
	ScheduleString  string
	Next            time.Time
	State           scheduler.State
}

// NextRun renders the next-fire column: an RFC3339 instant, "Dijeda", or nil.
func (d Detail) NextRun() *string {
	if d.Job.Paused() {
		s := NextRunPaused
		return &s
	}
	if d.State == scheduler.Armed && !d.Next.IsZero() {
		s := d.Next.Format(time.RFC3339)
		return &s
	}
	return nil
}

func (d Detail) MarshalJSON() ([]byte, error) {
	var m map[string]json.RawMessage
	if d.Job.Unreadable() {
		// Stored bytes may not be an object; list what could be recovered.
		m = map[string]json.RawMessage{"unreadable": json.RawMessage("true")}
		if err := putJSON(m, "id", d.Job.ID); err != nil {
			return nil, err
		}
		if err := putJSON(m, "scheduleType", d.Job.Type); err != nil {
			return nil, err
		}
	} else {
		base, err := json.Marshal(d.Job)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(base, &m); err != nil {
			return nil, err
		}
	}
	if err := putJSON(m, "recipientString", d.RecipientString); err != nil {
		return nil, err
	}
	if err := putJSON(m, "scheduleString", d.ScheduleString); err != nil {
		return nil, err
	}
	if err := putJSON(m, "nextRun", d.NextRun()); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func putJSON(m map[string]json.RawMessage, k string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m[k] = b
	return nil
}

// ReconcileReport summarises one clear-then-rearm cycle.
type ReconcileReport struct {
	Cleared int      `json:"cleared"`
	Armed   int      `json:"armed"`
	Paused  int      `json:"paused"`
	Expired int      `json:"expired"`
	Invalid []string `json:"invalid,omitempty"`
}

// JobEvent is the payload of job.* events.
type JobEvent struct {
	ID      string           `json:"id"`
	Type    job.ScheduleType `json:"scheduleType,omitempty"`
	Status  job.Status       `json:"status,omitempty"`
	LastRun *job.LastRun     `json:"lastRun,omitempty"`
	Result  *dispatch.Result `json:"result,omitempty"`
}

// Validation event payloads.
type ValidationUpdate struct {
	RunID  string `json:"runId"`
	Number string `json:"number"`
	Status string `json:"status"`
}

type ValidationProgress struct {
	RunID   string `json:"runId"`
	Checked int    `json:"checked"`
	Total   int    `json:"total"`
}

type ValidationComplete struct {
	RunID   string                 `json:"runId"`
	Results []dispatch.CheckStatus `json:"results"`
	Error   string                 `json:"error,omitempty"`
}
