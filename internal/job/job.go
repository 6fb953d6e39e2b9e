package job

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrValidation marks create-time rejections and malformed recurrence data.
var ErrValidation = errors.New("validation failed")

type ScheduleType string

const (
	TypeNow     ScheduleType = "now"
	TypeOnce    ScheduleType = "once"
	TypeDaily   ScheduleType = "daily"
	TypeWeekly  ScheduleType = "weekly"
	TypeMonthly ScheduleType = "monthly"
)

func (t ScheduleType) Known() bool {
	switch t {
	case TypeNow, TypeOnce, TypeDaily, TypeWeekly, TypeMonthly:
		return true
	}
	return false
}

// Recurring reports whether the type is driven by a recurrence rule.
func (t ScheduleType) Recurring() bool {
	return t == TypeDaily || t == TypeWeekly || t == TypeMonthly
}

type Status string

const (
	StatusActive Status = "Active"
	StatusPaused Status = "Paused"
)

// Outcome is the aggregate result of one dispatch pass.
type Outcome string

const (
	OutcomeSuccess Outcome = "Sukses"
	OutcomeFailed  Outcome = "Gagal"
)

// LastRun records the most recent completed dispatch pass. It is written only
// by a completed pass, never by scheduling.
type LastRun struct {
	Time   time.Time `json:"time"`
	Status Outcome   `json:"status"`
	Sent   int       `json:"sent"`
	Failed int       `json:"failed"`
	Error  string    `json:"error,omitempty"`
}

type Job struct {
	ID           string
	Targets      []string
	Groups       []string
	Message      string
	TemplateName string
	Type         ScheduleType
	Rule         Rule
	Status       Status
	LastRun      *LastRun
	CreatedAt    time.Time

	// raw is a stored record that could not be decoded. It is written back
	// verbatim and never armed.
	raw []byte
}

// Spec is the caller-supplied part of a job.
type Spec struct {
	Targets      []string
	Groups       []string
	Message      string
	TemplateName string
	Type         ScheduleType
	Rule         Rule
}

// New builds a validated job with default status and no last run.
func New(id string, s Spec, now time.Time) (Job, error) {
	j := Job{
		ID:           id,
		Targets:      cleanList(s.Targets),
		Groups:       cleanList(s.Groups),
		Message:      s.Message,
		TemplateName: strings.TrimSpace(s.TemplateName),
		Type:         s.Type,
		Rule:         s.Rule,
		Status:       StatusActive,
		CreatedAt:    now,
	}
	if err := j.Validate(); err != nil {
		return Job{}, err
	}
	return j, nil
}

// Validate checks recipients, message and recurrence data.
func (j Job) Validate() error {
	if j.raw != nil {
		return j.Rule.Validate()
	}
	if len(j.Targets)+len(j.Groups) == 0 {
		return fmt.Errorf("%w: at least one target or group is required", ErrValidation)
	}
	if strings.TrimSpace(j.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if !j.Type.Known() {
		return fmt.Errorf("%w: unknown schedule type %q", ErrValidation, j.Type)
	}
	if j.Type == TypeNow {
		return nil
	}
	if j.Rule == nil {
		return fmt.Errorf("%w: scheduleData is required for %s", ErrValidation, j.Type)
	}
	if j.Rule.Type() != j.Type {
		return fmt.Errorf("%w: scheduleData does not match schedule type %s", ErrValidation, j.Type)
	}
	return j.Rule.Validate()
}

// Recipients returns individual contacts followed by groups, in list order.
func (j Job) Recipients() []string {
	out := make([]string, 0, len(j.Targets)+len(j.Groups))
	out = append(out, j.Targets...)
	out = append(out, j.Groups...)
	return out
}

func (j Job) Paused() bool { return j.Status == StatusPaused }

// Unreadable reports whether j only carries the raw bytes of a stored record
// that failed to decode.
func (j Job) Unreadable() bool { return j.raw != nil }

// Raw returns the stored bytes of an unreadable job, nil otherwise.
func (j Job) Raw() []byte { return j.raw }

// Clone returns a deep copy so callers can mutate without aliasing the store.
func (j Job) Clone() Job {
	cp := j
	cp.Targets = append([]string(nil), j.Targets...)
	cp.Groups = append([]string(nil), j.Groups...)
	if j.LastRun != nil {
		lr := *j.LastRun
		cp.LastRun = &lr
	}
	return cp
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
