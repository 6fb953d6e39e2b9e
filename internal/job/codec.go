package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type wireJob struct {
	ID           string          `json:"id"`
	Targets      []string        `json:"targets"`
	Groups       []string        `json:"groups"`
	Message      string          `json:"message"`
	TemplateName string          `json:"templateName,omitempty"`
	ScheduleType ScheduleType    `json:"scheduleType"`
	ScheduleData json.RawMessage `json:"scheduleData,omitempty"`
	Status       Status          `json:"status"`
	LastRun      *LastRun        `json:"lastRun"`
	CreatedAt    *time.Time      `json:"createdAt,omitempty"`
}

func (j Job) MarshalJSON() ([]byte, error) {
	if j.raw != nil {
		if !json.Valid(j.raw) {
			return json.Marshal(string(j.raw))
		}
		return j.raw, nil
	}
	w := wireJob{
		ID:           j.ID,
		Targets:      nonNil(j.Targets),
		Groups:       nonNil(j.Groups),
		Message:      j.Message,
		TemplateName: j.TemplateName,
		ScheduleType: j.Type,
		Status:       j.Status,
		LastRun:      j.LastRun,
	}
	if w.Status == "" {
		w.Status = StatusActive
	}
	if !j.CreatedAt.IsZero() {
		t := j.CreatedAt
		w.CreatedAt = &t
	}
	if j.Rule != nil {
		raw, err := json.Marshal(j.Rule)
		if err != nil {
			return nil, fmt.Errorf("encode scheduleData for %s: %w", j.ID, err)
		}
		w.ScheduleData = raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON is lenient about scheduleData; see decodeLenient.
func (j *Job) UnmarshalJSON(b []byte) error {
	var w wireJob
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*j = Job{
		ID:           w.ID,
		Targets:      w.Targets,
		Groups:       w.Groups,
		Message:      w.Message,
		TemplateName: w.TemplateName,
		Type:         w.ScheduleType,
		Status:       w.Status,
		LastRun:      w.LastRun,
	}
	if j.Status == "" {
		j.Status = StatusActive
	}
	if w.CreatedAt != nil {
		j.CreatedAt = *w.CreatedAt
	}
	if j.Type != TypeNow {
		j.Rule = decodeLenient(j.Type, w.ScheduleData)
	}
	return nil
}

// DecodeList decodes a stored collection record by record. Records with bad
// scheduleData are kept with an invalid rule; records that are not readable
// jobs at all are kept as unreadable jobs and also reported as errors.
func DecodeList(data []byte) ([]Job, []error) {
	if isNull(data) {
		return nil, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, []error{fmt.Errorf("decode job collection: %w", err)}
	}
	out := make([]Job, 0, len(raws))
	var errs []error
	for i, raw := range raws {
		j, err := DecodeRecord(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
		}
		out = append(out, j)
	}
	return out, errs
}

// DecodeRecord decodes one stored record. When the record is not a readable
// job the returned Job keeps the raw bytes, so saving the collection again
// does not lose it.
func DecodeRecord(raw []byte) (Job, error) {
	var j Job
	err := json.Unmarshal(raw, &j)
	if err == nil && j.ID != "" {
		return j, nil
	}
	if err == nil {
		err = errors.New("missing id")
	}
	return unreadable(raw, err), err
}

func unreadable(raw []byte, cause error) Job {
	var head struct {
		ID           json.RawMessage `json:"id"`
		ScheduleType json.RawMessage `json:"scheduleType"`
	}
	_ = json.Unmarshal(raw, &head)
	j := Job{Status: StatusActive, raw: append([]byte(nil), raw...)}
	if len(head.ID) > 0 {
		_ = json.Unmarshal(head.ID, &j.ID)
	}
	if len(head.ScheduleType) > 0 {
		_ = json.Unmarshal(head.ScheduleType, &j.Type)
	}
	j.Rule = invalidRule{typ: j.Type, err: fmt.Errorf("%w: unreadable record: %v", ErrValidation, cause)}
	return j
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
