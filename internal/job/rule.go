package job

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rule is the recurrence data of a scheduled job. Exactly one concrete type
// exists per ScheduleType.
type Rule interface {
	Type() ScheduleType
	Validate() error
	Describe() string
}

// Recurring rules map onto a 5-field cron spec.
type Recurring interface {
	Rule
	CronSpec() (string, error)
}

type Daily struct {
	Time string `json:"time"`
}

type Weekly struct {
	Time string `json:"time"`
	Days []int  `json:"days"`
}

type Monthly struct {
	Time string `json:"time"`
	Date int    `json:"date"`
}

type Once struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

func (Daily) Type() ScheduleType   { return TypeDaily }
func (Weekly) Type() ScheduleType  { return TypeWeekly }
func (Monthly) Type() ScheduleType { return TypeMonthly }
func (Once) Type() ScheduleType    { return TypeOnce }

func (r Daily) Validate() error {
	_, _, err := ParseClock(r.Time)
	return err
}

func (r Weekly) Validate() error {
	if _, _, err := ParseClock(r.Time); err != nil {
		return err
	}
	if len(r.Days) == 0 {
		return fmt.Errorf("%w: weekly schedule needs at least one day", ErrValidation)
	}
	for _, d := range r.Days {
		if d < 0 || d > 7 {
			return fmt.Errorf("%w: weekday %d out of range 0-7", ErrValidation, d)
		}
	}
	return nil
}

// sunday folds the cron alias 7 onto 0.
func sunday(d int) int {
	if d == 7 {
		return 0
	}
	return d
}

func (r Monthly) Validate() error {
	if _, _, err := ParseClock(r.Time); err != nil {
		return err
	}
	if r.Date < 1 || r.Date > 31 {
		return fmt.Errorf("%w: day of month %d out of range 1-31", ErrValidation, r.Date)
	}
	return nil
}

func (r Once) Validate() error {
	_, err := r.At(time.UTC)
	return err
}

func (r Daily) CronSpec() (string, error) {
	h, m, err := ParseClock(r.Time)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", m, h), nil
}

func (r Weekly) CronSpec() (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	h, m, _ := ParseClock(r.Time)
	days := make([]string, len(r.Days))
	for i, d := range r.Days {
		days[i] = strconv.Itoa(sunday(d))
	}
	return fmt.Sprintf("%d %d * * %s", m, h, strings.Join(days, ",")), nil
}

func (r Monthly) CronSpec() (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	h, m, _ := ParseClock(r.Time)
	return fmt.Sprintf("%d %d %d * *", m, h, r.Date), nil
}

// At resolves the one-shot instant in loc.
func (r Once) At(loc *time.Location) (time.Time, error) {
	h, m, err := ParseClock(r.Time)
	if err != nil {
		return time.Time{}, err
	}
	d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(r.Date), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q (want YYYY-MM-DD)", ErrValidation, r.Date)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, loc), nil
}

// ParseClock parses "HH:MM" (hour may be a single digit).
func ParseClock(s string) (hour, minute int, err error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(ms) != 2 || len(hs) == 0 || len(hs) > 2 {
		return 0, 0, fmt.Errorf("%w: invalid time %q (want HH:MM)", ErrValidation, s)
	}
	hour, err1 := strconv.Atoi(hs)
	minute, err2 := strconv.Atoi(ms)
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: invalid time %q (want HH:MM)", ErrValidation, s)
	}
	return hour, minute, nil
}

// invalidRule keeps undecodable scheduleData so the record survives a
// load/save round trip and is reported instead of armed.
type invalidRule struct {
	typ ScheduleType
	raw json.RawMessage
	err error
}

func (r invalidRule) Type() ScheduleType { return r.typ }
func (r invalidRule) Validate() error    { return r.err }
func (r invalidRule) Describe() string   { return describeInvalid }

func (r invalidRule) MarshalJSON() ([]byte, error) {
	if len(r.raw) == 0 {
		return []byte("null"), nil
	}
	return r.raw, nil
}

// IsInvalid reports whether r could not be decoded.
func IsInvalid(r Rule) bool {
	_, ok := r.(invalidRule)
	return ok
}

// DecodeRule decodes scheduleData for t strictly. "now" yields a nil rule.
func DecodeRule(t ScheduleType, raw json.RawMessage) (Rule, error) {
	if t == TypeNow {
		return nil, nil
	}
	if isNull(raw) {
		return nil, fmt.Errorf("%w: scheduleData is required for %s", ErrValidation, t)
	}
	switch t {
	case TypeDaily:
		var r Daily
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("%w: daily scheduleData: %v", ErrValidation, err)
		}
		return r, nil
	case TypeWeekly:
		var w struct {
			Time string          `json:"time"`
			Days json.RawMessage `json:"days"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("%w: weekly scheduleData: %v", ErrValidation, err)
		}
		days, err := decodeDays(w.Days)
		if err != nil {
			return nil, err
		}
		return Weekly{Time: w.Time, Days: days}, nil
	case TypeMonthly:
		var m struct {
			Time string          `json:"time"`
			Date json.RawMessage `json:"date"`
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("%w: monthly scheduleData: %v", ErrValidation, err)
		}
		date, err := decodeInt(m.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: monthly date: %v", ErrValidation, err)
		}
		return Monthly{Time: m.Time, Date: date}, nil
	case TypeOnce:
		var r Once
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("%w: once scheduleData: %v", ErrValidation, err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("%w: unknown schedule type %q", ErrValidation, t)
	}
}

// decodeLenient never fails; undecodable data becomes an invalid rule.
func decodeLenient(t ScheduleType, raw json.RawMessage) Rule {
	r, err := DecodeRule(t, raw)
	if err != nil {
		return invalidRule{typ: t, raw: append(json.RawMessage(nil), raw...), err: err}
	}
	return r
}

func decodeDays(raw json.RawMessage) ([]int, error) {
	if isNull(raw) {
		return nil, nil
	}
	var ints []int
	if err := json.Unmarshal(raw, &ints); err == nil {
		for i, d := range ints {
			ints[i] = sunday(d)
		}
		return ints, nil
	}
	var strs []string
	if err := json.Unmarshal(raw, &strs); err != nil {
		var joined string
		if err := json.Unmarshal(raw, &joined); err != nil {
			return nil, fmt.Errorf("%w: weekly days must be a list of 0-7", ErrValidation)
		}
		strs = strings.Split(joined, ",")
	}
	out := make([]int, 0, len(strs))
	for _, s := range strs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		d, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid weekday %q", ErrValidation, s)
		}
		out = append(out, sunday(d))
	}
	return out, nil
}

func decodeInt(raw json.RawMessage) (int, error) {
	if isNull(raw) {
		return 0, errors.New("missing")
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, errors.New("not a number")
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return n, nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
