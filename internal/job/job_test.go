package job

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewValidates(t *testing.T) {
	now := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		spec Spec
		ok   bool
	}{
		{"daily ok", Spec{Targets: []string{"0812"}, Message: "hi", Type: TypeDaily, Rule: Daily{Time: "08:00"}}, true},
		{"now without rule", Spec{Groups: []string{"g@g.us"}, Message: "hi", Type: TypeNow}, true},
		{"no recipients", Spec{Targets: []string{"  "}, Message: "hi", Type: TypeDaily, Rule: Daily{Time: "08:00"}}, false},
		{"blank message", Spec{Targets: []string{"0812"}, Message: " ", Type: TypeDaily, Rule: Daily{Time: "08:00"}}, false},
		{"bad time", Spec{Targets: []string{"0812"}, Message: "hi", Type: TypeDaily, Rule: Daily{Time: "25:00"}}, false},
		{"weekly no days", Spec{Targets: []string{"0812"}, Message: "hi", Type: TypeWeekly, Rule: Weekly{Time: "09:00"}}, false},
		{"weekly day 7 is sunday", Spec{Targets: []string{"0812"}, Message: "hi", Type: TypeWeekly, Rule: Weekly{Time: "09:00", Days: []int{7}}}, true},
		{"weekly day 8", Spec{Targets: []string{"0812"}, Message: "hi", Type: TypeWeekly, Rule: Weekly{Time: "09:00", Days: []int{8}}}, false},
		{"monthly 32", Spec{Targets: []string{"0812"}, Message: "hi", Type: TypeMonthly, Rule: Monthly{Time: "09:00", Date: 32}}, false},
		{"once bad date", Spec{Targets: []string{"0812"}, Message: "hi", Type: TypeOnce, Rule: Once{Date: "20-10-2026", Time: "09:00"}}, false},
		{"rule mismatch", Spec{Targets: []string{"0812"}, Message: "hi", Type: TypeWeekly, Rule: Daily{Time: "09:00"}}, false},
		{"unknown type", Spec{Targets: []string{"0812"}, Message: "hi", Type: "hourly"}, false},
	}
	for _, tc := range cases {
		j, err := New("id-1", tc.spec, now)
		if tc.ok {
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", tc.name, err)
			}
			if j.Status != StatusActive || j.LastRun != nil || !j.CreatedAt.Equal(now) {
				t.Fatalf("%s: bad defaults: %+v", tc.name, j)
			}
			continue
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", tc.name, err)
		}
	}
}

func TestCronSpec(t *testing.T) {
	cases := []struct {
		rule Recurring
		want string
	}{
		{Daily{Time: "08:00"}, "0 8 * * *"},
		{Weekly{Time: "9:05", Days: []int{1, 3, 5}}, "5 9 * * 1,3,5"},
		{Weekly{Time: "9:05", Days: []int{7, 6}}, "5 9 * * 0,6"},
		{Monthly{Time: "10:30", Date: 15}, "30 10 15 * *"},
	}
	for _, tc := range cases {
		got, err := tc.rule.CronSpec()
		if err != nil {
			t.Fatalf("%T: %v", tc.rule, err)
		}
		if got != tc.want {
			t.Fatalf("%T: got %q want %q", tc.rule, got, tc.want)
		}
	}
}

func TestOnceAt(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		t.Skip("tzdata not available")
	}
	at, err := Once{Date: "2026-10-20", Time: "14:30"}.At(loc)
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	want := time.Date(2026, 10, 20, 7, 30, 0, 0, time.UTC)
	if !at.Equal(want) {
		t.Fatalf("got %v want %v", at.UTC(), want)
	}
}

func TestDecodeRuleLenientForms(t *testing.T) {
	for _, raw := range []string{
		`{"time":"09:00","days":[1,3,5]}`,
		`{"time":"09:00","days":["1","3","5"]}`,
		`{"time":"09:00","days":"1,3,5"}`,
	} {
		r, err := DecodeRule(TypeWeekly, json.RawMessage(raw))
		if err != nil {
			t.Fatalf("%s: %v", raw, err)
		}
		w := r.(Weekly)
		if len(w.Days) != 3 || w.Days[0] != 1 || w.Days[2] != 5 {
			t.Fatalf("%s: days=%v", raw, w.Days)
		}
	}
	for _, raw := range []string{`{"time":"09:00","days":[7]}`, `{"time":"09:00","days":"7"}`} {
		r, err := DecodeRule(TypeWeekly, json.RawMessage(raw))
		if err != nil {
			t.Fatalf("%s: %v", raw, err)
		}
		if w := r.(Weekly); len(w.Days) != 1 || w.Days[0] != 0 {
			t.Fatalf("%s: day 7 not folded onto sunday: %v", raw, w.Days)
		}
		if got := r.Describe(); got != "Mingguan (Min), 09:00" {
			t.Fatalf("%s: describe %q", raw, got)
		}
	}
	r, err := DecodeRule(TypeMonthly, json.RawMessage(`{"time":"10:00","date":"15"}`))
	if err != nil || r.(Monthly).Date != 15 {
		t.Fatalf("monthly string date: %v %v", r, err)
	}
	if _, err := DecodeRule(TypeMonthly, json.RawMessage(`{"time":"10:00","date":"abc"}`)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if r, err := DecodeRule(TypeNow, nil); r != nil || err != nil {
		t.Fatalf("now should have no rule: %v %v", r, err)
	}
}

func TestDecodeListKeepsInvalidRecords(t *testing.T) {
	data := `[
		{"id":"a","targets":["0812"],"message":"hi","scheduleType":"daily","scheduleData":{"time":"08:00"}},
		{"id":"b","targets":["0812"],"message":"hi","scheduleType":"monthly","scheduleData":{"time":"08:00","date":"abc"},"status":"Paused"},
		42,
		{"targets":["0812"],"message":"no id","scheduleType":"daily","scheduleData":{"time":"08:00"}}
	]`
	jobs, errs := DecodeList([]byte(data))
	if len(jobs) != 4 {
		t.Fatalf("expected 4 jobs, got %d", len(jobs))
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 record errors, got %v", errs)
	}
	for _, i := range []int{2, 3} {
		if !jobs[i].Unreadable() || !errors.Is(jobs[i].Validate(), ErrValidation) {
			t.Fatalf("record %d should be kept unreadable: %+v", i, jobs[i])
		}
	}
	all, err := json.Marshal(jobs)
	if err != nil {
		t.Fatalf("marshal collection: %v", err)
	}
	if !strings.Contains(string(all), `,42,`) || !strings.Contains(string(all), `"message":"no id"`) {
		t.Fatalf("unreadable records not written back: %s", all)
	}
	if jobs[0].Status != StatusActive {
		t.Fatalf("empty status should decode as Active, got %q", jobs[0].Status)
	}
	bad := jobs[1]
	if !IsInvalid(bad.Rule) || bad.Validate() == nil {
		t.Fatalf("expected invalid rule, got %#v", bad.Rule)
	}
	if bad.ScheduleString() != "Error: Format jadwal tidak valid" {
		t.Fatalf("unexpected description %q", bad.ScheduleString())
	}

	out, err := json.Marshal(bad)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"scheduleData":{"time":"08:00","date":"abc"}`) {
		t.Fatalf("raw scheduleData not preserved: %s", out)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	j := Job{
		ID:      "x",
		Targets: []string{"0812"},
		Message: "halo",
		Type:    TypeWeekly,
		Rule:    Weekly{Time: "09:00", Days: []int{1, 3}},
		Status:  StatusPaused,
		LastRun: &LastRun{Time: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), Status: OutcomeFailed, Sent: 1, Failed: 1, Error: "boom"},
	}
	b, err := json.Marshal(j)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Job
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Status != StatusPaused || got.LastRun == nil || got.LastRun.Error != "boom" {
		t.Fatalf("round trip lost fields: %+v", got)
	}
	if w, ok := got.Rule.(Weekly); !ok || len(w.Days) != 2 {
		t.Fatalf("rule lost: %#v", got.Rule)
	}
	if !strings.Contains(string(b), `"groups":[]`) {
		t.Fatalf("groups should encode as an empty list: %s", b)
	}
}

func TestDescriptions(t *testing.T) {
	w := Job{Type: TypeWeekly, Rule: Weekly{Time: "09:00", Days: []int{1, 3, 5}}}
	if got := w.ScheduleString(); got != "Mingguan (Sen,Rab,Jum), 09:00" {
		t.Fatalf("weekly: %q", got)
	}
	if got := (Job{Type: TypeDaily, Rule: Daily{Time: "08:00"}}).ScheduleString(); got != "Setiap Hari, 08:00" {
		t.Fatalf("daily: %q", got)
	}
	if got := (Job{Type: TypeMonthly, Rule: Monthly{Time: "10:00", Date: 15}}).ScheduleString(); got != "Bulanan (Tgl 15), 10:00" {
		t.Fatalf("monthly: %q", got)
	}
	if got := (Job{Type: TypeOnce, Rule: Once{Date: "2026-10-20", Time: "14:30"}}).ScheduleString(); got != "Sekali (2026-10-20), 14:30" {
		t.Fatalf("once: %q", got)
	}

	r := Job{Groups: []string{"123@g.us", "456@g.us"}, Targets: []string{"a", "b", "c"}}
	got := r.RecipientString(map[string]string{"123@g.us": "Keluarga"})
	if got != "Grup: Keluarga, Grup: 456@g.us, 3 Kontak" {
		t.Fatalf("recipients: %q", got)
	}
	if got := (Job{}).RecipientString(nil); got != "Tidak ada target" {
		t.Fatalf("empty recipients: %q", got)
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	j := Job{Targets: []string{"a"}, LastRun: &LastRun{Sent: 1}}
	cp := j.Clone()
	cp.Targets[0] = "b"
	cp.LastRun.Sent = 9
	if j.Targets[0] != "a" || j.LastRun.Sent != 1 {
		t.Fatalf("clone aliased the original")
	}
}

func TestDecodeRecordKeepsWhatItCanRead(t *testing.T) {
	raw := []byte(`{"id":"x","targets":"0812","message":"m","scheduleType":"daily","scheduleData":{"time":"08:00"}}`)
	j, err := DecodeRecord(raw)
	if err == nil {
		t.Fatalf("expected decode error for string targets")
	}
	if !j.Unreadable() || j.ID != "x" || j.Type != TypeDaily {
		t.Fatalf("unexpected unreadable job: %+v", j)
	}
	if j.ScheduleString() != "Error: Format jadwal tidak valid" {
		t.Fatalf("unexpected description %q", j.ScheduleString())
	}
	out, err := json.Marshal(j)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != string(raw) {
		t.Fatalf("raw record not preserved:\n got %s\nwant %s", out, raw)
	}
	if c := j.Clone(); !c.Unreadable() {
		t.Fatalf("clone dropped the raw record")
	}

	junk, err := DecodeRecord([]byte("not json"))
	if err == nil || !junk.Unreadable() {
		t.Fatalf("expected unreadable job for non-JSON bytes: %+v %v", junk, err)
	}
	if b, err := json.Marshal(junk); err != nil || string(b) != `"not json"` {
		t.Fatalf("non-JSON record should encode as a string: %s %v", b, err)
	}
}
