package job

import (
	"strconv"
	"strings"
)

const (
	describeInvalid  = "Error: Format jadwal tidak valid"
	describeNoTarget = "Tidak ada target"
)

var weekdayNames = [7]string{"Min", "Sen", "Sel", "Rab", "Kam", "Jum", "Sab"}

func (r Daily) Describe() string { return "Setiap Hari, " + r.Time }

func (r Weekly) Describe() string {
	names := make([]string, 0, len(r.Days))
	for _, d := range r.Days {
		if d = sunday(d); d >= 0 && d < len(weekdayNames) {
			names = append(names, weekdayNames[d])
		}
	}
	return "Mingguan (" + strings.Join(names, ",") + "), " + r.Time
}

func (r Monthly) Describe() string {
	return "Bulanan (Tgl " + strconv.Itoa(r.Date) + "), " + r.Time
}

func (r Once) Describe() string { return "Sekali (" + r.Date + "), " + r.Time }

// ScheduleString is the human summary of the recurrence.
func (j Job) ScheduleString() string {
	if j.Type == TypeNow {
		return "Sekarang"
	}
	if j.Rule == nil || j.Rule.Validate() != nil {
		return describeInvalid
	}
	return j.Rule.Describe()
}

// RecipientString summarises groups (by name when known) then the contact count.
func (j Job) RecipientString(groupNames map[string]string) string {
	parts := make([]string, 0, len(j.Groups)+1)
	for _, g := range j.Groups {
		name := groupNames[g]
		if name == "" {
			name = g
		}
		parts = append(parts, "Grup: "+name)
	}
	if n := len(j.Targets); n > 0 {
		parts = append(parts, strconv.Itoa(n)+" Kontak")
	}
	if len(parts) == 0 {
		return describeNoTarget
	}
	return strings.Join(parts, ", ")
}
