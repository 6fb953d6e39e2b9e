// Package job defines the persisted broadcast job record.
//
// A Job carries its recipient list, the message body and a recurrence Rule.
// Rule is a tagged union keyed by ScheduleType: exactly one concrete type per
// variant (Daily, Weekly, Monthly, Once); "now" jobs carry no rule and are
// never persisted.
//
// The on-disk/wire form keeps the dashboard's historical shape:
//
//	{"id": "...", "scheduleType": "weekly", "scheduleData": {"time": "09:00", "days": [1,3,5]}, ...}
//
// Decoding a stored collection is lenient per record: a malformed
// scheduleData becomes an invalid rule that keeps its raw bytes and reports
// the problem from Validate, so one bad record never hides the others.
package job
