// Package scheduler owns the live trigger registry: at most one trigger per
// job id, each a versioned timer handle.
//
// Recurring jobs (daily, weekly, monthly) are compiled to 5-field cron specs
// and parsed with robfig/cron; after every fire the trigger re-arms itself
// from Schedule.Next evaluated against the injected clock, so fire times track
// the time-synced clock rather than the host clock. Once jobs are a single
// deferred timer that removes itself when it fires.
//
// A paused job is registered as a suspended trigger: it keeps its rule for a
// later resume but holds no timer. Every callback checks its version against
// the registry, so a disarmed or replaced trigger can never fire again.
package scheduler
