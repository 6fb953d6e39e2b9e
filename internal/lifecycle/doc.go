// Package lifecycle orchestrates job create, list, cancel, pause, resume and
// reconciliation over the job store, the trigger registry and the dispatch
// engine.
//
// Store read-modify-write cycles are serialized by the manager's mutex; the
// trigger registry is the authoritative answer to "is this job running".
// Dispatch passes never hold the mutex: a pass loads the job, delivers
// unlocked, then re-acquires the mutex to record lastRun (or delete a
// finished once job).
package lifecycle
