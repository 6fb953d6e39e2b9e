// Package dispatch delivers one message to an ordered recipient list.
//
// A pass is strictly sequential: recipients are normalized, sent in list
// order, and separated by a randomized delay. One recipient's failure never
// aborts the pass; the only pass-level error is a transport that is not
// connected when the pass starts. Passes from different jobs share a
// weighted semaphore (width 1 by default, so passes are serialized) and a
// global per-minute send limiter.
package dispatch
