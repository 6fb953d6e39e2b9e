// Package transport is the delivery contract used by the dispatch engine,
// plus the drivers that implement it.
package transport

import (
	"context"
	"errors"
	"time"
)

// ErrNotConnected is returned by Send when the session is down.
var ErrNotConnected = errors.New("transport not connected")

// Transport delivers one message to one address.
type Transport interface {
	Send(ctx context.Context, address, body string) error
	Connected() bool
}

// Checker is implemented by transports that can tell whether an address is
// a registered account.
type Checker interface {
	IsRegistered(ctx context.Context, address string) (bool, error)
}

type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GroupLister is implemented by transports that can list joined groups.
type GroupLister interface {
	Groups(ctx context.Context) ([]Group, error)
}

type EventKind string

const (
	EventConnected    EventKind = "connected"
	EventDisconnected EventKind = "disconnected"
)

type Event struct {
	Kind   EventKind
	Time   time.Time
	Detail string
}

// Notifier is implemented by transports that report session changes.
type Notifier interface {
	Events() <-chan Event
}

// Runner is implemented by transports with a background loop (health polling).
type Runner interface {
	Run(ctx context.Context) error
}

// Config selects and configures a driver.
//
// Driver values:
//   - "gateway": HTTP WhatsApp gateway
//   - "dryrun": logs every send and reports success
type Config struct {
	Driver         string
	BaseURL        string
	Username       string
	Password       string
	Timeout        time.Duration
	HealthInterval time.Duration
	HealthPath     string
}
