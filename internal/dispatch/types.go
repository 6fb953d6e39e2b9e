package dispatch

import (
	"errors"
	"time"

	"wablast/internal/job"
)

var (
	ErrTransportUnavailable = errors.New("transport unavailable")
	ErrCheckUnsupported     = errors.New("transport cannot check registrations")
)

// Range is an inclusive delay window.
type Range struct {
	Min time.Duration
	Max time.Duration
}

type Config struct {
	BroadcastDelay      Range
	ValidateDelay       Range
	CountryCode         string // replaces a leading local trunk 0
	ContactSuffix       string // appended when the address has no '@'
	MaxConcurrentPasses int
	SendsPerMinute      int // 0 disables the limiter
	SendTimeout         time.Duration
}

// withDefaults fills addressing and concurrency zero values. Zero delay
// ranges are kept: they disable pacing.
func (c Config) withDefaults() Config {
	if c.CountryCode == "" {
		c.CountryCode = "62"
	}
	if c.ContactSuffix == "" {
		c.ContactSuffix = "@s.whatsapp.net"
	}
	if c.MaxConcurrentPasses <= 0 {
		c.MaxConcurrentPasses = 1
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 30 * time.Second
	}
	if c.BroadcastDelay.Max < c.BroadcastDelay.Min {
		c.BroadcastDelay.Max = c.BroadcastDelay.Min
	}
	if c.ValidateDelay.Max < c.ValidateDelay.Min {
		c.ValidateDelay.Max = c.ValidateDelay.Min
	}
	return c
}

// DefaultConfig matches the provider-friendly pacing: 5-10s between broadcast
// sends, 2-5s between validation checks.
func DefaultConfig() Config {
	return Config{
		BroadcastDelay:      Range{Min: 5 * time.Second, Max: 10 * time.Second},
		ValidateDelay:       Range{Min: 2 * time.Second, Max: 5 * time.Second},
		CountryCode:         "62",
		ContactSuffix:       "@s.whatsapp.net",
		MaxConcurrentPasses: 1,
		SendsPerMinute:      20,
		SendTimeout:         30 * time.Second,
	}
}

const (
	StatusSent   = "Terkirim"
	StatusFailed = "Gagal"
)

type RecipientStatus struct {
	Recipient string `json:"recipient"`
	Address   string `json:"address"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// Result of one delivery pass. Statuses follow recipient order and stop at
// the first recipient not attempted when the pass is interrupted.
type Result struct {
	Outcome    job.Outcome       `json:"outcome"`
	Sent       int               `json:"sent"`
	Failed     int               `json:"failed"`
	Skipped    int               `json:"skipped,omitempty"`
	Error      string            `json:"error,omitempty"`
	Statuses   []RecipientStatus `json:"statuses"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt"`
}

const (
	CheckActive       = "Aktif"
	CheckUnregistered = "Tidak Terdaftar"
	CheckError        = "Error"
)

type CheckStatus struct {
	Number  string `json:"number"`
	Address string `json:"address"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// Progress is called after every validation check.
type Progress func(st CheckStatus, done, total int)
