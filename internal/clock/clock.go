// Package clock provides the time source used by the scheduler: the system
// clock corrected by an offset obtained from an online time service.
package clock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	logx "wablast/pkg/logx"
)

// Clock is the minimal time source consumed by the scheduler and lifecycle.
type Clock interface {
	Now() time.Time
}

// System is the uncorrected wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Config controls the synced clock.
type Config struct {
	URL      string        // world-time endpoint returning {"datetime": RFC3339} or {"unixtime": n}
	Interval time.Duration // resync period (default 1h)
	Timeout  time.Duration // per-request timeout (default 10s)
	Timezone string        // reported in Status only
}

// Status describes the current correction, as exposed on /api/time-status.
type Status struct {
	SystemTime    time.Time `json:"systemTime"`
	SyncedTime    time.Time `json:"ntpTime"`
	Offset        int64     `json:"timeOffset"` // milliseconds
	OffsetSeconds int64     `json:"offsetSeconds"`
	LastSync      time.Time `json:"lastSyncTime"`
	Timezone      string    `json:"timezone"`
}

// Synced is a Clock whose Now() is system time plus the last measured offset.
// A failed sync keeps the previous offset.
type Synced struct {
	cfg  Config
	log  logx.Logger
	http *http.Client
	now  func() time.Time

	mu       sync.RWMutex
	offset   time.Duration
	lastSync time.Time
}

func NewSynced(cfg Config, log logx.Logger) *Synced {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Synced{
		cfg:      cfg,
		log:      log,
		http:     &http.Client{Timeout: cfg.Timeout},
		now:      time.Now,
		lastSync: time.Now(),
	}
}

func (c *Synced) Now() time.Time {
	c.mu.RLock()
	off := c.offset
	c.mu.RUnlock()
	return c.now().Add(off)
}

// Enabled reports whether a sync endpoint is configured.
func (c *Synced) Enabled() bool { return strings.TrimSpace(c.cfg.URL) != "" }

// Offset returns the current correction.
func (c *Synced) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// SetOffset overrides the correction. Used by tests and by operators pinning
// a known skew.
func (c *Synced) SetOffset(d time.Duration) {
	c.mu.Lock()
	c.offset = d
	c.lastSync = c.now()
	c.mu.Unlock()
}

func (c *Synced) Status() Status {
	c.mu.RLock()
	off := c.offset
	last := c.lastSync
	c.mu.RUnlock()
	sys := c.now()
	return Status{
		SystemTime:    sys,
		SyncedTime:    sys.Add(off),
		Offset:        off.Milliseconds(),
		OffsetSeconds: int64(off.Round(time.Second) / time.Second),
		LastSync:      last,
		Timezone:      c.cfg.Timezone,
	}
}

type worldTime struct {
	Datetime string `json:"datetime"`
	Unixtime int64  `json:"unixtime"`
}

// Sync measures the offset against the configured endpoint once.
func (c *Synced) Sync(ctx context.Context) error {
	url := strings.TrimSpace(c.cfg.URL)
	if url == "" {
		return errors.New("clock: sync url not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return err
	}
	sent := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("clock: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("clock: fetch: unexpected status %d", resp.StatusCode)
	}
	var wt worldTime
	if err := json.NewDecoder(resp.Body).Decode(&wt); err != nil {
		return fmt.Errorf("clock: decode: %w", err)
	}
	var remote time.Time
	switch {
	case wt.Datetime != "":
		remote, err = time.Parse(time.RFC3339Nano, wt.Datetime)
		if err != nil {
			return fmt.Errorf("clock: parse datetime %q: %w", wt.Datetime, err)
		}
	case wt.Unixtime > 0:
		remote = time.Unix(wt.Unixtime, 0)
	default:
		return errors.New("clock: response carries no time")
	}

	// Compare against the midpoint of the round trip.
	recv := c.now()
	local := sent.Add(recv.Sub(sent) / 2)
	off := remote.Sub(local)

	c.mu.Lock()
	c.offset = off
	c.lastSync = recv
	c.mu.Unlock()

	if secs := off.Round(time.Second); secs != 0 {
		c.log.Info("clock synced; system clock is skewed", logx.Duration("offset", off))
	} else {
		c.log.Debug("clock synced", logx.Duration("offset", off))
	}
	return nil
}

// Run syncs immediately and then every Interval until ctx is done.
func (c *Synced) Run(ctx context.Context) error {
	if !c.Enabled() {
		c.log.Info("clock sync disabled; using system clock")
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(c.cfg.Interval)
	defer t.Stop()
	for {
		if err := c.Sync(ctx); err != nil && ctx.Err() == nil {
			c.log.Warn("clock sync failed; keeping previous offset", logx.Err(err), logx.Duration("offset", c.Offset()))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
