package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"wablast/internal/clock"
	"wablast/internal/job"
	logx "wablast/pkg/logx"
)

type Service struct {
	mu sync.Mutex

	log    logx.Logger
	cfg    Config
	loc    *time.Location
	clock  clock.Clock
	parser cron.Parser

	ctx      context.Context
	triggers map[string]*trigger
	seq      uint64
	// lastFired survives Clear so a reconcile cannot re-arm an occurrence
	// that already fired when the synced clock moved backwards.
	lastFired map[string]time.Time
}

func New(cfg Config, clk clock.Clock, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if clk == nil {
		clk = clock.System{}
	}
	s := &Service{
		cfg:       cfg,
		log:       log,
		clock:     clk,
		parser:    cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		ctx:       context.Background(),
		triggers:  map[string]*trigger{},
		lastFired: map[string]time.Time{},
	}
	s.loc = s.loadLocation(cfg.Timezone)
	return s
}

// Start sets the context handed to fired handlers.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	n := len(s.triggers)
	loc := s.loc
	s.mu.Unlock()
	s.log.Info("service started", logx.String("tz", loc.String()), logx.Int("triggers", n))
}

// Stop disarms every trigger.
func (s *Service) Stop() {
	n := s.Clear()
	s.log.Info("service stopped", logx.Int("disarmed", n))
}

func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

// Apply swaps the config. A timezone change rebuilds every trigger in the new zone.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	newTZ := strings.TrimSpace(cfg.Timezone)
	s.cfg = cfg
	if oldTZ == newTZ {
		return
	}
	s.loc = s.loadLocation(newTZ)

	olds := s.triggers
	s.triggers = map[string]*trigger{}
	for id, t := range olds {
		t.stop()
		if _, err := s.armLocked(t.job, t.fn); err != nil {
			s.log.Warn("trigger dropped on timezone change", logx.String("id", id), logx.Err(err))
		}
	}
	s.log.Info("timezone changed; triggers rebuilt", logx.String("tz", s.loc.String()), logx.Int("triggers", len(s.triggers)))
}

// Arm registers the trigger for j, replacing any existing trigger for j.ID.
// Paused jobs are registered suspended. It returns the next fire time (zero
// when suspended).
func (s *Service) Arm(j job.Job, fn Handler) (time.Time, error) {
	if strings.TrimSpace(j.ID) == "" {
		return time.Time{}, fmt.Errorf("%w: job id required", job.ErrValidation)
	}
	if fn == nil {
		return time.Time{}, fmt.Errorf("%w: handler required", job.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmLocked(j.ID)
	return s.armLocked(j, fn)
}

// Disarm removes the trigger for id and forgets its fire history. In-flight
// handlers are not interrupted.
func (s *Service) Disarm(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lastFired, id)
	return s.disarmLocked(id)
}

// Clear disarms every trigger and returns how many were registered.
func (s *Service) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.triggers)
	for id := range s.triggers {
		s.disarmLocked(id)
	}
	return n
}

// Next reports the next fire time for id.
func (s *Service) Next(id string) (time.Time, State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.triggers[id]
	if !ok {
		return time.Time{}, NotArmed
	}
	if t.paused() {
		return time.Time{}, Suspended
	}
	return t.next, Armed
}

// Armed reports whether id has a live (non-suspended) trigger.
func (s *Service) Armed(id string) bool {
	_, st := s.Next(id)
	return st == Armed
}

// Len returns the number of live (non-suspended) triggers.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.triggers {
		if !t.paused() {
			n++
		}
	}
	return n
}

func (s *Service) Snapshot() []TriggerInfo {
	s.mu.Lock()
	out := make([]TriggerInfo, 0, len(s.triggers))
	for id, t := range s.triggers {
		it := TriggerInfo{ID: id, Type: t.job.Type, Spec: t.spec, State: Armed, Next: t.next, Fires: t.fires}
		if t.paused() {
			it.State = Suspended
			it.Next = time.Time{}
		}
		out = append(out, it)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Service) disarmLocked(id string) bool {
	t, ok := s.triggers[id]
	if !ok {
		return false
	}
	t.stop()
	delete(s.triggers, id)
	return true
}

func (s *Service) armLocked(j job.Job, fn Handler) (time.Time, error) {
	if err := j.Validate(); err != nil {
		return time.Time{}, err
	}
	now := s.clock.Now().In(s.loc)
	base := now
	if last, ok := s.lastFired[j.ID]; ok && base.Before(last) {
		base = last
	}
	t := &trigger{job: j.Clone(), fn: fn}

	switch r := j.Rule.(type) {
	case job.Once:
		at, err := r.At(s.loc)
		if err != nil {
			return time.Time{}, err
		}
		if !at.After(base) {
			return time.Time{}, fmt.Errorf("%w: %s", ErrExpired, at.Format(time.RFC3339))
		}
		t.next = at
	case job.Recurring:
		spec, err := r.CronSpec()
		if err != nil {
			return time.Time{}, err
		}
		sched, err := s.parser.Parse(spec)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: cron %q: %v", job.ErrValidation, spec, err)
		}
		t.spec = spec
		t.sched = sched
		t.next = sched.Next(base)
		if t.next.IsZero() {
			return time.Time{}, fmt.Errorf("%w: %q never fires", job.ErrValidation, spec)
		}
	default:
		return time.Time{}, fmt.Errorf("%w: schedule type %s has no trigger", job.ErrValidation, j.Type)
	}

	s.seq++
	t.ver = s.seq
	s.triggers[j.ID] = t

	if t.paused() {
		s.log.Debug("trigger suspended", logx.String("id", j.ID), logx.String("type", string(j.Type)))
		return time.Time{}, nil
	}
	s.scheduleLocked(j.ID, t, now)
	if s.log.Enabled(logx.LevelDebug) {
		s.log.Debug("trigger armed",
			logx.String("id", j.ID),
			logx.String("type", string(j.Type)),
			logx.String("spec", t.spec),
			logx.String("next", s.previewLocked(t, 3)),
		)
	}
	return t.next, nil
}

func (s *Service) scheduleLocked(id string, t *trigger, now time.Time) {
	delay := t.next.Sub(now)
	if delay < 0 {
		delay = 0
	}
	ver := t.ver
	t.timer = time.AfterFunc(delay, func() { s.fire(id, ver) })
}

func (s *Service) fire(id string, ver uint64) {
	s.mu.Lock()
	t, ok := s.triggers[id]
	if !ok || t.ver != ver || t.paused() {
		s.mu.Unlock()
		return
	}
	at := t.next
	fn := t.fn
	ctx := s.ctx
	t.fires++
	t.timer = nil
	s.lastFired[id] = at

	if t.sched == nil {
		delete(s.triggers, id)
	} else {
		// Never step backwards: if the synced clock lags the timer, base the
		// next occurrence on the one that just fired.
		now := s.clock.Now().In(s.loc)
		base := now
		if base.Before(at) {
			base = at
		}
		t.next = t.sched.Next(base)
		s.scheduleLocked(id, t, now)
	}
	s.mu.Unlock()

	s.log.Debug("trigger fired", logx.String("id", id), logx.Time("at", at))
	fn(ctx, id, at)
}

// previewLocked lists upcoming fire times for debug logging.
func (s *Service) previewLocked(t *trigger, n int) string {
	if t.sched == nil {
		return t.next.Format("2006-01-02 15:04:05")
	}
	var b strings.Builder
	next := t.next
	for i := 0; i < n && !next.IsZero(); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(next.Format("2006-01-02 15:04:05"))
		next = t.sched.Next(next)
	}
	return b.String()
}

func (s *Service) loadLocation(tz string) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
