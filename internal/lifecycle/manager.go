package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"wablast/internal/clock"
	"wablast/internal/dispatch"
	"wablast/internal/eventbus"
	"wablast/internal/job"
	"wablast/internal/storage"
	"wablast/internal/task/scheduler"
	"wablast/internal/transport"
	logx "wablast/pkg/logx"
)

type Manager struct {
	mu sync.Mutex

	store    storage.Store
	triggers Triggers
	disp     Dispatcher
	groups   transport.GroupLister
	bus      eventbus.Bus
	clock    clock.Clock
	log      logx.Logger
	newID    func() string

	ctx context.Context
	wg  sync.WaitGroup
}

type Option func(*Manager)

// WithGroupLister resolves group ids to names in listings.
func WithGroupLister(gl transport.GroupLister) Option {
	return func(m *Manager) { m.groups = gl }
}

func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

func WithIDs(fn func() string) Option {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

func New(store storage.Store, triggers Triggers, disp Dispatcher, bus eventbus.Bus, log logx.Logger, opts ...Option) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	m := &Manager{
		store:    store,
		triggers: triggers,
		disp:     disp,
		bus:      bus,
		clock:    clock.System{},
		log:      log,
		newID:    uuid.NewString,
		ctx:      context.Background(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start sets the context used by background sends and validation runs.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()
}

// Wait blocks until background sends and validation runs finish or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Create validates and stores a job, then arms it. "now" jobs are delivered
// in the background and never stored.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	rule, err := job.DecodeRule(req.ScheduleType, req.ScheduleData)
	if err != nil {
		return CreateResult{}, err
	}
	now := m.clock.Now()
	j, err := job.New(m.newID(), job.Spec{
		Targets:      req.Targets,
		Groups:       req.Groups,
		Message:      req.Message,
		TemplateName: req.TemplateName,
		Type:         req.ScheduleType,
		Rule:         rule,
	}, now)
	if err != nil {
		return CreateResult{}, err
	}

	if j.Type == job.TypeNow {
		if !m.disp.Connected() {
			return CreateResult{}, dispatch.ErrTransportUnavailable
		}
		m.sendNow(j)
		return CreateResult{ID: j.ID, Immediate: true}, nil
	}
	if once, ok := j.Rule.(job.Once); ok {
		at, err := once.At(m.triggers.Location())
		if err != nil {
			return CreateResult{}, err
		}
		if !at.After(now) {
			return CreateResult{}, fmt.Errorf("%w: scheduled time %s has already passed", job.ErrValidation, at.Format("2006-01-02 15:04"))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	jobs, err := m.load(ctx)
	if err != nil {
		return CreateResult{}, err
	}
	jobs = append(jobs, j)
	if err := m.save(ctx, jobs); err != nil {
		return CreateResult{}, err
	}
	next, err := m.triggers.Arm(j, m.onFire)
	if err != nil {
		// Stored but not armed: surfaced so the divergence is visible.
		m.log.Error("job stored but trigger not armed", logx.String("id", j.ID), logx.Err(err))
	}
	m.log.Info("job created", logx.String("id", j.ID), logx.String("type", string(j.Type)), logx.String("schedule", j.ScheduleString()))
	m.publish(eventbus.JobCreated, JobEvent{ID: j.ID, Type: j.Type, Status: j.Status})
	return CreateResult{ID: j.ID, NextRun: next}, nil
}

// SendNow is Create for an immediate delivery.
func (m *Manager) SendNow(ctx context.Context, targets, groups []string, message string) (CreateResult, error) {
	return m.Create(ctx, CreateRequest{Targets: targets, Groups: groups, Message: message, ScheduleType: job.TypeNow})
}

// List returns every stored job with its derived descriptions.
func (m *Manager) List(ctx context.Context) ([]Detail, error) {
	m.mu.Lock()
	jobs, err := m.load(ctx)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	names := m.groupNames(ctx, jobs)
	out := make([]Detail, 0, len(jobs))
	for _, j := range jobs {
		next, st := m.triggers.Next(j.ID)
		out = append(out, Detail{
			Job:             j,
			RecipientString: j.RecipientString(names),
			ScheduleString:  j.ScheduleString(),
			Next:            next,
			State:           st,
		})
	}
	return out, nil
}

// Get returns one stored job.
func (m *Manager) Get(ctx context.Context, id string) (job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	jobs, err := m.load(ctx)
	if err != nil {
		return job.Job{}, err
	}
	i := indexOf(jobs, id)
	if i < 0 {
		return job.Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return jobs[i], nil
}

// Cancel disarms and removes a job.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs, err := m.load(ctx)
	if err != nil {
		return err
	}
	i := indexOf(jobs, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.triggers.Disarm(id)
	jobs = append(jobs[:i], jobs[i+1:]...)
	if err := m.save(ctx, jobs); err != nil {
		return err
	}
	m.log.Info("job cancelled", logx.String("id", id))
	m.publish(eventbus.JobDeleted, JobEvent{ID: id})
	return nil
}

// Pause suspends a job's trigger and stores status Paused. Pausing a paused
// job is a no-op success.
func (m *Manager) Pause(ctx context.Context, id string) error {
	return m.setStatus(ctx, id, job.StatusPaused)
}

// Resume stores status Active and re-arms from the stored definition.
func (m *Manager) Resume(ctx context.Context, id string) error {
	return m.setStatus(ctx, id, job.StatusActive)
}

func (m *Manager) setStatus(ctx context.Context, id string, status job.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs, err := m.load(ctx)
	if err != nil {
		return err
	}
	i := indexOf(jobs, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if jobs[i].Unreadable() {
		return fmt.Errorf("%w: job %s is unreadable; only cancel is allowed", job.ErrValidation, id)
	}
	changed := jobs[i].Status != status
	jobs[i].Status = status

	if status == job.StatusPaused {
		// Replace any live timer with a suspended trigger before the write.
		m.armLogged(jobs[i])
	}
	if changed {
		if err := m.save(ctx, jobs); err != nil {
			return err
		}
	}
	if status == job.StatusActive {
		m.armLogged(jobs[i])
	}
	if !changed {
		return nil
	}
	m.log.Info("job status changed", logx.String("id", id), logx.String("status", string(status)))
	m.publish(eventbus.JobUpdated, JobEvent{ID: id, Type: jobs[i].Type, Status: status})
	return nil
}

// Reconcile clears every trigger, reloads the store and re-arms each job
// according to its status. Malformed jobs and elapsed once jobs are skipped
// without affecting the others.
func (m *Manager) Reconcile(ctx context.Context) (ReconcileReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rep ReconcileReport
	rep.Cleared = m.triggers.Clear()

	jobs, err := m.load(ctx)
	if err != nil {
		return rep, err
	}
	for _, j := range jobs {
		if j.Type == job.TypeNow && !j.Unreadable() {
			continue
		}
		_, err := m.triggers.Arm(j, m.onFire)
		switch {
		case err == nil && j.Paused():
			rep.Paused++
		case err == nil:
			rep.Armed++
		case errors.Is(err, scheduler.ErrExpired):
			rep.Expired++
			m.log.Debug("once job elapsed; not armed", logx.String("id", j.ID))
		default:
			rep.Invalid = append(rep.Invalid, j.ID)
			m.log.Error("job skipped: invalid schedule", logx.String("id", j.ID), logx.String("type", string(j.Type)), logx.Err(err))
		}
	}
	m.log.Info("schedules reconciled",
		logx.Int("cleared", rep.Cleared),
		logx.Int("armed", rep.Armed),
		logx.Int("paused", rep.Paused),
		logx.Int("expired", rep.Expired),
		logx.Int("invalid", len(rep.Invalid)),
	)
	m.publish(eventbus.SchedulesReconciled, rep)
	return rep, nil
}

func (m *Manager) armLogged(j job.Job) {
	if _, err := m.triggers.Arm(j, m.onFire); err != nil {
		if errors.Is(err, scheduler.ErrExpired) {
			m.triggers.Disarm(j.ID)
			m.log.Info("once job elapsed; not armed", logx.String("id", j.ID))
			return
		}
		m.log.Error("trigger not armed", logx.String("id", j.ID), logx.Err(err))
	}
}

func (m *Manager) load(ctx context.Context) ([]job.Job, error) {
	jobs, err := m.store.Load(ctx)
	if err != nil {
		m.log.Error("job store load failed", logx.Err(err))
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	return jobs, nil
}

func (m *Manager) save(ctx context.Context, jobs []job.Job) error {
	if err := m.store.Save(ctx, jobs); err != nil {
		m.log.Error("job store save failed", logx.Err(err))
		return fmt.Errorf("save jobs: %w", err)
	}
	return nil
}

// Connected reports whether the delivery transport is up.
func (m *Manager) Connected() bool { return m.disp.Connected() }

// Groups lists the groups known to the transport.
func (m *Manager) Groups(ctx context.Context) ([]transport.Group, error) {
	if m.groups == nil {
		return nil, ErrGroupsUnsupported
	}
	if !m.disp.Connected() {
		return nil, dispatch.ErrTransportUnavailable
	}
	return m.groups.Groups(ctx)
}

func (m *Manager) publish(typ string, data any) {
	m.bus.Publish(eventbus.Event{Type: typ, Time: m.clock.Now(), Data: data})
}

func (m *Manager) groupNames(ctx context.Context, jobs []job.Job) map[string]string {
	if m.groups == nil {
		return nil
	}
	need := false
	for _, j := range jobs {
		if len(j.Groups) > 0 {
			need = true
			break
		}
	}
	if !need {
		return nil
	}
	gctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	groups, err := m.groups.Groups(gctx)
	if err != nil {
		m.log.Debug("group names unavailable", logx.Err(err))
		return nil
	}
	names := make(map[string]string, len(groups))
	for _, g := range groups {
		names[g.ID] = g.Name
	}
	return names
}

func indexOf(jobs []job.Job, id string) int {
	for i := range jobs {
		if jobs[i].ID == id {
			return i
		}
	}
	return -1
}
