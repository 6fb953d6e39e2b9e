package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wablast/internal/dispatch"
	"wablast/internal/eventbus"
	"wablast/internal/job"
	logx "wablast/pkg/logx"
)

// onFire is the trigger handler for stored jobs.
func (m *Manager) onFire(ctx context.Context, id string, _ time.Time) {
	m.runPass(ctx, id)
}

// runPass delivers the current definition of id and records the outcome.
func (m *Manager) runPass(ctx context.Context, id string) {
	m.mu.Lock()
	jobs, err := m.load(ctx)
	m.mu.Unlock()
	if err != nil {
		return
	}
	i := indexOf(jobs, id)
	if i < 0 {
		m.log.Warn("fired job no longer stored", logx.String("id", id))
		return
	}
	j := jobs[i]
	if j.Paused() {
		return
	}

	log := m.log.With(logx.String("id", id), logx.String("type", string(j.Type)))
	log.Info("dispatch started", logx.Int("recipients", len(j.Recipients())))

	res, err := m.disp.Deliver(ctx, j.Recipients(), j.Message)
	if err != nil && ctx.Err() != nil {
		log.Info("dispatch not started; shutting down")
		return
	}
	lr := lastRunFrom(m.clock.Now(), len(j.Recipients()), res, err)
	if err != nil {
		log.Error("dispatch failed", logx.Err(err))
	} else if lr.Status == job.OutcomeFailed {
		log.Warn("dispatch finished with failures", logx.Int("sent", lr.Sent), logx.Int("failed", lr.Failed))
	} else {
		log.Info("dispatch finished", logx.Int("sent", lr.Sent))
	}
	// The outcome is stored even when shutdown interrupted the pass.
	m.complete(context.WithoutCancel(ctx), j, lr, res, err)
}

func (m *Manager) complete(ctx context.Context, j job.Job, lr job.LastRun, res dispatch.Result, passErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs, err := m.load(ctx)
	if err != nil {
		return
	}
	i := indexOf(jobs, j.ID)
	if i < 0 {
		m.log.Info("job removed during dispatch; outcome not stored", logx.String("id", j.ID), logx.String("outcome", string(lr.Status)))
		return
	}
	deleted := false
	if j.Type == job.TypeOnce {
		jobs = append(jobs[:i], jobs[i+1:]...)
		deleted = true
	} else {
		jobs[i].LastRun = &lr
	}
	if err := m.save(ctx, jobs); err != nil {
		return
	}

	ev := JobEvent{ID: j.ID, Type: j.Type, LastRun: &lr}
	if passErr == nil {
		ev.Result = &res
	}
	m.publish(eventbus.JobRunCompleted, ev)
	if deleted {
		m.log.Info("once job finished and removed", logx.String("id", j.ID))
		m.publish(eventbus.JobDeleted, JobEvent{ID: j.ID, Type: j.Type})
	}
}

func lastRunFrom(at time.Time, total int, res dispatch.Result, err error) job.LastRun {
	if err != nil {
		return job.LastRun{Time: at, Status: job.OutcomeFailed, Failed: total, Error: err.Error()}
	}
	return job.LastRun{Time: at, Status: res.Outcome, Sent: res.Sent, Failed: res.Failed, Error: res.Error}
}

// sendNow delivers an unsaved "now" job on a background goroutine.
func (m *Manager) sendNow(j job.Job) {
	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		log := m.log.With(logx.String("id", j.ID), logx.String("type", string(job.TypeNow)))
		log.Info("immediate send started", logx.Int("recipients", len(j.Recipients())))
		res, err := m.disp.Deliver(ctx, j.Recipients(), j.Message)
		lr := lastRunFrom(m.clock.Now(), len(j.Recipients()), res, err)
		if err != nil {
			log.Error("immediate send failed", logx.Err(err))
		} else {
			log.Info("immediate send finished", logx.String("outcome", string(lr.Status)), logx.Int("sent", lr.Sent), logx.Int("failed", lr.Failed))
		}
		ev := JobEvent{ID: j.ID, Type: job.TypeNow, LastRun: &lr}
		if err == nil {
			ev.Result = &res
		}
		m.publish(eventbus.JobRunCompleted, ev)
	}()
}

// StartValidation checks numbers in the background, publishing
// validation.update and validation.progress per number and
// validation.complete at the end. It returns the run id.
func (m *Manager) StartValidation(_ context.Context, numbers []string) (string, error) {
	cleaned := make([]string, 0, len(numbers))
	for _, n := range numbers {
		if n = strings.TrimSpace(n); n != "" {
			cleaned = append(cleaned, n)
		}
	}
	if len(cleaned) == 0 {
		return "", fmt.Errorf("%w: at least one number is required", job.ErrValidation)
	}
	if !m.disp.Connected() {
		return "", dispatch.ErrTransportUnavailable
	}
	m.mu.Lock()
	runCtx := m.ctx
	m.mu.Unlock()

	runID := m.newID()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		results, err := m.disp.Validate(runCtx, cleaned, func(st dispatch.CheckStatus, done, total int) {
			m.publish(eventbus.ValidationUpdate, ValidationUpdate{RunID: runID, Number: st.Number, Status: st.Status})
			m.publish(eventbus.ValidationProgress, ValidationProgress{RunID: runID, Checked: done, Total: total})
		})
		done := ValidationComplete{RunID: runID, Results: results}
		if err != nil && !errors.Is(err, context.Canceled) {
			done.Error = err.Error()
			m.log.Warn("validation run failed", logx.String("run", runID), logx.Err(err))
		}
		m.publish(eventbus.ValidationComplete, done)
	}()
	return runID, nil
}
