package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"wablast/internal/job"
	"wablast/internal/transport"
	logx "wablast/pkg/logx"
)

type Engine struct {
	mu sync.Mutex

	cfg     Config
	tr      transport.Transport
	log     logx.Logger
	limiter *rate.Limiter
	sem     *semaphore.Weighted
	now     func() time.Time
}

func New(cfg Config, tr transport.Transport, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Engine{tr: tr, log: log, now: time.Now}
	e.Apply(cfg)
	return e
}

// WithClock sets the time source used for pass timestamps.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

// Apply swaps the config. Passes already running keep the limits they started with.
func (e *Engine) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	var lim *rate.Limiter
	if cfg.SendsPerMinute > 0 {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.SendsPerMinute)), 1)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sem == nil || e.cfg.MaxConcurrentPasses != cfg.MaxConcurrentPasses {
		e.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrentPasses))
	}
	e.cfg = cfg
	e.limiter = lim
}

func (e *Engine) Connected() bool { return e.tr != nil && e.tr.Connected() }

func (e *Engine) snapshot() (Config, *rate.Limiter, *semaphore.Weighted) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg, e.limiter, e.sem
}

// Deliver runs one pass over recipients. It returns ErrTransportUnavailable
// only when the transport is down at pass start; every recipient failure is
// reported in the Result instead.
func (e *Engine) Deliver(ctx context.Context, recipients []string, body string) (Result, error) {
	if !e.Connected() {
		return Result{}, ErrTransportUnavailable
	}
	cfg, lim, sem := e.snapshot()
	if err := sem.Acquire(ctx, 1); err != nil {
		return Result{}, err
	}
	defer sem.Release(1)

	res := Result{StartedAt: e.now(), Statuses: make([]RecipientStatus, 0, len(recipients))}
	var firstErr error
	for i, r := range recipients {
		if ctx.Err() != nil {
			break
		}
		st := RecipientStatus{Recipient: r, Address: Normalize(r, cfg.CountryCode, cfg.ContactSuffix), Status: StatusSent}
		err := e.sendOne(ctx, cfg, lim, st.Address, body)
		if err != nil && ctx.Err() != nil {
			// Interrupted, not a delivery failure.
			break
		}
		if err != nil {
			st.Status = StatusFailed
			st.Error = err.Error()
			res.Failed++
			if firstErr == nil {
				firstErr = err
			}
			e.log.Warn("send failed", logx.String("to", st.Address), logx.Int("index", i), logx.Err(err))
		} else {
			res.Sent++
		}
		res.Statuses = append(res.Statuses, st)

		if i < len(recipients)-1 {
			if err := sleepCtx(ctx, jitter(cfg.BroadcastDelay)); err != nil {
				break
			}
		}
	}
	res.FinishedAt = e.now()
	res.Skipped = len(recipients) - len(res.Statuses)
	res.Outcome = job.OutcomeSuccess
	switch {
	case res.Skipped > 0:
		res.Outcome = job.OutcomeFailed
		res.Error = fmt.Sprintf("interrupted after %d of %d recipients: %v", len(res.Statuses), len(recipients), context.Cause(ctx))
		if res.Failed > 0 {
			res.Error += fmt.Sprintf("; %d failed: %v", res.Failed, firstErr)
		}
		e.log.Warn("pass interrupted", logx.Int("sent", res.Sent), logx.Int("failed", res.Failed), logx.Int("skipped", res.Skipped))
	case res.Failed > 0:
		res.Outcome = job.OutcomeFailed
		res.Error = fmt.Sprintf("%d of %d recipients failed: %v", res.Failed, len(recipients), firstErr)
	}
	return res, nil
}

func (e *Engine) sendOne(ctx context.Context, cfg Config, lim *rate.Limiter, addr, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if addr == "" {
		return errors.New("empty recipient")
	}
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
	}
	sctx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	defer cancel()
	return e.tr.Send(sctx, addr, body)
}

// Validate checks every number against the transport's registry using the
// lighter validation pacing. progress may be nil.
func (e *Engine) Validate(ctx context.Context, numbers []string, progress Progress) ([]CheckStatus, error) {
	if !e.Connected() {
		return nil, ErrTransportUnavailable
	}
	checker, ok := e.tr.(transport.Checker)
	if !ok {
		return nil, ErrCheckUnsupported
	}
	cfg, _, _ := e.snapshot()

	out := make([]CheckStatus, 0, len(numbers))
	for i, n := range numbers {
		st := CheckStatus{Number: n, Address: Normalize(n, cfg.CountryCode, cfg.ContactSuffix)}
		cctx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		registered, err := checker.IsRegistered(cctx, st.Address)
		cancel()
		switch {
		case err != nil:
			st.Status = CheckError
			st.Error = err.Error()
		case registered:
			st.Status = CheckActive
		default:
			st.Status = CheckUnregistered
		}
		out = append(out, st)
		if progress != nil {
			progress(st, i+1, len(numbers))
		}
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		if i < len(numbers)-1 {
			if err := sleepCtx(ctx, jitter(cfg.ValidateDelay)); err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

func jitter(r Range) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rand.N(r.Max-r.Min+1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
