package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"wablast/internal/clock"
	"wablast/internal/config"
	"wablast/internal/dispatch"
	"wablast/internal/eventbus"
	"wablast/internal/httpapi"
	"wablast/internal/lifecycle"
	"wablast/internal/notify"
	"wablast/internal/runtime/supervisor"
	"wablast/internal/storage"
	"wablast/internal/task/scheduler"
	"wablast/internal/transport"
	"wablast/internal/transport/telegram"
	logx "wablast/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	tr    transport.Transport
	clk   *clock.Synced
	sched *scheduler.Service
	disp  *dispatch.Engine
	mgr   *lifecycle.Manager
	hub   *notify.Hub
	redis *notify.RedisPublisher

	srvCfg serverConfig
	srv    *http.Server
	ln     net.Listener
}

// NewApp loads the config and builds every component. Nothing runs until Start.
func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	return newApp(cfgm, cfg)
}

func newApp(cfgm *config.ConfigManager, cfg *config.Config) (*App, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	// Logging first, so construction failures below are reported through it.
	var sender logx.Sender
	if tc, ok, _ := mapAlertConfig(cfg); ok {
		s, err := telegram.New(tc)
		if err != nil {
			return nil, fmt.Errorf("telegram alerts: %w", err)
		}
		sender = s
	}
	logs, root := logx.New(mapLogConfig(cfg), sender)
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root.With(logx.String("comp", "config")))

	bus := eventbus.New()

	sc, _ := mapStorageConfig(cfg)
	store, err := storage.Open(sc, root)
	switch {
	case errors.Is(err, storage.ErrDisabled):
		log.Warn("storage disabled; jobs are kept in memory and lost on restart")
		store = storage.NewMemory()
	case err != nil:
		_ = logs.Close()
		return nil, err
	default:
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	tcfg, _ := mapTransportConfig(cfg)
	tr, err := transport.Open(tcfg, root)
	if err != nil {
		_ = store.Close()
		_ = logs.Close()
		return nil, err
	}

	ccfg, _ := mapClockConfig(cfg)
	clk := clock.NewSynced(ccfg, root.With(logx.String("comp", "clock")))

	schedCfg, _ := mapSchedulerConfig(cfg)
	sched := scheduler.New(schedCfg, clk, root.With(logx.String("comp", "scheduler")))

	dcfg, _ := mapDispatchConfig(cfg)
	disp := dispatch.New(dcfg, tr, root.With(logx.String("comp", "dispatch"))).WithClock(clk.Now)

	opts := []lifecycle.Option{lifecycle.WithClock(clk)}
	if gl, ok := tr.(transport.GroupLister); ok {
		opts = append(opts, lifecycle.WithGroupLister(gl))
	}
	mgr := lifecycle.New(store, sched, disp, bus, root.With(logx.String("comp", "lifecycle")), opts...)

	hub := notify.NewHub(mapHubConfig(cfg), root.With(logx.String("comp", "websocket")))

	var redisPub *notify.RedisPublisher
	if rc, ok, _ := mapRedisConfig(cfg); ok {
		redisPub, err = notify.NewRedisPublisher(rc, root.With(logx.String("comp", "redis")))
		if err != nil {
			_ = store.Close()
			_ = logs.Close()
			return nil, err
		}
	}

	srvCfg, _ := mapServerConfig(cfg)
	handler := httpapi.New(httpapi.Options{
		Service: mgr,
		Time:    clk,
		Events:  hub,
		Log:     root.With(logx.String("comp", "http")),
	})

	return &App{
		cfgm:   cfgm,
		log:    log,
		logs:   logs,
		bus:    bus,
		store:  store,
		tr:     tr,
		clk:    clk,
		sched:  sched,
		disp:   disp,
		mgr:    mgr,
		hub:    hub,
		redis:  redisPub,
		srvCfg: srvCfg,
		srv:    httpapi.NewServer(srvCfg.Addr, handler, srvCfg.ReadTimeout, srvCfg.WriteTimeout),
	}, nil
}

// Manager exposes the job lifecycle (CLI subcommands).
func (a *App) Manager() *lifecycle.Manager { return a.mgr }

// Addr returns the bound HTTP address once Start has returned.
func (a *App) Addr() string {
	if a.ln == nil {
		return a.srvCfg.Addr
	}
	return a.ln.Addr().String()
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.srvCfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.srvCfg.Addr, err)
	}
	a.ln = ln

	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	run := a.sup.Context()

	// transactional config reload: validate before commit/publish
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return validateConfig(cfg) })

	a.sched.Start(run)
	a.mgr.Start(run)

	// Sync the clock before arming so the first fire times use the corrected time.
	if a.clk.Enabled() {
		syncCtx, cancel := context.WithTimeout(run, 5*time.Second)
		if err := a.clk.Sync(syncCtx); err != nil {
			a.log.Warn("initial clock sync failed; using system clock", logx.Err(err))
		}
		cancel()
	}

	if _, err := a.mgr.Reconcile(run); err != nil {
		a.log.Error("initial reconcile failed", logx.Err(err))
	}

	a.sup.Go("clock.sync", a.clk.Run)
	if r, ok := a.tr.(transport.Runner); ok {
		a.sup.GoRestart("transport.health", r.Run, supervisor.WithRestartBackoff(time.Second, 30*time.Second))
	}
	if n, ok := a.tr.(transport.Notifier); ok {
		a.sup.Go0("transport.events", func(c context.Context) { a.transportEvents(c, n.Events()) })
	}
	a.sup.Go("notify.websocket", func(c context.Context) error { return a.hub.Run(c, a.bus) })
	if a.redis != nil {
		a.sup.Go("notify.redis", func(c context.Context) error { return a.redis.Run(c, a.bus) })
	}
	a.sup.Go("http.server", a.serve)
	a.sup.Go0("eventbus.log", a.logEvents)

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) { a.reloadLoop(c, sub) })
	a.sup.Go("config.watch", a.cfgm.Watch)

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify ready failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}
	a.log.Info("app started", logx.String("addr", a.Addr()))
	return nil
}

func (a *App) serve(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() { errc <- a.srv.Serve(a.ln) }()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), a.srvCfg.ShutdownTimeout)
		defer cancel()
		if err := a.srv.Shutdown(sctx); err != nil {
			a.log.Warn("http shutdown incomplete", logx.Err(err))
			_ = a.srv.Close()
		}
		return nil
	}
}

// transportEvents mirrors session changes onto the bus and re-arms every job
// when the transport (re)connects.
func (a *App) transportEvents(ctx context.Context, events <-chan transport.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data := map[string]string{"status": string(ev.Kind)}
			if ev.Detail != "" {
				data["detail"] = ev.Detail
			}
			switch ev.Kind {
			case transport.EventConnected:
				a.log.Info("transport connected")
				a.bus.Publish(eventbus.Event{Type: eventbus.TransportConnected, Time: ev.Time, Data: data})
				if _, err := a.mgr.Reconcile(ctx); err != nil {
					a.log.Error("reconcile after connect failed", logx.Err(err))
				}
			case transport.EventDisconnected:
				a.log.Warn("transport disconnected", logx.String("detail", ev.Detail))
				a.bus.Publish(eventbus.Event{Type: eventbus.TransportDisconnect, Time: ev.Time, Data: data})
			}
		}
	}
}

func (a *App) logEvents(ctx context.Context) {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
		}
	}
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	defer a.cfgm.Unsubscribe(sub)
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			a.apply(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

// apply hot-applies logging, timezone and dispatch pacing. Other sections
// are logged as requiring a restart.
func (a *App) apply(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if restart := config.RestartRequired(sections); len(restart) > 0 {
		a.log.Warn("config sections changed; restart required for them to take effect",
			logx.String("sections", strings.Join(restart, ",")))
	}

	a.logs.Apply(mapLogConfig(newCfg))

	if sc, err := mapSchedulerConfig(newCfg); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	} else {
		a.sched.Apply(sc)
	}

	if dc, err := mapDispatchConfig(newCfg); err != nil {
		a.log.Warn("invalid dispatch config; keeping previous", logx.Err(err))
	} else {
		a.disp.Apply(dc)
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// Stop shuts every component down in dependency order, bounded by ctx.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		// never started
		err := a.store.Close()
		_ = a.logs.Close()
		return err
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	a.log.Info("stopping")

	// Cancel the run context first so loops (http, health, pumps) unwind.
	a.sup.Cancel()
	a.sched.Stop()

	var errs []error
	if err := a.mgr.Wait(ctx); err != nil {
		a.log.Warn("background passes still running at shutdown", logx.Err(err))
		errs = append(errs, err)
	}
	if err := a.sup.Wait(ctx); err != nil {
		a.log.Warn("supervised loops still running at shutdown", logx.Err(err))
		errs = append(errs, err)
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
		errs = append(errs, err)
	}
	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return errors.Join(errs...)
}
