package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hrbot/internal/alert"
	"hrbot/internal/config"
	"hrbot/internal/detail"
	"hrbot/internal/eventbus"
	"hrbot/internal/metrics"
	"hrbot/internal/observability/ops"
	rtsup "hrbot/internal/runtime/supervisor"
	"hrbot/internal/scheduler"
	"hrbot/internal/stats"
	"hrbot/internal/storage"
	kit "hrbot/internal/transport"
	telegram "hrbot/internal/transport/telegram/adapter"
	"hrbot/internal/transport/telegram/router"
	"hrbot/internal/watcher"
	logx "hrbot/pkg/logx"
	"hrbot/pkg/systemd"
)

type App struct {
	cfgPath string
	cfgm    *config.ConfigManager
	sup     *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	rec   *metrics.Recorder

	adapter kit.Adapter
	stats   *stats.Client
	watch   *watcher.Watcher
	sched   *scheduler.Scheduler
	ops     *ops.Service
	cmdm    *router.CommandManager

	updates chan kit.Update
}

func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return validate(cfg) })
	cfg, err := cfgm.Load(ctx)
	if err != nil {
		return nil, err
	}
	s, err := resolve(cfg)
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: s.pollTimeout}, bootLog)
	if err != nil {
		return nil, err
	}

	// The chat sink starts disabled until its target is known, then Apply enables it.
	bootCfg := s.logging
	bootCfg.Chat.Enabled = false
	logSvc, root := logx.New(bootCfg, ad)
	setLogTarget(logSvc, cfg)
	logSvc.Apply(s.logging)
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root.With(logx.String("comp", "config")))

	bus := eventbus.New()
	rec := metrics.New()

	var store storage.Store
	if s.storageOn {
		store, err = storage.Open(s.storage, root)
		if err != nil {
			return nil, err
		}
		log.Info("storage enabled", logx.String("driver", s.storage.Driver))
	}

	client := stats.New(stats.Config{
		BaseURL:    cfg.Stats.BaseURL,
		Timeout:    s.statsTimeout,
		RatePerSec: cfg.Stats.RatePerSec,
		UserAgent:  cfg.Stats.UserAgent,
		Observer:   rec,
		Logger:     root,
	})
	var savant detail.DistanceSource
	if !cfg.Watcher.DisableSavant {
		savant = stats.NewSavant(stats.Config{
			BaseURL:    cfg.Stats.SavantURL,
			Timeout:    s.statsTimeout,
			RatePerSec: cfg.Stats.RatePerSec,
			UserAgent:  cfg.Stats.UserAgent,
			Observer:   rec,
			Logger:     root,
		})
	}
	resolver := detail.New(client, savant, s.detail, rec, root)
	notif := alert.New(s.alerts, alert.Deps{Adapter: ad, Store: store, Bus: bus, Metrics: rec}, root)

	reg, err := watcher.NewRegistry(entities(cfg.Players)...)
	if err != nil {
		closeStore(store)
		return nil, err
	}
	w := watcher.New(s.watcher, reg, watcher.Deps{
		Stats:    client,
		Resolver: resolver,
		Notifier: notif,
		Bus:      bus,
		Metrics:  rec,
	}, root)

	sched, err := scheduler.New(s.schedule, func(c context.Context) {
		if _, err := w.ScheduledTick(c); err != nil {
			log.Warn("scheduled tick aborted", logx.Err(err))
		}
	}, root)
	if err != nil {
		closeStore(store)
		return nil, err
	}

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		rec:     rec,
		adapter: ad,
		stats:   client,
		watch:   w,
		sched:   sched,
		updates: make(chan kit.Update, 256),
	}
	a.ops = ops.New(s.ops, ops.Deps{Metrics: rec.Handler(), Health: a.health}, root)
	a.cmdm = router.NewCommandManager(root.With(logx.String("comp", "commands")), ad, cfg.Telegram.OwnerUserIDs)
	a.cmdm.Use(auditMiddleware(store, rec, root.With(logx.String("comp", "audit"))))

	log.Info("app configured",
		logx.Int("players", reg.Len()),
		logx.Int("destinations", len(s.watcher.Destinations)),
		logx.String("schedule", sched.Spec().Raw),
		logx.String("timezone", sched.Location().String()),
	)
	return a, nil
}

func setLogTarget(svc *logx.Service, cfg *config.Config) {
	raw := strings.TrimSpace(cfg.Telegram.GroupLog)
	if raw == "" {
		svc.SetChatTarget(0, 0)
		return
	}
	to, err := alert.Destination(raw).Target()
	if err != nil {
		return
	}
	thread := to.ThreadID
	if thread == 0 {
		thread = cfg.Logging.Telegram.ThreadID
	}
	svc.SetChatTarget(to.ChatID, thread)
}

func closeStore(st storage.Store) {
	if st != nil {
		_ = st.Close()
	}
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Logger() logx.Logger { return a.log }

// Alive reports whether the app run context is still live. Upstream outages do
// not count; they only show on /healthz.
func (a *App) Alive() bool { return a.sup != nil && a.sup.Context().Err() == nil }

func (a *App) health() ops.Health {
	rep := a.watch.LastReport()
	h := ops.Health{
		OK:        true,
		LastCheck: a.watch.LastCheck(),
		InSeason:  a.watch.InSeason(),
		Entities:  a.watch.Registry().Len(),
		Details: map[string]any{
			"season":         a.watch.Season(),
			"next_tick":      a.sched.Next(),
			"events_dropped": eventbus.Dropped(a.bus),
		},
	}
	if n := len(rep.Results); n > 0 {
		bad := rep.Count(watcher.OutcomeFailed) + rep.Count(watcher.OutcomeUnavailable)
		h.Details["last_tick_failures"] = bad
		if bad == n {
			h.OK = false
		}
	}
	if a.sup != nil && a.sup.Context().Err() != nil {
		h.OK = false
	}
	return h
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.cmdm.Register(a.sup.Context(), a.commands()...)
	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

	// Baselines first so the first scheduled tick compares against real counts.
	a.sup.Go0("watcher.prime", func(c context.Context) {
		primed := a.watch.Prime(c)
		a.log.Info("baselines primed", logx.Int("primed", primed), logx.Int("players", a.watch.Registry().Len()))
		if c.Err() != nil {
			return
		}
		a.sched.Start(c)
	})

	a.ops.Start(a.sup.Context())

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
				if st, ok := tickStatus(e); ok {
					systemd.Status(a.log, st)
				}
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts; only the newest config matters.
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
				a.applyConfig(c, last, newCfg)
				last = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// applyConfig applies the live sections of a reload. Everything else is logged
// and waits for a restart.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	ch := config.SummarizeChange(oldCfg, newCfg)
	if ch.Empty() {
		a.log.Info("config reloaded (no changes)")
		return
	}
	for _, sec := range ch.Live {
		switch sec {
		case "logging", "group_log":
			setLogTarget(a.logs, newCfg)
			a.logs.Apply(mapLogging(newCfg))
		case "owners":
			a.cmdm.SetOwners(newCfg.Telegram.OwnerUserIDs)
		case "ops":
			oc, err := mapOps(newCfg)
			if err != nil {
				a.log.Warn("invalid ops config; keeping previous", logx.Err(err))
				continue
			}
			a.ops.Reconfigure(ctx, oc)
		}
	}
	if len(ch.RestartRequired) > 0 {
		a.log.Warn("config sections changed; restart required for them to take effect",
			logx.String("sections", strings.Join(ch.RestartRequired, ",")))
	}
	fields := append([]logx.Field{
		logx.String("live", strings.Join(ch.Live, ",")),
		logx.String("restart_required", strings.Join(ch.RestartRequired, ",")),
	}, ch.Attrs...)
	a.log.Info("config reloaded", fields...)
	a.bus.Publish(eventbus.Event{
		Type: eventbus.TypeConfigReload,
		Time: time.Now(),
		Data: map[string]any{"live": ch.Live, "restart_required": ch.RestartRequired},
	})
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		if max <= 0 {
			a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
			return
		}
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("scheduler", 3*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("ops", time.Second, func(c context.Context) error { a.ops.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 3*time.Second, func(c context.Context) error {
		if err := a.sup.Wait(c); err != nil && c.Err() != nil {
			return err
		}
		return nil
	})
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped", logx.String("reason", string(reason)))
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func auditMiddleware(store storage.Store, rec *metrics.Recorder, log logx.Logger) router.Middleware {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx context.Context, req *router.Request) error {
			start := time.Now()
			err := next(ctx, req)
			rec.ObserveCommand(req.Command, err == nil)
			if store == nil {
				return err
			}
			entry := storage.AuditEntry{
				At:            start,
				ActorID:       req.FromID,
				ActorUsername: req.FromUser,
				ChatID:        req.Chat.ChatID,
				ThreadID:      req.Chat.ThreadID,
				Command:       req.Command,
				Args:          strings.Join(req.Args, " "),
				OK:            err == nil,
				TookMS:        time.Since(start).Milliseconds(),
			}
			if err != nil {
				entry.Error = err.Error()
			}
			actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if aerr := store.AppendAudit(actx, entry); aerr != nil {
				log.Warn("audit append failed", logx.String("cmd", req.Command), logx.Err(aerr))
			}
			return err
		}
	}
}

// tickStatus renders a watch.tick event as the systemd status line.
func tickStatus(e eventbus.Event) (string, bool) {
	if e.Type != eventbus.TypeWatchTick {
		return "", false
	}
	data, ok := e.Data.(map[string]any)
	if !ok {
		return "", false
	}
	players, _ := data["entities"].(int)
	hrs, _ := data["increased"].(int)
	return fmt.Sprintf("last check %s: %d players, %d new home runs",
		e.Time.Format("15:04:05"), players, hrs), true
}
