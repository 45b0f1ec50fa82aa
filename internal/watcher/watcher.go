package watcher

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"hrbot/internal/alert"
	"hrbot/internal/detail"
	"hrbot/internal/eventbus"
	"hrbot/internal/stats"
	logx "hrbot/pkg/logx"
)

type CountSource interface {
	HomeRunCount(ctx context.Context, id string, season, prev int) (int, error)
	SeasonSnapshot(ctx context.Context, id string, season int) (stats.SeasonSnapshot, error)
}

type DetailResolver interface {
	Resolve(ctx context.Context, entityID string, season int) detail.EventDetail
}

type Notifier interface {
	Notify(ctx context.Context, a alert.Alert, dests []alert.Destination) alert.Report
}

type Observer interface {
	ObserveTick(d time.Duration, skipped bool)
	ObserveOutcome(outcome string)
	SetLastCount(id string, n int)
}

type Config struct {
	Season       Season
	TickTimeout  time.Duration // 0 means no tick deadline
	Destinations []alert.Destination
}

type Deps struct {
	Stats    CountSource
	Resolver DetailResolver
	Notifier Notifier
	Bus      eventbus.Bus // optional
	Metrics  Observer     // optional
	Now      func() time.Time
}

// Watcher owns the registry and runs ticks one at a time.
type Watcher struct {
	cfg  Config
	reg  *Registry
	deps Deps
	log  logx.Logger

	sem chan struct{}

	mu         sync.RWMutex
	lastCheck  time.Time
	lastReport TickReport
}

func New(cfg Config, reg *Registry, deps Deps, log logx.Logger) *Watcher {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Watcher{
		cfg:  cfg,
		reg:  reg,
		deps: deps,
		log:  log.With(logx.String("comp", "watcher")),
		sem:  make(chan struct{}, 1),
	}
}

func (w *Watcher) Registry() *Registry { return w.reg }
func (w *Watcher) Entities() []Entity  { return w.reg.Entities() }
func (w *Watcher) Season() int         { return w.cfg.Season.YearAt(w.deps.Now()) }
func (w *Watcher) InSeason() bool      { return w.cfg.Season.Contains(w.deps.Now()) }

func (w *Watcher) Destinations() []alert.Destination {
	return append([]alert.Destination(nil), w.cfg.Destinations...)
}

func (w *Watcher) LastCheck() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastCheck
}

func (w *Watcher) LastReport() TickReport {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastReport
}

// Prime reads every unprimed entity once to set its baseline. Entities that
// fail stay unprimed; the first successful tick sets their baseline without
// alerting. A baseline already set by a tick is never replaced.
func (w *Watcher) Prime(ctx context.Context) int {
	if err := w.acquire(ctx); err != nil {
		return 0
	}
	defer w.release()

	season := w.Season()
	primed := 0
	for _, e := range w.reg.Entities() {
		if e.Primed {
			continue
		}
		n, err := w.deps.Stats.HomeRunCount(ctx, e.ID, season, 0)
		if err != nil {
			w.log.Warn("initial count unavailable", logx.String("player", e.ID), logx.String("name", e.Name), logx.Err(err))
			continue
		}
		if !w.reg.prime(e.ID, n) {
			continue
		}
		w.setGauge(e.ID, n)
		primed++
		w.log.Info("baseline set", logx.String("player", e.ID), logx.String("name", e.Name), logx.Int("home_runs", n))
	}
	return primed
}

// ScheduledTick runs a check cycle when the clock is inside the season window.
func (w *Watcher) ScheduledTick(ctx context.Context) (TickReport, error) {
	now := w.deps.Now()
	if !w.cfg.Season.Contains(now) {
		w.log.Debug("off season; tick skipped", logx.String("month", now.Month().String()))
		if w.deps.Metrics != nil {
			w.deps.Metrics.ObserveTick(0, true)
		}
		return TickReport{Season: w.cfg.Season.YearAt(now), Started: now, Finished: now, Skipped: true}, nil
	}
	return w.RunCheckCycle(ctx)
}

// RunCheckCycle checks every entity in order. Scheduled and manual checks both
// call it; a second caller waits until the running tick finishes or ctx ends.
// ctx only bounds that wait: once the tick slot is held the tick runs to
// completion, limited by TickTimeout alone.
func (w *Watcher) RunCheckCycle(ctx context.Context) (TickReport, error) {
	if err := w.acquire(ctx); err != nil {
		return TickReport{}, err
	}
	defer w.release()

	ctx = context.WithoutCancel(ctx)
	if w.cfg.TickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.TickTimeout)
		defer cancel()
	}

	rep := TickReport{Started: w.deps.Now()}
	rep.Season = w.cfg.Season.YearAt(rep.Started)
	for _, e := range w.reg.Entities() {
		res := w.checkGuarded(ctx, e, rep.Season)
		w.reg.observe(e.ID, res.Outcome, res.Err, w.deps.Now())
		if w.deps.Metrics != nil {
			w.deps.Metrics.ObserveOutcome(string(res.Outcome))
		}
		rep.Results = append(rep.Results, res)
	}
	rep.Finished = w.deps.Now()

	w.mu.Lock()
	w.lastCheck = rep.Finished
	w.lastReport = rep
	w.mu.Unlock()

	took := rep.Finished.Sub(rep.Started)
	if w.deps.Metrics != nil {
		w.deps.Metrics.ObserveTick(took, false)
	}
	w.log.Info("tick finished",
		logx.Int("season", rep.Season),
		logx.Int("entities", len(rep.Results)),
		logx.Int("increased", rep.Count(OutcomeIncreased)),
		logx.Int("unavailable", rep.Count(OutcomeUnavailable)),
		logx.Int("failed", rep.Count(OutcomeFailed)),
		logx.Duration("dur", took))
	w.publish(eventbus.TypeWatchTick, map[string]any{
		"entities":  len(rep.Results),
		"increased": rep.Count(OutcomeIncreased),
	})
	return rep, nil
}

func (w *Watcher) checkGuarded(ctx context.Context, e Entity, season int) (res EntityResult) {
	res = EntityResult{ID: e.ID, Name: e.Name, Previous: e.LastCount, Current: e.LastCount}
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("panic while checking entity",
				logx.String("player", e.ID),
				logx.String("name", e.Name),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.check(ctx, e, season)
}

func (w *Watcher) check(ctx context.Context, e Entity, season int) EntityResult {
	log := w.log.With(logx.String("player", e.ID), logx.String("name", e.Name))
	res := EntityResult{ID: e.ID, Name: e.Name, Previous: e.LastCount, Current: e.LastCount}

	cur, err := w.deps.Stats.HomeRunCount(ctx, e.ID, season, e.LastCount)
	if err != nil {
		log.Warn("count unavailable; baseline kept", logx.Err(err))
		res.Outcome = OutcomeUnavailable
		res.Err = err
		return res
	}
	res.Current = cur

	if !e.Primed {
		w.reg.prime(e.ID, cur)
		w.setGauge(e.ID, cur)
		log.Info("baseline set", logx.Int("home_runs", cur))
		res.Outcome = OutcomePrimed
		return res
	}

	switch {
	case cur == e.LastCount:
		res.Outcome = OutcomeNoChange
		log.Debug("no change", logx.Int("home_runs", cur))
		return res
	case cur < e.LastCount:
		res.Outcome = OutcomeDecreased
		log.Warn("home run count went down; baseline kept",
			logx.Int("last", e.LastCount), logx.Int("observed", cur))
		w.publish(eventbus.TypeWatchAnomaly, map[string]any{"player": e.ID, "last": e.LastCount, "observed": cur})
		return res
	}

	res.Delta = cur - e.LastCount
	res.Outcome = OutcomeIncreased
	log.Info("home run detected", logx.Int("last", e.LastCount), logx.Int("total", cur), logx.Int("delta", res.Delta))
	w.publish(eventbus.TypeWatchIncrease, map[string]any{"player": e.ID, "total": cur, "delta": res.Delta})

	d := w.deps.Resolver.Resolve(ctx, e.ID, season)
	a := alert.Alert{
		Player:     e.player(),
		Total:      cur,
		Delta:      res.Delta,
		Season:     season,
		Detail:     d,
		DetectedAt: w.deps.Now(),
	}
	rep := w.deps.Notifier.Notify(ctx, a, w.cfg.Destinations)
	res.Report = &rep

	// A tick cut off by its deadline before anything went out keeps the old
	// baseline so the next tick announces the home run.
	if rep.Sent == 0 && ctx.Err() != nil {
		log.Warn("tick deadline reached before delivery; baseline kept",
			logx.Int("last", e.LastCount), logx.Int("total", cur), logx.Err(ctx.Err()))
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("alert not delivered before tick deadline: %w", ctx.Err())
		return res
	}

	// Baseline moves only once the notify attempt is over, whatever its result.
	w.reg.commit(e.ID, cur)
	w.setGauge(e.ID, cur)
	if rep.Sent == 0 && rep.Total > 0 {
		res.Err = errors.New("alert not delivered to any destination")
	}
	return res
}

// CurrentCount reads the live count for a tracked id. On a stats failure it
// returns the baseline together with the error.
func (w *Watcher) CurrentCount(ctx context.Context, id string) (int, error) {
	e, ok := w.reg.Entity(id)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	return w.deps.Stats.HomeRunCount(ctx, e.ID, w.Season(), e.LastCount)
}

// SeasonSnapshot fetches the current season line for any player id, tracked or not.
func (w *Watcher) SeasonSnapshot(ctx context.Context, id string) (stats.SeasonSnapshot, error) {
	return w.deps.Stats.SeasonSnapshot(ctx, id, w.Season())
}

func (w *Watcher) acquire(ctx context.Context) error {
	select {
	case w.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Watcher) release() { <-w.sem }

func (w *Watcher) setGauge(id string, n int) {
	if w.deps.Metrics != nil {
		w.deps.Metrics.SetLastCount(id, n)
	}
}

func (w *Watcher) publish(typ string, data map[string]any) {
	if w.deps.Bus != nil {
		w.deps.Bus.Publish(eventbus.Event{Type: typ, Data: data})
	}
}
