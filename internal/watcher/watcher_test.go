package watcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hrbot/internal/alert"
	"hrbot/internal/detail"
	"hrbot/internal/eventbus"
	"hrbot/internal/stats"
	logx "hrbot/pkg/logx"
)

// scriptedStats returns queued counts per id; an empty queue repeats the last value.
type scriptedStats struct {
	mu     sync.Mutex
	counts map[string][]int
	errs   map[string]error
	panics map[string]bool
	calls  atomic.Int32
	hold   chan struct{} // when set, each call waits for a receive
}

func (s *scriptedStats) HomeRunCount(ctx context.Context, id string, season, prev int) (int, error) {
	s.calls.Add(1)
	if s.hold != nil {
		<-s.hold
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panics[id] {
		panic("decoder blew up")
	}
	if err := s.errs[id]; err != nil {
		return prev, err
	}
	q := s.counts[id]
	if len(q) == 0 {
		return prev, errors.New("no script")
	}
	n := q[0]
	if len(q) > 1 {
		s.counts[id] = q[1:]
	}
	return n, nil
}

func (s *scriptedStats) SeasonSnapshot(ctx context.Context, id string, season int) (stats.SeasonSnapshot, error) {
	return stats.SeasonSnapshot{Season: season, HomeRuns: 1}, nil
}

type stubResolver struct{ calls atomic.Int32 }

func (r *stubResolver) Resolve(context.Context, string, int) detail.EventDetail {
	r.calls.Add(1)
	return detail.Default()
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []alert.Alert
	// baselines seen while Notify runs
	seen []int
	reg  *Registry
	fail bool
}

func (n *recordingNotifier) Notify(_ context.Context, a alert.Alert, dests []alert.Destination) alert.Report {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
	if n.reg != nil {
		e, _ := n.reg.Entity(a.Player.ID)
		n.seen = append(n.seen, e.LastCount)
	}
	if n.fail {
		return alert.Report{Total: len(dests), Failed: len(dests)}
	}
	return alert.Report{Total: len(dests), Sent: len(dests)}
}

func newTestWatcher(t *testing.T, st *scriptedStats, ents ...Entity) (*Watcher, *recordingNotifier, *stubResolver) {
	t.Helper()
	reg, err := NewRegistry(ents...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	n := &recordingNotifier{reg: reg}
	r := &stubResolver{}
	w := New(Config{
		Season:       Season{StartMonth: time.March, EndMonth: time.October, Year: 2025},
		Destinations: []alert.Destination{"-100"},
	}, reg, Deps{Stats: st, Resolver: r, Notifier: n}, logx.Nop())
	return w, n, r
}

func TestTickNoChangeThenIncrease(t *testing.T) {
	t.Parallel()
	st := &scriptedStats{counts: map[string][]int{"592450": {34, 34, 35}}}
	w, n, r := newTestWatcher(t, st, Entity{ID: "592450", Name: "Aaron Judge"})
	ctx := context.Background()

	if got := w.Prime(ctx); got != 1 {
		t.Fatalf("primed = %d, want 1", got)
	}

	rep, err := w.RunCheckCycle(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if rep.Results[0].Outcome != OutcomeNoChange || len(n.alerts) != 0 {
		t.Fatalf("first tick = %+v, alerts = %d", rep.Results[0], len(n.alerts))
	}

	rep, _ = w.RunCheckCycle(ctx)
	res := rep.Results[0]
	if res.Outcome != OutcomeIncreased || res.Delta != 1 || res.Current != 35 {
		t.Fatalf("second tick = %+v", res)
	}
	if len(n.alerts) != 1 || n.alerts[0].Total != 35 || n.alerts[0].Delta != 1 {
		t.Fatalf("alerts = %+v", n.alerts)
	}
	if n.seen[0] != 34 {
		t.Fatalf("baseline during notify = %d, want 34", n.seen[0])
	}
	if r.calls.Load() != 1 {
		t.Fatalf("resolver calls = %d, want 1", r.calls.Load())
	}
	e, _ := w.Registry().Entity("592450")
	if e.LastCount != 35 {
		t.Fatalf("LastCount = %d, want 35", e.LastCount)
	}
}

func TestTickDecreaseHoldsBaseline(t *testing.T) {
	t.Parallel()
	st := &scriptedStats{counts: map[string][]int{"1": {10, 8}}}
	w, n, _ := newTestWatcher(t, st, Entity{ID: "1", Name: "Somebody"})
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()
	w.deps.Bus = bus
	ctx := context.Background()

	w.Prime(ctx)
	rep, _ := w.RunCheckCycle(ctx)
	if rep.Results[0].Outcome != OutcomeDecreased {
		t.Fatalf("outcome = %s", rep.Results[0].Outcome)
	}
	if len(n.alerts) != 0 {
		t.Fatal("decrease must not alert")
	}
	if e, _ := w.Registry().Entity("1"); e.LastCount != 10 {
		t.Fatalf("LastCount = %d, want 10", e.LastCount)
	}
	var anomaly bool
	for len(events) > 0 {
		if (<-events).Type == eventbus.TypeWatchAnomaly {
			anomaly = true
		}
	}
	if !anomaly {
		t.Fatal("anomaly event not published")
	}
}

func TestTickUnavailableKeepsBaseline(t *testing.T) {
	t.Parallel()
	st := &scriptedStats{counts: map[string][]int{"1": {20}}}
	w, n, _ := newTestWatcher(t, st, Entity{ID: "1", Name: "Somebody"})
	ctx := context.Background()
	w.Prime(ctx)

	st.mu.Lock()
	st.errs = map[string]error{"1": stats.ErrUnavailable}
	st.mu.Unlock()

	rep, _ := w.RunCheckCycle(ctx)
	if rep.Results[0].Outcome != OutcomeUnavailable || len(n.alerts) != 0 {
		t.Fatalf("result = %+v", rep.Results[0])
	}
	if e, _ := w.Registry().Entity("1"); e.LastCount != 20 || e.LastError == "" {
		t.Fatalf("entity = %+v", e)
	}
}

func TestUnprimedEntityGetsBaselineWithoutAlert(t *testing.T) {
	t.Parallel()
	st := &scriptedStats{errs: map[string]error{"1": stats.ErrUnavailable}}
	w, n, _ := newTestWatcher(t, st, Entity{ID: "1", Name: "Somebody"})
	ctx := context.Background()
	if got := w.Prime(ctx); got != 0 {
		t.Fatalf("primed = %d, want 0", got)
	}

	st.mu.Lock()
	st.errs = nil
	st.counts = map[string][]int{"1": {12, 13}}
	st.mu.Unlock()

	rep, _ := w.RunCheckCycle(ctx)
	if rep.Results[0].Outcome != OutcomePrimed || len(n.alerts) != 0 {
		t.Fatalf("first tick = %+v", rep.Results[0])
	}
	rep, _ = w.RunCheckCycle(ctx)
	if rep.Results[0].Outcome != OutcomeIncreased || len(n.alerts) != 1 {
		t.Fatalf("second tick = %+v", rep.Results[0])
	}
}

func TestTickIsolatesEntityPanics(t *testing.T) {
	t.Parallel()
	st := &scriptedStats{counts: map[string][]int{"a": {1}, "b": {5, 6}}}
	w, n, _ := newTestWatcher(t, st, Entity{ID: "a", Name: "A"}, Entity{ID: "b", Name: "B"})
	ctx := context.Background()
	w.Prime(ctx)

	st.mu.Lock()
	st.panics = map[string]bool{"a": true}
	st.mu.Unlock()

	rep, err := w.RunCheckCycle(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if rep.Results[0].Outcome != OutcomeFailed {
		t.Fatalf("a = %+v", rep.Results[0])
	}
	if rep.Results[1].Outcome != OutcomeIncreased || len(n.alerts) != 1 {
		t.Fatalf("b = %+v", rep.Results[1])
	}
}

func TestFailedDeliveryStillCommits(t *testing.T) {
	t.Parallel()
	st := &scriptedStats{counts: map[string][]int{"1": {3, 4}}}
	w, n, _ := newTestWatcher(t, st, Entity{ID: "1", Name: "Somebody"})
	n.fail = true
	ctx := context.Background()
	w.Prime(ctx)

	rep, _ := w.RunCheckCycle(ctx)
	if rep.Results[0].Err == nil {
		t.Fatal("expected delivery error on result")
	}
	if e, _ := w.Registry().Entity("1"); e.LastCount != 4 {
		t.Fatalf("LastCount = %d, want 4", e.LastCount)
	}
}

func TestTicksAreSerialized(t *testing.T) {
	t.Parallel()
	st := &scriptedStats{counts: map[string][]int{"1": {7}}, hold: make(chan struct{})}
	w, _, _ := newTestWatcher(t, st, Entity{ID: "1", Name: "Somebody"})
	w.reg.prime("1", 7)

	ctx := context.Background()
	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, _ = w.RunCheckCycle(ctx)
			done <- struct{}{}
		}()
	}

	// First tick is parked inside HomeRunCount; the second must not have entered.
	deadline := time.Now().Add(time.Second)
	for st.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(30 * time.Millisecond)
	if got := st.calls.Load(); got != 1 {
		t.Fatalf("concurrent calls = %d, want 1", got)
	}
	st.hold <- struct{}{}
	<-done
	st.hold <- struct{}{}
	<-done
	if got := st.calls.Load(); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestRunCheckCycleHonorsContextWhileWaiting(t *testing.T) {
	t.Parallel()
	st := &scriptedStats{}
	w, _, _ := newTestWatcher(t, st)
	w.sem <- struct{}{}
	defer w.release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := w.RunCheckCycle(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestScheduledTickSkipsOffSeason(t *testing.T) {
	t.Parallel()
	st := &scriptedStats{counts: map[string][]int{"1": {1}}}
	w, _, _ := newTestWatcher(t, st, Entity{ID: "1", Name: "Somebody"})
	w.deps.Now = func() time.Time { return time.Date(2025, time.December, 1, 12, 0, 0, 0, time.UTC) }

	rep, err := w.ScheduledTick(context.Background())
	if err != nil || !rep.Skipped {
		t.Fatalf("rep = %+v, err = %v", rep, err)
	}
	if st.calls.Load() != 0 {
		t.Fatal("off-season tick queried stats")
	}
}

func TestCurrentCountUnknownEntity(t *testing.T) {
	t.Parallel()
	w, _, _ := newTestWatcher(t, &scriptedStats{})
	if _, err := w.CurrentCount(context.Background(), "nope"); !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("err = %v, want ErrUnknownEntity", err)
	}
}

// slowResolver takes delay per call; with block set, its next call waits for ctx.
type slowResolver struct {
	delay time.Duration
	block atomic.Bool
}

func (r *slowResolver) Resolve(ctx context.Context, _ string, _ int) detail.EventDetail {
	if r.block.CompareAndSwap(true, false) {
		<-ctx.Done()
		return detail.Default()
	}
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
	}
	return detail.Default()
}

// ctxNotifier fails every destination once ctx is done, like a rate limiter would.
type ctxNotifier struct {
	mu   sync.Mutex
	sent int
	errs []error
}

func (n *ctxNotifier) Notify(ctx context.Context, _ alert.Alert, dests []alert.Destination) alert.Report {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := ctx.Err(); err != nil {
		n.errs = append(n.errs, err)
		return alert.Report{Total: len(dests), Failed: len(dests)}
	}
	n.sent++
	return alert.Report{Total: len(dests), Sent: len(dests)}
}

func TestManualTickOutlivesCallerDeadline(t *testing.T) {
	t.Parallel()
	st := &scriptedStats{counts: map[string][]int{"1": {34, 35}}}
	w, _, _ := newTestWatcher(t, st, Entity{ID: "1", Name: "Somebody"})
	n := &ctxNotifier{}
	w.deps.Resolver = &slowResolver{delay: 80 * time.Millisecond}
	w.deps.Notifier = n
	w.Prime(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	rep, err := w.RunCheckCycle(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	res := rep.Results[0]
	if res.Outcome != OutcomeIncreased || res.Err != nil {
		t.Fatalf("result = %+v", res)
	}
	if n.sent != 1 || len(n.errs) != 0 {
		t.Fatalf("sent = %d, ctx errors = %v", n.sent, n.errs)
	}
	if e, _ := w.Registry().Entity("1"); e.LastCount != 35 {
		t.Fatalf("LastCount = %d, want 35", e.LastCount)
	}
}

func TestTickDeadlineBeforeDeliveryKeepsBaseline(t *testing.T) {
	t.Parallel()
	st := &scriptedStats{counts: map[string][]int{"1": {34, 35, 35}}}
	w, _, _ := newTestWatcher(t, st, Entity{ID: "1", Name: "Somebody"})
	w.cfg.TickTimeout = 30 * time.Millisecond
	r := &slowResolver{}
	r.block.Store(true)
	n := &ctxNotifier{}
	w.deps.Resolver = r
	w.deps.Notifier = n
	ctx := context.Background()
	w.Prime(ctx)

	rep, _ := w.RunCheckCycle(ctx)
	res := rep.Results[0]
	if res.Outcome != OutcomeFailed || !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("first tick = %+v", res)
	}
	if e, _ := w.Registry().Entity("1"); e.LastCount != 34 {
		t.Fatalf("LastCount after cut-off tick = %d, want 34", e.LastCount)
	}

	rep, _ = w.RunCheckCycle(ctx)
	res = rep.Results[0]
	if res.Outcome != OutcomeIncreased || res.Delta != 1 || n.sent != 1 {
		t.Fatalf("second tick = %+v, sent = %d", res, n.sent)
	}
	if e, _ := w.Registry().Entity("1"); e.LastCount != 35 {
		t.Fatalf("LastCount = %d, want 35", e.LastCount)
	}
}

func TestPrimeKeepsBaselineSetByTick(t *testing.T) {
	t.Parallel()
	st := &scriptedStats{counts: map[string][]int{"1": {34, 35, 35}}}
	w, n, _ := newTestWatcher(t, st, Entity{ID: "1", Name: "Somebody"})
	ctx := context.Background()

	rep, _ := w.RunCheckCycle(ctx)
	if rep.Results[0].Outcome != OutcomePrimed {
		t.Fatalf("first tick = %+v", rep.Results[0])
	}
	if got := w.Prime(ctx); got != 0 {
		t.Fatalf("primed = %d, want 0", got)
	}
	if e, _ := w.Registry().Entity("1"); e.LastCount != 34 {
		t.Fatalf("LastCount after Prime = %d, want 34", e.LastCount)
	}

	rep, _ = w.RunCheckCycle(ctx)
	if res := rep.Results[0]; res.Outcome != OutcomeIncreased || res.Delta != 1 {
		t.Fatalf("second tick = %+v", res)
	}
	if len(n.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(n.alerts))
	}
}
