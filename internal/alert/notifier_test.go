package alert

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"hrbot/internal/detail"
	"hrbot/internal/eventbus"
	"hrbot/internal/storage"
	kit "hrbot/internal/transport"
	logx "hrbot/pkg/logx"
)

type fakeAdapter struct {
	mu     sync.Mutex
	fail   map[int64]error
	texts  []string
	chats  []int64
	photos []string
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[to.ChatID]; err != nil {
		return kit.MessageRef{}, err
	}
	f.texts = append(f.texts, text)
	f.chats = append(f.chats, to.ChatID)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.texts)}, nil
}

type photoAdapter struct{ fakeAdapter }

func (p *photoAdapter) SendPhoto(_ context.Context, to kit.ChatTarget, url, caption string, _ *kit.SendOptions) (kit.MessageRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.photos = append(p.photos, url)
	p.texts = append(p.texts, caption)
	p.chats = append(p.chats, to.ChatID)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

type panicAdapter struct{ fakeAdapter }

func (p *panicAdapter) SendText(context.Context, kit.ChatTarget, string, *kit.SendOptions) (kit.MessageRef, error) {
	panic("adapter exploded")
}

type memStore struct {
	mu     sync.Mutex
	alerts []storage.AlertRecord
}

func (m *memStore) AppendAlert(_ context.Context, r storage.AlertRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, r)
	return nil
}
func (m *memStore) RecentAlerts(context.Context, int) ([]storage.AlertRecord, error) { return nil, nil }
func (m *memStore) AppendAudit(context.Context, storage.AuditEntry) error           { return nil }
func (m *memStore) Close() error                                                    { return nil }

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingObserver) ObserveDelivery(result string, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[result]++
}

func judgeAlert() Alert {
	return Alert{
		Player: Player{ID: "592450", Name: "Aaron Judge", Team: "NYY", Number: "99"},
		Total:  35,
		Delta:  1,
		Season: 2025,
		Detail: detail.EventDetail{Distance: detail.Some(412), RBI: 2, Category: "2-run", Source: detail.SourcePlayByPlay},
	}
}

func TestNotifyOneSucceedsOneFails(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{fail: map[int64]error{-200: errors.New("chat not found")}}
	obs := &countingObserver{}
	n := New(Config{RatePerSec: 100}, Deps{Adapter: ad, Metrics: obs}, logx.Nop())

	rep := n.Notify(context.Background(), judgeAlert(), []Destination{"-100", "-200"})
	if rep.Sent != 1 || rep.Failed != 1 || rep.Total != 2 {
		t.Fatalf("report = %+v", rep)
	}
	if !rep.Results[0].OK() || rep.Results[1].OK() {
		t.Fatalf("results = %+v", rep.Results)
	}
	if obs.counts["sent"] != 1 || obs.counts["failed"] != 1 {
		t.Fatalf("observer = %v", obs.counts)
	}
}

func TestNotifyInvalidDestinationStillDeliversValid(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	n := New(Config{RatePerSec: 100}, Deps{Adapter: ad}, logx.Nop())

	rep := n.Notify(context.Background(), judgeAlert(), []Destination{"not-a-chat", "-100:7"})
	if rep.Sent != 1 || rep.Failed != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if !errors.Is(rep.Results[0].Err, ErrInvalidDestination) {
		t.Fatalf("err = %v, want ErrInvalidDestination", rep.Results[0].Err)
	}
	if len(ad.chats) != 1 || ad.chats[0] != -100 {
		t.Fatalf("chats = %v", ad.chats)
	}
}

func TestNotifyRendersOnceForAllDestinations(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	n := New(Config{RatePerSec: 100}, Deps{Adapter: ad}, logx.Nop())

	n.Notify(context.Background(), judgeAlert(), []Destination{"-1", "-2", "-3"})
	if len(ad.texts) != 3 {
		t.Fatalf("texts = %d, want 3", len(ad.texts))
	}
	for _, s := range ad.texts[1:] {
		if s != ad.texts[0] {
			t.Fatal("destinations received different messages")
		}
	}
}

func TestNotifyRecoversAdapterPanic(t *testing.T) {
	t.Parallel()
	n := New(Config{RatePerSec: 100}, Deps{Adapter: &panicAdapter{}}, logx.Nop())
	rep := n.Notify(context.Background(), judgeAlert(), []Destination{"-1", "-2"})
	if rep.Failed != 2 || rep.Sent != 0 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestNotifyUsesPhotoWhenHeadshotSet(t *testing.T) {
	t.Parallel()
	ad := &photoAdapter{}
	n := New(Config{RatePerSec: 100}, Deps{Adapter: ad}, logx.Nop())
	a := judgeAlert()
	a.Player.HeadshotURL = "https://img.example/592450.png"

	n.Notify(context.Background(), a, []Destination{"-1"})
	if len(ad.photos) != 1 || ad.photos[0] != a.Player.HeadshotURL {
		t.Fatalf("photos = %v", ad.photos)
	}

	n = New(Config{RatePerSec: 100, DisablePhoto: true}, Deps{Adapter: ad}, logx.Nop())
	n.Notify(context.Background(), a, []Destination{"-1"})
	if len(ad.photos) != 1 {
		t.Fatalf("photo sent with DisablePhoto: %v", ad.photos)
	}
}

func TestNotifyRecordsAndPublishes(t *testing.T) {
	t.Parallel()
	st := &memStore{}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	ad := &fakeAdapter{fail: map[int64]error{-1: errors.New("blocked")}}
	n := New(Config{RatePerSec: 100}, Deps{Adapter: ad, Store: st, Bus: bus}, logx.Nop())
	n.Notify(context.Background(), judgeAlert(), []Destination{"-1"})

	if len(st.alerts) != 1 {
		t.Fatalf("records = %d, want 1", len(st.alerts))
	}
	r := st.alerts[0]
	if r.Distance != 412 || r.Failed != 1 || r.Source != "play-by-play" || r.At.IsZero() {
		t.Fatalf("record = %+v", r)
	}
	select {
	case e := <-events:
		if e.Type != eventbus.TypeAlertFailed {
			t.Fatalf("event = %q, want %q", e.Type, eventbus.TypeAlertFailed)
		}
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
}

func TestDestinationTarget(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in     Destination
		chat   int64
		thread int
		ok     bool
	}{
		{in: "-1001234", chat: -1001234, ok: true},
		{in: " -1001234:42 ", chat: -1001234, thread: 42, ok: true},
		{in: "", ok: false},
		{in: "general", ok: false},
		{in: "0", ok: false},
		{in: "-100:x", ok: false},
	}
	for _, tt := range tests {
		got, err := tt.in.Target()
		if (err == nil) != tt.ok {
			t.Fatalf("%q: err = %v, want ok=%v", tt.in, err, tt.ok)
		}
		if err != nil {
			if !errors.Is(err, ErrInvalidDestination) {
				t.Fatalf("%q: err = %v, want ErrInvalidDestination", tt.in, err)
			}
			continue
		}
		if got.ChatID != tt.chat || got.ThreadID != tt.thread {
			t.Fatalf("%q: got %+v", tt.in, got)
		}
	}
}

func TestRender(t *testing.T) {
	t.Parallel()
	a := judgeAlert()
	a.Detail.Opponent = "BOS"
	a.Detail.GameDate = time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)
	out := Render(a)
	for _, want := range []string{
		"AARON JUDGE HOME RUN!",
		"just hit a 2-run home run!",
		"<b>Season total:</b> 35 HR",
		"<b>Distance:</b> 412 ft",
		"Aaron Judge (#99, NYY)",
		"vs BOS · 2025-07-04",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}

	a = judgeAlert()
	a.Delta = 2
	a.Detail = detail.Default()
	a.Player.Name = "A<b>"
	out = Render(a)
	if !strings.Contains(out, "just hit 2 home runs!") || !strings.Contains(out, "Distance:</b> not available") {
		t.Fatalf("render = %s", out)
	}
	if strings.Contains(out, "A<b>") {
		t.Fatal("player name not escaped")
	}
}
