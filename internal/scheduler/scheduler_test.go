package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	logx "hrbot/pkg/logx"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw   string
		every time.Duration
		ok    bool
	}{
		{raw: "*/5 * * * *", ok: true},
		{raw: "0 */2 * * * *", ok: true},
		{raw: "@hourly", ok: true},
		{raw: "@every 5m", every: 5 * time.Minute, ok: true},
		{raw: "5m", every: 5 * time.Minute, ok: true},
		{raw: "00:05", every: 5 * time.Minute, ok: true},
		{raw: "01:30", every: 90 * time.Minute, ok: true},
		{raw: "", ok: false},
		{raw: "100ms", ok: false},
		{raw: "61 * * * *", ok: false},
		{raw: "often", ok: false},
		{raw: "00:75", ok: false},
	}
	for _, tt := range tests {
		sp, err := ParseSchedule(tt.raw)
		if (err == nil) != tt.ok {
			t.Fatalf("ParseSchedule(%q) err = %v, want ok=%v", tt.raw, err, tt.ok)
		}
		if err == nil && sp.Every != tt.every {
			t.Fatalf("ParseSchedule(%q).Every = %v, want %v", tt.raw, sp.Every, tt.every)
		}
	}
}

func TestNewRejectsBadTimezone(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{Schedule: "5m", Timezone: "Mars/Olympus"}, func(context.Context) {}, logx.Nop()); err == nil {
		t.Fatal("expected timezone error")
	}
}

func TestSchedulerFiresAndStops(t *testing.T) {
	t.Parallel()
	var runs atomic.Int32
	s, err := New(Config{Schedule: "1s", Timezone: "UTC"}, func(ctx context.Context) { runs.Add(1) }, logx.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !s.Next().IsZero() {
		t.Fatal("Next before Start should be zero")
	}

	s.Start(context.Background())
	if s.Next().IsZero() {
		t.Fatal("Next after Start should be set")
	}
	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if runs.Load() == 0 {
		t.Fatal("job never fired")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	if !s.Next().IsZero() {
		t.Fatal("Next after Stop should be zero")
	}
}
