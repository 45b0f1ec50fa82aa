package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilRecorderIsNoop(t *testing.T) {
	t.Parallel()
	var r *Recorder
	r.ObserveRequest("season", "ok", time.Millisecond)
	r.ObserveResolution("default")
	r.ObserveTick(time.Second, false)
	r.ObserveOutcome("no_change")
	r.SetLastCount("1", 3)
	r.ObserveDelivery("sent", time.Millisecond)
	r.ObserveCommand("hr", true)
	if r.Registry() != nil {
		t.Fatal("nil recorder returned a registry")
	}
}

func TestHandlerExposesRecordedSeries(t *testing.T) {
	t.Parallel()
	r := New()
	r.ObserveRequest("season", "ok", 20*time.Millisecond)
	r.ObserveResolution("play-by-play")
	r.ObserveTick(2*time.Second, false)
	r.ObserveTick(0, true)
	r.ObserveOutcome("increased")
	r.SetLastCount("592450", 35)
	r.ObserveDelivery("failed", time.Millisecond)
	r.ObserveCommand("check", false)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`hrbot_stats_requests_total{endpoint="season",result="ok"} 1`,
		`hrbot_detail_resolutions_total{source="play-by-play"} 1`,
		`hrbot_watch_ticks_total{skipped="true"} 1`,
		`hrbot_watch_ticks_total{skipped="false"} 1`,
		`hrbot_watch_entity_outcomes_total{outcome="increased"} 1`,
		`hrbot_watch_last_count{player="592450"} 35`,
		`hrbot_alert_deliveries_total{result="failed"} 1`,
		`hrbot_chat_commands_total{command="check",result="error"} 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
