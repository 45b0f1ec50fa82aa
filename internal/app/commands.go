package app

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	rtsup "hrbot/internal/runtime/supervisor"
	"hrbot/internal/stats"
	"hrbot/internal/storage"
	kit "hrbot/internal/transport"
	"hrbot/internal/transport/telegram/router"
	"hrbot/internal/watcher"
	logx "hrbot/pkg/logx"
)

const troubleReply = "Sorry, I had trouble getting the stats right now!"

const (
	defaultLeaders = 10
	maxLeaders     = 25
)

var htmlOpts = &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}

// statsLookup is the part of the stats client commands use directly.
type statsLookup interface {
	Leaders(ctx context.Context, season, limit int) ([]stats.Leader, error)
	Person(ctx context.Context, id string) (stats.Person, error)
}

type handlers struct {
	watch    *watcher.Watcher
	stats    statsLookup
	store    storage.Store         // optional
	nextTick func() time.Time      // optional
	counters func() rtsup.Counters // optional
	now      func() time.Time
}

func (a *App) commands() []router.Command {
	h := &handlers{
		watch:    a.watch,
		stats:    a.stats,
		store:    a.store,
		nextTick: a.sched.Next,
		counters: func() rtsup.Counters { return a.sup.Counters() },
		now:      time.Now,
	}
	return h.commands()
}

func (h *handlers) commands() []router.Command {
	return []router.Command{
		{
			Name:        "hr",
			Aliases:     []string{"homeruns"},
			Description: "season line for a player",
			Usage:       "/hr [player]",
			Timeout:     30 * time.Second,
			Handle:      h.hr,
		},
		{
			Name:        "players",
			Description: "tracked players and baselines",
			Usage:       "/players",
			Timeout:     5 * time.Second,
			Handle:      h.players,
		},
		{
			Name:        "leaders",
			Aliases:     []string{"top"},
			Description: "league home run leaders",
			Usage:       "/leaders [n]",
			Timeout:     15 * time.Second,
			Handle:      h.leaders,
		},
		{
			Name:        "check",
			Description: "run a check now",
			Usage:       "/check",
			Access:      router.AccessOwnerOnly,
			Timeout:     2 * time.Minute,
			Handle:      h.check,
		},
		{
			Name:        "debug",
			Description: "watcher diagnostics",
			Usage:       "/debug",
			Access:      router.AccessOwnerOnly,
			Timeout:     10 * time.Second,
			Handle:      h.debug,
		},
	}
}

// trouble answers with the generic failure text and hands err back to the
// middleware, which logs it.
func trouble(ctx context.Context, req *router.Request, err error) error {
	_ = req.Reply(ctx, troubleReply, nil)
	return err
}

func (h *handlers) hr(ctx context.Context, req *router.Request) error {
	query := strings.TrimSpace(strings.Join(req.Args, " "))
	if query == "" {
		return h.hrAll(ctx, req)
	}

	if e, ok := h.watch.Registry().Find(query); ok {
		snap, err := h.watch.SeasonSnapshot(ctx, e.ID)
		if err != nil {
			return trouble(ctx, req, fmt.Errorf("season snapshot %s: %w", e.ID, err))
		}
		return req.Reply(ctx, formatSnapshot(e.Name, e.Team, e.Number, snap), htmlOpts)
	}

	if isNumericID(query) {
		p, err := h.stats.Person(ctx, query)
		if err != nil {
			return trouble(ctx, req, fmt.Errorf("person %s: %w", query, err))
		}
		snap, err := h.watch.SeasonSnapshot(ctx, p.ID)
		if err != nil {
			return trouble(ctx, req, fmt.Errorf("season snapshot %s: %w", p.ID, err))
		}
		team := p.Team
		if snap.Team != "" {
			team = snap.Team
		}
		return req.Reply(ctx, formatSnapshot(p.Name, team, p.Number, snap), htmlOpts)
	}

	return req.Reply(ctx, fmt.Sprintf("I'm not tracking %q. Try /players, or pass an MLB player id.", query), nil)
}

func (h *handlers) hrAll(ctx context.Context, req *router.Request) error {
	ents := h.watch.Entities()
	if len(ents) == 0 {
		return req.Reply(ctx, "No players are being tracked.", nil)
	}
	lines := []string{fmt.Sprintf("⚾ <b>Home runs, %d</b>", h.watch.Season()), ""}
	failed := 0
	var lastErr error
	for _, e := range ents {
		snap, err := h.watch.SeasonSnapshot(ctx, e.ID)
		if err != nil {
			failed++
			lastErr = err
			req.Logger.Debug("season snapshot failed", logx.String("entity", e.ID), logx.Err(err))
			lines = append(lines, fmt.Sprintf("• %s: n/a", html.EscapeString(e.Name)))
			continue
		}
		lines = append(lines, fmt.Sprintf("• %s: <b>%d</b>", html.EscapeString(e.Name), snap.HomeRuns))
	}
	if failed == len(ents) {
		return trouble(ctx, req, fmt.Errorf("all %d snapshots failed: %w", failed, lastErr))
	}
	return req.Reply(ctx, strings.Join(lines, "\n"), htmlOpts)
}

func (h *handlers) players(ctx context.Context, req *router.Request) error {
	ents := h.watch.Entities()
	if len(ents) == 0 {
		return req.Reply(ctx, "No players are being tracked.", nil)
	}
	lines := []string{fmt.Sprintf("👀 <b>Tracked players</b> (%d)", len(ents)), ""}
	for _, e := range ents {
		base := "not primed yet"
		if e.Primed {
			base = fmt.Sprintf("%d HR", e.LastCount)
		}
		lines = append(lines, fmt.Sprintf("• %s%s: %s", html.EscapeString(e.Name), html.EscapeString(suffix(e.Number, e.Team)), base))
	}
	return req.Reply(ctx, strings.Join(lines, "\n"), htmlOpts)
}

func (h *handlers) leaders(ctx context.Context, req *router.Request) error {
	n := defaultLeaders
	if len(req.Args) > 0 {
		v, err := strconv.Atoi(req.Args[0])
		if err != nil || v <= 0 {
			return req.Reply(ctx, fmt.Sprintf("usage: /leaders [n], n between 1 and %d", maxLeaders), nil)
		}
		n = min(v, maxLeaders)
	}
	season := h.watch.Season()
	rows, err := h.stats.Leaders(ctx, season, n)
	if err != nil {
		return trouble(ctx, req, fmt.Errorf("leaders: %w", err))
	}
	if len(rows) == 0 {
		return req.Reply(ctx, fmt.Sprintf("No home run leaders for %d yet.", season), nil)
	}
	lines := []string{fmt.Sprintf("🏆 <b>HR leaders, %d</b>", season), ""}
	for _, r := range rows {
		line := fmt.Sprintf("%d. %s", r.Rank, html.EscapeString(r.Name))
		if r.Team != "" {
			line += " (" + html.EscapeString(r.Team) + ")"
		}
		lines = append(lines, fmt.Sprintf("%s: <b>%d</b>", line, r.Value))
	}
	return req.Reply(ctx, strings.Join(lines, "\n"), htmlOpts)
}

func (h *handlers) check(ctx context.Context, req *router.Request) error {
	_ = req.Reply(ctx, "Running a check…", nil)
	rep, err := h.watch.RunCheckCycle(ctx)
	if err != nil {
		return trouble(ctx, req, fmt.Errorf("check cycle: %w", err))
	}
	// The cycle may outlast the command deadline; the summary still goes out.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return req.Reply(rctx, formatTick(rep), htmlOpts)
}

func (h *handlers) debug(ctx context.Context, req *router.Request) error {
	now := h.now()
	var b strings.Builder
	b.WriteString("🛠 <b>Debug</b>\n\n")
	fmt.Fprintf(&b, "Season: %d (in season: %t)\n", h.watch.Season(), h.watch.InSeason())
	fmt.Fprintf(&b, "Last check: %s\n", ago(now, h.watch.LastCheck()))
	if h.nextTick != nil {
		if next := h.nextTick(); !next.IsZero() {
			fmt.Fprintf(&b, "Next tick: %s (in %s)\n", next.Format(time.RFC3339), next.Sub(now).Round(time.Second))
		} else {
			b.WriteString("Next tick: not scheduled\n")
		}
	}
	fmt.Fprintf(&b, "Destinations: %d\n", len(h.watch.Destinations()))
	if h.counters != nil {
		c := h.counters()
		fmt.Fprintf(&b, "Goroutines: active=%d started=%d panics=%d\n", c.Active, c.Started, c.Panics)
	}

	b.WriteString("\n<b>Players</b>\n")
	for _, e := range h.watch.Entities() {
		state := "unprimed"
		if e.Primed {
			state = strconv.Itoa(e.LastCount)
		}
		fmt.Fprintf(&b, "• %s [%s] %s", html.EscapeString(e.Name), html.EscapeString(e.ID), state)
		if e.LastOutcome != "" {
			fmt.Fprintf(&b, " · %s %s", e.LastOutcome, ago(now, e.LastChecked))
		}
		if e.LastError != "" {
			fmt.Fprintf(&b, " · <code>%s</code>", html.EscapeString(truncate(e.LastError, 120)))
		}
		b.WriteString("\n")
	}

	if h.store != nil {
		recent, err := h.store.RecentAlerts(ctx, 5)
		if err != nil {
			req.Logger.Warn("recent alerts lookup failed", logx.Err(err))
		}
		if len(recent) > 0 {
			b.WriteString("\n<b>Recent alerts</b>\n")
			for _, r := range recent {
				fmt.Fprintf(&b, "• %s %s #%d (+%d) sent %d/%d\n",
					r.At.In(now.Location()).Format("Jan 2 15:04"), html.EscapeString(r.PlayerName),
					r.Total, r.Delta, r.Sent, r.Sent+r.Failed)
			}
		}
	}
	return req.Reply(ctx, strings.TrimRight(b.String(), "\n"), htmlOpts)
}

func formatSnapshot(name, team, number string, s stats.SeasonSnapshot) string {
	lines := []string{
		fmt.Sprintf("⚾ <b>%s</b>%s · %d", html.EscapeString(name), html.EscapeString(suffix(number, team)), s.Season),
		"",
		fmt.Sprintf("<b>Home runs:</b> %d", s.HomeRuns),
		fmt.Sprintf("<b>RBI:</b> %d", s.RBI),
	}
	if s.Avg != "" {
		lines = append(lines, fmt.Sprintf("<b>AVG/OBP/SLG:</b> %s/%s/%s (OPS %s)",
			html.EscapeString(s.Avg), html.EscapeString(s.OBP), html.EscapeString(s.SLG), html.EscapeString(s.OPS)))
	}
	lines = append(lines, fmt.Sprintf("<i>G %d · AB %d · H %d · BB %d · K %d · SB %d</i>",
		s.Games, s.AtBats, s.Hits, s.Walks, s.Strikeouts, s.StolenBases))
	return strings.Join(lines, "\n")
}

func formatTick(r watcher.TickReport) string {
	took := r.Finished.Sub(r.Started).Round(10 * time.Millisecond)
	lines := []string{fmt.Sprintf("✅ <b>Check done</b> in %s (%d players)", took, len(r.Results))}
	if n := r.Count(watcher.OutcomeIncreased); n > 0 {
		lines = append(lines, fmt.Sprintf("New home runs: %d", n))
	} else {
		lines = append(lines, "No new home runs.")
	}
	for _, o := range []watcher.Outcome{watcher.OutcomePrimed, watcher.OutcomeDecreased, watcher.OutcomeUnavailable, watcher.OutcomeFailed} {
		if n := r.Count(o); n > 0 {
			lines = append(lines, fmt.Sprintf("%s: %d", o, n))
		}
	}
	for _, res := range r.Results {
		if res.Outcome != watcher.OutcomeIncreased || res.Report == nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("• %s %d → %d, delivered %d/%d",
			html.EscapeString(res.Name), res.Previous, res.Current, res.Report.Sent, res.Report.Total))
	}
	return strings.Join(lines, "\n")
}

func suffix(number, team string) string {
	var parts []string
	if number = strings.TrimSpace(number); number != "" {
		parts = append(parts, "#"+number)
	}
	if team = strings.TrimSpace(team); team != "" {
		parts = append(parts, team)
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func isNumericID(s string) bool {
	if s == "" || len(s) > 10 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func ago(now, t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return now.Sub(t).Round(time.Second).String() + " ago"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
