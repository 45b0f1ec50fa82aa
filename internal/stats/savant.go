package stats

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Savant reads the Baseball Savant Statcast search CSV export. It is only used
// to backfill a home run's distance and is best-effort.
type Savant struct {
	http    *http.Client
	base    string
	ua      string
	limiter *rate.Limiter
	obs     Observer
}

func NewSavant(cfg Config) *Savant {
	c := New(cfg)
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://baseballsavant.mlb.com"
	}
	return &Savant{http: c.http, base: base, ua: c.ua, limiter: c.limiter, obs: cfg.Observer}
}

var errNoSavantRow = errors.New("no matching home run row")

// Distance returns hit_distance_sc of the player's home run in gameID. With
// gameID 0 the most recent home run of the season is used.
func (s *Savant) Distance(ctx context.Context, playerID string, season int, gameID int64) (int, error) {
	q := url.Values{}
	q.Set("all", "true")
	q.Set("type", "details")
	q.Set("player_type", "batter")
	q.Set("hfAB", "home\\.\\.run|")
	q.Set("hfGT", "R|")
	q.Set("hfSea", strconv.Itoa(season)+"|")
	q.Set("batters_lookup[]", strings.TrimSpace(playerID))
	full := s.base + "/statcast_search/csv?" + q.Encode()

	body, err := fetchBody(ctx, s.http, s.limiter, s.ua, "savant", full, "text/csv", s.observe)
	if err != nil {
		return 0, err
	}
	d, err := parseSavantDistance(bytes.NewReader(body), gameID)
	if err != nil {
		return 0, fmt.Errorf("%w: savant: %v", ErrUnavailable, err)
	}
	return d, nil
}

func (s *Savant) observe(endpoint, result string, d time.Duration) {
	if s.obs != nil {
		s.obs.ObserveRequest(endpoint, result, d)
	}
}

// parseSavantDistance picks the home-run row for gameID (or the latest game when
// gameID is 0). Within one game the highest at_bat_number wins.
func parseSavantDistance(r io.Reader, gameID int64) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}
	for _, need := range []string{"hit_distance_sc", "events", "game_pk"} {
		if _, ok := col[need]; !ok {
			return 0, fmt.Errorf("missing column %q", need)
		}
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var (
		best     int
		bestDate string
		bestAB   = -1
		found    bool
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read row: %w", err)
		}
		if field(rec, "events") != "home_run" {
			continue
		}
		dist, err := strconv.ParseFloat(field(rec, "hit_distance_sc"), 64)
		if err != nil || dist <= 0 {
			continue
		}
		pk, _ := strconv.ParseInt(field(rec, "game_pk"), 10, 64)
		if gameID != 0 && pk != gameID {
			continue
		}
		date := field(rec, "game_date")
		ab, _ := strconv.Atoi(field(rec, "at_bat_number"))
		if found && (date < bestDate || (date == bestDate && ab <= bestAB)) {
			continue
		}
		best, bestDate, bestAB, found = int(dist+0.5), date, ab, true
	}
	if !found {
		return 0, errNoSavantRow
	}
	return best, nil
}
