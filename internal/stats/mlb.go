package stats

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Wire shapes. Only the fields the bot reads are declared; absent nested
// objects decode as nil and are tolerated.

type statsEnvelope struct {
	Stats []struct {
		Splits []statSplit `json:"splits"`
	} `json:"stats"`
}

type statSplit struct {
	Season   string    `json:"season"`
	Date     string    `json:"date"`
	Stat     *statLine `json:"stat"`
	Team     *named    `json:"team"`
	Opponent *named    `json:"opponent"`
	Game     *struct {
		GamePk int64 `json:"gamePk"`
	} `json:"game"`
}

type statLine struct {
	GamesPlayed int    `json:"gamesPlayed"`
	AtBats      int    `json:"atBats"`
	Hits        int    `json:"hits"`
	HomeRuns    *int   `json:"homeRuns"`
	RBI         int    `json:"rbi"`
	StolenBases int    `json:"stolenBases"`
	StrikeOuts  int    `json:"strikeOuts"`
	BaseOnBalls int    `json:"baseOnBalls"`
	Avg         string `json:"avg"`
	OBP         string `json:"obp"`
	SLG         string `json:"slg"`
	OPS         string `json:"ops"`
}

type named struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type playByPlayEnvelope struct {
	AllPlays *[]struct {
		Result struct {
			Event       string `json:"event"`
			EventType   string `json:"eventType"`
			Description string `json:"description"`
			RBI         *int   `json:"rbi"`
		} `json:"result"`
		Matchup struct {
			Batter *struct {
				ID int64 `json:"id"`
			} `json:"batter"`
		} `json:"matchup"`
		PlayEvents []struct {
			HitData *struct {
				TotalDistance *float64 `json:"totalDistance"`
			} `json:"hitData"`
		} `json:"playEvents"`
		Runners []struct {
			Movement *struct {
				Start string `json:"start"`
				End   string `json:"end"`
				IsOut bool   `json:"isOut"`
			} `json:"movement"`
		} `json:"runners"`
	} `json:"allPlays"`
}

type leadersEnvelope struct {
	LeagueLeaders []struct {
		LeaderCategory string `json:"leaderCategory"`
		Leaders        []struct {
			Rank   int    `json:"rank"`
			Value  string `json:"value"`
			Team   *named `json:"team"`
			Person *struct {
				ID       int64  `json:"id"`
				FullName string `json:"fullName"`
			} `json:"person"`
		} `json:"leaders"`
	} `json:"leagueLeaders"`
}

type peopleEnvelope struct {
	People []struct {
		ID            int64  `json:"id"`
		FullName      string `json:"fullName"`
		PrimaryNumber string `json:"primaryNumber"`
		CurrentTeam   *named `json:"currentTeam"`
	} `json:"people"`
}

func hittingQuery(kind string, season int) url.Values {
	q := url.Values{}
	q.Set("stats", kind)
	q.Set("group", "hitting")
	q.Set("season", strconv.Itoa(season))
	return q
}

func personPath(id string) (string, error) {
	id = strings.TrimSpace(id)
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return "", fmt.Errorf("%w: invalid player id %q", ErrUnavailable, id)
	}
	return "/api/v1/people/" + id, nil
}

// SeasonSnapshot returns the season hitting line. A player with no split yet
// (season not started for them) gets a zero line; a split without a homeRuns
// field is unavailable.
func (c *Client) SeasonSnapshot(ctx context.Context, id string, season int) (SeasonSnapshot, error) {
	p, err := personPath(id)
	if err != nil {
		return SeasonSnapshot{}, err
	}
	var env statsEnvelope
	if err := c.getJSON(ctx, "season", p+"/stats", hittingQuery("season", season), &env); err != nil {
		return SeasonSnapshot{}, err
	}
	if len(env.Stats) == 0 {
		return SeasonSnapshot{}, fmt.Errorf("%w: season: no stats block for %s", ErrUnavailable, id)
	}
	snap := SeasonSnapshot{Season: season}
	splits := env.Stats[0].Splits
	if len(splits) == 0 {
		return snap, nil
	}
	sp := splits[0]
	if sp.Stat == nil || sp.Stat.HomeRuns == nil {
		return SeasonSnapshot{}, fmt.Errorf("%w: season: missing homeRuns for %s", ErrUnavailable, id)
	}
	st := sp.Stat
	snap.HasLine = true
	snap.Games = st.GamesPlayed
	snap.AtBats = st.AtBats
	snap.Hits = st.Hits
	snap.HomeRuns = *st.HomeRuns
	snap.RBI = st.RBI
	snap.StolenBases = st.StolenBases
	snap.Strikeouts = st.StrikeOuts
	snap.Walks = st.BaseOnBalls
	snap.Avg, snap.OBP, snap.SLG, snap.OPS = st.Avg, st.OBP, st.SLG, st.OPS
	if sp.Team != nil {
		snap.Team = sp.Team.Name
	}
	return snap, nil
}

// HomeRunCount returns the season home-run total. On failure it returns prev
// together with the error so a failed read never looks like a reset. A missing
// split is only a zero while prev is zero too.
func (c *Client) HomeRunCount(ctx context.Context, id string, season, prev int) (int, error) {
	snap, err := c.SeasonSnapshot(ctx, id, season)
	if err != nil {
		return prev, err
	}
	if !snap.HasLine && prev > 0 {
		return prev, fmt.Errorf("%w: season: no split for %s", ErrUnavailable, id)
	}
	return snap.HomeRuns, nil
}

// RecentGameLog returns up to limit games, most recent first. limit <= 0 returns the whole season.
func (c *Client) RecentGameLog(ctx context.Context, id string, season, limit int) ([]GameSummary, error) {
	p, err := personPath(id)
	if err != nil {
		return nil, err
	}
	var env statsEnvelope
	if err := c.getJSON(ctx, "game_log", p+"/stats", hittingQuery("gameLog", season), &env); err != nil {
		return nil, err
	}
	if len(env.Stats) == 0 {
		return nil, fmt.Errorf("%w: game_log: no stats block for %s", ErrUnavailable, id)
	}
	out := make([]GameSummary, 0, len(env.Stats[0].Splits))
	for _, sp := range env.Stats[0].Splits {
		if sp.Stat == nil || sp.Game == nil {
			continue
		}
		g := GameSummary{GameID: sp.Game.GamePk, RBI: sp.Stat.RBI}
		if sp.Stat.HomeRuns != nil {
			g.HomeRuns = *sp.Stat.HomeRuns
		}
		if d, err := time.Parse("2006-01-02", sp.Date); err == nil {
			g.Date = d
		}
		if sp.Opponent != nil {
			g.Opponent = sp.Opponent.Name
		}
		out = append(out, g)
	}
	// The API lists oldest first; doubleheaders share a date so keep feed order within a day.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PlayByPlay returns every completed play of a game in chronological order.
func (c *Client) PlayByPlay(ctx context.Context, gameID int64) ([]PlayEvent, error) {
	if gameID <= 0 {
		return nil, fmt.Errorf("%w: invalid game id %d", ErrUnavailable, gameID)
	}
	var env playByPlayEnvelope
	path := "/api/v1/game/" + strconv.FormatInt(gameID, 10) + "/playByPlay"
	if err := c.getJSON(ctx, "play_by_play", path, nil, &env); err != nil {
		return nil, err
	}
	if env.AllPlays == nil {
		return nil, fmt.Errorf("%w: play_by_play: missing allPlays for game %d", ErrUnavailable, gameID)
	}
	plays := *env.AllPlays
	out := make([]PlayEvent, 0, len(plays))
	for _, p := range plays {
		ev := PlayEvent{
			Event:       p.Result.Event,
			EventType:   p.Result.EventType,
			Description: p.Result.Description,
			RBI:         p.Result.RBI,
		}
		if p.Matchup.Batter != nil {
			ev.BatterID = strconv.FormatInt(p.Matchup.Batter.ID, 10)
		}
		// The batted-ball event is the last pitch carrying hit data.
		for i := len(p.PlayEvents) - 1; i >= 0; i-- {
			hd := p.PlayEvents[i].HitData
			if hd != nil && hd.TotalDistance != nil && *hd.TotalDistance > 0 {
				d := int(*hd.TotalDistance + 0.5)
				ev.Distance = &d
				break
			}
		}
		for _, r := range p.Runners {
			if r.Movement == nil {
				continue
			}
			ev.Runners = append(ev.Runners, RunnerMovement{
				Start:  r.Movement.Start,
				End:    r.Movement.End,
				Scored: strings.EqualFold(r.Movement.End, "score") && !r.Movement.IsOut,
			})
		}
		out = append(out, ev)
	}
	return out, nil
}

// Leaders returns the league home-run leaderboard.
func (c *Client) Leaders(ctx context.Context, season, limit int) ([]Leader, error) {
	if limit <= 0 {
		limit = 10
	}
	q := url.Values{}
	q.Set("leaderCategories", "homeRuns")
	q.Set("statGroup", "hitting")
	q.Set("season", strconv.Itoa(season))
	q.Set("limit", strconv.Itoa(limit))
	var env leadersEnvelope
	if err := c.getJSON(ctx, "leaders", "/api/v1/stats/leaders", q, &env); err != nil {
		return nil, err
	}
	for _, cat := range env.LeagueLeaders {
		if cat.LeaderCategory != "" && cat.LeaderCategory != "homeRuns" {
			continue
		}
		out := make([]Leader, 0, len(cat.Leaders))
		for _, l := range cat.Leaders {
			if l.Person == nil {
				continue
			}
			v, _ := strconv.Atoi(strings.TrimSpace(l.Value))
			row := Leader{Rank: l.Rank, PlayerID: strconv.FormatInt(l.Person.ID, 10), Name: l.Person.FullName, Value: v}
			if l.Team != nil {
				row.Team = l.Team.Name
			}
			out = append(out, row)
		}
		if len(out) > limit {
			out = out[:limit]
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: leaders: no homeRuns category", ErrUnavailable)
}

// Person looks up a player's display data.
func (c *Client) Person(ctx context.Context, id string) (Person, error) {
	p, err := personPath(id)
	if err != nil {
		return Person{}, err
	}
	var env peopleEnvelope
	if err := c.getJSON(ctx, "person", p, nil, &env); err != nil {
		return Person{}, err
	}
	if len(env.People) == 0 {
		return Person{}, fmt.Errorf("%w: person: %s not found", ErrUnavailable, id)
	}
	pp := env.People[0]
	out := Person{ID: strconv.FormatInt(pp.ID, 10), Name: pp.FullName, Number: pp.PrimaryNumber}
	if pp.CurrentTeam != nil {
		out.Team = pp.CurrentTeam.Name
	}
	return out, nil
}
