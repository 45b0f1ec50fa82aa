package detail

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"hrbot/internal/stats"
	logx "hrbot/pkg/logx"
)

// GameSource is the subset of the stats client the cascade reads.
type GameSource interface {
	RecentGameLog(ctx context.Context, id string, season, limit int) ([]stats.GameSummary, error)
	PlayByPlay(ctx context.Context, gameID int64) ([]stats.PlayEvent, error)
}

// DistanceSource backfills a distance keyed by player and game.
type DistanceSource interface {
	Distance(ctx context.Context, playerID string, season int, gameID int64) (int, error)
}

// Observer is told which cascade step produced each detail.
type Observer interface {
	ObserveResolution(source string)
}

type Config struct {
	// GameWindow is how many recent game-log rows the play-by-play scan considers.
	GameWindow int
	// MaxGames caps play-by-play fetches per resolution.
	MaxGames      int
	SavantTimeout time.Duration
}

type Resolver struct {
	games  GameSource
	savant DistanceSource
	cfg    Config
	obs    Observer
	log    logx.Logger
}

// New builds a resolver. savant and obs may be nil.
func New(games GameSource, savant DistanceSource, cfg Config, obs Observer, log logx.Logger) *Resolver {
	if cfg.GameWindow <= 0 {
		cfg.GameWindow = 10
	}
	if cfg.MaxGames <= 0 {
		cfg.MaxGames = 3
	}
	if cfg.SavantTimeout <= 0 {
		cfg.SavantTimeout = 5 * time.Second
	}
	return &Resolver{games: games, savant: savant, cfg: cfg, obs: obs, log: log.With(logx.String("comp", "detail"))}
}

// Resolve finds the best available detail for entityID's latest home run.
// It never fails; when every step comes up empty it returns Default().
func (r *Resolver) Resolve(ctx context.Context, entityID string, season int) EventDetail {
	log := r.log.With(logx.String("entity", entityID))

	d, err := r.fromPlayByPlay(ctx, entityID, season)
	if err == nil {
		return r.finish(ctx, log, entityID, season, d)
	}
	log.Debug("play-by-play scan gave up", logx.Err(err))

	d, err = r.fromGameLog(ctx, entityID, season)
	if err == nil {
		return r.finish(ctx, log, entityID, season, d)
	}
	log.Debug("game-log fallback gave up", logx.Err(err))

	d = Default()
	r.observe(d.Source)
	return d
}

func (r *Resolver) finish(ctx context.Context, log logx.Logger, entityID string, season int, d EventDetail) EventDetail {
	if !d.Distance.Valid {
		d.Distance = r.backfillDistance(ctx, log, entityID, season, d.GameID)
	}
	d.Category = Category(d.RBI)
	r.observe(d.Source)
	return d
}

func (r *Resolver) observe(s Source) {
	if r.obs != nil {
		r.obs.ObserveResolution(string(s))
	}
}

// fromPlayByPlay scans the most recent qualifying games, newest first, plays
// newest first. The first home run by the entity wins.
func (r *Resolver) fromPlayByPlay(ctx context.Context, entityID string, season int) (EventDetail, error) {
	var games []stats.GameSummary
	err := guard("game log", func() (err error) {
		games, err = r.games.RecentGameLog(ctx, entityID, season, r.cfg.GameWindow)
		return err
	})
	if err != nil {
		return EventDetail{}, err
	}

	fetched := 0
	for _, g := range games {
		if g.HomeRuns <= 0 {
			continue
		}
		if fetched >= r.cfg.MaxGames {
			break
		}
		fetched++

		var plays []stats.PlayEvent
		err := guard("play-by-play", func() (err error) {
			plays, err = r.games.PlayByPlay(ctx, g.GameID)
			return err
		})
		if err != nil {
			r.log.Debug("play-by-play fetch failed", logx.Int64("game_id", g.GameID), logx.Err(err))
			continue
		}
		for i := len(plays) - 1; i >= 0; i-- {
			p := plays[i]
			if !IsHomeRunBy(p, entityID) {
				continue
			}
			d := EventDetail{
				GameID:      g.GameID,
				GameDate:    g.Date,
				Opponent:    g.Opponent,
				Description: p.Description,
				Source:      SourcePlayByPlay,
			}
			err := guard("extract", func() error {
				d.Distance = ExtractDistance(p)
				d.RBI = ExtractRBI(p)
				return nil
			})
			if err != nil {
				return EventDetail{}, err
			}
			return d, nil
		}
	}
	if fetched == 0 {
		return EventDetail{}, fmt.Errorf("no game with a home run in the last %d", r.cfg.GameWindow)
	}
	return EventDetail{}, fmt.Errorf("no home run play found in %d games", fetched)
}

// fromGameLog uses the most recent season game-log row with a home run.
// The log has no play detail, so distance stays unknown.
func (r *Resolver) fromGameLog(ctx context.Context, entityID string, season int) (EventDetail, error) {
	var games []stats.GameSummary
	err := guard("season game log", func() (err error) {
		games, err = r.games.RecentGameLog(ctx, entityID, season, 0)
		return err
	})
	if err != nil {
		return EventDetail{}, err
	}
	for _, g := range games {
		if g.HomeRuns <= 0 {
			continue
		}
		return EventDetail{
			RBI:      gameLogRBI(g.HomeRuns, g.RBI),
			GameID:   g.GameID,
			GameDate: g.Date,
			Opponent: g.Opponent,
			Source:   SourceGameLog,
		}, nil
	}
	return EventDetail{}, fmt.Errorf("no home run in %d season games", len(games))
}

// gameLogRBI estimates one home run's RBI from a box-score line. Lines with
// several home runs share the RBI evenly, rounded up.
func gameLogRBI(homeRuns, rbi int) int {
	if homeRuns > 1 {
		rbi = (rbi + homeRuns - 1) / homeRuns
	}
	return max(1, min(rbi, 4))
}

func (r *Resolver) backfillDistance(ctx context.Context, log logx.Logger, entityID string, season int, gameID int64) OptInt {
	if r.savant == nil {
		return OptInt{}
	}
	sctx, cancel := context.WithTimeout(ctx, r.cfg.SavantTimeout)
	defer cancel()
	var dist int
	err := guard("savant", func() (err error) {
		dist, err = r.savant.Distance(sctx, entityID, season, gameID)
		return err
	})
	if err != nil || dist <= 0 {
		log.Debug("distance backfill failed", logx.Int64("game_id", gameID), logx.Err(err))
		return OptInt{}
	}
	return Some(dist)
}

// guard runs fn and turns a panic into an error.
func guard(step string, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s panicked: %v\n%s", step, p, debug.Stack())
		}
	}()
	return fn()
}
