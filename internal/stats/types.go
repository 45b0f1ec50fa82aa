package stats

import (
	"errors"
	"time"
)

// ErrUnavailable wraps every transport, status, decode and missing-field failure.
var ErrUnavailable = errors.New("stats unavailable")

// SeasonSnapshot is one player's hitting line for a season. Rate stats are kept
// as the API formats them (".312").
type SeasonSnapshot struct {
	Season      int
	HasLine     bool // false when the player has no split for the season yet
	Team        string
	Games       int
	AtBats      int
	Hits        int
	HomeRuns    int
	RBI         int
	StolenBases int
	Strikeouts  int
	Walks       int
	Avg         string
	OBP         string
	SLG         string
	OPS         string
}

// GameSummary is one row of a player's game log.
type GameSummary struct {
	Date     time.Time
	GameID   int64
	Opponent string
	HomeRuns int
	RBI      int
}

// PlayEvent is one completed plate appearance from a game feed. Optional
// values are nil when the feed did not carry them.
type PlayEvent struct {
	BatterID    string
	Event       string
	EventType   string
	Description string
	RBI         *int
	Distance    *int
	Runners     []RunnerMovement
}

type RunnerMovement struct {
	Start  string
	End    string
	Scored bool
}

// Leader is one row of the league home-run leaderboard.
type Leader struct {
	Rank     int
	PlayerID string
	Name     string
	Team     string
	Value    int
}

type Person struct {
	ID     string
	Name   string
	Number string
	Team   string
}
