package detail

import (
	"strconv"
	"time"
)

// OptInt is an integer that may be unknown. Unknown is distinct from 0.
type OptInt struct {
	Value int
	Valid bool
}

func Some(v int) OptInt { return OptInt{Value: v, Valid: true} }

func (o OptInt) String() string {
	if !o.Valid {
		return "unknown"
	}
	return strconv.Itoa(o.Value)
}

// Source names the cascade step that produced an EventDetail.
type Source string

const (
	SourcePlayByPlay Source = "play-by-play"
	SourceGameLog    Source = "game-log"
	SourceDefault    Source = "default"
)

// EventDetail describes the most recent home run of an entity.
type EventDetail struct {
	Distance    OptInt
	RBI         int
	Category    string
	GameID      int64
	GameDate    time.Time
	Opponent    string
	Description string
	Source      Source
}

// Default is the terminal result of the cascade: distance unknown, solo.
func Default() EventDetail {
	return EventDetail{RBI: 1, Category: Category(1), Source: SourceDefault}
}

// Category labels a home run by the runs it drove in.
func Category(rbi int) string {
	switch rbi {
	case 1:
		return "solo"
	case 2:
		return "2-run"
	case 3:
		return "3-run"
	case 4:
		return "grand slam"
	default:
		return strconv.Itoa(rbi) + "-run"
	}
}
