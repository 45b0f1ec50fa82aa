package alert

import (
	"errors"
	"time"

	"hrbot/internal/detail"
)

var ErrInvalidDestination = errors.New("invalid destination")

// Player is the descriptive part of a tracked entity as seen by the notifier.
type Player struct {
	ID          string
	Name        string
	Team        string
	Number      string
	HeadshotURL string
}

// Alert is one detected increase, built once per event.
type Alert struct {
	Player     Player
	Total      int
	Delta      int
	Season     int
	Detail     detail.EventDetail
	DetectedAt time.Time
}

// Result is the outcome for one destination.
type Result struct {
	Destination Destination
	MessageID   int
	Err         error
	Took        time.Duration
}

func (r Result) OK() bool { return r.Err == nil }

// Report summarizes one fan-out.
type Report struct {
	Sent    int
	Failed  int
	Total   int
	Results []Result
}

type Config struct {
	RatePerSec   int
	SendTimeout  time.Duration
	DisablePhoto bool
}
