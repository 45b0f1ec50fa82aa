package watcher

import (
	"errors"
	"time"

	"hrbot/internal/alert"
)

var ErrUnknownEntity = errors.New("unknown entity")

// Entity is one tracked player. Only the watcher changes LastCount and Primed.
type Entity struct {
	ID          string
	Name        string
	Team        string
	Number      string
	HeadshotURL string

	LastCount   int
	Primed      bool
	LastChecked time.Time
	LastOutcome Outcome
	LastError   string
}

func (e Entity) player() alert.Player {
	return alert.Player{ID: e.ID, Name: e.Name, Team: e.Team, Number: e.Number, HeadshotURL: e.HeadshotURL}
}

// Outcome is the per-entity result of one tick.
type Outcome string

const (
	OutcomeNoChange    Outcome = "no_change"
	OutcomeIncreased   Outcome = "increased"
	OutcomeDecreased   Outcome = "decreased"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomePrimed      Outcome = "primed"
	OutcomeFailed      Outcome = "failed"
)

type EntityResult struct {
	ID       string
	Name     string
	Outcome  Outcome
	Previous int
	Current  int
	Delta    int
	Err      error
	Report   *alert.Report // set when an alert was attempted
}

type TickReport struct {
	Season   int
	Started  time.Time
	Finished time.Time
	Skipped  bool // outside the season window
	Results  []EntityResult
}

// Count returns how many results had outcome o.
func (r TickReport) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}
