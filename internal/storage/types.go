package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines files next to Path
//   - "sqlite": SQLite database file (pure Go driver)
//
// An empty Driver or "none" disables storage.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AlertRecord is one completed alert fan-out.
type AlertRecord struct {
	At         time.Time `json:"at"`
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Season     int       `json:"season"`
	Total      int       `json:"total"`
	Delta      int       `json:"delta"`
	RBI        int       `json:"rbi"`
	Category   string    `json:"category"`
	Distance   int       `json:"distance,omitempty"` // 0 when unknown
	GameID     int64     `json:"game_id,omitempty"`
	Source     string    `json:"source"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
}

// AuditEntry records one chat command.
type AuditEntry struct {
	At            time.Time `json:"at"`
	ActorID       int64     `json:"actor_id"`
	ActorUsername string    `json:"actor_username,omitempty"`
	ChatID        int64     `json:"chat_id"`
	ThreadID      int       `json:"thread_id,omitempty"`
	Command       string    `json:"command"`
	Args          string    `json:"args,omitempty"`
	OK            bool      `json:"ok"`
	Error         string    `json:"error,omitempty"`
	TookMS        int64     `json:"took_ms"`
}
