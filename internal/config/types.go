package config

// Config is the on-disk configuration (JSON or YAML). Durations are Go duration strings.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Stats    StatsConfig    `json:"stats"`
	Watcher  WatcherConfig  `json:"watcher"`
	Alerts   AlertsConfig   `json:"alerts"`
	Players  []PlayerConfig `json:"players"`
	Storage  *StorageConfig `json:"storage,omitempty"`
	Ops      OpsConfig      `json:"ops,omitempty"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// GroupLog is the chat that receives mirrored log lines ("chat" or "chat:thread").
	GroupLog    string `json:"group_log,omitempty"`
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StatsConfig points at the MLB Stats API and the Baseball Savant CSV export.
//
// Defaults:
//   - base_url: https://statsapi.mlb.com
//   - savant_url: https://baseballsavant.mlb.com
//   - timeout: "10s"
//   - rate_per_sec: 5
type StatsConfig struct {
	BaseURL    string `json:"base_url,omitempty"`
	SavantURL  string `json:"savant_url,omitempty"`
	Timeout    string `json:"timeout,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
}

// WatcherConfig controls the polling tick and the detail cascade bounds.
//
// Season months are inclusive and may wrap around the new year (e.g. 10..2).
// Season 0 means "the clock's current year".
type WatcherConfig struct {
	Schedule         string `json:"schedule"`
	Timezone         string `json:"timezone,omitempty"`
	SeasonStartMonth int    `json:"season_start_month"`
	SeasonEndMonth   int    `json:"season_end_month"`
	Season           int    `json:"season,omitempty"`

	// TickTimeout bounds one whole tick; "0s" disables it.
	TickTimeout   string `json:"tick_timeout,omitempty"`
	GameWindow    int    `json:"game_window,omitempty"`
	MaxGames      int    `json:"max_games,omitempty"`
	SavantTimeout string `json:"savant_timeout,omitempty"`
	DisableSavant bool   `json:"disable_savant,omitempty"`
}

// AlertsConfig lists where home-run alerts go. Destinations are "chat_id" or "chat_id:thread_id".
type AlertsConfig struct {
	Destinations []string `json:"destinations"`
	RatePerSec   int      `json:"rate_per_sec,omitempty"`
	SendTimeout  string   `json:"send_timeout,omitempty"`
	DisablePhoto bool     `json:"disable_photo,omitempty"`
}

type PlayerConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Team        string `json:"team,omitempty"`
	Number      string `json:"number,omitempty"`
	HeadshotURL string `json:"headshot_url,omitempty"`
}

// StorageConfig controls the alert/command audit log.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./hrbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// OpsConfig controls the operations HTTP server (/healthz, /metrics, /debug/pprof).
//
// Binding to a non-loopback address requires Token or AllowInsecure.
type OpsConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`

	MutexProfileFraction int `json:"mutex_profile_fraction,omitempty"`
	BlockProfileRate     int `json:"block_profile_rate,omitempty"`
}
