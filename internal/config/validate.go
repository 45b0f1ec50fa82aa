package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate reports every problem found in c at once. Callers treat a non-nil
// result at startup as fatal.
func Validate(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if strings.TrimSpace(c.Telegram.Token) == "" {
		add("telegram.token is required (or set %s)", EnvBotToken)
	}
	if len(c.Alerts.Destinations) == 0 {
		add("alerts.destinations needs at least one chat (or set %s)", EnvChannelID)
	}
	if len(c.Players) == 0 {
		add("players needs at least one entry")
	}
	seen := map[string]bool{}
	for i, p := range c.Players {
		id := strings.TrimSpace(p.ID)
		switch {
		case id == "":
			add("players[%d].id is required", i)
		case seen[id]:
			add("players[%d].id %q is duplicated", i, id)
		}
		seen[id] = true
		if strings.TrimSpace(p.Name) == "" {
			add("players[%d].name is required", i)
		}
	}
	if m := c.Watcher.SeasonStartMonth; m < 1 || m > 12 {
		add("watcher.season_start_month must be 1..12, got %d", m)
	}
	if m := c.Watcher.SeasonEndMonth; m < 1 || m > 12 {
		add("watcher.season_end_month must be 1..12, got %d", m)
	}
	if tz := strings.TrimSpace(c.Watcher.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add("watcher.timezone: %v", err)
		}
	}
	for path, raw := range map[string]string{
		"telegram.poll_timeout":  c.Telegram.PollTimeout,
		"stats.timeout":          c.Stats.Timeout,
		"watcher.tick_timeout":   c.Watcher.TickTimeout,
		"watcher.savant_timeout": c.Watcher.SavantTimeout,
		"alerts.send_timeout":    c.Alerts.SendTimeout,
		"ops.read_timeout":       c.Ops.ReadTimeout,
		"ops.write_timeout":      c.Ops.WriteTimeout,
		"ops.idle_timeout":       c.Ops.IdleTimeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
		case "", "none", "file", "sqlite", "sqlite3":
		default:
			add("storage.driver %q is not supported (file, sqlite)", c.Storage.Driver)
		}
	}
	return errors.Join(errs...)
}
