package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultStatsBaseURL  = "https://statsapi.mlb.com"
	DefaultSavantBaseURL = "https://baseballsavant.mlb.com"
	DefaultSchedule      = "*/5 * * * *"

	headshotTemplate = "https://img.mlbstatic.com/mlb-photos/image/upload/d_people:generic:headshot:67:current.png/w_213,q_auto:best/v1/people/%s/headshot/67/current"
)

// applyDefaults fills zero values in place. Durations stay strings and are
// resolved by ParseDurationOrDefault at the call site.
func applyDefaults(c *Config) {
	if strings.TrimSpace(c.Stats.BaseURL) == "" {
		c.Stats.BaseURL = DefaultStatsBaseURL
	}
	if strings.TrimSpace(c.Stats.SavantURL) == "" {
		c.Stats.SavantURL = DefaultSavantBaseURL
	}
	if c.Stats.RatePerSec <= 0 {
		c.Stats.RatePerSec = 5
	}
	if strings.TrimSpace(c.Watcher.Schedule) == "" {
		c.Watcher.Schedule = DefaultSchedule
	}
	if c.Watcher.SeasonStartMonth == 0 && c.Watcher.SeasonEndMonth == 0 {
		c.Watcher.SeasonStartMonth, c.Watcher.SeasonEndMonth = 4, 10
	}
	if c.Watcher.GameWindow <= 0 {
		c.Watcher.GameWindow = 10
	}
	if c.Watcher.MaxGames <= 0 {
		c.Watcher.MaxGames = 3
	}
	if c.Alerts.RatePerSec <= 0 {
		c.Alerts.RatePerSec = 1
	}
	for i := range c.Players {
		p := &c.Players[i]
		p.ID = strings.TrimSpace(p.ID)
		if strings.TrimSpace(p.HeadshotURL) == "" && p.ID != "" {
			p.HeadshotURL = fmt.Sprintf(headshotTemplate, p.ID)
		}
	}
}

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault returns def when raw is empty or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
