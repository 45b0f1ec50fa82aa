package app

import (
	"fmt"
	"strings"
	"time"

	"hrbot/internal/alert"
	"hrbot/internal/config"
	"hrbot/internal/detail"
	"hrbot/internal/observability/ops"
	"hrbot/internal/scheduler"
	"hrbot/internal/storage"
	"hrbot/internal/watcher"
	logx "hrbot/pkg/logx"
)

// settings is the config resolved into component configs. Building it is the
// single place where duration strings are parsed.
type settings struct {
	pollTimeout  time.Duration
	statsTimeout time.Duration
	logging      logx.Config
	storage      storage.Config
	storageOn    bool
	alerts       alert.Config
	detail       detail.Config
	watcher      watcher.Config
	schedule     scheduler.Config
	ops          ops.Config
}

func resolve(cfg *config.Config) (settings, error) {
	var s settings
	var err error
	if s.pollTimeout, err = config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second); err != nil {
		return s, err
	}
	if s.statsTimeout, err = config.ParseDurationOrDefault("stats.timeout", cfg.Stats.Timeout, 10*time.Second); err != nil {
		return s, err
	}
	s.logging = mapLogging(cfg)
	if s.storage, s.storageOn, err = mapStorage(cfg); err != nil {
		return s, err
	}
	if s.alerts, err = mapAlerts(cfg); err != nil {
		return s, err
	}
	if s.detail, err = mapDetail(cfg); err != nil {
		return s, err
	}
	if s.watcher, err = mapWatcher(cfg); err != nil {
		return s, err
	}
	s.schedule = scheduler.Config{Schedule: cfg.Watcher.Schedule, Timezone: cfg.Watcher.Timezone}
	if s.ops, err = mapOps(cfg); err != nil {
		return s, err
	}
	return s, nil
}

func mapLogging(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Chat: logx.ChatConfig{
			Enabled:    l.Telegram.Enabled,
			ThreadID:   l.Telegram.ThreadID,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

func mapStorage(cfg *config.Config) (storage.Config, bool, error) {
	if cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	switch driver {
	case "", "none":
		return storage.Config{}, false, nil
	case "file", "sqlite", "sqlite3":
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
	path := strings.TrimSpace(sc.Path)
	if path == "" {
		return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=%s", driver)
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
}

func mapAlerts(cfg *config.Config) (alert.Config, error) {
	timeout, err := config.ParseDurationOrDefault("alerts.send_timeout", cfg.Alerts.SendTimeout, 15*time.Second)
	if err != nil {
		return alert.Config{}, err
	}
	return alert.Config{
		RatePerSec:   cfg.Alerts.RatePerSec,
		SendTimeout:  timeout,
		DisablePhoto: cfg.Alerts.DisablePhoto,
	}, nil
}

func mapDetail(cfg *config.Config) (detail.Config, error) {
	st, err := config.ParseDurationOrDefault("watcher.savant_timeout", cfg.Watcher.SavantTimeout, 5*time.Second)
	if err != nil {
		return detail.Config{}, err
	}
	return detail.Config{
		GameWindow:    cfg.Watcher.GameWindow,
		MaxGames:      cfg.Watcher.MaxGames,
		SavantTimeout: st,
	}, nil
}

func mapWatcher(cfg *config.Config) (watcher.Config, error) {
	wc := cfg.Watcher
	tick, err := config.ParseDurationField("watcher.tick_timeout", wc.TickTimeout)
	if err != nil {
		return watcher.Config{}, err
	}
	loc, err := scheduler.LoadLocation(wc.Timezone)
	if err != nil {
		return watcher.Config{}, err
	}
	return watcher.Config{
		Season: watcher.Season{
			StartMonth: time.Month(wc.SeasonStartMonth),
			EndMonth:   time.Month(wc.SeasonEndMonth),
			Year:       wc.Season,
			Location:   loc,
		},
		TickTimeout:  tick,
		Destinations: alert.ParseDestinations(cfg.Alerts.Destinations),
	}, nil
}

func mapOps(cfg *config.Config) (ops.Config, error) {
	o := cfg.Ops
	rt, err := config.ParseDurationOrDefault("ops.read_timeout", o.ReadTimeout, 10*time.Second)
	if err != nil {
		return ops.Config{}, err
	}
	// pprof profile/trace stream for up to 30s by default.
	wt, err := config.ParseDurationOrDefault("ops.write_timeout", o.WriteTimeout, 60*time.Second)
	if err != nil {
		return ops.Config{}, err
	}
	it, err := config.ParseDurationOrDefault("ops.idle_timeout", o.IdleTimeout, 60*time.Second)
	if err != nil {
		return ops.Config{}, err
	}
	return ops.Config{
		Enabled:              o.Enabled,
		Addr:                 o.Addr,
		Token:                o.Token,
		AllowInsecure:        o.AllowInsecure,
		Pprof:                o.Pprof,
		ReadTimeout:          rt,
		WriteTimeout:         wt,
		IdleTimeout:          it,
		MutexProfileFraction: o.MutexProfileFraction,
		BlockProfileRate:     o.BlockProfileRate,
	}, nil
}

func entities(players []config.PlayerConfig) []watcher.Entity {
	out := make([]watcher.Entity, 0, len(players))
	for _, p := range players {
		out = append(out, watcher.Entity{
			ID:          strings.TrimSpace(p.ID),
			Name:        strings.TrimSpace(p.Name),
			Team:        p.Team,
			Number:      p.Number,
			HeadshotURL: p.HeadshotURL,
		})
	}
	return out
}

// validate is installed on the config manager so reloads are checked the same way as startup.
func validate(cfg *config.Config) error {
	if _, err := scheduler.ParseSchedule(cfg.Watcher.Schedule); err != nil {
		return fmt.Errorf("watcher.schedule: %w", err)
	}
	if _, err := resolve(cfg); err != nil {
		return err
	}
	if g := strings.TrimSpace(cfg.Telegram.GroupLog); g != "" {
		if _, err := alert.Destination(g).Target(); err != nil {
			return fmt.Errorf("telegram.group_log: %w", err)
		}
	}
	return nil
}
