package config

import (
	"reflect"
	"strings"

	logx "hrbot/pkg/logx"
)

// Change describes what a reload touched.
//
// Live sections are applied in place. RestartRequired sections are logged and
// only take effect on the next start.
type Change struct {
	Live            []string
	RestartRequired []string
	Attrs           []logx.Field
}

func (c Change) Empty() bool { return len(c.Live) == 0 && len(c.RestartRequired) == 0 }

// SummarizeChange compares two configs. Attrs never include secrets.
func SummarizeChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch Change

	if oldCfg.Logging != newCfg.Logging {
		ch.Live = append(ch.Live, "logging")
		ch.Attrs = append(ch.Attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Telegram.OwnerUserIDs, newCfg.Telegram.OwnerUserIDs) {
		ch.Live = append(ch.Live, "owners")
		ch.Attrs = append(ch.Attrs, logx.Int("telegram.owner_count", len(newCfg.Telegram.OwnerUserIDs)))
	}
	if strings.TrimSpace(oldCfg.Telegram.GroupLog) != strings.TrimSpace(newCfg.Telegram.GroupLog) {
		ch.Live = append(ch.Live, "group_log")
	}

	if oldCfg.Telegram.Token != newCfg.Telegram.Token || oldCfg.Telegram.PollTimeout != newCfg.Telegram.PollTimeout {
		ch.RestartRequired = append(ch.RestartRequired, "telegram")
	}
	if !reflect.DeepEqual(oldCfg.Players, newCfg.Players) {
		ch.RestartRequired = append(ch.RestartRequired, "players")
		ch.Attrs = append(ch.Attrs, logx.Int("players.count", len(newCfg.Players)))
	}
	if !reflect.DeepEqual(oldCfg.Alerts, newCfg.Alerts) {
		ch.RestartRequired = append(ch.RestartRequired, "alerts")
		ch.Attrs = append(ch.Attrs, logx.Int("alerts.destinations", len(newCfg.Alerts.Destinations)))
	}
	if oldCfg.Watcher != newCfg.Watcher {
		ch.RestartRequired = append(ch.RestartRequired, "watcher")
		ch.Attrs = append(ch.Attrs, logx.String("watcher.schedule", newCfg.Watcher.Schedule))
	}
	if oldCfg.Stats != newCfg.Stats {
		ch.RestartRequired = append(ch.RestartRequired, "stats")
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		ch.RestartRequired = append(ch.RestartRequired, "storage")
	}
	if oldCfg.Ops != newCfg.Ops {
		ch.Live = append(ch.Live, "ops")
		ch.Attrs = append(ch.Attrs,
			logx.Bool("ops.enabled", newCfg.Ops.Enabled),
			logx.Bool("ops.token_set", strings.TrimSpace(newCfg.Ops.Token) != ""),
		)
	}
	return ch
}
