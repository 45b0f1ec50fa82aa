package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalJSON = `{
  "telegram": {"token": "abc", "owner_user_ids": [1]},
  "logging": {"level": "info", "console": true},
  "watcher": {"schedule": "*/5 * * * *", "season_start_month": 3, "season_end_month": 10},
  "alerts": {"destinations": ["-100123"]},
  "players": [{"id": "592450", "name": "Aaron Judge", "team": "NYY", "number": "99"}]
}`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func noEnv(string) (string, bool) { return "", false }

func TestLoadAppliesDefaults(t *testing.T) {
	m := NewConfigManager(writeFile(t, "config.json", minimalJSON))
	m.lookup = noEnv
	cfg, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Stats.BaseURL != DefaultStatsBaseURL {
		t.Fatalf("base_url = %q", cfg.Stats.BaseURL)
	}
	if cfg.Watcher.GameWindow != 10 || cfg.Watcher.MaxGames != 3 {
		t.Fatalf("cascade bounds = %d/%d, want 10/3", cfg.Watcher.GameWindow, cfg.Watcher.MaxGames)
	}
	if !strings.Contains(cfg.Players[0].HeadshotURL, "/people/592450/") {
		t.Fatalf("headshot = %q", cfg.Players[0].HeadshotURL)
	}
	if m.Get() != cfg {
		t.Fatal("loaded config not committed")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	body := strings.Replace(minimalJSON, `"logging"`, `"bogus": 1, "logging"`, 1)
	m := NewConfigManager(writeFile(t, "config.json", body))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestParseYAML(t *testing.T) {
	body := `
telegram:
  token: abc
alerts:
  destinations: ["-100123:7"]
players:
  - id: "660271"
    name: Shohei Ohtani
`
	m := NewConfigManager(writeFile(t, "config.yaml", body))
	m.lookup = noEnv
	cfg, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Players[0].Name != "Shohei Ohtani" || cfg.Alerts.Destinations[0] != "-100123:7" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Watcher.SeasonStartMonth != 4 || cfg.Watcher.SeasonEndMonth != 10 {
		t.Fatalf("season = %d..%d", cfg.Watcher.SeasonStartMonth, cfg.Watcher.SeasonEndMonth)
	}
}

func TestEnvOverrides(t *testing.T) {
	m := NewConfigManager(writeFile(t, "config.json", minimalJSON))
	env := map[string]string{EnvBotToken: " fromenv ", EnvChannelID: "-1, -2:5 ,"}
	m.lookup = func(k string) (string, bool) { v, ok := env[k]; return v, ok }
	cfg, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "fromenv" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if got := strings.Join(cfg.Alerts.Destinations, "|"); got != "-1|-2:5" {
		t.Fatalf("destinations = %q", got)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		c := &Config{
			Telegram: TelegramConfig{Token: "t"},
			Alerts:   AlertsConfig{Destinations: []string{"1"}},
			Players:  []PlayerConfig{{ID: "1", Name: "A"}},
		}
		applyDefaults(c)
		return c
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "missing token", mutate: func(c *Config) { c.Telegram.Token = "" }, wantErr: "telegram.token"},
		{name: "no destinations", mutate: func(c *Config) { c.Alerts.Destinations = nil }, wantErr: "alerts.destinations"},
		{name: "duplicate player", mutate: func(c *Config) {
			c.Players = append(c.Players, PlayerConfig{ID: "1", Name: "B"})
		}, wantErr: "duplicated"},
		{name: "bad month", mutate: func(c *Config) { c.Watcher.SeasonEndMonth = 13 }, wantErr: "season_end_month"},
		{name: "bad duration", mutate: func(c *Config) { c.Alerts.SendTimeout = "soon" }, wantErr: "alerts.send_timeout"},
		{name: "bad driver", mutate: func(c *Config) { c.Storage = &StorageConfig{Driver: "redis"} }, wantErr: "storage.driver"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base()
			tt.mutate(c)
			err := Validate(c)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	a := &Config{Logging: LoggingConfig{Level: "info"}, Players: []PlayerConfig{{ID: "1", Name: "A"}}}
	b := &Config{Logging: LoggingConfig{Level: "debug"}, Players: []PlayerConfig{{ID: "2", Name: "B"}}}
	ch := SummarizeChange(a, b)
	if strings.Join(ch.Live, ",") != "logging" {
		t.Fatalf("live = %v", ch.Live)
	}
	if strings.Join(ch.RestartRequired, ",") != "players" {
		t.Fatalf("restart = %v", ch.RestartRequired)
	}
	if !SummarizeChange(a, a).Empty() {
		t.Fatal("identical configs should produce no change")
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("x", "", 3*time.Second)
	if err != nil || d != 3*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
	if _, err := ParseDurationOrDefault("x", "-1s", time.Second); err == nil {
		t.Fatal("negative duration should fail")
	}
}

func TestWatchPublishesValidChanges(t *testing.T) {
	path := writeFile(t, "config.json", minimalJSON)
	m := NewConfigManager(path)
	m.lookup = noEnv
	if _, err := m.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	sub := m.Subscribe(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	updated := strings.Replace(minimalJSON, `"level": "info"`, `"level": "debug"`, 1)
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case cfg := <-sub:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("level = %q", cfg.Logging.Level)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no config published")
	}
}
