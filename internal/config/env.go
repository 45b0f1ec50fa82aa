package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvBotToken  = "BOT_TOKEN"
	EnvChannelID = "CHANNEL_ID"
)

// LoadDotEnv loads KEY=VALUE pairs from files (default ".env") into the
// process environment. Existing variables win and missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

// applyEnv overrides the token and the alert destinations from the environment.
// CHANNEL_ID may hold a comma separated list.
func applyEnv(c *Config, lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvBotToken); ok && strings.TrimSpace(v) != "" {
		c.Telegram.Token = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvChannelID); ok && strings.TrimSpace(v) != "" {
		var dests []string
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				dests = append(dests, p)
			}
		}
		if len(dests) > 0 {
			c.Alerts.Destinations = dests
		}
	}
}
