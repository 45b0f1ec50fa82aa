package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Spec is a parsed tick schedule.
//
// Accepted forms:
//   - cron: "*/5 * * * *", "0 */2 * * * *" (seconds optional), "@hourly", "@every 5m"
//   - Go duration: "5m", "90s"
//   - HH:MM interval: "00:05"
type Spec struct {
	Raw      string
	Every    time.Duration // set for interval forms
	schedule cron.Schedule
}

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

var hhmm = regexp.MustCompile(`^(\d{1,3}):([0-5]\d)$`)

// ParseSchedule validates raw and returns its Spec.
func ParseSchedule(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("schedule required")
	}
	if strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@") {
		sched, err := parser.Parse(s)
		if err != nil {
			return Spec{}, fmt.Errorf("invalid cron schedule %q: %w", raw, err)
		}
		sp := Spec{Raw: s, schedule: sched}
		if d, ok := sched.(cron.ConstantDelaySchedule); ok {
			sp.Every = d.Delay
		}
		return sp, nil
	}

	every, err := parseInterval(s)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid schedule %q (use cron like '*/5 * * * *' or a duration like '5m'): %w", raw, err)
	}
	return Spec{Raw: s, Every: every, schedule: cron.Every(every)}, nil
}

func parseInterval(s string) (time.Duration, error) {
	var d time.Duration
	if m := hhmm.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		d = time.Duration(h)*time.Hour + time.Duration(mm)*time.Minute
	} else {
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, err
		}
	}
	if d < time.Second {
		return 0, fmt.Errorf("interval must be at least 1s")
	}
	return d, nil
}
