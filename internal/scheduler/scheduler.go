package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "hrbot/pkg/logx"
)

type Config struct {
	Schedule string
	Timezone string // IANA name; empty means local time
}

// Scheduler fires one job on a cron schedule. A firing that lands while the
// previous run is still going is skipped.
type Scheduler struct {
	spec Spec
	loc  *time.Location
	job  func(ctx context.Context)
	log  logx.Logger

	mu     sync.Mutex
	c      *cron.Cron
	entry  cron.EntryID
	cancel context.CancelFunc
}

func New(cfg Config, job func(ctx context.Context), log logx.Logger) (*Scheduler, error) {
	spec, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	loc, err := LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		spec: spec,
		loc:  loc,
		job:  job,
		log:  log.With(logx.String("comp", "scheduler")),
	}, nil
}

// LoadLocation resolves an IANA zone name; empty means time.Local.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

func (s *Scheduler) Location() *time.Location { return s.loc }
func (s *Scheduler) Spec() Spec               { return s.spec }

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	cl := cronLogger{log: s.log}
	s.c = cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s.entry = s.c.Schedule(s.spec.schedule, cron.FuncJob(func() {
		if runCtx.Err() != nil {
			return
		}
		s.job(runCtx)
	}))
	s.c.Start()
	s.log.Info("scheduler started", logx.String("schedule", s.spec.Raw), logx.String("tz", s.loc.String()), logx.Time("next", s.nextLocked()))
}

// Stop stops new firings and waits for a running job until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	c, cancel := s.c, s.cancel
	s.c, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	cancel()
	select {
	case <-c.Stop().Done():
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out; job still running")
	}
}

// Next is the next planned firing, zero when not started.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextLocked()
}

func (s *Scheduler) nextLocked() time.Time {
	if s.c == nil {
		return time.Time{}
	}
	return s.c.Entry(s.entry).Next
}

// cronLogger routes cron's own logging into logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			k = fmt.Sprint(kv[i])
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
