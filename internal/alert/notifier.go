package alert

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/time/rate"

	"hrbot/internal/eventbus"
	"hrbot/internal/storage"
	kit "hrbot/internal/transport"
	logx "hrbot/pkg/logx"
)

// Observer receives one call per delivery attempt with result "sent" or "failed".
type Observer interface {
	ObserveDelivery(result string, d time.Duration)
}

type Deps struct {
	Adapter kit.Adapter
	Store   storage.Store // optional
	Bus     eventbus.Bus  // optional
	Metrics Observer      // optional
}

// Notifier renders an alert once and delivers it to each destination in order.
// It holds no per-alert state.
type Notifier struct {
	cfg     Config
	deps    Deps
	log     logx.Logger
	limiter *rate.Limiter
}

func New(cfg Config, deps Deps, log logx.Logger) *Notifier {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 5
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	return &Notifier{
		cfg:     cfg,
		deps:    deps,
		log:     log.With(logx.String("comp", "alert")),
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Notify delivers a to every destination. Failures are per destination; Notify
// never panics and never retries.
func (n *Notifier) Notify(ctx context.Context, a Alert, dests []Destination) Report {
	start := time.Now()
	text := Render(a)
	rep := Report{Total: len(dests), Results: make([]Result, 0, len(dests))}

	for _, d := range dests {
		res := n.deliver(ctx, a, d, text)
		rep.Results = append(rep.Results, res)
		if res.Err != nil {
			rep.Failed++
			n.log.Warn("alert delivery failed",
				logx.String("player", a.Player.ID),
				logx.String("dest", string(d)),
				logx.Err(res.Err))
			n.observe("failed", res.Took)
			continue
		}
		rep.Sent++
		n.observe("sent", res.Took)
	}

	fields := []logx.Field{
		logx.String("player", a.Player.ID),
		logx.String("name", a.Player.Name),
		logx.Int("total", a.Total),
		logx.Int("delta", a.Delta),
		logx.Int("sent", rep.Sent),
		logx.Int("failed", rep.Failed),
		logx.Int("dests", rep.Total),
		logx.Duration("dur", time.Since(start)),
	}
	if rep.Failed > 0 {
		n.log.Warn("alert finished with failures", fields...)
	} else {
		n.log.Info("alert sent", fields...)
	}

	n.record(ctx, a, rep)
	n.publish(a, rep)
	return rep
}

func (n *Notifier) deliver(ctx context.Context, a Alert, d Destination, text string) (res Result) {
	res.Destination = d
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("panic in alert delivery", logx.String("dest", string(d)), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			res.Err = fmt.Errorf("panic: %v", r)
		}
		res.Took = time.Since(start)
	}()

	target, err := d.Target()
	if err != nil {
		res.Err = err
		return res
	}
	if n.deps.Adapter == nil {
		res.Err = errors.New("no chat adapter")
		return res
	}
	if err := n.limiter.Wait(ctx); err != nil {
		res.Err = err
		return res
	}

	sctx, cancel := context.WithTimeout(ctx, n.cfg.SendTimeout)
	defer cancel()
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}

	var ref kit.MessageRef
	if ps, ok := n.deps.Adapter.(kit.PhotoSender); ok && !n.cfg.DisablePhoto && a.Player.HeadshotURL != "" {
		ref, err = ps.SendPhoto(sctx, target, a.Player.HeadshotURL, text, opt)
	} else {
		ref, err = n.deps.Adapter.SendText(sctx, target, text, opt)
	}
	res.MessageID = ref.MessageID
	res.Err = err
	return res
}

func (n *Notifier) observe(result string, d time.Duration) {
	if n.deps.Metrics != nil {
		n.deps.Metrics.ObserveDelivery(result, d)
	}
}

func (n *Notifier) record(ctx context.Context, a Alert, rep Report) {
	if n.deps.Store == nil {
		return
	}
	r := storage.AlertRecord{
		At:         a.DetectedAt,
		PlayerID:   a.Player.ID,
		PlayerName: a.Player.Name,
		Season:     a.Season,
		Total:      a.Total,
		Delta:      a.Delta,
		RBI:        a.Detail.RBI,
		Category:   a.Detail.Category,
		GameID:     a.Detail.GameID,
		Source:     string(a.Detail.Source),
		Sent:       rep.Sent,
		Failed:     rep.Failed,
	}
	if a.Detail.Distance.Valid {
		r.Distance = a.Detail.Distance.Value
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	// Detach from a tick deadline; the audit write is short.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := n.deps.Store.AppendAlert(wctx, r); err != nil {
		n.log.Warn("alert audit write failed", logx.String("player", a.Player.ID), logx.Err(err))
	}
}

func (n *Notifier) publish(a Alert, rep Report) {
	if n.deps.Bus == nil {
		return
	}
	typ := eventbus.TypeAlertSent
	if rep.Sent == 0 && rep.Total > 0 {
		typ = eventbus.TypeAlertFailed
	}
	n.deps.Bus.Publish(eventbus.Event{Type: typ, Data: map[string]any{
		"player": a.Player.ID,
		"total":  a.Total,
		"delta":  a.Delta,
		"sent":   rep.Sent,
		"failed": rep.Failed,
	}})
}
