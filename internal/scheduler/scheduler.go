package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"MarketPulse/internal/broker"
	"MarketPulse/internal/config"
	"MarketPulse/internal/model"
	"MarketPulse/internal/notifier"
	"MarketPulse/internal/observability"
	"MarketPulse/internal/recorder"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// CandleCollector fetches the current window of candles.
type CandleCollector interface {
	Collect(ctx context.Context, sess *broker.Session) ([]model.Candle, error)
}

// ChartRenderer turns candles into an image file owned by the caller.
type ChartRenderer interface {
	Render(candles []model.Candle, label string) (string, error)
}

// Notifier delivers text and photos to the chat.
type Notifier interface {
	SendText(text string) error
	SendPhoto(caption, path string) error
}

// SessionAcquirer logs in once before the loop starts.
type SessionAcquirer interface {
	Acquire(ctx context.Context) (*broker.Session, error)
}

// Scheduler runs the poll loop: one fetch, render, deliver cycle per tick.
type Scheduler struct {
	Collector CandleCollector
	Renderer  ChartRenderer
	Notifier  Notifier
	Recorder  recorder.Recorder
	Metrics   *observability.Metrics
	Logger    zerolog.Logger

	Label    string
	Window   int
	Interval time.Duration
	Schedule cron.Schedule // overrides Interval when set

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewScheduler creates a new Scheduler. A non-empty poll.Cron replaces the fixed interval.
func NewScheduler(poll config.Poll, label string, col CandleCollector, r ChartRenderer, n Notifier,
	rec recorder.Recorder, m *observability.Metrics, lg zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		Collector: col,
		Renderer:  r,
		Notifier:  n,
		Recorder:  rec,
		Metrics:   m,
		Logger:    lg,
		Label:     label,
		Window:    poll.Window,
		Interval:  poll.Interval(),
		Now:       time.Now,
		Sleep:     sleep,
	}
	if poll.Cron != "" {
		sched, err := cron.ParseStandard(poll.Cron)
		if err != nil {
			return nil, fmt.Errorf("parse poll cron %q: %w", poll.Cron, err)
		}
		s.Schedule = sched
	}
	if s.Recorder == nil {
		s.Recorder = recorder.NewNoopRecorder()
	}
	return s, nil
}

// Run sends the startup message, logs in and then polls until ctx is cancelled.
// Only a failed login ends it with an error.
func (s *Scheduler) Run(ctx context.Context, sessions SessionAcquirer) error {
	s.sendText(notifier.FormatStartup(s.Label, s.Interval))

	sess, err := sessions.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire session: %w", err)
	}
	s.Logger.Info().Str("label", s.Label).Dur("interval", s.Interval).Msg("poll loop started")

	for {
		s.RunCycle(ctx, sess)

		wait := s.nextWait(s.Now())
		s.Logger.Debug().Dur("wait", wait).Msg("sleeping")
		if err := s.Sleep(ctx, wait); err != nil {
			s.Logger.Info().Msg("poll loop stopped")
			return nil
		}
	}
}

// RunCycle performs one cycle. Failures are logged, counted and journalled, never returned.
func (s *Scheduler) RunCycle(ctx context.Context, sess *broker.Session) *recorder.CycleEvent {
	started := s.Now()
	evt := &recorder.CycleEvent{CycleID: uuid.NewString(), StartedAt: started}
	lg := s.Logger.With().Str("cycle", evt.CycleID).Logger()

	err := s.cycle(ctx, sess, evt, lg)
	evt.Duration = s.Now().Sub(started)

	var stageErr *StageError
	if errors.As(err, &stageErr) {
		evt.Outcome = recorder.OutcomeFailed
		evt.Stage = string(stageErr.Stage)
		evt.Error = stageErr.Err.Error()
		lg.Error().Str("stage", evt.Stage).Err(stageErr.Err).Msg("cycle failed")
	}

	s.Metrics.RecordCycle(evt.Outcome, evt.Stage, evt.Duration, evt.Candles)
	if err := s.Recorder.RecordCycle(evt); err != nil {
		lg.Error().Err(err).Msg("record cycle")
	}
	return evt
}

func (s *Scheduler) cycle(ctx context.Context, sess *broker.Session, evt *recorder.CycleEvent, lg zerolog.Logger) error {
	var candles []model.Candle
	if err := guard(StageFetch, func() (err error) {
		candles, err = s.Collector.Collect(ctx, sess)
		return err
	}); err != nil {
		return err
	}
	evt.Candles = len(candles)

	if len(candles) == 0 {
		evt.Outcome = recorder.OutcomeEmpty
		lg.Info().Msg("no candle data")
		return nil
	}

	window := candles
	if s.Window > 0 {
		window = lo.Subset(candles, -s.Window, uint(s.Window))
	}

	var path string
	if err := guard(StageRender, func() (err error) {
		path, err = s.Renderer.Render(window, s.Label)
		return err
	}); err != nil {
		return err
	}
	defer s.removeArtifact(path, lg)

	if info, err := os.Stat(path); err == nil {
		evt.ArtifactBytes = info.Size()
	}

	if err := guard(StageNotify, func() error {
		err := s.Notifier.SendPhoto(notifier.PhotoCaption(s.Label), path)
		s.Metrics.RecordNotification("photo", err)
		return err
	}); err != nil {
		return err
	}

	evt.Outcome = recorder.OutcomeOK
	lg.Info().
		Int("candles", len(candles)).
		Int("plotted", len(window)).
		Str("size", humanize.Bytes(uint64(evt.ArtifactBytes))).
		Msg("chart delivered")
	return nil
}

func (s *Scheduler) removeArtifact(path string, lg zerolog.Logger) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		lg.Warn().Err(err).Str("path", path).Msg("remove chart")
	}
}

func (s *Scheduler) nextWait(now time.Time) time.Duration {
	if s.Schedule != nil {
		// a zero Next means the schedule never fires again
		if next := s.Schedule.Next(now); !next.IsZero() {
			return next.Sub(now)
		}
	}
	return s.Interval
}

func (s *Scheduler) sendText(text string) {
	err := s.Notifier.SendText(text)
	s.Metrics.RecordNotification("text", err)
	if err != nil {
		s.Logger.Error().Err(err).Msg("send notification")
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
