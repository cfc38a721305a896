// Package scheduler runs configured console commands at a fixed time of
// day or on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/craftcon/internal/client"
	"github.com/energizer-project/craftcon/internal/config"
	"github.com/energizer-project/craftcon/internal/events"
)

// Scheduler runs the enabled entries of the configured schedule.
type Scheduler struct {
	cfg      *config.Config
	eventBus *events.EventBus
	open     client.OpenFunc
	logger   zerolog.Logger

	// now is replaced in tests.
	now func() time.Time

	mu      sync.Mutex
	lastRun map[string]RunResult
}

// RunResult records the outcome of one scheduled execution.
type RunResult struct {
	Name     string        `json:"name"`
	Command  string        `json:"command"`
	At       time.Time     `json:"at"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// NewScheduler creates a new task scheduler. Every run opens its own
// session through open.
func NewScheduler(cfg *config.Config, eventBus *events.EventBus, open client.OpenFunc) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		eventBus: eventBus,
		open:     open,
		logger:   log.With().Str("component", "scheduler").Logger(),
		now:      time.Now,
		lastRun:  make(map[string]RunResult),
	}
}

// Start runs every enabled entry until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	var wg sync.WaitGroup
	started := 0

	for _, sc := range s.cfg.GetApplicationData().Schedule {
		if !sc.Enabled {
			continue
		}
		started++
		wg.Add(1)
		go func(sc config.ScheduledCommand) {
			defer wg.Done()
			s.loop(ctx, sc)
		}(sc)
	}

	s.logger.Info().Int("entries", started).Msg("scheduler started")

	<-ctx.Done()
	wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, sc config.ScheduledCommand) {
	for {
		wait, err := s.nextDelay(sc)
		if err != nil {
			s.logger.Error().Err(err).Str("entry", sc.Name).Msg("invalid schedule entry, skipping")
			return
		}

		s.logger.Debug().
			Str("entry", sc.Name).
			Time("next_run", s.now().Add(wait)).
			Msg("scheduled command armed")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.Run(ctx, sc)
		}
	}
}

// nextDelay returns how long to wait before the next run of sc.
func (s *Scheduler) nextDelay(sc config.ScheduledCommand) (time.Duration, error) {
	if sc.IntervalSec > 0 {
		return time.Duration(sc.IntervalSec) * time.Second, nil
	}
	next, err := NextDaily(s.now(), sc.At)
	if err != nil {
		return 0, err
	}
	return next.Sub(s.now()), nil
}

// NextDaily returns the next occurrence of the local wall-clock time at
// ("HH:MM") strictly after now.
func NextDaily(now time.Time, at string) (time.Time, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time of day %q: %w", at, err)
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}

// Run executes one scheduled entry immediately on a fresh session.
func (s *Scheduler) Run(ctx context.Context, sc config.ScheduledCommand) RunResult {
	start := s.now()
	res := RunResult{Name: sc.Name, Command: sc.Command, At: start}

	err := client.WithSession(ctx, s.open, func(sess client.Session) error {
		out, err := sess.Execute(ctx, sc.Command)
		res.Output = out
		return err
	})
	res.Duration = time.Since(start)

	if err != nil {
		res.Error = err.Error()
		s.logger.Warn().Err(err).Str("entry", sc.Name).Str("command", sc.Command).Msg("scheduled command failed")
	} else {
		s.logger.Info().Str("entry", sc.Name).Str("command", sc.Command).Msg("scheduled command executed")
	}

	s.mu.Lock()
	s.lastRun[sc.Name] = res
	s.mu.Unlock()

	s.eventBus.Emit(ctx, events.Event{
		Type:   events.EventCommandExecuted,
		Source: "scheduler",
		Payload: events.CommandExecutedPayload{
			Command:  sc.Command,
			Origin:   "schedule:" + sc.Name,
			Output:   res.Output,
			Error:    res.Error,
			Duration: res.Duration,
		},
	})

	if s.cfg.GetApplicationData().Discord.NotifyOnSchedule || err != nil {
		level, title := "info", "Scheduled Command"
		msg := fmt.Sprintf("`%s` ran: %s", sc.Command, truncate(res.Output, 200))
		if err != nil {
			level, title = "warning", "Scheduled Command Failed"
			msg = fmt.Sprintf("`%s` failed: %s", sc.Command, res.Error)
		}
		s.eventBus.Emit(ctx, events.Event{
			Type:    events.EventNotifyAdmin,
			Source:  "scheduler",
			Payload: events.NotifyAdminPayload{Title: title, Message: msg, Level: level},
		})
	}

	return res
}

// LastRuns returns the latest result of every entry that has run.
func (s *Scheduler) LastRuns() []RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RunResult, 0, len(s.lastRun))
	for _, r := range s.lastRun {
		out = append(out, r)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
