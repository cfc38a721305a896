// Package monitor runs the periodic checks: console reachability with a
// cached server summary, host resource sampling, and a telemetry heartbeat.
package monitor

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
	"github.com/energizer-project/craftcon/internal/minecraft"
	"github.com/energizer-project/craftcon/internal/util"
)

// Reachability of the console endpoint as last observed.
type Reachability string

const (
	ReachUnknown Reachability = "unknown"
	ReachUp      Reachability = "up"
	ReachDown    Reachability = "down"
)

// Snapshot is the result of the most recent summary poll.
type Snapshot struct {
	State     Reachability         `json:"state"`
	Since     time.Time            `json:"since"`
	CheckedAt time.Time            `json:"checked_at"`
	Error     string               `json:"error,omitempty"`
	Summary   client.Summary       `json:"summary,omitempty"`
	Players   minecraft.PlayerList `json:"players"`
	Host      *util.HostStats      `json:"host,omitempty"`
}

// Manager runs the periodic checks.
type Manager struct {
	cfg      *config.Config
	eventBus *events.EventBus
	open     client.OpenFunc
	logger   zerolog.Logger

	// sampleHost is replaced in tests.
	sampleHost func(path string) (util.HostStats, error)

	mu     sync.RWMutex
	latest Snapshot
	host   *util.HostStats
}

// NewManager creates a monitor. open supplies one console session per poll.
func NewManager(cfg *config.Config, eventBus *events.EventBus, open client.OpenFunc) *Manager {
	return &Manager{
		cfg:        cfg,
		eventBus:   eventBus,
		open:       open,
		logger:     log.With().Str("component", "monitor").Logger(),
		sampleHost: util.SampleHostStats,
		latest: Snapshot{
			State:   ReachUnknown,
			Since:   time.Now(),
			Players: minecraft.PlayerList{Players: []string{}},
		},
	}
}

// Start launches every enabled check and blocks until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	timers := m.cfg.GetApplicationData().Timers

	checks := []struct {
		name     string
		interval int
		fn       func(context.Context)
	}{
		{"summary_poll", timers.SummaryPollInterval, func(ctx context.Context) { m.PollSummary(ctx) }},
		{"host_stats", timers.HostStatsInterval, m.checkHostStats},
		{"heartbeat", timers.HeartbeatInterval, m.heartbeat},
	}

	var wg sync.WaitGroup
	started := 0
	for _, check := range checks {
		if check.interval <= 0 {
			continue
		}
		started++

		wg.Add(1)
		go func(name string, interval time.Duration, fn func(context.Context)) {
			defer wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			m.logger.Debug().Str("check", name).Msg("running initial check")
			fn(ctx)

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					fn(ctx)
				}
			}
		}(check.name, time.Duration(check.interval)*time.Second, check.fn)
	}

	m.logger.Info().Int("checks", started).Msg("monitor started")

	<-ctx.Done()
	wg.Wait()
	m.logger.Info().Msg("monitor stopped")
}

// Latest returns the most recent snapshot, including the last host sample.
func (m *Manager) Latest() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.latest
	s.Host = m.host
	return s
}

// LatestHost returns the last host sample, if any.
func (m *Manager) LatestHost() (util.HostStats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.host == nil {
		return util.HostStats{}, false
	}
	return *m.host, true
}

// PollSummary opens a console session, fetches the server summary, updates
// the cached snapshot and emits reachability transitions.
func (m *Manager) PollSummary(ctx context.Context) Snapshot {
	addr := m.cfg.GetRconData().ClientOptions().Addr()
	now := time.Now()

	next := Snapshot{CheckedAt: now, Players: minecraft.PlayerList{Players: []string{}}}

	err := client.WithSession(ctx, m.open, func(s client.Session) error {
		next.Summary = s.ServerSummary(ctx)
		return nil
	})
	if err != nil {
		next.State = ReachDown
		next.Error = err.Error()
	} else {
		next.State = ReachUp
		if !next.Summary.Failed("playerList") {
			next.Players = minecraft.ParsePlayerList(next.Summary["playerList"])
		}
	}

	m.mu.Lock()
	prev := m.latest
	if prev.State == next.State {
		next.Since = prev.Since
	} else {
		next.Since = now
	}
	m.latest = next
	m.mu.Unlock()

	m.emitTransition(ctx, addr, prev, next)

	if next.State == ReachUp {
		m.eventBus.Emit(ctx, events.Event{
			Type:   events.EventServerSummary,
			Source: "monitor",
			Payload: events.ServerSummaryPayload{
				Fields:  next.Summary,
				Online:  next.Players.Online,
				Max:     next.Players.Max,
				Players: next.Players.Players,
			},
		})
	}
	return next
}

func (m *Manager) emitTransition(ctx context.Context, addr string, prev, next Snapshot) {
	if prev.State == next.State {
		return
	}
	discord := m.cfg.GetApplicationData().Discord

	switch next.State {
	case ReachDown:
		m.logger.Warn().Str("addr", addr).Str("error", next.Error).Msg("console unreachable")
		m.eventBus.Emit(ctx, events.Event{
			Type:    events.EventServerDown,
			Source:  "monitor",
			Payload: events.ReachabilityPayload{Addr: addr, Reason: next.Error},
		})
		if discord.NotifyOnDown {
			m.notify(ctx, "Server Unreachable",
				fmt.Sprintf("Console at %s is not responding: %s", addr, next.Error), "error")
		}

	case ReachUp:
		// The first successful poll after startup is not a recovery.
		if prev.State == ReachUnknown {
			m.logger.Info().Str("addr", addr).Msg("console reachable")
			return
		}
		downtime := next.CheckedAt.Sub(prev.Since)
		m.logger.Info().Str("addr", addr).Dur("downtime", downtime).Msg("console reachable again")
		m.eventBus.Emit(ctx, events.Event{
			Type:    events.EventServerUp,
			Source:  "monitor",
			Payload: events.ReachabilityPayload{Addr: addr, Downed: downtime},
		})
		if discord.NotifyOnUp {
			m.notify(ctx, "Server Recovered",
				fmt.Sprintf("Console at %s is responding again after %s", addr, downtime.Round(time.Second)), "info")
		}
	}
}

func (m *Manager) notify(ctx context.Context, title, message, level string) {
	m.eventBus.Emit(ctx, events.Event{
		Type:    events.EventNotifyAdmin,
		Source:  "monitor",
		Payload: events.NotifyAdminPayload{Title: title, Message: message, Level: level},
	})
}

func (m *Manager) checkHostStats(ctx context.Context) {
	stats, err := m.sampleHost(".")
	if err != nil {
		m.logger.Warn().Err(err).Msg("host stats sample failed")
		return
	}

	m.mu.Lock()
	m.host = &stats
	m.mu.Unlock()

	m.logger.Trace().
		Float64("cpu", stats.CPUPercent).
		Float64("mem", stats.MemoryPercent).
		Msg("host stats sampled")

	m.eventBus.Emit(ctx, events.Event{
		Type:    events.EventHostStats,
		Source:  "monitor",
		Payload: stats,
	})
}

func (m *Manager) heartbeat(ctx context.Context) {
	snap := m.Latest()
	m.eventBus.Emit(ctx, events.Event{
		Type:   events.EventNotifyMQTT,
		Source: "heartbeat",
		Payload: events.NotifyMQTTPayload{
			Topic: "status",
			Payload: map[string]interface{}{
				"type":      "heartbeat",
				"state":     snap.State,
				"online":    snap.Players.Online,
				"max":       snap.Players.Max,
				"timestamp": time.Now().Unix(),
			},
		},
	})
}
