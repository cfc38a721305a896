package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/energizer-project/craftcon/internal/events"
)

// AuditEntry is one console command recorded by craftcon.
type AuditEntry struct {
	ID         int64     `json:"id"`
	Command    string    `json:"command"`
	Origin     string    `json:"origin"`
	Actor      string    `json:"actor,omitempty"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecordCommand appends an audit entry.
func (d *Database) RecordCommand(e AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := d.Exec(
		`INSERT INTO command_audit (command, origin, actor, success, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Command, e.Origin, e.Actor, boolInt(e.Success), e.Error, e.DurationMS, e.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record command: %w", err)
	}
	return nil
}

// RecentCommands returns up to limit entries, newest first.
func (d *Database) RecentCommands(limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.Query(
		`SELECT id, command, origin, actor, success, error, duration_ms, created_at
		 FROM command_audit ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var (
			e       AuditEntry
			success int
			created int64
		)
		if err := rows.Scan(&e.ID, &e.Command, &e.Origin, &e.Actor, &success, &e.Error, &e.DurationMS, &created); err != nil {
			return nil, err
		}
		e.Success = success != 0
		e.CreatedAt = time.UnixMilli(created).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PruneCommands removes entries older than the given age.
func (d *Database) PruneCommands(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	res, err := d.Exec("DELETE FROM command_audit WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit log: %w", err)
	}
	return res.RowsAffected()
}

// SubscribeAudit records every command_executed event on the bus.
func (d *Database) SubscribeAudit(bus *events.EventBus) {
	bus.Subscribe(events.EventCommandExecuted, "db.audit", func(_ context.Context, event events.Event) error {
		p, ok := event.Payload.(events.CommandExecutedPayload)
		if !ok {
			return nil
		}
		err := d.RecordCommand(AuditEntry{
			Command:    p.Command,
			Origin:     p.Origin,
			Actor:      p.TokenLabel,
			Success:    p.Error == "",
			Error:      p.Error,
			DurationMS: p.Duration.Milliseconds(),
			CreatedAt:  event.Time,
		})
		if err != nil {
			log.Warn().Err(err).Str("command", p.Command).Msg("audit write failed")
		}
		return err
	})
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
