// Package notify delivers administrator notifications to a Discord webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/craftcon/internal/config"
	"github.com/energizer-project/craftcon/internal/events"
)

// Discord posts notify_admin events to the configured webhook.
type Discord struct {
	cfg    *config.Config
	client *http.Client
	logger zerolog.Logger
}

// NewDiscord creates the notifier and subscribes it to notify_admin.
func NewDiscord(cfg *config.Config, eventBus *events.EventBus) *Discord {
	d := &Discord{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: log.With().Str("component", "discord").Logger(),
	}

	eventBus.Subscribe(events.EventNotifyAdmin, "discord.notify", d.onNotifyAdmin)
	return d
}

// Enabled reports whether a webhook is configured.
func (d *Discord) Enabled() bool {
	return d.cfg.GetApplicationData().Discord.WebhookURL != ""
}

// Send posts one embed. It is a no-op when no webhook is configured.
func (d *Discord) Send(ctx context.Context, title, message, level string) error {
	webhookURL := d.cfg.GetApplicationData().Discord.WebhookURL
	if webhookURL == "" {
		d.logger.Trace().Str("title", title).Msg("no webhook configured, notification dropped")
		return nil
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       title,
				"description": message,
				"color":       levelColor(level),
				"timestamp":   time.Now().Format(time.RFC3339),
				"footer": map[string]string{
					"text": "craftcon",
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	d.logger.Debug().Str("title", title).Msg("webhook notification sent")
	return nil
}

func levelColor(level string) int {
	switch level {
	case "error", "critical":
		return 0xFF5555
	case "warning":
		return 0xFFAA00
	default:
		return 0x55FF55
	}
}

func (d *Discord) onNotifyAdmin(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.NotifyAdminPayload)
	if !ok {
		return nil
	}
	return d.Send(ctx, payload.Title, payload.Message, payload.Level)
}
