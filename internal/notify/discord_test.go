package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/energizer-project/craftcon/internal/config"
	"github.com/energizer-project/craftcon/internal/events"
)

func TestNotifyAdminPostsEmbed(t *testing.T) {
	received := make(chan map[string]interface{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		received <- body
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.ApplicationData.Discord.WebhookURL = srv.URL

	bus := events.NewEventBus()
	d := NewDiscord(cfg, bus)
	if !d.Enabled() {
		t.Fatal("expected notifier to be enabled")
	}

	err := bus.EmitSync(context.Background(), events.Event{
		Type:    events.EventNotifyAdmin,
		Payload: events.NotifyAdminPayload{Title: "Server Unreachable", Message: "down", Level: "error"},
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	bus.Stop()

	body := <-received
	embeds := body["embeds"].([]interface{})
	embed := embeds[0].(map[string]interface{})
	if embed["title"] != "Server Unreachable" || embed["description"] != "down" {
		t.Fatalf("embed = %v", embed)
	}
	if int(embed["color"].(float64)) != 0xFF5555 {
		t.Fatalf("color = %v", embed["color"])
	}
}

func TestSendReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad webhook", http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.ApplicationData.Discord.WebhookURL = srv.URL

	d := NewDiscord(cfg, events.NewEventBus())
	if err := d.Send(context.Background(), "t", "m", "info"); err == nil {
		t.Fatal("expected an error for a 404")
	}
}

func TestSendWithoutWebhookIsNoop(t *testing.T) {
	d := NewDiscord(config.DefaultConfig(), events.NewEventBus())
	if d.Enabled() {
		t.Fatal("no webhook configured")
	}
	if err := d.Send(context.Background(), "t", "m", "info"); err != nil {
		t.Fatalf("Send = %v", err)
	}
}
