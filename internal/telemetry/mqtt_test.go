package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/energizer-project/craftcon/internal/config"
	"github.com/energizer-project/craftcon/internal/events"
)

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (doneToken) Error() error { return nil }

type message struct {
	topic string
	body  map[string]interface{}
}

type fakeBroker struct {
	mu   sync.Mutex
	msgs []message
}

func (b *fakeBroker) IsConnected() bool { return true }

func (b *fakeBroker) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	var body map[string]interface{}
	json.Unmarshal(payload.([]byte), &body)
	b.mu.Lock()
	b.msgs = append(b.msgs, message{topic: topic, body: body})
	b.mu.Unlock()
	return doneToken{}
}

func (b *fakeBroker) topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, m := range b.msgs {
		out = append(out, m.topic)
	}
	return out
}

func newTestHandler(t *testing.T) (*MQTTHandler, *fakeBroker, *events.EventBus) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.ApplicationData.MQTT.Enabled = true
	cfg.ApplicationData.MQTT.BrokerURL = "localhost"

	bus := events.NewEventBus()
	h, err := NewMQTTHandler(cfg, bus, "test")
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	fb := &fakeBroker{}
	h.broker = fb
	h.subscribeEvents()
	return h, fb, bus
}

func TestDisabled(t *testing.T) {
	if _, err := NewMQTTHandler(config.DefaultConfig(), events.NewEventBus(), "test"); err == nil {
		t.Fatal("expected an error when MQTT is disabled")
	}
}

func TestEventsAreMirroredToTopics(t *testing.T) {
	h, fb, bus := newTestHandler(t)
	ctx := context.Background()

	bus.EmitSync(ctx, events.Event{Type: events.EventServerSummary, Payload: events.ServerSummaryPayload{Online: 2}})
	bus.EmitSync(ctx, events.Event{Type: events.EventCommandExecuted, Payload: events.CommandExecutedPayload{Command: "list"}})
	bus.EmitSync(ctx, events.Event{Type: events.EventServerDown, Payload: events.ReachabilityPayload{Addr: "x"}})
	bus.EmitSync(ctx, events.Event{Type: events.EventNotifyMQTT, Payload: events.NotifyMQTTPayload{Topic: "host", Payload: 1}})
	h.PublishShutdown()
	bus.Stop()

	want := []string{"craftcon/summary", "craftcon/commands", "craftcon/status", "craftcon/host", "craftcon/admin"}
	got := fb.topics()
	if len(got) != len(want) {
		t.Fatalf("topics = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("topics = %v, want %v", got, want)
		}
	}

	first := fb.msgs[0].body
	if first["app_version"] != "test" || first["timestamp"] == nil {
		t.Fatalf("metadata missing: %v", first)
	}
	payload := first["payload"].(map[string]interface{})
	if payload["online"].(float64) != 2 {
		t.Fatalf("payload = %v", payload)
	}

	status := fb.msgs[2].body["payload"].(map[string]interface{})
	if status["event"] != "server_down" {
		t.Fatalf("status event = %v", status["event"])
	}
}
