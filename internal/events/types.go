// Package events defines the event bus and the events exchanged between
// craftcon components.
package events

import "time"

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Console activity
	EventCommandExecuted EventType = "command_executed"
	EventServerSummary   EventType = "server_summary"

	// Reachability transitions
	EventServerDown EventType = "server_down"
	EventServerUp   EventType = "server_up"

	EventHostStats EventType = "host_stats"

	// Notifications
	EventNotifyAdmin EventType = "notify_admin"
	EventNotifyMQTT  EventType = "notify_mqtt"

	// System
	EventConfigChanged EventType = "config_changed"
	EventShutdown      EventType = "shutdown"
)

// Event represents a single event in the system.
type Event struct {
	Type    EventType
	Source  string
	Time    time.Time
	Payload interface{}
}

func (e *Event) stamp() {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
}

// CommandExecutedPayload describes one console command run by any component.
type CommandExecutedPayload struct {
	Command    string        `json:"command"`
	Origin     string        `json:"origin"`
	Output     string        `json:"output,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
	RequestID  string        `json:"request_id,omitempty"`
	TokenLabel string        `json:"token,omitempty"`
}

// ServerSummaryPayload carries a polled server summary.
type ServerSummaryPayload struct {
	Fields  map[string]string `json:"fields"`
	Online  int               `json:"online"`
	Max     int               `json:"max"`
	Players []string          `json:"players"`
}

// ReachabilityPayload accompanies server_down and server_up.
type ReachabilityPayload struct {
	Addr   string        `json:"addr"`
	Reason string        `json:"reason,omitempty"`
	Downed time.Duration `json:"downtime_ns,omitempty"`
}

// NotifyAdminPayload is used for administrator notifications.
type NotifyAdminPayload struct {
	Title   string
	Message string
	Level   string // "info", "warning", "error"
}

// NotifyMQTTPayload publishes an arbitrary message on a telemetry topic
// suffix such as "status".
type NotifyMQTTPayload struct {
	Topic   string
	Payload interface{}
}

// ConfigChangedPayload is emitted when configuration changes occur.
type ConfigChangedPayload struct {
	Section string
	Key     string
	Value   interface{}
}
