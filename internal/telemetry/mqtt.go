// Package telemetry publishes craftcon events to an MQTT broker.
package telemetry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/craftcon/internal/config"
	"github.com/energizer-project/craftcon/internal/events"
	"github.com/energizer-project/craftcon/internal/util"
)

// Topic suffixes, joined to the configured prefix.
const (
	TopicSummary      = "summary"
	TopicAvailability = "availability"
	TopicCommands     = "commands"
	TopicHost         = "host"
	TopicStatus       = "status"
	TopicAdmin        = "admin"
)

// broker is the subset of mqtt.Client used for publishing.
type broker interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTHandler owns the broker connection and mirrors bus events to topics.
type MQTTHandler struct {
	cfg      *config.Config
	eventBus *events.EventBus
	prefix   string
	logger   zerolog.Logger

	conn   mqtt.Client
	broker broker

	// Metadata included in every message
	metadata map[string]interface{}
}

// NewMQTTHandler creates the handler. It does not connect until Start.
func NewMQTTHandler(cfg *config.Config, eventBus *events.EventBus, version string) (*MQTTHandler, error) {
	mqttCfg := cfg.GetApplicationData().MQTT
	if !mqttCfg.Enabled {
		return nil, fmt.Errorf("MQTT is disabled")
	}

	sysInfo := util.GetSystemInfo()
	h := &MQTTHandler{
		cfg:      cfg,
		eventBus: eventBus,
		prefix:   mqttCfg.TopicPrefix,
		logger:   log.With().Str("component", "mqtt").Logger(),
		metadata: map[string]interface{}{
			"hostname":    sysInfo.Hostname,
			"os":          sysInfo.OS,
			"app_version": version,
			"rcon_addr":   cfg.GetRconData().ClientOptions().Addr(),
		},
	}
	if h.prefix == "" {
		h.prefix = "craftcon"
	}

	scheme := "tcp"
	if mqttCfg.UseTLS {
		scheme = "ssl"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, mqttCfg.BrokerURL, mqttCfg.Port))

	if mqttCfg.ClientID != "" {
		opts.SetClientID(mqttCfg.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("craftcon-%s", sysInfo.Hostname))
	}
	if mqttCfg.Username != "" {
		opts.SetUsername(mqttCfg.Username)
		opts.SetPassword(mqttCfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(true)
	opts.SetWill(h.topic(TopicAvailability), "offline", 1, true)

	if mqttCfg.UseTLS {
		tlsConfig, err := buildTLSConfig(mqttCfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		h.logger.Info().Msg("MQTT connected")
		c.Publish(h.topic(TopicAvailability), 1, true, "online")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		h.logger.Warn().Err(err).Msg("MQTT connection lost")
	})

	h.conn = mqtt.NewClient(opts)
	h.broker = h.conn
	return h, nil
}

func buildTLSConfig(mqttCfg config.MQTTConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if mqttCfg.CertFile != "" && mqttCfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(mqttCfg.CertFile, mqttCfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load MQTT TLS certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if mqttCfg.CAFile != "" {
		pem, err := os.ReadFile(mqttCfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read MQTT CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", mqttCfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}

// Start connects to the broker, mirrors events until ctx is cancelled,
// then announces shutdown and disconnects.
func (h *MQTTHandler) Start(ctx context.Context) error {
	mqttCfg := h.cfg.GetApplicationData().MQTT
	h.logger.Info().
		Str("broker", mqttCfg.BrokerURL).
		Int("port", mqttCfg.Port).
		Msg("connecting to MQTT broker")

	token := h.conn.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	h.subscribeEvents()

	<-ctx.Done()

	h.PublishShutdown()
	h.conn.Publish(h.topic(TopicAvailability), 1, true, "offline").WaitTimeout(2 * time.Second)
	h.conn.Disconnect(5000)
	h.logger.Info().Msg("MQTT disconnected")
	return nil
}

func (h *MQTTHandler) subscribeEvents() {
	h.eventBus.Subscribe(events.EventServerSummary, "mqtt.summary", h.forward(TopicSummary))
	h.eventBus.Subscribe(events.EventCommandExecuted, "mqtt.commands", h.forward(TopicCommands))
	h.eventBus.Subscribe(events.EventHostStats, "mqtt.host", h.forward(TopicHost))
	h.eventBus.Subscribe(events.EventServerDown, "mqtt.down", h.onReachability("down"))
	h.eventBus.Subscribe(events.EventServerUp, "mqtt.up", h.onReachability("up"))
	h.eventBus.Subscribe(events.EventNotifyMQTT, "mqtt.notify", h.onNotify)
	h.eventBus.Subscribe(events.EventConfigChanged, "mqtt.config", h.onConfigChanged)
}

func (h *MQTTHandler) topic(suffix string) string {
	return h.prefix + "/" + suffix
}

// publish sends a JSON message to a topic suffix.
func (h *MQTTHandler) publish(suffix string, payload interface{}) {
	if !h.broker.IsConnected() {
		return
	}

	topic := h.topic(suffix)
	data, err := json.Marshal(h.buildMessage(payload))
	if err != nil {
		h.logger.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := h.broker.Publish(topic, 1, false, data)
	go func() {
		token.Wait()
		if token.Error() != nil {
			h.logger.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

func (h *MQTTHandler) buildMessage(payload interface{}) map[string]interface{} {
	msg := make(map[string]interface{}, len(h.metadata)+2)
	for k, v := range h.metadata {
		msg[k] = v
	}
	msg["payload"] = payload
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return msg
}

func (h *MQTTHandler) forward(suffix string) events.HandlerFunc {
	return func(_ context.Context, event events.Event) error {
		h.publish(suffix, event.Payload)
		return nil
	}
}

func (h *MQTTHandler) onReachability(state string) events.HandlerFunc {
	return func(_ context.Context, event events.Event) error {
		h.publish(TopicStatus, map[string]interface{}{
			"event":   "server_" + state,
			"payload": event.Payload,
		})
		return nil
	}
}

func (h *MQTTHandler) onNotify(_ context.Context, event events.Event) error {
	if p, ok := event.Payload.(events.NotifyMQTTPayload); ok {
		suffix := p.Topic
		if suffix == "" {
			suffix = TopicStatus
		}
		h.publish(suffix, p.Payload)
		return nil
	}
	h.publish(TopicStatus, event.Payload)
	return nil
}

func (h *MQTTHandler) onConfigChanged(_ context.Context, event events.Event) error {
	msg := map[string]interface{}{"event": "config_changed"}
	if p, ok := event.Payload.(events.ConfigChangedPayload); ok {
		msg["section"] = p.Section
		msg["key"] = p.Key
	}
	h.publish(TopicStatus, msg)
	return nil
}

// PublishShutdown sends a shutdown message on the admin topic.
func (h *MQTTHandler) PublishShutdown() {
	h.publish(TopicAdmin, map[string]interface{}{
		"event": "shutdown",
	})
}
