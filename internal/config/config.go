// Package config handles configuration loading, validation, and persistence
// for craftcon.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/energizer-project/craftcon/internal/client"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.json"
	DefaultAPIPort    = 5080
	DefaultRconPort   = 25575
	DefaultTimeoutSec = 10
)

// Config is the root configuration structure.
type Config struct {
	mu   sync.RWMutex
	path string

	RconData        RconData        `json:"rcon_data"`
	ApplicationData ApplicationData `json:"application_data"`
}

// RconData describes the game server console endpoint.
type RconData struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Password   string `json:"password"`
	TimeoutSec int    `json:"timeout_sec"`

	// Reassembly is "sentinel" (default) or "single".
	Reassembly string `json:"reassembly"`
}

// ClientOptions converts the console settings for the client package.
func (r RconData) ClientOptions() client.Options {
	return client.Options{
		Host:       r.Host,
		Port:       r.Port,
		Password:   r.Password,
		Timeout:    time.Duration(r.TimeoutSec) * time.Second,
		Reassembly: r.Reassembly,
	}
}

// ApplicationData contains manager application configuration.
type ApplicationData struct {
	API      APIConfig          `json:"api"`
	Timers   TimerConfig        `json:"timers"`
	Schedule []ScheduledCommand `json:"schedule"`
	Discord  DiscordConfig      `json:"discord"`
	MQTT     MQTTConfig         `json:"mqtt"`
	Security SecurityConfig     `json:"security"`
	Logging  LoggingConfig      `json:"logging"`
}

// APIConfig holds the HTTP listener settings.
type APIConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// TimerConfig holds monitor intervals.
type TimerConfig struct {
	SummaryPollInterval int `json:"summary_poll_interval_sec"`
	HostStatsInterval   int `json:"host_stats_interval_sec"`
	HeartbeatInterval   int `json:"heartbeat_interval_sec"`
}

// ScheduledCommand is a console command run by the scheduler. Exactly one
// of At ("HH:MM", local time) or IntervalSec must be set.
type ScheduledCommand struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	At          string `json:"at,omitempty"`
	IntervalSec int    `json:"interval_sec,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// DiscordConfig holds webhook notification settings.
type DiscordConfig struct {
	WebhookURL       string `json:"webhook_url"`
	NotifyOnDown     bool   `json:"notify_on_down"`
	NotifyOnUp       bool   `json:"notify_on_up"`
	NotifyOnSchedule bool   `json:"notify_on_schedule"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	BrokerURL   string `json:"broker_url"`
	Port        int    `json:"port"`
	UseTLS      bool   `json:"use_tls"`
	CertFile    string `json:"cert_file"`
	KeyFile     string `json:"key_file"`
	CAFile      string `json:"ca_file"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	TLSEnabled     bool     `json:"tls_enabled"`
	TLSCertFile    string   `json:"tls_cert_file"`
	TLSKeyFile     string   `json:"tls_key_file"`
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimitRPS   int      `json:"rate_limit_rps"`
	IPWhitelist    []string `json:"ip_whitelist"`
	AuthDisabled   bool     `json:"auth_disabled"`
	DatabasePath   string   `json:"database_path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `json:"level"`
	Directory string `json:"directory"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RconData: RconData{
			Host:       "127.0.0.1",
			Port:       DefaultRconPort,
			TimeoutSec: DefaultTimeoutSec,
			Reassembly: "sentinel",
		},
		ApplicationData: ApplicationData{
			API: APIConfig{
				Host: "0.0.0.0",
				Port: DefaultAPIPort,
			},
			Timers: TimerConfig{
				SummaryPollInterval: 30,
				HostStatsInterval:   15,
				HeartbeatInterval:   60,
			},
			Schedule: []ScheduledCommand{
				{Name: "save", Command: "save-all", IntervalSec: 900, Enabled: false},
			},
			Discord: DiscordConfig{
				NotifyOnDown: true,
				NotifyOnUp:   true,
			},
			MQTT: MQTTConfig{
				Enabled:     false,
				Port:        1883,
				TopicPrefix: "craftcon",
			},
			Security: SecurityConfig{
				RateLimitRPS: 20,
				AuthDisabled: false,
				DatabasePath: filepath.Join("data", "craftcon.db"),
			},
			Logging: LoggingConfig{
				Level:     "info",
				Directory: "logs",
			},
		},
	}
}

// Load reads configuration from a JSON file, creating it with defaults when
// it does not exist.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	// Persist fields added since the file was written.
	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	return cfg, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file holds the console password.
	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetRconData returns a copy of the console configuration.
func (c *Config) GetRconData() RconData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.RconData
}

// SetRconData updates the console configuration.
func (c *Config) SetRconData(data RconData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RconData = data
}

// GetApplicationData returns a copy of the application data configuration.
func (c *Config) GetApplicationData() ApplicationData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ApplicationData
}

// SetApplicationData updates the application data configuration.
func (c *Config) SetApplicationData(data ApplicationData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ApplicationData = data
}

// UpdateRconField updates a single console field by its JSON key.
func (c *Config) UpdateRconField(key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return updateField(&c.RconData, key, value)
}

// UpdateAppField updates a single application field by its JSON key.
func (c *Config) UpdateAppField(key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return updateField(&c.ApplicationData, key, value)
}

func updateField(target interface{}, key string, value interface{}) error {
	data, err := json.Marshal(target)
	if err != nil {
		return err
	}
	m := make(map[string]interface{})
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	if _, ok := m[key]; !ok {
		return fmt.Errorf("unknown field %s", key)
	}
	m[key] = value

	updated, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(updated, target); err != nil {
		return fmt.Errorf("failed to update field %s: %w", key, err)
	}
	return nil
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

// SetPath changes where Save writes.
func (c *Config) SetPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path = path
}

// IsFirstRun returns true if the configuration needs initial setup.
func (c *Config) IsFirstRun() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.RconData.Password == ""
}
