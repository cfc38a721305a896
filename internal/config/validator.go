package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/energizer-project/craftcon/internal/rcon"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate performs validation of the configuration.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	rd := cfg.GetRconData()
	ad := cfg.GetApplicationData()
	validateRconData(&rd, result)
	validateApplicationData(&ad, result)

	return result
}

func validateRconData(data *RconData, result *ValidationResult) {
	if strings.TrimSpace(data.Host) == "" {
		result.AddError("rcon_data.host", "console host is required")
	}
	if strings.TrimSpace(data.Password) == "" {
		result.AddError("rcon_data.password", "console password is required")
	}

	validatePort(data.Port, "rcon_data.port", result)

	if data.TimeoutSec < 1 {
		result.AddError("rcon_data.timeout_sec", "timeout must be at least 1 second")
	} else if data.TimeoutSec > 120 {
		result.AddWarning("rcon_data.timeout_sec",
			fmt.Sprintf("long timeout (%ds) will hold API requests open", data.TimeoutSec))
	}

	if _, err := rcon.ReassemblerByName(data.Reassembly); err != nil {
		result.AddError("rcon_data.reassembly", err.Error())
	}
}

func validateApplicationData(data *ApplicationData, result *ValidationResult) {
	validatePort(data.API.Port, "application_data.api.port", result)
	validateTimers(&data.Timers, result)
	validateSchedule(data.Schedule, result)

	if data.MQTT.Enabled {
		if strings.TrimSpace(data.MQTT.BrokerURL) == "" {
			result.AddError("application_data.mqtt.broker_url", "MQTT broker URL is required when enabled")
		}
		if data.MQTT.Port < 1 || data.MQTT.Port > 65535 {
			result.AddError("application_data.mqtt.port", "invalid MQTT port")
		}
	}

	if data.Security.TLSEnabled {
		if (data.Security.TLSCertFile == "") != (data.Security.TLSKeyFile == "") {
			result.AddError("application_data.security.tls_cert_file",
				"TLS certificate and key must be set together (leave both empty to self-sign)")
		}
	}

	if data.Security.RateLimitRPS < 1 {
		result.AddWarning("application_data.security.rate_limit_rps",
			"rate limit is disabled (0 RPS), this may expose the API to abuse")
	}

	if data.Security.AuthDisabled {
		result.AddWarning("application_data.security.auth_disabled",
			"API authentication is disabled, anyone who can reach the port can run console commands")
	}

	if data.Discord.WebhookURL != "" && !strings.HasPrefix(data.Discord.WebhookURL, "https://") {
		result.AddWarning("application_data.discord.webhook_url", "webhook URL should use https")
	}
}

func validateTimers(timers *TimerConfig, result *ValidationResult) {
	if timers.SummaryPollInterval > 0 && timers.SummaryPollInterval < 5 {
		result.AddWarning("timers.summary_poll_interval_sec",
			"summary polling more often than every 5s opens a console session each time")
	}
	if timers.HeartbeatInterval > 0 && timers.HeartbeatInterval < 10 {
		result.AddWarning("timers.heartbeat_interval_sec",
			"heartbeat interval less than 10s may cause excessive traffic")
	}
}

func validateSchedule(schedule []ScheduledCommand, result *ValidationResult) {
	names := make(map[string]bool)
	for i, sc := range schedule {
		field := fmt.Sprintf("application_data.schedule[%d]", i)

		if strings.TrimSpace(sc.Name) == "" {
			result.AddError(field+".name", "scheduled command needs a name")
		} else if names[sc.Name] {
			result.AddError(field+".name", fmt.Sprintf("duplicate scheduled command %q", sc.Name))
		}
		names[sc.Name] = true

		if strings.TrimSpace(sc.Command) == "" {
			result.AddError(field+".command", "command is required")
		}

		switch {
		case sc.At != "" && sc.IntervalSec > 0:
			result.AddError(field, "set either at or interval_sec, not both")
		case sc.At != "":
			if _, err := time.Parse("15:04", sc.At); err != nil {
				result.AddError(field+".at", fmt.Sprintf("invalid time %q (expected HH:MM)", sc.At))
			}
		case sc.IntervalSec > 0:
			if sc.IntervalSec < 10 {
				result.AddWarning(field+".interval_sec", "interval less than 10s")
			}
		default:
			result.AddError(field, "either at or interval_sec is required")
		}
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}

// IsPortAvailable checks if a port is available for binding.
func IsPortAvailable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
