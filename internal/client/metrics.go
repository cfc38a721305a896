package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/energizer-project/craftcon/internal/actions"
	"github.com/energizer-project/craftcon/internal/protocol"
	"github.com/energizer-project/craftcon/internal/rcon"
)

var commandDuration = metrics.NewHistogram("craftcon_rcon_command_duration_seconds")

// ErrorKind classifies err into a short label used by metrics and the API.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, rcon.ErrDial):
		return "dial"
	case errors.Is(err, rcon.ErrAuthFailed):
		return "auth"
	case errors.Is(err, rcon.ErrCommandTimeout):
		return "timeout"
	case errors.Is(err, protocol.ErrMalformedFrame):
		return "malformed"
	case errors.Is(err, protocol.ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, rcon.ErrConnClosed), errors.Is(err, ErrNotConnected), errors.Is(err, rcon.ErrNotAuthenticated):
		return "closed"
	case errors.Is(err, actions.ErrUnknownAction):
		return "unknown_action"
	default:
		return "other"
	}
}

func recordCommand(start time.Time, err error) {
	commandDuration.UpdateDuration(start)
	metrics.GetOrCreateCounter(fmt.Sprintf(`craftcon_rcon_commands_total{result=%q}`, ErrorKind(err))).Inc()
}

func recordConnect(err error) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`craftcon_rcon_connects_total{result=%q}`, ErrorKind(err))).Inc()
}
