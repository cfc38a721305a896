package client

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/energizer-project/craftcon/internal/rcon"
)

// DefaultPort is the conventional remote console port.
const DefaultPort = 25575

// Options holds everything needed to reach one console endpoint. It is
// supplied by the caller; this package never reads files or the environment.
type Options struct {
	Host     string
	Port     int
	Password string
	Timeout  time.Duration

	// Reassembly selects the reply strategy by name ("sentinel" or "single").
	Reassembly string
}

// Addr returns host:port.
func (o Options) Addr() string {
	port := o.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(o.Host, strconv.Itoa(port))
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return rcon.DefaultTimeout
	}
	return o.Timeout
}

// Validate checks the options before any network activity.
func (o Options) Validate() error {
	if o.Host == "" {
		return fmt.Errorf("rcon host is required")
	}
	if o.Port < 0 || o.Port > 65535 {
		return fmt.Errorf("rcon port %d out of range", o.Port)
	}
	if _, err := rcon.ReassemblerByName(o.Reassembly); err != nil {
		return err
	}
	return nil
}
