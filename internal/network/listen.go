// Package network provides the listener used by the HTTP API.
package network

import (
	"context"
	"fmt"
	"net"
)

// Listen binds a TCP listener on addr with SO_REUSEADDR set, so a restarted
// craftcon can rebind while the old socket is still in TIME_WAIT.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := ReuseAddrListenConfig()
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}
