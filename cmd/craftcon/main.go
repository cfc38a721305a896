// craftcon is a remote console manager for Minecraft servers: an HTTP API,
// an interactive console, scheduled commands, and availability monitoring
// over the RCON protocol.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
