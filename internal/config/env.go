package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Environment variables recognised by ApplyEnv.
const (
	EnvRconHost       = "RCON_HOST"
	EnvRconPort       = "RCON_PORT"
	EnvRconPassword   = "RCON_PASSWORD"
	EnvRconTimeoutSec = "RCON_TIMEOUT_SEC"
	EnvAPIPort        = "CRAFTCON_API_PORT"
	EnvLogLevel       = "CRAFTCON_LOG_LEVEL"
)

// envFiles are loaded in order; a variable already present in the process
// environment is never overwritten.
var envFiles = []string{".env.local", ".env"}

// LoadEnvFiles loads dotenv files from dir if they exist.
func LoadEnvFiles(dir string) error {
	for _, name := range envFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		log.Debug().Str("path", path).Msg("environment file loaded")
	}
	return nil
}

// ApplyEnv overlays environment variables on the loaded configuration. The
// overlay is not persisted by Save unless the caller saves afterwards.
func (c *Config) ApplyEnv() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := lookup(EnvRconHost); ok {
		c.RconData.Host = v
	}
	if v, ok := lookup(EnvRconPassword); ok {
		c.RconData.Password = v
	}
	if err := envInt(EnvRconPort, &c.RconData.Port); err != nil {
		return err
	}
	if err := envInt(EnvRconTimeoutSec, &c.RconData.TimeoutSec); err != nil {
		return err
	}
	if err := envInt(EnvAPIPort, &c.ApplicationData.API.Port); err != nil {
		return err
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.ApplicationData.Logging.Level = strings.ToLower(v)
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func envInt(key string, dst *int) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}
