package config

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Path() != filepath.Join(dir, DefaultConfigFile) {
		t.Fatalf("Path() = %q", cfg.Path())
	}
	if _, err := os.Stat(cfg.Path()); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if got := cfg.GetRconData().Port; got != DefaultRconPort {
		t.Fatalf("port = %d, want %d", got, DefaultRconPort)
	}
	if !cfg.IsFirstRun() {
		t.Fatal("a config without a password needs setup")
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFile)
	partial := `{"rcon_data": {"host": "mc.example", "password": "pw"}}`
	if err := os.WriteFile(path, []byte(partial), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	rd := cfg.GetRconData()
	if rd.Host != "mc.example" || rd.Password != "pw" {
		t.Fatalf("rcon data = %+v", rd)
	}
	if rd.Port != DefaultRconPort || rd.TimeoutSec != DefaultTimeoutSec {
		t.Fatalf("defaults not applied: %+v", rd)
	}
	if cfg.IsFirstRun() {
		t.Fatal("config with a password should not need setup")
	}

	// The re-save should have filled in the missing sections.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`"application_data"`)) {
		t.Fatal("re-saved config is missing application_data")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("{nope"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestClientOptions(t *testing.T) {
	rd := RconData{Host: "h", Port: 1, Password: "p", TimeoutSec: 3, Reassembly: "single"}
	opts := rd.ClientOptions()
	if opts.Host != "h" || opts.Port != 1 || opts.Password != "p" || opts.Reassembly != "single" {
		t.Fatalf("ClientOptions() = %+v", opts)
	}
	if opts.Timeout != 3*time.Second {
		t.Fatalf("Timeout = %s", opts.Timeout)
	}
}

func TestUpdateField(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.UpdateRconField("host", "10.0.0.5"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if cfg.GetRconData().Host != "10.0.0.5" {
		t.Fatalf("host = %q", cfg.GetRconData().Host)
	}

	if err := cfg.UpdateRconField("port", "not a number"); err == nil {
		t.Fatal("expected a type error")
	}
	if err := cfg.UpdateRconField("nonexistent", 1); err == nil {
		t.Fatal("expected an unknown field error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvRconHost, "env-host")
	t.Setenv(EnvRconPort, "25580")
	t.Setenv(EnvRconPassword, "env-pw")
	t.Setenv(EnvRconTimeoutSec, "4")
	t.Setenv(EnvAPIPort, "9000")
	t.Setenv(EnvLogLevel, "DEBUG")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("apply env: %v", err)
	}

	rd := cfg.GetRconData()
	if rd.Host != "env-host" || rd.Port != 25580 || rd.Password != "env-pw" || rd.TimeoutSec != 4 {
		t.Fatalf("rcon data = %+v", rd)
	}
	ad := cfg.GetApplicationData()
	if ad.API.Port != 9000 {
		t.Fatalf("api port = %d", ad.API.Port)
	}
	if ad.Logging.Level != "debug" {
		t.Fatalf("log level = %q", ad.Logging.Level)
	}
}

func TestApplyEnvInvalidPort(t *testing.T) {
	t.Setenv(EnvRconPort, "abc")

	if err := DefaultConfig().ApplyEnv(); err == nil {
		t.Fatal("expected an error for a non-numeric port")
	}
}

func TestLoadEnvFiles(t *testing.T) {
	// Register restoration, then clear so the file value can apply.
	t.Setenv(EnvRconHost, "")
	os.Unsetenv(EnvRconHost)
	t.Setenv(EnvRconPassword, "already-set")

	dir := t.TempDir()
	content := "RCON_HOST=file-host\nRCON_PASSWORD=from-file\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	if err := LoadEnvFiles(dir); err != nil {
		t.Fatalf("load env files: %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	rd := cfg.GetRconData()
	if rd.Host != "file-host" {
		t.Fatalf("host = %q, want value from .env", rd.Host)
	}
	if rd.Password != "already-set" {
		t.Fatalf("password = %q, process environment should win", rd.Password)
	}
}

func TestLoadEnvFilesMissingIsFine(t *testing.T) {
	if err := LoadEnvFiles(t.TempDir()); err != nil {
		t.Fatalf("missing env files should be ignored: %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.RconData.Password = "pw"
		return cfg
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"valid", func(*Config) {}, ""},
		{"no password", func(c *Config) { c.RconData.Password = "" }, "rcon_data.password"},
		{"no host", func(c *Config) { c.RconData.Host = " " }, "rcon_data.host"},
		{"bad port", func(c *Config) { c.RconData.Port = 0 }, "rcon_data.port"},
		{"zero timeout", func(c *Config) { c.RconData.TimeoutSec = 0 }, "rcon_data.timeout_sec"},
		{"bad reassembly", func(c *Config) { c.RconData.Reassembly = "magic" }, "rcon_data.reassembly"},
		{"mqtt without broker", func(c *Config) { c.ApplicationData.MQTT.Enabled = true }, "application_data.mqtt.broker_url"},
		{"schedule both", func(c *Config) {
			c.ApplicationData.Schedule = []ScheduledCommand{{Name: "x", Command: "say hi", At: "04:00", IntervalSec: 60}}
		}, "application_data.schedule[0]"},
		{"schedule bad time", func(c *Config) {
			c.ApplicationData.Schedule = []ScheduledCommand{{Name: "x", Command: "say hi", At: "25:99"}}
		}, "application_data.schedule[0].at"},
		{"schedule duplicate", func(c *Config) {
			c.ApplicationData.Schedule = []ScheduledCommand{
				{Name: "x", Command: "a", IntervalSec: 60},
				{Name: "x", Command: "b", IntervalSec: 60},
			}
		}, "application_data.schedule[1].name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			result := Validate(cfg)

			if tt.wantField == "" {
				if !result.IsValid() {
					t.Fatalf("unexpected errors: %v", result.Errors)
				}
				return
			}
			for _, e := range result.Errors {
				if e.Field == tt.wantField {
					return
				}
			}
			t.Fatalf("expected an error on %s, got %v", tt.wantField, result.Errors)
		})
	}
}

func TestSetupWizard(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetPath(filepath.Join(t.TempDir(), DefaultConfigFile))

	answers := strings.Join([]string{
		"mc.local", // host
		"",         // port (default)
		"hunter2",  // password
		"5",        // timeout
		"",         // api port
		"yes",      // require tokens
		"",         // webhook
		"no",       // mqtt
	}, "\n") + "\n"

	var out bytes.Buffer
	w := &wizard{in: bufio.NewReader(strings.NewReader(answers)), out: &out}
	if err := w.run(cfg); err != nil {
		t.Fatalf("wizard: %v\n%s", err, out.String())
	}

	rd := cfg.GetRconData()
	if rd.Host != "mc.local" || rd.Port != DefaultRconPort || rd.Password != "hunter2" || rd.TimeoutSec != 5 {
		t.Fatalf("rcon data = %+v", rd)
	}
	if cfg.GetApplicationData().Security.AuthDisabled {
		t.Fatal("tokens should be required")
	}
	if _, err := os.Stat(cfg.Path()); err != nil {
		t.Fatalf("config not saved: %v", err)
	}
}

func TestSetupWizardGivesUpAtEOF(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetPath(filepath.Join(t.TempDir(), DefaultConfigFile))

	// No password is supplied, so validation fails and input runs out.
	var out bytes.Buffer
	w := &wizard{in: bufio.NewReader(strings.NewReader("")), out: &out}
	if err := w.run(cfg); err == nil {
		t.Fatal("expected a validation error")
	}
}
