package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// RunSetupWizard guides the user through first-time configuration on the
// process terminal.
func RunSetupWizard(cfg *Config) error {
	w := &wizard{
		in:  bufio.NewReader(os.Stdin),
		out: os.Stdout,
	}
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		w.readSecret = func() (string, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(w.out)
			return string(b), err
		}
	}
	return w.run(cfg)
}

type wizard struct {
	in  *bufio.Reader
	out io.Writer

	// readSecret reads a line without echo; nil falls back to in.
	readSecret func() (string, error)

	eof bool
}

func (w *wizard) run(cfg *Config) error {
	fmt.Fprintln(w.out, "╔══════════════════════════════════════════════╗")
	fmt.Fprintln(w.out, "║          craftcon - First Run Setup          ║")
	fmt.Fprintln(w.out, "╚══════════════════════════════════════════════╝")
	fmt.Fprintln(w.out)

	rd := cfg.GetRconData()
	ad := cfg.GetApplicationData()

	fmt.Fprintln(w.out, "── Remote Console ──")
	rd.Host = w.promptString("Server host", rd.Host)
	rd.Port = w.promptInt("Console port", rd.Port)
	rd.Password = w.promptPassword("Console password (rcon.password)", rd.Password)
	rd.TimeoutSec = w.promptInt("Command timeout (seconds)", rd.TimeoutSec)

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "── HTTP API ──")
	ad.API.Port = w.promptInt("API port", ad.API.Port)
	ad.Security.AuthDisabled = !w.promptBool("Require API tokens", !ad.Security.AuthDisabled)

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "── Discord Notifications ──")
	ad.Discord.WebhookURL = w.promptString("Discord webhook URL (blank to disable)", ad.Discord.WebhookURL)

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "── MQTT Telemetry ──")
	ad.MQTT.Enabled = w.promptBool("Enable MQTT telemetry", ad.MQTT.Enabled)
	if ad.MQTT.Enabled {
		ad.MQTT.BrokerURL = w.promptString("Broker host", ad.MQTT.BrokerURL)
		ad.MQTT.Port = w.promptInt("Broker port", ad.MQTT.Port)
	}

	cfg.SetRconData(rd)
	cfg.SetApplicationData(ad)

	result := Validate(cfg)
	if !result.IsValid() {
		fmt.Fprintln(w.out, "\n⚠ Configuration has errors:")
		for _, e := range result.Errors {
			fmt.Fprintf(w.out, "  - [%s] %s\n", e.Field, e.Message)
		}
		retry := w.promptString("Would you like to try again? (yes/no)", "yes")
		if !w.eof && strings.ToLower(retry) == "yes" {
			return w.run(cfg)
		}
		return fmt.Errorf("configuration validation failed")
	}

	for _, warn := range result.Warnings {
		log.Warn().Str("field", warn.Field).Msg(warn.Message)
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "✓ Configuration saved to", cfg.Path())
	fmt.Fprintln(w.out)
	return nil
}

func (w *wizard) readLine() string {
	input, err := w.in.ReadString('\n')
	if err != nil {
		w.eof = true
	}
	return strings.TrimSpace(input)
}

func (w *wizard) promptString(prompt string, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(w.out, "  %s [%s]: ", prompt, defaultVal)
	} else {
		fmt.Fprintf(w.out, "  %s: ", prompt)
	}

	input := w.readLine()
	if input == "" {
		return defaultVal
	}
	return input
}

func (w *wizard) promptPassword(prompt string, current string) string {
	if current != "" {
		fmt.Fprintf(w.out, "  %s [unchanged]: ", prompt)
	} else {
		fmt.Fprintf(w.out, "  %s: ", prompt)
	}

	var input string
	if w.readSecret != nil {
		s, err := w.readSecret()
		if err != nil {
			return current
		}
		input = strings.TrimSpace(s)
	} else {
		input = w.readLine()
	}

	if input == "" {
		return current
	}
	return input
}

func (w *wizard) promptInt(prompt string, defaultVal int) int {
	fmt.Fprintf(w.out, "  %s [%d]: ", prompt, defaultVal)

	input := w.readLine()
	if input == "" {
		return defaultVal
	}

	val, err := strconv.Atoi(input)
	if err != nil {
		fmt.Fprintf(w.out, "    Invalid number, using default: %d\n", defaultVal)
		return defaultVal
	}
	return val
}

func (w *wizard) promptBool(prompt string, defaultVal bool) bool {
	defaultStr := "no"
	if defaultVal {
		defaultStr = "yes"
	}

	fmt.Fprintf(w.out, "  %s [%s]: ", prompt, defaultStr)

	input := strings.ToLower(w.readLine())
	if input == "" {
		return defaultVal
	}
	return input == "yes" || input == "y" || input == "true" || input == "1"
}
