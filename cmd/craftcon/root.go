package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/energizer-project/craftcon/internal/client"
	"github.com/energizer-project/craftcon/internal/config"
	"github.com/energizer-project/craftcon/internal/util"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "1.0.0"

var rootFlags struct {
	configDir string
	logLevel  string
	host      string
	port      int
	timeout   int
}

var rootCmd = &cobra.Command{
	Use:   "craftcon",
	Short: "Minecraft remote console manager",
	Long: fmt.Sprintf(`craftcon (v%s)

Talks to a Minecraft server over RCON. Run "craftcon serve" for the HTTP API
with monitoring and scheduled commands, or "craftcon console" for an
interactive session.`, Version),
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of craftcon",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "craftcon v%s\n", Version)
	},
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Run the interactive configuration wizard",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(false)
		if err != nil {
			return err
		}
		return config.RunSetupWizard(cfg)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configDir, "config-dir", config.DefaultConfigDir, "directory holding config.json and .env files")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "log level (trace, debug, info, warn, error); overrides the config file")
	pf.StringVar(&rootFlags.host, "host", "", "RCON host; overrides config and environment")
	pf.IntVar(&rootFlags.port, "port", 0, "RCON port; overrides config and environment")
	pf.IntVar(&rootFlags.timeout, "timeout", 0, "command timeout in seconds; overrides config and environment")

	rootCmd.AddCommand(serveCmd, consoleCmd, execCmd, summaryCmd, actionCmd, tokenCmd, setupCmd, versionCmd)
}

// loadConfig reads the config file, applies .env files, the environment
// and the command-line overrides, then initialises logging. fileLog turns
// on the rotating log file.
func loadConfig(fileLog bool) (*config.Config, error) {
	// Quiet console logging until the configured level is known.
	util.InitLogger(util.LogConfig{Level: "warn", Console: true})

	for _, dir := range uniqueDirs(".", rootFlags.configDir) {
		if err := config.LoadEnvFiles(dir); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(rootFlags.configDir)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	rd := cfg.GetRconData()
	if rootFlags.host != "" {
		rd.Host = rootFlags.host
	}
	if rootFlags.port != 0 {
		rd.Port = rootFlags.port
	}
	if rootFlags.timeout != 0 {
		rd.TimeoutSec = rootFlags.timeout
	}
	cfg.SetRconData(rd)

	logging := cfg.GetApplicationData().Logging
	if rootFlags.logLevel != "" {
		logging.Level = rootFlags.logLevel
	}
	logCfg := util.LogConfig{
		Level:      logging.Level,
		MaxBackups: 7,
		Console:    true,
	}
	if fileLog {
		logCfg.Directory = logging.Directory
	}
	if err := util.InitLogger(logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to configure logger, using defaults")
	}
	return cfg, nil
}

// consoleOptions loads the config and returns validated connection options.
func consoleOptions() (*config.Config, client.Options, error) {
	cfg, err := loadConfig(false)
	if err != nil {
		return nil, client.Options{}, err
	}
	opts := cfg.GetRconData().ClientOptions()
	if err := opts.Validate(); err != nil {
		return nil, opts, err
	}
	if opts.Password == "" {
		return nil, opts, fmt.Errorf("no RCON password configured (run \"craftcon setup\" or set %s)", config.EnvRconPassword)
	}
	return cfg, opts, nil
}

func uniqueDirs(dirs ...string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			abs = d
		}
		if !seen[abs] {
			seen[abs] = true
			out = append(out, d)
		}
	}
	return out
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
