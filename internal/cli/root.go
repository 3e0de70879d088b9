// Package cli provides the command-line interface for assetmover.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rescale/assetmover/internal/config"
	"github.com/rescale/assetmover/internal/logging"
	"github.com/rescale/assetmover/internal/version"
)

var (
	// Global flags
	cfgFile string
	verbose bool

	// Flag and environment overrides, keyed by config.Key*
	v = config.NewViper()

	// Filesystem the config file is read from and written to
	appFs afero.Fs = afero.NewOsFs()

	// Configuration after file, env and flags are merged
	activeConfig *config.Config

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	v = config.NewViper()

	rootCmd := &cobra.Command{
		Use:   "assetmover",
		Short: "Move assets and folders on a CMS site",
		Long: `assetmover ` + version.String() + `

Moves assets and folders into a target folder through the site's control
panel actions. Naming conflicts are resolved interactively (or with
--on-conflict) and the affected items are retried until none remain.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			activeConfig = cfg

			level := logging.ParseLevel(cfg.LogLevel)
			if verbose {
				level = zerolog.DebugLevel
			}
			logging.SetGlobalLevel(level)

			logger = logging.NewLogger(logging.Options{
				Console:   cmd.ErrOrStderr(),
				File:      cfg.LogFile,
				Component: "cli",
			})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	pf.String("base-url", "", "Site base URL (overrides config)")
	pf.String("token", "", "Access token (overrides config)")
	pf.String("csrf-token", "", "CSRF token sent with every action")
	pf.String("proxy-mode", "", "Proxy mode: no-proxy, system, basic, ntlm")
	pf.String("proxy-host", "", "Proxy host")
	pf.Int("proxy-port", 0, "Proxy port")
	pf.String("no-proxy", "", "Comma-separated hosts that bypass the proxy")
	pf.Int("retry-max", 0, "Maximum retries for transient HTTP failures")
	pf.Float64("rate-limit", 0, "Maximum action requests per second (0 = unlimited)")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-file", "", "Write JSON logs to this file (rotated)")

	bindFlags(v, pf.Lookup, map[string]string{
		config.KeyBaseURL:   "base-url",
		config.KeyToken:     "token",
		config.KeyCSRFToken: "csrf-token",
		config.KeyProxyMode: "proxy-mode",
		config.KeyProxyHost: "proxy-host",
		config.KeyProxyPort: "proxy-port",
		config.KeyNoProxy:   "no-proxy",
		config.KeyRetryMax:  "retry-max",
		config.KeyRateLimit: "rate-limit",
		config.KeyLogLevel:  "log-level",
		config.KeyLogFile:   "log-file",
	})

	rootCmd.Version = version.String()

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	// Create a context that can be cancelled by signals
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Loop so repeated Ctrl+C doesn't block the sender
	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.ExecuteContext(rootContext)

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newMoveCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// loadConfig merges the config file with env and flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(appFs, configPath())
	if err != nil {
		return nil, err
	}
	config.ApplyOverrides(cfg, v)
	return cfg, nil
}

// bindFlags binds each flag name to its override key.
func bindFlags(v *viper.Viper, lookup func(string) *pflag.Flag, keys map[string]string) {
	for key, name := range keys {
		if f := lookup(name); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}
