// Package cli provides configuration management commands.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/rescale/assetmover/internal/config"
	"github.com/rescale/assetmover/internal/http"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage assetmover configuration",
		Long: `Configuration management commands for assetmover.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for assetmover.

The configuration is saved to ~/.config/assetmover/config (mode 0600,
it holds your access token).

Use --force to overwrite existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			out := cmd.OutOrStdout()

			if !force {
				if exists, _ := afero.Exists(appFs, path); exists {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			fmt.Fprintln(out, "assetmover Configuration Setup")
			fmt.Fprintln(out, "==============================")
			fmt.Fprintln(out)

			in := newLineReader(cmd.InOrStdin(), out)
			cfg := config.New()

			cfg.BaseURL = in.required("Site URL (required): ", "site URL is required")
			cfg.Token = in.required("Access token (required): ", "access token is required")
			cfg.CSRFToken = in.ask("CSRF token (optional): ", "")

			fmt.Fprintln(out)
			if yes := strings.ToLower(in.ask("Configure proxy? [y/N]: ", "n")); yes == "y" || yes == "yes" {
				fmt.Fprintln(out, "Proxy modes: no-proxy, system, basic, ntlm")
				cfg.ProxyMode = in.ask("Proxy mode [system]: ", "system")

				if cfg.ProxyMode == "basic" || cfg.ProxyMode == "ntlm" {
					cfg.ProxyHost = in.ask("Proxy host: ", "")
					cfg.ProxyPort = in.askInt("Proxy port [8080]: ", 8080)
					cfg.ProxyUser = in.ask("Proxy user (optional): ", "")
					if http.NeedsProxyPassword(cfg) {
						cfg.ProxyPassword = in.ask("Proxy password: ", "")
					}
				}
				cfg.NoProxy = in.ask("Hosts that bypass the proxy (comma-separated): ", "")
			}

			fmt.Fprintln(out)
			cfg.PromptStyle = in.ask("Conflict prompt style, line or tui [line]: ", config.PromptStyleLine)

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.Save(appFs, cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			GetLogger().Info().Str("path", path).Msg("Configuration saved")
			fmt.Fprintln(out)
			fmt.Fprintf(out, "✓ Configuration saved to: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

This command shows the merged configuration from:
  1. Configuration file (~/.config/assetmover/config)
  2. Environment variables (ASSETMOVER_BASE_URL, ASSETMOVER_TOKEN, ...)
  3. Command-line flags (--base-url, --token, ...)

Priority: flags > environment > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			r := cfg.Redacted()
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Current Configuration")
			fmt.Fprintln(out, "=====================")
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Site:")
			fmt.Fprintf(out, "  Base URL:   %s\n", orUnset(r.BaseURL))
			fmt.Fprintf(out, "  Token:      %s\n", orUnset(r.Token))
			fmt.Fprintf(out, "  CSRF Token: %s\n", orUnset(r.CSRFToken))
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Proxy Settings:")
			fmt.Fprintf(out, "  Proxy Mode: %s\n", r.ProxyMode)
			if r.ProxyHost != "" {
				fmt.Fprintf(out, "  Proxy Host: %s\n", r.ProxyHost)
				fmt.Fprintf(out, "  Proxy Port: %d\n", r.ProxyPort)
			}
			if r.NoProxy != "" {
				fmt.Fprintf(out, "  No Proxy:   %s\n", r.NoProxy)
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Moves:")
			fmt.Fprintf(out, "  Retry Max:      %d\n", r.RetryMax)
			if r.RateLimit > 0 {
				fmt.Fprintf(out, "  Rate Limit:     %g/s\n", r.RateLimit)
			}
			fmt.Fprintf(out, "  Prompt Style:   %s\n", r.PromptStyle)
			fmt.Fprintf(out, "  Progress Style: %s\n", r.ProgressStyle)
			if r.OnConflict != "" {
				fmt.Fprintf(out, "  On Conflict:    %s\n", r.OnConflict)
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Logging:")
			fmt.Fprintf(out, "  Level: %s\n", r.LogLevel)
			if r.LogFile != "" {
				fmt.Fprintf(out, "  File:  %s\n", r.LogFile)
			}
			fmt.Fprintln(out)

			fmt.Fprintf(out, "Configuration file: %s\n", configPath())
			if exists, _ := afero.Exists(appFs, configPath()); !exists {
				fmt.Fprintln(out, "  (file does not exist - using defaults)")
			}
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if cfgFile == "" {
				fmt.Fprintln(out, "Default configuration path:")
			} else {
				fmt.Fprintln(out, "Configuration path (from --config flag):")
			}
			fmt.Fprintf(out, "  %s\n", configPath())
			fmt.Fprintln(out)

			info, err := appFs.Stat(configPath())
			if err != nil {
				fmt.Fprintln(out, "Status: File does not exist")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Create a configuration file with: assetmover config init")
				return nil
			}

			fmt.Fprintln(out, "Status: ✓ File exists")
			fmt.Fprintf(out, "Size:   %d bytes\n", info.Size())
			fmt.Fprintf(out, "Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

func orUnset(s string) string {
	if s == "" {
		return "<not set>"
	}
	return s
}

// lineReader asks questions on out and reads trimmed answers from in.
type lineReader struct {
	r   *bufio.Reader
	out io.Writer
}

func newLineReader(in io.Reader, out io.Writer) *lineReader {
	return &lineReader{r: bufio.NewReader(in), out: out}
}

// ask returns the answer, or def if the answer is empty.
func (l *lineReader) ask(question, def string) string {
	fmt.Fprint(l.out, question)
	input, _ := l.r.ReadString('\n')
	if input = strings.TrimSpace(input); input != "" {
		return input
	}
	return def
}

// required re-asks until it gets an answer or input ends.
func (l *lineReader) required(question, missing string) string {
	for {
		fmt.Fprint(l.out, question)
		input, err := l.r.ReadString('\n')
		if input = strings.TrimSpace(input); input != "" {
			return input
		}
		if err != nil {
			return ""
		}
		fmt.Fprintf(l.out, "  Error: %s\n", missing)
	}
}

func (l *lineReader) askInt(question string, def int) int {
	if n, err := strconv.Atoi(l.ask(question, "")); err == nil && n > 0 {
		return n
	}
	return def
}
