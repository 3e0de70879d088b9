// Package config provides configuration management for assetmover.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/ini.v1"

	"github.com/rescale/assetmover/internal/constants"
)

// Prompt styles
const (
	PromptStyleLine = "line" // numbered choices read from stdin
	PromptStyleTUI  = "tui"  // bubbletea modal
)

// Progress styles
const (
	ProgressStyleBars   = "bars"   // mpb bar per round
	ProgressStyleSimple = "simple" // single schollz/progressbar line
	ProgressStyleNone   = "none"
)

// Config holds everything the CLI needs to talk to a site and drive moves.
//
// INI format:
//
//	[site]
//	base_url = https://cms.example.com
//	token = <personal access token>
//	csrf_token = <optional CSRF token>
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 8080
//	user =
//	password =
//	no_proxy =
//
//	[moves]
//	retry_max = 4
//	rate_limit = 0
//	prompt_style = line
//	progress_style = bars
//	on_conflict =
//
//	[logging]
//	level = info
//	file =
type Config struct {
	// Site connection
	BaseURL   string
	Token     string
	CSRFToken string

	// Proxy settings
	ProxyMode     string // "no-proxy", "system", "basic", "ntlm"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string
	NoProxy       string // Comma-separated list of hosts to bypass proxy

	// Move behaviour
	RetryMax      int
	RateLimit     float64 // requests per second, 0 = unlimited
	PromptStyle   string
	ProgressStyle string

	// OnConflict, when set, answers every conflict prompt with this choice
	// value ("keepBoth", "replace", "merge", "cancel") without asking.
	OnConflict string

	// Logging
	LogLevel string
	LogFile  string // empty = console only
}

// Validation errors
var (
	ErrMissingBaseURL       = errors.New("base_url is required")
	ErrMissingToken         = errors.New("token is required")
	ErrInvalidProxyMode     = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
	ErrMissingProxyHost     = errors.New("proxy host is required for basic and ntlm modes")
	ErrInvalidPromptStyle   = errors.New("prompt_style must be line or tui")
	ErrInvalidProgressStyle = errors.New("progress_style must be bars, simple or none")
	ErrInvalidRetryMax      = errors.New("retry_max must be between 0 and 20")
	ErrInvalidRateLimit     = errors.New("rate_limit must not be negative")
)

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		ProxyMode:     "no-proxy",
		ProxyPort:     8080,
		RetryMax:      constants.DefaultRetryMax,
		PromptStyle:   PromptStyleLine,
		ProgressStyle: ProgressStyleBars,
		LogLevel:      "info",
	}
}

// Load reads the config file at path from fs.
// If the file doesn't exist, returns defaults and no error.
func Load(fs afero.Fs, path string) (*Config, error) {
	cfg := New()

	if path == "" {
		path = DefaultConfigPath()
	}

	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config: %w", err)
	}
	if !exists {
		return cfg, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	iniFile, err := ini.Load(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	site := iniFile.Section("site")
	cfg.BaseURL = site.Key("base_url").String()
	cfg.Token = site.Key("token").String()
	cfg.CSRFToken = site.Key("csrf_token").String()

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(cfg.ProxyPort)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.ProxyPassword = proxy.Key("password").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()

	moves := iniFile.Section("moves")
	cfg.RetryMax = moves.Key("retry_max").MustInt(cfg.RetryMax)
	cfg.RateLimit = moves.Key("rate_limit").MustFloat64(cfg.RateLimit)
	cfg.PromptStyle = moves.Key("prompt_style").MustString(cfg.PromptStyle)
	cfg.ProgressStyle = moves.Key("progress_style").MustString(cfg.ProgressStyle)
	cfg.OnConflict = moves.Key("on_conflict").String()

	logging := iniFile.Section("logging")
	cfg.LogLevel = logging.Key("level").MustString(cfg.LogLevel)
	cfg.LogFile = logging.Key("file").String()

	return cfg, nil
}

// Save writes cfg to path on fs, creating parent directories.
// The token is stored in the file, so the file is written 0600.
func Save(fs afero.Fs, cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	sections := []struct {
		name string
		keys [][2]string
	}{
		{"site", [][2]string{
			{"base_url", cfg.BaseURL},
			{"token", cfg.Token},
			{"csrf_token", cfg.CSRFToken},
		}},
		{"proxy", [][2]string{
			{"mode", cfg.ProxyMode},
			{"host", cfg.ProxyHost},
			{"port", fmt.Sprintf("%d", cfg.ProxyPort)},
			{"user", cfg.ProxyUser},
			{"password", cfg.ProxyPassword},
			{"no_proxy", cfg.NoProxy},
		}},
		{"moves", [][2]string{
			{"retry_max", fmt.Sprintf("%d", cfg.RetryMax)},
			{"rate_limit", strconv.FormatFloat(cfg.RateLimit, 'f', -1, 64)},
			{"prompt_style", cfg.PromptStyle},
			{"progress_style", cfg.ProgressStyle},
			{"on_conflict", cfg.OnConflict},
		}},
		{"logging", [][2]string{
			{"level", cfg.LogLevel},
			{"file", cfg.LogFile},
		}},
	}

	for _, s := range sections {
		section, err := iniFile.NewSection(s.name)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", s.name, err)
		}
		for _, kv := range s.keys {
			section.Key(kv[0]).SetValue(kv[1])
		}
	}

	var buf bytes.Buffer
	if _, err := iniFile.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// Temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := afero.WriteFile(fs, tmpPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := fs.Rename(tmpPath, path); err != nil {
		_ = fs.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks the settings needed before any action request is made.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	if strings.TrimSpace(c.Token) == "" {
		return ErrMissingToken
	}

	switch strings.ToLower(c.ProxyMode) {
	case "", "no-proxy", "system":
	case "basic", "ntlm":
		if strings.TrimSpace(c.ProxyHost) == "" {
			return ErrMissingProxyHost
		}
	default:
		return ErrInvalidProxyMode
	}

	switch c.PromptStyle {
	case PromptStyleLine, PromptStyleTUI:
	default:
		return ErrInvalidPromptStyle
	}

	switch c.ProgressStyle {
	case ProgressStyleBars, ProgressStyleSimple, ProgressStyleNone:
	default:
		return ErrInvalidProgressStyle
	}

	if c.RetryMax < 0 || c.RetryMax > 20 {
		return ErrInvalidRetryMax
	}
	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}

	return nil
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() Config {
	out := *c
	out.Token = mask(c.Token)
	out.CSRFToken = mask(c.CSRFToken)
	out.ProxyPassword = mask(c.ProxyPassword)
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + strings.Repeat("*", len(s)-4)
}
