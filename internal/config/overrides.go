package config

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides (ASSETMOVER_BASE_URL, ...).
const EnvPrefix = "ASSETMOVER"

// Override keys understood by ApplyOverrides. Flags bound into the viper
// instance must use these names.
const (
	KeyBaseURL       = "base_url"
	KeyToken         = "token"
	KeyCSRFToken     = "csrf_token"
	KeyProxyMode     = "proxy_mode"
	KeyProxyHost     = "proxy_host"
	KeyProxyPort     = "proxy_port"
	KeyNoProxy       = "no_proxy"
	KeyRetryMax      = "retry_max"
	KeyRateLimit     = "rate_limit"
	KeyPromptStyle   = "prompt_style"
	KeyProgressStyle = "progress_style"
	KeyOnConflict    = "on_conflict"
	KeyLogLevel      = "log_level"
	KeyLogFile       = "log_file"
)

// NewViper returns a viper instance reading ASSETMOVER_* environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// ApplyOverrides copies every key set in v (env var or bound flag) over cfg.
// Precedence is flag > env > file, which viper resolves for us.
func ApplyOverrides(cfg *Config, v *viper.Viper) {
	str := func(key string, dst *string) {
		if val := v.GetString(key); v.IsSet(key) && val != "" {
			*dst = val
		}
	}

	str(KeyBaseURL, &cfg.BaseURL)
	str(KeyToken, &cfg.Token)
	str(KeyCSRFToken, &cfg.CSRFToken)
	str(KeyProxyMode, &cfg.ProxyMode)
	str(KeyProxyHost, &cfg.ProxyHost)
	str(KeyNoProxy, &cfg.NoProxy)
	str(KeyPromptStyle, &cfg.PromptStyle)
	str(KeyProgressStyle, &cfg.ProgressStyle)
	str(KeyOnConflict, &cfg.OnConflict)
	str(KeyLogLevel, &cfg.LogLevel)
	str(KeyLogFile, &cfg.LogFile)

	if v.IsSet(KeyProxyPort) {
		if port := v.GetInt(KeyProxyPort); port > 0 {
			cfg.ProxyPort = port
		}
	}
	if v.IsSet(KeyRetryMax) {
		cfg.RetryMax = v.GetInt(KeyRetryMax)
	}
	if v.IsSet(KeyRateLimit) {
		cfg.RateLimit = v.GetFloat64(KeyRateLimit)
	}
}
