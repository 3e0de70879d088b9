// Package http builds the HTTP client used for action requests, including
// proxy handling and the retry policy plugged into retryablehttp.
package http

import (
	"crypto/tls"
	"net"
	nethttp "net/http"
	"os"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"golang.org/x/net/http2"

	"github.com/rescale/assetmover/internal/config"
	"github.com/rescale/assetmover/internal/constants"
	"github.com/rescale/assetmover/internal/logging"
)

// ConfigureHTTPClient returns a client honouring the proxy settings in cfg.
//
// A move batch fires one request per item at once, so the pool keeps
// HTTPMaxConnsPerHost connections around. HTTP/2 is negotiated only when no
// proxy is in the path; proxies tend to mishandle multiplexed streams.
// Set DISABLE_HTTP2=true to force HTTP/1.1 everywhere.
func ConfigureHTTPClient(cfg *config.Config, logger *logging.Logger) (*nethttp.Client, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	transport := &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          constants.HTTPMaxConnsPerHost * 2,
		MaxIdleConnsPerHost:   constants.HTTPMaxConnsPerHost,
		MaxConnsPerHost:       constants.HTTPMaxConnsPerHost,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
	}

	mode := strings.ToLower(cfg.ProxyMode)
	switch mode {
	case "no-proxy", "":
		transport.Proxy = nil

	case "system":
		transport.Proxy = nethttp.ProxyFromEnvironment

	case "basic", "ntlm":
		if cfg.ProxyHost == "" {
			// Incomplete saved config: run direct rather than refusing to start
			logger.Warn().Str("mode", mode).Msg("Proxy host is missing, falling back to no-proxy")
			mode = "no-proxy"
			break
		}
		if cfg.ProxyUser != "" && cfg.ProxyPassword == "" {
			logger.Warn().Msg("Proxy user configured but password missing, proxy auth disabled")
		}
		transport.Proxy = proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy, logger)

	default:
		return nil, config.ErrInvalidProxyMode
	}

	if proxyActive(mode) || os.Getenv("DISABLE_HTTP2") == "true" {
		transport.ForceAttemptHTTP2 = false
		transport.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	} else {
		transport.ForceAttemptHTTP2 = true
		if err := http2.ConfigureTransport(transport); err != nil {
			logger.Debug().Err(err).Msg("HTTP/2 not available, using HTTP/1.1")
		}
	}

	var rt nethttp.RoundTripper = transport
	if mode == "ntlm" {
		rt = ntlmssp.Negotiator{RoundTripper: transport}
	}

	return &nethttp.Client{
		Transport: rt,
		Timeout:   constants.APIRequestTimeout,
	}, nil
}

// proxyActive reports whether requests will go through a proxy in mode.
// System mode trusts the environment.
func proxyActive(mode string) bool {
	switch mode {
	case "no-proxy", "":
		return false
	case "system":
		for _, key := range []string{"HTTP_PROXY", "HTTPS_PROXY", "http_proxy", "https_proxy"} {
			if os.Getenv(key) != "" {
				return true
			}
		}
		return false
	default:
		return true
	}
}
