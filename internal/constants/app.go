package constants

import (
	"time"
)

// Server actions used by the move engine
const (
	// ActionMoveAsset moves one asset into a folder
	ActionMoveAsset = "assets/move-asset"

	// ActionMoveFolder moves one folder under a new parent
	ActionMoveFolder = "assets/move-folder"

	// ActionDeleteFolder deletes a (now empty) source folder after a merge
	ActionDeleteFolder = "assets/delete-folder"

	// ActionRunQueue asks the server to process its background job queue
	// (reference indexes, thumbnails, search keywords) once a move settles.
	ActionRunQueue = "queue/run"
)

// Retry configuration for the action client
const (
	// DefaultRetryMax - retries for transient transport failures (5xx, resets)
	DefaultRetryMax = 4

	// RetryWaitMin - minimum wait between retries (500ms)
	RetryWaitMin = 500 * time.Millisecond

	// RetryWaitMax - maximum wait between retries (10s)
	RetryWaitMax = 10 * time.Second
)

// Request pacing (config rate_limit)
const (
	// RateLimitBurst - requests allowed back to back before pacing starts
	RateLimitBurst = 20

	// RateLimitWarnAfter - waits longer than this are logged (2s)
	RateLimitWarnAfter = 2 * time.Second

	// RateLimitWarnEvery - minimum time between throttling warnings (10s)
	RateLimitWarnEvery = 10 * time.Second
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// UI Updates
const (
	// ProgressRefreshRate - terminal progress bar refresh interval (150ms)
	ProgressRefreshRate = 150 * time.Millisecond

	// ProgressBarWidth - width of the terminal progress bar in columns
	ProgressBarWidth = 60

	// VisibilityPollInterval - how often the foreground check runs (500ms)
	VisibilityPollInterval = 500 * time.Millisecond
)

// API and Context Timeouts
const (
	// APIRequestTimeout - overall client timeout for a single action request (60 seconds)
	// Folder moves with large trees can take a while server-side.
	APIRequestTimeout = 60 * time.Second

	// RefreshJobTimeout - timeout for the background queue/run request (2 minutes)
	RefreshJobTimeout = 2 * time.Minute

	// MaxErrorBodyBytes - maximum response body read when building an error message (64 KB)
	MaxErrorBodyBytes = 64 * 1024
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (30 seconds)
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPMaxConnsPerHost - a move batch fires one request per item with no
	// in-flight cap, so the pool has to be generous.
	HTTPMaxConnsPerHost = 64
)

// Logging
const (
	// LogFileMaxSizeMB - rotate the log file after this many megabytes
	LogFileMaxSizeMB = 10

	// LogFileMaxBackups - rotated files to keep
	LogFileMaxBackups = 5

	// LogFileMaxAgeDays - days to keep rotated files
	LogFileMaxAgeDays = 30
)
