package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rescale/assetmover/internal/config"
	"github.com/rescale/assetmover/internal/constants"
)

func testConfig(baseURL string) *config.Config {
	cfg := config.New()
	cfg.BaseURL = baseURL
	cfg.Token = "test-token"
	cfg.RetryMax = 0
	return cfg
}

// TestNewClientRejectsEmptyBaseURL verifies that NewClient fails with a clear error
// when BaseURL is empty, instead of creating a broken client that produces
// "unsupported protocol scheme" errors on every request.
func TestNewClientRejectsEmptyBaseURL(t *testing.T) {
	_, err := NewClient(testConfig("  "), nil)
	if !errors.Is(err, ErrEmptyBaseURL) {
		t.Fatalf("NewClient() error = %v, want ErrEmptyBaseURL", err)
	}
	if !strings.Contains(err.Error(), "API base URL is empty") {
		t.Errorf("NewClient() error = %q, want error containing 'API base URL is empty'", err.Error())
	}
}

func TestNewClientTrimsTrailingSlash(t *testing.T) {
	client, err := NewClient(testConfig("https://cms.example.com/"), nil)
	require.NoError(t, err)
	require.Equal(t, "https://cms.example.com", client.BaseURL())
}

func TestPostSendsActionRequest(t *testing.T) {
	var got struct {
		path    string
		headers nethttp.Header
		params  map[string]any
	}

	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		got.path = r.URL.Path
		got.headers = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got.params)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"transferList":[{"assetId":7,"folderId":10}]}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.CSRFToken = "csrf-123"
	client, err := NewClient(cfg, nil)
	require.NoError(t, err)

	result, err := client.Post(context.Background(), "assets/move-folder", map[string]any{
		"folderId": 10,
		"parentId": 5,
		"merge":    true,
	})
	require.NoError(t, err)

	require.Equal(t, "/actions/assets/move-folder", got.path)
	require.Equal(t, "Bearer test-token", got.headers.Get("Authorization"))
	require.Equal(t, "csrf-123", got.headers.Get("X-CSRF-Token"))
	require.Equal(t, "application/json", got.headers.Get("Accept"))
	require.Equal(t, "XMLHttpRequest", got.headers.Get("X-Requested-With"))
	_, err = uuid.Parse(got.headers.Get("X-Request-Id"))
	require.NoError(t, err, "X-Request-Id should be a UUID")

	require.Equal(t, float64(10), got.params["folderId"])
	require.Equal(t, true, got.params["merge"])

	require.True(t, result.Success())
	transfers := result.TransferList()
	require.Len(t, transfers, 1)
	require.Equal(t, float64(7), transfers[0]["assetId"])
}

func TestPostUsesRequestIDFromContext(t *testing.T) {
	var seen atomic.Value
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		seen.Store(r.Header.Get("X-Request-Id"))
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), nil)
	require.NoError(t, err)

	ctx := WithRequestID(context.Background(), "move-asset-2")
	require.Equal(t, "move-asset-2", RequestIDFromContext(ctx))
	require.Empty(t, RequestIDFromContext(context.Background()))

	_, err = client.Post(ctx, "assets/move-asset", nil)
	require.NoError(t, err)
	require.Equal(t, "move-asset-2", seen.Load())
}

func TestPostConflictAndErrorBodies(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		contentType  string
		body         string
		wantConflict string
		wantError    string
	}{
		{
			name:         "conflict on 200",
			status:       200,
			contentType:  "application/json",
			body:         `{"conflict":"A file named photo.jpg already exists.","suggestedFilename":"photo-2.jpg"}`,
			wantConflict: "A file named photo.jpg already exists.",
		},
		{
			name:        "json error on 400",
			status:      400,
			contentType: "application/json",
			body:        `{"error":"Folder not found"}`,
			wantError:   "Folder not found",
		},
		{
			name:        "json message on 403",
			status:      403,
			contentType: "application/json",
			body:        `{"message":"User not permitted"}`,
			wantError:   "User not permitted (HTTP 403)",
		},
		{
			name:        "html error page",
			status:      500,
			contentType: "text/html; charset=utf-8",
			body:        `<html><head><title>Oops</title><style>h1{}</style></head><body><h1>  Internal   Server Error </h1><p>trace</p></body></html>`,
			wantError:   "Internal Server Error (HTTP 500)",
		},
		{
			name:        "empty body",
			status:      404,
			contentType: "text/plain",
			body:        "",
			wantError:   "Not Found (HTTP 404)",
		},
		{
			name:        "non-json success",
			status:      200,
			contentType: "text/html",
			body:        "<html>login</html>",
			wantError:   "Unexpected response from assets/move-asset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewClient(testConfig(server.URL), nil)
			require.NoError(t, err)

			result, err := client.Post(context.Background(), "assets/move-asset", map[string]any{"assetId": 1})
			require.NoError(t, err)
			require.False(t, result.Success())
			require.Equal(t, tt.wantConflict, result.Conflict())
			require.Equal(t, tt.wantError, result.ErrorMessage())
		})
	}
}

func TestPostRetriesUnavailable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(nethttp.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.RetryMax = 2
	client, err := NewClient(cfg, nil)
	require.NoError(t, err)

	result, err := client.Post(context.Background(), "assets/move-asset", nil)
	require.NoError(t, err)
	require.True(t, result.Success())
	require.Equal(t, int32(2), calls.Load())
}

func TestPostTransportError(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {}))
	url := server.URL
	server.Close()

	client, err := NewClient(testConfig(url), nil)
	require.NoError(t, err)

	_, err = client.Post(context.Background(), "assets/delete-folder", map[string]any{"folderId": 10})
	require.Error(t, err)
	require.Contains(t, err.Error(), "assets/delete-folder request failed")
}

func TestPostCancelledContext(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Post(ctx, "assets/move-asset", nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPostRateLimited(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.RateLimit = 0.5
	client, err := NewClient(cfg, nil)
	require.NoError(t, err)

	for i := 0; i < constants.RateLimitBurst; i++ {
		_, err := client.Post(context.Background(), "assets/move-asset", nil)
		require.NoError(t, err)
	}

	// Bucket is empty and the next token is two seconds away
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Post(ctx, "assets/move-asset", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, int32(constants.RateLimitBurst), hits.Load())
}
