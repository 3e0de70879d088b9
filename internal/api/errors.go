package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// ErrEmptyBaseURL is returned by NewClient when no site URL is configured.
var ErrEmptyBaseURL = errors.New("API base URL is empty")

// maxErrorText caps messages pulled out of error pages.
const maxErrorText = 300

// errorText extracts a human readable message from a failed response body.
//
// JSON bodies contribute their "message" or "error" field. HTML pages
// (framework exception screens, proxy error pages) are reduced to the first
// heading, falling back to the title and then the visible body text.
func errorText(contentType string, body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	if body[0] == '{' {
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err == nil {
			for _, key := range []string{"message", "error"} {
				if s, ok := payload[key].(string); ok && s != "" {
					return truncate(s)
				}
			}
		}
	}

	if strings.Contains(contentType, "html") || bytes.HasPrefix(body, []byte("<")) {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err == nil {
			doc.Find("script, style").Remove()
			for _, sel := range []string{"h1", "title", "body"} {
				if text := collapse(doc.Find(sel).First().Text()); text != "" {
					return truncate(text)
				}
			}
		}
	}

	return truncate(collapse(string(body)))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string) string {
	if len(s) <= maxErrorText {
		return s
	}
	cut := maxErrorText
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
