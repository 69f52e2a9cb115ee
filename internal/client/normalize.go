package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Error is the single failure shape returned by the request pipeline.
// StatusCode is zero for transport-level failures (DNS, connect, deadline).
// Detail carries the server's structured error payload when one was present.
// Immutable once constructed.
type Error struct {
	Message    string
	StatusCode int
	Detail     json.RawMessage
}

// Error returns the human-readable message. Always non-empty.
func (e *Error) Error() string {
	return e.Message
}

// Unauthorized reports whether the failure was a credential rejection.
func (e *Error) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// Transport reports whether the failure happened before a server response
// was received.
func (e *Error) Transport() bool {
	return e.StatusCode == 0
}

// normalizeTransport converts a failure that produced no response into an
// Error. The deadline case is named explicitly so callers can surface it.
func normalizeTransport(err error, timeout time.Duration) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Message: fmt.Sprintf("request timed out after %s", timeout)}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Message: "request canceled"}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return &Error{Message: fmt.Sprintf("request timed out after %s", timeout)}
		}
		return &Error{Message: "request failed: " + urlErr.Err.Error()}
	}
	return &Error{Message: "request failed: " + err.Error()}
}

// normalizeResponse converts a non-2xx response into an Error. The message
// precedence is: structured title field, structured message field, structured
// error field, raw body text, status phrase, "HTTP <status>". Some fallback
// always applies; normalization itself never fails.
func normalizeResponse(status int, header http.Header, body []byte) *Error {
	var msg string
	var detail json.RawMessage

	if len(body) > 0 {
		if isJSONContentType(header.Get("Content-Type")) && gjson.ValidBytes(body) {
			detail = json.RawMessage(body)
			for _, field := range []string{"title", "message", "error"} {
				if v := gjson.GetBytes(body, field); v.Type == gjson.String && v.Str != "" {
					msg = v.Str
					break
				}
			}
			if msg == "" {
				msg = strings.TrimSpace(string(body))
			}
		} else {
			msg = strings.TrimSpace(string(body))
		}
	}

	if msg == "" {
		msg = http.StatusText(status)
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}

	return &Error{Message: msg, StatusCode: status, Detail: detail}
}
