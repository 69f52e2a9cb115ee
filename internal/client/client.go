// Package client implements the typed request pipeline used by every command
// surface of the console. It issues single-flight HTTP calls with per-call
// deadlines, injects the current session credential, normalizes all failures
// into one error shape, and broadcasts a session-invalidated signal whenever
// the server rejects the credential.
package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/opsdeck/opsdeck/internal/common/eventbus"
	"github.com/opsdeck/opsdeck/internal/common/logtrace"
	"github.com/opsdeck/opsdeck/internal/common/uuid"
)

// TopicSessionInvalidated is published on the event bus whenever a request
// fails with 401. Zero payload; subscribers react by clearing session state.
const TopicSessionInvalidated = "auth.session.invalidated"

// DefaultRequestTimeout bounds a call when the request carries no override.
const DefaultRequestTimeout = 30 * time.Second

// publishTimeout bounds delivery to a slow signal subscriber so a failing
// request is never held up by the broadcast.
const publishTimeout = 100 * time.Millisecond

var jsonit = jsoniter.ConfigCompatibleWithStandardLibrary

// TokenSource supplies the current bearer token for outgoing requests.
// Reads must be synchronous and side-effect free; the executor takes one
// snapshot per call immediately before dispatch.
type TokenSource interface {
	Token() (string, bool)
}

// TokenSourceFunc adapts a function to the TokenSource interface.
type TokenSourceFunc func() (string, bool)

// Token calls f.
func (f TokenSourceFunc) Token() (string, bool) {
	return f()
}

// Request describes a single call. Created per call and owned by the
// executor for the duration of the call.
type Request struct {
	Method      string            // HTTP method (GET, POST, PUT, DELETE)
	Path        string            // endpoint path, or a scheme-prefixed absolute URL used verbatim
	QueryParams map[string]string // optional query parameters
	Headers     http.Header       // optional extra headers, preserved as supplied
	Body        []byte            // optional request body
	Timeout     time.Duration     // optional per-call deadline; 0 means the executor default
}

// Response is the normalized successful result of a call.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte // raw body; empty for no-content results

	isJSON bool
}

// Empty reports whether the call produced no content. A 204, a zero-length
// body, and an unparseable body on a 2xx all land here.
func (r *Response) Empty() bool {
	return len(r.Body) == 0
}

// IsJSON reports whether the body was served with a JSON content type.
func (r *Response) IsJSON() bool {
	return r.isJSON
}

// Decode unmarshals a JSON body into v. Decoding an empty result is a no-op,
// leaving v at its zero value.
func (r *Response) Decode(v any) error {
	if r.Empty() {
		return nil
	}
	return jsonit.Unmarshal(r.Body, v)
}

// Options configures an Executor. BaseURL may be empty when every request
// path is absolute. Tokens and Bus are optional; without them the executor
// sends unauthenticated requests and skips the invalidation broadcast.
type Options struct {
	BaseURL        string
	DefaultTimeout time.Duration
	Tokens         TokenSource
	Bus            *eventbus.EventBus
	HTTPClient     *http.Client
}

// Executor issues HTTP calls against the console backend. Any number of calls
// may be in flight concurrently; each owns its own deadline and cancellation.
type Executor struct {
	baseURL        string
	defaultTimeout time.Duration
	tokens         TokenSource
	bus            *eventbus.EventBus
	httpClient     *http.Client
}

// NewExecutor creates an executor from the given options.
func NewExecutor(opts Options) *Executor {
	timeout := opts.DefaultTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Executor{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		defaultTimeout: timeout,
		tokens:         opts.Tokens,
		bus:            opts.Bus,
		httpClient:     httpClient,
	}
}

// Do executes one request and returns the classified response or a
// normalized error. Exactly one network attempt is made per call; the
// deadline timer is released on every exit path.
func (e *Executor) Do(ctx context.Context, req Request) (*Response, error) {
	target, err := e.resolveTarget(req)
	if err != nil {
		return nil, &Error{Message: "invalid request target: " + err.Error()}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	requestId := uuid.New().String()
	ctx = logtrace.WithRequestId(ctx, requestId)

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bytes.NewReader(req.Body))
	if err != nil {
		return nil, &Error{Message: "failed to create request: " + err.Error()}
	}

	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	// Multipart uploads carry their own boundary header, so a missing content
	// type always means a JSON body.
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	httpReq.Header.Set("X-Request-Id", requestId)

	if e.tokens != nil {
		if token, ok := e.tokens.Token(); ok && token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		nerr := normalizeTransport(err, timeout)
		log.Debug().
			Str("request_id", requestId).
			Str("method", req.Method).
			Str("url", target).
			Dur("elapsed", time.Since(start)).
			Str("error", nerr.Message).
			Msg("request failed")
		return nil, nerr
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		// Normalization treats an unreadable body as "no detail available".
		body = nil
	}

	log.Debug().
		Str("request_id", requestId).
		Str("method", req.Method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request completed")

	if resp.StatusCode == http.StatusUnauthorized && e.bus != nil {
		// The broadcast must settle before the caller sees the error, so a
		// 401-shaped error always finds the session already invalidated.
		e.bus.Publish(TopicSessionInvalidated, nil, publishTimeout)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, normalizeResponse(resp.StatusCode, resp.Header, body)
	}

	if resp.StatusCode == http.StatusNoContent || len(body) == 0 {
		return &Response{StatusCode: resp.StatusCode, Headers: resp.Header}, nil
	}

	if isJSONContentType(resp.Header.Get("Content-Type")) {
		if !gjson.ValidBytes(body) {
			// A malformed body on a successful response is no content, not
			// an error.
			return &Response{StatusCode: resp.StatusCode, Headers: resp.Header}, nil
		}
		return &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Body: body, isJSON: true}, nil
	}

	return &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Body: body}, nil
}

// resolveTarget builds the final request URL. Scheme-prefixed paths address
// third-party hosts and bypass the configured base entirely.
func (e *Executor) resolveTarget(req Request) (string, error) {
	var u *url.URL
	var err error

	if strings.HasPrefix(req.Path, "http://") || strings.HasPrefix(req.Path, "https://") {
		u, err = url.Parse(req.Path)
		if err != nil {
			return "", err
		}
	} else {
		if e.baseURL == "" {
			return "", errors.New("no base URL configured for relative path " + req.Path)
		}
		u, err = url.Parse(e.baseURL)
		if err != nil {
			return "", err
		}
		u.Path = path.Join(u.Path, req.Path)
	}

	q := u.Query()
	for k, v := range req.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// isJSONContentType reports whether a Content-Type header denotes JSON,
// including structured suffixes like application/problem+json.
func isJSONContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
