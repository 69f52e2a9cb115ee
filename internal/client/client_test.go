package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/opsdeck/internal/client"
	"github.com/opsdeck/opsdeck/internal/common/eventbus"
)

// staticTokens is a TokenSource returning a fixed token.
type staticTokens struct {
	token string
}

func (s *staticTokens) Token() (string, bool) {
	return s.token, s.token != ""
}

func TestDo_SuccessWithAuthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/topics", r.URL.Path)
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	exec := client.NewExecutor(client.Options{
		BaseURL: server.URL,
		Tokens:  &staticTokens{token: "test-token"},
	})

	resp, err := exec.Do(context.Background(), client.Request{Method: http.MethodGet, Path: "/api/topics"})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.IsJSON())

	var topics []string
	require.NoError(t, resp.Decode(&topics))
	assert.Empty(t, topics)
}

func TestDo_NoTokenNoAuthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	exec := client.NewExecutor(client.Options{BaseURL: server.URL, Tokens: &staticTokens{}})

	_, err := exec.Do(context.Background(), client.Request{Method: http.MethodGet, Path: "/api/topics"})
	require.NoError(t, err)
}

func TestDo_ContentTypeInjection(t *testing.T) {
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	exec := client.NewExecutor(client.Options{BaseURL: server.URL})

	_, err := exec.Do(context.Background(), client.Request{
		Method: http.MethodPost,
		Path:   "/api/topics",
		Body:   []byte(`{"name":"orders"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "application/json", gotContentType)

	// A caller-supplied content type is preserved.
	headers := http.Header{}
	headers.Set("Content-Type", "multipart/form-data; boundary=xyz")
	_, err = exec.Do(context.Background(), client.Request{
		Method:  http.MethodPost,
		Path:    "/api/topics",
		Body:    []byte("--xyz--"),
		Headers: headers,
	})
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data; boundary=xyz", gotContentType)
}

func TestDo_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid token"}`))
	}))
	defer server.Close()

	bus := eventbus.New()
	ch, unsubscribe := bus.Subscribe(client.TopicSessionInvalidated, 4)
	defer unsubscribe()

	exec := client.NewExecutor(client.Options{BaseURL: server.URL, Bus: bus})

	_, err := exec.Do(context.Background(), client.Request{Method: http.MethodGet, Path: "/api/topics"})
	require.Error(t, err)

	var cerr *client.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "invalid token", cerr.Message)
	assert.Equal(t, http.StatusUnauthorized, cerr.StatusCode)
	assert.True(t, cerr.Unauthorized())

	// Emission strictly precedes the error return, so the event must already
	// be in the subscriber's buffer.
	select {
	case <-ch:
	default:
		t.Fatal("no invalidation event published before error return")
	}

	// Exactly one emission per 401.
	select {
	case <-ch:
		t.Fatal("more than one invalidation event for a single 401")
	default:
	}
}

func TestDo_ConcurrentUnauthorizedEachEmit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	bus := eventbus.New()
	ch, unsubscribe := bus.Subscribe(client.TopicSessionInvalidated, 16)
	defer unsubscribe()

	exec := client.NewExecutor(client.Options{BaseURL: server.URL, Bus: bus})

	const calls = 5
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := exec.Do(context.Background(), client.Request{Method: http.MethodGet, Path: "/x"})
			assert.Error(t, err)
		}()
	}
	wg.Wait()

	for i := 0; i < calls; i++ {
		select {
		case <-ch:
		default:
			t.Fatalf("expected %d emissions, got %d", calls, i)
		}
	}
}

func TestDo_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	bus := eventbus.New()
	ch, unsubscribe := bus.Subscribe(client.TopicSessionInvalidated, 1)
	defer unsubscribe()

	exec := client.NewExecutor(client.Options{BaseURL: server.URL, Bus: bus})

	_, err := exec.Do(context.Background(), client.Request{
		Method:  http.MethodGet,
		Path:    "/slow",
		Timeout: 50 * time.Millisecond,
	})
	require.Error(t, err)

	var cerr *client.Error
	require.ErrorAs(t, err, &cerr)
	assert.Zero(t, cerr.StatusCode)
	assert.True(t, cerr.Transport())
	assert.Contains(t, cerr.Message, "timed out")

	// A timeout is not a credential rejection.
	select {
	case <-ch:
		t.Fatal("invalidation event published for a timeout")
	default:
	}
}

func TestDo_NoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	exec := client.NewExecutor(client.Options{BaseURL: server.URL})

	resp, err := exec.Do(context.Background(), client.Request{Method: http.MethodDelete, Path: "/api/topics/x"})
	require.NoError(t, err)
	assert.True(t, resp.Empty())
	assert.False(t, resp.IsJSON())

	var v map[string]string
	require.NoError(t, resp.Decode(&v))
	assert.Nil(t, v)
}

func TestDo_MalformedJSONOnSuccessIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"broken":`))
	}))
	defer server.Close()

	exec := client.NewExecutor(client.Options{BaseURL: server.URL})

	resp, err := exec.Do(context.Background(), client.Request{Method: http.MethodGet, Path: "/api/topics"})
	require.NoError(t, err)
	assert.True(t, resp.Empty())
}

func TestDo_NonJSONBodyReturnedRaw(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("pong"))
	}))
	defer server.Close()

	exec := client.NewExecutor(client.Options{BaseURL: server.URL})

	resp, err := exec.Do(context.Background(), client.Request{Method: http.MethodGet, Path: "/ping"})
	require.NoError(t, err)
	assert.False(t, resp.IsJSON())
	assert.Equal(t, "pong", string(resp.Body))
}

func TestDo_AbsoluteURLBypassesBase(t *testing.T) {
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"host":"other"}`))
	}))
	defer other.Close()

	exec := client.NewExecutor(client.Options{BaseURL: "https://console.example.com"})

	resp, err := exec.Do(context.Background(), client.Request{Method: http.MethodGet, Path: other.URL + "/external"})
	require.NoError(t, err)

	var body map[string]string
	require.NoError(t, resp.Decode(&body))
	assert.Equal(t, "other", body["host"])
}

func TestDo_RelativePathWithoutBaseFails(t *testing.T) {
	exec := client.NewExecutor(client.Options{})

	_, err := exec.Do(context.Background(), client.Request{Method: http.MethodGet, Path: "/api/topics"})
	require.Error(t, err)

	var cerr *client.Error
	require.ErrorAs(t, err, &cerr)
	assert.True(t, cerr.Transport())
}

func TestDo_QueryParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	exec := client.NewExecutor(client.Options{BaseURL: server.URL})

	_, err := exec.Do(context.Background(), client.Request{
		Method:      http.MethodGet,
		Path:        "/api/topics",
		QueryParams: map[string]string{"limit": "25"},
	})
	require.NoError(t, err)
}

func TestDo_ServerErrorFallbacks(t *testing.T) {
	t.Run("plain text body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream unavailable"))
		}))
		defer server.Close()

		exec := client.NewExecutor(client.Options{BaseURL: server.URL})
		_, err := exec.Do(context.Background(), client.Request{Method: http.MethodGet, Path: "/x"})

		var cerr *client.Error
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "upstream unavailable", cerr.Message)
		assert.Equal(t, http.StatusBadGateway, cerr.StatusCode)
	})

	t.Run("empty body falls back to status phrase", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		exec := client.NewExecutor(client.Options{BaseURL: server.URL})
		_, err := exec.Do(context.Background(), client.Request{Method: http.MethodGet, Path: "/x"})

		var cerr *client.Error
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, http.StatusText(http.StatusServiceUnavailable), cerr.Message)
	})
}
