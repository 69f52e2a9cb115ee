package session

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/opsdeck/opsdeck/internal/client"
	"github.com/opsdeck/opsdeck/internal/common/eventbus"
	"github.com/opsdeck/opsdeck/pkg/api"
)

// State is the controller's authentication state.
type State int

const (
	// Unauthenticated means no valid session is held.
	Unauthenticated State = iota
	// Authenticated means a session with an unexpired token is held.
	Authenticated
)

// String returns the state name.
func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// expiryMargin pads the self-expiry timer so it fires just past the token's
// claimed expiry rather than racing it.
const expiryMargin = 2 * time.Second

// signalBuffer sizes the invalidation subscription channel; concurrent 401s
// may each emit before the handler drains.
const signalBuffer = 4

// Controller owns the session lifecycle. It computes its initial state from
// one store read, serializes all session transitions, reacts to the
// session-invalidated broadcast, and proactively clears the session when the
// token's own expiry claim comes due.
type Controller struct {
	mu          sync.Mutex
	exec        *client.Executor
	store       *Store
	bus         *eventbus.EventBus
	unsubscribe func()

	state State
	token string
	user  *api.User
	timer *time.Timer
}

// NewController creates a controller wired to the given executor, store, and
// event bus. If the store holds a valid unexpired session the controller
// starts Authenticated and schedules self-expiry for it.
func NewController(exec *client.Executor, store *Store, bus *eventbus.EventBus) *Controller {
	c := &Controller{
		exec:  exec,
		store: store,
		bus:   bus,
		state: Unauthenticated,
	}

	if sess, ok := store.Get(); ok {
		c.mu.Lock()
		c.state = Authenticated
		c.token = sess.Token
		c.user = &sess.User
		c.scheduleExpiryLocked(sess.ExpiresAt)
		c.mu.Unlock()
	}

	if bus != nil {
		ch, unsub := bus.Subscribe(client.TopicSessionInvalidated, signalBuffer)
		c.unsubscribe = unsub
		go func() {
			for range ch {
				c.Invalidate()
			}
		}()
	}

	return c
}

// Login performs the credential exchange. On success the controller becomes
// Authenticated, holds {token, user} in memory, persists them only when
// persist is set, and schedules self-expiry from the token's claim. On
// failure the state is unchanged and the pipeline error is returned verbatim.
func (c *Controller) Login(ctx context.Context, identity, secret string, persist bool) error {
	payload, err := json.Marshal(api.LoginRequest{Identity: identity, Secret: secret})
	if err != nil {
		return ErrLoginFailed.Err(err)
	}

	resp, err := c.exec.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/api/auth/login",
		Body:   payload,
	})
	if err != nil {
		return err
	}

	var loginResp api.LoginResponse
	if err := resp.Decode(&loginResp); err != nil || loginResp.Token == "" {
		return ErrLoginFailed.Msg("login response carried no token")
	}

	// A token whose expiry cannot be decoded is treated as already expired.
	expiry, terr := TokenExpiry(loginResp.Token)
	if terr != nil || expired(expiry, time.Now()) {
		c.clearSession()
		return ErrSessionExpired.Msg("server issued an expired or undecodable token")
	}

	c.mu.Lock()
	c.state = Authenticated
	c.token = loginResp.Token
	c.user = &loginResp.User
	c.scheduleExpiryLocked(expiry)
	c.mu.Unlock()

	if persist {
		if err := c.store.Set(&Session{Token: loginResp.Token, User: loginResp.User, ExpiresAt: expiry}); err != nil {
			return err
		}
	}

	return nil
}

// Logout revokes the session server-side on a best-effort basis, then
// unconditionally clears in-memory and persisted state. It never fails from
// the caller's perspective.
func (c *Controller) Logout(ctx context.Context) {
	if _, err := c.exec.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/api/auth/logout",
	}); err != nil {
		log.Debug().Err(err).Msg("session revoke failed; clearing local state anyway")
	}
	c.clearSession()
}

// Invalidate clears the session in response to a credential rejection.
// Idempotent: clearing an already-cleared session is a no-op.
func (c *Controller) Invalidate() {
	c.clearSession()
}

// State returns the current authentication state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentUser returns the authenticated user, if any.
func (c *Controller) CurrentUser() (*api.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Authenticated || c.user == nil {
		return nil, false
	}
	user := *c.user
	return &user, true
}

// Token returns the in-memory bearer token while Authenticated, falling back
// to the persisted one. Satisfies the pipeline's TokenSource.
func (c *Controller) Token() (string, bool) {
	c.mu.Lock()
	if c.state == Authenticated && c.token != "" {
		token := c.token
		c.mu.Unlock()
		return token, true
	}
	c.mu.Unlock()
	return c.store.Token()
}

// Close tears down the controller: the invalidation subscription is removed
// and any pending self-expiry timer is stopped so it cannot fire against a
// destroyed session. Persisted state is left untouched.
func (c *Controller) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
}

// clearSession transitions to Unauthenticated, wipes in-memory state, stops
// the expiry timer, and empties the store. Safe to call from any state.
func (c *Controller) clearSession() {
	c.mu.Lock()
	c.state = Unauthenticated
	c.token = ""
	c.user = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	_ = c.store.Clear()
}

// scheduleExpiryLocked arms a one-shot timer that clears the session shortly
// after the token's claimed expiry. Any previously armed timer is replaced.
// Caller must hold c.mu.
func (c *Controller) scheduleExpiryLocked(expiry time.Time) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(time.Until(expiry)+expiryMargin, c.clearSession)
}
