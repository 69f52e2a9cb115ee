package cli

import (
	"fmt"

	"github.com/opsdeck/opsdeck/internal/client"
	"github.com/opsdeck/opsdeck/internal/common/eventbus"
	"github.com/opsdeck/opsdeck/internal/session"
)

// runtime holds the explicitly wired client core for one CLI invocation:
// the event bus, the session store and controller, and the request executor.
// Constructed at command start and torn down when the command finishes.
type runtime struct {
	bus   *eventbus.EventBus
	store *session.Store
	exec  *client.Executor
	ctrl  *session.Controller
}

// newRuntime wires the client core from the loaded configuration.
func newRuntime(cfg *Config) (*runtime, error) {
	storePath, err := session.DefaultStorePath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session store path: %w", err)
	}

	bus := eventbus.New()
	store := session.NewStore(storePath)

	// The controller needs the executor for its login/logout calls, and the
	// executor needs the controller for tokens; the indirection below breaks
	// the cycle while keeping wiring explicit.
	var ctrl *session.Controller
	exec := client.NewExecutor(client.Options{
		BaseURL:        cfg.GetServerURL(),
		DefaultTimeout: cfg.Timeout(),
		Bus:            bus,
		Tokens: client.TokenSourceFunc(func() (string, bool) {
			if ctrl == nil {
				return store.Token()
			}
			return ctrl.Token()
		}),
	})
	ctrl = session.NewController(exec, store, bus)

	return &runtime{
		bus:   bus,
		store: store,
		exec:  exec,
		ctrl:  ctrl,
	}, nil
}

// Close tears the runtime down in reverse wiring order.
func (rt *runtime) Close() {
	rt.ctrl.Close()
	rt.bus.Shutdown()
}

// requireRuntime builds a runtime from the loaded config, or reports the
// missing config in the standard error shape.
func requireRuntime() (*runtime, error) {
	cfg := GetConfig()
	if cfg == nil {
		return nil, fmt.Errorf("no configuration loaded")
	}
	return newRuntime(cfg)
}
