package action

import (
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/sessiond/pkg/browser"
	"github.com/entrhq/sessiond/pkg/logging"
	"github.com/entrhq/sessiond/pkg/session"
)

// invalidationSignatures are failure substrings that imply the stored
// credentials or session state are no longer good. A match invalidates the
// session rather than reporting a transient failure.
var invalidationSignatures = []string{
	"net::ERR_",
	"Session expired",
}

// Result is a completed action's payload.
type Result struct {
	ActionType string
	Payload    map[string]any
	Timestamp  time.Time
}

// Dispatcher executes actions against confirmed sessions. Each execute call
// reopens the profile directory as a fresh browser context for its duration;
// the directory is the durable source of truth and no context is held open
// between calls. The context is closed on every exit path.
type Dispatcher struct {
	manager  *session.Manager
	registry *Registry
	engine   browser.Engine
	headless bool
	logger   *logging.Logger
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// Headless controls whether action browsers run headless. Unlike
	// login flows, actions need no visible window.
	Headless bool

	// Logger receives dispatch events. Nil means a component logger.
	Logger *logging.Logger
}

// NewDispatcher creates a dispatcher over a lifecycle manager, a handler
// registry, and an automation engine.
func NewDispatcher(manager *session.Manager, registry *Registry, engine browser.Engine, opts DispatcherOptions) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger, _ = logging.NewLogger("dispatch")
	}

	return &Dispatcher{
		manager:  manager,
		registry: registry,
		engine:   engine,
		headless: opts.Headless,
		logger:   opts.Logger,
	}
}

// Execute runs the named action against the session for key.
//
// It fails with session.ErrSessionNotFound when no session exists,
// session.ErrSessionExpired when the session is expired or invalidated, and
// ErrUnknownAction for an unregistered action type. A handler failure whose
// cause matches a transport/navigation signature invalidates the session
// before surfacing session.ErrSessionExpired; any other handler failure is
// wrapped in ErrActionFailed.
func (d *Dispatcher) Execute(key session.Key, actionType string, data map[string]any) (*Result, error) {
	release := d.manager.LockKey(key)
	defer release()

	state, _, err := d.manager.Get(key)
	if err != nil {
		return nil, err
	}

	switch state {
	case session.StateAbsent:
		return nil, fmt.Errorf("%w: %s", session.ErrSessionNotFound, key)
	case session.StateExpired, session.StateInvalid:
		return nil, fmt.Errorf("%w: %s is %s", session.ErrSessionExpired, key, state)
	}

	handler, err := d.registry.Get(actionType)
	if err != nil {
		return nil, err
	}

	ctx, err := d.engine.Open(d.manager.Dir(key), browser.ContextOptions{Headless: d.headless})
	if err != nil {
		return nil, d.classifyFailure(key, actionType, err)
	}
	defer ctx.Close()

	payload, err := handler.Perform(ctx.Page(), data)
	if err != nil {
		return nil, d.classifyFailure(key, actionType, err)
	}

	if err := d.manager.Touch(key); err != nil {
		return nil, fmt.Errorf("action succeeded but metadata update failed: %w", err)
	}

	d.logger.Infof("completed %s for %s", actionType, key)
	return &Result{
		ActionType: actionType,
		Payload:    payload,
		Timestamp:  d.manager.Now(),
	}, nil
}

// classifyFailure maps a collaborator failure to the error taxonomy,
// invalidating the session when the failure signature implies it is no
// longer good.
func (d *Dispatcher) classifyFailure(key session.Key, actionType string, cause error) error {
	if matchesInvalidationSignature(cause) {
		d.logger.Warnf("%s for %s hit a session-invalid signature: %v", actionType, key, cause)
		if err := d.manager.Invalidate(key); err != nil {
			d.logger.Errorf("failed to invalidate %s: %v", key, err)
		}
		return fmt.Errorf("%w: %v", session.ErrSessionExpired, cause)
	}

	return fmt.Errorf("%w: %s: %v", ErrActionFailed, actionType, cause)
}

func matchesInvalidationSignature(err error) bool {
	msg := err.Error()
	for _, sig := range invalidationSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
