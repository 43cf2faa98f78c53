package session

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/entrhq/sessiond/pkg/browser"
	"github.com/entrhq/sessiond/pkg/logging"
)

// State is the lifecycle state of a session as observed from its metadata.
type State int

const (
	// StateAbsent means no metadata exists for the key.
	StateAbsent State = iota

	// StateConfirmed means the session is persisted, valid, and unexpired.
	StateConfirmed

	// StateExpired means the session sat idle past the TTL.
	StateExpired

	// StateInvalid means the session was explicitly invalidated.
	StateInvalid
)

// String returns the state name for logs and messages.
func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateConfirmed:
		return "confirmed"
	case StateExpired:
		return "expired"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// TTL is the maximum idle duration before a session expires.
	// Zero means DefaultTTL.
	TTL time.Duration

	// Headless controls whether login browsers run headless. Manual login
	// flows want a visible window.
	Headless bool

	// NavigationTimeout bounds login-page navigation (milliseconds).
	// Zero means the engine default.
	NavigationTimeout float64

	// Now overrides the clock, for tests. Nil means time.Now.
	Now func() time.Time

	// Logger receives lifecycle events. Nil means a component logger.
	Logger *logging.Logger
}

// Manager owns the session lifecycle: the pending-login registry, the
// transitions into and out of CONFIRMED, and the per-key serialization of
// all operations. Operations on different keys proceed in parallel; the
// manager imposes no limit on concurrent browser contexts.
type Manager struct {
	store   *Store
	engine  browser.Engine
	pending *pendingRegistry
	ttl     time.Duration

	headless   bool
	navTimeout float64

	now    func() time.Time
	logger *logging.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewManager creates a lifecycle manager over a store and an automation
// engine.
func NewManager(store *Store, engine browser.Engine, opts ManagerOptions) *Manager {
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger, _ = logging.NewLogger("session")
	}

	return &Manager{
		store:      store,
		engine:     engine,
		pending:    newPendingRegistry(),
		ttl:        opts.TTL,
		headless:   opts.Headless,
		navTimeout: opts.NavigationTimeout,
		now:        opts.Now,
		logger:     opts.Logger,
		locks:      make(map[string]*sync.Mutex),
	}
}

// LockKey acquires the per-key mutex and returns its release function.
// Every multi-step operation on a key (including the action dispatcher's
// execute flow) must run under this lock.
func (m *Manager) LockKey(key Key) func() {
	m.locksMu.Lock()
	lock, ok := m.locks[key.String()]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key.String()] = lock
	}
	m.locksMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// TTL returns the configured idle time-to-live.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Now returns the current instant from the manager's clock.
func (m *Manager) Now() time.Time {
	return m.now()
}

// Store returns the underlying metadata store.
func (m *Manager) Store() *Store {
	return m.store
}

// Dir returns the profile directory for a key.
func (m *Manager) Dir(key Key) string {
	return m.store.Paths().Dir(key)
}

// PendingCount returns the number of logins currently in progress.
func (m *Manager) PendingCount() int {
	return m.pending.count()
}

// CreateResult describes a newly opened pending login.
type CreateResult struct {
	// Dir is the profile directory backing the session.
	Dir string

	// LoginURL is the page the browser was navigated to.
	LoginURL string
}

// Create opens a fresh profile context at the key's directory, navigates to
// loginURL, and registers the key as pending. It fails with ErrLoginPending
// if a login is already in progress for the key. On any failure the
// partially created directory is removed; no orphaned directories survive.
func (m *Manager) Create(key Key, loginURL string) (*CreateResult, error) {
	release := m.LockKey(key)
	defer release()

	if m.pending.has(key) {
		return nil, fmt.Errorf("%w for %s", ErrLoginPending, key)
	}

	dir, err := m.store.GuardedDir(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}
	dirExisted := true
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		dirExisted = false
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	cleanup := func() {
		// Roll back only what this create introduced.
		if !dirExisted {
			os.RemoveAll(dir)
		}
	}

	ctx, err := m.engine.Open(dir, browser.ContextOptions{
		Headless: m.headless,
		Timeout:  m.navTimeout,
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	navOpts := browser.NavigateOptions{WaitUntil: "load", Timeout: m.navTimeout}
	if err := ctx.Page().Navigate(loginURL, navOpts); err != nil {
		ctx.Close()
		cleanup()
		return nil, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	m.pending.add(&pendingLogin{
		key:      key,
		context:  ctx,
		loginURL: loginURL,
		openedAt: m.now(),
	})

	m.logger.Infof("opened login browser for %s at %s", key, loginURL)
	return &CreateResult{Dir: dir, LoginURL: loginURL}, nil
}

// ConfirmResult describes a confirmed, persisted session.
type ConfirmResult struct {
	// CurrentURL is where the login flow ended, recorded as evidence.
	CurrentURL string
}

// Confirm persists the pending login for a key as a confirmed session,
// closes its browser context, and releases the pending entry. It is the
// sole transition into CONFIRMED and is not idempotent: a second confirm
// fails with ErrNoActiveSession because the pending entry is gone.
func (m *Manager) Confirm(key Key) (*ConfirmResult, error) {
	release := m.LockKey(key)
	defer release()

	p := m.pending.get(key)
	if p == nil {
		return nil, fmt.Errorf("%w for %s", ErrNoActiveSession, key)
	}

	currentURL := p.context.CurrentURL()
	now := m.now()

	md := Metadata{
		User:      key.User,
		Site:      key.Site,
		CreatedAt: now,
		LastUsed:  now,
		Valid:     true,
		Data: map[string]string{
			"login_url":    currentURL,
			"confirmed_at": now.UTC().Format(time.RFC3339),
		},
	}

	if err := m.store.Save(key, md); err != nil {
		// Keep the pending entry so the caller can retry the confirm.
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	if err := p.context.Close(); err != nil {
		m.logger.Warnf("failed to close login browser for %s: %v", key, err)
	}
	m.pending.remove(key)

	m.logger.Infof("confirmed session for %s at %s", key, currentURL)
	return &ConfirmResult{CurrentURL: currentURL}, nil
}

// Get loads a session's metadata and classifies its state. Absent sessions
// return (StateAbsent, nil, nil); corrupt metadata surfaces as an error.
func (m *Manager) Get(key Key) (State, *Metadata, error) {
	md, err := m.store.Load(key)
	if err != nil {
		return StateAbsent, nil, err
	}
	if md == nil {
		return StateAbsent, nil, nil
	}

	if !md.Valid {
		return StateInvalid, md, nil
	}
	if IsExpired(*md, m.now(), m.ttl) {
		return StateExpired, md, nil
	}
	return StateConfirmed, md, nil
}

// Invalidate marks a session's metadata invalid and re-persists it.
// One-way: only a fresh create/confirm cycle clears it.
func (m *Manager) Invalidate(key Key) error {
	md, err := m.store.Load(key)
	if err != nil {
		return err
	}
	if md == nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, key)
	}

	md.Valid = false
	if err := m.store.Save(key, *md); err != nil {
		return fmt.Errorf("failed to persist invalidation: %w", err)
	}

	m.logger.Warnf("invalidated session for %s", key)
	return nil
}

// Touch refreshes a session's last-used timestamp and re-persists it.
func (m *Manager) Touch(key Key) error {
	md, err := m.store.Load(key)
	if err != nil {
		return err
	}
	if md == nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, key)
	}

	md.LastUsed = m.now()
	if err := m.store.Save(key, *md); err != nil {
		return fmt.Errorf("failed to persist last-used update: %w", err)
	}
	return nil
}

// Delete removes the session's directory tree and any pending login for the
// key. It reports whether anything was removed and succeeds even when no
// session exists.
func (m *Manager) Delete(key Key) (bool, error) {
	release := m.LockKey(key)
	defer release()

	if p := m.pending.remove(key); p != nil {
		if err := p.context.Close(); err != nil {
			m.logger.Warnf("failed to close pending browser for %s: %v", key, err)
		}
	}

	removed, err := m.store.Remove(key)
	if err != nil {
		return false, err
	}

	if removed {
		m.logger.Infof("deleted session for %s", key)
	}
	return removed, nil
}

// List enumerates persisted sessions, optionally filtered by user.
func (m *Manager) List(userFilter string) ([]Summary, error) {
	return m.store.List(userFilter, m.now(), m.ttl)
}

// Shutdown closes every pending login context. Pending logins are not
// durable; callers must re-create them after a restart.
func (m *Manager) Shutdown() {
	for _, p := range m.pending.drain() {
		if err := p.context.Close(); err != nil {
			m.logger.Warnf("failed to close pending browser for %s: %v", p.key, err)
		}
	}
}
