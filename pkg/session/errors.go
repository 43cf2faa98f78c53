package session

import "errors"

// Sentinel errors for the session lifecycle. Boundary layers match these
// with errors.Is to map failures to stable status codes; the distinction
// between "never existed" and "expired" drives different caller remediation.
var (
	// ErrNoActiveSession is returned by Confirm when no login is pending
	// for the key. Pending logins live only in memory, so a process
	// restart also surfaces this.
	ErrNoActiveSession = errors.New("no active login session")

	// ErrLoginPending is returned by Create when a login for the key is
	// already in progress. The open browser context must be confirmed or
	// deleted before another create is allowed.
	ErrLoginPending = errors.New("login already in progress")

	// ErrSessionNotFound is returned when no metadata exists for the key.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired covers both TTL expiry and explicit invalidation.
	// Callers must re-run the create/confirm onboarding flow.
	ErrSessionExpired = errors.New("session expired")

	// ErrCorruptMetadata is returned when a metadata file exists but
	// cannot be decrypted or parsed. Never treated as "no session".
	ErrCorruptMetadata = errors.New("corrupt session metadata")

	// ErrCreateFailed wraps profile open/navigate failures during Create.
	// The partially created profile directory is always rolled back.
	ErrCreateFailed = errors.New("failed to create session")
)
