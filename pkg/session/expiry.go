package session

import "time"

// DefaultTTL is the maximum idle duration before a confirmed session is
// treated as expired. Expiry is evaluated lazily, only when a session is
// read; there is no background sweeper.
const DefaultTTL = 168 * time.Hour

// IsExpired reports whether a session is unusable at the given instant:
// either it was explicitly invalidated, or it has sat idle past the TTL.
// Pure function, no I/O.
func IsExpired(md Metadata, now time.Time, ttl time.Duration) bool {
	if !md.Valid {
		return true
	}
	return now.After(md.LastUsed.Add(ttl))
}
