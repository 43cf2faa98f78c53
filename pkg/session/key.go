// Package session implements the persistent browser session registry: the
// identity scheme mapping (user, site) pairs to profile directories, the
// encrypted metadata store, the expiration policy, and the pending-login →
// confirmed-session lifecycle.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// metadataFileName is the encrypted metadata file inside a profile directory.
const metadataFileName = "session_metadata.json"

// digestWidth is the number of hex characters of the key digest embedded in
// a directory name. 64 bits keeps names short while making accidental
// collisions between distinct keys vanishingly unlikely.
const digestWidth = 16

// Key identifies a session by its (user, site) pair. Both identifiers are
// opaque non-empty strings.
type Key struct {
	User string
	Site string
}

// NewKey validates and builds a session key.
func NewKey(user, site string) (Key, error) {
	if user == "" {
		return Key{}, fmt.Errorf("user identifier is required")
	}
	if site == "" {
		return Key{}, fmt.Errorf("site identifier is required")
	}
	return Key{User: user, Site: site}, nil
}

// String returns the canonical "user:site" form used for pending-map keys
// and log lines.
func (k Key) String() string {
	return k.User + ":" + k.Site
}

// DirName returns the deterministic directory name for the key:
// <user>_<digest>_<site>, where digest is a truncated SHA-256 of the
// canonical key. The embedded identifiers are sanitized for filesystems and
// exist only for human inspection; the authoritative key→directory mapping
// is the store's index, never a reverse parse of this name.
func (k Key) DirName() string {
	sum := sha256.Sum256([]byte(k.String()))
	digest := hex.EncodeToString(sum[:])[:digestWidth]
	return fmt.Sprintf("%s_%s_%s", sanitizeIdentifier(k.User), digest, sanitizeIdentifier(k.Site))
}

// sanitizeIdentifier replaces runes that are unsafe in directory names.
// Identifiers are opaque, so this is lossy on purpose; uniqueness comes
// from the digest segment.
func sanitizeIdentifier(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '-'
		}
		return r
	}, s)
}

// Paths resolves on-disk locations for sessions under a fixed root.
type Paths struct {
	root string
}

// NewPaths creates a path resolver rooted at the sessions directory.
func NewPaths(root string) Paths {
	return Paths{root: root}
}

// Root returns the sessions root directory.
func (p Paths) Root() string {
	return p.root
}

// Dir returns the profile directory for a key. Same key, same path; the
// directory contents belong to the automation engine.
func (p Paths) Dir(key Key) string {
	return filepath.Join(p.root, key.DirName())
}

// MetadataPath returns the encrypted metadata file path for a key.
func (p Paths) MetadataPath(key Key) string {
	return filepath.Join(p.Dir(key), metadataFileName)
}

// IndexPath returns the path of the key→directory index file.
func (p Paths) IndexPath() string {
	return filepath.Join(p.root, "index.json")
}
