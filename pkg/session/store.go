package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/entrhq/sessiond/pkg/crypto"
	"github.com/entrhq/sessiond/pkg/security/pathguard"
)

// envelope is the on-disk wrapper around the encrypted metadata blob.
type envelope struct {
	EncryptedMetadata string `json:"encrypted_metadata"`
}

// Store persists encrypted session metadata, one file per session, plus an
// index mapping keys to directory names. All writes are atomic
// (write-temp-then-rename) so a crash never leaves a half-written file.
type Store struct {
	mu    sync.Mutex
	paths Paths
	codec *crypto.Codec
	index *index
	guard *pathguard.Guard
}

// NewStore creates a metadata store rooted at paths, ensuring the sessions
// root exists.
func NewStore(paths Paths, codec *crypto.Codec) (*Store, error) {
	if err := os.MkdirAll(paths.Root(), 0700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	guard, err := pathguard.NewGuard(paths.Root())
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions path guard: %w", err)
	}

	idx, err := loadIndex(paths.IndexPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load session index: %w", err)
	}

	return &Store{paths: paths, codec: codec, index: idx, guard: guard}, nil
}

// GuardedDir resolves and validates the profile directory for a key,
// rejecting anything that would land outside the sessions root.
func (s *Store) GuardedDir(key Key) (string, error) {
	return s.guard.Validate(s.paths.Dir(key))
}

// Paths returns the store's path resolver.
func (s *Store) Paths() Paths {
	return s.paths
}

// Save serializes, encrypts, and atomically writes metadata for a key, and
// records the key in the index. The metadata file is owner-only.
func (s *Store) Save(key Key, md Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	plaintext, err := marshalMetadata(md)
	if err != nil {
		return fmt.Errorf("failed to serialize metadata: %w", err)
	}

	ciphertext, err := s.codec.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt metadata: %w", err)
	}

	wrapped, err := json.Marshal(envelope{
		EncryptedMetadata: base64.StdEncoding.EncodeToString(ciphertext),
	})
	if err != nil {
		return fmt.Errorf("failed to encode metadata envelope: %w", err)
	}

	dir, err := s.guard.Validate(s.paths.Dir(key))
	if err != nil {
		return fmt.Errorf("refusing to write session directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	if err := writeFileAtomic(s.paths.MetadataPath(key), wrapped, 0600); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	if err := s.index.put(key, key.DirName()); err != nil {
		return fmt.Errorf("failed to update session index: %w", err)
	}

	return nil
}

// Load reads and decrypts metadata for a key. It returns (nil, nil) when no
// metadata file exists; a file that exists but cannot be decrypted or parsed
// fails with ErrCorruptMetadata, never with "absent".
func (s *Store) Load(key Key) (*Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(key)
}

func (s *Store) loadLocked(key Key) (*Metadata, error) {
	data, err := os.ReadFile(s.paths.MetadataPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var wrapped envelope
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: invalid envelope: %v", ErrCorruptMetadata, err)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(wrapped.EncryptedMetadata)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ciphertext encoding: %v", ErrCorruptMetadata, err)
	}

	plaintext, err := s.codec.Decrypt(ciphertext)
	if err != nil {
		if errors.Is(err, crypto.ErrCiphertext) {
			return nil, fmt.Errorf("%w: %v", ErrCorruptMetadata, err)
		}
		return nil, fmt.Errorf("failed to decrypt metadata: %w", err)
	}

	md, err := unmarshalMetadata(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptMetadata, err)
	}

	return &md, nil
}

// Remove deletes the whole session directory tree and the index entry. It
// reports whether anything existed.
func (s *Store) Remove(key Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.guard.Validate(s.paths.Dir(key))
	if err != nil {
		return false, fmt.Errorf("refusing to remove session directory: %w", err)
	}
	_, statErr := os.Stat(dir)
	existed := statErr == nil

	if existed {
		if err := os.RemoveAll(dir); err != nil {
			return false, fmt.Errorf("failed to remove session directory: %w", err)
		}
	}

	removed, err := s.index.remove(key)
	if err != nil {
		return existed, fmt.Errorf("failed to update session index: %w", err)
	}

	return existed || removed, nil
}

// Summary describes one session in a listing. Corrupt entries carry only
// the identifiers plus the Corrupt flag.
type Summary struct {
	User      string
	Site      string
	CreatedAt time.Time
	LastUsed  time.Time
	Valid     bool
	Expired   bool
	Corrupt   bool
}

// List enumerates sessions from the index, applying the expiration policy
// at the given instant. Sessions with unreadable metadata are surfaced as
// degraded (Corrupt) entries rather than silently skipped; index entries
// whose directory has vanished are pruned.
func (s *Store) List(userFilter string, now time.Time, ttl time.Duration) ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var summaries []Summary
	for _, key := range s.index.keys() {
		if userFilter != "" && key.User != userFilter {
			continue
		}

		if _, err := os.Stat(s.paths.Dir(key)); os.IsNotExist(err) {
			if _, err := s.index.remove(key); err != nil {
				return nil, fmt.Errorf("failed to prune session index: %w", err)
			}
			continue
		}

		md, err := s.loadLocked(key)
		if err != nil {
			summaries = append(summaries, Summary{User: key.User, Site: key.Site, Corrupt: true})
			continue
		}
		if md == nil {
			// Profile directory without metadata: an unconfirmed or
			// partially deleted session, not listable.
			continue
		}

		summaries = append(summaries, Summary{
			User:      md.User,
			Site:      md.Site,
			CreatedAt: md.CreatedAt,
			LastUsed:  md.LastUsed,
			Valid:     md.Valid,
			Expired:   IsExpired(*md, now, ttl),
		})
	}

	return summaries, nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
