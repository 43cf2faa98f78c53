package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// Metadata is the bookkeeping record for a confirmed session. It is
// persisted only in encrypted form; the plaintext never touches disk.
// Invariant: CreatedAt <= LastUsed.
type Metadata struct {
	User      string            `json:"user_id"`
	Site      string            `json:"site_name"`
	CreatedAt time.Time         `json:"created_at"`
	LastUsed  time.Time         `json:"last_used"`
	Valid     bool              `json:"is_valid"`
	Data      map[string]string `json:"session_data,omitempty"`
}

// wireMetadata is the canonical serialized form: fixed field order,
// RFC-3339 timestamps at second precision.
type wireMetadata struct {
	User      string            `json:"user_id"`
	Site      string            `json:"site_name"`
	CreatedAt string            `json:"created_at"`
	LastUsed  string            `json:"last_used"`
	Valid     bool              `json:"is_valid"`
	Data      map[string]string `json:"session_data,omitempty"`
}

// marshalMetadata encodes metadata into its canonical plaintext form.
func marshalMetadata(md Metadata) ([]byte, error) {
	wire := wireMetadata{
		User:      md.User,
		Site:      md.Site,
		CreatedAt: md.CreatedAt.UTC().Truncate(time.Second).Format(time.RFC3339),
		LastUsed:  md.LastUsed.UTC().Truncate(time.Second).Format(time.RFC3339),
		Valid:     md.Valid,
		Data:      md.Data,
	}
	return json.Marshal(wire)
}

// unmarshalMetadata decodes canonical plaintext, rejecting records that are
// missing required fields or carry unparsable timestamps.
func unmarshalMetadata(data []byte) (Metadata, error) {
	var wire wireMetadata
	if err := json.Unmarshal(data, &wire); err != nil {
		return Metadata{}, fmt.Errorf("invalid metadata encoding: %w", err)
	}

	if wire.User == "" || wire.Site == "" {
		return Metadata{}, fmt.Errorf("metadata missing user or site identifier")
	}

	createdAt, err := time.Parse(time.RFC3339, wire.CreatedAt)
	if err != nil {
		return Metadata{}, fmt.Errorf("invalid created_at timestamp: %w", err)
	}
	lastUsed, err := time.Parse(time.RFC3339, wire.LastUsed)
	if err != nil {
		return Metadata{}, fmt.Errorf("invalid last_used timestamp: %w", err)
	}
	if lastUsed.Before(createdAt) {
		return Metadata{}, fmt.Errorf("metadata last_used precedes created_at")
	}

	return Metadata{
		User:      wire.User,
		Site:      wire.Site,
		CreatedAt: createdAt,
		LastUsed:  lastUsed,
		Valid:     wire.Valid,
		Data:      wire.Data,
	}, nil
}
