package session

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// index is the authoritative mapping from session keys to directory names.
// Directory names embed the identifiers only for human inspection; listing
// reads this file instead of reverse-parsing names, which would break on
// identifiers containing the name delimiter.
//
// The index is guarded by the owning Store's mutex and rewritten atomically
// on every change.
type index struct {
	path    string
	entries map[string]indexEntry
}

type indexEntry struct {
	User string `json:"user_id"`
	Site string `json:"site_name"`
	Dir  string `json:"dir"`
}

func loadIndex(path string) (*index, error) {
	idx := &index{path: path, entries: make(map[string]indexEntry)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	var entries []indexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse index: %w", err)
	}

	for _, e := range entries {
		idx.entries[e.User+":"+e.Site] = e
	}
	return idx, nil
}

func (i *index) put(key Key, dir string) error {
	existing, ok := i.entries[key.String()]
	if ok && existing.Dir == dir {
		return nil
	}
	if ok && existing.Dir != dir {
		// A digest collision between distinct keys would surface here.
		return fmt.Errorf("index entry for %s already maps to %s", key, existing.Dir)
	}

	i.entries[key.String()] = indexEntry{User: key.User, Site: key.Site, Dir: dir}
	return i.flush()
}

func (i *index) remove(key Key) (bool, error) {
	if _, ok := i.entries[key.String()]; !ok {
		return false, nil
	}
	delete(i.entries, key.String())
	return true, i.flush()
}

// keys returns all indexed session keys in stable order.
func (i *index) keys() []Key {
	keys := make([]Key, 0, len(i.entries))
	for _, e := range i.entries {
		keys = append(keys, Key{User: e.User, Site: e.Site})
	}
	sort.Slice(keys, func(a, b int) bool {
		return keys[a].String() < keys[b].String()
	})
	return keys
}

func (i *index) flush() error {
	entries := make([]indexEntry, 0, len(i.entries))
	for _, e := range i.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(a, b int) bool {
		return entries[a].User+":"+entries[a].Site < entries[b].User+":"+entries[b].Site
	})

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(i.path, data, 0600)
}
