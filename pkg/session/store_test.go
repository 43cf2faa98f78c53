package session

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/sessiond/pkg/crypto"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	key := make([]byte, crypto.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)

	codec, err := crypto.NewCodec(key)
	require.NoError(t, err)

	store, err := NewStore(NewPaths(t.TempDir()), codec)
	require.NoError(t, err)
	return store
}

func testMetadata(key Key, at time.Time) Metadata {
	return Metadata{
		User:      key.User,
		Site:      key.Site,
		CreatedAt: at,
		LastUsed:  at,
		Valid:     true,
		Data:      map[string]string{"login_url": "https://example.com/login"},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	key := Key{User: "u1", Site: "siteA"}
	at := time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC)

	saved := testMetadata(key, at)
	require.NoError(t, store.Save(key, saved))

	loaded, err := store.Load(key)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, saved.User, loaded.User)
	assert.Equal(t, saved.Site, loaded.Site)
	assert.True(t, saved.CreatedAt.Equal(loaded.CreatedAt), "created_at must survive to the second")
	assert.True(t, saved.LastUsed.Equal(loaded.LastUsed), "last_used must survive to the second")
	assert.Equal(t, saved.Valid, loaded.Valid)
	assert.Equal(t, saved.Data, loaded.Data)
}

func TestStore_LoadAbsent(t *testing.T) {
	store := newTestStore(t)

	loaded, err := store.Load(Key{User: "nobody", Site: "nowhere"})
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_MetadataNeverPlaintextOnDisk(t *testing.T) {
	store := newTestStore(t)
	key := Key{User: "u1", Site: "siteA"}
	require.NoError(t, store.Save(key, testMetadata(key, time.Now())))

	raw, err := os.ReadFile(store.Paths().MetadataPath(key))
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "login_url")
	assert.NotContains(t, string(raw), "example.com")

	var wrapped map[string]string
	require.NoError(t, json.Unmarshal(raw, &wrapped))
	assert.Contains(t, wrapped, "encrypted_metadata")
}

func TestStore_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file mode semantics differ on windows")
	}

	store := newTestStore(t)
	key := Key{User: "u1", Site: "siteA"}
	require.NoError(t, store.Save(key, testMetadata(key, time.Now())))

	info, err := os.Stat(store.Paths().MetadataPath(key))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestStore_TamperedFileFailsCorrupt(t *testing.T) {
	store := newTestStore(t)
	key := Key{User: "u1", Site: "siteA"}
	require.NoError(t, store.Save(key, testMetadata(key, time.Now())))

	path := store.Paths().MetadataPath(key)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var wrapped envelope
	require.NoError(t, json.Unmarshal(raw, &wrapped))

	ciphertext, err := base64.StdEncoding.DecodeString(wrapped.EncryptedMetadata)
	require.NoError(t, err)
	ciphertext[len(ciphertext)/2] ^= 0x01
	wrapped.EncryptedMetadata = base64.StdEncoding.EncodeToString(ciphertext)

	tampered, err := json.Marshal(wrapped)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, tampered, 0600))

	_, err = store.Load(key)
	assert.ErrorIs(t, err, ErrCorruptMetadata, "tampered ciphertext must never load as data")
}

func TestStore_GarbageFileFailsCorrupt(t *testing.T) {
	store := newTestStore(t)
	key := Key{User: "u1", Site: "siteA"}
	require.NoError(t, store.Save(key, testMetadata(key, time.Now())))

	path := store.Paths().MetadataPath(key)
	require.NoError(t, os.WriteFile(path, []byte("not even json"), 0600))

	_, err := store.Load(key)
	assert.ErrorIs(t, err, ErrCorruptMetadata)
}

func TestStore_Remove(t *testing.T) {
	store := newTestStore(t)
	key := Key{User: "u1", Site: "siteA"}
	require.NoError(t, store.Save(key, testMetadata(key, time.Now())))

	removed, err := store.Remove(key)
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = os.Stat(store.Paths().Dir(key))
	assert.True(t, os.IsNotExist(err))

	removed, err = store.Remove(key)
	require.NoError(t, err)
	assert.False(t, removed, "second remove must report nothing was deleted")
}

func TestStore_List(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	keyA := Key{User: "u1", Site: "siteA"}
	keyB := Key{User: "u1", Site: "siteB"}
	keyC := Key{User: "u2", Site: "siteA"}
	require.NoError(t, store.Save(keyA, testMetadata(keyA, now)))
	require.NoError(t, store.Save(keyB, testMetadata(keyB, now.Add(-2*DefaultTTL))))
	require.NoError(t, store.Save(keyC, testMetadata(keyC, now)))

	all, err := store.List("", now, DefaultTTL)
	require.NoError(t, err)
	require.Len(t, all, 3)

	// Index keeps listing in stable key order.
	assert.Equal(t, "siteA", all[0].Site)
	assert.False(t, all[0].Expired)
	assert.Equal(t, "siteB", all[1].Site)
	assert.True(t, all[1].Expired, "idle past TTL must list as expired")

	filtered, err := store.List("u2", now, DefaultTTL)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "u2", filtered[0].User)
}

func TestStore_ListSurfacesCorruptEntries(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	good := Key{User: "u1", Site: "siteA"}
	bad := Key{User: "u1", Site: "siteB"}
	require.NoError(t, store.Save(good, testMetadata(good, now)))
	require.NoError(t, store.Save(bad, testMetadata(bad, now)))

	require.NoError(t, os.WriteFile(store.Paths().MetadataPath(bad), []byte("garbage"), 0600))

	summaries, err := store.List("", now, DefaultTTL)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	var corrupt *Summary
	for i := range summaries {
		if summaries[i].Corrupt {
			corrupt = &summaries[i]
		}
	}
	require.NotNil(t, corrupt, "corrupt metadata must surface as a degraded entry")
	assert.Equal(t, "siteB", corrupt.Site)
}

func TestStore_ListPrunesVanishedDirectories(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	key := Key{User: "u1", Site: "siteA"}
	require.NoError(t, store.Save(key, testMetadata(key, now)))

	// Simulate an out-of-band directory removal.
	require.NoError(t, os.RemoveAll(store.Paths().Dir(key)))

	summaries, err := store.List("", now, DefaultTTL)
	require.NoError(t, err)
	assert.Empty(t, summaries)

	// Pruned from the index too.
	summaries, err = store.List("", now, DefaultTTL)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestStore_IndexSurvivesReopen(t *testing.T) {
	key := make([]byte, crypto.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	codec, err := crypto.NewCodec(key)
	require.NoError(t, err)

	root := t.TempDir()
	store, err := NewStore(NewPaths(root), codec)
	require.NoError(t, err)

	k := Key{User: "u1", Site: "siteA"}
	require.NoError(t, store.Save(k, testMetadata(k, time.Now())))

	// A fresh store over the same root sees the session via the index.
	reopened, err := NewStore(NewPaths(root), codec)
	require.NoError(t, err)

	summaries, err := reopened.List("", time.Now(), DefaultTTL)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "u1", summaries[0].User)
}
