package session

import (
	"crypto/rand"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/sessiond/pkg/browser/browsertest"
	"github.com/entrhq/sessiond/pkg/crypto"
)

// managerFixture bundles a manager, its fake engine, and a movable clock.
type managerFixture struct {
	manager *Manager
	engine  *browsertest.FakeEngine
	now     *time.Time
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	key := make([]byte, crypto.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	codec, err := crypto.NewCodec(key)
	require.NoError(t, err)

	store, err := NewStore(NewPaths(t.TempDir()), codec)
	require.NoError(t, err)

	engine := browsertest.NewFakeEngine()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	fixture := &managerFixture{engine: engine, now: &now}
	fixture.manager = NewManager(store, engine, ManagerOptions{
		Now: func() time.Time { return *fixture.now },
	})
	return fixture
}

func (f *managerFixture) advance(d time.Duration) {
	*f.now = f.now.Add(d)
}

func TestManager_CreateRegistersPending(t *testing.T) {
	f := newManagerFixture(t)
	key := Key{User: "u1", Site: "siteA"}

	result, err := f.manager.Create(key, "https://x/login")
	require.NoError(t, err)
	assert.Equal(t, f.manager.Dir(key), result.Dir)
	assert.Equal(t, 1, f.manager.PendingCount())

	// Profile directory exists and the login page was loaded.
	_, statErr := os.Stat(result.Dir)
	assert.NoError(t, statErr)
	ctx := f.engine.LastContext()
	require.NotNil(t, ctx)
	assert.Equal(t, "https://x/login", ctx.CurrentURL())
}

func TestManager_SecondCreateFailsWhilePending(t *testing.T) {
	f := newManagerFixture(t)
	key := Key{User: "u1", Site: "siteA"}

	_, err := f.manager.Create(key, "https://x/login")
	require.NoError(t, err)

	_, err = f.manager.Create(key, "https://x/login")
	assert.ErrorIs(t, err, ErrLoginPending, "a second create must not replace the open context")
	assert.Equal(t, 1, f.engine.OpenCount(), "no second browser context may be opened")
}

func TestManager_CreateRollsBackOnOpenFailure(t *testing.T) {
	f := newManagerFixture(t)
	f.engine.OpenErr = errors.New("browser launch failed")
	key := Key{User: "u1", Site: "siteA"}

	_, err := f.manager.Create(key, "https://x/login")
	assert.ErrorIs(t, err, ErrCreateFailed)

	_, statErr := os.Stat(f.manager.Dir(key))
	assert.True(t, os.IsNotExist(statErr), "no orphaned directory may survive a failed create")
	assert.Equal(t, 0, f.manager.PendingCount())
}

func TestManager_CreateRollsBackOnNavigateFailure(t *testing.T) {
	f := newManagerFixture(t)
	f.engine.NavigateErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
	key := Key{User: "u1", Site: "siteA"}

	_, err := f.manager.Create(key, "https://x/login")
	assert.ErrorIs(t, err, ErrCreateFailed)

	ctx := f.engine.LastContext()
	require.NotNil(t, ctx)
	assert.True(t, ctx.Closed, "the opened context must be closed on navigate failure")

	_, statErr := os.Stat(f.manager.Dir(key))
	assert.True(t, os.IsNotExist(statErr))
}

func TestManager_ConfirmPersistsAndReleases(t *testing.T) {
	f := newManagerFixture(t)
	key := Key{User: "u1", Site: "siteA"}

	_, err := f.manager.Create(key, "https://x/login")
	require.NoError(t, err)

	result, err := f.manager.Confirm(key)
	require.NoError(t, err)
	assert.Equal(t, "https://x/login", result.CurrentURL)
	assert.Equal(t, 0, f.manager.PendingCount())
	assert.True(t, f.engine.LastContext().Closed)

	state, md, err := f.manager.Get(key)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, state)
	require.NotNil(t, md)
	assert.True(t, md.Valid)
	assert.True(t, md.CreatedAt.Equal(md.LastUsed))
	assert.Equal(t, "https://x/login", md.Data["login_url"])
}

func TestManager_ConfirmWithoutCreate(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.Confirm(Key{User: "u1", Site: "siteA"})
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestManager_ConfirmTwice(t *testing.T) {
	f := newManagerFixture(t)
	key := Key{User: "u1", Site: "siteA"}

	_, err := f.manager.Create(key, "https://x/login")
	require.NoError(t, err)
	_, err = f.manager.Confirm(key)
	require.NoError(t, err)

	_, err = f.manager.Confirm(key)
	assert.ErrorIs(t, err, ErrNoActiveSession, "confirm is not idempotent")
}

func TestManager_GetStates(t *testing.T) {
	f := newManagerFixture(t)
	key := Key{User: "u1", Site: "siteA"}

	state, md, err := f.manager.Get(key)
	require.NoError(t, err)
	assert.Equal(t, StateAbsent, state)
	assert.Nil(t, md)

	_, err = f.manager.Create(key, "https://x/login")
	require.NoError(t, err)
	_, err = f.manager.Confirm(key)
	require.NoError(t, err)

	state, _, err = f.manager.Get(key)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, state)

	f.advance(f.manager.TTL() + time.Second)
	state, _, err = f.manager.Get(key)
	require.NoError(t, err)
	assert.Equal(t, StateExpired, state)
}

func TestManager_InvalidateIsOneWay(t *testing.T) {
	f := newManagerFixture(t)
	key := Key{User: "u1", Site: "siteA"}

	_, err := f.manager.Create(key, "https://x/login")
	require.NoError(t, err)
	_, err = f.manager.Confirm(key)
	require.NoError(t, err)

	require.NoError(t, f.manager.Invalidate(key))

	state, md, err := f.manager.Get(key)
	require.NoError(t, err)
	assert.Equal(t, StateInvalid, state)
	assert.False(t, md.Valid)

	// Touch does not resurrect an invalidated session.
	require.NoError(t, f.manager.Touch(key))
	state, _, err = f.manager.Get(key)
	require.NoError(t, err)
	assert.Equal(t, StateInvalid, state)
}

func TestManager_InvalidateMissingSession(t *testing.T) {
	f := newManagerFixture(t)
	err := f.manager.Invalidate(Key{User: "ghost", Site: "siteA"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_TouchRefreshesLastUsed(t *testing.T) {
	f := newManagerFixture(t)
	key := Key{User: "u1", Site: "siteA"}

	_, err := f.manager.Create(key, "https://x/login")
	require.NoError(t, err)
	_, err = f.manager.Confirm(key)
	require.NoError(t, err)

	f.advance(time.Hour)
	require.NoError(t, f.manager.Touch(key))

	_, md, err := f.manager.Get(key)
	require.NoError(t, err)
	assert.True(t, md.LastUsed.After(md.CreatedAt))
}

func TestManager_Delete(t *testing.T) {
	f := newManagerFixture(t)
	key := Key{User: "u1", Site: "siteA"}

	_, err := f.manager.Create(key, "https://x/login")
	require.NoError(t, err)
	_, err = f.manager.Confirm(key)
	require.NoError(t, err)

	deleted, err := f.manager.Delete(key)
	require.NoError(t, err)
	assert.True(t, deleted)

	state, _, err := f.manager.Get(key)
	require.NoError(t, err)
	assert.Equal(t, StateAbsent, state)

	deleted, err = f.manager.Delete(key)
	require.NoError(t, err)
	assert.False(t, deleted, "deleting an absent session reports false, not an error")
}

func TestManager_DeleteDropsPendingLogin(t *testing.T) {
	f := newManagerFixture(t)
	key := Key{User: "u1", Site: "siteA"}

	_, err := f.manager.Create(key, "https://x/login")
	require.NoError(t, err)

	deleted, err := f.manager.Delete(key)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, 0, f.manager.PendingCount())
	assert.True(t, f.engine.LastContext().Closed, "pending context must be closed on delete")

	// The login can start over after the delete.
	_, err = f.manager.Create(key, "https://x/login")
	assert.NoError(t, err)
}

func TestManager_ListAfterConfirm(t *testing.T) {
	f := newManagerFixture(t)
	key := Key{User: "u1", Site: "siteA"}

	_, err := f.manager.Create(key, "https://x/login")
	require.NoError(t, err)
	_, err = f.manager.Confirm(key)
	require.NoError(t, err)

	summaries, err := f.manager.List("")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "u1", summaries[0].User)
	assert.Equal(t, "siteA", summaries[0].Site)
	assert.True(t, summaries[0].Valid)
	assert.False(t, summaries[0].Expired)
}

func TestManager_ShutdownClosesPending(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.Create(Key{User: "u1", Site: "siteA"}, "https://x/login")
	require.NoError(t, err)
	_, err = f.manager.Create(Key{User: "u2", Site: "siteB"}, "https://y/login")
	require.NoError(t, err)

	f.manager.Shutdown()
	assert.Equal(t, 0, f.manager.PendingCount())
	for _, ctx := range f.engine.Contexts {
		assert.True(t, ctx.Closed)
	}
}

func TestManager_KeysAreIndependent(t *testing.T) {
	f := newManagerFixture(t)

	keyA := Key{User: "u1", Site: "siteA"}
	keyB := Key{User: "u1", Site: "siteB"}

	_, err := f.manager.Create(keyA, "https://a/login")
	require.NoError(t, err)
	_, err = f.manager.Create(keyB, "https://b/login")
	require.NoError(t, err)
	assert.Equal(t, 2, f.manager.PendingCount())

	_, err = f.manager.Confirm(keyA)
	require.NoError(t, err)
	assert.Equal(t, 1, f.manager.PendingCount(), "confirming one key must not touch the other")
}
