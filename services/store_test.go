package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barber-queue/models"
)

func setupTestStore(t *testing.T) (*SessionStore, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	return NewSessionStore(db), mock
}

func TestSessionStore_ActiveEntryRoundTrip(t *testing.T) {
	store, mock := setupTestStore(t)
	ctx := context.Background()

	mock.ExpectSet("client:u1:active_entry", "e1", time.Duration(0)).SetVal("OK")
	mock.ExpectGet("client:u1:active_entry").SetVal("e1")

	require.NoError(t, store.SetActiveEntryID(ctx, "u1", "e1"))

	entryID, err := store.ActiveEntryID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "e1", entryID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_ActiveEntryMissingIsEmpty(t *testing.T) {
	store, mock := setupTestStore(t)
	mock.ExpectGet("client:u1:active_entry").RedisNil()

	entryID, err := store.ActiveEntryID(context.Background(), "u1")

	require.NoError(t, err)
	assert.Empty(t, entryID)
}

func TestSessionStore_StickyModalDefaultsToNone(t *testing.T) {
	store, mock := setupTestStore(t)
	mock.ExpectGet("client:u1:sticky_modal").RedisNil()

	kind, err := store.StickyModal(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, models.ModalNone, kind)
}

func TestSessionStore_MarkTerminalHandledFirstCallerWins(t *testing.T) {
	store, mock := setupTestStore(t)
	ctx := context.Background()

	mock.ExpectSetNX("client:u1:terminal_handled:e1", "1", 24*time.Hour).SetVal(true)
	mock.ExpectSetNX("client:u1:terminal_handled:e1", "1", 24*time.Hour).SetVal(false)

	won, err := store.MarkTerminalHandled(ctx, "u1", "e1")
	require.NoError(t, err)
	assert.True(t, won)

	won, err = store.MarkTerminalHandled(ctx, "u1", "e1")
	require.NoError(t, err)
	assert.False(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_UnreadFlagLifecycle(t *testing.T) {
	store, mock := setupTestStore(t)
	ctx := context.Background()

	mock.ExpectSAdd("client:u1:unread", "barber-1").SetVal(1)
	mock.ExpectSIsMember("client:u1:unread", "barber-1").SetVal(true)
	mock.ExpectSRem("client:u1:unread", "barber-1").SetVal(1)
	mock.ExpectSIsMember("client:u1:unread", "barber-1").SetVal(false)

	require.NoError(t, store.SetUnread(ctx, "u1", "barber-1"))

	unread, err := store.Unread(ctx, "u1", "barber-1")
	require.NoError(t, err)
	assert.True(t, unread)

	require.NoError(t, store.ClearUnread(ctx, "u1", "barber-1"))

	unread, err = store.Unread(ctx, "u1", "barber-1")
	require.NoError(t, err)
	assert.False(t, unread)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_ClearSessionKeepsPreferences(t *testing.T) {
	store, mock := setupTestStore(t)

	// Theme and the seen-instructions flag are not among the deleted keys.
	mock.ExpectDel(
		"client:u1:active_entry",
		"client:u1:joined_barber",
		"client:u1:sticky_modal",
		"client:u1:unread",
	).SetVal(4)

	require.NoError(t, store.ClearSession(context.Background(), "u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_CurrentUserRoundTrip(t *testing.T) {
	store, mock := setupTestStore(t)
	ctx := context.Background()

	mock.ExpectSet("client:current_user", "u1", time.Duration(0)).SetVal("OK")
	mock.ExpectGet("client:current_user").SetVal("u1")
	mock.ExpectDel("client:current_user").SetVal(1)
	mock.ExpectGet("client:current_user").RedisNil()

	require.NoError(t, store.SetCurrentUser(ctx, "u1"))

	userID, err := store.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)

	require.NoError(t, store.ClearCurrentUser(ctx))

	userID, err = store.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Empty(t, userID)
}
