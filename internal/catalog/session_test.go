package catalog

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/strategy-catalog/internal/model"
)

// TestEditSessionTransitions tests the Viewing/Renaming state machine.
func TestEditSessionTransitions(t *testing.T) {
	s := NewEditSession()
	assert.Equal(t, SessionViewing, s.State())

	_, err := s.Draft()
	assert.ErrorIs(t, err, model.ErrNotRenaming)
	assert.ErrorIs(t, s.SetDraft("x"), model.ErrNotRenaming)

	s.BeginRename("alpha")
	assert.Equal(t, SessionRenaming, s.State())
	draft, err := s.Draft()
	require.NoError(t, err)
	assert.Equal(t, "alpha", draft)

	require.NoError(t, s.SetDraft("beta"))
	s.BeginRename("alpha")
	draft, _ = s.Draft()
	assert.Equal(t, "beta", draft, "beginning again keeps the ongoing draft")

	s.Cancel()
	assert.Equal(t, SessionViewing, s.State())
	assert.Equal(t, SessionView{State: SessionViewing}, s.View())
}

// TestCommitRenameSuccess tests commit through the remote store.
func TestCommitRenameSuccess(t *testing.T) {
	remote := newFakeRemote(record("1", "alpha"))
	store, _ := newTestStore(t, remote)

	view, err := store.BeginRename("1")
	require.NoError(t, err)
	assert.Equal(t, SessionView{State: SessionRenaming, Draft: "alpha"}, view)

	_, err = store.SetDraft("1", "beta")
	require.NoError(t, err)
	require.NoError(t, store.CommitRename(context.Background(), "1"))

	entry, err := store.Get("1")
	require.NoError(t, err)
	assert.Equal(t, "beta", entry.Strategy.Name)
	assert.Equal(t, SessionViewing, entry.Session.State)
	assert.Equal(t, 1, remote.renameCalls)
}

// TestCommitRenameBlankDraft tests that a blank draft is rejected and kept.
func TestCommitRenameBlankDraft(t *testing.T) {
	remote := newFakeRemote(record("1", "alpha"))
	store, _ := newTestStore(t, remote)

	_, err := store.BeginRename("1")
	require.NoError(t, err)
	_, err = store.SetDraft("1", "  ")
	require.NoError(t, err)

	err = store.CommitRename(context.Background(), "1")
	var validationErr *model.ValidationError
	assert.True(t, errors.As(err, &validationErr))
	assert.Equal(t, 0, remote.renameCalls)

	entry, err := store.Get("1")
	require.NoError(t, err)
	assert.Equal(t, SessionRenaming, entry.Session.State)
	assert.Equal(t, "alpha", entry.Strategy.Name)
}

// TestCommitRenameRemoteFailure tests that a failed commit keeps the draft.
func TestCommitRenameRemoteFailure(t *testing.T) {
	remote := newFakeRemote(record("1", "alpha"))
	store, _ := newTestStore(t, remote)
	remote.renameErr = &model.RemoteError{Op: "rename strategy", StatusCode: http.StatusBadGateway}

	_, err := store.BeginRename("1")
	require.NoError(t, err)
	_, err = store.SetDraft("1", "beta")
	require.NoError(t, err)

	assert.Error(t, store.CommitRename(context.Background(), "1"))

	entry, err := store.Get("1")
	require.NoError(t, err)
	assert.Equal(t, SessionView{State: SessionRenaming, Draft: "beta"}, entry.Session)
	assert.Equal(t, "alpha", entry.Strategy.Name)
}

// TestCancelRename tests that cancel never contacts the remote store.
func TestCancelRename(t *testing.T) {
	remote := newFakeRemote(record("1", "alpha"))
	store, _ := newTestStore(t, remote)

	_, err := store.BeginRename("1")
	require.NoError(t, err)
	_, err = store.SetDraft("1", "beta")
	require.NoError(t, err)
	require.NoError(t, store.CancelRename("1"))

	entry, err := store.Get("1")
	require.NoError(t, err)
	assert.Equal(t, SessionViewing, entry.Session.State)
	assert.Equal(t, "alpha", entry.Strategy.Name)
	assert.Equal(t, 0, remote.renameCalls)

	assert.ErrorIs(t, store.CommitRename(context.Background(), "1"), model.ErrNotRenaming)
}

// TestSessionsAreIndependent tests that two strategies can be renamed at once.
func TestSessionsAreIndependent(t *testing.T) {
	remote := newFakeRemote(record("1", "alpha"), record("2", "beta"))
	store, _ := newTestStore(t, remote)

	_, err := store.BeginRename("1")
	require.NoError(t, err)
	_, err = store.BeginRename("2")
	require.NoError(t, err)
	require.NoError(t, store.CancelRename("1"))

	entries := store.List()
	assert.Equal(t, SessionViewing, entries[0].Session.State)
	assert.Equal(t, SessionRenaming, entries[1].Session.State)
}

// TestSessionOperationsOnUnknownStrategy tests not-found handling.
func TestSessionOperationsOnUnknownStrategy(t *testing.T) {
	store, _ := newTestStore(t, newFakeRemote())

	_, err := store.BeginRename("x")
	assert.ErrorIs(t, err, model.ErrStrategyNotFound)
	_, err = store.SetDraft("x", "y")
	assert.ErrorIs(t, err, model.ErrStrategyNotFound)
	assert.ErrorIs(t, store.CancelRename("x"), model.ErrStrategyNotFound)
	assert.ErrorIs(t, store.CommitRename(context.Background(), "x"), model.ErrStrategyNotFound)
}
