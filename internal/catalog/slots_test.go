package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/strategy-catalog/internal/model"
)

func TestMarkPendingRejectsDuplicate(t *testing.T) {
	store, _ := newTestStore(t, newFakeRemote(record("1", "alpha", macdBlock)))

	strategy, started, err := store.MarkPending("1", "first")
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, "alpha", strategy.Name)

	_, started, err = store.MarkPending("1", "second")
	require.NoError(t, err)
	assert.False(t, started)

	entry, err := store.Get("1")
	require.NoError(t, err)
	assert.Equal(t, "first", entry.Backtest.RequestToken)

	_, _, err = store.MarkPending("missing", "t")
	assert.ErrorIs(t, err, model.ErrStrategyNotFound)
}

func TestSettleBacktest(t *testing.T) {
	store, _ := newTestStore(t, newFakeRemote(record("1", "alpha")))

	_, _, err := store.MarkPending("1", "token")
	require.NoError(t, err)

	err = store.SettleBacktest("1", "other", func(*model.BacktestSlot) {})
	assert.ErrorIs(t, err, model.ErrStaleResult)

	err = store.SettleBacktest("1", "token", func(slot *model.BacktestSlot) {
		slot.State = model.SlotReady
		slot.Result = &model.BacktestResult{Status: model.ResultComplete}
	})
	require.NoError(t, err)

	entry, err := store.Get("1")
	require.NoError(t, err)
	assert.Equal(t, model.SlotReady, entry.Backtest.State)
	assert.False(t, entry.Backtest.UpdatedAt.IsZero())

	// A second response for the same request is stale
	err = store.SettleBacktest("1", "token", func(*model.BacktestSlot) {})
	assert.ErrorIs(t, err, model.ErrStaleResult)

	// A settled slot accepts a new request, which clears the old result
	_, started, err := store.MarkPending("1", "next")
	require.NoError(t, err)
	assert.True(t, started)
	entry, _ = store.Get("1")
	assert.Nil(t, entry.Backtest.Result)
}

func TestAbandonBacktest(t *testing.T) {
	store, _ := newTestStore(t, newFakeRemote(record("1", "alpha")))

	abandoned, err := store.AbandonBacktest("1", "timed out")
	require.NoError(t, err)
	assert.False(t, abandoned, "idle slot has nothing to abandon")

	_, _, err = store.MarkPending("1", "token")
	require.NoError(t, err)

	abandoned, err = store.AbandonBacktest("1", "timed out")
	require.NoError(t, err)
	assert.True(t, abandoned)

	entry, err := store.Get("1")
	require.NoError(t, err)
	assert.Equal(t, model.SlotError, entry.Backtest.State)
	assert.Equal(t, "timed out", entry.Backtest.Error)
	assert.Empty(t, entry.Backtest.RequestToken)

	err = store.SettleBacktest("1", "token", func(*model.BacktestSlot) {})
	assert.ErrorIs(t, err, model.ErrStaleResult)

	_, err = store.AbandonBacktest("missing", "x")
	assert.ErrorIs(t, err, model.ErrStrategyNotFound)
}
