package catalog

import (
	"fmt"

	"github.com/yourorg/strategy-catalog/internal/model"
)

// MarkPending claims the backtest slot of id for the request identified by
// token. It returns started=false, leaving the slot untouched, when another
// request is already pending. The slot is created on first use.
func (s *Store) MarkPending(id model.StrategyID, token string) (model.Strategy, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return model.Strategy{}, false, fmt.Errorf("backtest %s: %w", id, model.ErrStrategyNotFound)
	}

	if e.slot == nil {
		e.slot = &model.BacktestSlot{State: model.SlotIdle}
	}
	if e.slot.State == model.SlotPending {
		return e.strategy.Clone(), false, nil
	}

	*e.slot = model.BacktestSlot{
		State:        model.SlotPending,
		RequestToken: token,
		UpdatedAt:    s.now(),
	}
	return e.strategy.Clone(), true, nil
}

// SettleBacktest applies update to the slot of id if the request identified
// by token still owns it. Otherwise it returns an error wrapping
// model.ErrStaleResult and the slot is left as is.
func (s *Store) SettleBacktest(id model.StrategyID, token string, update func(slot *model.BacktestSlot)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("strategy %s is no longer in the catalog: %w", id, model.ErrStaleResult)
	}
	if e.slot == nil || e.slot.State != model.SlotPending || e.slot.RequestToken != token {
		return fmt.Errorf("request %s no longer owns the slot of %s: %w", token, id, model.ErrStaleResult)
	}

	update(e.slot)
	e.slot.UpdatedAt = s.now()
	return nil
}

// AbandonBacktest moves a pending slot to Error and releases its token so
// the eventual response is discarded. It reports whether a request was pending.
func (s *Store) AbandonBacktest(id model.StrategyID, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return false, fmt.Errorf("abandon backtest %s: %w", id, model.ErrStrategyNotFound)
	}
	if e.slot == nil || e.slot.State != model.SlotPending {
		return false, nil
	}

	*e.slot = model.BacktestSlot{
		State:     model.SlotError,
		Error:     reason,
		UpdatedAt: s.now(),
	}
	return true, nil
}
