package catalog

import (
	"context"
	"fmt"

	"github.com/yourorg/strategy-catalog/internal/model"
)

// BeginRename starts editing the name of a strategy
func (s *Store) BeginRename(id model.StrategyID) (SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return SessionView{}, fmt.Errorf("begin rename %s: %w", id, model.ErrStrategyNotFound)
	}
	e.session.BeginRename(e.strategy.Name)
	return e.session.View(), nil
}

// SetDraft updates the draft name of an ongoing rename
func (s *Store) SetDraft(id model.StrategyID, draft string) (SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return SessionView{}, fmt.Errorf("set draft %s: %w", id, model.ErrStrategyNotFound)
	}
	if err := e.session.SetDraft(draft); err != nil {
		return SessionView{}, err
	}
	return e.session.View(), nil
}

// CancelRename discards the draft without contacting the remote store
func (s *Store) CancelRename(id model.StrategyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("cancel rename %s: %w", id, model.ErrStrategyNotFound)
	}
	e.session.Cancel()
	return nil
}

// CommitRename submits the draft through Rename. The session returns to
// Viewing only when the rename succeeds; on failure the draft is kept.
func (s *Store) CommitRename(ctx context.Context, id model.StrategyID) error {
	s.mu.RLock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.RUnlock()
		return fmt.Errorf("commit rename %s: %w", id, model.ErrStrategyNotFound)
	}
	draft, err := e.session.Draft()
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := s.Rename(ctx, id, draft); err != nil {
		return err
	}

	s.mu.Lock()
	if e, ok := s.entries[id]; ok {
		e.session.Cancel()
	}
	s.mu.Unlock()
	return nil
}
