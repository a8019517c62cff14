package catalog

import "github.com/yourorg/strategy-catalog/internal/model"

// SessionState is the name-editing state of one strategy
type SessionState string

const (
	SessionViewing  SessionState = "viewing"
	SessionRenaming SessionState = "renaming"
)

// EditSession tracks whether a strategy's name is being edited.
// It is owned by its catalog entry and only mutated under the store lock.
type EditSession struct {
	state SessionState
	draft string
}

// SessionView is a read-only snapshot of an EditSession
type SessionView struct {
	State SessionState `json:"state"`
	Draft string       `json:"draft,omitempty"`
}

// NewEditSession returns a session in the Viewing state
func NewEditSession() *EditSession {
	return &EditSession{state: SessionViewing}
}

// State returns the current state
func (e *EditSession) State() SessionState {
	return e.state
}

// BeginRename moves Viewing to Renaming(currentName). An ongoing rename
// keeps its draft.
func (e *EditSession) BeginRename(currentName string) {
	if e.state == SessionRenaming {
		return
	}
	e.state = SessionRenaming
	e.draft = currentName
}

// SetDraft replaces the draft name of an ongoing rename
func (e *EditSession) SetDraft(name string) error {
	if e.state != SessionRenaming {
		return model.ErrNotRenaming
	}
	e.draft = name
	return nil
}

// Draft returns the name a commit would submit
func (e *EditSession) Draft() (string, error) {
	if e.state != SessionRenaming {
		return "", model.ErrNotRenaming
	}
	return e.draft, nil
}

// Cancel discards the draft and returns to Viewing
func (e *EditSession) Cancel() {
	e.state = SessionViewing
	e.draft = ""
}

// View returns a snapshot of the session
func (e *EditSession) View() SessionView {
	v := SessionView{State: e.state}
	if e.state == SessionRenaming {
		v.Draft = e.draft
	}
	return v
}
