package model

import (
	"errors"
	"fmt"
)

var (
	// ErrStrategyNotFound is returned when an id is not in the catalog
	ErrStrategyNotFound = errors.New("strategy not found")

	// ErrStaleResult marks a backtest response whose catalog entry was
	// deleted or whose request was superseded
	ErrStaleResult = errors.New("stale backtest result")

	// ErrNotRenaming is returned for draft operations on a strategy that
	// is not being renamed
	ErrNotRenaming = errors.New("strategy is not being renamed")
)

// ValidationError is a locally rejected input. No remote call was made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// RemoteError is a non-2xx answer or a transport failure from the remote service
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: remote returned status %d: %s", e.Op, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: remote returned status %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: remote error", e.Op)
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsRemoteStatus reports whether err is a RemoteError with the given status code
func IsRemoteStatus(err error, status int) bool {
	var remoteErr *RemoteError
	return errors.As(err, &remoteErr) && remoteErr.StatusCode == status
}
