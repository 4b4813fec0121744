package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInProgress is returned when a play action arrives outside a running play-through.
	ErrNotInProgress = errors.New("play-through not in progress")
	// ErrAlreadyAnswered indicates a second guess on the same item.
	ErrAlreadyAnswered = errors.New("item already answered")
	// ErrNotAnswered indicates an advance before the current item was answered.
	ErrNotAnswered = errors.New("current item not answered")
	// ErrNoCurrentItem is returned before start or after completion.
	ErrNoCurrentItem = errors.New("no current item")
	// ErrNotAuthenticated is returned when an action requires a signed-in identity.
	ErrNotAuthenticated = errors.New("not signed in")
	// ErrProviderUnavailable indicates the identity or profile integration is not configured.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrProfileNotLinked is returned when a remote-only action has no profile to act on.
	ErrProfileNotLinked = errors.New("no remote profile linked")
	// ErrMalformedRecord indicates a cache entry that could not be decoded.
	ErrMalformedRecord = errors.New("malformed cached record")
	// ErrInvalidItem indicates content that violates the item invariants.
	ErrInvalidItem = errors.New("invalid quiz item")
	// ErrInvalidCredential is returned when a sign-in credential fails verification.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrUnknownState is returned for OAuth callbacks with an unknown or expired state.
	ErrUnknownState = errors.New("unknown sign-in state")
)

// RemoteError wraps a failed call to the remote profile service.
type RemoteError struct {
	Op  string // "fetchProfile", "upsertAggregate", ...
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
