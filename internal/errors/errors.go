package errors

import "errors"

// This package defines the sentinel errors shared by the client core. Components
// wrap them with fmt.Errorf("%w: ...") and callers classify failures with
// errors.Is, so the session can decide what is user-visible without knowing
// which component failed.

var (
	// ErrTransport signifies that an initiating request (create conversation,
	// post message, start stream, fetch) failed before any stream began.
	// It is surfaced to the user as a visible error state.
	ErrTransport = errors.New("transport failed")

	// ErrStream signifies a failure after a reply stream has started. Partial
	// content stays visible.
	ErrStream = errors.New("stream interrupted")

	// ErrReconciliation signifies that a background reconciliation (title
	// generation or update) failed. It is logged and never shown to the user.
	ErrReconciliation = errors.New("reconciliation failed")

	// ErrStaleTarget signifies that an update targeted a message store
	// generation that is no longer active. Callers discard it silently.
	ErrStaleTarget = errors.New("stale target")

	// ErrReplyInFlight signifies that a reply is still streaming for the
	// conversation and a new send was rejected.
	ErrReplyInFlight = errors.New("reply already in flight")

	// ErrNoActiveConversation signifies that an operation needs an active
	// conversation and none is selected.
	ErrNoActiveConversation = errors.New("no active conversation")

	// ErrValidation signifies that request data failed validation before it
	// was sent to the backend.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound signifies that the backend could not locate the resource.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized signifies that the backend rejected the credentials.
	ErrUnauthorized = errors.New("unauthorized")
)
