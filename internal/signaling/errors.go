package signaling

import "errors"

// Sentinel errors for the registry and session error taxonomy (see the
// Error Handling Design section of the signaling spec). None of these are
// ever surfaced to a peer; they are logged and handled locally.
var (
	// ErrUnknownPeer is returned by TrySend when no peer with that id exists.
	ErrUnknownPeer = errors.New("signaling: unknown peer")
	// ErrTransportEnqueueFailed is returned when a peer's send endpoint
	// rejects an enqueue (buffer full or already closed).
	ErrTransportEnqueueFailed = errors.New("signaling: transport enqueue failed")
	// ErrMissingWaitingEntry signals a logic error: an identity was assigned
	// to an origin with no corresponding waiting entry.
	ErrMissingWaitingEntry = errors.New("signaling: missing waiting entry")
	// ErrMissingQueueEntry signals a logic error: a session started for a
	// peer id with no corresponding queue entry.
	ErrMissingQueueEntry = errors.New("signaling: missing queue entry")
)
