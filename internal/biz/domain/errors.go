package domain

import "errors"

// ErrNotFound marks a transport target (message or channel) that no
// longer exists. Deletion paths treat it as a successful no-op.
var ErrNotFound = errors.New("target not found")

// PersistenceError wraps a storage-layer failure. Losing the audit
// trail is a correctness violation, so these propagate to the caller.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return "persistence: " + e.Op + ": " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

// GenerationError wraps a reply-generation failure. Recovered locally:
// one in-channel notice, no effect on subsequent messages.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return "generation: " + e.Err.Error() }
func (e *GenerationError) Unwrap() error { return e.Err }

// TransportError wraps a messaging-transport failure other than
// ErrNotFound.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }
