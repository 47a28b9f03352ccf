package core

import "context"

// Source is the interface all log sources must implement.
type Source interface {
	// Name returns the source's identifier (e.g., "filetail", "journald").
	Name() string

	// Service returns the service tag stamped onto every emitted entry.
	Service() string

	// Start begins emitting log entries on the returned channel. The channel
	// is closed when the context is cancelled or the source ends.
	Start(ctx context.Context) (<-chan LogEntry, error)
}
