package ledger

import "context"

// Store is the persistent narration -> ledger cache. Keys are exact-match:
// narrations are trimmed at parse time but never case-folded, so "UPI-X" and
// "upi-x" are distinct entries.
type Store interface {
	// Get returns the cached ledger for a narration. The second return is
	// false when the narration has never been classified.
	Get(ctx context.Context, narration string) (string, bool, error)

	// Put records a classification. Implementations must keep the first
	// write: a later Put for the same narration is a no-op, never an
	// overwrite.
	Put(ctx context.Context, narration, ledger string) error

	// Close releases the underlying storage.
	Close() error
}

// Classifier suggests a ledger account name for a prompt. Implementations
// wrap an external model; it may be slow, rate-limited, or fail outright.
// The engine behind it is swappable without touching resolution logic.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (string, error)
}
