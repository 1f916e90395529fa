package traininglog

import (
	"context"
)

// Reader is the read side shared by stores and open transactions.
type Reader interface {
	FindByID(ctx context.Context, id string) (*Entry, error)
	// FindCurrentPR returns nil when the pair has no entries, and an
	// *InvariantViolationError when more than one entry is flagged.
	FindCurrentPR(ctx context.Context, userID, exerciseID string) (*Entry, error)
	List(ctx context.Context, params ListParams) ([]Entry, error)
}

// Tx is an open atomic scope. Nothing written through it is visible to other
// readers until the scope commits.
type Tx interface {
	Reader
	// LockPair serializes PR resolution for a (user, exercise) pair until the
	// scope ends. Different pairs must not block each other.
	LockPair(ctx context.Context, userID, exerciseID string) error
	Insert(ctx context.Context, entry *Entry) error
	// FindMaxWeightExcluding returns the heaviest entry of the pair other than
	// excludeID (earliest createdAt on ties), or nil.
	FindMaxWeightExcluding(ctx context.Context, userID, exerciseID, excludeID string) (*Entry, error)
	// Update persists the mutable fields of an entry, isPR excluded.
	Update(ctx context.Context, entry *Entry) error
	SetPR(ctx context.Context, id string, isPR bool) error
	Delete(ctx context.Context, id string) error
}

type Store interface {
	Reader
	// RunAtomic runs fn in one transaction. If fn returns an error, nothing it
	// wrote becomes visible.
	RunAtomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}
