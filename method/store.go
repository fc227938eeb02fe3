package method

import "context"

// Store persists method sets.
//
// Mutate loads the user's set, calls fn and persists Set.Changed() if fn
// returns nil. Implementations must make Mutate serializable with respect
// to other Mutate calls for the same user. fn may run more than once.
type Store interface {
	Load(ctx context.Context, userID string) (*Set, error)
	Mutate(ctx context.Context, userID string, fn func(*Set) error) error
}
