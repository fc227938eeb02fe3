package method

import (
	"context"
	"time"
)

// Registry applies lifecycle transitions through a Store. It is the only
// writer of method records.
type Registry struct {
	store Store
	now   func() time.Time
}

// NewRegistry wraps store. now may be nil.
func NewRegistry(store Store, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{store: store, now: now}
}

// timestamp is truncated to microseconds, the coarsest precision among the
// stores, so values round-trip unchanged.
func (r *Registry) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

func (r *Registry) mutate(ctx context.Context, userID string, fn func(*Set) error) error {
	return r.store.Mutate(ctx, userID, func(s *Set) error {
		if err := fn(s); err != nil {
			return err
		}
		return s.Validate()
	})
}

// CreateOrGetPending returns the existing (user, name) method or creates a
// pending one carrying secret. created reports which happened. An active
// method yields ErrAlreadyActive.
func (r *Registry) CreateOrGetPending(ctx context.Context, userID, name, secret string) (m *Method, created bool, err error) {
	now := r.timestamp()
	err = r.mutate(ctx, userID, func(s *Set) error {
		got, c, err := createPending(s, name, secret, now)
		if err != nil {
			return err
		}
		m, created = got.Clone(), c
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return m, created, nil
}

// Activate marks the method active, makes it primary when the user has no
// other active method and stores backupCodes. A non-empty secret replaces the
// stored one in the same write.
func (r *Registry) Activate(ctx context.Context, userID, name string, backupCodes []string, secret string) (*Method, error) {
	now := r.timestamp()
	var out *Method
	err := r.mutate(ctx, userID, func(s *Set) error {
		m, err := activate(s, name, backupCodes, secret, now)
		if err != nil {
			return err
		}
		out = m.Clone()
		return nil
	})
	return out, err
}

// Deactivate clears IsActive. Primary methods are refused with
// ErrDeactivatePrimary; the caller hands primacy off with SetPrimary first.
func (r *Registry) Deactivate(ctx context.Context, userID, name string) error {
	return r.mutate(ctx, userID, func(s *Set) error {
		return deactivate(s, name)
	})
}

// SetPrimary moves primacy to name in one write.
func (r *Registry) SetPrimary(ctx context.Context, userID, name string) error {
	return r.mutate(ctx, userID, func(s *Set) error {
		return setPrimary(s, name)
	})
}

// ReplaceBackupCodes swaps the stored backup codes of an active method.
func (r *Registry) ReplaceBackupCodes(ctx context.Context, userID, name string, codes []string) error {
	return r.mutate(ctx, userID, func(s *Set) error {
		return replaceBackupCodes(s, name, codes)
	})
}

// ConsumeBackupCode removes the stored entry. It returns false when the entry
// was already consumed.
func (r *Registry) ConsumeBackupCode(ctx context.Context, userID, name, entry string) (bool, error) {
	var ok bool
	err := r.mutate(ctx, userID, func(s *Set) error {
		ok = consumeBackupCode(s, name, entry)
		return nil
	})
	return ok, err
}

// AdvanceCounter increments the counter, stamps the generation time and
// returns the updated method.
func (r *Registry) AdvanceCounter(ctx context.Context, userID, name string) (*Method, error) {
	now := r.timestamp()
	var out *Method
	err := r.mutate(ctx, userID, func(s *Set) error {
		m, err := advanceCounter(s, name, now)
		out = m
		return err
	})
	return out, err
}

// ConsumeCounterCode clears the generation stamp if counter is current.
func (r *Registry) ConsumeCounterCode(ctx context.Context, userID, name string, counter uint64) (bool, error) {
	var ok bool
	err := r.mutate(ctx, userID, func(s *Set) error {
		ok = consumeCounterCode(s, name, counter)
		return nil
	})
	return ok, err
}

// Get returns a copy of one method.
func (r *Registry) Get(ctx context.Context, userID, name string) (*Method, error) {
	s, err := r.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	m := s.Get(name)
	if m == nil {
		return nil, ErrNotFound
	}
	return m.Clone(), nil
}

// List returns copies of every method in registration order.
func (r *Registry) List(ctx context.Context, userID string) ([]*Method, error) {
	s, err := r.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return cloneAll(s.All()), nil
}

// ListActive returns active methods, primary first.
func (r *Registry) ListActive(ctx context.Context, userID string) ([]*Method, error) {
	s, err := r.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return cloneAll(s.Active()), nil
}

// GetPrimaryActive returns the primary method or ErrNoPrimary.
func (r *Registry) GetPrimaryActive(ctx context.Context, userID string) (*Method, error) {
	s, err := r.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := s.Primary()
	if p == nil || !p.IsActive {
		return nil, ErrNoPrimary
	}
	return p.Clone(), nil
}

// ExistsPrimary reports whether the user has a primary method.
func (r *Registry) ExistsPrimary(ctx context.Context, userID string) (bool, error) {
	_, err := r.GetPrimaryActive(ctx, userID)
	switch err {
	case nil:
		return true, nil
	case ErrNoPrimary:
		return false, nil
	default:
		return false, err
	}
}

func cloneAll(in []*Method) []*Method {
	out := make([]*Method, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}
