package method

import "time"

// The functions below are the only state transitions. They run inside
// Store.Mutate and may be re-run on a fresh Set when an optimistic store
// retries, so they must not have side effects outside the Set.

func createPending(s *Set, name, secret string, now time.Time) (*Method, bool, error) {
	if m := s.Get(name); m != nil {
		if m.IsActive {
			return nil, false, ErrAlreadyActive
		}
		return m, false, nil
	}

	m := &Method{
		UserID:    s.UserID,
		Name:      name,
		Secret:    secret,
		CreatedAt: now,
	}
	s.add(m)
	return m, true, nil
}

func activate(s *Set, name string, backupCodes []string, secret string, now time.Time) (*Method, error) {
	m := s.Get(name)
	if m == nil {
		return nil, ErrNotFound
	}
	if m.IsActive {
		return nil, ErrAlreadyActive
	}

	hasActive := false
	for _, other := range s.methods {
		if other != m && other.IsActive {
			hasActive = true
			break
		}
	}

	m.IsActive = true
	m.IsPrimary = !hasActive
	m.BackupCodes = append([]string(nil), backupCodes...)
	if secret != "" {
		m.Secret = secret
	}
	if m.ActivatedAt.IsZero() {
		m.ActivatedAt = now
	}
	s.touch(m)
	return m, nil
}

func deactivate(s *Set, name string) error {
	m := s.Get(name)
	switch {
	case m == nil:
		return ErrNotFound
	case !m.IsActive:
		return ErrNotEnabled
	case m.IsPrimary:
		return ErrDeactivatePrimary
	}

	m.IsActive = false
	m.CodeGeneratedAt = time.Time{}
	s.touch(m)
	return nil
}

func setPrimary(s *Set, name string) error {
	target := s.Get(name)
	switch {
	case target == nil:
		return ErrNotFound
	case !target.IsActive:
		return ErrPrimaryInactive
	case target.IsPrimary:
		return ErrSamePrimary
	}

	for _, m := range s.methods {
		if m.IsPrimary {
			m.IsPrimary = false
			s.touch(m)
		}
	}
	target.IsPrimary = true
	s.touch(target)
	return nil
}

func replaceBackupCodes(s *Set, name string, codes []string) error {
	m := s.Get(name)
	if m == nil {
		return ErrNotFound
	}
	if !m.IsActive {
		return ErrNotEnabled
	}

	m.BackupCodes = append([]string(nil), codes...)
	s.touch(m)
	return nil
}

// consumeBackupCode removes exactly entry. It reports false when the entry is
// already gone, which is how the loser of a concurrent double use finds out.
func consumeBackupCode(s *Set, name, entry string) bool {
	m := s.Get(name)
	if m == nil || !m.IsActive {
		return false
	}

	for i, stored := range m.BackupCodes {
		if stored == entry {
			m.BackupCodes = append(m.BackupCodes[:i:i], m.BackupCodes[i+1:]...)
			s.touch(m)
			return true
		}
	}
	return false
}

func advanceCounter(s *Set, name string, now time.Time) (*Method, error) {
	m := s.Get(name)
	if m == nil {
		return nil, ErrNotFound
	}

	m.Counter++
	m.CodeGeneratedAt = now
	s.touch(m)
	return m.Clone(), nil
}

// consumeCounterCode clears the outstanding stamp if counter is still the
// current one. A second caller holding the same code sees a zero stamp.
func consumeCounterCode(s *Set, name string, counter uint64) bool {
	m := s.Get(name)
	if m == nil || m.Counter != counter || m.CodeGeneratedAt.IsZero() {
		return false
	}

	m.CodeGeneratedAt = time.Time{}
	s.touch(m)
	return true
}
