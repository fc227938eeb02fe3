package method

import (
	"fmt"
	"sort"
	"time"
)

// BackupCodeDelimiter separates backup code entries in column encodings that
// store the list as a single string. Backup code alphabets must not contain it.
const BackupCodeDelimiter = ';'

// State is the lifecycle position of a method.
type State uint8

const (
	StatePending State = iota
	StateActive
	StateInactive
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateInactive:
		return "inactive"
	default:
		return "pending"
	}
}

// Method is one MFA enrollment for one user.
type Method struct {
	UserID    string
	Name      string
	Secret    string
	IsActive  bool
	IsPrimary bool

	// Counter and CodeGeneratedAt drive counter-based codes. A zero
	// CodeGeneratedAt means no code is outstanding.
	Counter         uint64
	CodeGeneratedAt time.Time

	BackupCodes []string
	CreatedAt   time.Time
	ActivatedAt time.Time
}

// State derives the lifecycle position from the flags.
func (m *Method) State() State {
	switch {
	case m.IsActive:
		return StateActive
	case !m.ActivatedAt.IsZero():
		return StateInactive
	default:
		return StatePending
	}
}

// Clone returns a deep copy.
func (m *Method) Clone() *Method {
	if m == nil {
		return nil
	}
	c := *m
	c.BackupCodes = append([]string(nil), m.BackupCodes...)
	return &c
}

// Set is the full collection of one user's methods in registration order.
type Set struct {
	UserID  string
	methods []*Method
	dirty   map[string]struct{}
}

// NewSet builds a set from stored records. Records are ordered by CreatedAt,
// then by name.
func NewSet(userID string, methods []*Method) *Set {
	s := &Set{UserID: userID, methods: methods, dirty: map[string]struct{}{}}
	sort.SliceStable(s.methods, func(i, j int) bool {
		a, b := s.methods[i], s.methods[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Name < b.Name
	})
	return s
}

// Get returns the named method or nil.
func (s *Set) Get(name string) *Method {
	for _, m := range s.methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// All returns every method in registration order.
func (s *Set) All() []*Method {
	return s.methods
}

// Primary returns the primary method or nil.
func (s *Set) Primary() *Method {
	for _, m := range s.methods {
		if m.IsPrimary {
			return m
		}
	}
	return nil
}

// Active returns active methods with the primary first, then registration order.
func (s *Set) Active() []*Method {
	out := make([]*Method, 0, len(s.methods))
	if p := s.Primary(); p != nil && p.IsActive {
		out = append(out, p)
	}
	for _, m := range s.methods {
		if m.IsActive && !m.IsPrimary {
			out = append(out, m)
		}
	}
	return out
}

// Changed returns the methods modified since the set was loaded.
func (s *Set) Changed() []*Method {
	out := make([]*Method, 0, len(s.dirty))
	for _, m := range s.methods {
		if _, ok := s.dirty[m.Name]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Validate checks the primary invariants.
func (s *Set) Validate() error {
	primaries := 0
	for _, m := range s.methods {
		if !m.IsPrimary {
			continue
		}
		primaries++
		if !m.IsActive {
			return fmt.Errorf("%w: %s is primary but inactive", ErrPrimaryInvariant, m.Name)
		}
	}
	if primaries > 1 {
		return fmt.Errorf("%w: %d primary methods", ErrPrimaryInvariant, primaries)
	}
	return nil
}

func (s *Set) add(m *Method) {
	s.methods = append(s.methods, m)
	s.touch(m)
}

func (s *Set) touch(m *Method) {
	s.dirty[m.Name] = struct{}{}
}
