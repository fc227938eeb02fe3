package main

import (
	"context"
	"sync"
	"time"

	goMFA "github.com/MrEthical07/goMFA"
)

// memoryUsers is an in-memory goMFA.UserProvider for the reference server.
// Replace it with the application's user table.
type memoryUsers struct {
	mu     sync.RWMutex
	byID   map[string]goMFA.UserRecord
	byName map[string]string
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{
		byID:   make(map[string]goMFA.UserRecord),
		byName: make(map[string]string),
	}
}

func (p *memoryUsers) add(u goMFA.UserRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byID[u.UserID] = u
	p.byName[u.Username] = u.UserID
}

func (p *memoryUsers) GetUserByIdentifier(_ context.Context, identifier string) (goMFA.UserRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.byName[identifier]
	if !ok {
		return goMFA.UserRecord{}, goMFA.ErrUserNotFound
	}
	return p.byID[id], nil
}

func (p *memoryUsers) GetUserByID(_ context.Context, userID string) (goMFA.UserRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	u, ok := p.byID[userID]
	if !ok {
		return goMFA.UserRecord{}, goMFA.ErrUserNotFound
	}
	return u, nil
}

func (p *memoryUsers) UpdateAttributes(_ context.Context, userID string, attrs map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.byID[userID]
	if !ok {
		return goMFA.ErrUserNotFound
	}
	for k, v := range attrs {
		switch k {
		case "email":
			u.Email = v
		case "phone_number":
			u.PhoneNumber = v
		default:
			if u.Attributes == nil {
				u.Attributes = make(map[string]string)
			}
			u.Attributes[k] = v
		}
	}
	p.byID[userID] = u
	return nil
}

func (p *memoryUsers) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.byID[userID]
	if !ok {
		return goMFA.ErrUserNotFound
	}
	u.LastLogin = at
	p.byID[userID] = u
	return nil
}
