package session

import (
	"context"
	"errors"
	"sync"
)

// ErrUnavailable is the failure injected into a MemoryStore by tests.
var ErrUnavailable = errors.New("storage unavailable")

// MemoryStore keeps the session in process memory. Intended for tests and for
// hosts without a durable medium.
type MemoryStore struct {
	mu       sync.RWMutex
	user     string
	token    string
	failSave error
	failLoad error
	saves    int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// FailSave makes subsequent saves fail with err. Pass nil to recover.
func (m *MemoryStore) FailSave(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSave = err
}

// FailLoad makes subsequent loads fail with err. Pass nil to recover.
func (m *MemoryStore) FailLoad(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failLoad = err
}

// Saves reports how many saves succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Save replaces the stored pair unless a failure was injected.
func (m *MemoryStore) Save(_ context.Context, s Session) error {
	if err := s.validate(); err != nil {
		return storageErr(err, "save session")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return storageErr(m.failSave, "save session")
	}
	m.user = string(s.UserProfile)
	m.token = s.AccessToken
	m.saves++
	return nil
}

// Load returns the stored pair; a half pair reads as absent.
func (m *MemoryStore) Load(_ context.Context) (Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failLoad != nil {
		return Session{}, false, storageErr(m.failLoad, "load session")
	}
	s, ok := fromPair(m.user, m.token, m.user != "", m.token != "")
	return s, ok, nil
}

// Clear drops both values.
func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = ""
	m.token = ""
	return nil
}
