package storefake

import (
	"context"
	"sync"

	"github.com/jrsteele09/academy-portal/credentials"
)

var _ credentials.Store = (*FakeStore)(nil)

// FakeStore is an in-memory credentials.Store for tests.
type FakeStore struct {
	mu      sync.RWMutex
	values  map[credentials.Key]string
	GetErr  error
	SetErr  error
	deletes int
}

func NewFakeStore() *FakeStore {
	return &FakeStore{values: make(map[credentials.Key]string)}
}

// NewSeededFakeStore returns a store pre-populated with values.
func NewSeededFakeStore(values map[credentials.Key]string) *FakeStore {
	s := NewFakeStore()
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

func (s *FakeStore) Get(_ context.Context, key credentials.Key) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.GetErr != nil {
		return "", false, s.GetErr
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *FakeStore) Set(_ context.Context, key credentials.Key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SetErr != nil {
		return s.SetErr
	}
	s.values[key] = value
	return nil
}

func (s *FakeStore) Delete(_ context.Context, keys ...credentials.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

// Value returns the stored value without going through the Store interface.
func (s *FakeStore) Value(key credentials.Key) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *FakeStore) DeleteCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deletes
}
