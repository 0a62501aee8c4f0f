package storage

import (
	"context"
	"sync"
)

var _ Backend = (*MemoryBackend)(nil)

type MemoryBackend struct {
	mutex   sync.RWMutex
	clients map[string]map[string]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		clients: make(map[string]map[string]string),
	}
}

func (b *MemoryBackend) ForClient(clientID string) Storage {
	return &memoryStorage{backend: b, clientID: clientID}
}

// Clients returns the number of clients that have stored at least one item.
func (b *MemoryBackend) Clients() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.clients)
}

type memoryStorage struct {
	backend  *MemoryBackend
	clientID string
}

func (s *memoryStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	if s.clientID == "" {
		return "", false, ErrEmptyClientID
	}

	s.backend.mutex.RLock()
	defer s.backend.mutex.RUnlock()

	val, ok := s.backend.clients[s.clientID][key]
	return val, ok, nil
}

func (s *memoryStorage) SetItem(_ context.Context, key, value string) error {
	if s.clientID == "" {
		return ErrEmptyClientID
	}

	s.backend.mutex.Lock()
	defer s.backend.mutex.Unlock()

	items, ok := s.backend.clients[s.clientID]
	if !ok {
		items = make(map[string]string)
		s.backend.clients[s.clientID] = items
	}
	items[key] = value
	return nil
}

func (s *memoryStorage) RemoveItem(_ context.Context, key string) error {
	if s.clientID == "" {
		return ErrEmptyClientID
	}

	s.backend.mutex.Lock()
	defer s.backend.mutex.Unlock()

	items, ok := s.backend.clients[s.clientID]
	if !ok {
		return nil
	}
	delete(items, key)
	if len(items) == 0 {
		delete(s.backend.clients, s.clientID)
	}
	return nil
}
