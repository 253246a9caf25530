// Package storage defines the key/value port used to persist quote history and
// generated descriptions, plus an in-memory adapter.
package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrUnavailable reports that the backing store cannot be read or written.
var ErrUnavailable = errors.New("storage unavailable")

// Store is generic string key/value storage holding JSON-encoded state.
type Store interface {
	// Get returns the value for key; ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Memory keeps values in a map. It is safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Unavailable fails every call, like a browser with storage disabled.
type Unavailable struct{}

func (Unavailable) Get(context.Context, string) (string, bool, error) {
	return "", false, ErrUnavailable
}

func (Unavailable) Set(context.Context, string, string) error {
	return ErrUnavailable
}
