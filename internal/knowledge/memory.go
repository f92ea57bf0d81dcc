package knowledge

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Memory is an in-process store. It backs single-process swarms and tests.
type Memory struct {
	mu     sync.RWMutex
	vals   map[string]Value
	closed bool
}

func NewMemory() *Memory {
	return &Memory{vals: make(map[string]Value)}
}

func (m *Memory) Get(key string) (Value, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Value{}, false, ErrUnavailable
	}
	v, ok := m.vals[key]
	return v, ok, nil
}

func (m *Memory) Set(key string, v Value) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUnavailable
	}
	m.vals[key] = v
	return nil
}

func (m *Memory) Keys(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrUnavailable
	}
	var keys []string
	for k := range m.vals {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (m *Memory) Snapshot() (map[string]Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrUnavailable
	}
	return maps.Clone(m.vals), nil
}

// Close tears the store down; every later call returns ErrUnavailable.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
