package repositories

import (
	"context"
	"slices"
	"sync"
)

// MemoryKV keeps slots in a map. FailWrites makes every Set return the given
// error, which lets callers exercise storage failures such as a full quota.
type MemoryKV struct {
	mutex  sync.RWMutex
	values map[string][]byte
	writes int
	failOn error
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.failOn != nil {
		return m.failOn
	}
	m.values[key] = slices.Clone(value)
	m.writes++
	return nil
}

// FailWrites makes subsequent writes fail with err; nil restores normal behaviour.
func (m *MemoryKV) FailWrites(err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.failOn = err
}

// Writes reports how many writes succeeded.
func (m *MemoryKV) Writes() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.writes
}

// Put stores raw bytes directly, bypassing FailWrites.
func (m *MemoryKV) Put(key string, value []byte) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.values[key] = slices.Clone(value)
}

func (m *MemoryKV) Close() error {
	return nil
}
