package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// MemoryStore keeps documents in a map. It is the default backend for local
// development and the one the tests run against.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string][]byte
	watchers map[string]map[int64]*memWatcher
	nextID   int64
}

type memWatcher struct {
	stopped  atomic.Bool
	onChange func(Snapshot)
	onError  func(error)
}

func (w *memWatcher) notify(snap Snapshot) {
	if w.stopped.Load() {
		return
	}
	w.onChange(snap)
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string][]byte),
		watchers: make(map[string]map[int64]*memWatcher),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.snapshotLocked(key), nil
}

func (m *MemoryStore) snapshotLocked(key string) Snapshot {
	data, ok := m.docs[key]
	if !ok {
		return Snapshot{Key: key}
	}
	// Copy so callers can't mutate the stored document
	copied := make([]byte, len(data))
	copy(copied, data)
	return Snapshot{Key: key, Exists: true, Data: copied}
}

func (m *MemoryStore) Set(_ context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding document %s: %w", key, err)
	}

	m.mu.Lock()
	m.docs[key] = data
	watchers, snap := m.watchersLocked(key)
	m.mu.Unlock()

	for _, w := range watchers {
		w.notify(snap)
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	_, existed := m.docs[key]
	delete(m.docs, key)
	watchers, snap := m.watchersLocked(key)
	m.mu.Unlock()

	if !existed {
		return nil
	}
	for _, w := range watchers {
		w.notify(snap)
	}
	return nil
}

func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0)
	for key := range m.docs {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStore) Watch(key string, onChange func(Snapshot), onError func(error)) (func(), error) {
	w := &memWatcher{onChange: onChange, onError: onError}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	if m.watchers[key] == nil {
		m.watchers[key] = make(map[int64]*memWatcher)
	}
	m.watchers[key][id] = w
	initial := m.snapshotLocked(key)
	m.mu.Unlock()

	// First delivery carries the current value, like a snapshot listener
	w.notify(initial)

	stop := func() {
		w.stopped.Store(true)
		m.mu.Lock()
		delete(m.watchers[key], id)
		m.mu.Unlock()
	}
	return stop, nil
}

// watchersLocked returns the current watcher set for key together with the
// snapshot to deliver. Callbacks run outside the store lock.
func (m *MemoryStore) watchersLocked(key string) ([]*memWatcher, Snapshot) {
	set := m.watchers[key]
	if len(set) == 0 {
		return nil, Snapshot{}
	}
	out := make([]*memWatcher, 0, len(set))
	for _, w := range set {
		out = append(out, w)
	}
	return out, m.snapshotLocked(key)
}
