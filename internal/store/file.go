package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileStore persists each document as a JSON file on disk, one file per key
// under the data directory. Watch notifications are in-process only: a second
// process writing the same directory will not be observed.
type FileStore struct {
	mu       sync.RWMutex
	dir      string
	watchers map[string]map[int64]*memWatcher
	nextID   int64
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
	}
	return &FileStore{
		dir:      dir,
		watchers: make(map[string]map[int64]*memWatcher),
	}, nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, filepath.FromSlash(key)+".json")
}

func (f *FileStore) readLocked(key string) Snapshot {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		return Snapshot{Key: key}
	}
	return Snapshot{Key: key, Exists: true, Data: data}
}

func (f *FileStore) Get(_ context.Context, key string) (Snapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.readLocked(key), nil
}

func (f *FileStore) Set(_ context.Context, key string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding document %s: %w", key, err)
	}

	f.mu.Lock()
	p := f.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		f.mu.Unlock()
		return fmt.Errorf("creating directory for %s: %w", key, err)
	}

	// Write to temp file then rename for atomic writes
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		f.mu.Unlock()
		return fmt.Errorf("writing document %s: %w", key, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		f.mu.Unlock()
		return fmt.Errorf("renaming document file %s: %w", key, err)
	}
	watchers, snap := f.watchersLocked(key)
	f.mu.Unlock()

	for _, w := range watchers {
		w.notify(snap)
	}
	return nil
}

func (f *FileStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	err := os.Remove(f.path(key))
	if err != nil {
		f.mu.Unlock()
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("deleting document %s: %w", key, err)
	}
	watchers, snap := f.watchersLocked(key)
	f.mu.Unlock()

	for _, w := range watchers {
		w.notify(snap)
	}
	return nil
}

func (f *FileStore) List(_ context.Context, prefix string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	keys := make([]string, 0)
	err := filepath.WalkDir(f.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".json" {
			return err
		}
		rel, err := filepath.Rel(f.dir, p)
		if err != nil {
			return err
		}
		key := strings.TrimSuffix(filepath.ToSlash(rel), ".json")
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing data directory: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *FileStore) Watch(key string, onChange func(Snapshot), onError func(error)) (func(), error) {
	w := &memWatcher{onChange: onChange, onError: onError}

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	if f.watchers[key] == nil {
		f.watchers[key] = make(map[int64]*memWatcher)
	}
	f.watchers[key][id] = w
	initial := f.readLocked(key)
	f.mu.Unlock()

	w.notify(initial)

	stop := func() {
		w.stopped.Store(true)
		f.mu.Lock()
		delete(f.watchers[key], id)
		f.mu.Unlock()
	}
	return stop, nil
}

func (f *FileStore) watchersLocked(key string) ([]*memWatcher, Snapshot) {
	set := f.watchers[key]
	if len(set) == 0 {
		return nil, Snapshot{}
	}
	out := make([]*memWatcher, 0, len(set))
	for _, w := range set {
		out = append(out, w)
	}
	return out, f.readLocked(key)
}
