package dupimg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// RegistryEntry is one key and its cache file identifier
type RegistryEntry struct {
	Key string
	ID  string
}

// CacheRegistry maps source folders to opaque cache file names. The mapping
// is persisted as a JSON object and rewritten in full on every add or delete.
// Cache files live next to the registry file.
type CacheRegistry struct {
	dir      string
	fileName string
	mu       sync.Mutex
	entries  map[string]string
}

// OpenCacheRegistry loads the registry file from dir. A missing file yields an
// empty registry; an unreadable or corrupt one is an error and nothing is
// written.
func OpenCacheRegistry(dir, fileName string) (*CacheRegistry, error) {
	defer VerboseEnter()()

	if fileName == "" {
		fileName = DefaultRegistryFile
	}
	r := &CacheRegistry{
		dir:      dir,
		fileName: fileName,
		entries:  make(map[string]string),
	}

	data, err := os.ReadFile(r.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache registry %s: %w", r.Path(), err)
	}

	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &r.entries); err != nil {
			return nil, fmt.Errorf("failed to parse cache registry %s: %w", r.Path(), err)
		}
		if r.entries == nil {
			r.entries = make(map[string]string)
		}
	}

	DebugLog("registry", "loaded %d cache(s) from %s", len(r.entries), r.Path())
	return r, nil
}

// Path returns the registry file location
func (r *CacheRegistry) Path() string {
	return filepath.Join(r.dir, r.fileName)
}

// CachePath returns the location of the cache file with the given identifier
func (r *CacheRegistry) CachePath(id string) string {
	return filepath.Join(r.dir, id)
}

// Lookup returns the identifier registered for key
func (r *CacheRegistry) Lookup(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.entries[key]
	return id, ok
}

// GetOrCreate returns the store for key. A new key gets a fresh identifier,
// which is persisted immediately, and an empty store; a known key gets a
// store loaded from its cache file. created reports which case applied.
func (r *CacheRegistry) GetOrCreate(key string) (store *FingerprintStore, created bool, err error) {
	r.mu.Lock()
	id, ok := r.entries[key]
	if !ok {
		id = r.newID()
		r.entries[key] = id
		if err := r.saveLocked(); err != nil {
			delete(r.entries, key)
			r.mu.Unlock()
			return nil, false, err
		}
		DebugLog("registry", "registered %s as %s", key, id)
	}
	r.mu.Unlock()

	store = NewFingerprintStore(r.CachePath(id))
	if ok {
		if err := store.Load(); err != nil {
			return nil, false, err
		}
	}
	return store, !ok, nil
}

// Delete removes key and its cache file. It reports false, without touching
// anything, when the key is unknown.
func (r *CacheRegistry) Delete(key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.entries[key]
	if !ok {
		return false, nil
	}
	delete(r.entries, key)

	if err := os.Remove(r.CachePath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		r.entries[key] = id
		return false, fmt.Errorf("failed to delete cache file %s: %w", r.CachePath(id), err)
	}
	if err := r.saveLocked(); err != nil {
		return true, err
	}

	DebugLog("registry", "deleted %s (%s)", key, id)
	return true, nil
}

// List returns all registrations ordered by key
func (r *CacheRegistry) List() []RegistryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := make([]RegistryEntry, 0, len(r.entries))
	for key, id := range r.entries {
		list = append(list, RegistryEntry{Key: key, ID: id})
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Key < list[j].Key
	})
	return list
}

// newID generates an identifier not used by any registered key
func (r *CacheRegistry) newID() string {
	used := make(map[string]bool, len(r.entries))
	for _, id := range r.entries {
		used[id] = true
	}
	for {
		id := strings.ReplaceAll(uuid.NewString(), "-", "") + CacheFileSuffix
		if !used[id] {
			return id
		}
	}
}

// saveLocked rewrites the registry file; r.mu must be held
func (r *CacheRegistry) saveLocked() error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r.entries); err != nil {
		return fmt.Errorf("failed to encode cache registry: %w", err)
	}

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", r.dir, err)
	}

	tempPath := r.Path() + tempFileSuffix
	if err := os.WriteFile(tempPath, buf.Bytes(), 0644); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write cache registry: %w", err)
	}
	if err := os.Rename(tempPath, r.Path()); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename cache registry: %w", err)
	}
	return nil
}
