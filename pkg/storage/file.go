package storage

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// fileExt is appended to every key's file name.
const fileExt = ".state"

// FileBackend stores one file per key in a directory. Writes go through a
// temp file and rename so a reader never sees a partial value. It implements
// Watcher with fsnotify, so several processes sharing the directory see each
// other's writes.
type FileBackend struct {
	dir string

	mu     sync.RWMutex
	closed bool
	cancel []func()
}

// NewFileBackend creates dir if needed and returns a backend rooted there.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileBackend{dir: dir}, nil
}

// Dir returns the backend's directory.
func (f *FileBackend) Dir() string {
	return f.dir
}

// path escapes key so any string maps to a single file name.
func (f *FileBackend) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+fileExt)
}

// keyFromPath reverses path. ok is false for files that are not state files.
func keyFromPath(name string) (string, bool) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, fileExt) || strings.HasPrefix(base, ".") {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(base, fileExt))
	if err != nil {
		return "", false
	}
	return key, true
}

func (f *FileBackend) isClosed() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.closed
}

// Load reads the file for key.
func (f *FileBackend) Load(ctx context.Context, key string) ([]byte, error) {
	if f.isClosed() {
		return nil, errClosed()
	}

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Save atomically replaces the file for key.
func (f *FileBackend) Save(ctx context.Context, key string, data []byte) error {
	if f.isClosed() {
		return errClosed()
	}

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path(key))
}

// Delete removes the file for key.
func (f *FileBackend) Delete(ctx context.Context, key string) error {
	if f.isClosed() {
		return errClosed()
	}

	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Keys lists the keys with a file in the directory.
func (f *FileBackend) Keys(ctx context.Context) ([]string, error) {
	if f.isClosed() {
		return nil, errClosed()
	}

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if key, ok := keyFromPath(e.Name()); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Watch reports keys whose files are created, written, renamed or removed.
func (f *FileBackend) Watch(fn func(key string)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, errClosed()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(f.dir); err != nil {
		watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-done:
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				if key, ok := keyFromPath(evt.Name); ok {
					fn(key)
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() { once.Do(func() { close(done) }) }
	f.cancel = append(f.cancel, cancel)
	return cancel, nil
}

// Close stops all watchers. Files are left in place.
func (f *FileBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	for _, cancel := range f.cancel {
		cancel()
	}
	f.cancel = nil
	return nil
}
