package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileBackend_RoundTrip(t *testing.T) {
	b, err := NewFileBackend(filepath.Join(t.TempDir(), "state"))
	if err != nil {
		t.Fatalf("NewFileBackend() error: %v", err)
	}
	defer b.Close()
	ctx := context.Background()

	key := "app/settings v2"
	if err := b.Save(ctx, key, []byte("hello")); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	data, err := b.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("Load() = %q, want hello", data)
	}

	keys, err := b.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys() error: %v", err)
	}
	if len(keys) != 1 || keys[0] != key {
		t.Errorf("Keys() = %q, want [%q]", keys, key)
	}

	if err := b.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := b.Delete(ctx, key); err != nil {
		t.Errorf("second Delete() error: %v", err)
	}
	data, err = b.Load(ctx, key)
	if err != nil || data != nil {
		t.Errorf("Load() after Delete = %q, %v; want nil, nil", data, err)
	}
}

func TestFileBackend_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend() error: %v", err)
	}
	defer b.Close()

	_ = os.WriteFile(filepath.Join(dir, "README.md"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, ".tmp-123"), []byte("x"), 0o644)

	keys, err := b.Keys(context.Background())
	if err != nil {
		t.Fatalf("Keys() error: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Keys() = %v, want none", keys)
	}
}

func TestFileBackend_WatchSeesOtherWriters(t *testing.T) {
	dir := t.TempDir()
	reader, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend() error: %v", err)
	}
	defer reader.Close()
	writer, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend() error: %v", err)
	}
	defer writer.Close()

	changed := make(chan string, 16)
	cancel, err := reader.Watch(func(key string) { changed <- key })
	if err != nil {
		t.Fatalf("Watch() error: %v", err)
	}
	defer cancel()

	if err := writer.Save(context.Background(), "theme", []byte("dark")); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	select {
	case key := <-changed:
		if key != "theme" {
			t.Errorf("watched key = %q, want theme", key)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch event")
	}
}

func TestKeyFromPath(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"counter.state", "counter", true},
		{"a%2Fb.state", "a/b", true},
		{".tmp-1", "", false},
		{"notes.txt", "", false},
	}
	for _, tt := range tests {
		got, ok := keyFromPath(tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("keyFromPath(%q) = %q, %v; want %q, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}
