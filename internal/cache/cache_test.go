package cache

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestPutAndGet(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, 1024*1024, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	data := []byte("hello audio")
	if err := c.Put("key1", data); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok := c.Get("key1")
	if !ok {
		t.Fatal("Get returned false, want true")
	}
	if string(got) != string(data) {
		t.Errorf("Get = %q, want %q", got, data)
	}
}

func TestGetMiss(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, 1024*1024, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("Get returned true for nonexistent key")
	}
}

func TestEvictionLRU(t *testing.T) {
	dir := t.TempDir()
	// 100 bytes max
	c, err := New(dir, 100, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Put 60 bytes
	if err := c.Put("a", make([]byte, 60)); err != nil {
		t.Fatalf("Put a: %v", err)
	}
	// Put 60 bytes, evicting "a"
	if err := c.Put("b", make([]byte, 60)); err != nil {
		t.Fatalf("Put b: %v", err)
	}

	if _, ok := c.Get("a"); ok {
		t.Error("key 'a' should have been evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("key 'b' should still exist")
	}
}

func TestEvictionOrder(t *testing.T) {
	dir := t.TempDir()
	// 150 bytes max: fits 2 entries of 50
	c, err := New(dir, 150, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c.Put("old", make([]byte, 50))
	c.Put("mid", make([]byte, 50))

	// Access "old" to make it more recent than "mid"
	c.Get("old")

	// This should evict "mid" (least recently accessed), not "old"
	c.Put("new", make([]byte, 60))

	if _, ok := c.Get("mid"); ok {
		t.Error("key 'mid' should have been evicted (least recently accessed)")
	}
	if _, ok := c.Get("old"); !ok {
		t.Error("key 'old' should still exist (recently accessed)")
	}
	if _, ok := c.Get("new"); !ok {
		t.Error("key 'new' should exist")
	}
}

func TestPutOversized(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, 50, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// 100 bytes > 50 max: silently ignored
	if err := c.Put("big", make([]byte, 100)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, ok := c.Get("big"); ok {
		t.Error("oversized entry should not be cached")
	}
}

func TestConcurrentAccess(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, 1024*1024, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := Key("openai", "fable", "text")
			c.Put(key, make([]byte, 100))
			c.Get(key)
		}()
	}
	wg.Wait()
}

func TestKeyDeterministic(t *testing.T) {
	k1 := Key("cartesia", "v1", "hello")
	k2 := Key("cartesia", "v1", "hello")
	if k1 != k2 {
		t.Errorf("same input produced different keys: %q vs %q", k1, k2)
	}
}

func TestKeyDifferent(t *testing.T) {
	tests := [][3]string{
		{"openai", "v1", "world"},
		{"deepgram", "v1", "hello"},
		{"openai", "v2", "hello"},
		{"openai", "v1h", "ello"},
	}
	base := Key("openai", "v1", "hello")
	for _, tt := range tests {
		if Key(tt[0], tt[1], tt[2]) == base {
			t.Errorf("Key%v collides with base key", tt)
		}
	}
}

func TestLoadExisting(t *testing.T) {
	dir := t.TempDir()

	// Pre-create files
	os.WriteFile(filepath.Join(dir, "abc123.audio"), []byte("audio data"), 0o644)
	os.WriteFile(filepath.Join(dir, "def456.audio"), []byte("more audio"), 0o644)

	c, err := New(dir, 1024*1024, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got1, ok1 := c.Get("abc123")
	if !ok1 {
		t.Error("expected abc123 to be loaded")
	}
	if string(got1) != "audio data" {
		t.Errorf("abc123 = %q, want %q", got1, "audio data")
	}

	got2, ok2 := c.Get("def456")
	if !ok2 {
		t.Error("expected def456 to be loaded")
	}
	if string(got2) != "more audio" {
		t.Errorf("def456 = %q, want %q", got2, "more audio")
	}
}

func TestLoadExistingEvictsOverCapacity(t *testing.T) {
	dir := t.TempDir()

	// Pre-create 3 files totaling 150 bytes, but maxBytes will be 100
	os.WriteFile(filepath.Join(dir, "aaa.audio"), make([]byte, 50), 0o644)
	os.WriteFile(filepath.Join(dir, "bbb.audio"), make([]byte, 50), 0o644)
	os.WriteFile(filepath.Join(dir, "ccc.audio"), make([]byte, 50), 0o644)

	c, err := New(dir, 100, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Total should be <= 100 after eviction, so at most 2 entries remain
	total := c.Size()
	count := c.Len()

	if total > 100 {
		t.Errorf("totalSize after loadExisting = %d, want <= 100", total)
	}
	if count > 2 {
		t.Errorf("entry count = %d, want <= 2", count)
	}
}

func TestStaleFileCleanup(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, 1024*1024, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c.Put("stale", []byte("data"))

	// Delete the file behind the cache's back
	os.Remove(filepath.Join(dir, "stale.audio"))

	_, ok := c.Get("stale")
	if ok {
		t.Error("Get should return false for deleted file")
	}

	// Subsequent Get should also return false (entry cleaned up)
	_, ok = c.Get("stale")
	if ok {
		t.Error("second Get should also return false")
	}
}

func TestPutReplacesExisting(t *testing.T) {
	c, err := New(t.TempDir(), 100, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c.Put("k", make([]byte, 40))
	c.Put("k", make([]byte, 70))

	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
	if c.Size() != 70 {
		t.Errorf("Size = %d, want 70", c.Size())
	}
}

func TestPutEmptySkipped(t *testing.T) {
	c, err := New(t.TempDir(), 100, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Put("empty", nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok := c.Get("empty"); ok {
		t.Error("empty payload should not be cached")
	}
}

func TestLoadExistingKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.audio")
	recent := filepath.Join(dir, "recent.audio")
	os.WriteFile(old, make([]byte, 60), 0o644)
	os.WriteFile(recent, make([]byte, 60), 0o644)
	past := time.Now().Add(-time.Hour)
	os.Chtimes(old, past, past)

	c, err := New(dir, 100, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := c.Get("old"); ok {
		t.Error("oldest file should have been evicted")
	}
	if _, ok := c.Get("recent"); !ok {
		t.Error("newest file should survive")
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("evicted file should be deleted from disk")
	}
}
