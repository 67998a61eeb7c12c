package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDiskCache_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}

	want := entryOfSize(4096, 7)
	if err := dc.Put("key", want); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := dc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get("key")
	if err != nil {
		t.Fatalf("Expected entry to survive reopen, got %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Entry mismatch (-want +got):\n%s", diff)
	}
}

func TestDiskCache_Compresses(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	defer dc.Close()

	// silence compresses very well
	if err := dc.Put("silence", entryOfSize(48000, 0)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if size := dc.Size(); size >= 48000/10 {
		t.Errorf("Expected compressed size well below 48000, got %d", size)
	}

	uncompressed, err := NewDiskCache(t.TempDir(), 1<<20, 0)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	defer uncompressed.Close()
	_ = uncompressed.Put("silence", entryOfSize(48000, 0))
	if size := uncompressed.Size(); size != 48000 {
		t.Errorf("Expected raw size 48000, got %d", size)
	}
}

func TestDiskCache_EvictsLeastRecentlyUsed(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 300, 0)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	defer dc.Close()

	_ = dc.Put("a", entryOfSize(100, 1))
	time.Sleep(2 * time.Millisecond)
	_ = dc.Put("b", entryOfSize(100, 2))
	time.Sleep(2 * time.Millisecond)
	_ = dc.Put("c", entryOfSize(100, 3))
	time.Sleep(2 * time.Millisecond)

	// touching a makes b the oldest
	if _, err := dc.Get("a"); err != nil {
		t.Fatalf("Expected a cached, got %v", err)
	}
	if diff := cmp.Diff([]string{"b", "c", "a"}, dc.LRUKeys(3)); diff != "" {
		t.Errorf("LRU order mismatch (-want +got):\n%s", diff)
	}

	_ = dc.Put("d", entryOfSize(100, 4))
	if dc.Contains("b") {
		t.Error("Expected b evicted")
	}
	if !dc.Contains("a") || !dc.Contains("d") {
		t.Error("Expected a and d cached")
	}
	if dc.Stats().Evictions != 1 {
		t.Errorf("Expected 1 eviction, got %d", dc.Stats().Evictions)
	}

	if err := dc.Put("huge", entryOfSize(301, 0)); err != ErrItemTooLarge {
		t.Errorf("Expected ErrItemTooLarge, got %v", err)
	}
}

func TestDiskCache_CorruptedFileIsAMiss(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20, 0)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	defer dc.Close()

	_ = dc.Put("key", entryOfSize(100, 1))
	files, _ := filepath.Glob(filepath.Join(dir, "*.pcm"))
	if len(files) != 1 {
		t.Fatalf("Expected one cache file, got %v", files)
	}
	if err := os.WriteFile(files[0], []byte("short"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := dc.Get("key"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected a miss for a truncated file, got %v", err)
	}
	if dc.Contains("key") {
		t.Error("Corrupted entry should be dropped from the index")
	}
}

func TestDiskCache_RemoveOlderThanAndClear(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20, 0)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	defer dc.Close()

	_ = dc.Put("old", entryOfSize(10, 1))
	cutoff := time.Now().Add(time.Millisecond)
	time.Sleep(2 * time.Millisecond)
	_ = dc.Put("new", entryOfSize(10, 2))

	if n := dc.RemoveOlderThan(cutoff); n != 1 {
		t.Errorf("Expected 1 removed, got %d", n)
	}
	if dc.Contains("old") || !dc.Contains("new") {
		t.Error("Expected only the old entry removed")
	}

	if err := dc.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	files, _ := filepath.Glob(filepath.Join(dir, "*.pcm"))
	if len(files) != 0 || dc.Size() != 0 {
		t.Errorf("Expected no files after Clear, got %v", files)
	}
	if _, err := os.Stat(filepath.Join(dir, indexFile)); err != nil {
		t.Errorf("Expected index saved on Clear: %v", err)
	}
}

func TestDiskCache_ReopenWithoutClose(t *testing.T) {
	dir := t.TempDir()
	const capacity = 4096

	for run := 0; run < 3; run++ {
		dc, err := NewDiskCache(dir, capacity, 0)
		if err != nil {
			t.Fatalf("run %d: NewDiskCache failed: %v", run, err)
		}
		for i := 0; i < 3; i++ {
			key := fmt.Sprintf("run%d-%d", run, i)
			if err := dc.Put(key, entryOfSize(1000, byte(run*3+i))); err != nil {
				t.Fatalf("run %d: Put %s failed: %v", run, key, err)
			}
		}
		// the process exits without Close
	}

	files, _ := filepath.Glob(filepath.Join(dir, "*.pcm"))
	var onDisk int64
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			t.Fatalf("Stat failed: %v", err)
		}
		onDisk += info.Size()
	}
	if onDisk > capacity {
		t.Errorf("Expected at most %d bytes on disk, got %d in %d files", capacity, onDisk, len(files))
	}

	dc, err := NewDiskCache(dir, capacity, 0)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer dc.Close()

	if got := dc.Stats().ItemCount; got != int64(len(files)) {
		t.Errorf("Expected index to cover all %d files, got %d entries", len(files), got)
	}
	if dc.Size() != onDisk {
		t.Errorf("Expected indexed size %d, got %d", onDisk, dc.Size())
	}
	if _, err := dc.Get("run2-2"); err != nil {
		t.Errorf("Expected last entry to hit after reopen, got %v", err)
	}
}

func TestDiskCache_RemovesOrphanedFiles(t *testing.T) {
	dir := t.TempDir()
	orphan := filepath.Join(dir, "0123456789abcdef0123456789abcdef.pcm")
	if err := os.WriteFile(orphan, make([]byte, 512), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	unrelated := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(unrelated, []byte("keep"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	dc, err := NewDiskCache(dir, 1<<20, 0)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	defer dc.Close()

	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Errorf("Expected orphaned file removed, stat returned %v", err)
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Errorf("Expected unrelated file kept, got %v", err)
	}
	if dc.Size() != 0 {
		t.Errorf("Expected empty cache, got size %d", dc.Size())
	}
}
