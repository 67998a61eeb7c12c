package cache

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/easyaudiostream/internal/segment"
	"github.com/klauspost/compress/zstd"
)

const indexFile = "cache.index"

// DiskCache is the L2 tier: one file per entry, optionally zstd-compressed,
// with a gob index rewritten whenever the set of entries changes.
type DiskCache struct {
	basePath string
	capacity int64 // Maximum size in bytes
	size     int64 // Current size on disk

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry

	mu    sync.Mutex
	stats Stats
}

// diskEntry represents an entry in the disk cache index
type diskEntry struct {
	Key          string
	FileName     string
	Format       segment.Format
	Size         int64 // Size on disk
	OriginalSize int64
	Timestamp    time.Time
	LastAccess   time.Time
	Hits         int64
	Compressed   bool
}

// NewDiskCache opens or creates a disk cache under basePath.
// compressionLevel 0 stores raw PCM.
func NewDiskCache(basePath string, capacity int64, compressionLevel int) (*DiskCache, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dc := &DiskCache{
		basePath: basePath,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
		stats:    Stats{Capacity: capacity},
	}

	if compressionLevel > 0 {
		var err error
		dc.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	// entries written compressed earlier stay readable after a level change
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	dc.decoder = decoder

	if err := dc.loadIndex(); err != nil {
		log.Warn("Ignoring unreadable cache index", "path", basePath, "error", err)
		dc.index = make(map[string]*diskEntry)
	}
	dc.reconcile()

	return dc, nil
}

// reconcile drops index entries whose file is gone and removes files no
// index entry refers to, such as those left by a process that never
// saved its index.
func (dc *DiskCache) reconcile() {
	known := make(map[string]bool, len(dc.index))
	dropped := 0
	for key, e := range dc.index {
		if _, err := os.Stat(filepath.Join(dc.basePath, e.FileName)); err != nil {
			delete(dc.index, key)
			dropped++
			continue
		}
		known[e.FileName] = true
		dc.size += e.Size
	}

	files, err := os.ReadDir(dc.basePath)
	if err != nil {
		log.Warn("Could not scan cache directory", "path", dc.basePath, "error", err)
		return
	}
	removed := 0
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || known[name] || name == indexFile {
			continue
		}
		if filepath.Ext(name) != ".pcm" && filepath.Ext(name) != ".tmp" {
			continue
		}
		if err := os.Remove(filepath.Join(dc.basePath, name)); err == nil {
			removed++
		}
	}
	if removed > 0 {
		log.Debug("Removed orphaned cache files", "count", removed)
	}
	if dropped > 0 {
		dc.persist()
	}
}

// Get retrieves an entry from disk. It returns ErrCacheMiss when key is
// not indexed or its file can no longer be read.
func (dc *DiskCache) Get(key string) (Entry, error) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	dc.stats.LastAccess = time.Now()
	e, ok := dc.index[key]
	if !ok {
		dc.stats.Misses++
		return Entry{}, ErrCacheMiss
	}

	data, err := dc.read(e)
	if err != nil {
		log.Debug("Dropping unreadable cache entry", "key", key, "error", err)
		dc.remove(key)
		dc.persist()
		dc.stats.Misses++
		return Entry{}, fmt.Errorf("%w: %v", ErrCacheMiss, err)
	}

	e.LastAccess = time.Now()
	e.Hits++
	dc.stats.Hits++
	return Entry{Format: e.Format, Data: data}, nil
}

func (dc *DiskCache) read(e *diskEntry) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dc.basePath, e.FileName))
	if err != nil {
		return nil, err
	}
	if e.Compressed {
		if data, err = dc.decoder.DecodeAll(data, nil); err != nil {
			return nil, err
		}
	}
	if int64(len(data)) != e.OriginalSize {
		return nil, fmt.Errorf("size mismatch: %d != %d", len(data), e.OriginalSize)
	}
	return data, nil
}

// Put stores an entry, evicting the least recently used ones when needed.
func (dc *DiskCache) Put(key string, entry Entry) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	payload, compressed := entry.Data, false
	// only keep compression that pays off
	if dc.encoder != nil && len(entry.Data) > 1024 {
		if packed := dc.encoder.EncodeAll(entry.Data, nil); len(packed) < len(entry.Data) {
			payload, compressed = packed, true
		}
	}

	diskSize := int64(len(payload))
	if diskSize > dc.capacity {
		return ErrItemTooLarge
	}

	dc.remove(key)
	for dc.size+diskSize > dc.capacity && len(dc.index) > 0 {
		dc.evictOldest()
	}

	fileName := Key([]byte(key))[:32] + ".pcm"
	if err := writeFileAtomic(filepath.Join(dc.basePath, fileName), payload); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	dc.index[key] = &diskEntry{
		Key:          key,
		FileName:     fileName,
		Format:       entry.Format,
		Size:         diskSize,
		OriginalSize: int64(len(entry.Data)),
		Timestamp:    now,
		LastAccess:   now,
		Compressed:   compressed,
	}
	dc.size += diskSize
	if err := dc.saveIndex(); err != nil {
		return fmt.Errorf("failed to save cache index: %w", err)
	}
	return nil
}

// Delete removes an entry.
func (dc *DiskCache) Delete(key string) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if _, ok := dc.index[key]; ok {
		dc.remove(key)
		dc.persist()
	}
}

// Clear removes every entry and persists the empty index.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	for key := range dc.index {
		dc.remove(key)
	}
	return dc.saveIndex()
}

// RemoveOlderThan drops entries cached before cutoff and returns how many.
func (dc *DiskCache) RemoveOlderThan(cutoff time.Time) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	removed := 0
	for key, e := range dc.index {
		if e.Timestamp.Before(cutoff) {
			dc.remove(key)
			removed++
		}
	}
	if removed > 0 {
		dc.persist()
	}
	return removed
}

// LRUKeys returns up to n keys, least recently used first.
func (dc *DiskCache) LRUKeys(n int) []string {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entries := make([]*diskEntry, 0, len(dc.index))
	for _, e := range dc.index {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccess.Before(entries[j].LastAccess)
	})

	keys := make([]string, 0, n)
	for i := 0; i < n && i < len(entries); i++ {
		keys = append(keys, entries[i].Key)
	}
	return keys
}

// Contains reports whether key is indexed.
func (dc *DiskCache) Contains(key string) bool {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	_, ok := dc.index[key]
	return ok
}

// Size returns the bytes used on disk.
func (dc *DiskCache) Size() int64 {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.size
}

// Stats returns cache statistics.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	stats := dc.stats
	stats.Size = dc.size
	stats.ItemCount = int64(len(dc.index))
	stats.updateHitRate()
	return stats
}

// Close persists the index.
func (dc *DiskCache) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.encoder != nil {
		_ = dc.encoder.Close()
	}
	dc.decoder.Close()
	return dc.saveIndex()
}

func (dc *DiskCache) remove(key string) {
	e, ok := dc.index[key]
	if !ok {
		return
	}
	_ = os.Remove(filepath.Join(dc.basePath, e.FileName))
	dc.size -= e.Size
	delete(dc.index, key)
}

// persist saves the index, logging a failure. Callers hold dc.mu.
func (dc *DiskCache) persist() {
	if err := dc.saveIndex(); err != nil {
		log.Warn("Failed to save cache index", "path", dc.basePath, "error", err)
	}
}

func (dc *DiskCache) evictOldest() {
	var oldest *diskEntry
	for _, e := range dc.index {
		if oldest == nil || e.LastAccess.Before(oldest.LastAccess) {
			oldest = e
		}
	}
	if oldest == nil {
		return
	}
	dc.remove(oldest.Key)
	dc.stats.Evictions++
	dc.stats.LastEvict = time.Now()
}

func (dc *DiskCache) loadIndex() error {
	file, err := os.Open(filepath.Join(dc.basePath, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	return gob.NewDecoder(file).Decode(&dc.index)
}

func (dc *DiskCache) saveIndex() error {
	path := filepath.Join(dc.basePath, indexFile)
	tempPath := path + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}
	err = gob.NewEncoder(file).Encode(dc.index)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tempPath)
		return err
	}
	return os.Rename(tempPath, path)
}

// writeFileAtomic writes to a temp file and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		_ = os.Remove(tempPath)
		return err
	}
	return os.Rename(tempPath, path)
}
