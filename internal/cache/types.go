package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/dgnsrekt/easyaudiostream/internal/segment"
)

// Common errors for cache operations
var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheMiss is returned when an item is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)

// CacheLevel represents the cache tier
type CacheLevel int

const (
	// CacheLevelL1 represents the memory cache (fastest)
	CacheLevelL1 CacheLevel = iota

	// CacheLevelL2 represents the disk cache (persistent)
	CacheLevelL2
)

// String returns the string representation of the cache level
func (l CacheLevel) String() string {
	switch l {
	case CacheLevelL1:
		return "L1-Memory"
	case CacheLevelL2:
		return "L2-Disk"
	default:
		return "Unknown"
	}
}

// Entry is a decoded segment as stored in the cache.
type Entry struct {
	Format segment.Format
	Data   []byte
}

// EntryOf captures seg for storage.
func EntryOf(seg *segment.Segment) Entry {
	return Entry{Format: seg.Format(), Data: seg.Data()}
}

// Segment rebuilds the cached segment.
func (e Entry) Segment() (*segment.Segment, error) {
	return segment.New(e.Data, e.Format)
}

// Stats holds cache performance metrics
type Stats struct {
	Capacity  int64 // Maximum capacity in bytes
	Size      int64 // Current size in bytes
	ItemCount int64

	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64 // hits / (hits + misses)

	LastAccess time.Time
	LastEvict  time.Time
}

func (s *Stats) updateHitRate() {
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
}

// Config holds configuration for the decode cache
type Config struct {
	// Memory cache (L1)
	MemoryCapacity int64 // Bytes
	MemoryTTL      time.Duration

	// Disk cache (L2); disabled when DiskPath is empty
	DiskPath         string
	DiskCapacity     int64 // Bytes
	CompressionLevel int   // Zstd level, 0 disables compression
	TTL              time.Duration
}

// DefaultConfig returns default cache configuration without a disk tier.
func DefaultConfig() Config {
	return Config{
		MemoryCapacity:   64 * 1024 * 1024, // 64MB
		MemoryTTL:        30 * time.Minute,
		DiskCapacity:     512 * 1024 * 1024, // 512MB
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
	}
}

// Key returns the cache key for encoded input.
func Key(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
