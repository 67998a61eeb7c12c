package cache

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/easyaudiostream/internal/segment"
)

// DecodeCache decodes encoded audio through the two cache tiers, keyed by
// the SHA-256 of the input bytes.
type DecodeCache struct {
	decoder *segment.Decoder
	memory  *MemoryCache
	disk    *DiskCache // nil without a disk tier
}

// NewDecodeCache builds the tiers from cfg. A nil decoder uses
// segment.DefaultDecoder.
func NewDecodeCache(cfg Config, decoder *segment.Decoder) (*DecodeCache, error) {
	if decoder == nil {
		decoder = segment.DefaultDecoder
	}
	c := &DecodeCache{
		decoder: decoder,
		memory:  NewMemoryCache(cfg.MemoryCapacity, cfg.MemoryTTL),
	}

	if cfg.DiskPath != "" {
		disk, err := NewDiskCache(cfg.DiskPath, cfg.DiskCapacity, cfg.CompressionLevel)
		if err != nil {
			return nil, err
		}
		if cfg.TTL > 0 {
			if n := disk.RemoveOlderThan(time.Now().Add(-cfg.TTL)); n > 0 {
				log.Debug("Pruned expired cache entries", "count", n)
			}
		}
		c.disk = disk
	}
	return c, nil
}

// Decode returns the decoded segment for data, decoding only on a miss.
func (c *DecodeCache) Decode(ctx context.Context, data []byte) (*segment.Segment, error) {
	if len(data) == 0 {
		return nil, segment.ErrEmptyInput
	}
	key := Key(data)

	if seg, level, ok := c.lookup(key); ok {
		log.Debug("Decode cache hit", "level", level, "key", key[:12])
		return seg, nil
	}

	seg, err := c.decoder.Decode(ctx, data)
	if err != nil {
		return nil, err
	}
	c.store(key, seg)
	return seg, nil
}

func (c *DecodeCache) lookup(key string) (*segment.Segment, CacheLevel, bool) {
	if e, err := c.memory.Get(key); err == nil {
		if seg, err := e.Segment(); err == nil {
			return seg, CacheLevelL1, true
		}
		c.memory.Delete(key)
	}

	if c.disk == nil {
		return nil, CacheLevelL2, false
	}
	e, err := c.disk.Get(key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			log.Debug("Disk cache lookup failed", "key", key[:12], "error", err)
		}
		return nil, CacheLevelL2, false
	}
	seg, err := e.Segment()
	if err != nil {
		c.disk.Delete(key)
		return nil, CacheLevelL2, false
	}
	// promote
	_ = c.memory.Put(key, e)
	return seg, CacheLevelL2, true
}

func (c *DecodeCache) store(key string, seg *segment.Segment) {
	e := EntryOf(seg)
	if err := c.memory.Put(key, e); err != nil && !errors.Is(err, ErrItemTooLarge) {
		log.Debug("Failed to cache decoded audio", "level", CacheLevelL1, "error", err)
	}
	if c.disk != nil {
		if err := c.disk.Put(key, e); err != nil {
			log.Debug("Failed to cache decoded audio", "level", CacheLevelL2, "error", err)
		}
	}
}

// Stats returns the statistics of each tier. The disk stats are zero
// without a disk tier.
func (c *DecodeCache) Stats() (memory, disk Stats) {
	memory = c.memory.Stats()
	if c.disk != nil {
		disk = c.disk.Stats()
	}
	return memory, disk
}

// Clear empties both tiers.
func (c *DecodeCache) Clear() error {
	c.memory.Clear()
	if c.disk != nil {
		return c.disk.Clear()
	}
	return nil
}

// Close persists the disk index.
func (c *DecodeCache) Close() error {
	if c.disk != nil {
		return c.disk.Close()
	}
	return nil
}
