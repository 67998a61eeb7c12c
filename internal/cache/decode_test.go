package cache

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"testing"
	"time"

	"github.com/dgnsrekt/easyaudiostream/internal/segment"
)

// wavBytes returns a short 16-bit mono sine tone encoded as WAV.
func wavBytes(t *testing.T, frequency float64) []byte {
	t.Helper()
	format := segment.DefaultFormat
	frames := format.FramesFor(50 * time.Millisecond)
	pcm := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		v := int16(math.Sin(2*math.Pi*frequency*float64(i)/float64(format.SampleRate)) * 12000)
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	seg, err := segment.New(pcm, format)
	if err != nil {
		t.Fatalf("segment.New failed: %v", err)
	}
	path, err := seg.WriteTempWAV(t.TempDir())
	if err != nil {
		t.Fatalf("WriteTempWAV failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	return data
}

func testConfig(dir string) Config {
	cfg := DefaultConfig()
	cfg.DiskPath = dir
	return cfg
}

func TestDecodeCache_HitSkipsDecoding(t *testing.T) {
	c, err := NewDecodeCache(testConfig(""), &segment.Decoder{})
	if err != nil {
		t.Fatalf("NewDecodeCache failed: %v", err)
	}
	defer c.Close()

	data := wavBytes(t, 440)
	first, err := c.Decode(context.Background(), data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	second, err := c.Decode(context.Background(), data)
	if err != nil {
		t.Fatalf("Cached decode failed: %v", err)
	}

	if first.Format() != second.Format() || first.Len() != second.Len() {
		t.Errorf("Cached segment differs: %v vs %v", first, second)
	}
	memory, disk := c.Stats()
	if memory.Hits != 1 || memory.Misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d/%d", memory.Hits, memory.Misses)
	}
	if disk != (Stats{}) {
		t.Errorf("Expected no disk stats without a disk tier, got %+v", disk)
	}
}

func TestDecodeCache_PromotesFromDisk(t *testing.T) {
	dir := t.TempDir()
	data := wavBytes(t, 220)

	first, err := NewDecodeCache(testConfig(dir), &segment.Decoder{})
	if err != nil {
		t.Fatalf("NewDecodeCache failed: %v", err)
	}
	want, err := first.Decode(context.Background(), data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// a fresh cache starts with an empty memory tier
	second, err := NewDecodeCache(testConfig(dir), &segment.Decoder{})
	if err != nil {
		t.Fatalf("NewDecodeCache failed: %v", err)
	}
	defer second.Close()

	got, err := second.Decode(context.Background(), data)
	if err != nil {
		t.Fatalf("Decode from disk failed: %v", err)
	}
	if got.Len() != want.Len() {
		t.Errorf("Expected %d bytes, got %d", want.Len(), got.Len())
	}

	memory, disk := second.Stats()
	if disk.Hits != 1 {
		t.Errorf("Expected a disk hit, got %+v", disk)
	}
	if memory.ItemCount != 1 {
		t.Errorf("Expected the entry promoted to memory, got %+v", memory)
	}
}

func TestDecodeCache_Errors(t *testing.T) {
	c, err := NewDecodeCache(testConfig(""), &segment.Decoder{})
	if err != nil {
		t.Fatalf("NewDecodeCache failed: %v", err)
	}
	defer c.Close()

	if _, err := c.Decode(context.Background(), nil); err != segment.ErrEmptyInput {
		t.Errorf("Expected ErrEmptyInput, got %v", err)
	}
	if _, err := c.Decode(context.Background(), []byte("not audio")); err == nil {
		t.Error("Expected an error for undecodable input")
	}
	if memory, _ := c.Stats(); memory.ItemCount != 0 {
		t.Error("Failed decodes must not be cached")
	}
}

func TestKey(t *testing.T) {
	if Key([]byte("a")) == Key([]byte("b")) {
		t.Error("Different inputs should have different keys")
	}
	if len(Key(nil)) != 64 {
		t.Errorf("Expected a hex SHA-256, got %q", Key(nil))
	}
}
