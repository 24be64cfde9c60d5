package pebble

import (
	"github.com/cockroachdb/pebble/v2"
)

const (
	defaultCacheSizeMiB = 8
	memTableSize        = 4 * 1024 * 1024
)

// Options returns a pebble.Options struct sized for a solution journal: a
// few writes per found solution and small prefix scans on startup.
func Options(cacheSizeMiB int) *pebble.Options {
	if cacheSizeMiB <= 0 {
		cacheSizeMiB = defaultCacheSizeMiB
	}
	opts := &pebble.Options{
		Cache:                       pebble.NewCache(int64(cacheSizeMiB) * 1024 * 1024),
		MemTableSize:                memTableSize,
		MemTableStopWritesThreshold: 2,
		L0CompactionThreshold:       4,
		L0StopWritesThreshold:       16,
	}
	opts.EnsureDefaults()
	return opts
}
