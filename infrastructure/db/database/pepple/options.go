package pepple

import (
	"github.com/cockroachdb/pebble"
)

const defaultCacheSizeMiB = 8

// Options returns the pebble.Options used to open v1-format journals.
func Options(cacheSizeMiB int) *pebble.Options {
	if cacheSizeMiB <= 0 {
		cacheSizeMiB = defaultCacheSizeMiB
	}
	opts := &pebble.Options{
		Cache:        pebble.NewCache(int64(cacheSizeMiB) * 1024 * 1024),
		MemTableSize: 4 * 1024 * 1024,
	}
	opts.EnsureDefaults()
	return opts
}
