package ldb

import "github.com/syndtr/goleveldb/leveldb/opt"

const defaultCacheSizeMiB = 8

// Options is a function that returns a leveldb
// opt.Options struct for opening a database.
func Options(cacheSizeMiB int) *opt.Options {
	if cacheSizeMiB <= 0 {
		cacheSizeMiB = defaultCacheSizeMiB
	}
	return &opt.Options{
		Compression:            opt.NoCompression,
		WriteBuffer:            cacheSizeMiB * opt.MiB / 2,
		BlockCacheCapacity:     cacheSizeMiB * opt.MiB,
		OpenFilesCacheCapacity: 64,
		BlockRestartInterval:   32,
	}
}
