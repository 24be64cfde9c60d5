package ldb

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ConflictStrategy defines how to handle key collisions when fusing databases.
type ConflictStrategy int

const (
	// Overwrite means keys from later sources overwrite existing values in dest.
	Overwrite ConflictStrategy = iota
	// KeepExisting means existing keys in dest are preserved; conflicting source keys are skipped.
	KeepExisting
)

// String implements fmt.Stringer for ConflictStrategy for readable logs.
func (s ConflictStrategy) String() string {
	switch s {
	case Overwrite:
		return "Overwrite"
	case KeepExisting:
		return "KeepExisting"
	default:
		return fmt.Sprintf("ConflictStrategy(%d)", int(s))
	}
}

// FuseOptions controls the behavior of FuseLevelDB.
type FuseOptions struct {
	// CacheSizeMiB sets the cache sizing for opened DBs.
	CacheSizeMiB int
	// BatchSize controls how many KV pairs are written per batch.
	BatchSize int
	// MaxBatchBytes caps the total key and value bytes buffered in a batch before flushing.
	MaxBatchBytes int
	// Strategy controls how to resolve key collisions.
	Strategy ConflictStrategy
	// Prefix restricts the fuse to keys starting with it. Nil fuses every key.
	Prefix []byte
	// CompactAfter optionally compacts the destination DB after a successful fuse.
	CompactAfter bool
}

func (o *FuseOptions) setDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 1000
	}
	if o.MaxBatchBytes <= 0 {
		o.MaxBatchBytes = 4 * opt.MiB
	}
}

// FuseStats counts the keys handled by FuseLevelDB.
type FuseStats struct {
	Written int
	Skipped int
}

// FuseLevelDB merges one or more source LevelDB databases into a destination
// LevelDB database, creating it if needed. Later sources take precedence
// under Overwrite.
func FuseLevelDB(destPath string, sourcePaths []string, opts FuseOptions) (*FuseStats, error) {
	opts.setDefaults()

	if len(sourcePaths) == 0 {
		return nil, errors.New("no source paths provided")
	}

	absDest, err := filepath.Abs(destPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	dest, err := NewLevelDB(destPath, opts.CacheSizeMiB)
	if err != nil {
		return nil, errors.Wrap(err, "open destination leveldb")
	}
	defer func() { _ = dest.Close() }()

	stats := &FuseStats{}
	started := time.Now()
	for i, srcPath := range sourcePaths {
		absSrc, err := filepath.Abs(srcPath)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if absSrc == absDest {
			return nil, errors.Errorf("source path #%d equals destination: %s", i, srcPath)
		}

		log.Infof("Fusing source %d/%d from '%s' into '%s' (strategy=%s, batch=%d)",
			i+1, len(sourcePaths), srcPath, destPath, opts.Strategy, opts.BatchSize)
		written, skipped, err := fuseSource(dest, srcPath, &opts)
		if err != nil {
			return nil, err
		}
		stats.Written += written
		stats.Skipped += skipped
		log.Infof("Finished fusing source %d/%d ('%s'): %d keys written, %d skipped",
			i+1, len(sourcePaths), srcPath, written, skipped)
	}

	if opts.CompactAfter {
		log.Infof("Compacting destination database '%s'...", destPath)
		if err := dest.Compact(); err != nil {
			return nil, errors.Wrap(err, "compact destination")
		}
	}

	log.Infof("Fuse complete: wrote a total of %d keys in %s into '%s'",
		stats.Written, time.Since(started).Truncate(time.Millisecond), destPath)
	return stats, nil
}

func fuseSource(dest *LevelDB, srcPath string, opts *FuseOptions) (written int, skipped int, err error) {
	src, err := NewLevelDB(srcPath, opts.CacheSizeMiB)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "open source leveldb %s", srcPath)
	}
	defer func() { _ = src.Close() }()

	var keyRange *util.Range
	if opts.Prefix != nil {
		keyRange = util.BytesPrefix(opts.Prefix)
	}
	// Sequential copies should not evict useful blocks from the cache.
	readOptions := &opt.ReadOptions{DontFillCache: true}
	iter := src.ldb.NewIterator(keyRange, readOptions)
	defer iter.Release()

	batch := new(leveldb.Batch)
	batchBytes := 0
	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		err := dest.ldb.Write(batch, &opt.WriteOptions{Sync: true})
		batch.Reset()
		batchBytes = 0
		return errors.WithStack(err)
	}

	for iter.Next() {
		// Iterator buffers are only valid until the next movement.
		key := append([]byte(nil), iter.Key()...)
		value := append([]byte(nil), iter.Value()...)

		if opts.Strategy == KeepExisting {
			exists, err := dest.ldb.Has(key, readOptions)
			if err != nil {
				return 0, 0, errors.WithStack(err)
			}
			if exists {
				skipped++
				continue
			}
		}

		batch.Put(key, value)
		batchBytes += len(key) + len(value)
		written++
		if batch.Len() >= opts.BatchSize || batchBytes >= opts.MaxBatchBytes {
			if err := flush(); err != nil {
				return 0, 0, err
			}
		}
	}
	if err := iter.Error(); err != nil {
		return 0, 0, errors.Wrapf(err, "iterator error while reading %s", srcPath)
	}
	if err := flush(); err != nil {
		return 0, 0, err
	}
	return written, skipped, nil
}
