package pebble

import (
	"context"
	"os"
	"sync"

	"github.com/Hoosat-Oy/htnupow/infrastructure/db/database"
	"github.com/cockroachdb/pebble/v2"
	"github.com/pkg/errors"
)

// PebbleDB defines a thin wrapper around Pebble.
type PebbleDB struct {
	db      *pebble.DB
	cursors []*PebbleDBCursor
	mu      sync.Mutex
}

// NewPebbleDB opens a Pebble instance defined by the given path.
// A store that Pebble reports as corrupted is moved aside and recreated.
func NewPebbleDB(path string, cacheSizeMiB int) (*PebbleDB, error) {
	options := Options(cacheSizeMiB)
	defer options.Cache.Unref()

	db, err := pebble.Open(path, options)
	if err != nil {
		if !errors.Is(err, pebble.ErrCorruption) {
			return nil, errors.WithStack(err)
		}
		corruptedPath := path + ".corrupted"
		log.Warnf("Pebble corruption detected at %s, moving it to %s: %s", path, corruptedPath, err)
		if rmErr := os.RemoveAll(corruptedPath); rmErr != nil {
			return nil, errors.Wrap(rmErr, "failed to remove a previous corrupted DB")
		}
		if mvErr := os.Rename(path, corruptedPath); mvErr != nil {
			return nil, errors.Wrap(mvErr, "failed to move the corrupted DB aside")
		}
		db, err = pebble.Open(path, options)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create fresh DB after corruption")
		}
		log.Warnf("Created fresh Pebble DB at %s", path)
	}

	return &PebbleDB{db: db}, nil
}

// Compact compacts the Pebble instance (full range).
func (db *PebbleDB) Compact() error {
	err := db.db.Compact(context.Background(), nil, []byte{0xff, 0xff, 0xff, 0xff}, false)
	return errors.WithStack(err)
}

// Close closes the Pebble instance and all cursors still open on it.
func (db *PebbleDB) Close() error {
	db.mu.Lock()
	cursors := db.cursors
	db.cursors = nil
	db.mu.Unlock()

	for _, cursor := range cursors {
		if err := cursor.close(false); err != nil {
			log.Warnf("Failed to close cursor: %s", err)
		}
	}
	return errors.WithStack(db.db.Close())
}

// Put sets the value for the given key. It overwrites any previous value for that key.
func (db *PebbleDB) Put(key *database.Key, value []byte) error {
	err := db.db.Set(key.Bytes(), value, pebble.Sync)
	return errors.WithStack(err)
}

// Get gets the value for the given key. It returns ErrNotFound if the given key does not exist.
func (db *PebbleDB) Get(key *database.Key) ([]byte, error) {
	data, closer, err := db.db.Get(key.Bytes())
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, errors.Wrapf(database.ErrNotFound, "key %s not found", key)
		}
		return nil, errors.WithStack(err)
	}
	valueCopy := append([]byte(nil), data...)
	if closeErr := closer.Close(); closeErr != nil {
		return nil, errors.WithStack(closeErr)
	}
	return valueCopy, nil
}

// Has returns true if the database contains the given key.
func (db *PebbleDB) Has(key *database.Key) (bool, error) {
	_, closer, err := db.db.Get(key.Bytes())
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, errors.WithStack(err)
	}
	return true, errors.WithStack(closer.Close())
}

// Delete deletes the value for the given key. Will not return an error if the key doesn't exist.
func (db *PebbleDB) Delete(key *database.Key) error {
	err := db.db.Delete(key.Bytes(), pebble.Sync)
	return errors.WithStack(err)
}

func (db *PebbleDB) registerCursor(cursor *PebbleDBCursor) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.cursors = append(db.cursors, cursor)
}

func (db *PebbleDB) deregisterCursor(cursor *PebbleDBCursor) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i, c := range db.cursors {
		if c == cursor {
			db.cursors = append(db.cursors[:i], db.cursors[i+1:]...)
			break
		}
	}
}
