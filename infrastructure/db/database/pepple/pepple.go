package pepple

import (
	"github.com/Hoosat-Oy/htnupow/infrastructure/db/database"
	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

// PeppleDB wraps a Pebble v1 store. Journals written by miners built on
// Pebble v1 use on-disk format versions that Pebble v2 refuses to open, so
// they are read, and if needed migrated, through this backend.
type PeppleDB struct {
	db *pebble.DB
}

// NewPeppleDB opens a Pebble v1 instance defined by the given path.
func NewPeppleDB(path string, cacheSizeMiB int) (*PeppleDB, error) {
	options := Options(cacheSizeMiB)
	defer options.Cache.Unref()

	db, err := pebble.Open(path, options)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open pebble v1 store at %s", path)
	}
	return &PeppleDB{db: db}, nil
}

// Compact compacts the Pebble instance.
func (db *PeppleDB) Compact() error {
	err := db.db.Compact(nil, []byte{0xff, 0xff, 0xff, 0xff}, false)
	return errors.WithStack(err)
}

// Close closes the Pebble instance.
func (db *PeppleDB) Close() error {
	return errors.WithStack(db.db.Close())
}

// Put sets the value for the given key. It overwrites any previous value for that key.
func (db *PeppleDB) Put(key *database.Key, value []byte) error {
	return errors.WithStack(db.db.Set(key.Bytes(), value, pebble.Sync))
}

// Get gets the value for the given key. It returns ErrNotFound if the given key does not exist.
func (db *PeppleDB) Get(key *database.Key) ([]byte, error) {
	data, closer, err := db.db.Get(key.Bytes())
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, errors.Wrapf(database.ErrNotFound, "key %s not found", key)
		}
		return nil, errors.WithStack(err)
	}
	defer closer.Close()
	return append([]byte(nil), data...), nil
}

// Has returns true if the database contains the given key.
func (db *PeppleDB) Has(key *database.Key) (bool, error) {
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
func (db *PeppleDB) Delete(key *database.Key) error {
	return errors.WithStack(db.db.Delete(key.Bytes(), pebble.Sync))
}
