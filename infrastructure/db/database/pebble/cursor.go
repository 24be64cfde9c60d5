package pebble

import (
	"bytes"

	"github.com/Hoosat-Oy/htnupow/infrastructure/db/database"
	"github.com/cockroachdb/pebble/v2"
	"github.com/pkg/errors"
)

// PebbleDBCursor iterates over the keys of a single bucket.
type PebbleDBCursor struct {
	db       *PebbleDB
	iterator *pebble.Iterator
	bucket   *database.Bucket

	started  bool
	isClosed bool
}

// bucketRange bounds an iterator to the keys starting with prefix. A prefix
// made only of 0xff bytes has no upper bound.
func bucketRange(prefix []byte) *pebble.IterOptions {
	options := &pebble.IterOptions{LowerBound: prefix}
	end := bytes.TrimRight(prefix, "\xff")
	if len(end) > 0 {
		upper := append([]byte(nil), end...)
		upper[len(upper)-1]++
		options.UpperBound = upper
	}
	return options
}

// Cursor opens a cursor over every key in bucket.
func (db *PebbleDB) Cursor(bucket *database.Bucket) (database.Cursor, error) {
	iterator, err := db.db.NewIter(bucketRange(bucket.Path()))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open a cursor over bucket %x", bucket.Path())
	}
	cursor := &PebbleDBCursor{db: db, iterator: iterator, bucket: bucket}
	db.registerCursor(cursor)
	return cursor, nil
}

func (c *PebbleDBCursor) closedError(action string) error {
	return errors.Errorf("cannot %s a closed cursor", action)
}

// Next advances the cursor, starting at the first key on the first call.
// It panics if the cursor is closed.
func (c *PebbleDBCursor) Next() bool {
	if c.isClosed {
		panic(c.closedError("call next on"))
	}
	if c.started {
		return c.iterator.Next()
	}
	c.started = true
	return c.iterator.First()
}

// First rewinds the cursor to the first key. It panics if the cursor is closed.
func (c *PebbleDBCursor) First() bool {
	if c.isClosed {
		panic(c.closedError("call First on"))
	}
	c.started = true
	return c.iterator.First()
}

// Seek positions the cursor at the first key greater than or equal to key.
func (c *PebbleDBCursor) Seek(key *database.Key) error {
	if c.isClosed {
		return c.closedError("seek")
	}
	c.started = true
	if c.iterator.SeekGE(key.Bytes()) {
		return nil
	}
	return errors.Wrapf(database.ErrNotFound, "no key found for seek %s", key)
}

func (c *PebbleDBCursor) current(what string) error {
	if c.isClosed {
		return c.closedError("get the " + what + " of")
	}
	if !c.iterator.Valid() {
		return errors.Wrapf(database.ErrNotFound, "cannot get the %s of an exhausted cursor", what)
	}
	return nil
}

// Key returns the current key relative to the cursor's bucket.
func (c *PebbleDBCursor) Key() (*database.Key, error) {
	err := c.current("key")
	if err != nil {
		return nil, err
	}
	suffix := bytes.TrimPrefix(c.iterator.Key(), c.bucket.Path())
	return c.bucket.Key(append([]byte(nil), suffix...)), nil
}

// Value returns the current value. It is only valid until the cursor moves.
func (c *PebbleDBCursor) Value() ([]byte, error) {
	err := c.current("value")
	if err != nil {
		return nil, err
	}
	return c.iterator.Value(), nil
}

// Close releases the underlying iterator.
func (c *PebbleDBCursor) Close() error {
	return c.close(true)
}

func (c *PebbleDBCursor) close(deregister bool) error {
	if c.isClosed {
		return errors.New("cannot close an already closed cursor")
	}
	c.isClosed = true
	if deregister {
		c.db.deregisterCursor(c)
	}
	err := c.iterator.Close()
	c.iterator = nil
	c.bucket = nil
	return errors.WithStack(err)
}
