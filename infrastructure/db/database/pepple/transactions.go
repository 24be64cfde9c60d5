package pepple

import (
	"github.com/Hoosat-Oy/htnupow/infrastructure/db/database"
	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

// PeppleDBTransaction is a thin wrapper around Pebble batches.
// Reads go to the database directly, so data put into the transaction is
// not visible to it before Commit.
type PeppleDBTransaction struct {
	db       *PeppleDB
	batch    *pebble.Batch
	isClosed bool
}

// Begin begins a new transaction.
func (db *PeppleDB) Begin() (database.Transaction, error) {
	return &PeppleDBTransaction{
		db:    db,
		batch: db.db.NewBatch(),
	}, nil
}

// Commit commits whatever changes were made to the database within this transaction.
func (tx *PeppleDBTransaction) Commit() error {
	if tx.isClosed {
		return errors.New("cannot commit a closed transaction")
	}
	tx.isClosed = true
	return errors.WithStack(tx.batch.Commit(pebble.Sync))
}

// Rollback rolls back whatever changes were made to the database within this transaction.
func (tx *PeppleDBTransaction) Rollback() error {
	if tx.isClosed {
		return errors.New("cannot rollback a closed transaction")
	}
	tx.isClosed = true
	return errors.WithStack(tx.batch.Close())
}

// RollbackUnlessClosed rolls back changes that were made to the database within the transaction,
// unless the transaction had already been closed using either Rollback or Commit.
func (tx *PeppleDBTransaction) RollbackUnlessClosed() error {
	if tx.isClosed {
		return nil
	}
	return tx.Rollback()
}

// Put sets the value for the given key. It overwrites any previous value for that key.
func (tx *PeppleDBTransaction) Put(key *database.Key, value []byte) error {
	if tx.isClosed {
		return errors.New("cannot put into a closed transaction")
	}
	return errors.WithStack(tx.batch.Set(key.Bytes(), value, nil))
}

// Get gets the value for the given key. It returns ErrNotFound if the given key does not exist.
func (tx *PeppleDBTransaction) Get(key *database.Key) ([]byte, error) {
	if tx.isClosed {
		return nil, errors.New("cannot get from a closed transaction")
	}
	return tx.db.Get(key)
}

// Has returns true if the database contains the given key.
func (tx *PeppleDBTransaction) Has(key *database.Key) (bool, error) {
	if tx.isClosed {
		return false, errors.New("cannot has from a closed transaction")
	}
	return tx.db.Has(key)
}

// Delete deletes the value for the given key. Will not return an error if the key doesn't exist.
func (tx *PeppleDBTransaction) Delete(key *database.Key) error {
	if tx.isClosed {
		return errors.New("cannot delete from a closed transaction")
	}
	return errors.WithStack(tx.batch.Delete(key.Bytes(), nil))
}

// Cursor begins a new cursor over the given bucket.
func (tx *PeppleDBTransaction) Cursor(bucket *database.Bucket) (database.Cursor, error) {
	if tx.isClosed {
		return nil, errors.New("cannot open a cursor from a closed transaction")
	}
	return tx.db.Cursor(bucket)
}
