package solutionstore

import (
	"encoding/json"
	"sort"

	"github.com/Hoosat-Oy/htnupow/domain/upow/difficulty"
	"github.com/Hoosat-Oy/htnupow/infrastructure/db/database"
	"github.com/pkg/errors"
)

var bucket = database.MakeBucket([]byte("solutions"))

// Bucket returns the database bucket holding the journal.
func Bucket() *database.Bucket {
	return bucket
}

// Store is a journal of found solutions keyed by their hash.
type Store struct {
	db database.Database
}

// New returns a store over db.
func New(db database.Database) *Store {
	return &Store{db: db}
}

func key(hash difficulty.Hash) *database.Key {
	return bucket.Key(hash[:])
}

// Put writes entry, replacing any entry for the same solution.
func (s *Store) Put(entry *Entry) error {
	hash, err := entry.Hash()
	if err != nil {
		return err
	}
	serialized, err := json.Marshal(entry)
	if err != nil {
		return errors.WithStack(err)
	}
	err = s.db.Put(key(hash), serialized)
	if err != nil {
		return err
	}
	log.Debugf("Journaled solution %s for nonce %s as %s", hash, entry.Nonce, entry.Status)
	return nil
}

// Get returns the entry for hash, or an error wrapping database.ErrNotFound.
func (s *Store) Get(hash difficulty.Hash) (*Entry, error) {
	serialized, err := s.db.Get(key(hash))
	if err != nil {
		return nil, err
	}
	return deserializeEntry(serialized)
}

func deserializeEntry(serialized []byte) (*Entry, error) {
	entry := &Entry{}
	err := json.Unmarshal(serialized, entry)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode journal entry")
	}
	return entry, nil
}

// All returns every entry ordered by the time it was found.
func (s *Store) All() ([]*Entry, error) {
	return s.collect(func(*Entry) bool { return true })
}

// Pending returns the entries whose submission outcome is unknown, oldest
// first.
func (s *Store) Pending() ([]*Entry, error) {
	return s.collect(func(entry *Entry) bool { return entry.Status == StatusPending })
}

func (s *Store) collect(filter func(*Entry) bool) ([]*Entry, error) {
	cursor, err := s.db.Cursor(bucket)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var entries []*Entry
	for cursor.Next() {
		serialized, err := cursor.Value()
		if err != nil {
			return nil, err
		}
		entry, err := deserializeEntry(serialized)
		if err != nil {
			k, _ := cursor.Key()
			log.Warnf("Skipping unreadable journal entry %s: %s", k, err)
			continue
		}
		if filter(entry) {
			entries = append(entries, entry)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].FoundAt.Before(entries[j].FoundAt)
	})
	return entries, nil
}

// MarkSubmitted records the submission outcome of the entry for hash.
func (s *Store) MarkSubmitted(hash difficulty.Hash, outcome Outcome) error {
	entry, err := s.Get(hash)
	if err != nil {
		return err
	}
	entry.Valid = outcome.Valid
	entry.ValidMath = outcome.ValidMath
	entry.Status = StatusRejected
	if outcome.Valid {
		entry.Status = StatusAccepted
	}
	return s.Put(entry)
}

// CopyStats counts the entries handled by CopyTo.
type CopyStats struct {
	Copied  int
	Skipped int
}

// CopyTo copies every entry into dest in one transaction. Entries already in
// dest are kept unless overwrite is set.
func (s *Store) CopyTo(dest *Store, overwrite bool) (*CopyStats, error) {
	cursor, err := s.db.Cursor(bucket)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	tx, err := dest.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.RollbackUnlessClosed()

	stats := &CopyStats{}
	for cursor.Next() {
		key, err := cursor.Key()
		if err != nil {
			return nil, err
		}
		if !overwrite {
			exists, err := tx.Has(key)
			if err != nil {
				return nil, err
			}
			if exists {
				stats.Skipped++
				continue
			}
		}
		value, err := cursor.Value()
		if err != nil {
			return nil, err
		}
		err = tx.Put(key, value)
		if err != nil {
			return nil, err
		}
		stats.Copied++
	}

	err = tx.Commit()
	if err != nil {
		return nil, err
	}
	log.Infof("Copied %d journal entries, skipped %d", stats.Copied, stats.Skipped)
	return stats, nil
}
