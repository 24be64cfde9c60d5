// Package backends opens a database.Database by backend name.
package backends

import (
	"strings"

	"github.com/Hoosat-Oy/htnupow/infrastructure/db/database"
	"github.com/Hoosat-Oy/htnupow/infrastructure/db/database/ldb"
	"github.com/Hoosat-Oy/htnupow/infrastructure/db/database/pebble"
	"github.com/Hoosat-Oy/htnupow/infrastructure/db/database/pepple"
	"github.com/pkg/errors"
)

// Backend names.
const (
	Pebble   = "pebble"
	PebbleV1 = "pebble-v1"
	LevelDB  = "leveldb"
)

// Names returns every supported backend name.
func Names() []string {
	return []string{Pebble, PebbleV1, LevelDB}
}

// IsSupported reports whether name is a supported backend.
func IsSupported(name string) bool {
	for _, supported := range Names() {
		if name == supported {
			return true
		}
	}
	return false
}

// Open opens the database at path with the named backend.
func Open(name string, path string, cacheSizeMiB int) (database.Database, error) {
	switch name {
	case Pebble:
		db, err := pebble.NewPebbleDB(path, cacheSizeMiB)
		if err != nil {
			return nil, err
		}
		return db, nil
	case PebbleV1:
		db, err := pepple.NewPeppleDB(path, cacheSizeMiB)
		if err != nil {
			return nil, err
		}
		return db, nil
	case LevelDB:
		db, err := ldb.NewLevelDB(path, cacheSizeMiB)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, errors.Errorf("unknown database type %q, expected one of %s", name, strings.Join(Names(), ", "))
	}
}
