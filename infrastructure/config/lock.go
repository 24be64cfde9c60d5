package config

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

const lockFilename = ".lock"

// ErrAppDirLocked is returned when another process holds the app dir lock.
var ErrAppDirLocked = errors.New("app directory is in use by another process")

// LockAppDir takes an exclusive lock on the app directory, creating it when
// missing. The returned function releases the lock.
func (cfg *Config) LockAppDir() (unlock func(), err error) {
	err = os.MkdirAll(cfg.AppDir, 0700)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create app directory %s", cfg.AppDir)
	}

	lock := flock.New(filepath.Join(cfg.AppDir, lockFilename))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to lock %s", lock.Path())
	}
	if !locked {
		return nil, errors.Wrapf(ErrAppDirLocked, "%s", cfg.AppDir)
	}
	return func() {
		err := lock.Unlock()
		if err != nil {
			log.Warnf("Failed to unlock %s: %s", lock.Path(), err)
		}
	}, nil
}
