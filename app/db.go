package app

import (
	"github.com/Hoosat-Oy/htnupow/infrastructure/config"
	"github.com/Hoosat-Oy/htnupow/infrastructure/db/database"
	"github.com/Hoosat-Oy/htnupow/infrastructure/db/database/backends"
)

// openDB opens the solution journal with the configured backend.
func openDB(cfg *config.Config) (database.Database, error) {
	path := cfg.JournalDir()
	log.Infof("Opening %s solution journal at %s", cfg.DBType, path)
	return backends.Open(cfg.DBType, path, cfg.DBCacheMiB)
}
