package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Hoosat-Oy/htnupow/domain/solutionstore"
	"github.com/Hoosat-Oy/htnupow/infrastructure/db/database/backends"
	"github.com/Hoosat-Oy/htnupow/infrastructure/db/database/ldb"
	"github.com/pkg/errors"
)

func list(conf *listConfig, out io.Writer) error {
	db, err := backends.Open(conf.DBType, conf.Positional.Path, conf.CacheMiB)
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := solutionstore.New(db).All()
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(out)
	for _, entry := range entries {
		if conf.Status != "" && string(entry.Status) != conf.Status {
			continue
		}
		err := encoder.Encode(entry)
		if err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func parseStrategy(s string) (ldb.ConflictStrategy, error) {
	switch strings.ToLower(s) {
	case "overwrite", "over", "o":
		return ldb.Overwrite, nil
	case "keep", "keep-existing", "k":
		return ldb.KeepExisting, nil
	default:
		return 0, errors.Errorf("unknown strategy: %s", s)
	}
}

func fuse(conf *fuseConfig) error {
	strategy, err := parseStrategy(conf.Strategy)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Starting fuse into '%s' from %d source journal(s)...\n",
		conf.Positional.Dest, len(conf.Positional.Sources))
	stats, err := ldb.FuseLevelDB(conf.Positional.Dest, conf.Positional.Sources, ldb.FuseOptions{
		CacheSizeMiB:  conf.CacheMiB,
		BatchSize:     conf.Batch,
		MaxBatchBytes: conf.BatchMiB * 1024 * 1024,
		Strategy:      strategy,
		Prefix:        solutionstore.Bucket().Path(),
		CompactAfter:  conf.CompactAfter,
	})
	if err != nil {
		return errors.Wrap(err, "fuse failed")
	}
	fmt.Fprintf(os.Stderr, "Fuse completed: %d written, %d skipped.\n", stats.Written, stats.Skipped)
	return nil
}

func migrate(conf *migrateConfig) error {
	if conf.From == conf.To && conf.Positional.Source == conf.Positional.Dest {
		return errors.New("source and destination are the same journal")
	}
	source, err := backends.Open(conf.From, conf.Positional.Source, conf.CacheMiB)
	if err != nil {
		return errors.Wrapf(err, "failed to open source journal %s", conf.Positional.Source)
	}
	defer source.Close()
	dest, err := backends.Open(conf.To, conf.Positional.Dest, conf.CacheMiB)
	if err != nil {
		return errors.Wrapf(err, "failed to open destination journal %s", conf.Positional.Dest)
	}
	defer dest.Close()

	stats, err := solutionstore.New(source).CopyTo(solutionstore.New(dest), conf.Overwrite)
	if err != nil {
		return errors.Wrap(err, "migration failed")
	}
	fmt.Fprintf(os.Stderr, "Migrated %d solutions from %s to %s, skipped %d.\n", stats.Copied, conf.From, conf.To, stats.Skipped)
	return nil
}
