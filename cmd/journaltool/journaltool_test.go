package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/Hoosat-Oy/htnupow/domain/solutionstore"
	"github.com/Hoosat-Oy/htnupow/domain/upow/difficulty"
	"github.com/Hoosat-Oy/htnupow/domain/upow/pow"
	"github.com/Hoosat-Oy/htnupow/domain/upow/seed"
	"github.com/Hoosat-Oy/htnupow/infrastructure/db/database/backends"
)

func writeJournal(t *testing.T, dbType string, path string, nonces ...uint64) {
	db, err := backends.Open(dbType, path, 8)
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	defer db.Close()

	store := solutionstore.New(db)
	for _, nonce := range nonces {
		var solution pow.Solution
		s := seed.Seed{}.WithNonce(seed.NonceFromUint64(nonce))
		copy(solution[:], s[:])
		hash := solution.Hash()
		candidate := &pow.Candidate{
			Nonce:    seed.NonceFromUint64(nonce),
			Solution: &solution,
			Hash:     hash,
			Score:    difficulty.Score(hash),
		}
		err := store.Put(solutionstore.NewEntry(candidate, time.Unix(int64(nonce), 0)))
		if err != nil {
			t.Fatalf("Put: %s", err)
		}
	}
}

func listNonces(t *testing.T, conf *listConfig) []string {
	out := &bytes.Buffer{}
	err := list(conf, out)
	if err != nil {
		t.Fatalf("list: %s", err)
	}
	var nonces []string
	decoder := json.NewDecoder(out)
	for decoder.More() {
		entry := &solutionstore.Entry{}
		err := decoder.Decode(entry)
		if err != nil {
			t.Fatalf("Decode: %s", err)
		}
		nonces = append(nonces, entry.Nonce)
	}
	return nonces
}

func TestMigrateAndList(t *testing.T) {
	source, dest := t.TempDir(), t.TempDir()
	writeJournal(t, backends.PebbleV1, source, 1, 2)
	writeJournal(t, backends.Pebble, dest, 2)

	conf := &migrateConfig{From: backends.PebbleV1, To: backends.Pebble, CacheMiB: 8}
	conf.Positional.Source = source
	conf.Positional.Dest = dest
	err := migrate(conf)
	if err != nil {
		t.Fatalf("TestMigrateAndList: %s", err)
	}

	listConf := &listConfig{DBType: backends.Pebble, CacheMiB: 8}
	listConf.Positional.Path = dest
	nonces := listNonces(t, listConf)
	if len(nonces) != 2 || nonces[0] != "1" || nonces[1] != "2" {
		t.Fatalf("TestMigrateAndList: unexpected nonces %v", nonces)
	}

	listConf.Status = string(solutionstore.StatusAccepted)
	if nonces := listNonces(t, listConf); len(nonces) != 0 {
		t.Fatalf("TestMigrateAndList: expected no accepted entries, got %v", nonces)
	}
}

func TestFuseJournals(t *testing.T) {
	first, second, dest := t.TempDir(), t.TempDir(), t.TempDir()
	writeJournal(t, backends.LevelDB, first, 1)
	writeJournal(t, backends.LevelDB, second, 2, 3)

	conf := &fuseConfig{Strategy: "keep", Batch: 1, BatchMiB: 1, CacheMiB: 8}
	conf.Positional.Dest = dest
	conf.Positional.Sources = []string{first, second}
	err := fuse(conf)
	if err != nil {
		t.Fatalf("TestFuseJournals: %s", err)
	}

	listConf := &listConfig{DBType: backends.LevelDB, CacheMiB: 8}
	listConf.Positional.Path = dest
	if nonces := listNonces(t, listConf); len(nonces) != 3 {
		t.Fatalf("TestFuseJournals: expected 3 entries, got %v", nonces)
	}
}

func TestParseCommandLine(t *testing.T) {
	subCmd, config, err := parseCommandLine([]string{"migrate", "--from", "leveldb", "--to", "pebble", "/a", "/b"})
	if err != nil {
		t.Fatalf("TestParseCommandLine: %s", err)
	}
	conf, ok := config.(*migrateConfig)
	if subCmd != migrateSubCmd || !ok || conf.From != "leveldb" || conf.Positional.Dest != "/b" {
		t.Fatalf("TestParseCommandLine: unexpected parse %s %+v", subCmd, config)
	}
	if _, err := parseStrategy("merge"); err == nil {
		t.Fatalf("TestParseCommandLine: expected an unknown strategy error")
	}
}
