package ldb

import (
	"path/filepath"
	"testing"

	"github.com/Hoosat-Oy/htnupow/infrastructure/db/database"
)

func writeKV(t *testing.T, db *LevelDB, bucket *database.Bucket, m map[string]string) {
	t.Helper()
	for k, v := range m {
		if err := db.Put(bucket.Key([]byte(k)), []byte(v)); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
}

func readVal(t *testing.T, db *LevelDB, bucket *database.Bucket, key string) string {
	t.Helper()
	b, err := db.Get(bucket.Key([]byte(key)))
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	return string(b)
}

func prepareSources(t *testing.T, dir string, bucket *database.Bucket) []string {
	t.Helper()
	src1Path := filepath.Join(dir, "src1")
	src2Path := filepath.Join(dir, "src2")
	src1, err := NewLevelDB(src1Path, 8)
	if err != nil {
		t.Fatal(err)
	}
	src2, err := NewLevelDB(src2Path, 8)
	if err != nil {
		t.Fatal(err)
	}
	writeKV(t, src1, bucket, map[string]string{"a": "1", "b": "1"})
	writeKV(t, src2, bucket, map[string]string{"b": "2", "c": "2"})
	_ = src1.Close()
	_ = src2.Close()
	return []string{src1Path, src2Path}
}

func TestFuseOverwrite(t *testing.T) {
	dir := t.TempDir()
	bucket := database.MakeBucket([]byte("solutions"))
	sources := prepareSources(t, dir, bucket)
	destPath := filepath.Join(dir, "dest")

	stats, err := FuseLevelDB(destPath, sources, FuseOptions{Strategy: Overwrite, BatchSize: 1})
	if err != nil {
		t.Fatalf("fuse overwrite: %v", err)
	}
	if stats.Written != 4 || stats.Skipped != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	dest, err := NewLevelDB(destPath, 8)
	if err != nil {
		t.Fatal(err)
	}
	defer dest.Close()

	for key, want := range map[string]string{"a": "1", "b": "2", "c": "2"} {
		if got := readVal(t, dest, bucket, key); got != want {
			t.Fatalf("%s=%s want %s", key, got, want)
		}
	}
}

func TestFuseKeepExisting(t *testing.T) {
	dir := t.TempDir()
	bucket := database.MakeBucket([]byte("solutions"))
	sources := prepareSources(t, dir, bucket)
	destPath := filepath.Join(dir, "dest")

	// Preseed dest with b=dest
	dest, err := NewLevelDB(destPath, 8)
	if err != nil {
		t.Fatal(err)
	}
	writeKV(t, dest, bucket, map[string]string{"b": "dest"})
	_ = dest.Close()

	stats, err := FuseLevelDB(destPath, sources, FuseOptions{Strategy: KeepExisting, BatchSize: 5})
	if err != nil {
		t.Fatalf("fuse keep-existing: %v", err)
	}
	if stats.Written != 2 || stats.Skipped != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	dest2, err := NewLevelDB(destPath, 8)
	if err != nil {
		t.Fatal(err)
	}
	defer dest2.Close()

	for key, want := range map[string]string{"a": "1", "b": "dest", "c": "2"} {
		if got := readVal(t, dest2, bucket, key); got != want {
			t.Fatalf("%s=%s want %s", key, got, want)
		}
	}
}

func TestFusePrefixAndSelf(t *testing.T) {
	dir := t.TempDir()
	bucket := database.MakeBucket([]byte("solutions"))
	sources := prepareSources(t, dir, bucket)

	stats, err := FuseLevelDB(filepath.Join(dir, "dest"), sources, FuseOptions{Prefix: []byte("other/")})
	if err != nil {
		t.Fatalf("fuse with prefix: %v", err)
	}
	if stats.Written != 0 {
		t.Fatalf("expected no keys outside the prefix, got %d", stats.Written)
	}

	_, err = FuseLevelDB(sources[0], sources, FuseOptions{})
	if err == nil {
		t.Fatalf("expected an error when a source equals the destination")
	}
}

func TestLevelDBTransaction(t *testing.T) {
	db, err := NewLevelDB(t.TempDir(), 8)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	key := database.MakeBucket(nil).Key([]byte("key"))
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin: %s", err)
	}
	if err := tx.Put(key, []byte("value")); err != nil {
		t.Fatalf("Put: %s", err)
	}
	if _, err := db.Get(key); !database.IsNotFoundError(err) {
		t.Fatalf("expected ErrNotFound before Commit, got %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %s", err)
	}
	if got := readVal(t, db, database.MakeBucket(nil), "key"); got != "value" {
		t.Fatalf("key=%s want value", got)
	}
	if err := tx.Rollback(); err == nil {
		t.Fatalf("expected an error rolling back a closed transaction")
	}
}
