package pebble

import (
	"reflect"
	"testing"

	"github.com/Hoosat-Oy/htnupow/infrastructure/db/database"
)

func prepareDatabaseForTest(t *testing.T, testName string) (db *PebbleDB, teardownFunc func()) {
	// Create a temp db to run tests against
	path := t.TempDir()
	db, err := NewPebbleDB(path, 8)
	if err != nil {
		t.Fatalf("%s: NewPebbleDB unexpectedly failed: %s", testName, err)
	}
	teardownFunc = func() {
		err = db.Close()
		if err != nil {
			t.Fatalf("%s: Close unexpectedly failed: %s", testName, err)
		}
	}
	return db, teardownFunc
}

func TestPebbleDBSanity(t *testing.T) {
	db, teardownFunc := prepareDatabaseForTest(t, "TestPebbleDBSanity")
	defer teardownFunc()

	// Put something into the db
	key := database.MakeBucket(nil).Key([]byte("key"))
	putData := []byte("Hello world!")
	err := db.Put(key, putData)
	if err != nil {
		t.Fatalf("TestPebbleDBSanity: Put returned unexpected error: %s", err)
	}

	// Get from the key previously put to
	getData, err := db.Get(key)
	if err != nil {
		t.Fatalf("TestPebbleDBSanity: Get returned unexpected error: %s", err)
	}
	if !reflect.DeepEqual(getData, putData) {
		t.Fatalf("TestPebbleDBSanity: get data and put data are not equal. Put: %s, got: %s",
			string(putData), string(getData))
	}

	exists, err := db.Has(key)
	if err != nil || !exists {
		t.Fatalf("TestPebbleDBSanity: Has returned %t, %v", exists, err)
	}

	err = db.Delete(key)
	if err != nil {
		t.Fatalf("TestPebbleDBSanity: Delete returned unexpected error: %s", err)
	}
	_, err = db.Get(key)
	if !database.IsNotFoundError(err) {
		t.Fatalf("TestPebbleDBSanity: expected ErrNotFound after Delete, got %v", err)
	}
}

func TestPebbleDBTransactionSanity(t *testing.T) {
	db, teardownFunc := prepareDatabaseForTest(t, "TestPebbleDBTransactionSanity")
	defer teardownFunc()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("TestPebbleDBTransactionSanity: Begin unexpectedly failed: %s", err)
	}

	key := database.MakeBucket(nil).Key([]byte("key"))
	putData := []byte("Hello world!")
	err = tx.Put(key, putData)
	if err != nil {
		t.Fatalf("TestPebbleDBTransactionSanity: Put returned unexpected error: %s", err)
	}

	// Since the tx is not yet committed, this should return ErrNotFound.
	_, err = db.Get(key)
	if !database.IsNotFoundError(err) {
		t.Fatalf("TestPebbleDBTransactionSanity: Get returned wrong error: %v", err)
	}

	err = tx.Commit()
	if err != nil {
		t.Fatalf("TestPebbleDBTransactionSanity: Commit returned unexpected error: %s", err)
	}

	getData, err := db.Get(key)
	if err != nil {
		t.Fatalf("TestPebbleDBTransactionSanity: Get returned unexpected error: %s", err)
	}
	if !reflect.DeepEqual(getData, putData) {
		t.Fatalf("TestPebbleDBTransactionSanity: get data and put data are not equal. Put: %s, got: %s",
			string(putData), string(getData))
	}
}

func TestPebbleDBCursor(t *testing.T) {
	db, teardownFunc := prepareDatabaseForTest(t, "TestPebbleDBCursor")
	defer teardownFunc()

	bucket := database.MakeBucket([]byte("solutions"))
	other := database.MakeBucket([]byte("solutionz"))
	entries := map[string]string{"a": "1", "b": "2", "c": "3"}
	for key, value := range entries {
		err := db.Put(bucket.Key([]byte(key)), []byte(value))
		if err != nil {
			t.Fatalf("TestPebbleDBCursor: Put returned unexpected error: %s", err)
		}
	}
	err := db.Put(other.Key([]byte("x")), []byte("outside"))
	if err != nil {
		t.Fatalf("TestPebbleDBCursor: Put returned unexpected error: %s", err)
	}

	cursor, err := db.Cursor(bucket)
	if err != nil {
		t.Fatalf("TestPebbleDBCursor: Cursor returned unexpected error: %s", err)
	}
	defer cursor.Close()

	found := make(map[string]string)
	for cursor.Next() {
		key, err := cursor.Key()
		if err != nil {
			t.Fatalf("TestPebbleDBCursor: Key returned unexpected error: %s", err)
		}
		value, err := cursor.Value()
		if err != nil {
			t.Fatalf("TestPebbleDBCursor: Value returned unexpected error: %s", err)
		}
		found[string(key.Suffix())] = string(value)
	}
	if !reflect.DeepEqual(found, entries) {
		t.Fatalf("TestPebbleDBCursor: expected %v, got %v", entries, found)
	}

	err = cursor.Seek(bucket.Key([]byte("b")))
	if err != nil {
		t.Fatalf("TestPebbleDBCursor: Seek returned unexpected error: %s", err)
	}
	key, err := cursor.Key()
	if err != nil || string(key.Suffix()) != "b" {
		t.Fatalf("TestPebbleDBCursor: expected to be at b after Seek, got %v, %v", key, err)
	}
}
