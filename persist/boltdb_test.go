package persist

import (
	"os"
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"

	"github.com/signum-network/gopoc-miner/build"
)

// TestOpenDatabase checks that a database can be created, closed, and
// reopened with the same metadata.
func TestOpenDatabase(t *testing.T) {
	testDir := build.TempDir("persist", t.Name())
	if err := os.MkdirAll(testDir, 0700); err != nil {
		t.Fatal(err)
	}
	dbFilepath := filepath.Join(testDir, "ledger.db")
	md := Metadata{Header: "gopoc submission ledger", Version: "1.0"}

	db, err := OpenDatabase(md, dbFilepath)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte("Jobs"))
		return err
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db, err = OpenDatabase(md, dbFilepath)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}
}

// TestOpenDatabaseBadMetadata checks that reopening a database with a
// different header/version is rejected.
func TestOpenDatabaseBadMetadata(t *testing.T) {
	testDir := build.TempDir("persist", t.Name())
	if err := os.MkdirAll(testDir, 0700); err != nil {
		t.Fatal(err)
	}
	dbFilepath := filepath.Join(testDir, "ledger.db")

	db, err := OpenDatabase(Metadata{Header: "a", Version: "1"}, dbFilepath)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := OpenDatabase(Metadata{Header: "b", Version: "1"}, dbFilepath); err != ErrBadHeader {
		t.Fatalf("expected ErrBadHeader, got %v", err)
	}
	if _, err := OpenDatabase(Metadata{Header: "a", Version: "2"}, dbFilepath); err != ErrBadVersion {
		t.Fatalf("expected ErrBadVersion, got %v", err)
	}
}
