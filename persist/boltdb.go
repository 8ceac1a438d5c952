package persist

import (
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltDatabase wraps a bbolt database with a metadata header that is
// checked on every open, so that a submission ledger written by one
// version of the miner is never silently misinterpreted by another.
type BoltDatabase struct {
	Metadata
	*bolt.DB
}

var (
	// ErrBadHeader is returned when an on-disk database's header does not
	// match the header the caller expects.
	ErrBadHeader = errors.New("wrong header")
	// ErrBadVersion is returned when an on-disk database's version does not
	// match the version the caller expects.
	ErrBadVersion = errors.New("incompatible version")
)

// Metadata identifies the format of data stored inside a persisted file or
// database.
type Metadata struct {
	Header, Version string
}

// updateMetadata sets the contents of the metadata bucket to match db's
// Metadata.
func (db *BoltDatabase) updateMetadata(tx *bolt.Tx) error {
	bucket, err := tx.CreateBucketIfNotExists([]byte("Metadata"))
	if err != nil {
		return err
	}
	if err := bucket.Put([]byte("Header"), []byte(db.Header)); err != nil {
		return err
	}
	return bucket.Put([]byte("Version"), []byte(db.Version))
}

// checkMetadata confirms that the metadata in the database matches md. If
// there is no metadata yet, md is written as the database's metadata.
func (db *BoltDatabase) checkMetadata(md Metadata) error {
	return db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte("Metadata"))
		if bucket == nil {
			return db.updateMetadata(tx)
		}
		if header := bucket.Get([]byte("Header")); string(header) != md.Header {
			return ErrBadHeader
		}
		if version := bucket.Get([]byte("Version")); string(version) != md.Version {
			return ErrBadVersion
		}
		return nil
	})
}

// OpenDatabase opens a bbolt database at filename, creating it if it does
// not exist, and verifies (or writes) its metadata header.
func OpenDatabase(md Metadata, filename string) (*BoltDatabase, error) {
	db, err := bolt.Open(filename, 0600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	boltDB := &BoltDatabase{
		Metadata: md,
		DB:       db,
	}
	if err := boltDB.checkMetadata(md); err != nil {
		db.Close()
		return nil, err
	}
	return boltDB, nil
}
