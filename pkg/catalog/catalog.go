// Package catalog persists probe reports in a local key-value store.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"avikit/pkg/avi"
)

const (
	dbAPIversion = "1"
	// dbAPIversion = "-1" // Testing.
)

// ErrNotExist no report stored for this path.
var ErrNotExist = errors.New("report does not exist")

// Catalog is a bolt-backed store of probe reports keyed by file path.
type Catalog struct {
	db *bolt.DB
}

// Entry pairs a stored report with its file path.
type Entry struct {
	Path   string
	Report avi.Report
}

// Open opens or creates the database at dbPath.
// Caller must call Close() when done.
func Open(dbPath string) (*Catalog, error) {
	dbOpts := &bolt.Options{
		Timeout: 1 * time.Second,
	}

	db, err := bolt.Open(dbPath, 0o600, dbOpts)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w: %v", err, dbPath)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(dbAPIversion))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create bucket: %v, %w", dbAPIversion, err)
	}

	return &Catalog{db: db}, nil
}

// Close releases the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Put stores the report for path, replacing any previous one.
func (c *Catalog) Put(path string, report *avi.Report) error {
	value, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(dbAPIversion))
		return b.Put([]byte(path), value)
	})
}

// Get returns the stored report for path.
func (c *Catalog) Get(path string) (*avi.Report, error) {
	var report avi.Report
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(dbAPIversion))
		value := b.Get([]byte(path))
		if value == nil {
			return fmt.Errorf("%w: %v", ErrNotExist, path)
		}
		return json.Unmarshal(value, &report)
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// Delete removes the report for path, if any.
func (c *Catalog) Delete(path string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(dbAPIversion))
		return b.Delete([]byte(path))
	})
}

// List returns all stored entries in path order.
func (c *Catalog) List() ([]Entry, error) {
	var entries []Entry
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(dbAPIversion))
		return b.ForEach(func(k, v []byte) error {
			var report avi.Report
			if err := json.Unmarshal(v, &report); err != nil {
				return fmt.Errorf("unmarshal %q: %w", k, err)
			}
			entries = append(entries, Entry{
				Path:   string(k),
				Report: report,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
