package bookmark

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/warren-bolt/pkg/values"
)

var bookmarkBucket = []byte("bookmarks")
var bookmarkKey = []byte("current")

// Persisted is a bbolt-backed Manager: bookmarks survive process restarts,
// useful for a long-lived client that wants causal consistency across runs
// without an external bookmark store. Grounded on the teacher's
// BoltDB-backed storage layer (pkg/storage/boltdb.go), repurposed here for
// a single small key instead of per-entity buckets.
type Persisted struct {
	db *bolt.DB
}

func OpenPersisted(path string) (*Persisted, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("bookmark: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bookmarkBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bookmark: init bucket: %w", err)
	}
	return &Persisted{db: db}, nil
}

func (p *Persisted) Close() error { return p.db.Close() }

func (p *Persisted) GetBookmarks() (values.Bookmarks, error) {
	var marks []string
	err := p.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bookmarkBucket).Get(bookmarkKey)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &marks)
	})
	if err != nil {
		return nil, fmt.Errorf("bookmark: read: %w", err)
	}
	return values.NewBookmarks(marks...), nil
}

func (p *Persisted) UpdateBookmarks(previous, newBookmarks values.Bookmarks) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bookmarkBucket)
		data := b.Get(bookmarkKey)
		var current []string
		if data != nil {
			if err := json.Unmarshal(data, &current); err != nil {
				return err
			}
		}
		merged := values.NewBookmarks(current...)
		for old := range previous {
			delete(merged, old)
		}
		merged = merged.Union(newBookmarks)
		encoded, err := json.Marshal(merged.Slice())
		if err != nil {
			return err
		}
		return b.Put(bookmarkKey, encoded)
	})
}
