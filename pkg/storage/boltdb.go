package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltStore implements Store using BoltDB. Each table is a bucket keyed by
// the bucket sequence, so cursor order equals insertion order.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens the BoltDB file at path. A read-only store never
// creates buckets; missing buckets read as empty tables.
func OpenBoltStore(path string, readOnly bool) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{
		ReadOnly: readOnly,
		Timeout:  5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Insert appends a record to table, creating the bucket if needed
func (s *BoltStore) Insert(table string, r Record) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(table))
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", table, err)
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		return b.Put(sequenceKey(seq), data)
	})
}

func (s *BoltStore) GetSingleton(table string) (Record, error) {
	var found Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return nil
		}
		_, v := b.Cursor().First()
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &found)
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("%s: %w", table, ErrNotFound)
	}
	return found, nil
}

func (s *BoltStore) FindAll(table string, q Query) ([]Record, error) {
	var records []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("failed to decode %s/%x: %w", table, k, err)
			}
			if q.Match(r) {
				records = append(records, r)
			}
			return nil
		})
	})
	return records, err
}

func (s *BoltStore) Empty() bool {
	empty := true
	_ = s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(_ []byte, b *bolt.Bucket) error {
			if k, _ := b.Cursor().First(); k != nil {
				empty = false
			}
			return nil
		})
	})
	return empty
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
