package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var eventsBucket = []byte("events")

// EventLedger remembers which webhook events were already handled so that
// LINE redeliveries are not answered twice.
type EventLedger interface {
	MarkProcessed(eventID string, at time.Time) (bool, error)
	Prune(olderThan time.Time) (int, error)
	Close() error
}

type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(eventsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating events bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// MarkProcessed records eventID and reports whether it was seen for the first time.
func (s *BoltStore) MarkProcessed(eventID string, at time.Time) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is empty")
	}

	first := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(eventsBucket)
		if b.Get([]byte(eventID)) != nil {
			return nil
		}
		first = true
		return b.Put([]byte(eventID), encodeTime(at))
	})
	if err != nil {
		return false, fmt.Errorf("recording event %s: %w", eventID, err)
	}
	return first, nil
}

// Prune deletes events recorded before olderThan.
func (s *BoltStore) Prune(olderThan time.Time) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(eventsBucket)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if decodeTime(v).Before(olderThan) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("pruning events: %w", err)
	}
	return removed, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func encodeTime(t time.Time) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(t.UnixNano()))
	return buf
}

func decodeTime(v []byte) time.Time {
	if len(v) != 8 {
		return time.Time{}
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(v)))
}
