package database

import (
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"

	"github.com/lhecker/semd/buffer"
	"github.com/lhecker/semd/semaphore"
)

var (
	snapshotsBucket = []byte("snapshots")
)

// Snapshot is the state of the services when a server shuts down.
type Snapshot struct {
	Taken  time.Time             `json:"taken"`
	Slots  []semaphore.SlotState `json:"slots"`
	Buffer buffer.Status         `json:"buffer"`
}

type Database bbolt.DB

func NewDatabase(path string) (*Database, error) {
	db, err := bbolt.Open(path, 0644, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return (*Database)(db), nil
}

func (s *Database) Close() error {
	return s.get().Close()
}

// SaveSnapshot stores snap keyed by the time it was taken.
func (s *Database) SaveSnapshot(snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	return s.get().Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(snapshotsBucket).Put(snapshotKey(snap.Taken), data)
	})
}

// LatestSnapshot returns the most recent snapshot, or nil if there is none.
func (s *Database) LatestSnapshot() (*Snapshot, error) {
	var snap *Snapshot

	err := s.get().View(func(tx *bbolt.Tx) error {
		_, v := tx.Bucket(snapshotsBucket).Cursor().Last()
		if v == nil {
			return nil
		}

		snap = &Snapshot{}
		return json.Unmarshal(v, snap)
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// snapshotKey sorts in chronological order.
func snapshotKey(t time.Time) []byte {
	return []byte(t.UTC().Format("2006-01-02T15:04:05.000000000Z"))
}

func (s *Database) get() *bbolt.DB {
	return (*bbolt.DB)(s)
}
