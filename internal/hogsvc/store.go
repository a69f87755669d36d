package hogsvc

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger"
)

// peerStore persists per-peer subscription state so that a bonded peer that
// reconnects after an agent restart gets its CCCD state restored, as HID
// hosts expect.
type peerStore struct {
	db  *badger.DB
	now func() time.Time
}

type peerRecord struct {
	Peer          string                     `json:"peer"`
	Mode          ProtocolMode               `json:"mode"`
	Subscriptions map[string][modeCount]bool `json:"subscriptions"`
	FirstSeenAt   time.Time                  `json:"firstSeenAt"`
	LastSeenAt    time.Time                  `json:"lastSeenAt"`
}

func (s *peerStore) key(peer string) []byte {
	return []byte(fmt.Sprintf("hog/peers/%s", peer))
}

// load returns the stored snapshot for a peer, merged over the default
// snapshot so that reports enabled after the record was written still appear.
// A peer without a record yields the default snapshot.
func (s *peerStore) load(peer string, registry *Registry) (Snapshot, error) {
	snap := DefaultSnapshot(registry)
	if s.db == nil {
		return snap, nil
	}
	var rec peerRecord
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(peer))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		case err != nil:
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return snap, fmt.Errorf("failed to load peer record: %w", err)
	}
	if !found {
		return snap, nil
	}
	if rec.Mode.valid() {
		snap.Mode = rec.Mode
	}
	for _, report := range registry.Reports() {
		if st, ok := rec.Subscriptions[report.String()]; ok {
			snap.Enabled[report] = st
		}
	}
	return snap, nil
}

// save upserts the peer's snapshot, keeping the first-seen timestamp of an
// existing record.
func (s *peerStore) save(peer string, snap Snapshot) error {
	if s.db == nil {
		return nil
	}
	now := s.now()
	return s.db.Update(func(txn *badger.Txn) error {
		key := s.key(peer)
		rec := peerRecord{
			Peer:        peer,
			FirstSeenAt: now,
		}
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			var old peerRecord
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &old)
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal peer record: %w", err)
			}
			if !old.FirstSeenAt.IsZero() {
				rec.FirstSeenAt = old.FirstSeenAt
			}
		}
		rec.Mode = snap.Mode
		rec.LastSeenAt = now
		rec.Subscriptions = make(map[string][modeCount]bool, len(snap.Enabled))
		for report, st := range snap.Enabled {
			rec.Subscriptions[report.String()] = st
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal peer record: %w", err)
		}
		return txn.Set(key, b)
	})
}
