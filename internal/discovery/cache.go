// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package discovery

import (
	"encoding/json"

	"github.com/dgraph-io/badger/v4"

	"github.com/eyevinn/strom/internal/log"
)

const discoveredKeyPrefix = "discovered:"

// cache persists discovered streams to disk so a restart does not lose
// everything it heard before the next SAP/mDNS re-announcement arrives —
// a warm-restart convenience, not a correctness requirement (an entry
// that nothing re-announces still expires on its own TTL).
type cache struct {
	db *badger.DB
}

func openCache(path string) (*cache, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &cache{db: db}, nil
}

func (c *cache) close() error { return c.db.Close() }

func (c *cache) save(d *DiscoveredStream) {
	data, err := json.Marshal(d)
	if err != nil {
		log.L().Warn().Err(err).Msg("discovery: cache marshal failed")
		return
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(discoveredKeyPrefix+d.ID), data)
	})
	if err != nil {
		log.L().Warn().Err(err).Msg("discovery: cache write failed")
	}
}

func (c *cache) delete(id string) {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(discoveredKeyPrefix + id))
	})
	if err != nil {
		log.L().Warn().Err(err).Msg("discovery: cache delete failed")
	}
}

func (c *cache) loadAll() []DiscoveredStream {
	var out []DiscoveredStream
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(discoveredKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var d DiscoveredStream
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &d)
			})
			if err != nil {
				continue
			}
			out = append(out, d)
		}
		return nil
	})
	if err != nil {
		log.L().Warn().Err(err).Msg("discovery: cache load failed")
	}
	return out
}
