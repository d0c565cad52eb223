// Copyright 2025 Bastion Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache persists finished analysis results in a local bolt database
// so that re-analysing an unchanged manifest skips resolution entirely.
// Entries are keyed by the SHA-256 digest of the raw manifest text and carry
// an absolute expiry; expired entries read as absent.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DefaultTable is the bucket analysis results are stored under when no
// table name is configured.
const DefaultTable = "analyses"

// Key derives the cache key for a manifest: the SHA-256 digest of its raw
// text, hex encoded.
func Key(manifest string) string {
	sum := sha256.Sum256([]byte(manifest))
	return hex.EncodeToString(sum[:])
}

// entry is the stored record for one manifest hash.
type entry struct {
	Result    string `json:"result"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Store is a bolt-backed result cache. It is safe for concurrent use.
type Store struct {
	db     *bolt.DB
	bucket []byte
	now    func() time.Time
}

// Options configure a Store.
type Options struct {
	// Table names the bucket entries live in. Empty means DefaultTable.
	Table string
	// Now is the clock consulted for expiry. Nil means time.Now.
	Now func() time.Time
}

// Open opens the cache database at path, creating it and the entry bucket
// if they do not exist yet.
func Open(path string, opts Options) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening cache store %s: %w", path, err)
	}
	table := opts.Table
	if table == "" {
		table = DefaultTable
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &Store{db: db, bucket: []byte(table), now: now}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache bucket %q: %w", table, err)
	}
	return s, nil
}

// Get returns the cached result for key. ok is false when the key is absent
// or the entry has expired.
func (s *Store) Get(key string) (result []byte, ok bool, err error) {
	var raw []byte
	err = s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(s.bucket).Get([]byte(key)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry: %w", err)
	}
	if raw == nil {
		return nil, false, nil
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, fmt.Errorf("decoding cache entry: %w", err)
	}
	if e.ExpiresAt <= s.now().Unix() {
		return nil, false, nil
	}
	return []byte(e.Result), true, nil
}

// Put stores result under key with the given time to live. Writing the same
// key twice overwrites the earlier entry.
func (s *Store) Put(key string, result []byte, ttl time.Duration) error {
	raw, err := json.Marshal(entry{
		Result:    string(result),
		ExpiresAt: s.now().Add(ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), raw)
	}); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
