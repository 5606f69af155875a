// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/agentberlin/driftnet/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ storage.CacheStore = (*Store)(nil)

// errClosed is returned by every method once the store is closed
var errClosed = errors.New("sqlite store is not open")

// Get implements storage.CacheStore
func (s *Store) Get(key string) (storage.CacheEntry, bool, error) {
	db, release, err := s.acquire()
	if err != nil {
		return storage.CacheEntry{}, false, err
	}
	defer release()
	if !s.mayContain(key) {
		return storage.CacheEntry{}, false, nil
	}

	var rec CacheRecord
	err = db.Where("fingerprint = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.CacheEntry{}, false, nil
	}
	if err != nil {
		return storage.CacheEntry{}, false, err
	}
	return rec.entry(), true, nil
}

// Put implements storage.CacheStore. An existing entry for the key is
// replaced.
func (s *Store) Put(entry storage.CacheEntry) error {
	db, release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()
	rec := CacheRecord{
		Key:       entry.Key,
		URL:       entry.URL,
		Body:      entry.Body,
		FetchedAt: entry.FetchedAt.UnixNano(),
		Success:   entry.Success,
		Tier:      entry.Tier,
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fingerprint"}},
		DoUpdates: clause.AssignmentColumns([]string{"url", "body", "fetched_at", "success", "tier", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %v", err)
	}
	s.remember(entry.Key)
	return nil
}

// CacheStats summarizes the cache table
type CacheStats struct {
	Entries   int64
	Succeeded int64
	Failed    int64
	Bytes     int64
}

// Stats returns counts over all cache entries
func (s *Store) Stats() (CacheStats, error) {
	var stats CacheStats
	db, release, err := s.acquire()
	if err != nil {
		return stats, err
	}
	defer release()
	err = db.Model(&CacheRecord{}).
		Select("COUNT(*) AS entries, " +
			"COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS succeeded, " +
			"COALESCE(SUM(CASE WHEN success THEN 0 ELSE 1 END), 0) AS failed, " +
			"COALESCE(SUM(LENGTH(body)), 0) AS bytes").
		Scan(&stats).Error
	return stats, err
}

// ListEntries returns the most recently fetched entries without their bodies
func (s *Store) ListEntries(limit int) ([]storage.CacheEntry, error) {
	db, release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	var recs []CacheRecord
	q := db.Select("fingerprint", "url", "fetched_at", "success", "tier").Order("fetched_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %v", err)
	}
	out := make([]storage.CacheEntry, len(recs))
	for i, rec := range recs {
		out[i] = rec.entry()
	}
	return out, nil
}

// Purge deletes entries fetched before cutoff and returns how many went.
// The key filter keeps purged keys, they only cost a query on lookup.
func (s *Store) Purge(cutoff time.Time) (int64, error) {
	db, release, err := s.acquire()
	if err != nil {
		return 0, err
	}
	defer release()
	res := db.Where("fetched_at < ?", cutoff.UnixNano()).Delete(&CacheRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge cache: %v", res.Error)
	}
	return res.RowsAffected, nil
}

func (r CacheRecord) entry() storage.CacheEntry {
	return storage.CacheEntry{
		Key:       r.Key,
		URL:       r.URL,
		Body:      r.Body,
		FetchedAt: time.Unix(0, r.FetchedAt),
		Success:   r.Success,
		Tier:      r.Tier,
	}
}
