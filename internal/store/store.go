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

// Package store is the persistent sqlite backend of the fetch cache. It also
// keeps a history of finished crawl jobs for the command line tool.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// bloomCapacity sizes the key filter. Past it the false positive rate rises
// and more misses reach the database, nothing breaks.
const (
	bloomCapacity = 1_000_000
	bloomFPRate   = 0.001
)

// Store is a sqlite database holding cache entries and job runs
type Store struct {
	path string

	// dbMu is held shared by every query and exclusively by Init and Close
	db   *gorm.DB
	dbMu sync.RWMutex

	// keys holds every cache key ever written, so most misses are answered
	// without a query
	keys   *bloom.BloomFilter
	keysMu sync.RWMutex
}

// DefaultPath returns ~/.driftnet/cache.db
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %v", err)
	}
	return filepath.Join(homeDir, ".driftnet", "cache.db"), nil
}

// NewStore creates a Store at path. The parent directory is created if
// needed. Call Init (or use it through the fetch cache, which does) before
// any other method.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Open is NewStore followed by Init
func Open(path string) (*Store, error) {
	s := NewStore(path)
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s, nil
}

// Init opens the database and migrates the schema. It is idempotent.
func (s *Store) Init() error {
	s.dbMu.Lock()
	defer s.dbMu.Unlock()
	if s.db != nil {
		return nil
	}
	if s.path == "" {
		return fmt.Errorf("sqlite store: empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %v", err)
	}

	// WAL lets the cache be read by workers while another one writes;
	// busy_timeout avoids immediate "database is locked" errors
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", s.path)

	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	if err := database.AutoMigrate(&CacheRecord{}, &JobRun{}); err != nil {
		return fmt.Errorf("failed to migrate database: %v", err)
	}

	keys := bloom.NewWithEstimates(bloomCapacity, bloomFPRate)
	var existing []string
	if err := database.Model(&CacheRecord{}).Pluck("fingerprint", &existing).Error; err != nil {
		return fmt.Errorf("failed to load cache keys: %v", err)
	}
	for _, k := range existing {
		keys.AddString(k)
	}

	s.db = database
	s.keys = keys
	return nil
}

// DB returns the underlying GORM database instance
func (s *Store) DB() *gorm.DB {
	s.dbMu.RLock()
	defer s.dbMu.RUnlock()
	return s.db
}

// acquire returns the open database and holds it open until release is
// called
func (s *Store) acquire() (*gorm.DB, func(), error) {
	s.dbMu.RLock()
	if s.db == nil {
		s.dbMu.RUnlock()
		return nil, nil, errClosed
	}
	return s.db, s.dbMu.RUnlock, nil
}

// Path returns the database file
func (s *Store) Path() string {
	return s.path
}

// Close closes the database once running queries are done. Later calls
// return an error.
func (s *Store) Close() error {
	s.dbMu.Lock()
	defer s.dbMu.Unlock()
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	s.db = nil
	return sqlDB.Close()
}

func (s *Store) mayContain(key string) bool {
	s.keysMu.RLock()
	defer s.keysMu.RUnlock()
	return s.keys.TestString(key)
}

func (s *Store) remember(key string) {
	s.keysMu.Lock()
	s.keys.AddString(key)
	s.keysMu.Unlock()
}
