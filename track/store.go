// Package track stores visit tracking events.
package track

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/glebarez/go-sqlite"
)

// Event is one tracked visit. UserKey is a one-way hash identifying a
// visitor, not a credential.
type Event struct {
	UserKey string
	URL     string
	Type    string
}

// Store appends tracking events to an external store.
//
// Implementations must be thread-safe!
type Store interface {
	Insert(ctx context.Context, event Event) error
}

// SQLStore writes events to the tracking_raw table of a sqlite database.
// The database handle is opened lazily on first insert and kept for the
// life of the process; a failed insert clears it so the next insert
// reopens.
type SQLStore struct {
	dsn string

	mu sync.Mutex
	db *sql.DB
}

func NewSQLStore(dsn string) *SQLStore {
	return &SQLStore{dsn: dsn}
}

func (s *SQLStore) conn() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}
	db, err := sql.Open("sqlite", s.dsn)
	if err != nil {
		return nil, fmt.Errorf("open tracking db: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS tracking_raw
		(user_key TEXT, url TEXT, tracking_type TEXT)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create tracking table: %w", err)
	}
	s.db = db
	return db, nil
}

func (s *SQLStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
}

func (s *SQLStore) Insert(ctx context.Context, event Event) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO tracking_raw (user_key, url, tracking_type) VALUES (?, ?, ?)`,
		event.UserKey, event.URL, event.Type)
	if err != nil {
		s.reset()
		return fmt.Errorf("insert tracking event: %w", err)
	}
	return nil
}

// Close releases the database handle, if any.
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// MemStore is an in-memory Store for testing.
type MemStore struct {
	mutex  *sync.Mutex
	events []Event
}

func NewMemStore() *MemStore {
	return &MemStore{mutex: &sync.Mutex{}}
}

func (m *MemStore) Insert(ctx context.Context, event Event) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of all inserted events.
func (m *MemStore) Events() []Event {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]Event(nil), m.events...)
}
