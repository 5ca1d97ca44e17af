package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Entry is one stored page: the status line, the response headers as an
// ordered sequence of pairs (snapshotted with names sorted, values in
// insertion order), and the full body.
type Entry struct {
	Status  string
	Headers [][2]string
	Body    []byte
}

// Store is a backend for cached pages.
// It stores and retrieves whole entries under string keys.
// Writes are all-or-nothing: a reader must never observe a partial entry.
//
// Implementations must be thread-safe!
type Store interface {
	// Get returns the entry stored under the given key, if it exists.
	// It also returns a boolean indicating whether retrieval was successful.
	Get(ctx context.Context, key string) (*Entry, bool, error)
	// Put stores the given entry under the given key, atomically.
	// A concurrent Put to the same key is a race; the last write to
	// complete wins.
	Put(ctx context.Context, key string, entry *Entry) error
	// Flush removes all entries from the store.
	Flush(ctx context.Context) error
}

// RedisStore stores entries as three-element redis lists:
// status line, headers as a JSON array of pairs, body bytes.
//
// The connection is established lazily on first use, and the whole
// database is flushed on establishment. Any backend error clears the
// connection so the next operation reconnects. Reconnect attempts are
// idempotent; concurrent failure detection may reconnect twice, which
// is harmless.
type RedisStore struct {
	opts *redis.Options

	mu     sync.Mutex
	client *redis.Client
}

// NewRedisStore returns a store backed by the redis server at addr.
// No connection is made until the first operation.
func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{
		opts: &redis.Options{Addr: addr},
	}
}

// conn returns the shared client, connecting and flushing the database
// if there is none yet.
func (s *RedisStore) conn(ctx context.Context) (*redis.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	client := redis.NewClient(s.opts)
	// A fresh connection invalidates all prior entries. Connection may
	// also fail here, in which case leave the store disconnected.
	if err := client.FlushDB(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	s.client = client
	return client, nil
}

// reset drops the shared client after a detected failure.
func (s *RedisStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return nil, false, err
	}
	fields, err := client.LRange(ctx, key, 0, 2).Result()
	if err != nil {
		s.reset()
		return nil, false, fmt.Errorf("redis lrange: %w", err)
	}
	if len(fields) < 3 {
		return nil, false, nil
	}
	var headers [][2]string
	if err := json.Unmarshal([]byte(fields[1]), &headers); err != nil {
		return nil, false, fmt.Errorf("decode headers: %w", err)
	}
	return &Entry{
		Status:  fields[0],
		Headers: headers,
		Body:    []byte(fields[2]),
	}, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, entry *Entry) error {
	client, err := s.conn(ctx)
	if err != nil {
		return err
	}
	headers, err := json.Marshal(entry.Headers)
	if err != nil {
		return fmt.Errorf("encode headers: %w", err)
	}
	// One transaction per entry so readers see all three fields or none.
	// DEL first makes a racing write an atomic replacement rather than an
	// append onto the loser's fields.
	pipe := client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.RPush(ctx, key, entry.Status)
	pipe.RPush(ctx, key, headers)
	pipe.RPush(ctx, key, entry.Body)
	if _, err := pipe.Exec(ctx); err != nil {
		s.reset()
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

func (s *RedisStore) Flush(ctx context.Context) error {
	client, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		s.reset()
		return fmt.Errorf("redis flushdb: %w", err)
	}
	return nil
}

// Close releases the backend connection, if any.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// MemStore is an in-memory Store for testing.
type MemStore struct {
	mutex *sync.RWMutex
	db    map[string]*Entry
}

func NewMemStore() MemStore {
	return MemStore{
		mutex: &sync.RWMutex{},
		db:    make(map[string]*Entry),
	}
}

func (m MemStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	entry, ok := m.db[key]
	if !ok {
		return nil, false, nil
	}
	return entry, true, nil
}

func (m MemStore) Put(ctx context.Context, key string, entry *Entry) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.db[key] = entry
	return nil
}

func (m MemStore) Flush(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.db = make(map[string]*Entry)
	return nil
}
