// Package sqlite persists the device cache in a single SQLite file so the
// terminal client keeps identities and aggregates between runs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"tweet-quiz-service/internal/domain"
)

const (
	identityKey   = "user"
	aggregatePref = "data:"
)

// DB wraps the SQLite connection pool.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the database at path and ensures the kv table exists.
// Use ":memory:" for a throwaway store.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			device TEXT NOT NULL,
			key    TEXT NOT NULL,
			value  TEXT NOT NULL,
			PRIMARY KEY (device, key)
		)`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: creating kv table: %w", err)
	}
	return &DB{conn: conn}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Cache returns the LocalCache view for one device.
func (db *DB) Cache(deviceID string) *LocalCache {
	return &LocalCache{db: db, deviceID: deviceID}
}

// LocalCache implements the device cache over the kv table.
type LocalCache struct {
	db       *DB
	deviceID string
}

func (c *LocalCache) LoadIdentity(ctx context.Context) (*domain.Identity, error) {
	raw, ok, err := c.get(ctx, identityKey)
	if err != nil || !ok {
		return nil, err
	}
	var identity domain.Identity
	if err := json.Unmarshal(raw, &identity); err != nil || identity.ID == "" {
		return nil, fmt.Errorf("%w: identity for device %s", domain.ErrMalformedRecord, c.deviceID)
	}
	return &identity, nil
}

func (c *LocalCache) SaveIdentity(ctx context.Context, identity domain.Identity) error {
	return c.put(ctx, identityKey, identity)
}

func (c *LocalCache) ClearIdentity(ctx context.Context) error {
	if _, err := c.db.conn.ExecContext(ctx,
		`DELETE FROM kv WHERE device = ? AND key = ?`, c.deviceID, identityKey); err != nil {
		return fmt.Errorf("sqlite: clearing identity: %w", err)
	}
	return nil
}

func (c *LocalCache) LoadAggregate(ctx context.Context, userID string) (domain.UserAggregate, bool, error) {
	raw, ok, err := c.get(ctx, aggregatePref+userID)
	if err != nil || !ok {
		return domain.UserAggregate{}, false, err
	}
	var agg domain.UserAggregate
	if err := json.Unmarshal(raw, &agg); err != nil {
		return domain.UserAggregate{}, false, fmt.Errorf("%w: aggregate for %s", domain.ErrMalformedRecord, userID)
	}
	return agg, true, nil
}

func (c *LocalCache) SaveAggregate(ctx context.Context, userID string, agg domain.UserAggregate) error {
	return c.put(ctx, aggregatePref+userID, agg)
}

func (c *LocalCache) get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := c.db.conn.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE device = ? AND key = ?`, c.deviceID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: reading %s: %w", key, err)
	}
	return []byte(value), true, nil
}

func (c *LocalCache) put(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sqlite: encoding %s: %w", key, err)
	}
	if _, err := c.db.conn.ExecContext(ctx, `
		INSERT INTO kv (device, key, value) VALUES (?, ?, ?)
		ON CONFLICT (device, key) DO UPDATE SET value = excluded.value`,
		c.deviceID, key, string(raw)); err != nil {
		return fmt.Errorf("sqlite: writing %s: %w", key, err)
	}
	return nil
}

const sessionKey = "session"

// SessionStore keeps the terminal client's provider session next to its cache.
type SessionStore struct {
	cache *LocalCache
}

// Sessions returns the session store for one device.
func (db *DB) Sessions(deviceID string) *SessionStore {
	return &SessionStore{cache: db.Cache(deviceID)}
}

func (s *SessionStore) LoadSession(ctx context.Context) (*domain.Session, error) {
	raw, ok, err := s.cache.get(ctx, sessionKey)
	if err != nil || !ok {
		return nil, err
	}
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil || session.User.ID == "" {
		return nil, nil
	}
	return &session, nil
}

func (s *SessionStore) SaveSession(ctx context.Context, session domain.Session) error {
	return s.cache.put(ctx, sessionKey, session)
}

func (s *SessionStore) DeleteSession(ctx context.Context) error {
	if _, err := s.cache.db.conn.ExecContext(ctx,
		`DELETE FROM kv WHERE device = ? AND key = ?`, s.cache.deviceID, sessionKey); err != nil {
		return fmt.Errorf("sqlite: deleting session: %w", err)
	}
	return nil
}
