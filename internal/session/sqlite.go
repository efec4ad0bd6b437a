package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLiteStore keeps the session in an on-device SQLite key/value table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the key/value database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, storageErr(fmt.Errorf("sqlite path is required"), "open session store")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, storageErr(err, "create session dir")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storageErr(err, "open sqlite db")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, storageErr(err, "ping sqlite db")
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, storageErr(err, "create kv table")
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save writes USER and TOKEN in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, sess Session) error {
	if err := sess.validate(); err != nil {
		return storageErr(err, "save session")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err, "begin save")
	}
	defer tx.Rollback() // nolint:errcheck

	const upsert = `INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := tx.ExecContext(ctx, upsert, KeyUser, string(sess.UserProfile)); err != nil {
		return storageErr(err, "write user")
	}
	if _, err := tx.ExecContext(ctx, upsert, KeyToken, sess.AccessToken); err != nil {
		return storageErr(err, "write token")
	}
	return storageErr(tx.Commit(), "commit save")
}

// Load reads both keys in a single statement so it sees one snapshot.
func (s *SQLiteStore) Load(ctx context.Context) (Session, bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM kv WHERE key IN (?, ?)`, KeyUser, KeyToken)
	if err != nil {
		return Session{}, false, storageErr(err, "load session")
	}
	defer rows.Close()

	var user, token string
	var userOK, tokenOK bool
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Session{}, false, storageErr(err, "scan session")
		}
		switch key {
		case KeyUser:
			user, userOK = value, true
		case KeyToken:
			token, tokenOK = value, true
		}
	}
	if err := rows.Err(); err != nil {
		return Session{}, false, storageErr(err, "load session")
	}
	sess, ok := fromPair(user, token, userOK, tokenOK)
	return sess, ok, nil
}

// Clear removes both keys.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key IN (?, ?)`, KeyUser, KeyToken)
	return storageErr(err, "clear session")
}
