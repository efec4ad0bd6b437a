package session

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the session in a PostgreSQL key/value table, for
// desktop hosts that already run against a shared database.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a store on db and ensures the table exists.
func NewPostgresStore(ctx context.Context, db *pgxpool.Pool) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	_, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS session_kv (
        key   TEXT PRIMARY KEY,
        value TEXT NOT NULL
    )`)
	if err != nil {
		return nil, storageErr(err, "create session_kv")
	}
	return s, nil
}

// Save upserts both keys in a transaction.
func (s *PostgresStore) Save(ctx context.Context, sess Session) error {
	if err := sess.validate(); err != nil {
		return storageErr(err, "save session")
	}
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storageErr(err, "begin save")
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	const upsert = `INSERT INTO session_kv (key, value) VALUES ($1, $2)
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	batch := &pgx.Batch{}
	batch.Queue(upsert, KeyUser, string(sess.UserProfile))
	batch.Queue(upsert, KeyToken, sess.AccessToken)
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return storageErr(err, "write session")
	}
	return storageErr(tx.Commit(ctx), "commit save")
}

// Load reads both keys in one statement.
func (s *PostgresStore) Load(ctx context.Context) (Session, bool, error) {
	rows, err := s.db.Query(ctx, `SELECT key, value FROM session_kv WHERE key = ANY($1)`, []string{KeyUser, KeyToken})
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

// Clear deletes both keys.
func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DELETE FROM session_kv WHERE key = ANY($1)`, []string{KeyUser, KeyToken})
	return storageErr(err, "clear session")
}
