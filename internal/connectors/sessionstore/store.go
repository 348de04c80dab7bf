package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when no live record exists for an id.
var ErrNotFound = errors.New("session record not found")

// Observer receives one call per executed query.
type Observer func(op string, elapsed time.Duration, err error)

type dialect struct {
	name   string
	schema []string
	upsert string
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{`
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  payload TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  expires_at INTEGER NOT NULL
);
`, `CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);`},
	upsert: `
INSERT INTO sessions (id, payload, created_at, expires_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at;
`,
}

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{`
CREATE TABLE IF NOT EXISTS sessions (
  id VARCHAR(64) NOT NULL PRIMARY KEY,
  payload TEXT NOT NULL,
  created_at BIGINT NOT NULL,
  expires_at BIGINT NOT NULL,
  KEY idx_sessions_expires_at (expires_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`},
	upsert: `
INSERT INTO sessions (id, payload, created_at, expires_at)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE payload = VALUES(payload), expires_at = VALUES(expires_at);
`,
}

// Store persists one serialized session record per id.
type Store struct {
	db           *sql.DB
	dialect      dialect
	queryTimeout time.Duration
	observe      Observer
}

func newStore(db *sql.DB, d dialect, queryTimeout time.Duration) *Store {
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	return &Store{db: db, dialect: d, queryTimeout: queryTimeout}
}

// Driver names the backing database.
func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.dialect.name
}

// SetObserver installs a per-query callback, typically for metrics.
func (s *Store) SetObserver(fn Observer) {
	s.observe = fn
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s session store: %w", s.dialect.name, err)
		}
	}
	return nil
}

// Save writes or replaces the record for id.
func (s *Store) Save(ctx context.Context, id string, payload []byte, expiresAt time.Time) (err error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("session id required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	defer s.track("save", time.Now(), &err)

	_, err = s.db.ExecContext(ctx, s.dialect.upsert, id, string(payload), time.Now().UTC().Unix(), expiresAt.UTC().Unix())
	return err
}

// Load returns the stored payload. Missing or expired records yield ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (payload []byte, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	defer s.track("load", time.Now(), &err)

	var (
		body      string
		expiresAt int64
	)
	err = s.db.QueryRowContext(ctx, `SELECT payload, expires_at FROM sessions WHERE id = ?`, id).Scan(&body, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if expiresAt > 0 && time.Now().UTC().Unix() >= expiresAt {
		return nil, ErrNotFound
	}
	return []byte(body), nil
}

// Delete removes the record for id. Deleting a missing id is not an error.
func (s *Store) Delete(ctx context.Context, id string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	defer s.track("delete", time.Now(), &err)

	_, err = s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// Purge removes records that expired before now.
func (s *Store) Purge(ctx context.Context, now time.Time) (n int64, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	defer s.track("purge", time.Now(), &err)

	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UTC().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) track(op string, start time.Time, errp *error) {
	if s.observe == nil {
		return
	}
	var err error
	if errp != nil && !errors.Is(*errp, ErrNotFound) {
		err = *errp
	}
	s.observe(op, time.Since(start), err)
}
