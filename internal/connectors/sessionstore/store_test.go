package sessionstore

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LUMINOUX-HEHE/DPR/internal/config"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"), time.Second)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "sqlite", s.Driver())

	var ops []string
	s.SetObserver(func(op string, _ time.Duration, err error) {
		ops = append(ops, op)
		assert.NoError(t, err)
	})

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "sid-1", []byte(`{"id":"u1"}`), time.Now().Add(time.Hour)))
	require.NoError(t, s.Save(ctx, "sid-1", []byte(`{"id":"u2"}`), time.Now().Add(time.Hour)))

	payload, err := s.Load(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"u2"}`, string(payload))

	_, err = s.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, "sid-1"))
	_, err = s.Load(ctx, "sid-1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []string{"save", "save", "load", "load", "delete", "load"}, ops)
}

func TestSQLiteStoreExpiry(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"), time.Second)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "old", []byte(`{}`), time.Now().Add(-time.Minute)))
	require.NoError(t, s.Save(ctx, "new", []byte(`{}`), time.Now().Add(time.Hour)))

	_, err = s.Load(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.Purge(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Load(ctx, "new")
	assert.NoError(t, err)
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	_, err := NewSQLiteStore("  ", time.Second)
	assert.Error(t, err)
}

func TestMySQLStoreQueries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	s := newStore(db, mysqlDialect, time.Second)
	defer s.Close()
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS sessions")).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, s.migrate(ctx))

	expires := time.Now().Add(time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("ON DUPLICATE KEY UPDATE")).
		WithArgs("sid", `{"id":"u"}`, sqlmock.AnyArg(), expires.UTC().Unix()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, s.Save(ctx, "sid", []byte(`{"id":"u"}`), expires))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload, expires_at FROM sessions WHERE id = ?")).
		WithArgs("sid").
		WillReturnRows(sqlmock.NewRows([]string{"payload", "expires_at"}).AddRow(`{"id":"u"}`, expires.Unix()))
	payload, err := s.Load(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"u"}`, string(payload))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload, expires_at FROM sessions")).
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows([]string{"payload", "expires_at"}))
	_, err = s.Load(ctx, "gone")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE id = ?")).
		WithArgs("sid").
		WillReturnError(errors.New("connection reset"))
	assert.Error(t, s.Delete(ctx, "sid"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.Config{SessionDriver: "redis"})
	assert.Error(t, err)
}
