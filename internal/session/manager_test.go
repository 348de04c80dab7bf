package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMissing = errors.New("missing")

type memStore struct {
	mu      sync.Mutex
	records map[string][]byte
	saves   int
}

func newMemStore() *memStore {
	return &memStore{records: map[string][]byte{}}
}

func (m *memStore) Save(_ context.Context, id string, payload []byte, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.records[id] = payload
	return nil
}

func (m *memStore) Load(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.records[id]
	if !ok {
		return nil, errMissing
	}
	return payload, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func newTestManager(t *testing.T, store Store) *Manager {
	t.Helper()
	m, err := NewManager(store, Options{
		Secret:        "test-secret",
		TTL:           time.Hour,
		RoleOverrides: map[string]string{"rev01": "reviewer"},
	})
	require.NoError(t, err)
	return m
}

func requestWithCookies(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/app", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestLoginIssueRestore(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store)
	ctx := context.Background()

	sess, err := m.Login(ctx, LoginRequest{OfficialID: " NIC_ADMIN_01 ", Password: "x"})
	require.NoError(t, err)
	assert.Equal(t, "NIC_ADMIN_01", sess.User.ID)
	assert.Equal(t, RoleAdmin, sess.User.Role)
	assert.Equal(t, "NIC_HQ", sess.User.Department)

	rec := httptest.NewRecorder()
	require.NoError(t, m.Issue(rec, sess))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "mdoner_user", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	restored, err := m.Restore(ctx, requestWithCookies(rec))
	require.NoError(t, err)
	assert.Equal(t, sess.ID, restored.ID)
	assert.Equal(t, sess.User, restored.User)
}

func TestLoginRoleOverride(t *testing.T) {
	m := newTestManager(t, newMemStore())
	sess, err := m.Login(context.Background(), LoginRequest{OfficialID: "rev01", Password: "x"})
	require.NoError(t, err)
	assert.Equal(t, RoleReviewer, sess.User.Role)
	assert.False(t, sess.User.IsAdmin())
}

func TestLoginValidation(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store)

	_, err := m.Login(context.Background(), LoginRequest{OfficialID: "  "})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Official ID is required", verr.Fields["OfficialID"])
	assert.Equal(t, "Password is required", verr.Fields["Password"])
	assert.Equal(t, 0, store.saves, "invalid form must not reach the store")
}

func TestRestoreCorruptRecordYieldsNoSession(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store)
	ctx := context.Background()

	sess, err := m.Login(ctx, LoginRequest{OfficialID: "u", Password: "p"})
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	require.NoError(t, m.Issue(rec, sess))

	for _, corrupt := range []string{`{not json`, `{"id":"","role":"ADMIN"}`, `{"id":"u","role":"ROOT"}`} {
		store.records[sess.ID] = []byte(corrupt)
		_, err := m.Restore(ctx, requestWithCookies(rec))
		assert.ErrorIs(t, err, ErrNoSession, "payload %s", corrupt)
	}
	_, ok := store.records[sess.ID]
	assert.False(t, ok, "corrupt record should be discarded")
}

func TestRestoreRejectsBadCookies(t *testing.T) {
	m := newTestManager(t, newMemStore())
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/app", nil)
	_, err := m.Restore(ctx, req)
	assert.ErrorIs(t, err, ErrNoSession)

	req.AddCookie(&http.Cookie{Name: "mdoner_user", Value: "garbage"})
	_, err = m.Restore(ctx, req)
	assert.ErrorIs(t, err, ErrNoSession)

	other, err := NewManager(newMemStore(), Options{Secret: "other-secret"})
	require.NoError(t, err)
	sess, err := other.Login(ctx, LoginRequest{OfficialID: "u", Password: "p"})
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	require.NoError(t, other.Issue(rec, sess))
	_, err = m.Restore(ctx, requestWithCookies(rec))
	assert.ErrorIs(t, err, ErrNoSession, "token signed with another secret")
}

func TestRestoreExpiredToken(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store)
	ctx := context.Background()

	sess, err := m.Login(ctx, LoginRequest{OfficialID: "u", Password: "p"})
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	require.NoError(t, m.Issue(rec, sess))

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = m.Restore(ctx, requestWithCookies(rec))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestLogoutClearsStoreAndCookie(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store)
	ctx := context.Background()

	sess, err := m.Login(ctx, LoginRequest{OfficialID: "u", Password: "p"})
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	require.NoError(t, m.Issue(rec, sess))

	out := httptest.NewRecorder()
	sid, err := m.Logout(ctx, out, requestWithCookies(rec))
	require.NoError(t, err)
	assert.Equal(t, sess.ID, sid)
	assert.Empty(t, store.records)

	cleared := out.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)

	_, err = m.Restore(ctx, requestWithCookies(rec))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("department")
	require.NoError(t, err)
	assert.Equal(t, RoleDepartment, r)
	_, err = ParseRole("root")
	assert.Error(t, err)
}
