package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrNoSession means the request is not signed in.
var ErrNoSession = errors.New("no session")

// Store is the durable copy of session records.
type Store interface {
	Save(ctx context.Context, id string, payload []byte, expiresAt time.Time) error
	Load(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
}

// LoginRequest is the login form.
type LoginRequest struct {
	OfficialID string `validate:"required"`
	Password   string `validate:"required"`
}

// ValidationError lists inline messages for the login form.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range []string{"OfficialID", "Password"} {
		if msg, ok := e.Fields[field]; ok {
			parts = append(parts, msg)
		}
	}
	return strings.Join(parts, "; ")
}

// Session binds a browser to a user.
type Session struct {
	ID        string
	User      User
	ExpiresAt time.Time
}

// Options configures a Manager.
type Options struct {
	Secret            string
	TTL               time.Duration
	CookieName        string
	CookieSecure      bool
	DefaultRole       string
	DefaultDepartment string
	RoleOverrides     map[string]string
}

// Manager creates, restores and clears sessions.
type Manager struct {
	store       Store
	secret      []byte
	ttl         time.Duration
	cookieName  string
	secure      bool
	defaultRole Role
	department  string
	overrides   map[string]Role
	validate    *validator.Validate
	now         func() time.Time
}

func NewManager(store Store, opts Options) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session store required")
	}
	secret := strings.TrimSpace(opts.Secret)
	if secret == "" {
		secret = uuid.NewString()
		log.Warn().Msg("APP_SESSION_SECRET not set; sessions will not survive a restart")
	}
	role := RoleAdmin
	if strings.TrimSpace(opts.DefaultRole) != "" {
		r, err := ParseRole(opts.DefaultRole)
		if err != nil {
			return nil, err
		}
		role = r
	}
	overrides := make(map[string]Role, len(opts.RoleOverrides))
	for id, name := range opts.RoleOverrides {
		r, err := ParseRole(name)
		if err != nil {
			return nil, fmt.Errorf("role override for %q: %w", id, err)
		}
		overrides[id] = r
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	cookie := strings.TrimSpace(opts.CookieName)
	if cookie == "" {
		cookie = "mdoner_user"
	}
	dept := strings.TrimSpace(opts.DefaultDepartment)
	if dept == "" {
		dept = "NIC_HQ"
	}
	return &Manager{
		store:       store,
		secret:      []byte(secret),
		ttl:         ttl,
		cookieName:  cookie,
		secure:      opts.CookieSecure,
		defaultRole: role,
		department:  dept,
		overrides:   overrides,
		validate:    validator.New(),
		now:         time.Now,
	}, nil
}

// CookieName is the name of the session cookie.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// Login validates the form and persists a new session. Identity is not
// verified here; it is owned by an external provider.
func (m *Manager) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	req.OfficialID = strings.TrimSpace(req.OfficialID)
	if err := m.validate.Struct(req); err != nil {
		return nil, toValidationError(err)
	}

	role := m.defaultRole
	if r, ok := m.overrides[req.OfficialID]; ok {
		role = r
	}
	sess := &Session{
		ID: uuid.NewString(),
		User: User{
			ID:         req.OfficialID,
			Name:       req.OfficialID,
			Role:       role,
			Department: m.department,
		},
		ExpiresAt: m.now().Add(m.ttl),
	}
	payload, err := json.Marshal(sess.User)
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(ctx, sess.ID, payload, sess.ExpiresAt); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	log.Info().Str("user_id", sess.User.ID).Str("role", string(role)).Msg("session created")
	return sess, nil
}

// Issue writes the session cookie.
func (m *Manager) Issue(w http.ResponseWriter, sess *Session) error {
	claims := jwt.RegisteredClaims{
		ID:        sess.ID,
		Subject:   sess.User.ID,
		IssuedAt:  jwt.NewNumericDate(m.now()),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Restore resolves the request's session. A missing or tampered cookie, an
// unknown id or a corrupt stored record all yield ErrNoSession.
func (m *Manager) Restore(ctx context.Context, r *http.Request) (*Session, error) {
	sid, exp, err := m.sessionID(r)
	if err != nil {
		return nil, ErrNoSession
	}
	payload, err := m.store.Load(ctx, sid)
	if err != nil {
		log.Debug().Err(err).Str("session_id", sid).Msg("session restore failed")
		return nil, ErrNoSession
	}
	user, err := decodeUser(payload)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sid).Msg("discarding corrupt session record")
		_ = m.store.Delete(ctx, sid)
		return nil, ErrNoSession
	}
	return &Session{ID: sid, User: user, ExpiresAt: exp}, nil
}

// Logout clears the durable record and expires the cookie. It returns the id
// of the cleared session, or "" when there was none.
func (m *Manager) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, error) {
	m.Clear(w)
	sid, _, err := m.sessionID(r)
	if err != nil {
		return "", nil
	}
	if err := m.store.Delete(ctx, sid); err != nil {
		return sid, fmt.Errorf("delete session: %w", err)
	}
	log.Info().Str("session_id", sid).Msg("session cleared")
	return sid, nil
}

// Clear expires the cookie without touching the store.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) sessionID(r *http.Request) (string, time.Time, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return "", time.Time{}, ErrNoSession
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid || claims.ID == "" {
		return "", time.Time{}, ErrNoSession
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return claims.ID, exp, nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: map[string]string{}}
	for _, fe := range verrs {
		switch fe.Field() {
		case "OfficialID":
			out.Fields[fe.Field()] = "Official ID is required"
		case "Password":
			out.Fields[fe.Field()] = "Password is required"
		default:
			out.Fields[fe.Field()] = fe.Field() + " is invalid"
		}
	}
	return out
}
