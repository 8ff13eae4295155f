// Package session implements the cookie session that guards every protected
// route. The browser holds a signed token naming a server-side session entry;
// a request is authenticated only when both agree.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/umakantv/go-utils/errs"
	"github.com/umakantv/go-utils/httpserver"
)

const (
	// CookieName is the cookie carrying the signed session token
	CookieName = "session_id"
	// AuthType labels the RequestAuth of a session identity
	AuthType = "session"

	sessionKeyPrefix = "session:"
)

var (
	ErrNoSession    = errors.New("no session cookie")
	ErrInvalidToken = errors.New("invalid session token")
	ErrExpired      = errors.New("session expired or invalid")
)

// Store is the subset of go-utils cache.Cache the sessions live in
type Store interface {
	Set(key string, value interface{}, ttl time.Duration) error
	Get(key string) (interface{}, error)
	Delete(key string) error
}

// Identity is the logged-in user a session resolves to
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type tokenClaims struct {
	SessionID string `json:"sid"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// Manager creates, validates and destroys sessions
type Manager struct {
	store  Store
	secret []byte
	ttl    time.Duration
	secure bool
}

// NewManager returns a Manager storing sessions in store for ttl
func NewManager(store Store, secret string, ttl time.Duration, secureCookie bool) *Manager {
	return &Manager{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		secure: secureCookie,
	}
}

// Create stores a new session for id and sets the session cookie on w
func (m *Manager) Create(w http.ResponseWriter, id Identity) error {
	sessionID := uuid.New().String()

	data, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := m.store.Set(sessionKeyPrefix+sessionID, string(data), m.ttl); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		SessionID: sessionID,
		Email:     id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		m.store.Delete(sessionKeyPrefix + sessionID)
		return fmt.Errorf("sign session token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.ttl.Seconds()),
	})
	return nil
}

// Resolve returns the identity behind the request's session cookie
func (m *Manager) Resolve(r *http.Request) (Identity, error) {
	claims, err := m.parseCookie(r)
	if err != nil {
		return Identity{}, err
	}

	raw, err := m.store.Get(sessionKeyPrefix + claims.SessionID)
	if err != nil {
		return Identity{}, ErrExpired
	}

	id, err := decodeIdentity(raw)
	if err != nil {
		return Identity{}, err
	}
	if id.UserID != claims.Subject {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}

// Required guards a handler behind a valid session. Requests without one get
// a JSON 401 and never reach next; otherwise the identity is placed in the
// context the same way httpserver stores RequestAuth.
func (m *Manager) Required(next httpserver.HandlerFunc) httpserver.HandlerFunc {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		id, err := m.Resolve(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(errs.NewAuthenticationError("Not logged in"))
			return
		}
		next(NewContext(ctx, id), w, r)
	}
}

// Destroy invalidates the request's session and clears the cookie.
// A request without a session is not an error.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) error {
	claims, err := m.parseCookie(r)
	if err == nil {
		if err := m.store.Delete(sessionKeyPrefix + claims.SessionID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	return nil
}

func (m *Manager) parseCookie(r *http.Request) (*tokenClaims, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func decodeIdentity(raw interface{}) (Identity, error) {
	var id Identity
	switch v := raw.(type) {
	case string:
		if err := json.Unmarshal([]byte(v), &id); err != nil {
			return Identity{}, fmt.Errorf("invalid session data")
		}
	case map[string]interface{}:
		id.UserID, _ = v["user_id"].(string)
		id.Email, _ = v["email"].(string)
	default:
		return Identity{}, fmt.Errorf("unexpected session type")
	}
	if id.UserID == "" {
		return Identity{}, fmt.Errorf("invalid user_id in session")
	}
	return id, nil
}

// FromContext returns the identity Required placed in the request context
func FromContext(ctx context.Context) (Identity, bool) {
	auth := httpserver.GetRequestAuth(ctx)
	if auth == nil {
		return Identity{}, false
	}
	id, ok := auth.Claims.(Identity)
	return id, ok
}

// NewContext attaches id as the request's httpserver.RequestAuth
func NewContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, httpserver.RequestAuthKey, httpserver.RequestAuth{
		Type:   AuthType,
		Client: id.Email,
		Claims: id,
	})
}
