package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// Session is an authenticated session record. A session is valid iff it
// exists in the store and ExpiresAt is strictly in the future.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionStore is the durable persistence port for sessions. GetSession
// returns (nil, nil) when no row exists; expiry is enforced by the manager.
type SessionStore interface {
	CreateSession(ctx context.Context, sess Session, ip, ua string) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// SessionManager owns the session lifecycle: it is the only component that
// creates or destroys sessions, and it binds them to an http-only cookie.
// Postgres is authoritative; Redis is a look-aside cache keyed by session id
// whose TTL never outlives the session expiry.
type SessionManager struct {
	store      SessionStore
	cache      *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
}

type sessionPayload struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewSessionManager constructs a SessionManager. cache may be nil, in which
// case every resolve goes to the store.
func NewSessionManager(store SessionStore, cache *redis.Client, cookieName string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		store:      store,
		cache:      cache,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
	}
}

// Create issues a new session for userID with a genuine future expiry and
// persists it. Multiple concurrent sessions per user are allowed.
func (sm *SessionManager) Create(ctx context.Context, userID, ip, ua string) (*Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("shared: generate session id: %w", err)
	}
	now := time.Now().UTC()
	sess := Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(sm.ttl),
	}
	if err := sm.store.CreateSession(ctx, sess, ip, ua); err != nil {
		return nil, fmt.Errorf("shared: create session: %w", err)
	}
	sm.prime(ctx, &sess)
	return &sess, nil
}

// Resolve looks up a session by id. It returns (nil, nil) when the session is
// absent or expired; the two cases are indistinguishable to the caller.
func (sm *SessionManager) Resolve(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, nil
	}

	if sess := sm.cached(ctx, id); sess != nil {
		if sess.ExpiresAt.After(time.Now()) {
			return sess, nil
		}
		// Stale cache entry, fall through to the store.
		sm.evict(ctx, id)
	}

	sess, err := sm.store.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("shared: get session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	if !sess.ExpiresAt.After(time.Now()) {
		// Lazy destruction of the expired row; the worker sweep catches
		// whatever this misses.
		_ = sm.store.DeleteSession(ctx, id)
		return nil, nil
	}
	sm.prime(ctx, sess)
	return sess, nil
}

// Destroy removes a session. Destroying a non-existent session is not an
// error, so the call is idempotent.
func (sm *SessionManager) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	sm.evict(ctx, id)
	if err := sm.store.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("shared: delete session: %w", err)
	}
	return nil
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// ReadCookie extracts the session id from the request cookie, empty when the
// cookie is absent.
func (sm *SessionManager) ReadCookie(r *http.Request) string {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// SetCookie writes the session cookie for sess.
func (sm *SessionManager) SetCookie(w http.ResponseWriter, sess *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})
}

// ClearCookie expires the session cookie on the client.
func (sm *SessionManager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (sm *SessionManager) cached(ctx context.Context, id string) *Session {
	if sm.cache == nil {
		return nil
	}
	data, err := sm.cache.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		return nil
	}
	var stored sessionPayload
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil
	}
	return &Session{
		ID:        id,
		UserID:    stored.UserID,
		CreatedAt: stored.CreatedAt,
		ExpiresAt: stored.ExpiresAt,
	}
}

// prime is best-effort: a cache failure never fails the request.
func (sm *SessionManager) prime(ctx context.Context, sess *Session) {
	if sm.cache == nil {
		return
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(sessionPayload{
		UserID:    sess.UserID,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	})
	if err != nil {
		return
	}
	_ = sm.cache.Set(ctx, sessionKey(sess.ID), data, ttl).Err()
}

func (sm *SessionManager) evict(ctx context.Context, id string) {
	if sm.cache == nil {
		return
	}
	if err := sm.cache.Del(ctx, sessionKey(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return
	}
}

func sessionKey(id string) string {
	return "session:" + id
}

// generateSessionID returns a 256-bit random identifier. Session ids must be
// unguessable, so a RNG failure is surfaced instead of falling back to a
// weaker source.
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
