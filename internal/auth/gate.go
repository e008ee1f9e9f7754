package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tasklight/tasklight/internal/platform/httpx"
	"github.com/tasklight/tasklight/internal/shared"
)

type userContextKey struct{}

// Gate derives the current user from the request's session cookie. It is the
// single enforcement point for every protected route: handlers take the
// scoping identity from the gate, never from caller-supplied input.
type Gate struct {
	logger   *slog.Logger
	sessions *shared.SessionManager
	service  *Service
}

// NewGate constructs a Gate.
func NewGate(logger *slog.Logger, sessions *shared.SessionManager, service *Service) *Gate {
	return &Gate{logger: logger, sessions: sessions, service: service}
}

// Attach resolves the session cookie and, when valid, stores the session and
// its user in the request context. An absent cookie, an invalid or expired
// session, and an orphaned session (user row gone) all leave the request
// unauthenticated without failing it.
func (g *Gate) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := g.sessions.ReadCookie(r)
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := g.sessions.Resolve(r.Context(), id)
		if err != nil {
			g.logger.Error("resolve session", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		if sess == nil {
			next.ServeHTTP(w, r)
			return
		}

		user, err := g.service.UserByID(r.Context(), sess.UserID)
		if err != nil {
			if errors.Is(err, httpx.ErrNotFound) {
				next.ServeHTTP(w, r)
				return
			}
			g.logger.Error("load session user", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}

		ctx := shared.ContextWithSession(r.Context(), sess)
		ctx = context.WithValue(ctx, userContextKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser rejects unauthenticated requests with 401.
func (g *Gate) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CurrentUser(r.Context()) == nil {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CurrentUser returns the authenticated user from context, nil when the
// request carried no valid session.
func CurrentUser(ctx context.Context) *User {
	user, _ := ctx.Value(userContextKey{}).(*User)
	return user
}

// ContextWithUser stores a user in context. Exposed for handler tests.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}
