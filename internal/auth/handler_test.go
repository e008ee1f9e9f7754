package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/tasklight/tasklight/internal/auth"
	"github.com/tasklight/tasklight/internal/shared"
	_ "github.com/tasklight/tasklight/testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAuthRouter(t *testing.T, repo auth.Repository) (http.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(repo, redisClient, "test_session", time.Hour, false)
	handler := auth.NewHandler(testLogger(), auth.NewService(repo, auth.NewHasher(4)), sessionManager)

	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	return r, sessionManager
}

func postJSON(router http.Handler, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func decodeError(t *testing.T, res *httptest.ResponseRecorder) (code, message string) {
	t.Helper()
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	return payload.Error.Code, payload.Error.Message
}

func TestRegisterSuccess(t *testing.T) {
	repo := newMemRepo()
	router, sessionManager := newAuthRouter(t, repo)

	res := postJSON(router, "/auth/register",
		`{"name":"Ann","email":"a@x.com","password":"secret1"}`)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}

	var payload struct {
		User struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.User.Email != "a@x.com" || payload.User.Name != "Ann" {
		t.Fatalf("unexpected user echo: %+v", payload.User)
	}
	if strings.Contains(res.Body.String(), "password") {
		t.Fatalf("response must not leak password material")
	}

	cookies := res.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != sessionManager.CookieName() {
		t.Fatalf("expected session cookie to be set")
	}
	sess, err := sessionManager.Resolve(context.Background(), cookies[0].Value)
	if err != nil || sess == nil {
		t.Fatalf("expected issued session to resolve, got (%v, %v)", sess, err)
	}
	if sess.UserID != payload.User.ID {
		t.Fatalf("session bound to wrong user")
	}
}

func TestRegisterValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty name", `{"name":"","email":"a@x.com","password":"secret1"}`},
		{"name too long", `{"name":"` + strings.Repeat("a", 51) + `","email":"a@x.com","password":"secret1"}`},
		{"bad email", `{"name":"Ann","email":"not-an-email","password":"secret1"}`},
		{"short password", `{"name":"Ann","email":"a@x.com","password":"short"}`},
		{"malformed body", `{"name":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemRepo()
			router, _ := newAuthRouter(t, repo)
			res := postJSON(router, "/auth/register", tc.body)
			if res.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", res.Code)
			}
			if code, _ := decodeError(t, res); code != "VALIDATION_ERROR" {
				t.Fatalf("expected VALIDATION_ERROR, got %q", code)
			}
			if len(repo.users) != 0 {
				t.Fatalf("expected no user row on validation failure")
			}
		})
	}
}

func TestRegisterDuplicateEmailConflict(t *testing.T) {
	repo := newMemRepo()
	router, _ := newAuthRouter(t, repo)

	first := postJSON(router, "/auth/register",
		`{"name":"Ann","email":"a@x.com","password":"secret1"}`)
	if first.Code != http.StatusCreated {
		t.Fatalf("first register: %d", first.Code)
	}

	second := postJSON(router, "/auth/register",
		`{"name":"Ann Again","email":"a@x.com","password":"another1"}`)
	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", second.Code)
	}
	if code, _ := decodeError(t, second); code != "CONFLICT" {
		t.Fatalf("expected CONFLICT, got %q", code)
	}
}

func TestLoginSuccessAndFailure(t *testing.T) {
	repo := newMemRepo()
	router, sessionManager := newAuthRouter(t, repo)

	if res := postJSON(router, "/auth/register",
		`{"name":"Ann","email":"a@x.com","password":"secret1"}`); res.Code != http.StatusCreated {
		t.Fatalf("register: %d", res.Code)
	}

	ok := postJSON(router, "/auth/login", `{"email":"a@x.com","password":"secret1"}`)
	if ok.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", ok.Code, ok.Body.String())
	}
	cookies := ok.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != sessionManager.CookieName() {
		t.Fatalf("expected session cookie on login")
	}

	wrongPass := postJSON(router, "/auth/login", `{"email":"a@x.com","password":"wrongpass"}`)
	unknown := postJSON(router, "/auth/login", `{"email":"b@x.com","password":"secret1"}`)
	for _, res := range []*httptest.ResponseRecorder{wrongPass, unknown} {
		if res.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", res.Code)
		}
	}
	wrongCode, wrongMsg := decodeError(t, wrongPass)
	unknownCode, unknownMsg := decodeError(t, unknown)
	if wrongCode != "INVALID_CREDENTIALS" || unknownCode != wrongCode || unknownMsg != wrongMsg {
		t.Fatalf("login failures must be identical: (%s,%s) vs (%s,%s)", wrongCode, wrongMsg, unknownCode, unknownMsg)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	router, sessionManager := newAuthRouter(t, repo)

	registered := postJSON(router, "/auth/register",
		`{"name":"Ann","email":"a@x.com","password":"secret1"}`)
	cookie := registered.Result().Cookies()[0]

	first := postJSON(router, "/auth/logout", "", cookie)
	if first.Code != http.StatusOK || !strings.Contains(first.Body.String(), `"success":true`) {
		t.Fatalf("first logout: %d %s", first.Code, first.Body.String())
	}
	sess, err := sessionManager.Resolve(context.Background(), cookie.Value)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sess != nil {
		t.Fatalf("expected session destroyed after logout")
	}

	second := postJSON(router, "/auth/logout", "", cookie)
	if second.Code != http.StatusOK || !strings.Contains(second.Body.String(), `"success":true`) {
		t.Fatalf("second logout must also succeed: %d", second.Code)
	}
}
