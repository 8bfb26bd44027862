package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserStore struct {
	users map[string]struct{ id, hash string }
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]struct{ id, hash string }{}}
}

func (f *fakeUserStore) CreateUser(_ context.Context, email, hash string) (string, error) {
	if _, ok := f.users[email]; ok {
		return "", &pq.Error{Code: "23505"}
	}
	id := fmt.Sprintf("user-%d", len(f.users)+1)
	f.users[email] = struct{ id, hash string }{id, hash}
	return id, nil
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (string, string, error) {
	u, ok := f.users[email]
	if !ok {
		return "", "", fmt.Errorf("no such user")
	}
	return u.id, u.hash, nil
}

func newAuthEcho(store UserStore, secret string) *echo.Echo {
	e := echo.New()
	h := &AuthHandler{Store: store, Secret: []byte(secret)}
	h.Register(e.Group("/api/auth"))
	return e
}

func postJSON(e *echo.Echo, path string, payload interface{}) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSignupAndLogin(t *testing.T) {
	store := newFakeUserStore()
	e := newAuthEcho(store, "test-secret")

	rec := postJSON(e, "/api/auth/signup", AuthSignupRequest{Email: "a@example.com", Password: "hunter2hunter2"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var created IDResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil || created.ID == "" {
		t.Fatalf("signup response missing id: %s", rec.Body.String())
	}

	rec = postJSON(e, "/api/auth/login", AuthLoginRequest{Email: "a@example.com", Password: "hunter2hunter2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var tok TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &tok); err != nil || tok.Token == "" {
		t.Fatalf("login response missing token: %s", rec.Body.String())
	}
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	store := newFakeUserStore()
	e := newAuthEcho(store, "test-secret")

	if rec := postJSON(e, "/api/auth/signup", AuthSignupRequest{Email: "a@example.com", Password: "hunter2hunter2"}); rec.Code != http.StatusCreated {
		t.Fatalf("first signup status = %d", rec.Code)
	}
	if rec := postJSON(e, "/api/auth/signup", AuthSignupRequest{Email: "a@example.com", Password: "hunter2hunter2"}); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate signup status = %d, want 409", rec.Code)
	}
}

func TestSignupValidatesPayload(t *testing.T) {
	e := newAuthEcho(newFakeUserStore(), "test-secret")

	if rec := postJSON(e, "/api/auth/signup", AuthSignupRequest{Email: "not-an-email", Password: "hunter2hunter2"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad email status = %d, want 400", rec.Code)
	}
	if rec := postJSON(e, "/api/auth/signup", AuthSignupRequest{Email: "a@example.com", Password: "short"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("short password status = %d, want 400", rec.Code)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	store := newFakeUserStore()
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse-battery"), bcrypt.MinCost)
	store.users["a@example.com"] = struct{ id, hash string }{"user-1", string(hash)}
	e := newAuthEcho(store, "test-secret")

	if rec := postJSON(e, "/api/auth/login", AuthLoginRequest{Email: "a@example.com", Password: "wrong-password"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d, want 401", rec.Code)
	}
	if rec := postJSON(e, "/api/auth/login", AuthLoginRequest{Email: "nobody@example.com", Password: "whatever-pass"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddlewareRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	e := echo.New()
	g := e.Group("/api/me")
	g.Use(authMiddleware(secret))
	g.GET("", func(c echo.Context) error {
		return c.JSON(http.StatusOK, MeResponse{UserID: userID(c)})
	})

	token, err := signJWT("user-7", secret, time.Hour)
	if err != nil {
		t.Fatalf("signJWT: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authed request status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var me MeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil || me.UserID != "user-7" {
		t.Fatalf("me = %+v, want user-7", me)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated request status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d, want 401", rec.Code)
	}
}
