package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"

	"github.com/faucetdb/rolekeeper/internal/audit"
	"github.com/faucetdb/rolekeeper/internal/catalog"
	"github.com/faucetdb/rolekeeper/internal/config"
	"github.com/faucetdb/rolekeeper/internal/dedup"
	"github.com/faucetdb/rolekeeper/internal/model"
	"github.com/faucetdb/rolekeeper/internal/server/middleware"
	"github.com/faucetdb/rolekeeper/internal/service"
)

const (
	testJWTSecret = "test-secret-for-handler-tests"
	testPassword  = "supersecretpassword"
)

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	store   *config.Store
	authSvc *service.AuthService
	advance func(time.Duration)
	router  chi.Router
}

// newTestEnv creates a fresh test environment with an in-memory store, a
// fake-clocked Edit Service, and a Chi router with routes mounted. Instead
// of the JWT middleware, the router trusts the X-Test-Actor and X-Test-Super
// headers.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := config.NewStore("") // in-memory SQLite
	if err != nil {
		t.Fatalf("config.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	authSvc := service.NewAuthService(store, testJWTSecret)
	edits := service.NewEditService(store,
		dedup.NewMemory(dedup.WithClock(clock)),
		audit.NewStoreSink(store),
		service.WithClock(clock), service.WithLogger(logger))

	adminHandler := NewAdminHandler(store, edits, logger)
	sessionHandler := NewSessionHandler(authSvc, 0, logger)

	r := chi.NewRouter()
	r.Use(testPrincipal)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/session", sessionHandler.Login)
		r.Delete("/session", sessionHandler.Logout)

		r.Get("/admins", adminHandler.ListAdmins)
		r.Get("/admins/{adminId}", adminHandler.GetAdmin)
		r.Put("/admins/{adminId}", adminHandler.UpdateAdmin)
		r.Get("/admins/{adminId}/history", adminHandler.AdminHistory)
		r.Get("/role-options", adminHandler.RoleOptions)
	})

	return &testEnv{
		store:   store,
		authSvc: authSvc,
		advance: clock.Advance,
		router:  r,
	}
}

func testPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get("X-Test-Actor"); raw != "" {
			id, _ := strconv.ParseInt(raw, 10, 64)
			r = r.WithContext(middleware.WithPrincipal(r.Context(), &middleware.Principal{
				AdminID:      id,
				IsSuperAdmin: r.Header.Get("X-Test-Super") == "1",
			}))
		}
		next.ServeHTTP(w, r)
	})
}

// seedAdmin creates an active admin with the role's default permissions.
func (e *testEnv) seedAdmin(t *testing.T, email string, role model.Role) *model.Admin {
	t.Helper()
	hash, err := service.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	admin := &model.Admin{
		Email:        email,
		PasswordHash: hash,
		Name:         "Test Admin",
		Role:         role,
		Permissions:  catalog.DefaultPermissionsFor(role),
		IsActive:     true,
	}
	if err := e.store.CreateAdmin(context.Background(), admin); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	return admin
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	return e.doAs(t, nil, method, path, body)
}

// doAs executes a request on behalf of actor.
func (e *testEnv) doAs(t *testing.T, actor *model.Admin, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != nil {
		req.Header.Set("X-Test-Actor", strconv.FormatInt(actor.ID, 10))
		if actor.IsSuperAdmin() {
			req.Header.Set("X-Test-Super", "1")
		}
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

// adminBody mirrors adminToMap for decoding responses.
type adminBody struct {
	ID           int64    `json:"id"`
	Email        string   `json:"email"`
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	RoleLabel    string   `json:"role_label"`
	Permissions  []string `json:"permissions"`
	AccessLevel  int      `json:"access_level"`
	Version      int64    `json:"version"`
	IsSuperAdmin bool     `json:"is_super_admin"`
}

type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Context struct {
			Field             string     `json:"field"`
			Reason            string     `json:"reason"`
			Conflict          string     `json:"conflict"`
			Current           *adminBody `json:"current"`
			ClientVersion     *int64     `json:"client_version"`
			RetryAfterSeconds int        `json:"retry_after_seconds"`
		} `json:"context"`
	} `json:"error"`
}
