package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logiref/internal/core/apperror"
	"logiref/internal/core/idempotency"
	"logiref/internal/domain/auth"
	"logiref/internal/domain/reference"
	v1 "logiref/internal/infrastructure/http/v1"
	"logiref/internal/infrastructure/http/v1/handlers"
	"logiref/internal/infrastructure/storage/sqlite"
	"logiref/pkg/logger"
)

const testSecret = "test-secret"

type testEnv struct {
	router *gin.Engine
	store  *sqlite.Store
	refs   *sqlite.ReferenceRepo
	roles  *sqlite.RoleRepo
	jwt    *auth.JWTService
}

func newTestEnv(t *testing.T, idem idempotency.Store) *testEnv {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	refs := sqlite.NewReferenceRepo(store)
	roles := sqlite.NewRoleRepo(store)
	svc, err := reference.NewService(reference.ServiceConfig{
		Repo:      refs,
		TxManager: store,
		Config: reference.Config{
			MaxRetries:     3,
			ReservationTTL: time.Hour,
			RetryBackoff:   time.Millisecond,
			MaxCount:       100,
		},
		Logger: logger.NewNop(),
	})
	require.NoError(t, err)

	jwtSvc := auth.NewJWTService(auth.DefaultJWTConfig(testSecret))
	router := v1.NewRouter(v1.RouterConfig{
		Logger:       logger.NewNop(),
		JWTValidator: jwtSvc,
		Authorizer:   auth.NewGate(roles),
		References:   svc,
		Health:       handlers.NewHealthHandler(store, "sqlite", "test", nil),
		Idempotency:  idem,
		Mode:         gin.TestMode,
	})

	return &testEnv{router: router, store: store, refs: refs, roles: roles, jwt: jwtSvc}
}

func (e *testEnv) token(t *testing.T, userID, role string) string {
	t.Helper()
	if role != "" {
		require.NoError(t, e.roles.UpsertRole(context.Background(), userID, userID+"@example.com", role))
	}
	tok, _, err := e.jwt.GenerateAccessToken(userID, userID+"@example.com", "", time.Minute)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRouter_Health(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_Authentication(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/references/asli", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			body := decode(t, w)
			assert.Equal(t, apperror.CodeUnauthorized, body["code"])
			assert.Equal(t, "unauthorized", body["message"])
		})
	}

	other := auth.NewJWTService(auth.DefaultJWTConfig("other-secret"))
	tok, _, err := other.GenerateAccessToken("u1", "", "admin", time.Minute)
	require.NoError(t, err)
	w := env.do(t, http.MethodPost, "/api/v1/references/asli", tok, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_Authorization(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/v1/references/asli", env.token(t, "customer", "cliente"), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "access restricted", decode(t, w)["message"])

	w = env.do(t, http.MethodPost, "/api/v1/references/asli", env.token(t, "ghost", ""), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "could not validate role", decode(t, w)["message"])

	n, err := env.refs.PurgeExpired(context.Background(), time.Now().Add(48*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n, "rejected requests must not reserve anything")
}

func TestRouter_AllocateAsli(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	require.NoError(t, env.refs.InsertIdentifiers(ctx, reference.AsliScheme().Source, "A0001", " a0003 ", "junk"))
	tok := env.token(t, "staff", "operador")

	w := env.do(t, http.MethodPost, "/api/v1/references/asli", tok, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, map[string]any{"refAsli": "A0002"}, decode(t, w))

	w = env.do(t, http.MethodPost, "/api/v1/references/asli", tok, `{"count": 3}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, map[string]any{"refAsliList": []any{"A0004", "A0005", "A0006"}}, decode(t, w))

	w = env.do(t, http.MethodPost, "/api/v1/references/asli", tok, `{}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, map[string]any{"refAsli": "A0007"}, decode(t, w))
}

func TestRouter_AllocateAsliValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.token(t, "staff", "admin")

	tests := []struct {
		name string
		body string
	}{
		{"zero", `{"count": 0}`},
		{"negative", `{"count": -2}`},
		{"over limit", `{"count": 101}`},
		{"not a number", `{"count": "three"}`},
		{"malformed", `{"count":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/references/asli", tok, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, apperror.CodeValidation, decode(t, w)["code"])
		})
	}
}

func TestRouter_AllocateExterna(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	require.NoError(t, env.refs.InsertIdentifiers(ctx, reference.ExternaScheme().Source,
		"FAS2526KIW001", "FAS2526KIW003", "ZZZ2526KIW002"))
	tok := env.token(t, "staff", "operador")

	w := env.do(t, http.MethodPost, "/api/v1/references/externa", tok,
		`{"cliente": "fruit andes sur", "especie": "kiwi"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, map[string]any{"refExterna": "FAS2526KIW002"}, decode(t, w))

	w = env.do(t, http.MethodPost, "/api/v1/references/externa", tok,
		`{"client": "Fruit Andes Sur", "species": "Kiwi", "count": 2}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, map[string]any{"refExternas": []any{"FAS2526KIW004", "FAS2526KIW005"}}, decode(t, w))

	w = env.do(t, http.MethodPost, "/api/v1/references/externa", tok, `{"cliente": "acme", "especie": "  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_GenericAllocateAndPreview(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.token(t, "staff", "admin")

	w := env.do(t, http.MethodGet, "/api/v1/references/asli/preview?count=2", tok, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	preview := decode(t, w)
	assert.Equal(t, []any{"A0001", "A0002"}, preview["references"])
	assert.NotContains(t, preview, "reservedUntil")

	// Preview does not reserve, so a second preview sees the same identifiers.
	w = env.do(t, http.MethodGet, "/api/v1/references/asli/preview?count=2", tok, "")
	assert.Equal(t, []any{"A0001", "A0002"}, decode(t, w)["references"])

	w = env.do(t, http.MethodPost, "/api/v1/references/asli", tok, `{"count": 1}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/references/externa", tok, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/references/nope", tok, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperror.CodeNotFound, decode(t, w)["code"])

	w = env.do(t, http.MethodGet, "/api/v1/references/asli/preview?count=x", tok, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/references/schemes", tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	items, ok := decode(t, w)["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.Equal(t, "asli", items[0].(map[string]any)["name"])
	assert.Equal(t, "registros.ref_cliente", items[1].(map[string]any)["source"])
}

func TestRouter_IdempotentReplay(t *testing.T) {
	idem := newMemIdempotency()
	env := newTestEnv(t, idem)
	tok := env.token(t, "staff", "admin")

	first := env.do(t, http.MethodPost, "/api/v1/references/asli", tok, `{"count": 2}`, "X-Idempotency-Key", "k1")
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	replay := env.do(t, http.MethodPost, "/api/v1/references/asli", tok, `{"count": 2}`, "X-Idempotency-Key", "k1")
	require.Equal(t, http.StatusOK, replay.Code)
	assert.JSONEq(t, first.Body.String(), replay.Body.String())
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))

	mismatch := env.do(t, http.MethodPost, "/api/v1/references/asli", tok, `{"count": 3}`, "X-Idempotency-Key", "k1")
	assert.Equal(t, http.StatusConflict, mismatch.Code)

	next := env.do(t, http.MethodPost, "/api/v1/references/asli", tok, "")
	assert.Equal(t, map[string]any{"refAsli": "A0003"}, decode(t, next))

	failed := env.do(t, http.MethodPost, "/api/v1/references/asli", tok, `{"count": 0}`, "X-Idempotency-Key", "k2")
	assert.Equal(t, http.StatusBadRequest, failed.Code)
	assert.Equal(t, idempotency.StatusFailed, idem.status("k2"))
}

type memEntry struct {
	hash   string
	status idempotency.Status
	replay *idempotency.Replay
}

type memIdempotency struct {
	mu      sync.Mutex
	entries map[string]*memEntry
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{entries: map[string]*memEntry{}}
}

func (m *memIdempotency) status(key string) idempotency.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		return e.status
	}
	return ""
}

func (m *memIdempotency) AcquireKey(_ context.Context, key, _, _, requestHash string) (*idempotency.Replay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		m.entries[key] = &memEntry{hash: requestHash, status: idempotency.StatusPending}
		return nil, nil
	}
	if e.hash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key)
	}
	if e.replay == nil {
		return nil, apperror.NewIdempotencyConflict(key)
	}
	return e.replay, nil
}

func (m *memIdempotency) finish(key string, status idempotency.Status, code int, ct string, response any) error {
	body, err := idempotency.EncodeBody(response)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[key]
	e.status = status
	e.replay = &idempotency.Replay{
		StatusCode:  idempotency.NormalizeStatus(code),
		ContentType: idempotency.NormalizeContentType(ct),
		Body:        body,
	}
	return nil
}

func (m *memIdempotency) CompleteKey(_ context.Context, key string, code int, ct string, response any) error {
	return m.finish(key, idempotency.StatusSuccess, code, ct, response)
}

func (m *memIdempotency) FailKey(_ context.Context, key string, code int, ct string, response any) error {
	return m.finish(key, idempotency.StatusFailed, code, ct, response)
}

func (m *memIdempotency) ReleaseKey(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && e.status == idempotency.StatusPending {
		delete(m.entries, key)
	}
	return nil
}

func (m *memIdempotency) CleanupExpired(context.Context) (int64, error) {
	return 0, nil
}
