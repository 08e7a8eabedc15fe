package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"gamevault/internal/server/auth"
	"gamevault/internal/server/repository/sqlstore"
	"gamevault/internal/server/service"
	"gamevault/internal/shared/models"
	"gamevault/internal/shared/passhash"
)

func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", strings.ReplaceAll(t.Name(), "/", "_"))
	store, err := sqlstore.Open(context.Background(), sqlstore.SQLite, dsn, sqlstore.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	_, err = store.Migrate(context.Background())
	require.NoError(t, err)
	return store
}

func newTestServerWith(t *testing.T, store *sqlstore.Store, opts Options) http.Handler {
	t.Helper()
	svcs := service.NewServices(store, auth.NewSessions([]byte("test")), &passhash.Bcrypt{Cost: bcrypt.MinCost}, 100)
	return NewRouter(svcs, store, nil, opts)
}

func newTestServer(t *testing.T) http.Handler {
	return newTestServerWith(t, newTestStore(t), Options{MaxRequestBytes: 1 << 20})
}

func doJSON(t *testing.T, ts http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	switch b := body.(type) {
	case nil:
		buf = &bytes.Buffer{}
	case string:
		buf = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		buf = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	ts.ServeHTTP(rr, req)
	return rr
}

func errorOf(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var e models.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &e), rr.Body.String())
	return e.Error
}

// signup registers email and returns an Authorization header for it.
func signup(t *testing.T, ts http.Handler, email string) map[string]string {
	t.Helper()
	creds := map[string]string{"email": email, "password": "pass"}
	rr := doJSON(t, ts, http.MethodPost, "/api/auth/register", creds, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rr = doJSON(t, ts, http.MethodPost, "/api/auth/login", creds, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var tok models.TokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tok))
	require.NotEmpty(t, tok.Token)
	return map[string]string{"Authorization": "Bearer " + tok.Token}
}

func createGame(t *testing.T, ts http.Handler, authz map[string]string, body any) models.Game {
	t.Helper()
	rr := doJSON(t, ts, http.MethodPost, "/api/games", body, authz)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var g models.Game
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &g))
	return g
}

func TestPublicEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rr := doJSON(t, ts, http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())

	rr = doJSON(t, ts, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = doJSON(t, ts, http.MethodGet, "/openapi.yaml", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/yaml", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "/api/games/{id}")
	assert.Contains(t, rr.Body.String(), "max_page_size")
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	rr := doJSON(t, ts, http.MethodPost, "/api/auth/register", map[string]string{"email": " New@Example.com", "password": "pw", "name": "Neo"}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var acc map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &acc))
	assert.Equal(t, "new@example.com", acc["email"])
	assert.Equal(t, "Neo", acc["name"])
	assert.NotEmpty(t, acc["id"])
	assert.NotContains(t, rr.Body.String(), "password")

	rr = doJSON(t, ts, http.MethodPost, "/api/auth/register", map[string]string{"email": "NEW@example.com ", "password": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "email already in use", errorOf(t, rr))

	rr = doJSON(t, ts, http.MethodPost, "/api/auth/register", map[string]string{"email": "a@b.com"}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "email and password required", errorOf(t, rr))

	rr = doJSON(t, ts, http.MethodPost, "/api/auth/login", map[string]string{"email": "new@example.com", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	wrongPass := errorOf(t, rr)
	rr = doJSON(t, ts, http.MethodPost, "/api/auth/login", map[string]string{"email": "ghost@example.com", "password": "pw"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, wrongPass, errorOf(t, rr))
	assert.Equal(t, "invalid credentials", wrongPass)

	rr = doJSON(t, ts, http.MethodPost, "/api/auth/login", map[string]string{"password": "pw"}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMalformedAndOversizedBodies(t *testing.T) {
	ts := newTestServerWith(t, newTestStore(t), Options{MaxRequestBytes: 64})

	rr := doJSON(t, ts, http.MethodPost, "/api/auth/register", `{"email":`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid json", errorOf(t, rr))

	big := fmt.Sprintf(`{"email":"a@b.com","password":%q}`, strings.Repeat("x", 128))
	rr = doJSON(t, ts, http.MethodPost, "/api/auth/register", big, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestAuthMiddleware(t *testing.T) {
	ts := newTestServer(t)
	authz := signup(t, ts, "gate@example.com")
	token := strings.TrimPrefix(authz["Authorization"], "Bearer ")

	rr := doJSON(t, ts, http.MethodGet, "/api/games", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "missing token", errorOf(t, rr))

	rr = doJSON(t, ts, http.MethodGet, "/api/games", nil, map[string]string{"Authorization": "Bearer "})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "missing token", errorOf(t, rr))

	for _, bad := range []string{"Bearer garbage", "Bearer " + token + "x", "Basic dXNlcjpwYXNz"} {
		rr = doJSON(t, ts, http.MethodGet, "/api/games", nil, map[string]string{"Authorization": bad})
		assert.Equal(t, http.StatusUnauthorized, rr.Code, bad)
		assert.Equal(t, "invalid token", errorOf(t, rr), bad)
	}

	for _, good := range []string{"Bearer " + token, "bearer " + token, token} {
		rr = doJSON(t, ts, http.MethodGet, "/api/games", nil, map[string]string{"Authorization": good})
		assert.Equal(t, http.StatusOK, rr.Code, good)
	}

	rr = doJSON(t, ts, http.MethodPost, "/api/games", map[string]string{"title": "x"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = doJSON(t, ts, http.MethodDelete, "/api/games/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGamesCRUD(t *testing.T) {
	ts := newTestServer(t)
	alice := signup(t, ts, "alice@example.com")
	bob := signup(t, ts, "bob@example.com")

	rr := doJSON(t, ts, http.MethodPost, "/api/games", map[string]any{"title": " ", "hoursPlayed": "5"}, alice)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "title required", errorOf(t, rr))

	g := createGame(t, ts, alice, map[string]any{"title": "Foo", "hoursPlayed": "5", "platform": "PC", "ownerId": "someone-else"})
	assert.Equal(t, 5.0, g.HoursPlayed)
	assert.NotEqual(t, "someone-else", g.OwnerID)
	assert.False(t, g.CreatedAt.IsZero())

	rr = doJSON(t, ts, http.MethodPut, "/api/games/"+g.ID, map[string]any{"status": "playing", "favorite": "true"}, alice)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var upd models.Game
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &upd))
	assert.Equal(t, "Foo", upd.Title)
	assert.Equal(t, "playing", *upd.Status)
	assert.True(t, upd.Favorite)

	rr = doJSON(t, ts, http.MethodPatch, "/api/games/"+g.ID, map[string]any{"hoursPlayed": 9}, alice)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, ts, http.MethodPut, "/api/games/"+g.ID, map[string]any{"title": "Stolen"}, bob)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = doJSON(t, ts, http.MethodDelete, "/api/games/"+g.ID, nil, bob)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	missing := uuid.NewString()
	rr = doJSON(t, ts, http.MethodPut, "/api/games/"+missing, map[string]any{"title": "x"}, alice)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = doJSON(t, ts, http.MethodDelete, "/api/games/"+missing, nil, bob)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, ts, http.MethodDelete, "/api/games/not-an-id", nil, alice)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid game id", errorOf(t, rr))

	rr = doJSON(t, ts, http.MethodDelete, "/api/games/"+g.ID, nil, alice)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
	rr = doJSON(t, ts, http.MethodDelete, "/api/games/"+g.ID, nil, alice)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListGames(t *testing.T) {
	ts := newTestServer(t)
	alice := signup(t, ts, "alice@example.com")
	bob := signup(t, ts, "bob@example.com")

	for i := 0; i < 20; i++ {
		createGame(t, ts, alice, map[string]any{"title": fmt.Sprintf("Quest %02d", i), "platform": "PC"})
	}
	createGame(t, ts, bob, map[string]any{"title": "Quest of Bob", "platform": "PC"})

	list := func(query string) models.GameList {
		t.Helper()
		rr := doJSON(t, ts, http.MethodGet, "/api/games"+query, nil, alice)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var l models.GameList
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &l))
		return l
	}

	l := list("?limit=8&page=1")
	assert.Len(t, l.Data, 8)
	assert.Equal(t, models.ListMeta{Total: 20, Page: 1, Limit: 8}, l.Meta)
	assert.Equal(t, "Quest 19", l.Data[0].Title)

	l = list("?limit=8&page=3")
	assert.Len(t, l.Data, 4)
	assert.Equal(t, 20, l.Meta.Total)

	l = list("?page=abc&limit=-1&platform=all&status=all")
	assert.Equal(t, models.ListMeta{Total: 20, Page: 1, Limit: 8}, l.Meta)

	l = list("?q=BOB&platform=PC")
	assert.Zero(t, l.Meta.Total)
	assert.Equal(t, "[]", compactData(t, l))

	l = list("?page=9223372036854775807")
	assert.Empty(t, l.Data)
	assert.Equal(t, 20, l.Meta.Total)
	assert.Equal(t, 8, l.Meta.Limit)

	l = list("?limit=1000")
	assert.Equal(t, 100, l.Meta.Limit)
	assert.Len(t, l.Data, 20)

	l = list("?q=quest%2007")
	require.Len(t, l.Data, 1)
	assert.Equal(t, "Quest 07", l.Data[0].Title)
}

func compactData(t *testing.T, l models.GameList) string {
	t.Helper()
	b, err := json.Marshal(l.Data)
	require.NoError(t, err)
	return string(b)
}

func TestAuthThrottle(t *testing.T) {
	ts := newTestServerWith(t, newTestStore(t), Options{AuthRateLimit: 0.001, AuthRateBurst: 2})
	creds := map[string]string{"email": "t@example.com", "password": "bad"}

	for i := 0; i < 2; i++ {
		rr := doJSON(t, ts, http.MethodPost, "/api/auth/login", creds, nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	}
	rr := doJSON(t, ts, http.MethodPost, "/api/auth/login", creds, nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	assert.Equal(t, "too many requests", errorOf(t, rr))

	// Game routes are not throttled.
	rr = doJSON(t, ts, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestStoreFailureIsHidden(t *testing.T) {
	store := newTestStore(t)
	ts := newTestServerWith(t, store, Options{})
	authz := signup(t, ts, "down@example.com")
	require.NoError(t, store.Close())

	rr := doJSON(t, ts, http.MethodGet, "/api/games", nil, authz)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "server error", errorOf(t, rr))
	assert.NotContains(t, rr.Body.String(), "sql")

	rr = doJSON(t, ts, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestIPLimiterSweepsIdleClients(t *testing.T) {
	l := newIPLimiter(1, 1)
	now := l.now()
	l.now = func() time.Time { return now }
	for i := 0; i < limiterSweepSize; i++ {
		l.allow(fmt.Sprintf("10.0.%d.%d", i/256, i%256))
	}
	require.Len(t, l.clients, limiterSweepSize)

	now = now.Add(limiterIdleTTL + time.Second)
	assert.True(t, l.allow("192.0.2.1"))
	assert.Len(t, l.clients, 1)
}

func TestAuthThrottleIgnoresForwardedHeaders(t *testing.T) {
	ts := newTestServerWith(t, newTestStore(t), Options{AuthRateLimit: 0.001, AuthRateBurst: 1})
	creds := map[string]string{"email": "t@example.com", "password": "bad"}

	var codes []int
	for i := 0; i < 5; i++ {
		spoofed := fmt.Sprintf("203.0.113.%d", i+1)
		rr := doJSON(t, ts, http.MethodPost, "/api/auth/login", creds, map[string]string{
			"X-Forwarded-For": spoofed,
			"X-Real-IP":       spoofed,
		})
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{401, 429, 429, 429, 429}, codes)
}

func TestAuthThrottleTrustedProxy(t *testing.T) {
	ts := newTestServerWith(t, newTestStore(t), Options{AuthRateLimit: 0.001, AuthRateBurst: 1, TrustProxyHeaders: true})
	creds := map[string]string{"email": "t@example.com", "password": "bad"}
	login := func(ip string) int {
		return doJSON(t, ts, http.MethodPost, "/api/auth/login", creds, map[string]string{"X-Real-IP": ip}).Code
	}

	assert.Equal(t, http.StatusUnauthorized, login("198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, login("198.51.100.1"))
	assert.Equal(t, http.StatusUnauthorized, login("198.51.100.2"))
}

func TestUpdateWithEmptyBody(t *testing.T) {
	ts := newTestServer(t)
	alice := signup(t, ts, "alice@example.com")
	bob := signup(t, ts, "bob@example.com")
	g := createGame(t, ts, alice, map[string]any{"title": "Empty"})

	rr := doJSON(t, ts, http.MethodPut, "/api/games/"+uuid.NewString(), "", alice)
	assert.Equal(t, http.StatusNotFound, rr.Code, rr.Body.String())

	rr = doJSON(t, ts, http.MethodPut, "/api/games/"+g.ID, "", bob)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = doJSON(t, ts, http.MethodPatch, "/api/games/"+g.ID, "", alice)
	require.Equal(t, http.StatusOK, rr.Code)
	var same models.Game
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &same))
	assert.Equal(t, "Empty", same.Title)

	rr = doJSON(t, ts, http.MethodPost, "/api/games", "", alice)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "title required", errorOf(t, rr))

	rr = doJSON(t, ts, http.MethodPost, "/api/auth/register", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "email and password required", errorOf(t, rr))
}

func TestRegisterPasswordTooLong(t *testing.T) {
	ts := newTestServer(t)
	rr := doJSON(t, ts, http.MethodPost, "/api/auth/register",
		map[string]string{"email": "long@example.com", "password": strings.Repeat("x", 100)}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "password too long", errorOf(t, rr))
}
