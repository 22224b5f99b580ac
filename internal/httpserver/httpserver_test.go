package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/cache"
	"github.com/Skotchmaster/storefront/internal/db"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/service/search"
	"github.com/Skotchmaster/storefront/internal/transport"
)

var testSecret = []byte("test-jwt-secret")

type testEnv struct {
	E       *echo.Echo
	DB      *gorm.DB
	MR      *miniredis.Miniredis
	Cache   *cache.Cache
	Auth    *AuthHTTP
	Catalog *CatalogHTTP
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ctx := context.Background()
	gdb, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	c := cache.New(client, "", 0)

	r := repo.New(gdb)
	authH := &AuthHTTP{Svc: &service.AuthService{Repo: r, JWTSecret: testSecret}}
	catalogH := &CatalogHTTP{
		Svc:    &service.ProductService{Store: r, Cache: c},
		Search: &search.Service{Store: r},
	}

	e := NewEcho(slog.New(slog.NewJSONHandler(io.Discard, nil)), nil)
	Register(e, &Deps{
		AuthHandler:    authH,
		CatalogHandler: catalogH,
		HealthHandler:  &HealthHTTP{DB: func(ctx context.Context) error { return db.Ping(ctx, gdb) }, Cache: c},
		JWTSecret:      testSecret,
	})

	return &testEnv{E: e, DB: gdb, MR: mr, Cache: c, Auth: authH, Catalog: catalogH}
}

func (env *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) register(t *testing.T) transport.AuthResponse {
	t.Helper()

	rec := env.do(t, http.MethodPost, "/auth/register", map[string]any{
		"username": "alice", "email": "alice@example.com", "password": "secret1", "firstName": "Alice",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res transport.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		StatusCode int    `json:"statusCode"`
		Message    string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, rec.Code, body.StatusCode)
	return body.Message
}

func TestRegister(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	res := env.register(t)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "alice", res.User.Username)

	rec := env.do(t, http.MethodPost, "/auth/register", map[string]any{
		"username": "alice", "email": "alice2@example.com", "password": "secret1",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User with this username or email already exists", errorMessage(t, rec))
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]any
		msg  string
	}{
		{name: "missing email", body: map[string]any{"username": "bob", "password": "secret1"}, msg: "email is required"},
		{name: "bad email", body: map[string]any{"username": "bob", "email": "nope", "password": "secret1"}, msg: "email must be a valid email"},
		{name: "short password", body: map[string]any{"username": "bob", "email": "b@x.io", "password": "123"}, msg: "password must be min 6"},
	}
	for _, tt := range tests {
		rec := env.do(t, http.MethodPost, "/auth/register", tt.body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, tt.name)
		assert.Equal(t, tt.msg, errorMessage(t, rec), tt.name)
	}
}

func TestRegister_PasswordOverBcryptLimit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	tests := []struct {
		name     string
		password string
		msg      string
	}{
		{name: "ascii over tag limit", password: strings.Repeat("a", 80), msg: "password must be max 72"},
		{name: "multibyte under rune limit", password: strings.Repeat("é", 37), msg: "password must be at most 72 bytes"},
	}
	for _, tt := range tests {
		rec := env.do(t, http.MethodPost, "/auth/register", map[string]any{
			"username": "longpw", "email": "longpw@example.com", "password": tt.password,
		}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, tt.name)
		assert.Equal(t, tt.msg, errorMessage(t, rec), tt.name)
	}

	var count int64
	require.NoError(t, env.DB.Table("users").Count(&count).Error)
	assert.Zero(t, count)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t)

	rec := env.do(t, http.MethodPost, "/auth/login", map[string]any{"usernameOrEmail": "alice@example.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res transport.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "alice", res.User.Username)

	wrongPw := env.do(t, http.MethodPost, "/auth/login", map[string]any{"usernameOrEmail": "alice", "password": "wrong"}, "")
	noUser := env.do(t, http.MethodPost, "/auth/login", map[string]any{"usernameOrEmail": "ghost", "password": "secret1"}, "")
	assert.Equal(t, http.StatusUnauthorized, wrongPw.Code)
	assert.Equal(t, http.StatusUnauthorized, noUser.Code)
	assert.Equal(t, "Invalid credentials", errorMessage(t, wrongPw))
	assert.Equal(t, "Invalid credentials", errorMessage(t, noUser))
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	reg := env.register(t)

	rec := env.do(t, http.MethodPost, "/auth/refresh", map[string]any{"refreshToken": reg.RefreshToken}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/refresh", map[string]any{"refreshToken": reg.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/refresh", map[string]any{}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfile(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	reg := env.register(t)

	rec := env.do(t, http.MethodGet, "/auth/profile", nil, reg.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var user transport.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "Alice", user.FirstName)

	rec = env.do(t, http.MethodGet, "/auth/profile", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	require.NoError(t, repo.New(env.DB).DeleteUser(context.Background(), reg.User.ID))
	rec = env.do(t, http.MethodGet, "/auth/profile", nil, reg.AccessToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProductLifecycle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.register(t).AccessToken

	rec := env.do(t, http.MethodPost, "/products", map[string]any{"name": "Lamp", "price": 19.99, "stock": 3, "category": "Home"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/products", map[string]any{"name": "Lamp", "price": 19.99, "stock": 3, "category": "Home"}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created transport.ProductResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	path := "/products/" + strconv.FormatUint(uint64(created.ID), 10)

	rec = env.do(t, http.MethodGet, "/products", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []transport.ProductResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.True(t, env.MR.Exists(service.AllProductsKey))

	rec = env.do(t, http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPut, path, map[string]any{"stock": 5}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated transport.ProductResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, 5, updated.Stock)
	assert.Equal(t, "Lamp", updated.Name)
	assert.False(t, env.MR.Exists(service.AllProductsKey))

	rec = env.do(t, http.MethodPut, "/products/999", map[string]any{"stock": 5}, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product with ID 999 not found", errorMessage(t, rec))

	rec = env.do(t, http.MethodDelete, path, nil, token)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, path, nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateProduct_Validation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.register(t).AccessToken

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "missing name", body: map[string]any{"price": 1}},
		{name: "zero price", body: map[string]any{"name": "x", "price": 0}},
		{name: "negative stock", body: map[string]any{"name": "x", "price": 1, "stock": -1}},
		{name: "long category", body: map[string]any{"name": "x", "price": 1, "category": string(bytes.Repeat([]byte("c"), 51))}},
	}
	for _, tt := range tests {
		rec := env.do(t, http.MethodPost, "/products", tt.body, token)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tt.name)
	}

	rec := env.do(t, http.MethodPut, "/products/1", map[string]any{"price": -3}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProduct_BadID(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	for _, id := range []string{"abc", "0", "-1"} {
		rec := env.do(t, http.MethodGet, "/products/"+id, nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, id)
	}
}

func TestGetProduct_CacheBypass(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.register(t).AccessToken

	rec := env.do(t, http.MethodPost, "/products", map[string]any{"name": "Lamp", "price": 2, "stock": 1}, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created transport.ProductResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	path := "/products/" + strconv.FormatUint(uint64(created.ID), 10)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path, nil, "").Code)
	require.NoError(t, env.DB.Exec("UPDATE products SET name = ? WHERE id = ?", "Renamed", created.ID).Error)

	var got transport.ProductResponse
	rec = env.do(t, http.MethodGet, path, nil, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Lamp", got.Name)

	rec = env.do(t, http.MethodGet, path+"?cache=false", nil, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Renamed", got.Name)
}

func TestImportAndSearch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.register(t).AccessToken
	require.NoError(t, env.MR.Set("products:42", "{}"))

	rec := env.do(t, http.MethodPost, "/products/import", map[string]any{"products": []map[string]any{
		{"name": "Desk Lamp", "price": 20, "stock": 1, "category": "Home"},
		{"name": "Novel", "price": 9, "stock": 4, "category": "Books"},
	}}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.False(t, env.MR.Exists("products:42"))

	rec = env.do(t, http.MethodPost, "/products/import", map[string]any{"products": []map[string]any{}}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/products/search?q=lamp", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res transport.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.EqualValues(t, 1, res.Total)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "Desk Lamp", res.Products[0].Name)
	assert.Equal(t, 1, res.Page)

	rec = env.do(t, http.MethodGet, "/products/search", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/products/search?q=lamp&page=9223372036854775807", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "page is out of range", errorMessage(t, rec))

	rec = env.do(t, http.MethodGet, "/products/search?q=lamp&page=100&size=100", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Empty(t, res.Products)
	assert.Equal(t, 100, res.Page)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/live", nil, "").Code)

	rec := env.do(t, http.MethodGet, "/health/ready", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"db":"ok","cache":"ok"}`, rec.Body.String())

	env.MR.SetError("ERR down")
	rec = env.do(t, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "down")
	env.MR.SetError("")

	rec = env.do(t, http.MethodGet, "/health/cache", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats cache.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))

	require.NoError(t, db.Close(env.DB))
	rec = env.do(t, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestHandlers_Direct(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/products/7", nil)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("7")

	err := env.Catalog.GetProduct(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, he.Code)
	assert.Equal(t, "Product with ID 7 not found", he.Message)

	req = httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	c = env.E.NewContext(req, httptest.NewRecorder())
	err = env.Auth.Profile(c)
	he, ok = err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestErrorHandler_HidesInternalDetail(t *testing.T) {
	t.Parallel()

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	e.GET("/boom", func(c echo.Context) error { return assert.AnError })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
	assert.Contains(t, rec.Body.String(), "An internal server error occurred")
}
