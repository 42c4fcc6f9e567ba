package httpapi

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
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dzaytsev/credkeeper/internal/common"
	"github.com/dzaytsev/credkeeper/internal/logging"
	"github.com/dzaytsev/credkeeper/internal/server/auth"
	"github.com/dzaytsev/credkeeper/internal/server/cache"
	"github.com/dzaytsev/credkeeper/internal/server/config"
	"github.com/dzaytsev/credkeeper/internal/server/metrics"
	"github.com/dzaytsev/credkeeper/internal/server/models"
	"github.com/dzaytsev/credkeeper/internal/server/repositories/accounts"
	"github.com/dzaytsev/credkeeper/internal/server/services"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

// --- fake repository ---

type fakeRepo struct {
	mu     sync.Mutex
	nextID int
	byID   map[string]*models.Account

	listErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: map[string]*models.Account{}}
}

func (f *fakeRepo) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byID {
		if a.Username == username {
			snapshot := *a
			return &snapshot, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRepo) FindByID(ctx context.Context, id string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	snapshot := *a
	return &snapshot, nil
}

func (f *fakeRepo) List(ctx context.Context) ([]*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.Account, 0, len(f.byID))
	for _, a := range f.byID {
		snapshot := *a
		out = append(out, &snapshot)
	}
	return out, nil
}

func (f *fakeRepo) Insert(ctx context.Context, account *models.Account) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byID {
		if a.Username == account.Username {
			return nil, common.ErrorAlreadyExists
		}
	}
	f.nextID++
	stored := *account
	stored.ID = "id-" + strconv.Itoa(f.nextID)
	f.byID[stored.ID] = &stored
	snapshot := stored
	return &snapshot, nil
}

func (f *fakeRepo) UpdateByID(ctx context.Context, id string, fields accounts.UpdateFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	if fields.Username != nil {
		a.Username = *fields.Username
	}
	if fields.Role != nil {
		a.Role = *fields.Role
	}
	if fields.PasswordHash != nil {
		a.PasswordHash = *fields.PasswordHash
	}
	return nil
}

func (f *fakeRepo) DeleteByID(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeRepo) EnsureIndexes(ctx context.Context) error { return nil }

// --- helpers ---

func newTestServer(t *testing.T) (*Server, *fakeRepo) {
	t.Helper()

	cfg := &config.Config{
		EndpointAddr: ":0",
		SecretKey:    testSecret,
		SessionTTL:   time.Hour,
		CacheTTL:     time.Minute,
	}
	repo := newFakeRepo()
	svc := services.NewAccountService(repo, cache.NewAccounts(cfg.CacheTTL), cfg)
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	return NewServer(cfg, logger, svc, metrics.New()), repo
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func registerAndLogin(t *testing.T, s *Server, username, pw, role string) string {
	t.Helper()

	rec := doJSON(t, s, http.MethodPost, "/register", "",
		gin.H{"username": username, "password": pw, "role": role})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, s, http.MethodPost, "/login", "",
		gin.H{"username": username, "password": pw})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	token, ok := decodeBody(t, rec)["token"].(string)
	require.True(t, ok, "login response must carry a token")
	return token
}

// --- middleware ---

func TestRequireAuth_NoHeader(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/protected-sample", "", nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Access denied. No token provided.", decodeBody(t, rec)["error"])
}

func TestRequireAuth_BadHeaderFormat(t *testing.T) {
	s, _ := newTestServer(t)

	for _, header := range []string{"token-without-scheme", "Basic abc", "Bearer"} {
		req := httptest.NewRequest(http.MethodGet, "/protected-sample", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "header %q", header)
		assert.Equal(t, "Invalid token", decodeBody(t, rec)["error"])
	}
}

func TestRequireAuth_GarbageToken(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/protected-sample", "not.a.jwt", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid token", decodeBody(t, rec)["error"])
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	s, _ := newTestServer(t)

	account := &models.Account{ID: "id-1", Username: "alice", Role: models.RoleUser}
	expired, err := auth.GenerateToken(account, []byte(testSecret), -time.Minute)
	require.NoError(t, err)

	rec := doJSON(t, s, http.MethodGet, "/protected-sample", expired, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireAuth_WrongKeyToken(t *testing.T) {
	s, _ := newTestServer(t)

	account := &models.Account{ID: "id-1", Username: "alice", Role: models.RoleAdmin}
	foreign, err := auth.GenerateToken(account, []byte("some-other-key"), time.Hour)
	require.NoError(t, err)

	rec := doJSON(t, s, http.MethodGet, "/users", foreign, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedSample_ValidToken(t *testing.T) {
	s, _ := newTestServer(t)
	token := registerAndLogin(t, s, "alice", "pw123", models.RoleUser)

	rec := doJSON(t, s, http.MethodGet, "/protected-sample", token, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Protected data", decodeBody(t, rec)["message"])
}

func TestRequireAdmin_NonAdminRejected(t *testing.T) {
	s, _ := newTestServer(t)
	token := registerAndLogin(t, s, "alice", "pw123", models.RoleUser)

	for _, call := range []struct{ method, path string }{
		{http.MethodGet, "/users"},
		{http.MethodPut, "/users/id-1"},
		{http.MethodDelete, "/users/id-1"},
	} {
		rec := doJSON(t, s, call.method, call.path, token, gin.H{"role": "user"})
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", call.method, call.path)
		assert.Equal(t, "Access denied. Only admins can access this route.",
			decodeBody(t, rec)["error"])
	}
}

// --- register / login ---

func TestRegister_MissingFields(t *testing.T) {
	s, _ := newTestServer(t)

	for _, body := range []gin.H{
		{},
		{"username": "alice"},
		{"username": "alice", "password": "pw"},
		{"password": "pw", "role": "user"},
	} {
		rec := doJSON(t, s, http.MethodPost, "/register", "", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Username, password, and role are required",
			decodeBody(t, rec)["error"])
	}
}

func TestRegister_InvalidRole(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/register", "",
		gin.H{"username": "alice", "password": "pw", "role": "superuser"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid role", decodeBody(t, rec)["error"])
}

func TestRegister_Duplicate(t *testing.T) {
	s, _ := newTestServer(t)

	body := gin.H{"username": "alice", "password": "pw123", "role": "user"}

	rec := doJSON(t, s, http.MethodPost, "/register", "", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/register", "", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Username already exists", decodeBody(t, rec)["error"])
}

func TestLogin_Responses(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/register", "",
		gin.H{"username": "alice", "password": "pw123", "role": "user"})
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("success", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/login", "",
			gin.H{"username": "alice", "password": "pw123"})
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.NotEmpty(t, body["token"])
		assert.Equal(t, "user", body["role"])
		assert.Equal(t, "Logged in successfully", body["message"])
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/login", "",
			gin.H{"username": "alice", "password": "nope"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid password", decodeBody(t, rec)["error"])
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/login", "",
			gin.H{"username": "nobody", "password": "pw"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "User not found", decodeBody(t, rec)["error"])
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/login", "", gin.H{"username": "alice"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Username and password are required", decodeBody(t, rec)["error"])
	})
}

// --- admin routes ---

func TestListAccounts_OmitsPasswordHash(t *testing.T) {
	s, _ := newTestServer(t)
	registerAndLogin(t, s, "alice", "pw123", models.RoleUser)
	admin := registerAndLogin(t, s, "root", "adminpw", models.RoleAdmin)

	rec := doJSON(t, s, http.MethodGet, "/users", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var views []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	assert.Len(t, views, 2)

	for _, v := range views {
		assert.NotEmpty(t, v["id"])
		assert.NotEmpty(t, v["username"])
		assert.NotEmpty(t, v["role"])
	}
	assert.False(t, strings.Contains(rec.Body.String(), "password"),
		"listing must never expose password hashes: %s", rec.Body.String())
}

func TestUpdateAccount(t *testing.T) {
	s, repo := newTestServer(t)
	registerAndLogin(t, s, "alice", "pw123", models.RoleUser)
	admin := registerAndLogin(t, s, "root", "adminpw", models.RoleAdmin)

	var aliceID string
	for id, a := range repo.byID {
		if a.Username == "alice" {
			aliceID = id
		}
	}
	require.NotEmpty(t, aliceID)

	t.Run("role change", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPut, "/users/"+aliceID, admin, gin.H{"role": "admin"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "User updated successfully", decodeBody(t, rec)["message"])
		assert.Equal(t, models.RoleAdmin, repo.byID[aliceID].Role)
	})

	t.Run("password change rehashes and logs in", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPut, "/users/"+aliceID, admin, gin.H{"password": "new-pw"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEqual(t, "new-pw", repo.byID[aliceID].PasswordHash)

		rec = doJSON(t, s, http.MethodPost, "/login", "",
			gin.H{"username": "alice", "password": "new-pw"})
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("no fields", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPut, "/users/"+aliceID, admin, gin.H{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPut, "/users/ghost", admin, gin.H{"role": "user"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "User not found", decodeBody(t, rec)["error"])
	})
}

func TestDeleteAccount(t *testing.T) {
	s, repo := newTestServer(t)
	registerAndLogin(t, s, "alice", "pw123", models.RoleUser)
	admin := registerAndLogin(t, s, "root", "adminpw", models.RoleAdmin)

	var aliceID string
	for id, a := range repo.byID {
		if a.Username == "alice" {
			aliceID = id
		}
	}

	rec := doJSON(t, s, http.MethodDelete, "/users/"+aliceID, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User deleted successfully", decodeBody(t, rec)["message"])

	rec = doJSON(t, s, http.MethodDelete, "/users/"+aliceID, admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User not found", decodeBody(t, rec)["error"])
}

// --- ambient endpoints ---

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestMetricsEndpoint_CountsRequests(t *testing.T) {
	s, _ := newTestServer(t)

	doJSON(t, s, http.MethodGet, "/health", "", nil)
	doJSON(t, s, http.MethodGet, "/protected-sample", "", nil) // auth failure

	rec := doJSON(t, s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `credkeeper_http_requests_total`), body)
	assert.True(t, strings.Contains(body, `credkeeper_auth_failures_total 1`), body)
}

// --- end-to-end scenario ---

func TestScenario_RegisterLoginAdminListing(t *testing.T) {
	s, _ := newTestServer(t)

	// register alice
	rec := doJSON(t, s, http.MethodPost, "/register", "",
		gin.H{"username": "alice", "password": "pw123", "role": "user"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "User registered successfully", decodeBody(t, rec)["message"])

	// duplicate registration fails
	rec = doJSON(t, s, http.MethodPost, "/register", "",
		gin.H{"username": "alice", "password": "other", "role": "admin"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Username already exists", decodeBody(t, rec)["error"])

	// alice logs in and gets a user token
	rec = doJSON(t, s, http.MethodPost, "/login", "",
		gin.H{"username": "alice", "password": "pw123"})
	require.Equal(t, http.StatusOK, rec.Code)
	aliceBody := decodeBody(t, rec)
	assert.Equal(t, "user", aliceBody["role"])
	aliceToken := aliceBody["token"].(string)

	// non-admin cannot list accounts
	rec = doJSON(t, s, http.MethodGet, "/users", aliceToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// root registers, logs in, and lists both accounts
	adminToken := registerAndLogin(t, s, "root", "adminpw", models.RoleAdmin)

	rec = doJSON(t, s, http.MethodGet, "/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var views []accountView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 2)

	names := []string{views[0].Username, views[1].Username}
	assert.Contains(t, names, "alice")
	assert.Contains(t, names, "root")
	assert.False(t, strings.Contains(rec.Body.String(), "password"))
}
