package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/adlbuilder/pkg/assistants"
	"github.com/platinummonkey/adlbuilder/pkg/auth"
	"github.com/platinummonkey/adlbuilder/pkg/config"
	"github.com/platinummonkey/adlbuilder/pkg/middleware"
	"github.com/platinummonkey/adlbuilder/pkg/observability"
	"github.com/platinummonkey/adlbuilder/pkg/revocation"
	"github.com/platinummonkey/adlbuilder/pkg/storage/storagetest"
	"github.com/platinummonkey/adlbuilder/pkg/templates"
	"github.com/platinummonkey/adlbuilder/pkg/users"
	"github.com/platinummonkey/adlbuilder/pkg/validation"
)

const testSchema = `
type: object
required: [metadata]
properties:
  metadata:
    type: object
    required: [description]
    properties:
      description:
        type: object
        required: [title]
        properties:
          title:
            type: string
          summary:
            type: string
      tags:
        type: array
        items:
          type: string
`

const validADL = `metadata:
  description:
    title: Algebra tutor
    summary: Walks students through linear equations
  tags: [math]
`

const invalidADL = `metadata:
  description:
    summary: no title here
`

const defaultPassword = "correct-horse-battery"

var testEpoch = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type envConfig struct {
	accessTTL  time.Duration
	refreshTTL time.Duration
	limiter    middleware.Limiter
	server     config.ServerConfig
	db         *sql.DB
}

type testEnv struct {
	t          *testing.T
	server     *Server
	clock      *testClock
	db         *sql.DB
	users      *users.Store
	assistants *assistants.Store
	ledger     *revocation.Store
	metrics    *observability.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWith(t, envConfig{})
}

func newTestEnvWith(t *testing.T, cfg envConfig) *testEnv {
	t.Helper()
	if cfg.accessTTL == 0 {
		cfg.accessTTL = 15 * time.Minute
	}
	if cfg.refreshTTL == 0 {
		cfg.refreshTTL = time.Hour
	}
	if cfg.server.APIPrefix == "" {
		cfg.server.APIPrefix = "/api/v1"
	}

	db := cfg.db
	if db == nil {
		db = storagetest.NewSQLite(t)
	}
	env := &testEnv{
		t:          t,
		clock:      &testClock{now: testEpoch},
		db:         db,
		users:      users.NewStore(db),
		assistants: assistants.NewStore(db),
		ledger:     revocation.NewStore(db),
		metrics:    observability.NewMetrics(prometheus.NewRegistry()),
	}
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	codec, err := auth.NewCodec(auth.CodecConfig{
		Secret: "api-test-secret-for-" + t.Name(),
		Issuer: "adlbuilder-test",
		Now:    env.clock.Now,
	})
	require.NoError(t, err)
	issuer, err := auth.NewIssuer(codec, cfg.accessTTL, cfg.refreshTTL)
	require.NoError(t, err)

	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	gate := auth.NewGate(codec, env.ledger, env.users, logger, env.metrics)
	sessions := auth.NewSessions(issuer, gate, env.ledger, env.users, hasher, logger, env.metrics)

	validator, err := validation.NewSchemaValidatorFromBytes([]byte(testSchema))
	require.NoError(t, err)

	templatesDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(templatesDir, "tutor.yaml"), []byte(validADL), 0o644))

	env.server = NewServer(cfg.server, Dependencies{
		DB:             db,
		Users:          env.users,
		Assistants:     env.assistants,
		Sessions:       sessions,
		Gate:           gate,
		Hasher:         hasher,
		Ledger:         env.ledger,
		Validator:      validator,
		Templates:      templates.NewCatalog(templatesDir, logger),
		LoginLimiter:   cfg.limiter,
		LimiterBackend: "memory",
		Logger:         logger,
		Metrics:        env.metrics,
		Version:        "test",
		Now:            env.clock.Now,
	})
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	return w
}

func (e *testEnv) request(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.do(req)
}

func (e *testEnv) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1"+path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

// register creates an account through the API and returns it
func (e *testEnv) register(email, name string) *users.User {
	e.t.Helper()
	w := e.request(http.MethodPost, "/users/", RegisterRequest{Email: email, Password: defaultPassword, Name: name}, "")
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())

	var u users.User
	require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &u))
	return &u
}

func (e *testEnv) loginResponse(email, password string) *httptest.ResponseRecorder {
	return e.postForm("/auth/token", url.Values{"username": {email}, "password": {password}})
}

func (e *testEnv) login(email string) auth.TokenPair {
	e.t.Helper()
	w := e.loginResponse(email, defaultPassword)
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())

	var pair auth.TokenPair
	require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &pair))
	return pair
}

// registerAndLogin returns a user and a fresh access token
func (e *testEnv) registerAndLogin(email, name string) (*users.User, string) {
	e.t.Helper()
	u := e.register(email, name)
	return u, e.login(email).AccessToken
}

func (e *testEnv) createAssistant(token string, req AssistantCreateRequest) *assistants.Assistant {
	e.t.Helper()
	w := e.request(http.MethodPost, "/assistants/", req, token)
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())

	var a assistants.Assistant
	require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &a))
	return &a
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

func detailOf(t *testing.T, w *httptest.ResponseRecorder) interface{} {
	t.Helper()
	var body map[string]interface{}
	decodeJSON(t, w, &body)
	return body["detail"]
}

func boolPtr(b bool) *bool { return &b }

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, "/api/v1"+path, nil)
}

func testutilCount(e *testEnv, method, path, status string) (float64, error) {
	counter, err := e.metrics.HTTPRequestsTotal.GetMetricWithLabelValues(method, path, status)
	if err != nil {
		return 0, err
	}
	return testutil.ToFloat64(counter), nil
}
