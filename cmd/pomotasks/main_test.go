package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	config "github.com/davicafu/pomotasks/internal/config"
	sharedEvents "github.com/davicafu/pomotasks/internal/shared/domain/events"
	infraEvents "github.com/davicafu/pomotasks/internal/shared/infra/events"
	sharedCache "github.com/davicafu/pomotasks/internal/shared/infra/platform/cache"
	infraRelayer "github.com/davicafu/pomotasks/internal/shared/infra/relayer"
	taskApp "github.com/davicafu/pomotasks/internal/task/application"
	taskDomain "github.com/davicafu/pomotasks/internal/task/domain"
	taskEvents "github.com/davicafu/pomotasks/internal/task/infra/inbound/events"
	userApp "github.com/davicafu/pomotasks/internal/user/application"
	userDomain "github.com/davicafu/pomotasks/internal/user/domain"
)

type recordingActivityLog struct {
	mu         sync.Mutex
	activities []taskDomain.TaskActivity
}

func (r *recordingActivityLog) LogBatch(ctx context.Context, activities []taskDomain.TaskActivity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities = append(r.activities, activities...)
	return nil
}

func (r *recordingActivityLog) snapshot() []taskDomain.TaskActivity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]taskDomain.TaskActivity(nil), r.activities...)
}

type testApp struct {
	t      *testing.T
	router *gin.Engine
	store  *storage
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	cfg := &config.Config{
		DBDriver:    config.DriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "pomotasks.db"),
		CacheTTL:    time.Minute,
		CORSOrigins: []string{"http://localhost:3000"},
	}

	store, err := openStorage(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	cache := sharedCache.NewInMemoryCache(time.Minute, time.Minute)
	t.Cleanup(cache.Stop)

	users, err := userApp.NewUserService(store.users, cache, userApp.AuthConfig{
		JWTSecret:  "test-secret",
		TokenTTL:   time.Hour,
		CacheTTL:   time.Minute,
		BcryptCost: 4,
	}, log)
	require.NoError(t, err)
	tasks := taskApp.NewTaskService(store.tasks, cache, cfg.CacheTTL, log)

	return &testApp{t: t, router: newRouter(cfg, users, tasks, log), store: store}
}

func (a *testApp) do(method, path, body, token string) *httptest.ResponseRecorder {
	a.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// login registra al usuario y devuelve un access token.
func (a *testApp) login(username string) string {
	a.t.Helper()
	creds := `{"username":"` + username + `","password":"password123"}`
	w := a.do(http.MethodPost, "/api/auth/register/", creds, "")
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(http.MethodPost, "/api/auth/token/", creds, "")
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	return decodeBody(a.t, w)["access_token"].(string)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	w := app.do(http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])
}

func TestTaskRoutesRequireAuth(t *testing.T) {
	app := newTestApp(t)

	w := app.do(http.MethodGet, "/api/tasks/", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")

	w = app.do(http.MethodGet, "/api/tasks/", "", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTaskLifecycle_SQLite(t *testing.T) {
	app := newTestApp(t)
	alice := app.login("alice")
	bob := app.login("bob")

	w := app.do(http.MethodPost, "/api/tasks/", `{"title":"Write report","allocated_hours":2}`, alice)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody(t, w)
	id := created["id"].(string)
	assert.Equal(t, "todo", created["status"])
	assert.NotContains(t, created, "owner_id")

	w = app.do(http.MethodPost, "/api/tasks/"+id+"/update_time/", `{"seconds":5400}`, alice)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.InDelta(t, 1.5, decodeBody(t, w)["time_spent"], 1e-9)

	w = app.do(http.MethodPost, "/api/tasks/"+id+"/change_status/", `{"status":"completed"}`, alice)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "completed", decodeBody(t, w)["status"])

	// Las tareas de otro usuario no existen para bob.
	w = app.do(http.MethodGet, "/api/tasks/"+id+"/", "", bob)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = app.do(http.MethodDelete, "/api/tasks/"+id+"/", "", bob)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(http.MethodGet, "/api/tasks/search/?q=REPORT", "", alice)
	require.Equal(t, http.StatusOK, w.Code)
	var found []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &found))
	require.Len(t, found, 1)
	assert.Equal(t, id, found[0]["id"])

	w = app.do(http.MethodGet, "/api/tasks/statistics/", "", alice)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decodeBody(t, w)
	assert.InDelta(t, 1.5, stats["total_hours_spent"], 1e-9)
	assert.Equal(t, float64(1), stats["total_tasks"])
	assert.Equal(t, float64(1), stats["completed_tasks"])

	w = app.do(http.MethodGet, "/api/tasks/statistics/", "", bob)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decodeBody(t, w)["total_tasks"])

	w = app.do(http.MethodDelete, "/api/tasks/"+id+"/", "", alice)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = app.do(http.MethodGet, "/api/tasks/"+id+"/", "", alice)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearchFoldsUnicodeOnSQLite(t *testing.T) {
	app := newTestApp(t)
	token := app.login("emile")

	w := app.do(http.MethodPost, "/api/tasks/", `{"title":"Émile report","allocated_hours":1}`, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	for _, q := range []string{"émile", "ÉMILE", "report"} {
		w = app.do(http.MethodGet, "/api/tasks/search/?q="+url.QueryEscape(q), "", token)
		require.Equal(t, http.StatusOK, w.Code)
		var found []map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &found))
		require.Len(t, found, 1, q)
		assert.Equal(t, "Émile report", found[0]["title"])
	}
}

func TestOutboxRelaysTaskActivity(t *testing.T) {
	app := newTestApp(t)
	token := app.login("dana")

	w := app.do(http.MethodPost, "/api/tasks/", `{"title":"Relay me","allocated_hours":1}`, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decodeBody(t, w)["id"].(string)
	w = app.do(http.MethodPatch, "/api/tasks/"+id+"/", `{"title":"Relayed"}`, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := infraEvents.NewInMemoryEventBus()
	activity := &recordingActivityLog{}
	infraEvents.BackgroundConsumerChan(ctx, bus.Subscribe(taskDomain.TaskTopic, 16),
		taskEvents.NewTaskActivityConsumer(activity, zap.NewNop()))

	registry := sharedEvents.MergeRegistries(taskDomain.NewEventRegistry(), userDomain.NewEventRegistry())
	require.Len(t, app.store.outbox, 1)
	worker := infraRelayer.NewOutboxWorker(app.store.outbox[0], bus, registry, time.Hour, 50, zap.NewNop())

	// user.created + task.created + task.updated
	assert.Equal(t, 3, worker.ProcessBatch(ctx))
	assert.Equal(t, 0, worker.ProcessBatch(ctx), "processed events are not relayed twice")

	require.Eventually(t, func() bool { return len(activity.snapshot()) == 2 }, time.Second, 10*time.Millisecond)
	got := activity.snapshot()
	assert.Equal(t, taskDomain.TaskCreated, got[0].EventType)
	assert.Equal(t, taskDomain.TaskUpdated, got[1].EventType)
	assert.Equal(t, id, got[0].TaskID.String())
	assert.Equal(t, got[0].OwnerID, got[1].OwnerID)
}
