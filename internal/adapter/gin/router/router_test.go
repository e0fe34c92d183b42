package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gorm-multistatement/internal/adapter/gin/handler"
	"gorm-multistatement/internal/adapter/gin/middleware"
	"gorm-multistatement/internal/adapter/gin/response"
	"gorm-multistatement/internal/harness"
	"gorm-multistatement/internal/probe"
	"gorm-multistatement/internal/sqlexec"
	"gorm-multistatement/pkg/logger"
)

func setupTestRouter(t *testing.T, limiter *middleware.RateLimiter) *gin.Engine {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	log := zaptest.NewLogger(t)
	h := harness.New(db, log)
	t.Cleanup(func() {
		_ = h.Close()
	})
	require.NoError(t, h.Prepare(context.Background()))

	execHandler := handler.NewExecHandler(h.Executor(), probe.NewRunner(h, log), h, "gorm-multistatement", log)
	return SetupRouter(execHandler, limiter, log)
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

const insertThenSelect = `
    INSERT INTO "users" ("name", "email") VALUES (?, ?);
    SELECT * from "users";
  `

func TestRouter_Health(t *testing.T) {
	r := setupTestRouter(t, nil)

	w := do(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(logger.RequestIDHeader))
}

func TestRouter_RequestIDIsEchoed(t *testing.T) {
	r := setupTestRouter(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(logger.RequestIDHeader, "req-123")
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(logger.RequestIDHeader))
}

func TestRouter_ExecuteModes(t *testing.T) {
	r := setupTestRouter(t, nil)

	w := do(r, http.MethodPost, "/v1/execute", handler.ExecuteRequest{
		SQL: insertThenSelect, Params: []any{"All", "all"}, Mode: "all",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var all sqlexec.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Equal(t, 2, all.Statements)
	require.Len(t, all.Rows, 1)
	assert.Equal(t, "All", all.Rows[0]["name"])

	w = do(r, http.MethodPost, "/v1/execute", handler.ExecuteRequest{
		SQL: insertThenSelect, Params: []any{"Get", "get"}, Mode: "get",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var get sqlexec.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &get))
	assert.Equal(t, "All", get.Row["name"])

	w = do(r, http.MethodPost, "/v1/execute", handler.ExecuteRequest{
		SQL: insertThenSelect, Params: []any{"Run", "run"}, Mode: "run",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var run sqlexec.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	require.NotNil(t, run.Run)
	assert.Equal(t, int64(1), run.Run.AffectedRows)
	assert.Equal(t, int64(3), run.Run.InsertID)
	assert.Len(t, run.Run.Rows, 3)
}

func TestRouter_ExecuteConflict(t *testing.T) {
	r := setupTestRouter(t, nil)

	body := handler.ExecuteRequest{SQL: insertThenSelect, Params: []any{"Dup", "dup"}}
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/v1/execute", body).Code)

	w := do(r, http.MethodPost, "/v1/execute", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	var resp response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Statement)
}

func TestRouter_Raw(t *testing.T) {
	r := setupTestRouter(t, nil)

	w := do(r, http.MethodPost, "/v1/raw", handler.RawRequest{SQL: `
    INSERT INTO "users" ("name", "email") VALUES ('Raw', 'raw');
    SELECT * from "users";
  `})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp handler.RawResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.ResultSets, 2)
}

func TestRouter_Probe(t *testing.T) {
	r := setupTestRouter(t, nil)

	w := do(r, http.MethodPost, "/v1/probe", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report probe.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 4, report.Passed)
	assert.Zero(t, report.Failed)
}

func TestRouter_RateLimitSkipsHealth(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	limiter := middleware.NewRateLimiter(client, middleware.RateLimiterConfig{
		RequestsPerSecond: 0.001,
		BurstCapacity:     1,
		Enabled:           true,
	}, zaptest.NewLogger(t))
	r := setupTestRouter(t, limiter)

	body := handler.ExecuteRequest{SQL: "SELECT 1 AS one"}
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/v1/execute", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/v1/execute", body).Code)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", nil).Code)
	}
}
