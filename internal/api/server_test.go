// ABOUTME: Tests for the HTTP API handlers
// ABOUTME: Covers kill dispatch, project-scoped listings, and auth enforcement

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-execd/internal/auth"
	"github.com/2389/coven-execd/internal/convo"
	"github.com/2389/coven-execd/internal/kill"
	"github.com/2389/coven-execd/internal/lifecycle"
	"github.com/2389/coven-execd/internal/store"
	"github.com/2389/coven-execd/internal/tasks"
)

const (
	convA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	convB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

type fakeKiller struct {
	lastReq kill.Request
	result  *kill.Result
}

func (f *fakeKiller) Kill(_ context.Context, req kill.Request) *kill.Result {
	f.lastReq = req
	return f.result
}

type fakeAudits struct {
	entries []*store.KillAudit
	filter  store.KillAuditFilter
}

func (f *fakeAudits) ListKillAudits(_ context.Context, filter store.KillAuditFilter) ([]*store.KillAudit, error) {
	f.filter = filter
	return f.entries, nil
}

type testServer struct {
	killer        *fakeKiller
	registry      *lifecycle.Registry
	conversations *convo.Store
	taskTable     *tasks.Table
	audits        *fakeAudits
	verifier      *auth.JWTVerifier
	handler       http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		killer:        &fakeKiller{result: &kill.Result{Success: true, Message: "aborted 1 execution(s)"}},
		registry:      lifecycle.NewRegistry(nil),
		conversations: convo.NewStore(nil),
		taskTable:     tasks.NewTable(nil),
		audits:        &fakeAudits{},
		verifier:      auth.NewJWTVerifier([]byte("test-secret")),
	}
	srv := NewServer(Params{
		Killer:        ts.killer,
		Registry:      ts.registry,
		Conversations: ts.conversations,
		TaskTable:     ts.taskTable,
		Audits:        ts.audits,
		Verifier:      ts.verifier,
	})
	ts.handler = srv.Routes()
	return ts
}

func (ts *testServer) token(t *testing.T, principal, project string) string {
	t.Helper()
	token, err := ts.verifier.Generate(principal, project, time.Hour)
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleKill(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "op-1", "proj-a")

	rec := ts.do(t, http.MethodPost, "/api/kill", token, KillRequest{Target: "abc1234", Reason: "stuck"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Identity from the token, not the body.
	assert.Equal(t, "abc1234", ts.killer.lastReq.Target)
	assert.Equal(t, "stuck", ts.killer.lastReq.Reason)
	assert.Equal(t, "op-1", ts.killer.lastReq.Actor)
	assert.Equal(t, "proj-a", ts.killer.lastReq.CallerProjectID)

	var result kill.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
}

func TestHandleKill_Validation(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "op-1", "proj-a")

	rec := ts.do(t, http.MethodPost, "/api/kill", token, KillRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/kill", token, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleKill_Unauthenticated(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/kill", "", KillRequest{Target: "abc1234"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, ts.killer.lastReq.Target)
}

func TestHandleListExecutions_ProjectScoped(t *testing.T) {
	ts := newTestServer(t)
	ts.registry.Create("agent-1", convA, "proj-a")
	ts.registry.Create("agent-2", convB, "proj-b")

	rec := ts.do(t, http.MethodGet, "/api/executions", ts.token(t, "op-1", "proj-a"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []lifecycle.ExecutionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "agent-1", infos[0].AgentPubkey)
	assert.Equal(t, "active", infos[0].State)
}

func TestHandleListExecutions_NoProjectSeesNothing(t *testing.T) {
	ts := newTestServer(t)
	ts.registry.Create("agent-1", convA, "proj-a")

	rec := ts.do(t, http.MethodGet, "/api/executions", ts.token(t, "op-1", ""), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []lifecycle.ExecutionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	assert.Empty(t, infos)
}

func TestHandleListTasks_ProjectScoped(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.taskTable.Register(&tasks.Info{ID: "abc1234", ProjectID: "proj-a", PID: 1111, Command: "npm run dev"}))
	require.NoError(t, ts.taskTable.Register(&tasks.Info{ID: "def5678", ProjectID: "proj-b", PID: 2222, Command: "make watch"}))

	rec := ts.do(t, http.MethodGet, "/api/tasks", ts.token(t, "op-1", "proj-a"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []*tasks.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "abc1234", infos[0].ID)
}

func TestHandleListKillAudits(t *testing.T) {
	ts := newTestServer(t)
	ts.audits.entries = []*store.KillAudit{
		{ID: "a1", Actor: "op-1", Target: "abc1234", TargetType: "agent", Success: true, Message: "aborted 1 execution(s)", CreatedAt: time.Now().UTC()},
	}

	rec := ts.do(t, http.MethodGet, "/api/kills?limit=10", ts.token(t, "op-1", "proj-a"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 10, ts.audits.filter.Limit)

	var entries []KillAuditResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "op-1", entries[0].Actor)
	assert.Equal(t, "agent", entries[0].TargetType)
}

func TestHandleListKillAudits_BadParams(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "op-1", "proj-a")

	rec := ts.do(t, http.MethodGet, "/api/kills?limit=zero", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/kills?since=yesterday", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealth_NoAuth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestAPIRoutes_RequireAuth(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/kill", "/api/executions", "/api/tasks", "/api/kills", "/api/conversations", "/api/delegations"} {
		t.Run(strings.TrimPrefix(path, "/api/"), func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}
