package agent_service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victorstack-ai/codex-agent-harness/core"
)

func newTestService(t *testing.T, supervisor core.Supervisor) *Service {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := core.NewRegistry()
	require.NoError(t, registry.Register(core.ToolSpec{
		Name:        "list_files",
		Description: "Lists files.",
		Parameters:  core.ParameterShape{"path": "string"},
		Capability: func(context.Context, map[string]any) (any, error) {
			return []string{"file1.txt", "file2.txt"}, nil
		},
	}))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := func() *core.Agent {
		return core.NewAgent(registry,
			core.ToolThenFinish("list_files", map[string]any{"path": "."}),
			core.WithSupervisor(supervisor),
			core.WithLogger(logger),
		)
	}
	return NewService(registry, factory, 5, logger)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestListTools(t *testing.T) {
	router := newTestService(t, nil).Router()

	rec := do(t, router, http.MethodGet, "/tools", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Tools []core.ToolDescriptor `json:"tools"`
	}](t, rec)
	require.Len(t, body.Tools, 1)
	assert.Equal(t, "list_files", body.Tools[0].Name)
	assert.Equal(t, core.ParameterShape{"path": "string"}, body.Tools[0].Parameters)
}

func TestSessionRunAndHistory(t *testing.T) {
	router := newTestService(t, nil).Router()

	rec := do(t, router, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	sess := decode[SessionResponse](t, rec)
	require.NotEmpty(t, sess.ID)

	rec = do(t, router, http.MethodPost, "/sessions/"+sess.ID+"/run", RunRequest{Prompt: "What files are here?"})
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode[RunResponse](t, rec)
	assert.Contains(t, run.Output, "file1.txt")
	assert.Equal(t, 2, run.HistoryLength)

	rec = do(t, router, http.MethodPost, "/sessions/"+sess.ID+"/run", RunRequest{Prompt: "And again?"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, decode[RunResponse](t, rec).HistoryLength)

	rec = do(t, router, http.MethodGet, "/sessions/"+sess.ID+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[HistoryResponse](t, rec)
	require.Len(t, history.History, 4)
	assert.Equal(t, core.RoleUser, history.History[0].Role)
	assert.Equal(t, core.RoleTool, history.History[1].Role)
	assert.EqualValues(t, 2, history.Metadata[core.MetaRuns])
}

func TestRunRejectedBySupervisor(t *testing.T) {
	router := newTestService(t, core.RejectAll{}).Router()
	sess := decode[SessionResponse](t, do(t, router, http.MethodPost, "/sessions", nil))

	rec := do(t, router, http.MethodPost, "/sessions/"+sess.ID+"/run", RunRequest{Prompt: "Delete everything"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Action list_files rejected by supervisor.", decode[RunResponse](t, rec).Output)
}

func TestRunZeroSteps(t *testing.T) {
	router := newTestService(t, nil).Router()
	sess := decode[SessionResponse](t, do(t, router, http.MethodPost, "/sessions", nil))

	zero := 0
	rec := do(t, router, http.MethodPost, "/sessions/"+sess.ID+"/run", RunRequest{Prompt: "hello", MaxSteps: &zero})
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode[RunResponse](t, rec)
	assert.Equal(t, "hello", run.Output)
	assert.Equal(t, 1, run.HistoryLength)
}

func TestRunBadRequests(t *testing.T) {
	router := newTestService(t, nil).Router()
	sess := decode[SessionResponse](t, do(t, router, http.MethodPost, "/sessions", nil))

	rec := do(t, router, http.MethodPost, "/sessions/"+sess.ID+"/run", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/sessions/"+sess.ID+"/run", map[string]any{"prompt": "x", "max_steps": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/sessions/unknown/run", RunRequest{Prompt: "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	router := newTestService(t, nil).Router()
	sess := decode[SessionResponse](t, do(t, router, http.MethodPost, "/sessions", nil))

	assert.Equal(t, http.StatusNoContent, do(t, router, http.MethodDelete, "/sessions/"+sess.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/sessions/"+sess.ID+"/history", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodDelete, "/sessions/"+sess.ID, nil).Code)
}

func TestSessionsAreIsolated(t *testing.T) {
	svc := newTestService(t, nil)
	a := svc.CreateSession()
	b := svc.CreateSession()

	_, err := svc.Run(context.Background(), a.ID, "first", nil)
	require.NoError(t, err)

	hb, err := svc.History(b.ID)
	require.NoError(t, err)
	assert.Empty(t, hb.History)

	_, err = svc.Run(context.Background(), "missing", "x", nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
