package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saykit-agent/internal/logging"
	"saykit-agent/internal/model"
	"saykit-agent/internal/service/command"
	"saykit-agent/internal/service/conversation"
	"saykit-agent/internal/service/request"
	"saykit-agent/internal/service/topic"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	hub    *conversation.Hub
}

func newTestServer(t *testing.T, staticDir string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	build := func(string) (*topic.Topic, error) {
		root := topic.New("root")
		root.AddRecognizer(command.NewSearch(command.HandlerAction(func(ctx context.Context, cmd model.Command) {
			q, _ := cmd.Param(command.ParamQuery)
			root.Speak(ctx, "Searching for "+q+".")
		})))
		return root, nil
	}
	settings := conversation.Settings{Presenter: request.Settings{MaxReprompts: 1}}
	hub := conversation.NewHub(build, settings, time.Minute, logging.Discard())
	t.Cleanup(func() { hub.Close(context.Background()) })
	return &testServer{t: t, router: Router(hub, staticDir, logging.Discard()), hub: hub}
}

func (s *testServer) do(method, path string, body any, out any) int {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if out != nil && w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w.Code
}

func (s *testServer) createSession() string {
	s.t.Helper()
	var st model.SessionStatus
	require.Equal(s.t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/sessions", nil, &st))
	require.NotEmpty(s.t, st.SessionID)
	return st.SessionID
}

func TestSessionTextFlow(t *testing.T) {
	s := newTestServer(t, "")
	id := s.createSession()
	base := "/api/v1/sessions/" + id

	var resp model.TextResponse
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/text", model.TextRequest{Text: "search for pancakes"}, &resp))
	assert.Equal(t, conversation.HandledCommand, resp.Handled)
	require.NotNil(t, resp.Command)
	assert.Equal(t, command.TypeSearch, resp.Command.Type())

	var noMatch map[string]any
	assert.Equal(t, http.StatusUnprocessableEntity, s.do(http.MethodPost, base+"/text", model.TextRequest{Text: "dance"}, &noMatch))
	assert.Contains(t, noMatch["error"], "no command matched")

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, base+"/text", map[string]string{}, nil))

	var events struct {
		SessionID string                 `json:"session_id"`
		Events    []model.PostedSequence `json:"events"`
	}
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, base+"/events?limit=1", nil, &events))
	require.Len(t, events.Events, 1)
	assert.Equal(t, []string{"Sorry, I don't know how to do that."}, events.Events[0].Sequence.Utterances())
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, base+"/events?limit=x", nil, nil))
}

func TestSessionRequestFlow(t *testing.T) {
	s := newTestServer(t, "")
	id := s.createSession()
	base := "/api/v1/sessions/" + id

	present := model.PresentRequest{
		Kind:    "select",
		Prompt:  "Which one?",
		Options: []model.SelectOptionSpec{{Label: "Blue"}, {Label: "Green"}, {Label: "Purple"}},
	}
	var presented model.PresentResponse
	assert.Equal(t, http.StatusAccepted, s.do(http.MethodPost, base+"/requests", present, &presented))
	assert.NotEmpty(t, presented.RequestID)
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, base+"/requests", present, nil))

	var st model.SessionStatus
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, base, nil, &st))
	assert.Equal(t, presented.RequestID, st.ActiveRequest)
	assert.Equal(t, "select", st.ActiveKind)

	var out model.TurnOutcome
	one := 1
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/requests/choose", model.ChooseRequest{Index: &one}, &out))
	assert.True(t, out.Terminal)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, base, nil, &st))
	require.NotNil(t, st.LastResult)
	assert.Equal(t, presented.RequestID, st.LastResult.RequestID)
	assert.Empty(t, st.ActiveRequest)

	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, base+"/requests/cancel", nil, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, base+"/requests", model.PresentRequest{Kind: "colour", Prompt: "?"}, nil))

	assert.Equal(t, http.StatusAccepted, s.do(http.MethodPost, base+"/listen", nil, &presented))
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/requests/fail", model.FailRequest{Reason: "no audio"}, &st))
	require.NotNil(t, st.LastResult)
	assert.Contains(t, st.LastResult.Error, "no audio")

	assert.Equal(t, http.StatusAccepted, s.do(http.MethodPost, base+"/requests", model.PresentRequest{Kind: "number", Prompt: "How many?"}, nil))
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/requests/cancel", nil, &st))
	assert.Equal(t, "idle", st.RequestState)
}

func TestSessionNotFoundAndDelete(t *testing.T) {
	s := newTestServer(t, "")
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/sessions/nope", nil, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/v1/sessions/nope/text", model.TextRequest{Text: "hi"}, nil))

	id := s.createSession()
	assert.Equal(t, 1, s.hub.Len())
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/v1/sessions/"+id, nil, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/api/v1/sessions/"+id, nil, nil))
}

func TestHealthMetricsAndStatic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>saykit</h1>"), 0o644))
	s := newTestServer(t, dir)

	var health map[string]any
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", nil, &health))
	assert.Equal(t, "ok", health["status"])

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "saykit")
}
