package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"hirepal/internal/domain"
	"hirepal/internal/usecase"
	"hirepal/internal/wire"
)

type stubService struct {
	answer domain.Answer
	err    error
	in     usecase.AskInput
	ended  string
	endErr error
	panic  bool
}

func (s *stubService) NewSession(context.Context) (string, error) {
	return "sess-1", nil
}

func (s *stubService) Ask(_ context.Context, in usecase.AskInput) (domain.Answer, error) {
	if s.panic {
		panic("boom")
	}
	s.in = in
	return s.answer, s.err
}

func (s *stubService) EndSession(_ context.Context, id string) error {
	s.ended = id
	return s.endErr
}

func newTestServer(t *testing.T, svc Service) (http.Handler, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	srv, err := NewServer(svc, []string{"https://ui.example"}, zap.New(core))
	require.NoError(t, err)
	return srv, logs
}

func do(srv http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestNewServer_RequiresService(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	require.Error(t, err)
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t, &stubService{})
	rec := do(srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get(CorrelationHeader))
}

func TestServer_NewSession(t *testing.T) {
	srv, _ := newTestServer(t, &stubService{})
	rec := do(srv, http.MethodGet, "/new_session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"session_id":"sess-1","message":"New session created."}`, rec.Body.String())
}

func TestServer_AskText(t *testing.T) {
	svc := &stubService{answer: domain.TextAnswer("Hi! Who are you looking for?")}
	srv, _ := newTestServer(t, svc)

	rec := do(srv, http.MethodPost, "/ask", `{"session_id":"sess-1","question":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, usecase.AskInput{SessionID: "sess-1", Question: "hello"}, svc.in)

	resp, err := wire.Decode(rec.Body.Bytes())
	require.NoError(t, err)
	require.Equal(t, wire.Response{Type: wire.TypeText, Content: "Hi! Who are you looking for?"}, resp)
}

func TestServer_AskUnrenderableAnswerBecomesError(t *testing.T) {
	svc := &stubService{answer: domain.CandidateAnswer("Jane fits.", []domain.Candidate{{
		IdentityKey: "jane doe",
		DisplayName: "Jane Doe",
	}})}
	srv, logs := newTestServer(t, svc)

	rec := do(srv, http.MethodPost, "/ask", `{"session_id":"sess-1","question":"python?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp, err := wire.Decode(rec.Body.Bytes())
	require.NoError(t, err)
	require.Equal(t, wire.Response{Type: wire.TypeError, Content: wire.RenderFailureMessage}, resp)
	require.Equal(t, 1, logs.FilterMessage("answer failed wire validation").Len())
}

func TestServer_AskErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{name: "bad json", body: `{"session_id":`, status: http.StatusBadRequest, code: "INVALID_INPUT"},
		{name: "unknown session", body: `{"session_id":"x","question":"q"}`, err: &usecase.Error{Code: usecase.ErrorSessionNotFound}, status: http.StatusNotFound, code: "SESSION_NOT_FOUND"},
		{name: "too long", body: `{"session_id":"x","question":"q"}`, err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "question_too_long"}, status: http.StatusBadRequest, code: "INVALID_INPUT"},
		{name: "unexpected", body: `{"session_id":"x","question":"q"}`, err: errors.New("boom"), status: http.StatusInternalServerError, code: "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newTestServer(t, &stubService{err: tc.err})
			rec := do(srv, http.MethodPost, "/ask", tc.body)
			require.Equal(t, tc.status, rec.Code)

			var body wire.ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tc.code, body.Error)
		})
	}
}

func TestServer_EndSession(t *testing.T) {
	svc := &stubService{}
	srv, _ := newTestServer(t, svc)

	rec := do(srv, http.MethodDelete, "/session/sess-7", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "sess-7", svc.ended)

	svc.endErr = &usecase.Error{Code: usecase.ErrorSessionNotFound}
	rec = do(srv, http.MethodDelete, "/session/sess-7", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":"SESSION_NOT_FOUND","message":"Session not found."}`, rec.Body.String())
}

func TestServer_PropagatesCorrelationID(t *testing.T) {
	srv, logs := newTestServer(t, &stubService{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(CorrelationHeader, "corr-42")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, "corr-42", rec.Header().Get(CorrelationHeader))
	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	require.Equal(t, "corr-42", entries[0].ContextMap()["correlation_id"])
	require.EqualValues(t, http.StatusOK, entries[0].ContextMap()["status"])
}

func TestServer_RecoversPanics(t *testing.T) {
	srv, logs := newTestServer(t, &stubService{panic: true})
	rec := do(srv, http.MethodPost, "/ask", `{"session_id":"x","question":"q"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, 1, logs.FilterMessage("handler panic").Len())
}

func TestServer_CORS(t *testing.T) {
	srv, _ := newTestServer(t, &stubService{})
	req := httptest.NewRequest(http.MethodOptions, "/ask", nil)
	req.Header.Set("Origin", "https://ui.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, "https://ui.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_OpenAPIDocument(t *testing.T) {
	srv, _ := newTestServer(t, &stubService{})
	rec := do(srv, http.MethodGet, DocsPath, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Info  struct{ Title string } `json:"info"`
		Paths map[string]any         `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Equal(t, "HirePal API", doc.Info.Title)
	require.Contains(t, doc.Paths, "/ask")
	require.Contains(t, doc.Paths, "/new_session")
	require.Contains(t, doc.Paths, "/session/{session_id}")
}
