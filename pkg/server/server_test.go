package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metricsqa/pkg/logging"
	"metricsqa/pkg/model"
)

type stubAsker struct {
	answer    string
	err       error
	requestID string
	question  string
}

func (s *stubAsker) Ask(_ context.Context, requestID, question string) (string, error) {
	s.requestID = requestID
	s.question = question
	return s.answer, s.err
}

func newTestServer(asker Asker) *Server {
	return New(asker, logging.NewTestLogger(&bytes.Buffer{}), Options{})
}

func postAsk(t *testing.T, srv *Server, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/llm/ask", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestAskEndpoint(t *testing.T) {
	asker := &stubAsker{answer: "Son 30 dakikada en yüksek CPU kullanımı %57.2 oldu."}
	srv := newTestServer(asker)

	w := postAsk(t, srv, `{"text": "son 30 dakikada maksimum CPU?"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp askResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Answer, "57.2")
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, "son 30 dakikada maksimum CPU?", asker.question)
	assert.Equal(t, resp.RequestID, asker.requestID)
}

func TestAskEndpointAcceptsQuestionAlias(t *testing.T) {
	asker := &stubAsker{answer: "ok"}
	srv := newTestServer(asker)

	w := postAsk(t, srv, `{"question": "ram durumu nedir?"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ram durumu nedir?", asker.question)

	// text wins when both are present.
	w = postAsk(t, srv, `{"text": "cpu?", "question": "ram?"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cpu?", asker.question)
}

func TestAskEndpointHonorsIncomingRequestID(t *testing.T) {
	asker := &stubAsker{answer: "ok"}
	srv := newTestServer(asker)

	w := postAsk(t, srv, `{"question": "cpu?"}`,
		map[string]string{"X-Request-ID": "client-abc"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "client-abc", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "client-abc", asker.requestID)
}

func TestAskEndpointRejectsBadBodies(t *testing.T) {
	srv := newTestServer(&stubAsker{})

	for _, body := range []string{``, `not json`, `{"text": ""}`, `{"text": "   "}`, `{"question": "  "}`} {
		w := postAsk(t, srv, body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
	}
}

func TestAskEndpointTransportErrorMapsToBadGateway(t *testing.T) {
	asker := &stubAsker{err: &model.APIError{StatusCode: 503, Message: "overloaded"}}
	srv := newTestServer(asker)

	w := postAsk(t, srv, `{"question": "cpu?"}`, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAskEndpointInternalError(t *testing.T) {
	asker := &stubAsker{err: errors.New("schema violation")}
	srv := newTestServer(asker)

	w := postAsk(t, srv, `{"question": "cpu?"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RequestID)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&stubAsker{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&stubAsker{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiting(t *testing.T) {
	srv := New(&stubAsker{answer: "ok"}, logging.NewTestLogger(&bytes.Buffer{}),
		Options{RateLimitPerSecond: 1, RateLimitBurst: 1})

	first := postAsk(t, srv, `{"question": "cpu?"}`, nil)
	assert.Equal(t, http.StatusOK, first.Code)

	second := postAsk(t, srv, `{"question": "cpu?"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
