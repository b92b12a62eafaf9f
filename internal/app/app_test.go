package app

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dropDatabas3/policyreg/internal/config"
	"github.com/stretchr/testify/require"
)

func request(t *testing.T, h http.Handler, method, path, body string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec.Code, rec.Body.String()
}

func TestNew_Standalone(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	require.Nil(t, a.Node)

	code, body := request(t, a.Handler, http.MethodPut, "/v1/policies/p1", `{"match":{}}`)
	require.Equal(t, http.StatusOK, code, body)

	code, body = request(t, a.Handler, http.MethodGet, "/v1/policies", "")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"policies":[{"name":"p1","definition":{"match":{}}}]}`, body)

	code, _ = request(t, a.Handler, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, code)
}

func TestNew_EmbeddedSingleNode(t *testing.T) {
	if testing.Short() {
		t.Skip("raft over tcp")
	}
	t.Setenv("CLUSTER_MODE", "embedded")
	t.Setenv("CLUSTER_NODE_ID", "n1")
	t.Setenv("CLUSTER_RAFT_ADDR", "127.0.0.1:0")
	t.Setenv("CLUSTER_RAFT_DIR", t.TempDir())
	t.Setenv("COORDINATOR_ACK_TIMEOUT", "5s")

	cfg, err := config.Load("")
	require.NoError(t, err)
	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.Eventually(t, a.Node.IsLeader, 10*time.Second, 50*time.Millisecond)

	code, body := request(t, a.Handler, http.MethodPut, "/v1/policies/p1", `{"match":{}}`)
	require.Equal(t, http.StatusOK, code, body)
	code, body = request(t, a.Handler, http.MethodDelete, "/v1/policies/p1", "")
	require.Equal(t, http.StatusOK, code, body)
	code, body = request(t, a.Handler, http.MethodGet, "/v1/policies/p1", "")
	require.Equal(t, http.StatusNotFound, code)
	require.Contains(t, body, "Policy [p1] was not found")
}

func TestNew_WriteRateLimit(t *testing.T) {
	t.Setenv("RATE_ENABLED", "true")
	t.Setenv("RATE_MAX_REQUESTS", "1")
	t.Setenv("RATE_WINDOW", "1h")

	cfg, err := config.Load("")
	require.NoError(t, err)
	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	code, _ := request(t, a.Handler, http.MethodPut, "/v1/policies/p1", `{}`)
	require.Equal(t, http.StatusOK, code)
	code, body := request(t, a.Handler, http.MethodDelete, "/v1/policies/p1", "")
	require.Equal(t, http.StatusTooManyRequests, code, body)

	code, _ = request(t, a.Handler, http.MethodGet, "/v1/policies/p1", "")
	require.Equal(t, http.StatusOK, code)
}
