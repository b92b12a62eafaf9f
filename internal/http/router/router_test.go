package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dropDatabas3/policyreg/internal/action/policyaction"
	"github.com/dropDatabas3/policyreg/internal/cluster"
	"github.com/dropDatabas3/policyreg/internal/coordinator"
	clusterctrl "github.com/dropDatabas3/policyreg/internal/http/controllers/cluster"
	"github.com/dropDatabas3/policyreg/internal/http/controllers/health"
	"github.com/dropDatabas3/policyreg/internal/http/controllers/policies"
	"github.com/dropDatabas3/policyreg/internal/http/dto"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	local *cluster.Local
	hub   *cluster.AckHub
}

func newTestServer(t *testing.T, ackTimeout time.Duration, members ...string) *testServer {
	t.Helper()
	l := cluster.NewLocal("n1", members...)
	c := coordinator.New(l, coordinator.Options{AckTimeout: ackTimeout})
	t.Cleanup(c.Stop)
	hub := cluster.NewAckHub(time.Minute)

	h := New(Deps{
		Policies: policies.NewController(policyaction.NewGetAction(l), policyaction.NewPutAction(c), policyaction.NewDeleteAction(c)),
		Cluster:  clusterctrl.NewController(hub, l, nil),
		Health:   health.NewController(l, hub),
		Leader:   l,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, local: l, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path string, body []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func TestPolicies_PutGetDeleteLifecycle(t *testing.T) {
	s := newTestServer(t, time.Second, "n2")

	resp, body := s.do(t, http.MethodGet, "/v1/policies", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"policies":[]}`, string(body))

	resp, body = s.do(t, http.MethodPut, "/v1/policies/my-policy", []byte(`{"match":{"indices":"users"}}`))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.JSONEq(t, `{"acknowledged":true}`, string(body))

	resp, body = s.do(t, http.MethodGet, "/v1/policies/my-policy", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list dto.PoliciesResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Policies, 1)
	require.Equal(t, "my-policy", list.Policies[0].Name)
	require.JSONEq(t, `{"match":{"indices":"users"}}`, string(list.Policies[0].Definition))

	resp, _ = s.do(t, http.MethodPut, "/v1/policies/my-policy", []byte(`{}`))
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = s.do(t, http.MethodDelete, "/v1/policies/my-policy", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"acknowledged":true}`, string(body))

	resp, body = s.do(t, http.MethodGet, "/v1/policies/my-policy", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	var e map[string]string
	require.NoError(t, json.Unmarshal(body, &e))
	require.Equal(t, "POLICY_NOT_FOUND", e["code"])
	require.Equal(t, "Policy [my-policy] was not found", e["message"])
}

func TestPolicies_InvalidBodies(t *testing.T) {
	s := newTestServer(t, time.Second)

	resp, _ := s.do(t, http.MethodPut, "/v1/policies/p", []byte(`{nope`))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := s.do(t, http.MethodPut, "/v1/policies/Upper", []byte(`{}`))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, string(body), "INVALID_POLICY")
}

func TestPolicies_DeleteTimeoutIs504(t *testing.T) {
	s := newTestServer(t, 80*time.Millisecond, "n2")
	resp, _ := s.do(t, http.MethodPut, "/v1/policies/p", []byte(`{}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	s.local.Member("n2").SetDown(true)
	resp, body := s.do(t, http.MethodDelete, "/v1/policies/p", nil)
	require.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	require.Contains(t, string(body), "ACK_TIMEOUT")
}

func TestPolicies_FollowerRejectsWrites(t *testing.T) {
	s := newTestServer(t, time.Second)
	s.local.SetLeader(false)

	resp, _ := s.do(t, http.MethodDelete, "/v1/policies/p", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/v1/policies", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInternal_AckFeedsHub(t *testing.T) {
	s := newTestServer(t, time.Second)
	ch := s.hub.Subscribe(5, 1)

	resp, _ := s.do(t, http.MethodPost, "/internal/v1/acks", []byte(`{"member":"n2","version":5}`))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, cluster.Ack{Member: "n2", Version: 5}, <-ch)

	resp, _ = s.do(t, http.MethodPost, "/internal/v1/acks", []byte(`{"member":""}`))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInternal_MembershipNeedsEmbeddedMode(t *testing.T) {
	s := newTestServer(t, time.Second, "n2")

	resp, body := s.do(t, http.MethodGet, "/internal/v1/cluster/members", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var m dto.MembersResponse
	require.NoError(t, json.Unmarshal(body, &m))
	require.Equal(t, []string{"n1", "n2"}, m.Members)
	require.Equal(t, "n1", m.Leader)

	resp, _ = s.do(t, http.MethodPost, "/internal/v1/cluster/members", []byte(`{"id":"n3","addr":"127.0.0.1:7003"}`))
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestReadyzAndUnknownRoutes(t *testing.T) {
	s := newTestServer(t, time.Second)

	resp, body := s.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var h dto.HealthResponse
	require.NoError(t, json.Unmarshal(body, &h))
	require.Equal(t, "ready", h.Status)
	require.True(t, h.IsLeader)

	resp, _ = s.do(t, http.MethodGet, "/nope", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
