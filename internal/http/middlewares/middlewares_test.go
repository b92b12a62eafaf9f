package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dropDatabas3/policyreg/internal/rate"

	"github.com/stretchr/testify/require"
)

type fakeLeader struct {
	leader bool
	id     string
}

func (f fakeLeader) IsLeader() bool   { return f.leader }
func (f fakeLeader) LeaderID() string { return f.id }

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestRequireLeader_ReadsPassOnFollower(t *testing.T) {
	h := RequireLeader(fakeLeader{id: "n1"}, nil)(okHandler)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/policies", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireLeader_FollowerWriteIs409WithLeader(t *testing.T) {
	h := RequireLeader(fakeLeader{id: "n1"}, nil)(okHandler)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/policies/p", nil))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "n1", rec.Header().Get("X-Leader"))
}

func TestRequireLeader_NoLeaderIs503(t *testing.T) {
	h := RequireLeader(fakeLeader{}, nil)(okHandler)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/policies/p", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequireLeader_Redirect(t *testing.T) {
	h := RequireLeader(fakeLeader{id: "n1"}, map[string]string{"n1": "http://10.0.0.1:8080/"})(okHandler)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/v1/policies/p?leader_redirect=1", nil)
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	require.Equal(t, "http://10.0.0.1:8080/v1/policies/p?leader_redirect=1", rec.Header().Get("Location"))
}

func TestRequireLeader_LeaderPasses(t *testing.T) {
	h := RequireLeader(fakeLeader{leader: true, id: "n1"}, nil)(okHandler)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/policies/p", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestWithRequestID_PropagatesOrGenerates(t *testing.T) {
	var seen string
	h := WithRequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	h.ServeHTTP(rec, req)
	require.Equal(t, "abc", seen)
	require.Equal(t, "abc", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, seen, 36)
	require.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

func TestWithRecover(t *testing.T) {
	h := WithRecover()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWithWriteRateLimit(t *testing.T) {
	h := WithWriteRateLimit(rate.NewMemoryLimiter(1, time.Hour))(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/policies/p", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/policies/p", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	// lecturas no cuentan
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/policies", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}
