package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/policyreg/internal/http/errors"
	"github.com/dropDatabas3/policyreg/internal/policy"
)

// LeaderState es lo mínimo que necesita RequireLeader del transporte.
type LeaderState interface {
	IsLeader() bool
	LeaderID() string
}

// RequireLeader asegura que las escrituras sólo se ejecuten en el líder.
//   - Lecturas o nodo líder => pasa.
//   - Follower => 409 NOT_LEADER con X-Leader (503 si no hay líder elegido).
//   - Si el cliente pide redirect (X-Leader-Redirect: 1 o ?leader_redirect=1)
//     y el líder tiene URL en leaderURLs => 307 a esa URL.
func RequireLeader(state LeaderState, leaderURLs map[string]string) Middleware {
	allowlist := make(map[string]struct{})
	for _, u := range leaderURLs {
		if host := extractHost(u); host != "" {
			allowlist[strings.ToLower(host)] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			default:
				next.ServeHTTP(w, r)
				return
			}
			if state == nil || state.IsLeader() {
				next.ServeHTTP(w, r)
				return
			}

			leaderID := state.LeaderID()
			wantsRedirect := strings.TrimSpace(r.Header.Get("X-Leader-Redirect")) == "1" ||
				strings.TrimSpace(r.URL.Query().Get("leader_redirect")) == "1"

			if wantsRedirect && leaderID != "" {
				if base := strings.TrimSpace(leaderURLs[leaderID]); base != "" {
					low := strings.ToLower(base)
					if strings.HasPrefix(low, "http://") || strings.HasPrefix(low, "https://") {
						if _, ok := allowlist[strings.ToLower(extractHost(base))]; ok {
							base = strings.TrimRight(base, "/")
							w.Header().Set("X-Leader", leaderID)
							w.Header().Set("X-Leader-URL", base)
							w.Header().Set("Location", base+r.URL.RequestURI())
							w.WriteHeader(http.StatusTemporaryRedirect)
							return
						}
					}
				}
			}

			errors.WriteError(w, &policy.NotLeaderError{Leader: leaderID})
		})
	}
}

// extractHost extrae el host:port de una URL.
func extractHost(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		url = url[i+3:]
	}
	if j := strings.Index(url, "/"); j >= 0 {
		url = url[:j]
	}
	return url
}
