// Package dto define los cuerpos de request/response del API HTTP.
package dto

import (
	"encoding/json"

	"github.com/dropDatabas3/policyreg/internal/policy"
)

// PolicyEntry es una policy tal como viaja por el API.
type PolicyEntry struct {
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition"`
}

// PoliciesResponse respuesta de GET /v1/policies[/{name}].
type PoliciesResponse struct {
	Policies []PolicyEntry `json:"policies"`
}

// FromNamed arma la respuesta preservando el orden recibido.
func FromNamed(in []policy.NamedPolicy) PoliciesResponse {
	out := PoliciesResponse{Policies: make([]PolicyEntry, 0, len(in))}
	for _, np := range in {
		out.Policies = append(out.Policies, PolicyEntry{Name: np.Name, Definition: np.Policy.Definition})
	}
	return out
}

// AcknowledgedResponse respuesta de PUT/DELETE.
type AcknowledgedResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

// MemberRequest alta de un miembro Raft.
type MemberRequest struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
}

// MembersResponse lista de miembros y líder vigente.
type MembersResponse struct {
	Members []string `json:"members"`
	Leader  string   `json:"leader,omitempty"`
	Self    string   `json:"self"`
}

// HealthResponse respuesta de /readyz.
type HealthResponse struct {
	Status     string            `json:"status"` // ready | degraded | unavailable
	NodeID     string            `json:"node_id"`
	Leader     string            `json:"leader,omitempty"`
	IsLeader   bool              `json:"is_leader"`
	Version    uint64            `json:"snapshot_version"`
	Policies   int               `json:"policies"`
	Components map[string]string `json:"components,omitempty"`
}
