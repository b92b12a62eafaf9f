// Package policyaction contiene las acciones públicas del registro: Get, Put y Delete.
// Todas son asincrónicas y completan su Listener exactamente una vez.
package policyaction

import (
	"context"
	"encoding/json"

	"github.com/dropDatabas3/policyreg/internal/action"
	"github.com/dropDatabas3/policyreg/internal/policy"
)

// SnapshotSource expone el snapshot publicado en este nodo.
type SnapshotSource interface {
	Current() *policy.Snapshot
}

// Proposer es el lado de escritura: normalmente *coordinator.Coordinator.
type Proposer interface {
	Submit(ctx context.Context, m policy.Mutation, l action.Listener[*policy.Snapshot])
}

// GetRequest: Name vacío lista todo.
type GetRequest struct {
	Name string
}

type GetResponse struct {
	Policies []policy.NamedPolicy `json:"policies"`
}

type PutRequest struct {
	Name       string
	Definition json.RawMessage
}

type DeleteRequest struct {
	Name string
}

// AcknowledgedResponse se entrega cuando el quorum confirmó la mutación.
type AcknowledgedResponse struct {
	Acknowledged bool `json:"acknowledged"`
}
