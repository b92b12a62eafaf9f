package policy

import (
	"time"

	"github.com/google/uuid"
)

// MutationType define el catálogo de operaciones replicadas.
type MutationType string

const (
	MutationPut    MutationType = "policy.put"
	MutationDelete MutationType = "policy.delete"
)

// Mutation es la unidad que serializa el coordinador y replica el cluster.
// Es determinística al aplicarse: ID y TsUnix los fija quien la propone.
type Mutation struct {
	ID     string       `json:"id"`
	Type   MutationType `json:"type"`
	Name   string       `json:"name"`
	Policy *Policy      `json:"policy,omitempty"`
	TsUnix int64        `json:"tsUnix"`
}

// NewPut arma una mutación de alta.
func NewPut(p Policy) Mutation {
	cp := p
	return Mutation{
		ID:     uuid.NewString(),
		Type:   MutationPut,
		Name:   p.Name,
		Policy: &cp,
		TsUnix: time.Now().Unix(),
	}
}

// NewDelete arma una mutación de baja.
func NewDelete(name string) Mutation {
	return Mutation{
		ID:     uuid.NewString(),
		Type:   MutationDelete,
		Name:   name,
		TsUnix: time.Now().Unix(),
	}
}
