// Package cluster provee el transporte de estado replicado del registro:
// un nodo Raft embebido (hashicorp/raft) con su FSM, el hub de acks del líder
// y un cluster en memoria para modo standalone y tests.
package cluster

import (
	"context"
	"sort"

	"github.com/dropDatabas3/policyreg/internal/policy"
)

// Ack es la confirmación de un miembro de que aplicó Version.
type Ack struct {
	Member  string `json:"member"`
	Version uint64 `json:"version"`
}

// AckSink entrega acks al coordinador vigente.
type AckSink interface {
	Ack(ctx context.Context, a Ack) error
}

// AckSinkFunc adapta una función a AckSink.
type AckSinkFunc func(ctx context.Context, a Ack) error

func (f AckSinkFunc) Ack(ctx context.Context, a Ack) error { return f(ctx, a) }

// Publication es el resultado de publicar una mutación: el snapshot producido
// y el stream de acks de los miembros para esa versión.
type Publication struct {
	Snapshot *policy.Snapshot
	Acks     <-chan Ack
	release  func()
}

// Close libera el registro de acks. Acks tardíos se descartan.
func (p *Publication) Close() {
	if p != nil && p.release != nil {
		p.release()
	}
}

func sortedIDs(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}
