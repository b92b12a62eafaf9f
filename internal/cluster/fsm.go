package cluster

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/dropDatabas3/policyreg/internal/metrics"
	"github.com/dropDatabas3/policyreg/internal/observability/logger"
	"github.com/dropDatabas3/policyreg/internal/policy"
	"github.com/hashicorp/raft"
)

// FSM implementa raft.FSM sobre un policy.Holder.
// Es determinístico: sólo deserializa y aplica contra el snapshot vigente,
// que es el punto de serialización real de cada mutación.
// La respuesta de Apply es el *policy.Snapshot nuevo o el error tipado.
type FSM struct {
	nodeID string
	holder *policy.Holder
	sink   atomic.Pointer[AckSink]
}

// NewFSM crea el FSM del nodo nodeID publicando en holder.
func NewFSM(nodeID string, holder *policy.Holder) *FSM {
	if holder == nil {
		holder = policy.NewHolder(nil)
	}
	return &FSM{nodeID: nodeID, holder: holder}
}

// SetAckSink instala el destino de los acks. Se llama después de crear el Node
// porque el sink necesita saber quién es el líder.
func (f *FSM) SetAckSink(s AckSink) {
	f.sink.Store(&s)
}

// Holder expone el snapshot publicado por este nodo.
func (f *FSM) Holder() *policy.Holder { return f.holder }

func (f *FSM) Apply(l *raft.Log) interface{} {
	if l == nil || len(l.Data) == 0 {
		return nil
	}
	var m policy.Mutation
	if err := json.Unmarshal(l.Data, &m); err != nil {
		return fmt.Errorf("decode mutation at index %d: %w", l.Index, err)
	}

	next, err := f.holder.Apply(m)
	if err != nil {
		// Rechazo determinístico: todos los nodos lo ven igual y el linaje no cambia.
		return err
	}
	metrics.SnapshotVersion.Set(float64(next.Version()))
	metrics.Policies.Set(float64(next.Len()))
	f.ack(next.Version(), m.ID)
	return next
}

func (f *FSM) ack(version uint64, mutationID string) {
	p := f.sink.Load()
	if p == nil || *p == nil {
		return
	}
	sink := *p
	a := Ack{Member: f.nodeID, Version: version}
	// No bloquear el loop de apply de raft.
	go func() {
		if err := sink.Ack(context.Background(), a); err != nil {
			logger.Named("fsm").Debug("ack not delivered",
				logger.Member(f.nodeID), logger.Version(version), logger.MutationID(mutationID), logger.Err(err))
		}
	}()
}

func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	return &registrySnapshot{snap: f.holder.Load()}, nil
}

// Restore reemplaza el registro con el snapshot (gzip + JSON).
func (f *FSM) Restore(rc io.ReadCloser) error {
	if rc == nil {
		return nil
	}
	defer rc.Close()

	gz, err := gzip.NewReader(rc)
	if err != nil {
		return fmt.Errorf("snapshot gzip: %w", err)
	}
	defer gz.Close()

	var s policy.Snapshot
	if err := json.NewDecoder(gz).Decode(&s); err != nil {
		return fmt.Errorf("snapshot decode: %w", err)
	}
	f.holder.Store(&s)
	metrics.SnapshotVersion.Set(float64(s.Version()))
	metrics.Policies.Set(float64(s.Len()))
	return nil
}

// registrySnapshot implementa raft.FSMSnapshot sobre un snapshot inmutable:
// Persist puede correr concurrente con Apply sin copiar nada.
type registrySnapshot struct {
	snap *policy.Snapshot
}

func (s *registrySnapshot) Persist(sink raft.SnapshotSink) error {
	gw := gzip.NewWriter(sink)
	if err := json.NewEncoder(gw).Encode(s.snap); err != nil {
		_ = gw.Close()
		_ = sink.Cancel()
		return err
	}
	if err := gw.Close(); err != nil {
		_ = sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *registrySnapshot) Release() {}
