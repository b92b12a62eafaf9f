package cluster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/policyreg/internal/policy"
	"github.com/hashicorp/raft"
)

// RaftPublisher publica mutaciones a través del log de Raft. El commit garantiza
// orden total y durabilidad en mayoría; los acks por miembro llegan aparte
// (cada FSM reporta al líder cuando aplicó la versión).
type RaftPublisher struct {
	node *Node
	fsm  *FSM
	hub  *AckHub
}

// NewRaftPublisher conecta Node, FSM y hub del líder.
func NewRaftPublisher(node *Node, fsm *FSM, hub *AckHub) *RaftPublisher {
	return &RaftPublisher{node: node, fsm: fsm, hub: hub}
}

func (p *RaftPublisher) LocalID() string  { return p.node.NodeID() }
func (p *RaftPublisher) IsLeader() bool   { return p.node.IsLeader() }
func (p *RaftPublisher) LeaderID() string { return p.node.LeaderID() }

// Current es el último snapshot aplicado por el FSM local.
func (p *RaftPublisher) Current() *policy.Snapshot { return p.fsm.Holder().Load() }

// Members ids de la configuración Raft vigente.
func (p *RaftPublisher) Members(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.node.Members(ctx)
}

// Publish agrega m al log y espera el apply local. Errores de Raft se traducen
// a la taxonomía del registro: sin líder => ErrCoordinatorUnavailable,
// timeouts => ErrTimeout.
func (p *RaftPublisher) Publish(ctx context.Context, m policy.Mutation, members int) (*Publication, error) {
	if !p.node.IsLeader() {
		return nil, &policy.NotLeaderError{Leader: p.node.LeaderID()}
	}
	_, resp, err := p.node.Apply(ctx, m)
	if err != nil {
		return nil, translateRaftErr(err, p.node.LeaderID())
	}
	switch r := resp.(type) {
	case error:
		return nil, r
	case *policy.Snapshot:
		v := r.Version()
		return &Publication{
			Snapshot: r,
			Acks:     p.hub.Subscribe(v, members),
			release:  func() { p.hub.Release(v) },
		}, nil
	default:
		return nil, fmt.Errorf("unexpected fsm response %T", resp)
	}
}

func translateRaftErr(err error, leader string) error {
	switch {
	case errors.Is(err, raft.ErrNotLeader), errors.Is(err, raft.ErrLeadershipLost),
		errors.Is(err, raft.ErrLeadershipTransferInProgress):
		return &policy.NotLeaderError{Leader: leader}
	case errors.Is(err, raft.ErrRaftShutdown), errors.Is(err, ErrRaftNotInitialized):
		return fmt.Errorf("%w: %v", policy.ErrCoordinatorUnavailable, err)
	case errors.Is(err, raft.ErrEnqueueTimeout), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", policy.ErrTimeout, err)
	default:
		return err
	}
}
