package policyaction

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/policyreg/internal/action"
	"github.com/dropDatabas3/policyreg/internal/observability/logger"
	"github.com/dropDatabas3/policyreg/internal/policy"
)

// DeleteAction remueve una policy a través del coordinador. Nunca toca el
// snapshot local directamente: el linaje tiene un único escritor.
type DeleteAction struct {
	prop Proposer
}

func NewDeleteAction(prop Proposer) *DeleteAction {
	return &DeleteAction{prop: prop}
}

// Execute propone el delete y completa l recién cuando el quorum confirmó
// (o con NotFound / Timeout / CoordinatorUnavailable). Sin nombre falla InvalidPolicy.
func (a *DeleteAction) Execute(ctx context.Context, req DeleteRequest, l action.Listener[AcknowledgedResponse]) {
	l = action.Once(l)
	if req.Name == "" {
		go l.OnFailure(fmt.Errorf("%w: name is required", policy.ErrInvalidPolicy))
		return
	}
	m := policy.NewDelete(req.Name)
	logger.From(ctx).Debug("delete proposed", logger.Op("DeleteAction.Execute"), logger.Policy(req.Name), logger.MutationID(m.ID))
	a.prop.Submit(ctx, m, acknowledged(l))
}

// acknowledged traduce la señal del coordinador a la respuesta pública.
func acknowledged(l action.Listener[AcknowledgedResponse]) action.Listener[*policy.Snapshot] {
	return action.ListenerFunc[*policy.Snapshot]{
		Response: func(*policy.Snapshot) { l.OnResponse(AcknowledgedResponse{Acknowledged: true}) },
		Failure:  l.OnFailure,
	}
}
