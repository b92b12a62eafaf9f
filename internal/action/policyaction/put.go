package policyaction

import (
	"context"

	"github.com/dropDatabas3/policyreg/internal/action"
	"github.com/dropDatabas3/policyreg/internal/observability/logger"
	"github.com/dropDatabas3/policyreg/internal/policy"
)

// PutAction crea una policy. No reemplaza: un nombre existente falla con AlreadyExists.
type PutAction struct {
	prop Proposer
}

func NewPutAction(prop Proposer) *PutAction {
	return &PutAction{prop: prop}
}

func (a *PutAction) Execute(ctx context.Context, req PutRequest, l action.Listener[AcknowledgedResponse]) {
	l = action.Once(l)
	p := policy.Policy{Name: req.Name, Definition: req.Definition}
	if err := p.Validate(); err != nil {
		go l.OnFailure(err)
		return
	}
	m := policy.NewPut(p)
	logger.From(ctx).Debug("put proposed", logger.Op("PutAction.Execute"), logger.Policy(req.Name), logger.MutationID(m.ID))
	a.prop.Submit(ctx, m, acknowledged(l))
}
