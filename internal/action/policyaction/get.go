package policyaction

import (
	"context"

	"github.com/dropDatabas3/policyreg/internal/action"
	"github.com/dropDatabas3/policyreg/internal/observability/logger"
	"github.com/dropDatabas3/policyreg/internal/policy"
)

// GetAction lee del snapshot local; no pasa por el coordinador.
type GetAction struct {
	src SnapshotSource
}

func NewGetAction(src SnapshotSource) *GetAction {
	return &GetAction{src: src}
}

// Execute resuelve la lectura contra un único snapshot, tomado al arrancar,
// y completa l en otra goroutine.
func (a *GetAction) Execute(ctx context.Context, req GetRequest, l action.Listener[GetResponse]) {
	l = action.Once(l)
	go func() {
		if err := ctx.Err(); err != nil {
			l.OnFailure(err)
			return
		}
		resp, err := a.get(req)
		if err != nil {
			logger.From(ctx).Debug("get failed", logger.Op("GetAction.Execute"), logger.Policy(req.Name), logger.Err(err))
		}
		action.Complete(l, resp, err)
	}()
}

func (a *GetAction) get(req GetRequest) (GetResponse, error) {
	snap := a.src.Current()
	if req.Name == "" {
		return GetResponse{Policies: snap.ListAll()}, nil
	}
	p, ok := snap.Lookup(req.Name)
	if !ok {
		return GetResponse{}, policy.NotFound(req.Name)
	}
	return GetResponse{Policies: []policy.NamedPolicy{{Name: req.Name, Policy: p}}}, nil
}
