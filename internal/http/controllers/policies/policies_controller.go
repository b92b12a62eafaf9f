// Package policies contiene el controller de /v1/policies.
package policies

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/policyreg/internal/action"
	"github.com/dropDatabas3/policyreg/internal/action/policyaction"
	"github.com/dropDatabas3/policyreg/internal/http/dto"
	httperrors "github.com/dropDatabas3/policyreg/internal/http/errors"
	"github.com/dropDatabas3/policyreg/internal/http/helpers"
	"github.com/dropDatabas3/policyreg/internal/observability/logger"
	"github.com/go-chi/chi/v5"
)

type Getter interface {
	Execute(ctx context.Context, req policyaction.GetRequest, l action.Listener[policyaction.GetResponse])
}

type Putter interface {
	Execute(ctx context.Context, req policyaction.PutRequest, l action.Listener[policyaction.AcknowledgedResponse])
}

type Deleter interface {
	Execute(ctx context.Context, req policyaction.DeleteRequest, l action.Listener[policyaction.AcknowledgedResponse])
}

// Controller maneja GET/PUT/DELETE de policies. Cada handler dispara la acción
// asincrónica y espera su única señal de completion.
type Controller struct {
	get Getter
	put Putter
	del Deleter
}

func NewController(get Getter, put Putter, del Deleter) *Controller {
	return &Controller{get: get, put: put, del: del}
}

// List maneja GET /v1/policies
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	c.serveGet(w, r, "")
}

// Get maneja GET /v1/policies/{name}
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	c.serveGet(w, r, chi.URLParam(r, "name"))
}

func (c *Controller) serveGet(w http.ResponseWriter, r *http.Request, name string) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("PoliciesController.Get"))

	f := action.NewFuture[policyaction.GetResponse]()
	c.get.Execute(ctx, policyaction.GetRequest{Name: name}, f)
	resp, err := f.Get(ctx)
	if err != nil {
		log.Debug("get failed", logger.Policy(name), logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.FromNamed(resp.Policies))
}

// Put maneja PUT /v1/policies/{name}; el body es la definición.
func (c *Controller) Put(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("PoliciesController.Put"), logger.Policy(name))

	def, ok := helpers.ReadRawJSON(w, r)
	if !ok {
		return
	}

	f := action.NewFuture[policyaction.AcknowledgedResponse]()
	c.put.Execute(ctx, policyaction.PutRequest{Name: name, Definition: def}, f)
	resp, err := f.Get(ctx)
	if err != nil {
		log.Info("put failed", logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}
	log.Info("policy stored")
	helpers.WriteJSON(w, http.StatusOK, dto.AcknowledgedResponse{Acknowledged: resp.Acknowledged})
}

// Delete maneja DELETE /v1/policies/{name}
func (c *Controller) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("PoliciesController.Delete"), logger.Policy(name))

	f := action.NewFuture[policyaction.AcknowledgedResponse]()
	c.del.Execute(ctx, policyaction.DeleteRequest{Name: name}, f)
	resp, err := f.Get(ctx)
	if err != nil {
		log.Info("delete failed", logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}
	log.Info("policy deleted")
	helpers.WriteJSON(w, http.StatusOK, dto.AcknowledgedResponse{Acknowledged: resp.Acknowledged})
}
