// Package cluster contiene los endpoints internos del cluster: acks y membresía.
package cluster

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/policyreg/internal/cluster"
	"github.com/dropDatabas3/policyreg/internal/http/dto"
	httperrors "github.com/dropDatabas3/policyreg/internal/http/errors"
	"github.com/dropDatabas3/policyreg/internal/http/helpers"
	"github.com/dropDatabas3/policyreg/internal/observability/logger"
	"github.com/go-chi/chi/v5"
)

// AckReceiver recibe acks de los miembros (el AckHub del líder).
type AckReceiver interface {
	Ack(a cluster.Ack)
}

// View estado del cluster visto por este nodo.
type View interface {
	LocalID() string
	LeaderID() string
	Members(ctx context.Context) ([]string, error)
}

// Membership altas/bajas de votantes. Nil en modo standalone.
type Membership interface {
	AddVoter(ctx context.Context, id, addr string) error
	RemoveServer(ctx context.Context, id string) error
}

type Controller struct {
	acks       AckReceiver
	view       View
	membership Membership
}

func NewController(acks AckReceiver, view View, membership Membership) *Controller {
	return &Controller{acks: acks, view: view, membership: membership}
}

// Ack maneja POST /internal/v1/acks
func (c *Controller) Ack(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("ClusterController.Ack"))

	var a cluster.Ack
	if !helpers.ReadJSON(w, r, &a) {
		return
	}
	if a.Member == "" || a.Version == 0 {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("member and version are required"))
		return
	}
	if c.acks == nil {
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithDetail("ack hub not configured"))
		return
	}
	c.acks.Ack(a)
	log.Debug("ack received", logger.Member(a.Member), logger.Version(a.Version))
	w.WriteHeader(http.StatusAccepted)
}

// Members maneja GET /internal/v1/cluster/members
func (c *Controller) Members(w http.ResponseWriter, r *http.Request) {
	ids, err := c.view.Members(r.Context())
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithCause(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.MembersResponse{Members: ids, Leader: c.view.LeaderID(), Self: c.view.LocalID()})
}

// AddMember maneja POST /internal/v1/cluster/members
func (c *Controller) AddMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("ClusterController.AddMember"))
	if c.membership == nil {
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithDetail("membership requires cluster mode embedded"))
		return
	}

	var req dto.MemberRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.ID == "" || req.Addr == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("id and addr are required"))
		return
	}
	if err := c.membership.AddVoter(ctx, req.ID, req.Addr); err != nil {
		log.Warn("add voter failed", logger.Member(req.ID), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithDetail(err.Error()).WithCause(err))
		return
	}
	log.Info("voter added", logger.Member(req.ID), logger.String("addr", req.Addr))
	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember maneja DELETE /internal/v1/cluster/members/{id}
func (c *Controller) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("ClusterController.RemoveMember"), logger.Member(id))
	if c.membership == nil {
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithDetail("membership requires cluster mode embedded"))
		return
	}
	if err := c.membership.RemoveServer(ctx, id); err != nil {
		log.Warn("remove server failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithDetail(err.Error()).WithCause(err))
		return
	}
	log.Info("server removed")
	w.WriteHeader(http.StatusNoContent)
}
