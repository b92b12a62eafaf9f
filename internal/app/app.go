// Package app arma un nodo completo a partir de la configuración:
// transporte (Raft embebido o cluster local), coordinador, acciones y API HTTP.
package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dropDatabas3/policyreg/internal/action/policyaction"
	"github.com/dropDatabas3/policyreg/internal/cluster"
	"github.com/dropDatabas3/policyreg/internal/config"
	"github.com/dropDatabas3/policyreg/internal/coordinator"
	clusterctrl "github.com/dropDatabas3/policyreg/internal/http/controllers/cluster"
	"github.com/dropDatabas3/policyreg/internal/http/controllers/health"
	"github.com/dropDatabas3/policyreg/internal/http/controllers/policies"
	"github.com/dropDatabas3/policyreg/internal/http/router"
	"github.com/dropDatabas3/policyreg/internal/metrics"
	"github.com/dropDatabas3/policyreg/internal/observability/logger"
	"github.com/dropDatabas3/policyreg/internal/policy"
	"github.com/dropDatabas3/policyreg/internal/rate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	rdb "github.com/redis/go-redis/v9"
)

// App es un nodo cableado.
type App struct {
	Handler     http.Handler
	Coordinator *coordinator.Coordinator
	Publisher   coordinator.Publisher
	Hub         *cluster.AckHub

	// Node es nil en modo standalone.
	Node *cluster.Node

	cleanups []func() error
}

// New construye el nodo. Si falla a mitad de camino libera lo ya creado.
func New(cfg *config.Config) (_ *App, err error) {
	log := logger.Named("app")
	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if err := metrics.Register(nil); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	quorum, err := coordinator.ParseQuorum(cfg.Coordinator.Quorum)
	if err != nil {
		return nil, err
	}

	a.Hub = cluster.NewAckHub(cfg.AckRetention())

	var membership clusterctrl.Membership
	if cfg.Embedded() {
		fsm := cluster.NewFSM(cfg.Cluster.NodeID, policy.NewHolder(nil))
		node, err := cluster.NewNode(cluster.NodeOptions{
			NodeID:             cfg.Cluster.NodeID,
			RaftAddr:           cfg.Cluster.RaftAddr,
			RaftDir:            cfg.Cluster.RaftDir,
			FSM:                fsm,
			Peers:              cfg.Cluster.Nodes,
			BootstrapPreferred: cfg.Cluster.BootstrapPreferred,
			DisableBootstrap:   cfg.Cluster.DisableBootstrap,
			ApplyTimeout:       cfg.ApplyTimeout(),
			RaftTLSEnable:      cfg.Cluster.RaftTLSEnable,
			RaftTLSCertFile:    cfg.Cluster.RaftTLSCertFile,
			RaftTLSKeyFile:     cfg.Cluster.RaftTLSKeyFile,
			RaftTLSCAFile:      cfg.Cluster.RaftTLSCAFile,
			RaftTLSServerName:  cfg.Cluster.RaftTLSServerName,
		})
		if err != nil {
			return nil, fmt.Errorf("raft node: %w", err)
		}
		a.Node = node
		a.cleanups = append(a.cleanups, node.Close)
		fsm.SetAckSink(cluster.NewLeaderAckSink(node, a.Hub, cfg.Cluster.HTTPAddrs))
		a.Publisher = cluster.NewRaftPublisher(node, fsm, a.Hub)
		membership = node
		log.Info("raft embedded mode", logger.Member(cfg.Cluster.NodeID), logger.String("raft_addr", node.RaftAddr()), logger.Count(len(cfg.Cluster.Nodes)))
	} else {
		a.Publisher = cluster.NewLocal(cfg.Cluster.NodeID)
		log.Info("standalone mode", logger.Member(cfg.Cluster.NodeID))
	}

	a.Coordinator = coordinator.New(a.Publisher, coordinator.Options{
		AckTimeout: cfg.AckTimeout(),
		Quorum:     quorum,
		QueueSize:  cfg.Coordinator.QueueSize,
	})
	a.cleanups = append(a.cleanups, func() error { a.Coordinator.Stop(); return nil })

	limiter := a.newLimiter(cfg)

	a.Handler = router.New(router.Deps{
		Policies: policies.NewController(
			policyaction.NewGetAction(a.Publisher),
			policyaction.NewPutAction(a.Coordinator),
			policyaction.NewDeleteAction(a.Coordinator),
		),
		Cluster:     clusterctrl.NewController(a.Hub, a.Publisher, membership),
		Health:      health.NewController(a.Publisher, a.Hub),
		Leader:      a.Publisher,
		LeaderURLs:  cfg.Cluster.LeaderRedirects,
		Metrics:     promhttp.Handler(),
		RateLimiter: limiter,
	})
	return a, nil
}

func (a *App) newLimiter(cfg *config.Config) rate.Limiter {
	if !cfg.Rate.Enabled {
		return nil
	}
	log := logger.Named("rate")
	if cfg.Rate.Redis.Addr == "" {
		log.Info("write rate limit (memory)", logger.Int("max", cfg.Rate.MaxRequests), logger.String("window", cfg.Rate.Window))
		return rate.NewMemoryLimiter(cfg.Rate.MaxRequests, cfg.RateWindow())
	}
	client := rdb.NewClient(&rdb.Options{Addr: cfg.Rate.Redis.Addr, DB: cfg.Rate.Redis.DB})
	a.cleanups = append(a.cleanups, client.Close)
	log.Info("write rate limit (redis)", logger.String("addr", cfg.Rate.Redis.Addr), logger.Int("max", cfg.Rate.MaxRequests), logger.String("window", cfg.Rate.Window))
	return rate.NewRedisLimiter(client, cfg.Rate.Redis.Prefix, cfg.Rate.MaxRequests, cfg.RateWindow())
}

// Close detiene coordinador y nodo en orden inverso a su creación.
func (a *App) Close() error {
	var errs []error
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanups = nil
	return errors.Join(errs...)
}
