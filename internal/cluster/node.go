package cluster

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dropDatabas3/policyreg/internal/metrics"
	"github.com/dropDatabas3/policyreg/internal/observability/logger"
	"github.com/dropDatabas3/policyreg/internal/policy"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"go.uber.org/zap"
)

// membershipTimeout es el timeout por defecto para AddVoter/RemoveServer.
const membershipTimeout = 10 * time.Second

// ErrRaftNotInitialized se devuelve al operar sobre un Node nil o cerrado.
var ErrRaftNotInitialized = errors.New("raft not initialized")

// Node es un wrapper liviano alrededor de *raft.Raft con helpers de
// Apply/Leader/Membership y un constructor que inicializa stores (BoltDB),
// snapshots y transporte TCP.
type Node struct {
	r            *raft.Raft
	applyTimeout time.Duration
	id           raft.ServerID
	addr         raft.ServerAddress
	membershipMu sync.Mutex        // protege AddVoter/RemoveServer
	stop         chan struct{}
	closeOnce    sync.Once
}

type NodeOptions struct {
	NodeID   string            // identidad de este nodo
	RaftAddr string            // host:port del transporte Raft
	RaftDir  string            // directorio de datos (raft.db + snapshots)
	FSM      raft.FSM          // normalmente *cluster.FSM
	Peers    map[string]string // peers estáticos (nodeID->raftAddr). Si >1, bootstrap estático en un nodo.

	// BootstrapPreferred: este nodo hace el bootstrap inicial cuando no hay estado.
	// Si es false se elige el de menor NodeID.
	BootstrapPreferred bool

	// DisableBootstrap: modo join-only, el nodo espera a que el líder lo agregue.
	DisableBootstrap bool

	// ApplyTimeout acota el encolado en raft.Apply. Default 5s.
	ApplyTimeout time.Duration

	// TLS opcional (mTLS) para el transporte.
	RaftTLSEnable     bool
	RaftTLSCertFile   string
	RaftTLSKeyFile    string
	RaftTLSCAFile     string
	RaftTLSServerName string

	// Overrides para tests: si Transport != nil no se crean stores ni transporte en disco.
	Config        *raft.Config
	Transport     raft.Transport
	LogStore      raft.LogStore
	StableStore   raft.StableStore
	SnapshotStore raft.SnapshotStore
}

func NewNode(opts NodeOptions) (*Node, error) {
	if opts.NodeID == "" || opts.FSM == nil {
		return nil, errors.New("invalid NodeOptions")
	}
	log := logger.Named("cluster").With(logger.Member(opts.NodeID))

	var (
		logStore    raft.LogStore
		stableStore raft.StableStore
		snapStore   raft.SnapshotStore
		trans       raft.Transport
		boltPath    string
	)

	if opts.Transport != nil {
		trans = opts.Transport
		logStore, stableStore, snapStore = opts.LogStore, opts.StableStore, opts.SnapshotStore
		if logStore == nil || stableStore == nil || snapStore == nil {
			return nil, errors.New("transport override requires log, stable and snapshot stores")
		}
	} else {
		if opts.RaftAddr == "" || opts.RaftDir == "" {
			return nil, errors.New("invalid NodeOptions: raft addr and dir required")
		}
		if err := os.MkdirAll(opts.RaftDir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir raft dir: %w", err)
		}

		// Stores: log + stable en la misma Bolt DB.
		boltPath = filepath.Join(opts.RaftDir, "raft.db")
		boltStore, err := raftboltdb.NewBoltStore(boltPath)
		if err != nil {
			return nil, fmt.Errorf("bolt store: %w", err)
		}
		logStore, stableStore = boltStore, boltStore

		// Snapshots en disco (retenemos 2).
		fss, err := raft.NewFileSnapshotStore(opts.RaftDir, 2, os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("snapshot store: %w", err)
		}
		snapStore = fss

		if opts.RaftTLSEnable {
			bundle, err := loadTLSBundle(opts.RaftTLSCertFile, opts.RaftTLSKeyFile, opts.RaftTLSCAFile, opts.RaftTLSServerName)
			if err != nil {
				return nil, fmt.Errorf("raft tls: %w", err)
			}
			ln, err := tls.Listen("tcp", opts.RaftAddr, bundle.server)
			if err != nil {
				return nil, fmt.Errorf("tls listen: %w", err)
			}
			trans = raft.NewNetworkTransport(&tlsStream{ln: ln, cfg: bundle.client}, 3, 10*time.Second, os.Stderr)
		} else {
			plain, err := raft.NewTCPTransport(opts.RaftAddr, nil, 3, 10*time.Second, os.Stderr)
			if err != nil {
				return nil, fmt.Errorf("tcp transport: %w", err)
			}
			trans = plain
		}
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = raft.DefaultConfig()
	}
	cfg.LocalID = raft.ServerID(opts.NodeID)

	r, err := raft.NewRaft(cfg, opts.FSM, logStore, stableStore, snapStore, trans)
	if err != nil {
		return nil, fmt.Errorf("new raft: %w", err)
	}

	n := &Node{
		r:            r,
		applyTimeout: opts.ApplyTimeout,
		id:           cfg.LocalID,
		addr:         trans.LocalAddr(),
		stop:         make(chan struct{}),
	}
	if n.applyTimeout <= 0 {
		n.applyTimeout = 5 * time.Second
	}

	// Cambios de liderazgo (metrics + log)
	go func(ch <-chan bool) {
		for {
			select {
			case v, ok := <-ch:
				if !ok {
					return
				}
				if v {
					metrics.RaftLeadershipChanges.Inc()
				}
				log.Info("leadership changed", logger.Bool("leader", v))
			case <-n.stop:
				return
			}
		}
	}(r.LeaderCh())

	// Bootstrap si no hay estado previo
	hasState, err := raft.HasExistingState(logStore, stableStore, snapStore)
	if err != nil {
		return nil, fmt.Errorf("check state: %w", err)
	}
	if !hasState {
		if err := n.bootstrap(opts, log); err != nil {
			return nil, err
		}
	}

	// Tamaño del log (si hay archivo Bolt)
	if boltPath != "" {
		go func() {
			t := time.NewTicker(10 * time.Second)
			defer t.Stop()
			for {
				select {
				case <-t.C:
					if st, err := os.Stat(boltPath); err == nil {
						metrics.RaftLogSizeBytes.Set(float64(st.Size()))
					}
				case <-n.stop:
					return
				}
			}
		}()
	}

	return n, nil
}

func (n *Node) bootstrap(opts NodeOptions, log *zap.Logger) error {
	if opts.DisableBootstrap {
		log.Info("join-only mode: skipping bootstrap")
		return nil
	}
	if len(opts.Peers) <= 1 {
		conf := raft.Configuration{Servers: []raft.Server{{ID: n.id, Address: n.addr}}}
		if err := n.r.BootstrapCluster(conf).Error(); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		log.Info("bootstrapped single-node cluster")
		return nil
	}

	// Bootstrap estático en un único nodo determinístico (menor NodeID)
	smallest := opts.NodeID
	for k := range opts.Peers {
		if k < smallest {
			smallest = k
		}
	}
	if !opts.BootstrapPreferred && opts.NodeID != smallest {
		log.Info("waiting to join static cluster", logger.String("bootstrapper", smallest))
		return nil
	}
	servers := make([]raft.Server, 0, len(opts.Peers))
	for _, id := range sortedIDs(keys(opts.Peers)) {
		servers = append(servers, raft.Server{ID: raft.ServerID(id), Address: raft.ServerAddress(opts.Peers[id])})
	}
	if err := n.r.BootstrapCluster(raft.Configuration{Servers: servers}).Error(); err != nil {
		return fmt.Errorf("bootstrap(static): %w", err)
	}
	log.Info("bootstrapped static cluster", logger.Count(len(servers)))
	return nil
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// Apply serializa la mutación y espera commit + apply local o timeout.
// Devuelve el índice del log y la respuesta del FSM.
func (n *Node) Apply(ctx context.Context, m policy.Mutation) (uint64, interface{}, error) {
	if n == nil || n.r == nil {
		return 0, nil, ErrRaftNotInitialized
	}
	buf, err := json.Marshal(m)
	if err != nil {
		return 0, nil, err
	}
	return n.ApplyBytes(ctx, buf)
}

// ApplyBytes envía bytes raw al log de Raft (sin re-serializar).
func (n *Node) ApplyBytes(ctx context.Context, data []byte) (uint64, interface{}, error) {
	if n == nil || n.r == nil {
		return 0, nil, ErrRaftNotInitialized
	}
	start := time.Now()
	fut := n.r.Apply(data, n.applyTimeout)

	// Respetar cancelación de ctx mientras esperamos el futuro.
	done := make(chan struct{})
	var (
		applyErr error
		index    uint64
		resp     interface{}
	)
	go func() {
		applyErr = fut.Error()
		if applyErr == nil {
			index = fut.Index()
			resp = fut.Response()
		}
		close(done)
	}()

	select {
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	case <-done:
		metrics.RaftApplyLatency.Observe(float64(time.Since(start).Milliseconds()))
		return index, resp, applyErr
	}
}

// ─── TLS helpers ───

type tlsBundle struct {
	server *tls.Config
	client *tls.Config
}

func loadTLSBundle(certFile, keyFile, caFile, serverName string) (*tlsBundle, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	caPEM, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("invalid CA file")
	}
	server := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    pool,
		MinVersion:   tls.VersionTLS12,
	}
	client := &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
		ServerName:   serverName,
	}
	return &tlsBundle{server: server, client: client}, nil
}

type tlsStream struct {
	ln  net.Listener
	cfg *tls.Config
}

func (t *tlsStream) Dial(address raft.ServerAddress, timeout time.Duration) (net.Conn, error) {
	d := &net.Dialer{Timeout: timeout}
	return tls.DialWithDialer(d, "tcp", string(address), t.cfg)
}
func (t *tlsStream) Accept() (net.Conn, error) { return t.ln.Accept() }
func (t *tlsStream) Close() error              { return t.ln.Close() }
func (t *tlsStream) Addr() net.Addr            { return t.ln.Addr() }

func (n *Node) IsLeader() bool {
	if n == nil || n.r == nil {
		return false
	}
	return n.r.State() == raft.Leader
}

func (n *Node) LeaderID() string {
	if n == nil || n.r == nil {
		return ""
	}
	_, id := n.r.LeaderWithID()
	return string(id)
}

func (n *Node) NodeID() string {
	if n == nil {
		return ""
	}
	return string(n.id)
}
func (n *Node) RaftAddr() string {
	if n == nil {
		return ""
	}
	return string(n.addr)
}

func (n *Node) Close() error {
	if n == nil || n.r == nil {
		return nil
	}
	n.closeOnce.Do(func() { close(n.stop) })
	return n.r.Shutdown().Error()
}

// Members devuelve los ids de los servers de la configuración actual, ordenados.
func (n *Node) Members(ctx context.Context) ([]string, error) {
	conf, err := n.GetConfiguration(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(conf.Servers))
	for _, srv := range conf.Servers {
		ids = append(ids, string(srv.ID))
	}
	return sortedIDs(ids), nil
}

// Stats expone las estadísticas de raft.Raft.Stats() del nodo embebido.
func (n *Node) Stats() map[string]string {
	if n == nil || n.r == nil {
		return map[string]string{}
	}
	return n.r.Stats()
}

// ─── Membership ───

// waitFuture espera un raft.Future respetando ctx.
func waitFuture(ctx context.Context, fut raft.Future) error {
	done := make(chan error, 1)
	go func() { done <- fut.Error() }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// GetConfiguration devuelve la configuración actual del cluster Raft.
func (n *Node) GetConfiguration(ctx context.Context) (raft.Configuration, error) {
	if n == nil || n.r == nil {
		return raft.Configuration{}, ErrRaftNotInitialized
	}
	fut := n.r.GetConfiguration()
	if err := waitFuture(ctx, fut); err != nil {
		return raft.Configuration{}, err
	}
	return fut.Configuration(), nil
}

// AddVoter agrega un miembro votante. Idempotente: si ya existe con la misma
// dirección no hace nada; si cambió de dirección se remueve y se vuelve a agregar.
// Un miembro nuevo pasa a contar para el quorum "all" desde la próxima publicación.
func (n *Node) AddVoter(ctx context.Context, id, addr string) error {
	if n == nil || n.r == nil {
		return ErrRaftNotInitialized
	}
	if id == "" || addr == "" {
		return errors.New("id and addr are required")
	}

	n.membershipMu.Lock()
	defer n.membershipMu.Unlock()

	conf, err := n.GetConfiguration(ctx)
	if err != nil {
		return fmt.Errorf("get configuration: %w", err)
	}
	for _, srv := range conf.Servers {
		if srv.ID != raft.ServerID(id) {
			continue
		}
		if srv.Address == raft.ServerAddress(addr) {
			return nil
		}
		if err := n.removeServerLocked(ctx, id); err != nil {
			return fmt.Errorf("remove server before re-add: %w", err)
		}
		break
	}
	return waitFuture(ctx, n.r.AddVoter(raft.ServerID(id), raft.ServerAddress(addr), 0, membershipTimeout))
}

// RemoveServer remueve un miembro. Idempotente: si no existe retorna nil.
func (n *Node) RemoveServer(ctx context.Context, id string) error {
	if n == nil || n.r == nil {
		return ErrRaftNotInitialized
	}
	if id == "" {
		return errors.New("id cannot be empty")
	}

	n.membershipMu.Lock()
	defer n.membershipMu.Unlock()
	return n.removeServerLocked(ctx, id)
}

// removeServerLocked asume membershipMu tomado.
func (n *Node) removeServerLocked(ctx context.Context, id string) error {
	conf, err := n.GetConfiguration(ctx)
	if err != nil {
		return fmt.Errorf("get configuration: %w", err)
	}
	found := false
	for _, srv := range conf.Servers {
		if srv.ID == raft.ServerID(id) {
			found = true
			break
		}
	}
	if !found {
		return nil
	}
	return waitFuture(ctx, n.r.RemoveServer(raft.ServerID(id), 0, membershipTimeout))
}
