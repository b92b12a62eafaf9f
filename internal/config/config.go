package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"` // debug | info | warn | error
	} `yaml:"log"`

	Cluster struct {
		Mode      string            `yaml:"mode" json:"mode"` // off | embedded
		NodeID    string            `yaml:"node_id" json:"nodeId"`
		RaftAddr  string            `yaml:"raft_addr" json:"raftAddr"`
		RaftDir   string            `yaml:"raft_dir" json:"raftDir"`
		Nodes     map[string]string `yaml:"nodes" json:"nodes"`           // nodeID -> host:port (raft)
		HTTPAddrs map[string]string `yaml:"http_addrs" json:"httpAddrs"`  // nodeID -> baseURL (acks)
		// nodeID -> baseURL para 307 al líder; si está vacío se usa HTTPAddrs.
		LeaderRedirects map[string]string `yaml:"leader_redirects" json:"leaderRedirects"`
		ApplyTimeout    string            `yaml:"apply_timeout" json:"applyTimeout"`

		BootstrapPreferred bool `yaml:"bootstrap_preferred" json:"bootstrapPreferred"`
		DisableBootstrap   bool `yaml:"disable_bootstrap" json:"disableBootstrap"`

		// TLS for Raft transport (optional, mTLS when enabled)
		RaftTLSEnable     bool   `yaml:"raft_tls_enable" json:"raftTlsEnable"`
		RaftTLSCertFile   string `yaml:"raft_tls_cert_file" json:"raftTlsCertFile"`
		RaftTLSKeyFile    string `yaml:"raft_tls_key_file" json:"raftTlsKeyFile"`
		RaftTLSCAFile     string `yaml:"raft_tls_ca_file" json:"raftTlsCaFile"`
		RaftTLSServerName string `yaml:"raft_tls_server_name" json:"raftTlsServerName"`
	} `yaml:"cluster" json:"cluster"`

	Coordinator struct {
		AckTimeout string `yaml:"ack_timeout"` // default 30s
		Quorum     string `yaml:"quorum"`      // all | majority | N
		QueueSize  int    `yaml:"queue_size"`
		// AckRetention vida de un registro de acks sin consumir. Default 4x ack_timeout.
		AckRetention string `yaml:"ack_retention"`
	} `yaml:"coordinator"`

	// Rate limita escrituras por IP. Con redis.addr vacío usa contadores en memoria.
	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		MaxRequests int    `yaml:"max_requests"`
		Window      string `yaml:"window"`
		Redis       struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"rate"`
}

// Load lee path (si no es vacío), aplica defaults, overrides por env y valida.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	c.applyEnvOverrides()
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if strings.TrimSpace(c.Cluster.Mode) == "" {
		c.Cluster.Mode = "off"
	}
	if c.Cluster.NodeID == "" {
		c.Cluster.NodeID = "node-1"
	}
	if c.Cluster.RaftDir == "" {
		c.Cluster.RaftDir = "./data/raft"
	}
	if c.Cluster.ApplyTimeout == "" {
		c.Cluster.ApplyTimeout = "5s"
	}
	if c.Cluster.Nodes == nil {
		c.Cluster.Nodes = map[string]string{}
	}
	if c.Cluster.HTTPAddrs == nil {
		c.Cluster.HTTPAddrs = map[string]string{}
	}
	if len(c.Cluster.LeaderRedirects) == 0 {
		c.Cluster.LeaderRedirects = c.Cluster.HTTPAddrs
	}
	if c.Coordinator.AckTimeout == "" {
		c.Coordinator.AckTimeout = "30s"
	}
	if c.Coordinator.Quorum == "" {
		c.Coordinator.Quorum = "all"
	}
	if c.Coordinator.QueueSize <= 0 {
		c.Coordinator.QueueSize = 256
	}
	if c.Rate.MaxRequests <= 0 {
		c.Rate.MaxRequests = 60
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.Redis.Prefix == "" {
		c.Rate.Redis.Prefix = "policyreg:rl:"
	}
}

// AckTimeout ya validado por Load.
func (c *Config) AckTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Coordinator.AckTimeout)
	return d
}

// RateWindow ya validado por Load.
func (c *Config) RateWindow() time.Duration {
	d, _ := time.ParseDuration(c.Rate.Window)
	return d
}

// AckRetention: explícito o 4x AckTimeout (mínimo 1m).
func (c *Config) AckRetention() time.Duration {
	if d, err := time.ParseDuration(c.Coordinator.AckRetention); err == nil && d > 0 {
		return d
	}
	d := 4 * c.AckTimeout()
	if d < time.Minute {
		d = time.Minute
	}
	return d
}

// ApplyTimeout ya validado por Load.
func (c *Config) ApplyTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Cluster.ApplyTimeout)
	return d
}

// Embedded reporta si el nodo corre Raft embebido.
func (c *Config) Embedded() bool {
	return c.Cluster.Mode == "embedded"
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

// getEnvFirst devuelve la primera variable seteada (nombre canónico + aliases).
func getEnvFirst(keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := getEnvStr(k); ok {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	// LOG
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(strings.TrimSpace(v))
	}

	// ───── Cluster ─────
	// CLUSTER_MODE=off|embedded (default off)
	if v, ok := getEnvStr("CLUSTER_MODE"); ok {
		c.Cluster.Mode = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := getEnvFirst("CLUSTER_NODE_ID", "NODE_ID"); ok {
		c.Cluster.NodeID = v
	}
	if v, ok := getEnvFirst("CLUSTER_RAFT_ADDR", "RAFT_ADDR"); ok {
		c.Cluster.RaftAddr = v
	}
	if v, ok := getEnvFirst("CLUSTER_RAFT_DIR", "RAFT_DIR"); ok {
		c.Cluster.RaftDir = v
	}
	if v, ok := getEnvStr("CLUSTER_APPLY_TIMEOUT"); ok {
		c.Cluster.ApplyTimeout = v
	}
	// CLUSTER_NODES="n1=127.0.0.1:8201;n2=127.0.0.1:8202"
	if m, ok := getEnvKVList("CLUSTER_NODES", ";"); ok {
		c.Cluster.Nodes = mergeKV(c.Cluster.Nodes, m)
	}
	// CLUSTER_HTTP_ADDRS="n1=http://127.0.0.1:8081;n2=http://127.0.0.1:8082"
	if m, ok := getEnvKVList("CLUSTER_HTTP_ADDRS", ";"); ok {
		c.Cluster.HTTPAddrs = mergeKV(c.Cluster.HTTPAddrs, m)
	}
	if m, ok := getEnvKVList("LEADER_REDIRECTS", ";"); ok {
		c.Cluster.LeaderRedirects = mergeKV(c.Cluster.LeaderRedirects, m)
	}
	if v, ok := getEnvBool("CLUSTER_BOOTSTRAP_PREFERRED"); ok {
		c.Cluster.BootstrapPreferred = v
	}
	if v, ok := getEnvBool("CLUSTER_DISABLE_BOOTSTRAP"); ok {
		c.Cluster.DisableBootstrap = v
	}

	// Raft TLS (optional)
	if v, ok := getEnvBool("RAFT_TLS_ENABLE"); ok {
		c.Cluster.RaftTLSEnable = v
	}
	if v, ok := getEnvFirst("RAFT_TLS_CERT_FILE", "RAFT_TLS_CERT"); ok {
		c.Cluster.RaftTLSCertFile = v
	}
	if v, ok := getEnvFirst("RAFT_TLS_KEY_FILE", "RAFT_TLS_KEY"); ok {
		c.Cluster.RaftTLSKeyFile = v
	}
	if v, ok := getEnvFirst("RAFT_TLS_CA_FILE", "RAFT_TLS_CA"); ok {
		c.Cluster.RaftTLSCAFile = v
	}
	if v, ok := getEnvStr("RAFT_TLS_SERVER_NAME"); ok {
		c.Cluster.RaftTLSServerName = v
	}

	// ───── Coordinator ─────
	if v, ok := getEnvStr("COORDINATOR_ACK_TIMEOUT"); ok {
		c.Coordinator.AckTimeout = v
	}
	if v, ok := getEnvStr("COORDINATOR_QUORUM"); ok {
		c.Coordinator.Quorum = v
	}
	if v, ok := getEnvInt("COORDINATOR_QUEUE_SIZE"); ok {
		c.Coordinator.QueueSize = v
	}
	if v, ok := getEnvStr("COORDINATOR_ACK_RETENTION"); ok {
		c.Coordinator.AckRetention = v
	}

	// ───── Rate ─────
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}
	if v, ok := getEnvStr("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Rate.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Rate.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Rate.Redis.Prefix = v
	}
}

// Validate revisa modos, duraciones y los requisitos del modo embedded.
func (c *Config) Validate() error {
	var errs []error

	switch c.Cluster.Mode {
	case "off", "embedded":
	default:
		errs = append(errs, fmt.Errorf("cluster.mode %q: want off or embedded", c.Cluster.Mode))
	}
	for name, v := range map[string]string{
		"coordinator.ack_timeout": c.Coordinator.AckTimeout,
		"cluster.apply_timeout":   c.Cluster.ApplyTimeout,
		"rate.window":             c.Rate.Window,
	} {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s %q: want a positive duration", name, v))
		}
	}
	if v := c.Coordinator.AckRetention; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("coordinator.ack_retention %q: %w", v, err))
		} else if timeout, terr := time.ParseDuration(c.Coordinator.AckTimeout); terr == nil && d > 0 && d < timeout {
			// el registro de acks debe vivir al menos lo que espera el coordinador
			errs = append(errs, fmt.Errorf("coordinator.ack_retention %s is shorter than coordinator.ack_timeout %s", d, timeout))
		}
	}
	if q := strings.ToLower(strings.TrimSpace(c.Coordinator.Quorum)); q != "all" && q != "majority" {
		if n, err := strconv.Atoi(q); err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("coordinator.quorum %q: want all, majority or a positive integer", c.Coordinator.Quorum))
		}
	}

	if c.Embedded() {
		if c.Cluster.RaftAddr == "" {
			errs = append(errs, errors.New("cluster.raft_addr is required in embedded mode"))
		}
		if len(c.Cluster.Nodes) > 1 {
			if _, ok := c.Cluster.Nodes[c.Cluster.NodeID]; !ok {
				errs = append(errs, fmt.Errorf("cluster.nodes must include this node (%s)", c.Cluster.NodeID))
			}
			for id := range c.Cluster.Nodes {
				if _, ok := c.Cluster.HTTPAddrs[id]; !ok {
					errs = append(errs, fmt.Errorf("cluster.http_addrs missing node %s (acks go over HTTP)", id))
				}
			}
		}
		if c.Cluster.RaftTLSEnable && (c.Cluster.RaftTLSCertFile == "" || c.Cluster.RaftTLSKeyFile == "" || c.Cluster.RaftTLSCAFile == "") {
			errs = append(errs, errors.New("raft tls enabled but cert, key or ca file missing"))
		}
	}
	return errors.Join(errs...)
}

func mergeKV(dst, src map[string]string) map[string]string {
	if dst == nil {
		dst = map[string]string{}
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// parse env of form "k1=v1<sep>k2=v2" into map
func parseKVList(s, sep string) map[string]string {
	s = strings.TrimSpace(s)
	if s == "" {
		return map[string]string{}
	}
	items := strings.Split(s, sep)
	out := make(map[string]string, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		// split at first '='
		if i := strings.IndexRune(it, '='); i > 0 {
			k := strings.TrimSpace(it[:i])
			v := strings.TrimSpace(it[i+1:])
			if k != "" && v != "" {
				out[k] = v
			}
		}
	}
	return out
}

func getEnvKVList(key, sep string) (map[string]string, bool) {
	if s, ok := getEnvStr(key); ok {
		return parseKVList(s, sep), true
	}
	return nil, false
}
