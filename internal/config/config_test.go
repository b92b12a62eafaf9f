package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", c.Server.Addr)
	require.Equal(t, "off", c.Cluster.Mode)
	require.Equal(t, "all", c.Coordinator.Quorum)
	require.Equal(t, 30*time.Second, c.AckTimeout())
	require.Equal(t, 2*time.Minute, c.AckRetention())
	require.Equal(t, 256, c.Coordinator.QueueSize)
	require.False(t, c.Embedded())
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	p := writeYAML(t, `
server:
  addr: ":9000"
cluster:
  mode: embedded
  node_id: n1
  raft_addr: 127.0.0.1:7001
  nodes:
    n1: 127.0.0.1:7001
    n2: 127.0.0.1:7002
  http_addrs:
    n1: http://127.0.0.1:9001
    n2: http://127.0.0.1:9002
coordinator:
  ack_timeout: 5s
  quorum: majority
`)
	t.Setenv("COORDINATOR_ACK_TIMEOUT", "250ms")
	t.Setenv("SERVER_ADDR", ":9100")

	c, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, ":9100", c.Server.Addr)
	require.True(t, c.Embedded())
	require.Equal(t, 250*time.Millisecond, c.AckTimeout())
	require.Equal(t, time.Minute, c.AckRetention())
	require.Equal(t, "majority", c.Coordinator.Quorum)
	require.Equal(t, "http://127.0.0.1:9002", c.Cluster.LeaderRedirects["n2"])
}

func TestLoad_ClusterNodesFromEnv(t *testing.T) {
	t.Setenv("CLUSTER_MODE", "embedded")
	t.Setenv("CLUSTER_NODE_ID", "n2")
	t.Setenv("CLUSTER_RAFT_ADDR", "127.0.0.1:7002")
	t.Setenv("CLUSTER_NODES", "n1=127.0.0.1:7001; n2=127.0.0.1:7002")
	t.Setenv("CLUSTER_HTTP_ADDRS", "n1=http://a:1;n2=http://b:2")

	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"n1": "127.0.0.1:7001", "n2": "127.0.0.1:7002"}, c.Cluster.Nodes)
	require.Equal(t, "n2", c.Cluster.NodeID)
}

func TestValidate_Errors(t *testing.T) {
	t.Setenv("CLUSTER_MODE", "embedded")
	t.Setenv("CLUSTER_NODES", "n1=a:1;n2=b:2")
	t.Setenv("COORDINATOR_QUORUM", "zero")
	t.Setenv("COORDINATOR_ACK_TIMEOUT", "soon")

	_, err := Load("")
	require.Error(t, err)
	msg := err.Error()
	require.Contains(t, msg, "raft_addr")
	require.Contains(t, msg, "coordinator.quorum")
	require.Contains(t, msg, "coordinator.ack_timeout")
	require.Contains(t, msg, "http_addrs")
}

func TestParseKVList(t *testing.T) {
	require.Equal(t, map[string]string{"a": "1", "b": "x=y"}, parseKVList(" a=1 ; ;b=x=y;=bad;c=", ";"))
}

func TestLoad_Rate(t *testing.T) {
	t.Setenv("RATE_ENABLED", "true")
	t.Setenv("RATE_MAX_REQUESTS", "5")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")

	c, err := Load(writeYAML(t, "rate:\n  window: 10s\n"))
	require.NoError(t, err)
	require.True(t, c.Rate.Enabled)
	require.Equal(t, 5, c.Rate.MaxRequests)
	require.Equal(t, 10*time.Second, c.RateWindow())
	require.Equal(t, "127.0.0.1:6379", c.Rate.Redis.Addr)
	require.Equal(t, "policyreg:rl:", c.Rate.Redis.Prefix)
}

func TestValidate_AckRetentionShorterThanTimeout(t *testing.T) {
	t.Setenv("COORDINATOR_ACK_TIMEOUT", "30s")
	t.Setenv("COORDINATOR_ACK_RETENTION", "10s")

	_, err := Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "coordinator.ack_retention 10s is shorter than coordinator.ack_timeout 30s")

	t.Setenv("COORDINATOR_ACK_RETENTION", "45s")
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 45*time.Second, c.AckRetention())
}
