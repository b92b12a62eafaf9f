package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AckPath es la ruta interna donde el líder recibe acks.
const AckPath = "/internal/v1/acks"

// ErrNoLeader: no hay líder conocido al que entregar el ack.
var ErrNoLeader = errors.New("no known leader")

// LeaderAckSink entrega acks al líder actual: en memoria si este nodo lo es,
// por HTTP si no. HTTPAddrs mapea nodeID -> base URL del API de cada nodo.
type LeaderAckSink struct {
	Leader    func() (id string, self bool)
	Hub       *AckHub
	HTTPAddrs map[string]string
	Client    *http.Client
}

// NewLeaderAckSink arma el sink del nodo sobre su Node Raft.
func NewLeaderAckSink(node *Node, hub *AckHub, httpAddrs map[string]string) *LeaderAckSink {
	return &LeaderAckSink{
		Leader: func() (string, bool) {
			return node.LeaderID(), node.IsLeader()
		},
		Hub:       hub,
		HTTPAddrs: httpAddrs,
		Client:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *LeaderAckSink) Ack(ctx context.Context, a Ack) error {
	leader, self := s.Leader()
	if self {
		s.Hub.Ack(a)
		return nil
	}
	if leader == "" {
		return ErrNoLeader
	}
	base, ok := s.HTTPAddrs[leader]
	if !ok || strings.TrimSpace(base) == "" {
		return fmt.Errorf("no http address for leader %s", leader)
	}

	body, err := json.Marshal(a)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(base, "/")+AckPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("ack rejected by %s: status=%d", leader, resp.StatusCode)
	}
	return nil
}
