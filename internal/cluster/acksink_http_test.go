package cluster

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sinkFor(leader string, self bool, hub *AckHub, addrs map[string]string) *LeaderAckSink {
	return &LeaderAckSink{
		Leader:    func() (string, bool) { return leader, self },
		Hub:       hub,
		HTTPAddrs: addrs,
		Client:    &http.Client{Timeout: time.Second},
	}
}

func TestLeaderAckSink_LeaderDeliversToLocalHub(t *testing.T) {
	hub := NewAckHub(time.Minute)
	ch := hub.Subscribe(4, 1)

	s := sinkFor("n1", true, hub, nil)
	require.NoError(t, s.Ack(context.Background(), Ack{Member: "n1", Version: 4}))
	require.Equal(t, Ack{Member: "n1", Version: 4}, <-ch)
}

func TestLeaderAckSink_NoLeader(t *testing.T) {
	s := sinkFor("", false, NewAckHub(time.Minute), nil)
	require.ErrorIs(t, s.Ack(context.Background(), Ack{Member: "n2", Version: 1}), ErrNoLeader)
}

func TestLeaderAckSink_LeaderWithoutHTTPAddr(t *testing.T) {
	s := sinkFor("n1", false, NewAckHub(time.Minute), map[string]string{"n2": "http://10.0.0.2:8080"})
	err := s.Ack(context.Background(), Ack{Member: "n2", Version: 1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no http address for leader n1")
}

func TestLeaderAckSink_PostsToLeader(t *testing.T) {
	got := make(chan Ack, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, AckPath, r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var a Ack
		require.NoError(t, json.NewDecoder(r.Body).Decode(&a))
		got <- a
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	// base con "/" final
	s := sinkFor("n1", false, NewAckHub(time.Minute), map[string]string{"n1": srv.URL + "/"})
	require.NoError(t, s.Ack(context.Background(), Ack{Member: "n2", Version: 9}))
	require.Equal(t, Ack{Member: "n2", Version: 9}, <-got)
}

func TestLeaderAckSink_RejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	t.Cleanup(srv.Close)

	s := sinkFor("n1", false, NewAckHub(time.Minute), map[string]string{"n1": srv.URL})
	err := s.Ack(context.Background(), Ack{Member: "n2", Version: 2})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status=409")
}
