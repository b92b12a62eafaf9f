package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropDatabas3/policyreg/internal/action"
	"github.com/dropDatabas3/policyreg/internal/cluster"
	"github.com/dropDatabas3/policyreg/internal/policy"
	"github.com/stretchr/testify/require"
)

func put(name string) policy.Mutation {
	return policy.NewPut(policy.Policy{Name: name, Definition: json.RawMessage(`{"match_field":"id"}`)})
}

func newCoordinator(t *testing.T, l *cluster.Local, opts Options) *Coordinator {
	t.Helper()
	c := New(l, opts)
	t.Cleanup(c.Stop)
	return c
}

func TestCoordinator_PutDeleteAcknowledgedByAllMembers(t *testing.T) {
	l := cluster.NewLocal("n1", "n2", "n3")
	c := newCoordinator(t, l, Options{AckTimeout: 2 * time.Second})
	ctx := context.Background()

	snap, err := c.Propose(ctx, put("my-policy"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), snap.Version())
	for _, id := range []string{"n2", "n3"} {
		_, ok := l.Member(id).Snapshot().Lookup("my-policy")
		require.True(t, ok, "member %s should have applied the put before ack", id)
	}

	snap, err = c.Propose(ctx, policy.NewDelete("my-policy"))
	require.NoError(t, err)
	require.Equal(t, uint64(2), snap.Version())
	_, ok := l.Current().Lookup("my-policy")
	require.False(t, ok)
	require.Equal(t, uint64(2), l.Member("n3").Snapshot().Version())
}

func TestCoordinator_DeleteMissingIsNotFoundAndLineageUnchanged(t *testing.T) {
	l := cluster.NewLocal("n1")
	c := newCoordinator(t, l, Options{})

	before := l.Current()
	_, err := c.Propose(context.Background(), policy.NewDelete("non-exists"))
	require.True(t, policy.IsNotFound(err))
	require.Equal(t, "Policy [non-exists] was not found", err.Error())
	require.Same(t, before, l.Current())
}

func TestCoordinator_PutExistingIsAlreadyExists(t *testing.T) {
	l := cluster.NewLocal("n1")
	c := newCoordinator(t, l, Options{})
	_, err := c.Propose(context.Background(), put("p"))
	require.NoError(t, err)
	_, err = c.Propose(context.Background(), put("p"))
	require.ErrorIs(t, err, policy.ErrAlreadyExists)
}

func TestCoordinator_TimeoutWhenMemberDown(t *testing.T) {
	l := cluster.NewLocal("n1", "n2", "n3")
	l.Member("n3").SetDown(true)
	c := newCoordinator(t, l, Options{AckTimeout: 100 * time.Millisecond})

	start := time.Now()
	_, err := c.Propose(context.Background(), put("p"))
	require.ErrorIs(t, err, policy.ErrTimeout)
	require.True(t, policy.IsRetryable(err))
	require.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)

	// Sin rollback: el líder ya publicó la versión, el estado es "desconocido" para el caller.
	_, ok := l.Current().Lookup("p")
	require.True(t, ok)
}

func TestCoordinator_MajorityToleratesOneDownMember(t *testing.T) {
	l := cluster.NewLocal("n1", "n2", "n3")
	l.Member("n3").SetDown(true)
	c := newCoordinator(t, l, Options{AckTimeout: time.Second, Quorum: QuorumMajority})

	_, err := c.Propose(context.Background(), put("p"))
	require.NoError(t, err)
}

func TestCoordinator_NotLeaderIsCoordinatorUnavailable(t *testing.T) {
	l := cluster.NewLocal("n1")
	l.SetLeader(false)
	c := newCoordinator(t, l, Options{})

	before := l.Current()
	_, err := c.Propose(context.Background(), put("p"))
	require.ErrorIs(t, err, policy.ErrCoordinatorUnavailable)
	var nl *policy.NotLeaderError
	require.True(t, errors.As(err, &nl))
	require.Same(t, before, l.Current())
}

func TestCoordinator_StoppedFailsSubmissions(t *testing.T) {
	l := cluster.NewLocal("n1")
	c := New(l, Options{})
	c.Stop()

	_, err := c.Propose(context.Background(), put("p"))
	require.ErrorIs(t, err, policy.ErrCoordinatorUnavailable)
}

func TestCoordinator_SubmitRacingStopCompletesEveryListener(t *testing.T) {
	const (
		rounds  = 300
		submits = 20
	)
	for i := 0; i < rounds; i++ {
		c := New(cluster.NewLocal("n1"), Options{AckTimeout: time.Second})
		counts := make([]atomic.Int32, submits)

		var wg sync.WaitGroup
		for j := 0; j < submits; j++ {
			wg.Add(1)
			go func(j int) {
				defer wg.Done()
				inc := func() { counts[j].Add(1) }
				c.Submit(context.Background(), put(fmt.Sprintf("p-%d", j)), action.ListenerFunc[*policy.Snapshot]{
					Response: func(*policy.Snapshot) { inc() },
					Failure:  func(error) { inc() },
				})
			}(j)
		}
		c.Stop()
		wg.Wait()

		require.Eventually(t, func() bool {
			for j := range counts {
				if counts[j].Load() != 1 {
					return false
				}
			}
			return true
		}, 2*time.Second, 5*time.Millisecond, "round %d: every listener completes exactly once", i)
	}
}

func TestCoordinator_FIFOTotalOrder(t *testing.T) {
	l := cluster.NewLocal("n1", "n2")
	c := newCoordinator(t, l, Options{AckTimeout: 2 * time.Second})

	const n = 20
	futures := make([]*action.Future[*policy.Snapshot], n)
	for i := 0; i < n; i++ {
		futures[i] = action.NewFuture[*policy.Snapshot]()
		c.Submit(context.Background(), put(string(rune('a'+i))), futures[i])
	}
	for i, f := range futures {
		snap, err := f.Get(context.Background())
		require.NoError(t, err)
		require.Equal(t, uint64(i+1), snap.Version(), "mutations apply in submission order")
	}
}

func TestCoordinator_ConcurrentDeletesOnlyOneWins(t *testing.T) {
	l := cluster.NewLocal("n1", "n2")
	c := newCoordinator(t, l, Options{AckTimeout: 2 * time.Second})
	_, err := c.Propose(context.Background(), put("p"))
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, miss int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Propose(context.Background(), policy.NewDelete("p"))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if policy.IsNotFound(err) {
				miss++
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, ok)
	require.Equal(t, 7, miss)
}

func TestCoordinator_ListenerNotCompletedBeforeAck(t *testing.T) {
	l := cluster.NewLocal("n1", "n2")
	l.Member("n2").SetDelay(150 * time.Millisecond)
	c := newCoordinator(t, l, Options{AckTimeout: 2 * time.Second})

	f := action.NewFuture[*policy.Snapshot]()
	c.Submit(context.Background(), put("p"), f)

	select {
	case <-f.Done():
		t.Fatal("completed before the slow member acknowledged")
	case <-time.After(50 * time.Millisecond):
	}
	_, err := f.Get(context.Background())
	require.NoError(t, err)
	_, ok := l.Member("n2").Snapshot().Lookup("p")
	require.True(t, ok)
}

func TestQuorum(t *testing.T) {
	q, err := ParseQuorum("")
	require.NoError(t, err)
	require.Equal(t, 3, q.Required(3))

	q, err = ParseQuorum("majority")
	require.NoError(t, err)
	require.Equal(t, 2, q.Required(3))
	require.Equal(t, 3, q.Required(5))

	q, err = ParseQuorum("2")
	require.NoError(t, err)
	require.Equal(t, 2, q.Required(5))
	require.Equal(t, 1, q.Required(1))
	require.Equal(t, "2", q.String())

	_, err = ParseQuorum("zero")
	require.Error(t, err)
	_, err = ParseQuorum("-1")
	require.Error(t, err)
}
