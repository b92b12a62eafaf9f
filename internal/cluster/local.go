package cluster

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/policyreg/internal/metrics"
	"github.com/dropDatabas3/policyreg/internal/policy"
	"golang.org/x/sync/errgroup"
)

// LocalMember es un miembro simulado del cluster en memoria.
// Down: no aplica ni confirma mientras la publicación siga abierta.
// Delay: aplica y confirma tarde.
type LocalMember struct {
	id     string
	holder *policy.Holder

	mu    sync.Mutex
	down  bool
	delay time.Duration
}

func (m *LocalMember) ID() string { return m.id }

// Snapshot último snapshot que aplicó este miembro.
func (m *LocalMember) Snapshot() *policy.Snapshot { return m.holder.Load() }

func (m *LocalMember) SetDown(down bool) {
	m.mu.Lock()
	m.down = down
	m.mu.Unlock()
}

func (m *LocalMember) SetDelay(d time.Duration) {
	m.mu.Lock()
	m.delay = d
	m.mu.Unlock()
}

func (m *LocalMember) state() (bool, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.down, m.delay
}

// install publica s si es más nuevo que lo que el miembro ya tiene.
func (m *LocalMember) install(s *policy.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holder.Load().Version() < s.Version() {
		m.holder.Store(s)
	}
}

// Local es un cluster en un solo proceso: el nodo local es el coordinador y
// los miembros simulados reciben cada snapshot por fan-out. Se usa en modo
// standalone (sin miembros) y en tests.
type Local struct {
	id     string
	holder *policy.Holder

	mu      sync.RWMutex
	leader  bool
	members map[string]*LocalMember
	order   []string
}

// NewLocal crea un cluster con el nodo id como líder y memberIDs como seguidores.
func NewLocal(id string, memberIDs ...string) *Local {
	l := &Local{
		id:      id,
		holder:  policy.NewHolder(nil),
		leader:  true,
		members: make(map[string]*LocalMember, len(memberIDs)),
	}
	for _, mid := range memberIDs {
		l.members[mid] = &LocalMember{id: mid, holder: policy.NewHolder(nil)}
		l.order = append(l.order, mid)
	}
	return l
}

// Member devuelve el miembro simulado id (nil si no existe).
func (l *Local) Member(id string) *LocalMember {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.members[id]
}

// SetLeader simula perder o recuperar el liderazgo.
func (l *Local) SetLeader(v bool) {
	l.mu.Lock()
	l.leader = v
	l.mu.Unlock()
}

func (l *Local) LocalID() string { return l.id }

func (l *Local) IsLeader() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.leader
}

func (l *Local) LeaderID() string {
	if l.IsLeader() {
		return l.id
	}
	return ""
}

func (l *Local) Current() *policy.Snapshot { return l.holder.Load() }

// Holder del nodo local (lo comparten las acciones de lectura).
func (l *Local) Holder() *policy.Holder { return l.holder }

func (l *Local) Members(context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return sortedIDs(append([]string{l.id}, l.order...)), nil
}

// Publish aplica m sobre el linaje local y hace fan-out del snapshot resultante.
// El ack del nodo local sale inmediatamente; cada miembro confirma al instalarlo.
func (l *Local) Publish(_ context.Context, m policy.Mutation, _ int) (*Publication, error) {
	l.mu.Lock()
	if !l.leader {
		l.mu.Unlock()
		return nil, &policy.NotLeaderError{}
	}
	next, err := l.holder.Apply(m)
	members := make([]*LocalMember, 0, len(l.order))
	for _, id := range l.order {
		members = append(members, l.members[id])
	}
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	metrics.SnapshotVersion.Set(float64(next.Version()))
	metrics.Policies.Set(float64(next.Len()))

	acks := make(chan Ack, len(members)+1)
	acks <- Ack{Member: l.id, Version: next.Version()}

	fanCtx, cancel := context.WithCancel(context.Background())
	var g errgroup.Group
	for _, mem := range members {
		mem := mem
		g.Go(func() error {
			down, delay := mem.state()
			if down {
				<-fanCtx.Done()
				return nil
			}
			if delay > 0 {
				// Un miembro lento aplica igual aunque el coordinador ya no espere.
				time.Sleep(delay)
			}
			mem.install(next)
			acks <- Ack{Member: mem.id, Version: next.Version()}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(acks)
	}()
	return &Publication{Snapshot: next, Acks: acks, release: cancel}, nil
}
