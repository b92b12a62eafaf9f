// Package coordinator implementa el coordinador de estado: el único escritor del
// linaje de snapshots. Serializa propuestas en orden FIFO, las publica al cluster
// y completa cada una recién cuando el quorum de miembros confirmó la versión.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dropDatabas3/policyreg/internal/action"
	"github.com/dropDatabas3/policyreg/internal/cluster"
	"github.com/dropDatabas3/policyreg/internal/metrics"
	"github.com/dropDatabas3/policyreg/internal/observability/logger"
	"github.com/dropDatabas3/policyreg/internal/policy"
	"go.uber.org/zap"
)

const (
	defaultAckTimeout = 30 * time.Second
	defaultQueueSize  = 256
)

// Publisher es el transporte de estado replicado que usa el coordinador.
// Lo implementan cluster.RaftPublisher y cluster.Local.
type Publisher interface {
	LocalID() string
	IsLeader() bool
	LeaderID() string
	Current() *policy.Snapshot
	Members(ctx context.Context) ([]string, error)
	Publish(ctx context.Context, m policy.Mutation, members int) (*cluster.Publication, error)
}

type Options struct {
	// AckTimeout acota publicación + espera de acks. Default 30s.
	AckTimeout time.Duration
	// Quorum default: todos los miembros conocidos.
	Quorum Quorum
	// QueueSize capacidad de la cola de propuestas. Default 256.
	QueueSize int
}

type task struct {
	ctx      context.Context
	m        policy.Mutation
	l        action.Listener[*policy.Snapshot]
	enqueued time.Time
}

// Coordinator procesa una propuesta por vez, en orden de llegada.
type Coordinator struct {
	pub  Publisher
	opts Options
	log  *zap.Logger

	// mu ordena encolado vs Stop: tras stopped=true nadie más escribe en queue.
	mu      sync.RWMutex
	stopped bool

	queue    chan *task
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New crea el coordinador y arranca su loop de procesamiento.
func New(pub Publisher, opts Options) *Coordinator {
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = defaultAckTimeout
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Quorum.mode == "" {
		opts.Quorum = QuorumAll
	}
	c := &Coordinator{
		pub:   pub,
		opts:  opts,
		log:   logger.Named("coordinator").With(logger.Member(pub.LocalID())),
		queue: make(chan *task, opts.QueueSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go c.run()
	return c
}

// Submit encola m. El listener se completa exactamente una vez: con el snapshot
// que produjo la mutación una vez alcanzado el quorum, o con el error.
// Submit bloquea sólo si la cola está llena.
func (c *Coordinator) Submit(ctx context.Context, m policy.Mutation, l action.Listener[*policy.Snapshot]) {
	l = action.Once(l)
	t := &task{ctx: ctx, m: m, l: l, enqueued: time.Now()}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stopped {
		go l.OnFailure(errStopped)
		return
	}

	select {
	case c.queue <- t:
		metrics.QueueDepth.Inc()
	case <-ctx.Done():
		go l.OnFailure(ctxErr(ctx.Err()))
	}
}

// Propose es Submit + espera; conveniencia para callers sincrónicos.
func (c *Coordinator) Propose(ctx context.Context, m policy.Mutation) (*policy.Snapshot, error) {
	f := action.NewFuture[*policy.Snapshot]()
	c.Submit(ctx, m, f)
	return f.Get(ctx)
}

// Stop termina el loop. Las propuestas en cola fallan con ErrCoordinatorUnavailable.
// Espera a los Submit en curso: un Submit bloqueado por cola llena avanza
// porque run sigue consumiendo hasta que stop se cierra.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		c.mu.Unlock()
		close(c.stop)
	})
	<-c.done
}

var errStopped = fmt.Errorf("%w: coordinator stopped", policy.ErrCoordinatorUnavailable)

func (c *Coordinator) run() {
	defer close(c.done)
	for {
		select {
		case t := <-c.queue:
			metrics.QueueDepth.Dec()
			snap, err := c.handle(t)
			// Completar fuera del loop: un listener lento no frena la cola.
			go action.Complete(t.l, snap, err)
		case <-c.stop:
			for {
				select {
				case t := <-c.queue:
					metrics.QueueDepth.Dec()
					go t.l.OnFailure(errStopped)
				default:
					return
				}
			}
		}
	}
}

func (c *Coordinator) handle(t *task) (snap *policy.Snapshot, err error) {
	log := c.log.With(logger.MutationID(t.m.ID), logger.MutationType(string(t.m.Type)), logger.Policy(t.m.Name))
	defer func() {
		metrics.Mutations.WithLabelValues(string(t.m.Type), outcome(err)).Inc()
		if err != nil {
			log.Info("mutation rejected", logger.Err(err))
		}
	}()

	if err := t.ctx.Err(); err != nil {
		return nil, ctxErr(err)
	}
	if !c.pub.IsLeader() {
		return nil, &policy.NotLeaderError{Leader: c.pub.LeaderID()}
	}

	// El chequeo se hace contra el snapshot vigente en el momento de serializar,
	// no contra lo que haya visto el caller.
	if err := c.pub.Current().Check(t.m); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(t.ctx, c.opts.AckTimeout)
	defer cancel()

	members, err := c.pub.Members(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: members: %v", policy.ErrCoordinatorUnavailable, err)
	}
	need := c.opts.Quorum.Required(len(members))

	start := time.Now()
	pub, err := c.pub.Publish(ctx, t.m, len(members))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctxErr(ctx.Err())
		}
		return nil, err
	}
	defer pub.Close()
	version := pub.Snapshot.Version()
	log = log.With(logger.Version(version))

	known := make(map[string]struct{}, len(members))
	for _, id := range members {
		known[id] = struct{}{}
	}
	got := make(map[string]struct{}, len(members))
	for len(got) < need {
		select {
		case a, ok := <-pub.Acks:
			if !ok {
				log.Warn("ack stream closed before quorum", logger.Acks(len(got), need))
				return nil, fmt.Errorf("%w: %d/%d acks for version %d", policy.ErrTimeout, len(got), need, version)
			}
			if a.Version != version {
				continue
			}
			if _, ok := known[a.Member]; !ok {
				log.Debug("ack from unknown member ignored", logger.Member(a.Member))
				continue
			}
			got[a.Member] = struct{}{}
		case <-ctx.Done():
			// La mutación ya está en el linaje; su durabilidad en el cluster es desconocida.
			log.Warn("quorum not reached", logger.Acks(len(got), need), logger.Err(ctx.Err()))
			return nil, fmt.Errorf("%w: %d/%d acks for version %d", policy.ErrTimeout, len(got), need, version)
		}
	}

	metrics.AckWait.Observe(float64(time.Since(start).Milliseconds()))
	log.Info("mutation acknowledged", logger.Acks(len(got), need), logger.Duration(time.Since(t.enqueued)))
	return pub.Snapshot, nil
}

func ctxErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", policy.ErrTimeout, err)
	}
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "acknowledged"
	case errors.Is(err, policy.ErrNotFound):
		return "not_found"
	case errors.Is(err, policy.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, policy.ErrTimeout):
		return "timeout"
	case errors.Is(err, policy.ErrCoordinatorUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
