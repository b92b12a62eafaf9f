package cluster

import (
	"strconv"
	"sync"
	"time"

	"github.com/dropDatabas3/policyreg/internal/observability/logger"
	gocache "github.com/patrickmn/go-cache"
)

// defaultAckRetention: cuánto vive un registro de acks sin suscriptor.
const defaultAckRetention = 2 * time.Minute

// ackRecord junta los acks de una versión. Los que llegan antes de Subscribe
// quedan en buffered; después se entregan por ch.
type ackRecord struct {
	seen     map[string]struct{}
	buffered []Ack
	ch       chan Ack
}

// AckHub es el lado líder del protocolo de acks: recibe acks de todos los
// miembros (locales o por HTTP) y los rutea al coordinador que espera esa versión.
type AckHub struct {
	mu      sync.Mutex
	records *gocache.Cache
}

// NewAckHub crea un hub; retention <= 0 usa el default.
func NewAckHub(retention time.Duration) *AckHub {
	if retention <= 0 {
		retention = defaultAckRetention
	}
	return &AckHub{records: gocache.New(retention, retention/2)}
}

func ackKey(v uint64) string { return strconv.FormatUint(v, 10) }

func (h *AckHub) record(v uint64) *ackRecord {
	if x, ok := h.records.Get(ackKey(v)); ok {
		return x.(*ackRecord)
	}
	r := &ackRecord{seen: map[string]struct{}{}}
	h.records.SetDefault(ackKey(v), r)
	return r
}

// Ack registra la confirmación de un miembro. Duplicados se ignoran.
func (h *AckHub) Ack(a Ack) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.record(a.Version)
	if _, dup := r.seen[a.Member]; dup {
		return
	}
	r.seen[a.Member] = struct{}{}
	if r.ch == nil {
		r.buffered = append(r.buffered, a)
		return
	}
	select {
	case r.ch <- a:
	default:
		logger.Named("ackhub").Warn("ack channel full, dropping", logger.Member(a.Member), logger.Version(a.Version))
	}
}

// Subscribe devuelve el stream de acks de version, incluyendo los ya recibidos.
// capacity debería ser la cantidad de miembros conocidos.
func (h *AckHub) Subscribe(version uint64, capacity int) <-chan Ack {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.record(version)
	if r.ch != nil {
		return r.ch
	}
	if capacity < len(r.buffered) {
		capacity = len(r.buffered)
	}
	r.ch = make(chan Ack, capacity+8)
	for _, a := range r.buffered {
		r.ch <- a
	}
	r.buffered = nil
	return r.ch
}

// Release olvida el registro de version. Un ack tardío crea uno nuevo que expira solo.
func (h *AckHub) Release(version uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records.Delete(ackKey(version))
}

// Pending cantidad de registros vivos (para tests y /readyz).
func (h *AckHub) Pending() int {
	return h.records.ItemCount()
}
