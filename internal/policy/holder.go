package policy

import "sync/atomic"

// Holder publica el último snapshot observado por un nodo.
// Los lectores hacen Load sin locks; sólo el dueño del linaje llama Store/Swap.
type Holder struct {
	cur atomic.Pointer[Snapshot]
}

// NewHolder arranca con initial o con Empty() si es nil.
func NewHolder(initial *Snapshot) *Holder {
	if initial == nil {
		initial = Empty()
	}
	h := &Holder{}
	h.cur.Store(initial)
	return h
}

// Load devuelve el snapshot publicado.
func (h *Holder) Load() *Snapshot { return h.cur.Load() }

// Store reemplaza el snapshot publicado (usado por Restore).
func (h *Holder) Store(s *Snapshot) { h.cur.Store(s) }

// Apply aplica m sobre el snapshot actual y publica el resultado.
// No es seguro para escritores concurrentes: el linaje tiene un único escritor.
func (h *Holder) Apply(m Mutation) (*Snapshot, error) {
	next, err := h.cur.Load().Apply(m)
	if err != nil {
		return nil, err
	}
	h.cur.Store(next)
	return next, nil
}
