package policy

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Snapshot es el mapa {nombre -> Policy} en un punto del tiempo lógico.
// Es inmutable: Apply devuelve uno nuevo y nunca toca el receptor.
// Las enumeraciones salen ordenadas por nombre (orden byte a byte).
type Snapshot struct {
	version  uint64
	policies map[string]Policy
	names    []string
}

// Empty devuelve el snapshot inicial (versión 0, sin policies).
func Empty() *Snapshot {
	return &Snapshot{policies: map[string]Policy{}}
}

// NewSnapshot construye un snapshot a partir de una lista. Nombres duplicados son error.
func NewSnapshot(version uint64, policies []Policy) (*Snapshot, error) {
	m := make(map[string]Policy, len(policies))
	for _, p := range policies {
		if _, dup := m[p.Name]; dup {
			return nil, fmt.Errorf("duplicate policy [%s] in snapshot", p.Name)
		}
		m[p.Name] = p
	}
	return build(version, m), nil
}

func build(version uint64, m map[string]Policy) *Snapshot {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return &Snapshot{version: version, policies: m, names: names}
}

// Version es la posición del snapshot en el linaje.
func (s *Snapshot) Version() uint64 { return s.version }

// Len cantidad de policies.
func (s *Snapshot) Len() int { return len(s.names) }

// Lookup nunca bloquea.
func (s *Snapshot) Lookup(name string) (Policy, bool) {
	p, ok := s.policies[name]
	return p, ok
}

// Names devuelve una copia de los nombres ordenados.
func (s *Snapshot) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// ListAll devuelve todas las entradas ordenadas por nombre.
func (s *Snapshot) ListAll() []NamedPolicy {
	out := make([]NamedPolicy, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, NamedPolicy{Name: n, Policy: s.policies[n]})
	}
	return out
}

// Check valida la mutación contra este snapshot sin producir uno nuevo.
func (s *Snapshot) Check(m Mutation) error {
	switch m.Type {
	case MutationPut:
		if m.Policy == nil {
			return fmt.Errorf("%w: put without policy", ErrInvalidPolicy)
		}
		if _, ok := s.policies[m.Name]; ok {
			return AlreadyExists(m.Name)
		}
		return nil
	case MutationDelete:
		if _, ok := s.policies[m.Name]; !ok {
			return NotFound(m.Name)
		}
		return nil
	default:
		return fmt.Errorf("unknown mutation type %q", m.Type)
	}
}

// Apply produce el snapshot siguiente (Version+1). Si la mutación falla
// el receptor sigue siendo el último valor válido.
func (s *Snapshot) Apply(m Mutation) (*Snapshot, error) {
	if err := s.Check(m); err != nil {
		return nil, err
	}
	next := make(map[string]Policy, len(s.policies)+1)
	for k, v := range s.policies {
		next[k] = v
	}
	switch m.Type {
	case MutationPut:
		p := *m.Policy
		p.Name = m.Name
		next[m.Name] = p
	case MutationDelete:
		delete(next, m.Name)
	}
	return build(s.version+1, next), nil
}

type snapshotJSON struct {
	Version  uint64   `json:"version"`
	Policies []Policy `json:"policies"`
}

// MarshalJSON serializa versión + policies ordenadas (formato de los snapshots de raft).
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	out := snapshotJSON{Version: s.version, Policies: make([]Policy, 0, len(s.names))}
	for _, n := range s.names {
		out.Policies = append(out.Policies, s.policies[n])
	}
	return json.Marshal(out)
}

// UnmarshalJSON es el inverso de MarshalJSON.
func (s *Snapshot) UnmarshalJSON(b []byte) error {
	var in snapshotJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	ns, err := NewSnapshot(in.Version, in.Policies)
	if err != nil {
		return err
	}
	*s = *ns
	return nil
}
