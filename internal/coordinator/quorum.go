package coordinator

import (
	"fmt"
	"strconv"
	"strings"
)

// Quorum decide cuántos acks hacen falta para dar una mutación por aplicada.
// Se evalúa contra los miembros conocidos al momento de publicar.
type Quorum struct {
	mode string // all | majority | count
	n    int
}

var (
	QuorumAll      = Quorum{mode: "all"}
	QuorumMajority = Quorum{mode: "majority"}
)

// QuorumCount exige n acks (acotado a la cantidad de miembros).
func QuorumCount(n int) Quorum { return Quorum{mode: "count", n: n} }

// ParseQuorum acepta "all", "majority" o un entero positivo. Vacío => all.
func ParseQuorum(s string) (Quorum, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "", "all":
		return QuorumAll, nil
	case "majority":
		return QuorumMajority, nil
	default:
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Quorum{}, fmt.Errorf("invalid quorum %q: want all, majority or a positive integer", s)
		}
		return QuorumCount(n), nil
	}
}

// Required acks necesarios para members miembros. Nunca menos de 1.
func (q Quorum) Required(members int) int {
	if members <= 0 {
		return 1
	}
	switch q.mode {
	case "majority":
		return members/2 + 1
	case "count":
		if q.n < members {
			return q.n
		}
		return members
	default:
		return members
	}
}

func (q Quorum) String() string {
	if q.mode == "count" {
		return strconv.Itoa(q.n)
	}
	if q.mode == "" {
		return "all"
	}
	return q.mode
}
