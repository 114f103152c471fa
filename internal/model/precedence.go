package model

import (
	"fmt"
	"strings"
)

// Precedence is a versioned total order over capabilities. Earlier entries win
// conflicting regions during consolidation.
type Precedence struct {
	version string
	order   []Capability
	rank    map[Capability]int
}

func NewPrecedence(version string, order []Capability) (Precedence, error) {
	if len(order) == 0 {
		return Precedence{}, fmt.Errorf("precedence %s: empty order", version)
	}

	rank := make(map[Capability]int, len(order))
	for i, c := range order {
		if !c.Valid() {
			return Precedence{}, fmt.Errorf("precedence %s: unknown capability %q", version, c)
		}
		if _, dup := rank[c]; dup {
			return Precedence{}, fmt.Errorf("precedence %s: capability %q ranked twice", version, c)
		}
		rank[c] = i
	}

	return Precedence{
		version: version,
		order:   append([]Capability(nil), order...),
		rank:    rank,
	}, nil
}

func (p Precedence) Version() string {
	return p.version
}

func (p Precedence) Order() []Capability {
	return append([]Capability(nil), p.order...)
}

// Rank returns the position of c in the order (0 = highest priority).
func (p Precedence) Rank(c Capability) (int, bool) {
	r, ok := p.rank[c]
	return r, ok
}

// Covers checks that the precedence ranks exactly the given capability set.
func (p Precedence) Covers(caps []Capability) error {
	seen := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		if _, dup := seen[c]; dup {
			return fmt.Errorf("capability %q listed twice", c)
		}
		seen[c] = struct{}{}
		if _, ok := p.rank[c]; !ok {
			return fmt.Errorf("capability %q has no rank in precedence %s (%s)", c, p.version, p)
		}
	}
	for _, c := range p.order {
		if _, ok := seen[c]; !ok {
			return fmt.Errorf("precedence %s ranks %q which is not an active capability", p.version, c)
		}
	}
	return nil
}

func (p Precedence) String() string {
	return strings.Join(CapabilityStrings(p.order), " > ")
}
