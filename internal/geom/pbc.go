// Package geom provides the lattice geometry utilities the neighbor
// search builds on: periodic boundary flags, cell completion and the
// reduced cell widths that bound periodic image searches.
package geom

import "fmt"

// PBC holds one periodic-boundary flag per cell axis.
type PBC [3]bool

// Uniform returns a PBC with the same flag on all three axes. It is the
// normalization step for callers that carry a single boolean.
func Uniform(periodic bool) PBC {
	return PBC{periodic, periodic, periodic}
}

// Any reports whether any axis is periodic.
func (p PBC) Any() bool {
	return p[0] || p[1] || p[2]
}

// All reports whether every axis is periodic.
func (p PBC) All() bool {
	return p[0] && p[1] && p[2]
}

// Mixed reports whether the axes disagree.
func (p PBC) Mixed() bool {
	return p.Any() && !p.All()
}

// String returns a compact representation like "TFT".
func (p PBC) String() string {
	s := [3]byte{}
	for i, b := range p {
		if b {
			s[i] = 'T'
		} else {
			s[i] = 'F'
		}
	}
	return fmt.Sprintf("%s", s[:])
}
