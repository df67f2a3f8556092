// Copyright 2026 Lattice ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package geom provides lattice geometry types: the 3x3 cell matrix
// and per-axis periodic boundary flags.
package geom

import (
	"github.com/lattice-ml/lattice/internal/geom"
)

// Cell is a 3x3 lattice matrix; rows are the lattice vectors.
type Cell = geom.Cell

// NewCell builds a Cell from a row-major flat slice of 9 values.
func NewCell(flat []float64) Cell {
	return geom.NewCell(flat)
}

// PBC holds one periodic-boundary flag per cell axis.
type PBC = geom.PBC

// Uniform returns a PBC with the same flag on all three axes.
func Uniform(periodic bool) PBC {
	return geom.Uniform(periodic)
}
