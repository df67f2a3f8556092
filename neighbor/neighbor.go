// Copyright 2026 Lattice ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package neighbor constructs directed periodic neighbor lists.
//
// Build returns every ordered atom pair (i, j, S) whose displacement
// pos[j] - pos[i] + S·cell is shorter than the cutoff, with S an
// integer periodic-image shift. Three interchangeable backends produce
// the same edge set; the process-wide choice comes from LATTICE_NL.
//
// Example:
//
//	graph, err := neighbor.Build(positions, 4.0, neighbor.Options{
//		Cell:                  &cell,
//		PBC:                   geom.Uniform(true),
//		StrictSelfInteraction: true,
//	})
package neighbor

import (
	"github.com/lattice-ml/lattice/internal/neighbor"
)

// Backend names accepted by LATTICE_NL and Options.Backend.
const (
	BackendDirect   = neighbor.BackendDirect
	BackendCellList = neighbor.BackendCellList
	BackendKDTree   = neighbor.BackendKDTree
)

// Environment variables read once at first use.
const (
	EnvBackend        = neighbor.EnvBackend
	EnvErrorOnNoEdges = neighbor.EnvErrorOnNoEdges
)

// Config is the process-wide neighbor-search configuration.
type Config = neighbor.Config

// ConfigFromEnv builds a Config from the environment.
func ConfigFromEnv() (Config, error) {
	return neighbor.ConfigFromEnv()
}

// DefaultConfig returns the process-wide configuration, resolved from
// the environment exactly once.
func DefaultConfig() (Config, error) {
	return neighbor.DefaultConfig()
}

// Options controls a single neighbor-list construction.
type Options = neighbor.Options

// DefaultOptions returns the standard construction options.
func DefaultOptions() Options {
	return neighbor.DefaultOptions()
}

// Graph is a constructed neighbor list.
type Graph = neighbor.Graph

// Build constructs the neighbor list for one system. Positions may be
// a *tensor.RawTensor of shape [N, 3], a [][3]float64 or a flat
// []float64 of length 3N.
func Build(pos any, cutoff float64, opts Options) (*Graph, error) {
	return neighbor.Build(pos, cutoff, opts)
}
