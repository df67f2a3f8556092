// Copyright 2026 Lattice ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package data provides atomic-system containers built on the neighbor
// list, batching, and extended-XYZ I/O.
package data

import (
	"github.com/lattice-ml/lattice/internal/data"
	"github.com/lattice-ml/lattice/neighbor"
	"github.com/lattice-ml/lattice/tensor"
)

// AtomicData is one atomic system with its neighbor graph.
type AtomicData = data.AtomicData

// New builds an AtomicData by running the neighbor search on the given
// positions.
func New(positions *tensor.RawTensor, numbers []int64, cutoff float64, opts neighbor.Options) (*AtomicData, error) {
	return data.New(positions, numbers, cutoff, opts)
}

// Batch is several atomic systems collated into one graph.
type Batch = data.Batch

// Collate merges systems into a Batch.
func Collate(systems []*AtomicData) (*Batch, error) {
	return data.Collate(systems)
}

// Frame is one structure read from or written to an extended-XYZ file.
type Frame = data.Frame

// ReadXYZ reads all frames of an extended-XYZ file; ".gz" files are
// decompressed transparently.
func ReadXYZ(path string) ([]Frame, error) {
	return data.ReadXYZ(path)
}

// WriteXYZ writes frames as extended XYZ; ".gz" files are compressed
// transparently.
func WriteXYZ(path string, frames []Frame) error {
	return data.WriteXYZ(path, frames)
}

// SymbolForNumber returns the element symbol for an atomic number.
func SymbolForNumber(z int64) (string, error) {
	return data.SymbolForNumber(z)
}

// NumberForSymbol returns the atomic number of an element symbol.
func NumberForSymbol(symbol string) (int64, error) {
	return data.NumberForSymbol(symbol)
}
