// Package data provides the atomic-system container built on the
// neighbor list: positions, species, the directed edge graph, and the
// derived per-edge geometry that models consume.
package data

import (
	"fmt"

	"github.com/lattice-ml/lattice/internal/geom"
	"github.com/lattice-ml/lattice/internal/neighbor"
	"github.com/lattice-ml/lattice/internal/tensor"
)

// AtomicData is one atomic system with its neighbor graph. Tensors
// share device placement and float dtype with the positions they were
// built from.
type AtomicData struct {
	// Positions is a float tensor of shape [N, 3].
	Positions *tensor.RawTensor
	// Numbers holds the atomic numbers as an Int64 tensor of shape [N].
	Numbers *tensor.RawTensor
	// EdgeIndex is an Int64 tensor of shape [2, E]; row 0 sources,
	// row 1 targets.
	EdgeIndex *tensor.RawTensor
	// EdgeShift is a float tensor of shape [E, 3] of integer-valued
	// periodic-image shifts.
	EdgeShift *tensor.RawTensor
	// Cell is the completed lattice, shape [3, 3].
	Cell *tensor.RawTensor
	// PBC records which cell axes are periodic.
	PBC geom.PBC
}

// New builds an AtomicData by running the neighbor search on the given
// positions. Numbers must have one atomic number per atom.
func New(positions *tensor.RawTensor, numbers []int64, cutoff float64, opts neighbor.Options) (*AtomicData, error) {
	if positions == nil {
		return nil, fmt.Errorf("positions are nil")
	}
	if n := positions.Shape()[0]; n != len(numbers) {
		return nil, fmt.Errorf("got %d positions but %d atomic numbers", n, len(numbers))
	}

	graph, err := neighbor.Build(positions, cutoff, opts)
	if err != nil {
		return nil, err
	}

	z, err := tensor.NewRaw(tensor.Shape{len(numbers)}, tensor.Int64, tensor.CPU)
	if err != nil {
		return nil, err
	}
	copy(z.AsInt64(), numbers)

	return &AtomicData{
		Positions: positions,
		Numbers:   z.ToDevice(positions.Device()),
		EdgeIndex: graph.EdgeIndex,
		EdgeShift: graph.EdgeShift,
		Cell:      graph.Cell,
		PBC:       opts.PBC,
	}, nil
}

// NumAtoms returns the number of atoms in the system.
func (d *AtomicData) NumAtoms() int {
	return d.Positions.Shape()[0]
}

// NumEdges returns the number of directed edges.
func (d *AtomicData) NumEdges() int {
	return d.EdgeIndex.Shape()[1]
}

// edgeEndpoints splits the [2, E] edge index into two 1D Int64 index
// tensors for gathering. The copies are constants and never recorded.
func (d *AtomicData) edgeEndpoints() (src, tgt *tensor.RawTensor, err error) {
	nEdges := d.NumEdges()
	idx := d.EdgeIndex.ToDevice(tensor.CPU).AsInt64()

	src, err = tensor.NewRaw(tensor.Shape{nEdges}, tensor.Int64, d.EdgeIndex.Device())
	if err != nil {
		return nil, nil, err
	}
	tgt, err = tensor.NewRaw(tensor.Shape{nEdges}, tensor.Int64, d.EdgeIndex.Device())
	if err != nil {
		return nil, nil, err
	}
	copy(src.AsInt64(), idx[:nEdges])
	copy(tgt.AsInt64(), idx[nEdges:])
	return src, tgt, nil
}
