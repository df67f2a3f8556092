package data

import (
	"fmt"

	"github.com/lattice-ml/lattice/internal/tensor"
)

// Batch is several atomic systems collated into one graph. Atom and
// edge tensors are concatenated, edge indices are offset so every edge
// stays within its own system, and the per-edge periodic shifts are
// folded into Cartesian displacement vectors so no per-edge cell
// lookup is needed downstream.
type Batch struct {
	// Positions is the concatenated float tensor of shape [N, 3].
	Positions *tensor.RawTensor
	// Numbers is the concatenated Int64 tensor of shape [N].
	Numbers *tensor.RawTensor
	// EdgeIndex is the offset Int64 edge list of shape [2, E].
	EdgeIndex *tensor.RawTensor
	// ShiftVectors holds each edge's Cartesian periodic displacement
	// shift · cell, shape [E, 3].
	ShiftVectors *tensor.RawTensor
	// Cells stacks the per-system lattices, shape [B, 3, 3].
	Cells *tensor.RawTensor
	// Index maps each atom to its system, shape [N], Int64.
	Index *tensor.RawTensor
	// Ptr holds the atom offsets of each system plus the total, shape
	// [B+1], Int64.
	Ptr *tensor.RawTensor
}

// NumSystems returns the number of collated systems.
func (b *Batch) NumSystems() int {
	return b.Ptr.Shape()[0] - 1
}

// NumAtoms returns the total atom count.
func (b *Batch) NumAtoms() int {
	return b.Positions.Shape()[0]
}

// NumEdges returns the total directed edge count.
func (b *Batch) NumEdges() int {
	return b.EdgeIndex.Shape()[1]
}

// Collate merges systems into a Batch. All systems must share float
// dtype and device. The batch owns fresh position storage; gradients
// computed against a batch flow to the batch positions, not to the
// tensors of the source systems.
func Collate(systems []*AtomicData) (*Batch, error) {
	if len(systems) == 0 {
		return nil, fmt.Errorf("nothing to collate")
	}
	dtype := systems[0].Positions.DType()
	device := systems[0].Positions.Device()

	var nAtoms, nEdges int
	for i, s := range systems {
		if s.Positions.DType() != dtype || s.Positions.Device() != device {
			return nil, fmt.Errorf("system %d has dtype %s on %s, want %s on %s",
				i, s.Positions.DType(), s.Positions.Device(), dtype, device)
		}
		nAtoms += s.NumAtoms()
		nEdges += s.NumEdges()
	}

	positions, err := tensor.NewRaw(tensor.Shape{nAtoms, 3}, dtype, tensor.CPU)
	if err != nil {
		return nil, err
	}
	shiftVectors, err := tensor.NewRaw(tensor.Shape{nEdges, 3}, dtype, tensor.CPU)
	if err != nil {
		return nil, err
	}
	cells, err := tensor.NewRaw(tensor.Shape{len(systems), 3, 3}, dtype, tensor.CPU)
	if err != nil {
		return nil, err
	}
	numbers, err := tensor.NewRaw(tensor.Shape{nAtoms}, tensor.Int64, tensor.CPU)
	if err != nil {
		return nil, err
	}
	edgeIndex, err := tensor.NewRaw(tensor.Shape{2, nEdges}, tensor.Int64, tensor.CPU)
	if err != nil {
		return nil, err
	}
	index, err := tensor.NewRaw(tensor.Shape{nAtoms}, tensor.Int64, tensor.CPU)
	if err != nil {
		return nil, err
	}
	ptr, err := tensor.NewRaw(tensor.Shape{len(systems) + 1}, tensor.Int64, tensor.CPU)
	if err != nil {
		return nil, err
	}

	idxOut := edgeIndex.AsInt64()
	atomOffset, edgeOffset := 0, 0
	for si, s := range systems {
		na, ne := s.NumAtoms(), s.NumEdges()
		host := s.Positions.ToDevice(tensor.CPU)

		copyFloats(positions, 3*atomOffset, host)
		writeShiftVectors(shiftVectors, edgeOffset, s)
		copyFloats(cells, 9*si, s.Cell.ToDevice(tensor.CPU))
		copy(numbers.AsInt64()[atomOffset:], s.Numbers.ToDevice(tensor.CPU).AsInt64())

		srcTgt := s.EdgeIndex.ToDevice(tensor.CPU).AsInt64()
		for e := 0; e < ne; e++ {
			idxOut[edgeOffset+e] = srcTgt[e] + int64(atomOffset)
			idxOut[nEdges+edgeOffset+e] = srcTgt[ne+e] + int64(atomOffset)
		}
		for a := 0; a < na; a++ {
			index.AsInt64()[atomOffset+a] = int64(si)
		}
		ptr.AsInt64()[si+1] = int64(atomOffset + na)

		atomOffset += na
		edgeOffset += ne
	}

	return &Batch{
		Positions:    positions.ToDevice(device),
		Numbers:      numbers.ToDevice(device),
		EdgeIndex:    edgeIndex.ToDevice(device),
		ShiftVectors: shiftVectors.ToDevice(device),
		Cells:        cells.ToDevice(device),
		Index:        index.ToDevice(device),
		Ptr:          ptr.ToDevice(device),
	}, nil
}

// EdgeVectors computes the batched per-edge relative vectors; see
// AtomicData.EdgeVectors. The precomputed shift vectors are constants.
func (b *Batch) EdgeVectors(backend tensor.Backend) (*tensor.RawTensor, error) {
	nEdges := b.NumEdges()
	idx := b.EdgeIndex.ToDevice(tensor.CPU).AsInt64()

	src, err := tensor.NewRaw(tensor.Shape{nEdges}, tensor.Int64, b.EdgeIndex.Device())
	if err != nil {
		return nil, err
	}
	tgt, err := tensor.NewRaw(tensor.Shape{nEdges}, tensor.Int64, b.EdgeIndex.Device())
	if err != nil {
		return nil, err
	}
	copy(src.AsInt64(), idx[:nEdges])
	copy(tgt.AsInt64(), idx[nEdges:])

	pi := backend.IndexSelect(b.Positions, 0, src)
	pj := backend.IndexSelect(b.Positions, 0, tgt)
	return backend.Add(backend.Sub(pj, pi), b.ShiftVectors), nil
}

// copyFloats copies a whole float tensor into dst starting at the given
// element offset. Both tensors carry the same dtype by construction.
func copyFloats(dst *tensor.RawTensor, offset int, src *tensor.RawTensor) {
	switch dst.DType() {
	case tensor.Float64:
		copy(dst.AsFloat64()[offset:], src.AsFloat64())
	case tensor.Float32:
		copy(dst.AsFloat32()[offset:], src.AsFloat32())
	}
}

// writeShiftVectors folds one system's fractional shifts and cell into
// Cartesian displacements, written at the given edge offset.
func writeShiftVectors(dst *tensor.RawTensor, edgeOffset int, s *AtomicData) {
	ne := s.NumEdges()
	switch dst.DType() {
	case tensor.Float64:
		shifts := s.EdgeShift.ToDevice(tensor.CPU).AsFloat64()
		cell := s.Cell.ToDevice(tensor.CPU).AsFloat64()
		out := dst.AsFloat64()
		for e := 0; e < ne; e++ {
			for j := 0; j < 3; j++ {
				out[3*(edgeOffset+e)+j] = shifts[3*e]*cell[j] +
					shifts[3*e+1]*cell[3+j] +
					shifts[3*e+2]*cell[6+j]
			}
		}
	case tensor.Float32:
		shifts := s.EdgeShift.ToDevice(tensor.CPU).AsFloat32()
		cell := s.Cell.ToDevice(tensor.CPU).AsFloat32()
		out := dst.AsFloat32()
		for e := 0; e < ne; e++ {
			for j := 0; j < 3; j++ {
				out[3*(edgeOffset+e)+j] = shifts[3*e]*cell[j] +
					shifts[3*e+1]*cell[3+j] +
					shifts[3*e+2]*cell[6+j]
			}
		}
	}
}
