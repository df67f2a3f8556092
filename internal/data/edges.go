package data

import (
	"github.com/lattice-ml/lattice/internal/tensor"
)

// EdgeVectors computes the per-edge relative vectors
//
//	vec[e] = pos[target[e]] - pos[source[e]] + shift[e] · cell
//
// through the given backend, so that running it on a recording backend
// makes the vectors differentiable with respect to the positions: the
// gather's backward pass scatter-adds each edge gradient onto its two
// endpoint atoms. Shifts and cell are constants.
func (d *AtomicData) EdgeVectors(b tensor.Backend) (*tensor.RawTensor, error) {
	src, tgt, err := d.edgeEndpoints()
	if err != nil {
		return nil, err
	}
	pi := b.IndexSelect(d.Positions, 0, src)
	pj := b.IndexSelect(d.Positions, 0, tgt)
	shiftCart := b.MatMul(d.EdgeShift, d.Cell)
	return b.Add(b.Sub(pj, pi), shiftCart), nil
}

// EdgeLengths computes the per-edge distances as a tensor of shape [E].
// Differentiable under a recording backend like EdgeVectors; note the
// square root has no finite gradient at zero length, so trivial self
// edges must be excluded when lengths feed a backward pass.
func (d *AtomicData) EdgeLengths(b tensor.Backend) (*tensor.RawTensor, error) {
	vec, err := d.EdgeVectors(b)
	if err != nil {
		return nil, err
	}
	sq := b.Mul(vec, vec)
	return b.Sqrt(b.SumDim(sq, 1, false)), nil
}
