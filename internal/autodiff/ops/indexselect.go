package ops

import (
	"fmt"

	"github.com/lattice-ml/lattice/internal/tensor"
)

// IndexSelectOp represents row selection along a dimension.
//
// Forward: output = IndexSelect(input, dim, index)
//
// Backward: scatter-add the output gradient back to the selected rows.
// The same source row may be selected by many edges; its gradient is the
// sum of the per-edge gradients, which is exactly what a per-atom force
// accumulated over incident edges requires.
type IndexSelectOp struct {
	input  *tensor.RawTensor
	dim    int
	index  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewIndexSelectOp creates a new IndexSelectOp.
func NewIndexSelectOp(input *tensor.RawTensor, dim int, index, output *tensor.RawTensor) *IndexSelectOp {
	return &IndexSelectOp{input: input, dim: dim, index: index, output: output}
}

// Inputs returns the input tensor. The index tensor carries no gradient.
func (op *IndexSelectOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *IndexSelectOp) Output() *tensor.RawTensor { return op.output }

// Backward scatter-adds outputGrad rows into a zero gradient of the
// input's shape.
func (op *IndexSelectOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	shape := op.input.Shape()
	ndim := len(shape)
	dim := op.dim
	if dim < 0 {
		dim += ndim
	}

	gradInput := zeros(op.input, backend.Device())
	idx := op.index.AsInt64()

	outer, inner := 1, 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}
	for d := dim + 1; d < ndim; d++ {
		inner *= shape[d]
	}
	n := shape[dim]

	switch outputGrad.DType() {
	case tensor.Float32:
		src, dst := outputGrad.AsFloat32(), gradInput.AsFloat32()
		for o := 0; o < outer; o++ {
			for k, id := range idx {
				if id < 0 || int(id) >= n {
					panic(fmt.Sprintf("indexselect backward: index %d out of range [0,%d)", id, n))
				}
				srcOff := (o*len(idx) + k) * inner
				dstOff := (o*n + int(id)) * inner
				for i := 0; i < inner; i++ {
					dst[dstOff+i] += src[srcOff+i]
				}
			}
		}
	case tensor.Float64:
		src, dst := outputGrad.AsFloat64(), gradInput.AsFloat64()
		for o := 0; o < outer; o++ {
			for k, id := range idx {
				if id < 0 || int(id) >= n {
					panic(fmt.Sprintf("indexselect backward: index %d out of range [0,%d)", id, n))
				}
				srcOff := (o*len(idx) + k) * inner
				dstOff := (o*n + int(id)) * inner
				for i := 0; i < inner; i++ {
					dst[dstOff+i] += src[srcOff+i]
				}
			}
		}
	default:
		panic(fmt.Sprintf("indexselect backward: unsupported dtype %s", outputGrad.DType()))
	}

	return []*tensor.RawTensor{gradInput}
}
