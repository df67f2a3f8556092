package ops

import (
	"fmt"
	"math"

	"github.com/lattice-ml/lattice/internal/tensor"
)

// SumOp represents a full reduction to a scalar: output = sum(x).
type SumOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSumOp creates a new SumOp.
func NewSumOp(input, output *tensor.RawTensor) *SumOp {
	return &SumOp{input: input, output: output}
}

// Backward broadcasts the scalar output gradient over the input shape.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	gradInput := zeros(op.input, backend.Device())

	switch outputGrad.DType() {
	case tensor.Float32:
		g := outputGrad.AsFloat32()[0]
		dst := gradInput.AsFloat32()
		for i := range dst {
			dst[i] = g
		}
	case tensor.Float64:
		g := outputGrad.AsFloat64()[0]
		dst := gradInput.AsFloat64()
		for i := range dst {
			dst[i] = g
		}
	default:
		panic(fmt.Sprintf("sum backward: unsupported dtype %s", outputGrad.DType()))
	}
	return []*tensor.RawTensor{gradInput}
}

// Inputs returns the input tensor.
func (op *SumOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the output tensor.
func (op *SumOp) Output() *tensor.RawTensor { return op.output }

// SumDimOp represents summation along one dimension.
type SumDimOp struct {
	input   *tensor.RawTensor
	output  *tensor.RawTensor
	dim     int
	keepDim bool
}

// NewSumDimOp creates a new SumDimOp.
func NewSumDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	return &SumDimOp{input: input, output: output, dim: dim, keepDim: keepDim}
}

// Backward expands the output gradient along the summed dimension.
func (op *SumDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	shape := op.input.Shape()
	ndim := len(shape)
	dim := op.dim
	if dim < 0 {
		dim += ndim
	}

	gradInput := zeros(op.input, backend.Device())

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
			for j := 0; j < n; j++ {
				for i := 0; i < inner; i++ {
					dst[(o*n+j)*inner+i] = src[o*inner+i]
				}
			}
		}
	case tensor.Float64:
		src, dst := outputGrad.AsFloat64(), gradInput.AsFloat64()
		for o := 0; o < outer; o++ {
			for j := 0; j < n; j++ {
				for i := 0; i < inner; i++ {
					dst[(o*n+j)*inner+i] = src[o*inner+i]
				}
			}
		}
	default:
		panic(fmt.Sprintf("sumdim backward: unsupported dtype %s", outputGrad.DType()))
	}
	return []*tensor.RawTensor{gradInput}
}

// Inputs returns the input tensor.
func (op *SumDimOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the output tensor.
func (op *SumDimOp) Output() *tensor.RawTensor { return op.output }

// SqrtOp represents the element-wise square root.
type SqrtOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSqrtOp creates a new SqrtOp.
func NewSqrtOp(input, output *tensor.RawTensor) *SqrtOp {
	return &SqrtOp{input: input, output: output}
}

// Backward: d(sqrt(x))/dx = 1 / (2 sqrt(x)) = 1 / (2 output).
func (op *SqrtOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	gradInput := zeros(op.input, backend.Device())

	switch outputGrad.DType() {
	case tensor.Float32:
		g, out, dst := outputGrad.AsFloat32(), op.output.AsFloat32(), gradInput.AsFloat32()
		for i := range dst {
			dst[i] = g[i] / (2 * out[i])
		}
	case tensor.Float64:
		g, out, dst := outputGrad.AsFloat64(), op.output.AsFloat64(), gradInput.AsFloat64()
		for i := range dst {
			dst[i] = g[i] / (2 * out[i])
		}
	default:
		panic(fmt.Sprintf("sqrt backward: unsupported dtype %s", outputGrad.DType()))
	}

	// Edges of exactly zero length would produce Inf here; the neighbor
	// list never emits them unless trivial self edges were requested.
	checkFinite(gradInput)
	return []*tensor.RawTensor{gradInput}
}

func checkFinite(t *tensor.RawTensor) {
	switch t.DType() {
	case tensor.Float32:
		for _, v := range t.AsFloat32() {
			if math.IsInf(float64(v), 0) || math.IsNaN(float64(v)) {
				panic("sqrt backward: non-finite gradient (zero-length edge?)")
			}
		}
	case tensor.Float64:
		for _, v := range t.AsFloat64() {
			if math.IsInf(v, 0) || math.IsNaN(v) {
				panic("sqrt backward: non-finite gradient (zero-length edge?)")
			}
		}
	}
}

// Inputs returns the input tensor.
func (op *SqrtOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the output tensor.
func (op *SqrtOp) Output() *tensor.RawTensor { return op.output }
