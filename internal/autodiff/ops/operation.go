// Package ops defines the differentiable operations recorded by the
// gradient tape. Each operation stores its inputs and output during the
// forward pass and computes input gradients during the backward pass.
//
// The op set mirrors the backend interface: element-wise arithmetic,
// matrix multiplication, row selection, square root and summation. These
// are the operations a force computation chains through, from gathered
// edge endpoints to a scalar energy.
package ops

import "github.com/lattice-ml/lattice/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns one gradient per input tensor; nil entries mean no gradient
	// flows to that input (e.g. integer index tensors).
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}

// zeros allocates a zero-initialized tensor shaped like t.
func zeros(t *tensor.RawTensor, device tensor.Device) *tensor.RawTensor {
	z, err := tensor.NewRaw(t.Shape(), t.DType(), device)
	if err != nil {
		panic(err)
	}
	return z
}
