package tensor

// Backend defines the interface compute backends must implement. The op
// set is the one the atomistic data pipeline needs: assembling per-edge
// relative vectors from positions, shifts and the cell, and reducing
// them into scalar quantities.
//
// Implementations:
//   - cpu.Backend: pure Go reference implementation
//   - autodiff.Backend: decorator recording ops on a gradient tape
type Backend interface {
	// Element-wise binary operations (same shape, float dtypes)
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// Matrix operations (2D)
	MatMul(a, b *RawTensor) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Scalar and element-wise math
	MulScalar(x *RawTensor, scalar any) *RawTensor
	Sqrt(x *RawTensor) *RawTensor

	// Reductions
	Sum(x *RawTensor) *RawTensor
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor

	// IndexSelect selects rows along dim using a 1D Int64 index tensor.
	// The index tensor carries no gradient.
	IndexSelect(x *RawTensor, dim int, index *RawTensor) *RawTensor

	// Type conversion
	Cast(x *RawTensor, dtype DataType) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
