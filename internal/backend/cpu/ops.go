package cpu

import (
	"fmt"
	"math"

	"github.com/lattice-ml/lattice/internal/tensor"
)

// MatMul performs 2D matrix multiplication: [m,k] @ [k,n] -> [m,n].
func (cpu *Backend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	as, bs := a.Shape(), b.Shape()
	if len(as) != 2 || len(bs) != 2 {
		panic(fmt.Sprintf("matmul: expected 2D tensors, got %v and %v", as, bs))
	}
	if as[1] != bs[0] {
		panic(fmt.Sprintf("matmul: inner dimensions do not match: %v @ %v", as, bs))
	}
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("matmul: dtype mismatch: %s vs %s", a.DType(), b.DType()))
	}

	m, k, n := as[0], as[1], bs[1]
	result, err := tensor.NewRaw(tensor.Shape{m, n}, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("matmul: %v", err))
	}

	switch a.DType() {
	case tensor.Float32:
		av, bv, rv := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
		for i := 0; i < m; i++ {
			for p := 0; p < k; p++ {
				aip := av[i*k+p]
				if aip == 0 {
					continue
				}
				for j := 0; j < n; j++ {
					rv[i*n+j] += aip * bv[p*n+j]
				}
			}
		}
	case tensor.Float64:
		av, bv, rv := a.AsFloat64(), b.AsFloat64(), result.AsFloat64()
		for i := 0; i < m; i++ {
			for p := 0; p < k; p++ {
				aip := av[i*k+p]
				if aip == 0 {
					continue
				}
				for j := 0; j < n; j++ {
					rv[i*n+j] += aip * bv[p*n+j]
				}
			}
		}
	default:
		panic(fmt.Sprintf("matmul: unsupported dtype %s", a.DType()))
	}
	return result
}

// Transpose permutes the tensor's dimensions. With no axes given, all
// dimensions are reversed.
func (cpu *Backend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: axes length %d != ndim %d", len(axes), ndim))
	}
	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim || seen[ax] {
			panic(fmt.Sprintf("transpose: invalid axes %v for %dD tensor", axes, ndim))
		}
		seen[ax] = true
	}

	newShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		newShape[i] = shape[ax]
	}

	result, err := tensor.NewRaw(newShape, t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("transpose: %v", err))
	}

	srcStrides := shape.ComputeStrides()
	dstStrides := newShape.ComputeStrides()
	elemSize := t.DType().Size()
	src, dst := t.Data(), result.Data()

	coords := make([]int, ndim)
	for i := 0; i < t.NumElements(); i++ {
		rem := i
		for d := 0; d < ndim; d++ {
			coords[d] = rem / srcStrides[d]
			rem %= srcStrides[d]
		}
		dstIdx := 0
		for d := 0; d < ndim; d++ {
			dstIdx += coords[axes[d]] * dstStrides[d]
		}
		copy(dst[dstIdx*elemSize:(dstIdx+1)*elemSize], src[i*elemSize:(i+1)*elemSize])
	}
	return result
}

// Sqrt computes the element-wise square root.
func (cpu *Backend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sqrt: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		xv, rv := x.AsFloat32(), result.AsFloat32()
		for i := range rv {
			rv[i] = float32(math.Sqrt(float64(xv[i])))
		}
	case tensor.Float64:
		xv, rv := x.AsFloat64(), result.AsFloat64()
		for i := range rv {
			rv[i] = math.Sqrt(xv[i])
		}
	default:
		panic(fmt.Sprintf("sqrt: unsupported dtype %s", x.DType()))
	}
	return result
}

// Sum reduces the whole tensor to a scalar (shape []).
func (cpu *Backend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(tensor.Shape{}, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sum: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		var acc float32
		for _, v := range x.AsFloat32() {
			acc += v
		}
		result.AsFloat32()[0] = acc
	case tensor.Float64:
		var acc float64
		for _, v := range x.AsFloat64() {
			acc += v
		}
		result.AsFloat64()[0] = acc
	default:
		panic(fmt.Sprintf("sum: unsupported dtype %s", x.DType()))
	}
	return result
}

// SumDim sums along one dimension, optionally keeping it as size 1.
func (cpu *Backend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)
	if dim < 0 {
		dim += ndim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("sumdim: invalid dim %d for shape %v", dim, shape))
	}

	outShape := make(tensor.Shape, 0, ndim)
	for d, size := range shape {
		if d == dim {
			if keepDim {
				outShape = append(outShape, 1)
			}
			continue
		}
		outShape = append(outShape, size)
	}

	result, err := tensor.NewRaw(outShape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sumdim: %v", err))
	}

	// outer iterates over dims before dim, inner over dims after.
	outer, inner := 1, 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}
	for d := dim + 1; d < ndim; d++ {
		inner *= shape[d]
	}
	n := shape[dim]

	switch x.DType() {
	case tensor.Float32:
		xv, rv := x.AsFloat32(), result.AsFloat32()
		for o := 0; o < outer; o++ {
			for i := 0; i < inner; i++ {
				var acc float32
				for j := 0; j < n; j++ {
					acc += xv[(o*n+j)*inner+i]
				}
				rv[o*inner+i] = acc
			}
		}
	case tensor.Float64:
		xv, rv := x.AsFloat64(), result.AsFloat64()
		for o := 0; o < outer; o++ {
			for i := 0; i < inner; i++ {
				var acc float64
				for j := 0; j < n; j++ {
					acc += xv[(o*n+j)*inner+i]
				}
				rv[o*inner+i] = acc
			}
		}
	default:
		panic(fmt.Sprintf("sumdim: unsupported dtype %s", x.DType()))
	}
	return result
}

// IndexSelect selects slices along dim using a 1D Int64 index tensor.
// For a [N,3] position tensor and dim 0 it gathers rows per edge endpoint.
func (cpu *Backend) IndexSelect(x *tensor.RawTensor, dim int, index *tensor.RawTensor) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)
	if dim < 0 {
		dim += ndim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("indexselect: invalid dim %d for shape %v", dim, shape))
	}
	if len(index.Shape()) != 1 {
		panic(fmt.Sprintf("indexselect: index must be 1D, got %v", index.Shape()))
	}
	if index.DType() != tensor.Int64 {
		panic(fmt.Sprintf("indexselect: index must be int64, got %s", index.DType()))
	}

	idx := index.AsInt64()
	outShape := shape.Clone()
	outShape[dim] = len(idx)

	result, err := tensor.NewRaw(outShape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("indexselect: %v", err))
	}

	outer, inner := 1, 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}
	for d := dim + 1; d < ndim; d++ {
		inner *= shape[d]
	}
	n := shape[dim]
	elemSize := x.DType().Size()
	src, dst := x.Data(), result.Data()

	for o := 0; o < outer; o++ {
		for k, id := range idx {
			if id < 0 || int(id) >= n {
				panic(fmt.Sprintf("indexselect: index %d out of range [0,%d)", id, n))
			}
			srcOff := (o*n + int(id)) * inner * elemSize
			dstOff := (o*len(idx) + k) * inner * elemSize
			copy(dst[dstOff:dstOff+inner*elemSize], src[srcOff:srcOff+inner*elemSize])
		}
	}
	return result
}

// Cast converts the tensor to a different data type.
func (cpu *Backend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	if x.DType() == dtype {
		return x.Clone()
	}

	result, err := tensor.NewRaw(x.Shape(), dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("cast: %v", err))
	}

	n := x.NumElements()
	for i := 0; i < n; i++ {
		setAsFloat(result, i, getAsFloat(x, i))
	}
	return result
}

func getAsFloat(t *tensor.RawTensor, i int) float64 {
	switch t.DType() {
	case tensor.Float32:
		return float64(t.AsFloat32()[i])
	case tensor.Float64:
		return t.AsFloat64()[i]
	case tensor.Int32:
		return float64(t.AsInt32()[i])
	case tensor.Int64:
		return float64(t.AsInt64()[i])
	default:
		panic(fmt.Sprintf("cast: unsupported source dtype %s", t.DType()))
	}
}

func setAsFloat(t *tensor.RawTensor, i int, v float64) {
	switch t.DType() {
	case tensor.Float32:
		t.AsFloat32()[i] = float32(v)
	case tensor.Float64:
		t.AsFloat64()[i] = v
	case tensor.Int32:
		t.AsInt32()[i] = int32(v)
	case tensor.Int64:
		t.AsInt64()[i] = int64(v)
	default:
		panic(fmt.Sprintf("cast: unsupported target dtype %s", t.DType()))
	}
}
