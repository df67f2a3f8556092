package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-ml/lattice/internal/tensor"
)

func raw64(t *testing.T, data []float64, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat64(), data)
	return r
}

func TestElementwise(t *testing.T) {
	b := New()
	x := raw64(t, []float64{1, 2, 3, 4}, tensor.Shape{2, 2})
	y := raw64(t, []float64{10, 20, 30, 40}, tensor.Shape{2, 2})

	assert.Equal(t, []float64{11, 22, 33, 44}, b.Add(x, y).AsFloat64())
	assert.Equal(t, []float64{9, 18, 27, 36}, b.Sub(y, x).AsFloat64())
	assert.Equal(t, []float64{10, 40, 90, 160}, b.Mul(x, y).AsFloat64())
}

func TestElementwiseShapeMismatchPanics(t *testing.T) {
	b := New()
	x := raw64(t, []float64{1, 2}, tensor.Shape{2})
	y := raw64(t, []float64{1, 2, 3}, tensor.Shape{3})
	assert.Panics(t, func() { b.Add(x, y) })
}

func TestMulScalar(t *testing.T) {
	b := New()
	x := raw64(t, []float64{1, -2, 3}, tensor.Shape{3})
	assert.Equal(t, []float64{2, -4, 6}, b.MulScalar(x, 2.0).AsFloat64())
	assert.Equal(t, []float64{-1, 2, -3}, b.MulScalar(x, -1).AsFloat64())
}

func TestMatMul(t *testing.T) {
	b := New()
	// [2,3] @ [3,2]
	x := raw64(t, []float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	y := raw64(t, []float64{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2})

	got := b.MatMul(x, y)
	assert.Equal(t, tensor.Shape{2, 2}, got.Shape())
	assert.Equal(t, []float64{58, 64, 139, 154}, got.AsFloat64())
}

func TestMatMulShiftTimesCell(t *testing.T) {
	b := New()
	// One edge crossing the -x boundary of an orthorhombic cell.
	shift := raw64(t, []float64{-1, 0, 0}, tensor.Shape{1, 3})
	cell := raw64(t, []float64{2, 0, 0, 0, 3, 0, 0, 0, 4}, tensor.Shape{3, 3})

	got := b.MatMul(shift, cell)
	assert.Equal(t, []float64{-2, 0, 0}, got.AsFloat64())
}

func TestTranspose2D(t *testing.T) {
	b := New()
	x := raw64(t, []float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	got := b.Transpose(x)
	assert.Equal(t, tensor.Shape{3, 2}, got.Shape())
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, got.AsFloat64())
}

func TestSum(t *testing.T) {
	b := New()
	x := raw64(t, []float64{1, 2, 3, 4}, tensor.Shape{2, 2})

	got := b.Sum(x)
	assert.Equal(t, tensor.Shape{}, got.Shape())
	assert.Equal(t, 10.0, got.AsFloat64()[0])
}

func TestSumDim(t *testing.T) {
	b := New()
	x := raw64(t, []float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	rows := b.SumDim(x, 1, false)
	assert.Equal(t, tensor.Shape{2}, rows.Shape())
	assert.Equal(t, []float64{6, 15}, rows.AsFloat64())

	cols := b.SumDim(x, 0, true)
	assert.Equal(t, tensor.Shape{1, 3}, cols.Shape())
	assert.Equal(t, []float64{5, 7, 9}, cols.AsFloat64())
}

func TestSqrt(t *testing.T) {
	b := New()
	x := raw64(t, []float64{4, 9, 0.25}, tensor.Shape{3})
	assert.Equal(t, []float64{2, 3, 0.5}, b.Sqrt(x).AsFloat64())
}

func TestIndexSelectRows(t *testing.T) {
	b := New()
	pos := raw64(t, []float64{
		0, 0, 0,
		1, 0, 0,
		0, 2, 0,
	}, tensor.Shape{3, 3})

	idx, err := tensor.NewRaw(tensor.Shape{4}, tensor.Int64, tensor.CPU)
	require.NoError(t, err)
	copy(idx.AsInt64(), []int64{2, 0, 1, 1})

	got := b.IndexSelect(pos, 0, idx)
	assert.Equal(t, tensor.Shape{4, 3}, got.Shape())
	assert.Equal(t, []float64{
		0, 2, 0,
		0, 0, 0,
		1, 0, 0,
		1, 0, 0,
	}, got.AsFloat64())
}

func TestIndexSelectOutOfRangePanics(t *testing.T) {
	b := New()
	pos := raw64(t, []float64{0, 0, 0}, tensor.Shape{1, 3})
	idx, err := tensor.NewRaw(tensor.Shape{1}, tensor.Int64, tensor.CPU)
	require.NoError(t, err)
	idx.AsInt64()[0] = 5
	assert.Panics(t, func() { b.IndexSelect(pos, 0, idx) })
}

func TestIndexSelectEmptyIndex(t *testing.T) {
	b := New()
	pos := raw64(t, []float64{0, 0, 0}, tensor.Shape{1, 3})
	idx, err := tensor.NewRaw(tensor.Shape{0}, tensor.Int64, tensor.CPU)
	require.NoError(t, err)

	got := b.IndexSelect(pos, 0, idx)
	assert.Equal(t, tensor.Shape{0, 3}, got.Shape())
}

func TestCast(t *testing.T) {
	b := New()
	x := raw64(t, []float64{1.7, -2.2, 3}, tensor.Shape{3})

	i64 := b.Cast(x, tensor.Int64)
	assert.Equal(t, []int64{1, -2, 3}, i64.AsInt64())

	f32 := b.Cast(x, tensor.Float32)
	assert.Equal(t, []float32{1.7, -2.2, 3}, f32.AsFloat32())

	same := b.Cast(x, tensor.Float64)
	assert.NotSame(t, x, same)
	assert.Equal(t, x.AsFloat64(), same.AsFloat64())
}
