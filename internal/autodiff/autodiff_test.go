package autodiff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-ml/lattice/internal/backend/cpu"
	"github.com/lattice-ml/lattice/internal/tensor"
)

type Backend = *AutodiffBackend[*cpu.Backend]

func newBackend() Backend {
	b := New(cpu.New())
	b.Tape().StartRecording()
	return b
}

func fromSlice(t *testing.T, b Backend, data []float64, shape tensor.Shape) *tensor.Tensor[float64, Backend] {
	t.Helper()
	tt, err := tensor.FromSlice(data, shape, b)
	require.NoError(t, err)
	return tt
}

func TestTapeRecordingControl(t *testing.T) {
	b := New(cpu.New())
	x := tensor.Zeros[float64](tensor.Shape{2}, b)

	// Not recording: no ops land on the tape.
	x.Add(x)
	assert.Equal(t, 0, b.Tape().NumOps())

	b.Tape().StartRecording()
	x.Add(x)
	assert.Equal(t, 1, b.Tape().NumOps())

	b.Tape().Clear()
	assert.Equal(t, 0, b.Tape().NumOps())
	assert.True(t, b.Tape().IsRecording())
}

func TestMulGradient(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float64{2, 3}, tensor.Shape{2})
	y := fromSlice(t, b, []float64{5, 7}, tensor.Shape{2})

	z := x.Mul(y)
	grads := Backward(z, b)

	assert.Equal(t, []float64{5, 7}, grads[x.Raw()].AsFloat64())
	assert.Equal(t, []float64{2, 3}, grads[y.Raw()].AsFloat64())
}

func TestSubGradient(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float64{1, 2}, tensor.Shape{2})
	y := fromSlice(t, b, []float64{3, 4}, tensor.Shape{2})

	z := x.Sub(y)
	grads := Backward(z, b)

	assert.Equal(t, []float64{1, 1}, grads[x.Raw()].AsFloat64())
	assert.Equal(t, []float64{-1, -1}, grads[y.Raw()].AsFloat64())
}

func TestChainedGradientsAccumulate(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float64{3}, tensor.Shape{1})

	// z = x*x: dz/dx = 2x through two paths into the same input.
	z := x.Mul(x)
	grads := Backward(z, b)

	assert.Equal(t, []float64{6}, grads[x.Raw()].AsFloat64())
}

func TestMatMulGradient(t *testing.T) {
	b := newBackend()
	a := fromSlice(t, b, []float64{1, 2, 3, 4}, tensor.Shape{2, 2})
	w := fromSlice(t, b, []float64{5, 6, 7, 8}, tensor.Shape{2, 2})

	c := a.MatMul(w)
	grads := Backward(c, b)

	// dC seeded with ones: gradA = 1 @ Wᵀ, gradW = Aᵀ @ 1.
	assert.Equal(t, []float64{11, 15, 11, 15}, grads[a.Raw()].AsFloat64())
	assert.Equal(t, []float64{4, 4, 6, 6}, grads[w.Raw()].AsFloat64())
}

func TestSumGradientBroadcasts(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float64{1, 2, 3}, tensor.Shape{3})

	s := x.Sum()
	grads := Backward(s, b)

	assert.Equal(t, []float64{1, 1, 1}, grads[x.Raw()].AsFloat64())
}

func TestSqrtGradient(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float64{4, 16}, tensor.Shape{2})

	y := x.Sqrt()
	grads := Backward(y, b)

	// d sqrt(x)/dx = 1/(2 sqrt(x)).
	assert.InDeltaSlice(t, []float64{0.25, 0.125}, grads[x.Raw()].AsFloat64(), 1e-12)
}

func TestIndexSelectGradientScatterAdds(t *testing.T) {
	b := newBackend()
	pos := fromSlice(t, b, []float64{
		0, 0, 0,
		1, 1, 1,
		2, 2, 2,
	}, tensor.Shape{3, 3})

	idx, err := tensor.NewRaw(tensor.Shape{3}, tensor.Int64, tensor.CPU)
	require.NoError(t, err)
	copy(idx.AsInt64(), []int64{0, 2, 0})

	gathered := b.IndexSelect(pos.Raw(), 0, idx)
	out := tensor.New[float64](gathered, b)
	grads := Backward(out, b)

	// Atom 0 was selected twice, atom 1 never, atom 2 once.
	assert.Equal(t, []float64{
		2, 2, 2,
		0, 0, 0,
		1, 1, 1,
	}, grads[pos.Raw()].AsFloat64())
}

// TestPairDistanceGradient runs the per-edge geometry pipeline the way
// force computation does: gather endpoints, subtract, reduce to
// distances, sum. The position gradient of the summed distances is the
// unit bond vector, accumulated over both edge directions.
func TestPairDistanceGradient(t *testing.T) {
	b := newBackend()
	pos := fromSlice(t, b, []float64{
		0, 0, 0,
		2, 0, 0,
	}, tensor.Shape{2, 3})

	src, err := tensor.NewRaw(tensor.Shape{2}, tensor.Int64, tensor.CPU)
	require.NoError(t, err)
	copy(src.AsInt64(), []int64{0, 1})
	tgt, err := tensor.NewRaw(tensor.Shape{2}, tensor.Int64, tensor.CPU)
	require.NoError(t, err)
	copy(tgt.AsInt64(), []int64{1, 0})

	pi := b.IndexSelect(pos.Raw(), 0, src)
	pj := b.IndexSelect(pos.Raw(), 0, tgt)
	vec := b.Sub(pj, pi)
	lengths := b.Sqrt(b.SumDim(b.Mul(vec, vec), 1, false))
	total := tensor.New[float64](b.Sum(lengths), b)

	assert.Equal(t, 4.0, total.Item())

	grads := Backward(total, b)
	assert.InDeltaSlice(t, []float64{
		-2, 0, 0,
		2, 0, 0,
	}, grads[pos.Raw()].AsFloat64(), 1e-12)
}
