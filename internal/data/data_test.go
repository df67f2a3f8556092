package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-ml/lattice/internal/autodiff"
	"github.com/lattice-ml/lattice/internal/backend/cpu"
	"github.com/lattice-ml/lattice/internal/geom"
	"github.com/lattice-ml/lattice/internal/neighbor"
	"github.com/lattice-ml/lattice/internal/tensor"
)

func positionsTensor(t *testing.T, rows [][3]float64) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(tensor.Shape{len(rows), 3}, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	data := raw.AsFloat64()
	for i, r := range rows {
		copy(data[3*i:], r[:])
	}
	return raw
}

func dimerOpts() neighbor.Options {
	opts := neighbor.DefaultOptions()
	opts.Config = &neighbor.Config{Backend: neighbor.BackendDirect, ErrorOnNoEdges: true}
	return opts
}

func TestNewValidatesNumbers(t *testing.T) {
	pos := positionsTensor(t, [][3]float64{{0, 0, 0}, {1.5, 0, 0}})
	_, err := New(pos, []int64{8}, 2.0, dimerOpts())
	require.Error(t, err)
}

func TestEdgeVectors(t *testing.T) {
	pos := positionsTensor(t, [][3]float64{{0, 0, 0}, {1.5, 0, 0}})
	d, err := New(pos, []int64{8, 1}, 2.0, dimerOpts())
	require.NoError(t, err)
	require.Equal(t, 2, d.NumEdges())

	vec, err := d.EdgeVectors(cpu.New())
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{2, 3}, vec.Shape())

	idx := d.EdgeIndex.AsInt64()
	v := vec.AsFloat64()
	rows := [][3]float64{{0, 0, 0}, {1.5, 0, 0}}
	for e := 0; e < 2; e++ {
		src, tgt := idx[e], idx[2+e]
		for k := 0; k < 3; k++ {
			assert.InDelta(t, rows[tgt][k]-rows[src][k], v[3*e+k], 1e-12, "edge %d", e)
		}
	}
}

func TestEdgeVectorsCrossBoundary(t *testing.T) {
	cell := geom.Cell{{2, 0, 0}, {0, 2, 0}, {0, 0, 2}}
	opts := dimerOpts()
	opts.Cell = &cell
	opts.PBC = geom.Uniform(true)

	pos := positionsTensor(t, [][3]float64{{1, 1, 1}})
	d, err := New(pos, []int64{29}, 2.5, opts)
	require.NoError(t, err)
	require.Equal(t, 6, d.NumEdges())

	// Self-image edges: the relative vector is exactly the lattice
	// translation, length one cell width.
	lengths, err := d.EdgeLengths(cpu.New())
	require.NoError(t, err)
	for e, l := range lengths.AsFloat64() {
		assert.InDelta(t, 2.0, l, 1e-12, "edge %d", e)
	}
}

func TestForcesFromEdgeLengths(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	pos := positionsTensor(t, [][3]float64{{0, 0, 0}, {2, 0, 0}})
	d, err := New(pos, []int64{1, 1}, 3.0, dimerOpts())
	require.NoError(t, err)

	lengths, err := d.EdgeLengths(backend)
	require.NoError(t, err)
	energy := tensor.New[float64](backend.Sum(lengths), backend)
	assert.Equal(t, 4.0, energy.Item())

	grads := autodiff.Backward(energy, backend)
	grad := grads[d.Positions]
	require.NotNil(t, grad, "no gradient reached the positions")
	assert.InDeltaSlice(t, []float64{-2, 0, 0, 2, 0, 0}, grad.AsFloat64(), 1e-12)
}

func TestCollate(t *testing.T) {
	posA := positionsTensor(t, [][3]float64{{0, 0, 0}, {1, 0, 0}})
	sysA, err := New(posA, []int64{1, 1}, 1.5, dimerOpts())
	require.NoError(t, err)

	posB := positionsTensor(t, [][3]float64{{0, 0, 0}, {0, 1.2, 0}, {0, 0, 1.2}})
	sysB, err := New(posB, []int64{8, 1, 1}, 1.5, dimerOpts())
	require.NoError(t, err)

	batch, err := Collate([]*AtomicData{sysA, sysB})
	require.NoError(t, err)

	assert.Equal(t, 2, batch.NumSystems())
	assert.Equal(t, 5, batch.NumAtoms())
	assert.Equal(t, sysA.NumEdges()+sysB.NumEdges(), batch.NumEdges())
	assert.Equal(t, []int64{0, 0, 1, 1, 1}, batch.Index.AsInt64())
	assert.Equal(t, []int64{0, 2, 5}, batch.Ptr.AsInt64())
	assert.Equal(t, []int64{1, 1, 8, 1, 1}, batch.Numbers.AsInt64())

	// Every edge of the second system references its own atoms.
	idx := batch.EdgeIndex.AsInt64()
	n := batch.NumEdges()
	for e := sysA.NumEdges(); e < n; e++ {
		assert.GreaterOrEqual(t, idx[e], int64(2))
		assert.GreaterOrEqual(t, idx[n+e], int64(2))
	}

	// Batched edge vectors match the per-system ones.
	b := cpu.New()
	vecBatch, err := batch.EdgeVectors(b)
	require.NoError(t, err)
	vecA, err := sysA.EdgeVectors(b)
	require.NoError(t, err)
	vecB, err := sysB.EdgeVectors(b)
	require.NoError(t, err)
	assert.Equal(t, append(vecA.AsFloat64(), vecB.AsFloat64()...), vecBatch.AsFloat64())
}

func TestCollateRejectsMixedDTypes(t *testing.T) {
	pos := positionsTensor(t, [][3]float64{{0, 0, 0}, {1, 0, 0}})
	sys, err := New(pos, []int64{1, 1}, 1.5, dimerOpts())
	require.NoError(t, err)

	raw32, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(raw32.AsFloat32(), []float32{0, 0, 0, 1, 0, 0})
	sys32, err := New(raw32, []int64{1, 1}, 1.5, dimerOpts())
	require.NoError(t, err)

	_, err = Collate([]*AtomicData{sys, sys32})
	assert.Error(t, err)

	_, err = Collate(nil)
	assert.Error(t, err)
}

func TestElementTable(t *testing.T) {
	z, err := NumberForSymbol("Fe")
	require.NoError(t, err)
	assert.Equal(t, int64(26), z)

	sym, err := SymbolForNumber(8)
	require.NoError(t, err)
	assert.Equal(t, "O", sym)

	_, err = NumberForSymbol("Xx")
	assert.Error(t, err)
	_, err = SymbolForNumber(0)
	assert.Error(t, err)
	_, err = SymbolForNumber(200)
	assert.Error(t, err)
}

func TestXYZRoundTrip(t *testing.T) {
	energy := -123.456
	frames := []Frame{
		{
			Numbers:   []int64{8, 1, 1},
			Positions: [][3]float64{{0, 0, 0.12}, {0, 0.76, -0.48}, {0, -0.76, -0.48}},
		},
		{
			Numbers:   []int64{14, 14},
			Positions: [][3]float64{{0, 0, 0}, {1.3575, 1.3575, 1.3575}},
			Cell:      geom.Cell{{5.43, 0, 0}, {0, 5.43, 0}, {0, 0, 5.43}},
			PBC:       geom.Uniform(true),
			Energy:    &energy,
			Forces:    [][3]float64{{0.1, -0.2, 0.3}, {-0.1, 0.2, -0.3}},
		},
	}

	for _, name := range []string{"frames.xyz", "frames.xyz.gz"} {
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, WriteXYZ(path, frames))

		got, err := ReadXYZ(path)
		require.NoError(t, err)
		require.Len(t, got, len(frames))

		for fi := range frames {
			assert.Equal(t, frames[fi].Numbers, got[fi].Numbers, "%s frame %d", name, fi)
			assert.Equal(t, frames[fi].PBC, got[fi].PBC, "%s frame %d", name, fi)
			for i := range frames[fi].Positions {
				for k := 0; k < 3; k++ {
					assert.InDelta(t, frames[fi].Positions[i][k], got[fi].Positions[i][k], 1e-6)
				}
			}
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					assert.InDelta(t, frames[fi].Cell[i][j], got[fi].Cell[i][j], 1e-6)
				}
			}
			if frames[fi].Energy == nil {
				assert.Nil(t, got[fi].Energy)
				assert.Nil(t, got[fi].Forces)
				continue
			}
			require.NotNil(t, got[fi].Energy)
			assert.InDelta(t, *frames[fi].Energy, *got[fi].Energy, 1e-8)
			require.Len(t, got[fi].Forces, len(frames[fi].Forces))
			for i := range frames[fi].Forces {
				for k := 0; k < 3; k++ {
					assert.InDelta(t, frames[fi].Forces[i][k], got[fi].Forces[i][k], 1e-6)
				}
			}
		}
	}
}

func TestFrameAtomicData(t *testing.T) {
	frame := Frame{
		Numbers:   []int64{14, 14},
		Positions: [][3]float64{{0, 0, 0}, {1.3575, 1.3575, 1.3575}},
		Cell:      geom.Cell{{5.43, 0, 0}, {0, 5.43, 0}, {0, 0, 5.43}},
		PBC:       geom.Uniform(true),
	}

	d, err := frame.AtomicData(3.0, dimerOpts())
	require.NoError(t, err)
	assert.Equal(t, 2, d.NumAtoms())
	assert.Positive(t, d.NumEdges())
	assert.Equal(t, geom.Uniform(true), d.PBC)
}

func TestReadXYZErrors(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.xyz")
	require.NoError(t, os.WriteFile(bad, []byte("2\ncomment\nH 0 0 0\n"), 0o644))
	_, err := ReadXYZ(bad)
	assert.Error(t, err, "truncated frame accepted")

	missing := filepath.Join(dir, "missing.xyz")
	_, err = ReadXYZ(missing)
	assert.Error(t, err)
}
