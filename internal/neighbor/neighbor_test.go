package neighbor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-ml/lattice/internal/geom"
	"github.com/lattice-ml/lattice/internal/tensor"
)

var allBackends = []string{BackendDirect, BackendCellList, BackendKDTree}

func testConfig(backend string) *Config {
	return &Config{Backend: backend, ErrorOnNoEdges: true}
}

func build(t *testing.T, backend string, pos any, cutoff float64, opts Options) *Graph {
	t.Helper()
	opts.Config = testConfig(backend)
	g, err := Build(pos, cutoff, opts)
	require.NoError(t, err, "backend %s", backend)
	return g
}

type edge struct {
	i, j  int64
	shift [3]int
}

func edgeSet(t *testing.T, g *Graph) map[edge]bool {
	t.Helper()
	n := g.NumEdges()
	idx := g.EdgeIndex.ToDevice(tensor.CPU).AsInt64()
	shifts := g.EdgeShift.ToDevice(tensor.CPU)

	readShift := func(e, k int) int {
		switch shifts.DType() {
		case tensor.Float64:
			return int(shifts.AsFloat64()[3*e+k])
		case tensor.Float32:
			return int(shifts.AsFloat32()[3*e+k])
		}
		t.Fatalf("unexpected shift dtype %s", shifts.DType())
		return 0
	}

	set := make(map[edge]bool, n)
	for e := 0; e < n; e++ {
		ed := edge{i: idx[e], j: idx[n+e]}
		for k := 0; k < 3; k++ {
			ed.shift[k] = readShift(e, k)
		}
		require.False(t, set[ed], "duplicate edge %v", ed)
		set[ed] = true
	}
	return set
}

func TestTwoAtomPair(t *testing.T) {
	pos := [][3]float64{{0, 0, 0}, {1, 0, 0}}

	g := build(t, BackendDirect, pos, 1.5, DefaultOptions())
	set := edgeSet(t, g)

	assert.Len(t, set, 2)
	assert.True(t, set[edge{i: 0, j: 1}])
	assert.True(t, set[edge{i: 1, j: 0}])

	// The completed cell of an aperiodic system is the identity.
	cell := g.Cell.AsFloat64()
	assert.Equal(t, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, cell)
}

func TestTwoAtomsOutOfRange(t *testing.T) {
	pos := [][3]float64{{0, 0, 0}, {1, 0, 0}}
	opts := DefaultOptions()
	opts.Config = testConfig(BackendDirect)

	_, err := Build(pos, 0.9, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0.9")
	assert.Contains(t, err.Error(), EnvErrorOnNoEdges)
}

func TestFullConnectivityAperiodic(t *testing.T) {
	pos := [][3]float64{
		{0, 0, 0}, {0.5, 0, 0}, {0, 0.5, 0}, {0, 0, 0.5}, {0.3, 0.3, 0.3},
	}
	for _, backend := range allBackends {
		g := build(t, backend, pos, 10, DefaultOptions())
		set := edgeSet(t, g)
		assert.Len(t, set, len(pos)*(len(pos)-1), "backend %s", backend)
		for ed := range set {
			assert.Equal(t, [3]int{}, ed.shift, "aperiodic edge with shift: %v", ed)
		}
	}
}

func TestBackendsAgreePeriodic(t *testing.T) {
	cell := geom.Cell{{3, 0, 0}, {0.8, 2.8, 0}, {-0.4, 0.6, 2.6}}
	pos := [][3]float64{
		{0.1, 0.2, 0.3},
		{1.4, 0.9, 0.2},
		{2.2, 2.1, 1.1},
		{0.6, 1.8, 2.2},
		{1.9, 0.4, 1.7},
		{2.8, 2.5, 2.4},
	}
	opts := DefaultOptions()
	opts.Cell = &cell
	opts.PBC = geom.Uniform(true)

	reference := edgeSet(t, build(t, BackendDirect, pos, 1.8, opts))
	require.NotEmpty(t, reference)

	for _, backend := range allBackends[1:] {
		got := edgeSet(t, build(t, backend, pos, 1.8, opts))
		assert.Equal(t, reference, got, "backend %s disagrees with %s", backend, BackendDirect)
	}
}

func TestEdgeSetIsDirectionSymmetric(t *testing.T) {
	cell := geom.Cell{{2.5, 0, 0}, {0, 2.5, 0}, {0, 0, 2.5}}
	pos := [][3]float64{{0.1, 0.1, 0.1}, {1.2, 1.3, 1.1}, {2.3, 0.2, 1.9}}
	opts := DefaultOptions()
	opts.Cell = &cell
	opts.PBC = geom.Uniform(true)

	set := edgeSet(t, build(t, BackendDirect, pos, 2.0, opts))
	for ed := range set {
		mirror := edge{i: ed.j, j: ed.i, shift: [3]int{-ed.shift[0], -ed.shift[1], -ed.shift[2]}}
		assert.True(t, set[mirror], "edge %v has no mirror", ed)
	}
}

// TestEdgeDistanceInvariant places atoms far outside the cell: shifts
// must be reported against the original coordinates, so every edge
// displacement pos[j] - pos[i] + S·cell still lands under the cutoff.
func TestEdgeDistanceInvariant(t *testing.T) {
	cell := geom.Cell{{2, 0, 0}, {0, 2, 0}, {0, 0, 2}}
	pos := [][3]float64{
		{10.2, 0.1, -3.9},
		{0.9, 4.3, 0.5},
		{-5.1, 1.1, 1.8},
	}
	cutoff := 1.9
	opts := DefaultOptions()
	opts.Cell = &cell
	opts.PBC = geom.Uniform(true)

	for _, backend := range allBackends {
		g := build(t, backend, pos, cutoff, opts)
		n := g.NumEdges()
		require.Positive(t, n, "backend %s", backend)

		idx := g.EdgeIndex.AsInt64()
		shifts := g.EdgeShift.AsFloat64()
		for e := 0; e < n; e++ {
			pi := pos[idx[e]]
			pj := pos[idx[n+e]]
			var d2 float64
			for k := 0; k < 3; k++ {
				d := pj[k] - pi[k] +
					shifts[3*e]*cell[0][k] + shifts[3*e+1]*cell[1][k] + shifts[3*e+2]*cell[2][k]
				d2 += d * d
			}
			assert.Less(t, math.Sqrt(d2), cutoff, "backend %s edge %d", backend, e)
		}
	}
}

func TestSelfInteractionKeepsTrivialEdges(t *testing.T) {
	pos := [][3]float64{{0, 0, 0}, {1, 0, 0}}
	opts := DefaultOptions()
	opts.SelfInteraction = true

	set := edgeSet(t, build(t, BackendDirect, pos, 1.5, opts))

	assert.Len(t, set, 4)
	assert.True(t, set[edge{i: 0, j: 0}])
	assert.True(t, set[edge{i: 1, j: 1}])
}

func TestPeriodicSelfImages(t *testing.T) {
	cell := geom.Cell{{2, 0, 0}, {0, 2, 0}, {0, 0, 2}}
	pos := [][3]float64{{1, 1, 1}}
	opts := DefaultOptions()
	opts.Cell = &cell
	opts.PBC = geom.Uniform(true)

	for _, backend := range allBackends {
		set := edgeSet(t, build(t, backend, pos, 2.5, opts))

		// Nearest images sit one lattice vector away (distance 2);
		// face diagonals at 2.83 are out of range.
		assert.Len(t, set, 6, "backend %s", backend)
		for ed := range set {
			assert.Equal(t, int64(0), ed.i)
			assert.Equal(t, int64(0), ed.j)
			assert.NotEqual(t, [3]int{}, ed.shift, "trivial self edge leaked through")
		}
	}
}

// With strict self-interaction off, even periodic self images are
// suppressed, so an isolated periodic atom has no edges at all.
func TestStrictOffSuppressesSelfImages(t *testing.T) {
	cell := geom.Cell{{2, 0, 0}, {0, 2, 0}, {0, 0, 2}}
	pos := [][3]float64{{1, 1, 1}}
	opts := Options{
		Cell:   &cell,
		PBC:    geom.Uniform(true),
		Config: &Config{Backend: BackendDirect, ErrorOnNoEdges: true},
	}

	_, err := Build(pos, 2.5, opts)
	require.Error(t, err)

	opts.Config = &Config{Backend: BackendDirect, ErrorOnNoEdges: false}
	g, err := Build(pos, 2.5, opts)
	require.NoError(t, err)
	assert.Zero(t, g.NumEdges())
}

// Trivial self edges and periodic-image self edges are independent
// policies: with strict off but self-interaction on, only the
// zero-shift self edge of each atom survives.
func TestSelfWithoutStrictKeepsOnlyTrivialEdges(t *testing.T) {
	cell := geom.Cell{{2, 0, 0}, {0, 2, 0}, {0, 0, 2}}
	pos := [][3]float64{{1, 1, 1}}
	opts := Options{
		Cell:            &cell,
		PBC:             geom.Uniform(true),
		SelfInteraction: true,
	}

	set := edgeSet(t, build(t, BackendDirect, pos, 2.5, opts))

	assert.Len(t, set, 1)
	assert.True(t, set[edge{i: 0, j: 0}])
}

func TestEmptyGraphShapes(t *testing.T) {
	pos := [][3]float64{{0, 0, 0}}
	opts := DefaultOptions()
	opts.Config = &Config{Backend: BackendDirect, ErrorOnNoEdges: false}

	g, err := Build(pos, 1.0, opts)
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{2, 0}, g.EdgeIndex.Shape())
	assert.Equal(t, tensor.Shape{0, 3}, g.EdgeShift.Shape())
	assert.Equal(t, tensor.Shape{3, 3}, g.Cell.Shape())
}

func TestMixedPBC(t *testing.T) {
	cell := geom.Cell{{2, 0, 0}, {0, 2, 0}, {0, 0, 2}}
	pos := [][3]float64{{0.1, 1, 1}, {1.9, 1, 1}}
	opts := DefaultOptions()
	opts.Cell = &cell
	opts.PBC = geom.PBC{true, false, false}

	for _, backend := range []string{BackendDirect, BackendCellList} {
		set := edgeSet(t, build(t, backend, pos, 0.5, opts))

		// The atoms only touch across the periodic x boundary.
		assert.Len(t, set, 2, "backend %s", backend)
		assert.True(t, set[edge{i: 0, j: 1, shift: [3]int{-1, 0, 0}}])
		assert.True(t, set[edge{i: 1, j: 0, shift: [3]int{1, 0, 0}}])
	}
}

func TestKDTreeRejectsMixedPBC(t *testing.T) {
	cell := geom.Cell{{2, 0, 0}, {0, 2, 0}, {0, 0, 2}}
	pos := [][3]float64{{0.1, 1, 1}, {1.9, 1, 1}}
	opts := DefaultOptions()
	opts.Cell = &cell
	opts.PBC = geom.PBC{true, false, false}
	opts.Config = testConfig(BackendKDTree)

	_, err := Build(pos, 0.5, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), BackendKDTree)
	assert.Contains(t, err.Error(), BackendDirect)
}

func TestGatedBackendsRejectSelfInteractionFlags(t *testing.T) {
	pos := [][3]float64{{0, 0, 0}, {1, 0, 0}}

	for _, backend := range []string{BackendCellList, BackendKDTree} {
		opts := DefaultOptions()
		opts.SelfInteraction = true
		opts.Config = testConfig(backend)
		_, err := Build(pos, 1.5, opts)
		assert.Error(t, err, "backend %s accepted SelfInteraction", backend)

		opts = Options{Config: testConfig(backend)} // strict off
		_, err = Build(pos, 1.5, opts)
		assert.Error(t, err, "backend %s accepted strict=false", backend)
	}
}

func TestInvalidCutoff(t *testing.T) {
	pos := [][3]float64{{0, 0, 0}}
	for _, cutoff := range []float64{0, -1, math.Inf(1), math.NaN()} {
		_, err := Build(pos, cutoff, DefaultOptions())
		assert.Error(t, err, "cutoff %v accepted", cutoff)
	}
}

func TestPositionInputForms(t *testing.T) {
	flat := []float64{0, 0, 0, 1, 0, 0}
	rows := [][3]float64{{0, 0, 0}, {1, 0, 0}}

	gFlat := build(t, BackendDirect, flat, 1.5, DefaultOptions())
	gRows := build(t, BackendDirect, rows, 1.5, DefaultOptions())
	assert.Equal(t, edgeSet(t, gFlat), edgeSet(t, gRows))

	_, err := Build([]float64{1, 2}, 1.5, DefaultOptions())
	assert.Error(t, err)
	_, err = Build("positions", 1.5, DefaultOptions())
	assert.Error(t, err)
}

func TestRawTensorInputKeepsDTypeAndDevice(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(raw.AsFloat32(), []float32{0, 0, 0, 1, 0, 0})
	placed := raw.ToDevice(tensor.CUDA)

	g := build(t, BackendDirect, placed, 1.5, DefaultOptions())

	assert.Equal(t, tensor.CUDA, g.EdgeIndex.Device())
	assert.Equal(t, tensor.CUDA, g.EdgeShift.Device())
	assert.Equal(t, tensor.Int64, g.EdgeIndex.DType())
	assert.Equal(t, tensor.Float32, g.EdgeShift.DType())
	assert.Equal(t, tensor.Float32, g.Cell.DType())
	assert.Equal(t, 2, g.NumEdges())
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvBackend, "kdtree")
	t.Setenv(EnvErrorOnNoEdges, "false")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, BackendKDTree, cfg.Backend)
	assert.False(t, cfg.ErrorOnNoEdges)
}

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv(EnvBackend, "")
	t.Setenv(EnvErrorOnNoEdges, "")
	// Empty values are set but invalid; unset behavior is covered by
	// the zero-value default below.
	_, err := ConfigFromEnv()
	assert.Error(t, err)
}

func TestConfigFromEnvRejectsUnknownBackend(t *testing.T) {
	t.Setenv(EnvBackend, "octree")
	_, err := ConfigFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "octree")

	t.Setenv(EnvBackend, "direct")
	t.Setenv(EnvErrorOnNoEdges, "yes")
	_, err = ConfigFromEnv()
	assert.Error(t, err)
}

func TestOptionsBackendOverride(t *testing.T) {
	pos := [][3]float64{{0, 0, 0}, {1, 0, 0}}
	opts := DefaultOptions()
	opts.Config = testConfig(BackendDirect)
	opts.Backend = "bogus"

	_, err := Build(pos, 1.5, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

// Shift magnitudes must grow with the cutoff: a cutoff spanning two
// cells reaches second-order images.
func TestLargeCutoffReachesFarImages(t *testing.T) {
	cell := geom.Cell{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	pos := [][3]float64{{0.5, 0.5, 0.5}}
	opts := DefaultOptions()
	opts.Cell = &cell
	opts.PBC = geom.Uniform(true)

	for _, backend := range allBackends {
		set := edgeSet(t, build(t, backend, pos, 2.1, opts))

		found := false
		for ed := range set {
			if ed.shift[0] == 2 || ed.shift[1] == 2 || ed.shift[2] == 2 {
				found = true
				break
			}
		}
		assert.True(t, found, "backend %s missed second-order images", backend)
		// All images within radius 2.1 of a unit cube lattice:
		// |S| ∈ {1, √2, √3, 2} qualify, |S| = √5 does not.
		assert.Len(t, set, 6+12+8+6, "backend %s", backend)
	}
}
