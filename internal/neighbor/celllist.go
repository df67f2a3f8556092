package neighbor

import "math"

// cellListSearcher materializes the periodic images of every atom and
// bins them into a Cartesian grid with bins at least one cutoff wide,
// so all neighbors of an atom sit in the 27 bins around its own.
// Scales linearly with atom count at fixed density. It always excludes
// trivial self edges and always keeps periodic self images, so the
// gate restricts it to strict=true, self=false.
type cellListSearcher struct{}

func (cellListSearcher) name() string { return BackendCellList }

func (cellListSearcher) capabilities() capabilities {
	return capabilities{mixedPBC: true, selfInteraction: false}
}

func (cellListSearcher) search(req searchRequest) (searchResult, error) {
	n, err := imageRanges(req.cell, req.pbc, req.cutoff)
	if err != nil {
		return searchResult{}, err
	}

	// The grid only needs to cover ghosts within one cutoff of a real
	// atom; anything further cannot form an edge.
	lo, hi := bounds(req.positions)
	for k := 0; k < 3; k++ {
		lo[k] -= req.cutoff
		hi[k] += req.cutoff
	}

	grid := newBinGrid(lo, hi, req.cutoff)
	for _, g := range replicate(req.positions, req.cell, n) {
		grid.insert(g)
	}

	var res searchResult
	r2 := req.cutoff * req.cutoff
	for i, pi := range req.positions {
		grid.eachNearby(pi, func(g ghost) {
			if g.index == i && g.shift == [3]int32{} {
				return
			}
			if sqDist(pi, g.pos) < r2 {
				res.append(i, g.index, g.shift)
			}
		})
	}
	return res, nil
}

func bounds(pos [][3]float64) (lo, hi [3]float64) {
	lo = pos[0]
	hi = pos[0]
	for _, p := range pos[1:] {
		for k := 0; k < 3; k++ {
			lo[k] = math.Min(lo[k], p[k])
			hi[k] = math.Max(hi[k], p[k])
		}
	}
	return lo, hi
}

// binGrid is a dense Cartesian bin grid over an axis-aligned box. Bin
// widths are at least the construction cutoff, so a point's neighbors
// within that cutoff all lie in the 3x3x3 block around its bin.
type binGrid struct {
	lo   [3]float64
	inv  [3]float64 // bins per unit length
	dims [3]int
	bins [][]ghost
}

func newBinGrid(lo, hi [3]float64, width float64) *binGrid {
	g := &binGrid{lo: lo}
	total := 1
	for k := 0; k < 3; k++ {
		extent := hi[k] - lo[k]
		g.dims[k] = 1
		if extent > width {
			g.dims[k] = int(extent / width)
		}
		if extent > 0 {
			g.inv[k] = float64(g.dims[k]) / extent
		}
		total *= g.dims[k]
	}
	g.bins = make([][]ghost, total)
	return g
}

// binIndex clamps out-of-box points into the boundary bins; callers
// filter by true distance afterwards, so over-inclusion is harmless.
func (g *binGrid) binIndex(p [3]float64) (b [3]int) {
	for k := 0; k < 3; k++ {
		i := int((p[k] - g.lo[k]) * g.inv[k])
		if i < 0 {
			i = 0
		}
		if i >= g.dims[k] {
			i = g.dims[k] - 1
		}
		b[k] = i
	}
	return b
}

func (g *binGrid) flat(b [3]int) int {
	return (b[0]*g.dims[1]+b[1])*g.dims[2] + b[2]
}

func (g *binGrid) insert(gh ghost) {
	i := g.flat(g.binIndex(gh.pos))
	g.bins[i] = append(g.bins[i], gh)
}

// eachNearby visits every ghost in the 3x3x3 bin block around p.
func (g *binGrid) eachNearby(p [3]float64, f func(ghost)) {
	c := g.binIndex(p)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				b := [3]int{c[0] + dx, c[1] + dy, c[2] + dz}
				if b[0] < 0 || b[0] >= g.dims[0] ||
					b[1] < 0 || b[1] >= g.dims[1] ||
					b[2] < 0 || b[2] >= g.dims[2] {
					continue
				}
				for _, gh := range g.bins[g.flat(b)] {
					f(gh)
				}
			}
		}
	}
}
