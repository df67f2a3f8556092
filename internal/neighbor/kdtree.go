package neighbor

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// kdtreeSearcher indexes the periodic images of every atom in a k-d
// tree and runs one fixed-radius query per real atom. Its query
// interface takes a single periodic flag, so mixed per-axis boundaries
// are rejected at the gate; it also has no way to return an atom's own
// zero-shift image, so trivial self-interaction is gated off too.
type kdtreeSearcher struct{}

func (kdtreeSearcher) name() string { return BackendKDTree }

func (kdtreeSearcher) capabilities() capabilities {
	return capabilities{mixedPBC: false, selfInteraction: false}
}

func (kdtreeSearcher) search(req searchRequest) (searchResult, error) {
	if req.pbc.Mixed() {
		return searchResult{}, fmt.Errorf("kdtree searcher cannot handle mixed periodic boundaries (pbc=%s)", req.pbc)
	}

	n, err := imageRanges(req.cell, req.pbc, req.cutoff)
	if err != nil {
		return searchResult{}, err
	}

	sites := make(imageSites, 0, len(req.positions))
	for _, g := range replicate(req.positions, req.cell, n) {
		sites = append(sites, imageSite{ghost: g})
	}
	tree := kdtree.New(sites, false)

	var res searchResult
	r2 := req.cutoff * req.cutoff
	for i, pi := range req.positions {
		keeper := kdtree.NewDistKeeper(r2)
		tree.NearestSet(keeper, imageSite{ghost: ghost{index: i, pos: pi}})
		for _, c := range keeper.Heap {
			if c.Comparable == nil {
				continue
			}
			g := c.Comparable.(imageSite).ghost
			if g.index == i && g.shift == [3]int32{} {
				continue
			}
			// The keeper bound is inclusive; the edge criterion is not.
			if c.Dist < r2 {
				res.append(i, g.index, g.shift)
			}
		}
	}
	return res, nil
}

// imageSite embeds a ghost as a kdtree.Comparable.
type imageSite struct {
	ghost
}

func (s imageSite) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(imageSite)
	return s.pos[d] - q.pos[d]
}

func (s imageSite) Dims() int { return 3 }

func (s imageSite) Distance(c kdtree.Comparable) float64 {
	return sqDist(s.pos, c.(imageSite).pos)
}

// imageSites implements kdtree.Interface for tree construction.
type imageSites []imageSite

func (s imageSites) Index(i int) kdtree.Comparable { return s[i] }
func (s imageSites) Len() int                      { return len(s) }
func (s imageSites) Slice(start, end int) kdtree.Interface {
	return s[start:end]
}
func (s imageSites) Pivot(d kdtree.Dim) int {
	return sitePlane{Dim: d, imageSites: s}.Pivot()
}

// sitePlane sorts imageSites along a dimension for pivot selection.
type sitePlane struct {
	kdtree.Dim
	imageSites
}

func (p sitePlane) Less(i, j int) bool {
	return p.imageSites[i].pos[p.Dim] < p.imageSites[j].pos[p.Dim]
}
func (p sitePlane) Pivot() int {
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}
func (p sitePlane) Slice(start, end int) kdtree.SortSlicer {
	p.imageSites = p.imageSites[start:end]
	return p
}
func (p sitePlane) Swap(i, j int) {
	p.imageSites[i], p.imageSites[j] = p.imageSites[j], p.imageSites[i]
}
