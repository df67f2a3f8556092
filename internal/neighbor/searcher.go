package neighbor

import (
	"fmt"
	"math"

	"github.com/lattice-ml/lattice/internal/geom"
)

// capabilities describes what a searcher implementation can represent.
// The gate in Build checks requested options against these before
// dispatching, so a backend never silently returns a wrong edge set.
type capabilities struct {
	// mixedPBC: the searcher handles per-axis periodic flags that
	// disagree. Without it, only TTT and FFF are accepted.
	mixedPBC bool
	// selfInteraction: the searcher honors the self-interaction flags
	// natively. Without it, only the strict=true, self=false
	// combination is accepted.
	selfInteraction bool
}

// searchRequest carries the canonicalized inputs every searcher
// receives: positions wrapped into the completed cell along periodic
// axes, so image counts derived from the cell widths are valid bounds.
type searchRequest struct {
	positions [][3]float64
	cell      geom.Cell
	pbc       geom.PBC
	cutoff    float64
	// includeSelf includes i==j pairs in the raw candidate set,
	// trivial zero-shift self edges among them. Only the direct
	// searcher honors it; the gated searchers always emit image
	// self edges and never the trivial ones.
	includeSelf bool
}

// searchResult is a raw directed edge list. Shifts refer to the
// wrapped positions handed to the searcher; Build translates them back
// to the caller's original coordinates.
type searchResult struct {
	first  []int64
	second []int64
	shifts [][3]int32
}

func (r *searchResult) append(i, j int, shift [3]int32) {
	r.first = append(r.first, int64(i))
	r.second = append(r.second, int64(j))
	r.shifts = append(r.shifts, shift)
}

type searcher interface {
	name() string
	capabilities() capabilities
	search(req searchRequest) (searchResult, error)
}

func newSearcher(name string) (searcher, error) {
	switch name {
	case BackendDirect:
		return directSearcher{}, nil
	case BackendCellList:
		return cellListSearcher{}, nil
	case BackendKDTree:
		return kdtreeSearcher{}, nil
	default:
		return nil, validateBackend(name)
	}
}

// imageRanges returns, per axis, the largest periodic image index a
// cutoff sphere around any wrapped atom can reach: ceil(cutoff / h_k)
// for periodic axes, zero otherwise. h_k is the reduced cell width
// along axis k.
func imageRanges(cell geom.Cell, pbc geom.PBC, cutoff float64) ([3]int, error) {
	var n [3]int
	if !pbc.Any() {
		return n, nil
	}
	h := cell.Heights()
	for k := 0; k < 3; k++ {
		if !pbc[k] {
			continue
		}
		if h[k] <= 0 {
			return n, fmt.Errorf("cell is degenerate along periodic axis %d (pbc=%s)", k, pbc)
		}
		n[k] = int(math.Ceil(cutoff / h[k]))
	}
	return n, nil
}

// eachShift calls f with every integer shift in the box
// [-n0,n0]x[-n1,n1]x[-n2,n2].
func eachShift(n [3]int, f func(shift [3]int32)) {
	for sa := -n[0]; sa <= n[0]; sa++ {
		for sb := -n[1]; sb <= n[1]; sb++ {
			for sc := -n[2]; sc <= n[2]; sc++ {
				f([3]int32{int32(sa), int32(sb), int32(sc)})
			}
		}
	}
}

// ghost is one periodic image of a real atom, used by the searchers
// that materialize images instead of enumerating shifts per pair.
type ghost struct {
	index int
	shift [3]int32
	pos   [3]float64
}

// replicate materializes every periodic image of the input atoms within
// the given shift ranges, the zero-shift originals included.
func replicate(pos [][3]float64, cell geom.Cell, n [3]int) []ghost {
	total := len(pos) * (2*n[0] + 1) * (2*n[1] + 1) * (2*n[2] + 1)
	ghosts := make([]ghost, 0, total)
	eachShift(n, func(shift [3]int32) {
		d := cell.CartesianShift(shift)
		for i, p := range pos {
			ghosts = append(ghosts, ghost{
				index: i,
				shift: shift,
				pos:   [3]float64{p[0] + d[0], p[1] + d[1], p[2] + d[2]},
			})
		}
	})
	return ghosts
}

func sqDist(a, b [3]float64) float64 {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	dz := b[2] - a[2]
	return dx*dx + dy*dy + dz*dz
}
