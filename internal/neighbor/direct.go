package neighbor

// directSearcher enumerates every ordered atom pair against every
// periodic image within reach of the cutoff. O(N² · images), but it is
// the reference edge set the other searchers are checked against, and
// the only one that supports mixed periodic flags and native
// self-interaction control.
type directSearcher struct{}

func (directSearcher) name() string { return BackendDirect }

func (directSearcher) capabilities() capabilities {
	return capabilities{mixedPBC: true, selfInteraction: true}
}

func (directSearcher) search(req searchRequest) (searchResult, error) {
	n, err := imageRanges(req.cell, req.pbc, req.cutoff)
	if err != nil {
		return searchResult{}, err
	}

	var res searchResult
	r2 := req.cutoff * req.cutoff
	eachShift(n, func(shift [3]int32) {
		d := req.cell.CartesianShift(shift)
		for i, pi := range req.positions {
			for j, pj := range req.positions {
				if i == j && !req.includeSelf {
					continue
				}
				shifted := [3]float64{pj[0] + d[0], pj[1] + d[1], pj[2] + d[2]}
				if sqDist(pi, shifted) < r2 {
					res.append(i, j, shift)
				}
			}
		}
	})
	return res, nil
}
