// Package neighbor constructs directed neighbor lists for atomic
// systems under periodic boundary conditions.
//
// Build takes atomic positions, an interaction cutoff and an optional
// lattice, and returns every ordered pair (i, j, S) whose displacement
// pos[j] - pos[i] + S·cell is shorter than the cutoff, where S is an
// integer periodic-image shift. The list is full: both directions of
// every pair appear as separate edges.
//
// Three interchangeable search backends produce the same edge set (up
// to ordering); the process-wide choice comes from LATTICE_NL. The
// search itself always runs on the host and emits only integer
// topology and constant geometry, so it never breaks gradient flow
// from downstream edge vectors back to the positions.
package neighbor

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/lattice-ml/lattice/internal/geom"
	"github.com/lattice-ml/lattice/internal/tensor"
)

// Options controls a single neighbor-list construction.
type Options struct {
	// Cell holds the lattice vectors as rows. Nil or zero rows are
	// completed to unit vectors before use.
	Cell *geom.Cell
	// PBC flags each cell axis as periodic.
	PBC geom.PBC
	// SelfInteraction keeps the trivial zero-shift self edge (i, i, 0)
	// of every atom. Requires a backend that can represent it.
	SelfInteraction bool
	// StrictSelfInteraction keeps periodic-image self edges (i, i, S)
	// with nonzero S. With it off they are always suppressed.
	StrictSelfInteraction bool
	// Backend overrides the configured search backend for this call.
	Backend string
	// Config overrides the process-wide configuration, mainly so tests
	// do not depend on the environment.
	Config *Config
}

// DefaultOptions returns the standard construction options: strict
// self-interaction handling with trivial self edges filtered out.
func DefaultOptions() Options {
	return Options{StrictSelfInteraction: true}
}

// Graph is a constructed neighbor list. All tensors are placed on the
// device the positions came from, and the float tensors carry the
// positions' dtype.
type Graph struct {
	// EdgeIndex is an Int64 tensor of shape [2, E]; row 0 holds edge
	// sources, row 1 edge targets.
	EdgeIndex *tensor.RawTensor
	// EdgeShift is a float tensor of shape [E, 3] holding the integer
	// periodic-image shift of each edge.
	EdgeShift *tensor.RawTensor
	// Cell is the completed lattice as a float tensor of shape [3, 3].
	Cell *tensor.RawTensor
}

// NumEdges returns the number of directed edges in the graph.
func (g *Graph) NumEdges() int {
	return g.EdgeIndex.Shape()[1]
}

// Build constructs the neighbor list for one system.
//
// Positions may be a *tensor.RawTensor of shape [N, 3] (float32 or
// float64, any device), a [][3]float64 or a flat []float64 of length
// 3N. Plain slices are treated as float64 positions on the CPU.
func Build(pos any, cutoff float64, opts Options) (*Graph, error) {
	if !(cutoff > 0) || math.IsInf(cutoff, 1) {
		return nil, fmt.Errorf("cutoff must be positive and finite, got %v", cutoff)
	}

	coords, outDevice, outDType, err := normalizePositions(pos)
	if err != nil {
		return nil, err
	}

	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, err
	}
	s, err := newSearcher(cfg.Backend)
	if err != nil {
		return nil, err
	}
	if err := gate(s, opts); err != nil {
		return nil, err
	}

	var cell geom.Cell
	if opts.Cell != nil {
		cell = *opts.Cell
	}
	cell = cell.Complete()

	wrapped, wraps, err := wrapPositions(coords, cell, opts.PBC)
	if err != nil {
		return nil, err
	}

	res, err := s.search(searchRequest{
		positions:   wrapped,
		cell:        cell,
		pbc:         opts.PBC,
		cutoff:      cutoff,
		includeSelf: opts.StrictSelfInteraction || opts.SelfInteraction,
	})
	if err != nil {
		return nil, fmt.Errorf("%s neighbor search: %w", s.name(), err)
	}

	// Shifts refer to the wrapped coordinates; translate them back so
	// pos[j] - pos[i] + S·cell holds for the caller's positions.
	for e := range res.shifts {
		wi := wraps[res.first[e]]
		wj := wraps[res.second[e]]
		for k := 0; k < 3; k++ {
			res.shifts[e][k] += wi[k] - wj[k]
		}
	}

	res = filterSelfEdges(res, opts.SelfInteraction, opts.StrictSelfInteraction)
	if len(res.first) == 0 && cfg.ErrorOnNoEdges {
		return nil, fmt.Errorf("no neighbors found within cutoff %v: every atom is isolated; "+
			"increase the cutoff or set %s=false to allow edgeless graphs", cutoff, EnvErrorOnNoEdges)
	}

	return assemble(res, cell, outDevice, outDType)
}

func resolveConfig(opts Options) (Config, error) {
	var cfg Config
	var err error
	if opts.Config != nil {
		cfg = *opts.Config
	} else if cfg, err = DefaultConfig(); err != nil {
		return Config{}, err
	}
	if opts.Backend != "" {
		cfg.Backend = opts.Backend
	}
	if err := validateBackend(cfg.Backend); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// gate rejects option combinations a searcher cannot represent, so a
// misconfigured backend fails loudly instead of returning an edge set
// with different semantics.
func gate(s searcher, opts Options) error {
	caps := s.capabilities()
	if opts.PBC.Mixed() && !caps.mixedPBC {
		return fmt.Errorf("backend %q does not support mixed periodic boundaries (pbc=%s); use %q",
			s.name(), opts.PBC, BackendDirect)
	}
	if !caps.selfInteraction && (opts.SelfInteraction || !opts.StrictSelfInteraction) {
		return fmt.Errorf("backend %q requires StrictSelfInteraction=true and SelfInteraction=false "+
			"(got strict=%v, self=%v); use %q for other combinations",
			s.name(), opts.StrictSelfInteraction, opts.SelfInteraction, BackendDirect)
	}
	return nil
}

// normalizePositions converts the accepted position forms into host
// coordinates, remembering device and dtype so the resulting graph can
// be placed back where the positions live.
func normalizePositions(pos any) ([][3]float64, tensor.Device, tensor.DataType, error) {
	switch p := pos.(type) {
	case *tensor.RawTensor:
		return positionsFromRaw(p)

	case [][3]float64:
		if len(p) == 0 {
			return nil, 0, 0, fmt.Errorf("positions are empty")
		}
		return p, tensor.CPU, tensor.DefaultFloat, nil

	case []float64:
		if len(p) == 0 || len(p)%3 != 0 {
			return nil, 0, 0, fmt.Errorf("flat positions must have length 3N > 0, got %d", len(p))
		}
		coords := make([][3]float64, len(p)/3)
		for i := range coords {
			coords[i] = [3]float64{p[3*i], p[3*i+1], p[3*i+2]}
		}
		return coords, tensor.CPU, tensor.DefaultFloat, nil

	default:
		return nil, 0, 0, fmt.Errorf("unsupported position type %T", pos)
	}
}

func positionsFromRaw(p *tensor.RawTensor) ([][3]float64, tensor.Device, tensor.DataType, error) {
	shape := p.Shape()
	if len(shape) != 2 || shape[1] != 3 || shape[0] == 0 {
		return nil, 0, 0, fmt.Errorf("positions must have shape [N, 3] with N > 0, got %v", shape)
	}
	if p.Device() != tensor.CPU {
		slog.Warn("neighbor search requires a host round trip; pass CPU positions to avoid the copy",
			"device", p.Device().String())
		p = p.ToDevice(tensor.CPU)
	}

	coords := make([][3]float64, shape[0])
	switch p.DType() {
	case tensor.Float64:
		data := p.AsFloat64()
		for i := range coords {
			coords[i] = [3]float64{data[3*i], data[3*i+1], data[3*i+2]}
		}
	case tensor.Float32:
		data := p.AsFloat32()
		for i := range coords {
			coords[i] = [3]float64{float64(data[3*i]), float64(data[3*i+1]), float64(data[3*i+2])}
		}
	default:
		return nil, 0, 0, fmt.Errorf("positions must be float32 or float64, got %s", p.DType())
	}
	return coords, p.Device(), p.DType(), nil
}

// wrapPositions maps atoms into the unit cell along periodic axes and
// records the integer wrap counts, so searchers can rely on the cell
// widths to bound image enumeration even when input positions lie far
// outside the cell. Aperiodic axes are left untouched.
func wrapPositions(pos [][3]float64, cell geom.Cell, pbc geom.PBC) ([][3]float64, [][3]int32, error) {
	wraps := make([][3]int32, len(pos))
	if !pbc.Any() {
		return pos, wraps, nil
	}

	scaled, err := cell.ScaledPositions(pos)
	if err != nil {
		return nil, nil, fmt.Errorf("cell is not invertible: %w", err)
	}
	wrapped := make([][3]float64, len(pos))
	for i, s := range scaled {
		for k := 0; k < 3; k++ {
			if pbc[k] {
				w := math.Floor(s[k])
				wraps[i][k] = int32(w)
				s[k] -= w
			}
		}
		for j := 0; j < 3; j++ {
			wrapped[i][j] = s[0]*cell[0][j] + s[1]*cell[1][j] + s[2]*cell[2][j]
		}
	}
	return wrapped, wraps, nil
}

// filterSelfEdges applies the two self-edge policies: keepTrivial
// governs zero-shift self edges, keepImage the periodic-image ones.
func filterSelfEdges(res searchResult, keepTrivial, keepImage bool) searchResult {
	if keepTrivial && keepImage {
		return res
	}
	var out searchResult
	for e := range res.first {
		if res.first[e] == res.second[e] {
			trivial := res.shifts[e] == [3]int32{}
			if trivial && !keepTrivial {
				continue
			}
			if !trivial && !keepImage {
				continue
			}
		}
		out.append(int(res.first[e]), int(res.second[e]), res.shifts[e])
	}
	return out
}

func assemble(res searchResult, cell geom.Cell, device tensor.Device, dtype tensor.DataType) (*Graph, error) {
	nEdges := len(res.first)

	edgeIndex, err := tensor.NewRaw(tensor.Shape{2, nEdges}, tensor.Int64, tensor.CPU)
	if err != nil {
		return nil, err
	}
	idx := edgeIndex.AsInt64()
	copy(idx[:nEdges], res.first)
	copy(idx[nEdges:], res.second)

	edgeShift, err := tensor.NewRaw(tensor.Shape{nEdges, 3}, dtype, tensor.CPU)
	if err != nil {
		return nil, err
	}
	cellTensor, err := tensor.NewRaw(tensor.Shape{3, 3}, dtype, tensor.CPU)
	if err != nil {
		return nil, err
	}

	switch dtype {
	case tensor.Float64:
		shifts := edgeShift.AsFloat64()
		for e, s := range res.shifts {
			shifts[3*e] = float64(s[0])
			shifts[3*e+1] = float64(s[1])
			shifts[3*e+2] = float64(s[2])
		}
		copy(cellTensor.AsFloat64(), cell.Flat())
	case tensor.Float32:
		shifts := edgeShift.AsFloat32()
		for e, s := range res.shifts {
			shifts[3*e] = float32(s[0])
			shifts[3*e+1] = float32(s[1])
			shifts[3*e+2] = float32(s[2])
		}
		flat := cell.Flat()
		dst := cellTensor.AsFloat32()
		for i, v := range flat {
			dst[i] = float32(v)
		}
	default:
		return nil, fmt.Errorf("unsupported output dtype %s", dtype)
	}

	return &Graph{
		EdgeIndex: edgeIndex.ToDevice(device),
		EdgeShift: edgeShift.ToDevice(device),
		Cell:      cellTensor.ToDevice(device),
	}, nil
}
