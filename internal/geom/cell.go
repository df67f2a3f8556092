package geom

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Cell is a 3x3 lattice matrix; rows are the lattice vectors.
// The zero value describes a fully aperiodic (placeholder) cell.
type Cell [3][3]float64

// NewCell builds a Cell from a row-major flat slice of 9 values.
func NewCell(flat []float64) Cell {
	var c Cell
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			c[i][j] = flat[3*i+j]
		}
	}
	return c
}

// Flat returns the cell as a row-major flat slice of 9 values.
func (c Cell) Flat() []float64 {
	out := make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[3*i+j] = c[i][j]
		}
	}
	return out
}

// Det returns the determinant of the cell matrix (signed volume).
func (c Cell) Det() float64 {
	return mat.Det(mat.NewDense(3, 3, c.Flat()))
}

// Volume returns the unsigned cell volume.
func (c Cell) Volume() float64 {
	return math.Abs(c.Det())
}

// rowIsZero reports whether lattice vector i is identically zero.
func (c Cell) rowIsZero(i int) bool {
	return c[i][0] == 0 && c[i][1] == 0 && c[i][2] == 0
}

// Heights returns the three reduced cell widths: the perpendicular
// distance between the two cell faces spanned by the other two lattice
// vectors. These bound how many periodic repeats a cutoff sphere can
// reach along each axis. Axes of a degenerate cell report zero.
func (c Cell) Heights() [3]float64 {
	var h [3]float64
	vol := c.Volume()
	if vol == 0 {
		return h
	}
	for k := 0; k < 3; k++ {
		area := norm(cross(c[(k+1)%3], c[(k+2)%3]))
		if area > 0 {
			h[k] = vol / area
		}
	}
	return h
}

// Complete fills the zero rows of a possibly-degenerate cell with unit
// vectors so downstream geometric routines always receive a well-formed
// 3x3 matrix. Non-zero rows are kept; the completed rows are chosen
// perpendicular to them and to each other, keeping the cell
// right-handed. A fully zero cell completes to the identity.
func (c Cell) Complete() Cell {
	var missing []int
	for i := 0; i < 3; i++ {
		if c.rowIsZero(i) {
			missing = append(missing, i)
		}
	}

	switch len(missing) {
	case 0:
		return c

	case 1:
		// The remaining vector is the normalized cross product of the
		// other two, making the completed cell right-handed.
		i := missing[0]
		v := cross(c[(i+1)%3], c[(i+2)%3])
		n := norm(v)
		if n == 0 {
			// Collinear lattice vectors: fall back to any perpendicular.
			v = perpendicularTo(c[(i+1)%3])
			n = norm(v)
		}
		for j := 0; j < 3; j++ {
			c[i][j] = v[j] / n
		}
		return c

	case 2:
		// One real vector: complete with an orthonormal pair.
		present := 3 - missing[0] - missing[1]
		u := c[present]
		v := perpendicularTo(u)
		w := cross(u, v)
		nv, nw := norm(v), norm(w)
		for j := 0; j < 3; j++ {
			c[missing[0]][j] = v[j] / nv
			c[missing[1]][j] = w[j] / nw
		}
		if c.Det() < 0 {
			for j := 0; j < 3; j++ {
				c[missing[0]][j] = -c[missing[0]][j]
			}
		}
		return c

	default:
		return Cell{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	}
}

// perpendicularTo returns a vector perpendicular to u, built from the
// coordinate axis least aligned with u.
func perpendicularTo(u [3]float64) [3]float64 {
	axis := 0
	for k := 1; k < 3; k++ {
		if math.Abs(u[k]) < math.Abs(u[axis]) {
			axis = k
		}
	}
	var e [3]float64
	e[axis] = 1
	return cross(u, e)
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func norm(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// ScaledPositions maps Cartesian positions to fractional coordinates of
// the cell, solving p = s·C row-wise. The cell must be non-degenerate.
func (c Cell) ScaledPositions(pos [][3]float64) ([][3]float64, error) {
	var inv mat.Dense
	if err := inv.Inverse(mat.NewDense(3, 3, c.Flat())); err != nil {
		return nil, err
	}
	out := make([][3]float64, len(pos))
	for i, p := range pos {
		for j := 0; j < 3; j++ {
			out[i][j] = p[0]*inv.At(0, j) + p[1]*inv.At(1, j) + p[2]*inv.At(2, j)
		}
	}
	return out, nil
}

// CartesianShift returns the Cartesian displacement of an integer
// periodic-image shift: shift · C.
func (c Cell) CartesianShift(shift [3]int32) [3]float64 {
	var out [3]float64
	for j := 0; j < 3; j++ {
		out[j] = float64(shift[0])*c[0][j] + float64(shift[1])*c[1][j] + float64(shift[2])*c[2][j]
	}
	return out
}
