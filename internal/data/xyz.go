package data

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/lattice-ml/lattice/internal/geom"
	"github.com/lattice-ml/lattice/internal/neighbor"
	"github.com/lattice-ml/lattice/internal/tensor"
)

// Frame is one structure read from or written to an extended-XYZ file.
// Energy and Forces are optional reference labels; nil means absent.
type Frame struct {
	Numbers   []int64
	Positions [][3]float64
	Cell      geom.Cell
	PBC       geom.PBC
	Energy    *float64
	Forces    [][3]float64
}

// AtomicData builds the neighbor graph for the frame. The frame's cell
// and periodic flags take precedence over those in opts.
func (f Frame) AtomicData(cutoff float64, opts neighbor.Options) (*AtomicData, error) {
	flat := make([]float64, 3*len(f.Positions))
	for i, p := range f.Positions {
		flat[3*i], flat[3*i+1], flat[3*i+2] = p[0], p[1], p[2]
	}
	positions, err := tensor.NewRaw(tensor.Shape{len(f.Positions), 3}, tensor.Float64, tensor.CPU)
	if err != nil {
		return nil, err
	}
	copy(positions.AsFloat64(), flat)

	cell := f.Cell
	opts.Cell = &cell
	opts.PBC = f.PBC
	return New(positions, f.Numbers, cutoff, opts)
}

// ReadXYZ reads all frames of an extended-XYZ file. Files ending in
// ".gz" are decompressed transparently.
func ReadXYZ(path string) ([]Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	frames, err := readFrames(bufio.NewScanner(r))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return frames, nil
}

// WriteXYZ writes frames as extended XYZ. Files ending in ".gz" are
// compressed transparently.
func WriteXYZ(path string, frames []Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}

	bw := bufio.NewWriter(w)
	for i := range frames {
		if err := writeFrame(bw, frames[i]); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return err
		}
	}
	return f.Close()
}

func readFrames(sc *bufio.Scanner) ([]Frame, error) {
	var frames []Frame
	for sc.Scan() {
		countLine := strings.TrimSpace(sc.Text())
		if countLine == "" {
			continue
		}
		n, err := strconv.Atoi(countLine)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("frame %d: bad atom count %q", len(frames), countLine)
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("frame %d: missing comment line", len(frames))
		}
		frame, cols, err := parseComment(sc.Text())
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", len(frames), err)
		}

		frame.Numbers = make([]int64, n)
		frame.Positions = make([][3]float64, n)
		if cols.forces >= 0 {
			frame.Forces = make([][3]float64, n)
		}
		for i := 0; i < n; i++ {
			if !sc.Scan() {
				return nil, fmt.Errorf("frame %d: truncated after %d of %d atoms", len(frames), i, n)
			}
			if err := parseAtomLine(sc.Text(), cols, &frame, i); err != nil {
				return nil, fmt.Errorf("frame %d atom %d: %w", len(frames), i, err)
			}
		}
		frames = append(frames, frame)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames found")
	}
	return frames, nil
}

// columns holds the starting field index of each recognized per-atom
// property; -1 means the column is absent.
type columns struct {
	species int
	pos     int
	forces  int
	total   int
}

var defaultColumns = columns{species: 0, pos: 1, forces: -1, total: 4}

// parseProperties maps an extended-XYZ Properties value such as
// "species:S:1:pos:R:3:forces:R:3" to column offsets. Unrecognized
// properties keep their column width so later ones stay aligned.
func parseProperties(value string) (columns, error) {
	cols := columns{species: -1, pos: -1, forces: -1}
	fields := strings.Split(value, ":")
	if len(fields)%3 != 0 {
		return cols, fmt.Errorf("malformed Properties %q", value)
	}
	offset := 0
	for i := 0; i < len(fields); i += 3 {
		name := fields[i]
		width, err := strconv.Atoi(fields[i+2])
		if err != nil || width <= 0 {
			return cols, fmt.Errorf("bad column count in Properties %q", value)
		}
		switch {
		case name == "species" && width == 1:
			cols.species = offset
		case name == "pos" && width == 3:
			cols.pos = offset
		case name == "forces" && width == 3:
			cols.forces = offset
		default:
			slog.Warn("skipping unrecognized extended-XYZ property", "name", name, "columns", width)
		}
		offset += width
	}
	if cols.species < 0 || cols.pos < 0 {
		return cols, fmt.Errorf("Properties %q lacks species or pos", value)
	}
	cols.total = offset
	return cols, nil
}

// parseComment extracts Lattice, pbc, energy and the Properties column
// layout from the extended-XYZ comment line. Unknown keys are skipped.
func parseComment(line string) (Frame, columns, error) {
	var frame Frame
	cols := defaultColumns
	for _, kv := range splitKeyValues(line) {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(key) {
		case "lattice":
			fields := strings.Fields(value)
			if len(fields) != 9 {
				return Frame{}, cols, fmt.Errorf("lattice needs 9 values, got %d", len(fields))
			}
			flat := make([]float64, 9)
			for i, f := range fields {
				v, err := strconv.ParseFloat(f, 64)
				if err != nil {
					return Frame{}, cols, fmt.Errorf("bad lattice value %q", f)
				}
				flat[i] = v
			}
			frame.Cell = geom.NewCell(flat)
		case "pbc":
			fields := strings.Fields(value)
			if len(fields) != 3 {
				return Frame{}, cols, fmt.Errorf("pbc needs 3 flags, got %q", value)
			}
			for i, f := range fields {
				frame.PBC[i] = f == "T" || strings.EqualFold(f, "true")
			}
		case "energy":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return Frame{}, cols, fmt.Errorf("bad energy %q", value)
			}
			frame.Energy = &v
		case "properties":
			var err error
			if cols, err = parseProperties(value); err != nil {
				return Frame{}, cols, err
			}
		}
	}
	return frame, cols, nil
}

func parseAtomLine(line string, cols columns, frame *Frame, i int) error {
	fields := strings.Fields(line)
	if len(fields) < cols.total {
		return fmt.Errorf("want %d columns, got %q", cols.total, line)
	}
	z, err := NumberForSymbol(fields[cols.species])
	if err != nil {
		return err
	}
	frame.Numbers[i] = z
	for k := 0; k < 3; k++ {
		v, err := strconv.ParseFloat(fields[cols.pos+k], 64)
		if err != nil {
			return fmt.Errorf("bad coordinate %q", fields[cols.pos+k])
		}
		frame.Positions[i][k] = v
	}
	if cols.forces >= 0 {
		for k := 0; k < 3; k++ {
			v, err := strconv.ParseFloat(fields[cols.forces+k], 64)
			if err != nil {
				return fmt.Errorf("bad force %q", fields[cols.forces+k])
			}
			frame.Forces[i][k] = v
		}
	}
	return nil
}

// splitKeyValues splits a comment line on whitespace, keeping quoted
// values (with their embedded spaces) attached to their keys. Quotes
// are stripped.
func splitKeyValues(line string) []string {
	var out []string
	var cur strings.Builder
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ' ' && !inQuotes:
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func writeFrame(w *bufio.Writer, f Frame) error {
	if len(f.Numbers) != len(f.Positions) {
		return fmt.Errorf("%d numbers but %d positions", len(f.Numbers), len(f.Positions))
	}
	if f.Forces != nil && len(f.Forces) != len(f.Positions) {
		return fmt.Errorf("%d forces but %d positions", len(f.Forces), len(f.Positions))
	}
	fmt.Fprintf(w, "%d\n", len(f.Positions))

	flat := f.Cell.Flat()
	pbc := make([]string, 3)
	for i, b := range f.PBC {
		pbc[i] = "F"
		if b {
			pbc[i] = "T"
		}
	}
	props := "species:S:1:pos:R:3"
	if f.Forces != nil {
		props += ":forces:R:3"
	}
	fmt.Fprintf(w, "Lattice=\"%.8g %.8g %.8g %.8g %.8g %.8g %.8g %.8g %.8g\" Properties=%s pbc=\"%s\"",
		flat[0], flat[1], flat[2], flat[3], flat[4], flat[5], flat[6], flat[7], flat[8],
		props, strings.Join(pbc, " "))
	if f.Energy != nil {
		fmt.Fprintf(w, " energy=%.10g", *f.Energy)
	}
	fmt.Fprintln(w)

	for i, p := range f.Positions {
		sym, err := SymbolForNumber(f.Numbers[i])
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%-3s %16.8f %16.8f %16.8f", sym, p[0], p[1], p[2]); err != nil {
			return err
		}
		if f.Forces != nil {
			fmt.Fprintf(w, " %16.8f %16.8f %16.8f", f.Forces[i][0], f.Forces[i][1], f.Forces[i][2])
		}
		fmt.Fprintln(w)
	}
	return nil
}
