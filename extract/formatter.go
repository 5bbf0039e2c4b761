package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Kind selects how a rule turns its window into an array.
type Kind int

const (
	// KindVector reads one token, or a token slice, per line.
	KindVector Kind = iota
	// KindMatrix reassembles a symmetric square matrix printed in
	// repeating column blocks.
	KindMatrix
	// KindShielding collects the per-nucleus 3x3 shielding tensors
	// embedded in a chemical shift section.
	KindShielding
)

var (
	ErrMalformedMatrix = errors.New("cannot assemble matrix block")
	ErrUnknownKind     = errors.New("unrecognized formatter kind")
)

// Rule describes how one collected window becomes a numeric array. The
// zero value reads the first token of every line as a float. End is the
// exclusive token column of a slice; 0 takes the single token at Pos.
// Text keeps the Pos token as a string instead of parsing it. Unit, if
// nonzero, scales the finished array elementwise. Default, guarded by
// HasDefault, substitutes a one-element array when the section never
// appeared.
type Rule struct {
	Kind       Kind
	Pos        int
	End        int
	Text       bool
	SkipFirst  int
	Unit       float64
	Default    float64
	HasDefault bool
}

// Format turns a collected window into a value. A nil window means the
// start marker never appeared; it yields the configured default or a
// nil value. An empty window (after SkipFirst trimming) always yields a
// nil value. Format is pure: it never mutates the rule or the input.
func (r Rule) Format(lines []string) (*Value, error) {
	if lines == nil {
		if r.HasDefault {
			return &Value{Tensor: NewTensor([]int{1}, []float64{r.Default})}, nil
		}
		return nil, nil
	}
	lines = lines[min(r.SkipFirst, len(lines)):]
	if len(lines) == 0 {
		return nil, nil
	}
	var (
		v   *Value
		err error
	)
	switch r.Kind {
	case KindVector:
		v, err = r.vector(lines)
	case KindMatrix:
		v, err = r.matrix(lines)
	case KindShielding:
		v, err = r.shielding(lines)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, r.Kind)
	}
	if err != nil || v == nil {
		return nil, err
	}
	if r.Unit != 0 && v.Tensor != nil {
		floats.Scale(r.Unit, v.Tensor.Data)
	}
	return v, nil
}

func (r Rule) vector(lines []string) (*Value, error) {
	if r.Text {
		col := make([]string, len(lines))
		for i, line := range lines {
			fields := strings.Fields(line)
			if r.Pos >= len(fields) {
				return nil, fmt.Errorf("line %d: no token at position %d", i, r.Pos)
			}
			col[i] = fields[r.Pos]
		}
		return &Value{Text: col}, nil
	}
	if r.End == 0 {
		data := make([]float64, len(lines))
		for i, line := range lines {
			fields := strings.Fields(line)
			if r.Pos >= len(fields) {
				return nil, fmt.Errorf("line %d: no token at position %d", i, r.Pos)
			}
			v, err := strconv.ParseFloat(fields[r.Pos], 64)
			if err != nil {
				return nil, fmt.Errorf("parsing %q as float: %w", fields[r.Pos], err)
			}
			data[i] = v
		}
		return &Value{Tensor: NewTensor([]int{len(lines)}, data)}, nil
	}
	var (
		data []float64
		cols int
	)
	for i, line := range lines {
		fields := strings.Fields(line)
		// Token slices clamp to the line, so a rule may name a
		// wider slice than short rows carry.
		hi := min(r.End, len(fields))
		lo := min(r.Pos, hi)
		row, err := toFloat(fields[lo:hi])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		if i == 0 {
			cols = len(row)
		} else if len(row) != cols {
			return nil, fmt.Errorf("line %d has %d columns, want %d", i, len(row), cols)
		}
		data = append(data, row...)
	}
	shape := []int{len(lines), cols}
	// A single multi-component line is a plain vector; a lone scalar
	// keeps both dimensions.
	if len(lines) == 1 && len(data) > 1 {
		shape = []int{cols}
	}
	return &Value{Tensor: NewTensor(shape, data)}, nil
}

// matrix reassembles a symmetric matrix printed in repeating column
// blocks: one header line naming the block's columns, then one data row
// per matrix row, led by the row index. The dimension comes from the
// last line whose token count differs from the first data row's: that
// is the final row of the trailing, narrower block, and its leading
// index plus one is the dimension. Uniform windows, or windows that do
// not divide into whole blocks afterwards, are reported rather than
// guessed at.
func (r Rule) matrix(lines []string) (*Value, error) {
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: only %d lines", ErrMalformedMatrix, len(lines))
	}
	want := len(strings.Fields(lines[1]))
	dim := 0
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) == want {
			continue
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%w: row label %q", ErrMalformedMatrix, fields[0])
		}
		dim = n + 1
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: all %d lines have %d tokens", ErrMalformedMatrix, len(lines), want)
	}
	if len(lines)%(dim+1) != 0 {
		return nil, fmt.Errorf("%w: %d lines do not divide into %d-line blocks", ErrMalformedMatrix, len(lines), dim+1)
	}
	m := mat.NewDense(dim, dim, nil)
	next := make([]int, dim) // next free column per matrix row
	for b := 0; b < len(lines); b += dim + 1 {
		for i, line := range lines[b+1 : b+dim+1] {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return nil, fmt.Errorf("%w: data row %q", ErrMalformedMatrix, line)
			}
			row, err := toFloat(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedMatrix, err)
			}
			for _, x := range row {
				if next[i] >= dim {
					return nil, fmt.Errorf("%w: row %d holds more than %d values", ErrMalformedMatrix, i, dim)
				}
				m.Set(i, next[i], x)
				next[i]++
			}
		}
	}
	return &Value{Tensor: FromMatrix(m)}, nil
}

// Sub-block markers inside a chemical shift section.
const (
	shieldingOpen  = "Total shielding tensor (ppm):"
	shieldingClose = "Diagonalized sT*s matrix:"
)

func (r Rule) shielding(lines []string) (*Value, error) {
	var (
		data    []float64
		current []float64
		blocks  int
		open    bool
	)
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, shieldingOpen):
			open = true
			current = current[:0]
		case open && strings.HasPrefix(line, shieldingClose):
			if len(current) != 9 {
				return nil, fmt.Errorf("shielding block %d holds %d values, want 9", blocks, len(current))
			}
			data = append(data, current...)
			blocks++
			open = false
		case open:
			row, err := toFloat(strings.Fields(line))
			if err != nil {
				return nil, fmt.Errorf("shielding block %d: %w", blocks, err)
			}
			current = append(current, row...)
		}
	}
	if blocks == 0 {
		return nil, nil
	}
	return &Value{Tensor: NewTensor([]int{blocks, 3, 3}, data)}, nil
}

func toFloat(strs []string) ([]float64, error) {
	ret := make([]float64, len(strs))
	for i, s := range strs {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %q as float: %w", s, err)
		}
		ret[i] = v
	}
	return ret, nil
}
