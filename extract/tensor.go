package extract

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Tensor is a dense numeric array in row-major order.
type Tensor struct {
	Shape []int
	Data  []float64
}

func NewTensor(shape []int, data []float64) *Tensor {
	t := &Tensor{Shape: shape, Data: data}
	if t.Size() != len(data) {
		panic(fmt.Sprintf("shape %v does not hold %d values", shape, len(data)))
	}
	return t
}

// Size returns the number of elements implied by the shape.
func (t *Tensor) Size() int {
	size := 1
	for _, n := range t.Shape {
		size *= n
	}
	return size
}

// At returns the element at the given multi-index.
func (t *Tensor) At(idx ...int) float64 {
	if len(idx) != len(t.Shape) {
		panic("index rank does not match tensor rank")
	}
	flat := 0
	for d, i := range idx {
		if i < 0 || i >= t.Shape[d] {
			panic(fmt.Sprintf("index %d out of range for axis %d", i, d))
		}
		flat = flat*t.Shape[d] + i
	}
	return t.Data[flat]
}

// FirstRows returns a tensor holding the first n entries along the
// leading axis, sharing the underlying data.
func (t *Tensor) FirstRows(n int) *Tensor {
	if len(t.Shape) == 0 || n > t.Shape[0] {
		panic("not enough rows")
	}
	stride := 1
	for _, d := range t.Shape[1:] {
		stride *= d
	}
	shape := append([]int{n}, t.Shape[1:]...)
	return &Tensor{Shape: shape, Data: t.Data[:n*stride]}
}

// Matrix views a 2-D tensor as a gonum matrix sharing the same data.
func (t *Tensor) Matrix() *mat.Dense {
	if len(t.Shape) != 2 {
		panic("tensor is not two-dimensional")
	}
	return mat.NewDense(t.Shape[0], t.Shape[1], t.Data)
}

func FromMatrix(m *mat.Dense) *Tensor {
	r, c := m.Dims()
	return &Tensor{Shape: []int{r, c}, Data: m.RawMatrix().Data}
}

// triu is the row-major upper triangle of a 3x3 symmetric tensor.
var triu = [6][2]int{{0, 0}, {0, 1}, {0, 2}, {1, 1}, {1, 2}, {2, 2}}

// FormatDipoleDerivatives regroups a flat (3N, 3) block of dipole
// derivatives into (N, 3, 3): one 3x3 tensor per atom, rows indexed by
// the Cartesian displacement, columns by the dipole component.
func FormatDipoleDerivatives(t *Tensor) (*Tensor, error) {
	if len(t.Shape) != 2 || t.Shape[1] != 3 || t.Shape[0]%3 != 0 {
		return nil, fmt.Errorf("dipole derivatives: want shape (3N, 3), got %v", t.Shape)
	}
	n := t.Shape[0] / 3
	data := append([]float64(nil), t.Data...)
	return &Tensor{Shape: []int{n, 3, 3}, Data: data}, nil
}

// FormatPolarizabilityDerivatives expands a flat (3N, 6) block, whose
// rows hold the upper triangle of a symmetric 3x3 polarizability
// derivative, into the full (N, 3, 3, 3) tensor with both index orders
// of the last two axes filled.
func FormatPolarizabilityDerivatives(t *Tensor) (*Tensor, error) {
	if len(t.Shape) != 2 || t.Shape[1] != 6 || t.Shape[0]%3 != 0 {
		return nil, fmt.Errorf("polarizability derivatives: want shape (3N, 6), got %v", t.Shape)
	}
	n := t.Shape[0] / 3
	data := make([]float64, n*27)
	for k := 0; k < n; k++ {
		for d := 0; d < 3; d++ {
			row := t.Data[(3*k+d)*6 : (3*k+d)*6+6]
			base := (k*3 + d) * 9
			for q, ij := range triu {
				i, j := ij[0], ij[1]
				data[base+3*i+j] = row[q]
				data[base+3*j+i] = row[q]
			}
		}
	}
	return &Tensor{Shape: []int{n, 3, 3, 3}, Data: data}, nil
}
