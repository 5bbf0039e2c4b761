package extract

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"
)

func TestVectorSqueeze(t *testing.T) {
	rule := Rule{Pos: 0, End: 3}
	got, err := rule.Format([]string{"0.1 0.2 0.3"})
	if err != nil {
		t.Fatal(err)
	}
	want := NewTensor([]int{3}, []float64{0.1, 0.2, 0.3})
	if !reflect.DeepEqual(got.Tensor, want) {
		t.Errorf("got %v, wanted %v\n", got.Tensor, want)
	}

	got, err = rule.Format([]string{"0.1 0.2 0.3", "0.4 0.5 0.6"})
	if err != nil {
		t.Fatal(err)
	}
	want = NewTensor([]int{2, 3}, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6})
	if !reflect.DeepEqual(got.Tensor, want) {
		t.Errorf("got %v, wanted %v\n", got.Tensor, want)
	}
}

func TestVectorSingleToken(t *testing.T) {
	got, err := Rule{Pos: 4}.Format([]string{
		"FINAL SINGLE POINT ENERGY       -76.323568298",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := NewTensor([]int{1}, []float64{-76.323568298})
	if !reflect.DeepEqual(got.Tensor, want) {
		t.Errorf("got %v, wanted %v\n", got.Tensor, want)
	}
}

func TestVectorClampsShortRows(t *testing.T) {
	// A [0, 4) slice over three-token rows keeps all three columns.
	got, err := Rule{Pos: 0, End: 4}.Format([]string{
		"9.16 0.00 0.00",
		"0.00 12.84 0.00",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []int{2, 3}
	if !reflect.DeepEqual(got.Tensor.Shape, want) {
		t.Errorf("got shape %v, wanted %v\n", got.Tensor.Shape, want)
	}
}

func TestUnitScaling(t *testing.T) {
	got, err := Rule{Pos: 0, Unit: -1.0}.Format([]string{"1.0", "2.0"})
	if err != nil {
		t.Fatal(err)
	}
	want := NewTensor([]int{2}, []float64{-1.0, -2.0})
	if !reflect.DeepEqual(got.Tensor, want) {
		t.Errorf("got %v, wanted %v\n", got.Tensor, want)
	}
}

func TestDefault(t *testing.T) {
	got, err := Rule{Default: 1.0, HasDefault: true}.Format(nil)
	if err != nil {
		t.Fatal(err)
	}
	want := NewTensor([]int{1}, []float64{1.0})
	if !reflect.DeepEqual(got.Tensor, want) {
		t.Errorf("got %v, wanted %v\n", got.Tensor, want)
	}

	got, err = Rule{}.Format(nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("got %v, wanted nil without a default\n", got)
	}
}

func TestSkipFirst(t *testing.T) {
	got, err := Rule{Pos: 0, SkipFirst: 1}.Format([]string{"6", "1.0", "2.0"})
	if err != nil {
		t.Fatal(err)
	}
	want := NewTensor([]int{2}, []float64{1.0, 2.0})
	if !reflect.DeepEqual(got.Tensor, want) {
		t.Errorf("got %v, wanted %v\n", got.Tensor, want)
	}

	// Trimming the whole window means missing data, not a default.
	got, err = Rule{Pos: 0, SkipFirst: 3, Default: 1.0, HasDefault: true}.
		Format([]string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("got %v, wanted nil for over-trimmed window\n", got)
	}
}

func TestTextColumn(t *testing.T) {
	got, err := Rule{Pos: 0, Text: true}.Format([]string{
		"O      0.000000    0.000000    0.117790",
		"H      0.000000    0.755453   -0.471161",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"O", "H"}
	if !reflect.DeepEqual(got.Text, want) {
		t.Errorf("got %v, wanted %v\n", got.Text, want)
	}
}

// renderBlocks prints m in the repeating column-block layout used for
// Hessians: a header naming the block columns, then every matrix row
// led by its index.
func renderBlocks(m [][]float64, width int) []string {
	d := len(m)
	var lines []string
	for lo := 0; lo < d; lo += width {
		hi := min(lo+width, d)
		var hdr strings.Builder
		for c := lo; c < hi; c++ {
			fmt.Fprintf(&hdr, "%15d", c)
		}
		lines = append(lines, hdr.String())
		for r := 0; r < d; r++ {
			var row strings.Builder
			fmt.Fprintf(&row, "%5d", r)
			for c := lo; c < hi; c++ {
				fmt.Fprintf(&row, "%15.8f", m[r][c])
			}
			lines = append(lines, row.String())
		}
	}
	return lines
}

func symmetric(d int) [][]float64 {
	m := make([][]float64, d)
	for i := range m {
		m[i] = make([]float64, d)
		for j := range m[i] {
			m[i][j] = float64(10*(i+j)) + float64(i*j)/8
		}
	}
	return m
}

func TestMatrixRoundTrip(t *testing.T) {
	want := symmetric(7)
	got, err := Rule{Kind: KindMatrix}.Format(renderBlocks(want, 3))
	if err != nil {
		t.Fatal(err)
	}
	shape := []int{7, 7}
	if !reflect.DeepEqual(got.Tensor.Shape, shape) {
		t.Fatalf("got shape %v, wanted %v\n", got.Tensor.Shape, shape)
	}
	for i := 0; i < 7; i++ {
		for j := 0; j < 7; j++ {
			if v := got.Tensor.At(i, j); v != want[i][j] {
				t.Errorf("entry (%d,%d): got %v, wanted %v\n",
					i, j, v, want[i][j])
			}
		}
	}
}

func TestMatrixUniformRows(t *testing.T) {
	_, err := Rule{Kind: KindMatrix}.Format([]string{
		"    0    1",
		"0 1.0 2.0",
		"1 2.0 3.0",
	})
	if !errors.Is(err, ErrMalformedMatrix) {
		t.Errorf("got %v, wanted ErrMalformedMatrix\n", err)
	}
}

func TestMatrixAmbiguousLayout(t *testing.T) {
	// When the dimension divides the block width the discovery scan
	// lands on a block header; the layout is flagged, not guessed.
	_, err := Rule{Kind: KindMatrix}.Format(renderBlocks(symmetric(4), 2))
	if !errors.Is(err, ErrMalformedMatrix) {
		t.Errorf("got %v, wanted ErrMalformedMatrix\n", err)
	}
}

func TestShielding(t *testing.T) {
	got, err := Rule{Kind: KindShielding}.Format([]string{
		"Nucleus   0O :",
		"Total shielding tensor (ppm):",
		"1.0 2.0 3.0",
		"4.0 5.0 6.0",
		"7.0 8.0 9.0",
		"Diagonalized sT*s matrix:",
		"sDSO 416.614 0.000 0.000",
		"Nucleus   1H :",
		"Total shielding tensor (ppm):",
		"9.0 8.0 7.0",
		"6.0 5.0 4.0",
		"3.0 2.0 1.0",
		"Diagonalized sT*s matrix:",
	})
	if err != nil {
		t.Fatal(err)
	}
	shape := []int{2, 3, 3}
	if !reflect.DeepEqual(got.Tensor.Shape, shape) {
		t.Fatalf("got shape %v, wanted %v\n", got.Tensor.Shape, shape)
	}
	if v := got.Tensor.At(0, 1, 2); v != 6.0 {
		t.Errorf("got %v, wanted 6.0\n", v)
	}
	if v := got.Tensor.At(1, 0, 0); v != 9.0 {
		t.Errorf("got %v, wanted 9.0\n", v)
	}
}

func TestShieldingUnit(t *testing.T) {
	got, err := Rule{Kind: KindShielding, Unit: PPMToAU}.Format([]string{
		"Total shielding tensor (ppm):",
		"1.0 0.0 0.0",
		"0.0 1.0 0.0",
		"0.0 0.0 1.0",
		"Diagonalized sT*s matrix:",
	})
	if err != nil {
		t.Fatal(err)
	}
	if v := got.Tensor.At(0, 0, 0); math.Abs(v-PPMToAU) > 1e-15 {
		t.Errorf("got %v, wanted %v\n", v, PPMToAU)
	}
}

func TestUnknownKind(t *testing.T) {
	_, err := Rule{Kind: Kind(99)}.Format([]string{"1.0"})
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("got %v, wanted ErrUnknownKind\n", err)
	}
}
