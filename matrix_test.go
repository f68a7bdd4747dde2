package banksy

import (
	"testing"
)

func TestMatrixAccessors(t *testing.T) {
	m := NewMatrix(2, 3)
	m.Set(0, 2, 5)
	m.Set(1, 0, -1)

	if got := m.At(0, 2); got != 5 {
		t.Errorf("At(0,2) = %v, want 5", got)
	}
	if got := m.At(1, 0); got != -1 {
		t.Errorf("At(1,0) = %v, want -1", got)
	}
	if row := m.Row(0); len(row) != 3 || row[2] != 5 {
		t.Errorf("Row(0) = %v", row)
	}

	// Row aliases the storage.
	m.Row(1)[1] = 9
	if got := m.At(1, 1); got != 9 {
		t.Errorf("write through Row not visible: At(1,1) = %v", got)
	}
}

func TestMatrixClone(t *testing.T) {
	m, err := NewMatrixFrom([]float64{1, 2, 3, 4}, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	c := m.Clone()
	c.Set(0, 0, 99)
	if m.At(0, 0) != 1 {
		t.Error("Clone shares storage with the original")
	}
}

func TestMatrixDense(t *testing.T) {
	m, _ := NewMatrixFrom([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	d := m.Dense()
	r, c := d.Dims()
	if r != 2 || c != 3 {
		t.Fatalf("Dense dims %dx%d, want 2x3", r, c)
	}
	if d.At(1, 2) != 6 {
		t.Errorf("Dense At(1,2) = %v, want 6", d.At(1, 2))
	}

	// The gonum view shares storage.
	d.Set(0, 0, 42)
	if m.At(0, 0) != 42 {
		t.Error("Dense does not alias the matrix storage")
	}
}

func TestNewMatrixFromValidation(t *testing.T) {
	if _, err := NewMatrixFrom([]float64{1, 2, 3}, 2, 2); err == nil {
		t.Error("length mismatch: expected error")
	}
}

func TestNewCoords(t *testing.T) {
	c, err := NewCoords([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Cell(1); got[0] != 4 || got[2] != 6 {
		t.Errorf("Cell(1) = %v", got)
	}

	if _, err := NewCoords([]float64{1, 2, 3, 4}, 4, 1); err == nil {
		t.Error("1-D coordinates: expected error")
	}
	if _, err := NewCoords([]float64{1, 2, 3, 4}, 4, 4); err == nil {
		t.Error("4-D coordinates: expected error")
	}
	if _, err := NewCoords([]float64{1, 2, 3}, 2, 2); err == nil {
		t.Error("length mismatch: expected error")
	}
}

func TestCheckAligned(t *testing.T) {
	expr := NewMatrix(3, 4)
	coords, _ := NewCoords(make([]float64, 8), 4, 2)
	if err := checkAligned(expr, coords); err != nil {
		t.Errorf("aligned inputs: unexpected error %v", err)
	}

	small, _ := NewCoords(make([]float64, 6), 3, 2)
	if err := checkAligned(expr, small); err == nil {
		t.Error("misaligned inputs: expected error")
	}
	if err := checkAligned(nil, coords); err == nil {
		t.Error("nil expression: expected error")
	}
	if err := checkAligned(expr, nil); err == nil {
		t.Error("nil coordinates: expected error")
	}
}
