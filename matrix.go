package banksy

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a dense real matrix stored flat in row-major order:
// Data[i*Cols+j] is the value at row i, column j.
//
// Expression input is genes × cells (one row per gene). Feature matrices
// produced by the neighborhood builder share that orientation. Embeddings
// are cells × dims (one row per cell).
type Matrix struct {
	Data []float64
	Rows int
	Cols int
}

// NewMatrix allocates a zeroed rows × cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{
		Data: make([]float64, rows*cols),
		Rows: rows,
		Cols: cols,
	}
}

// NewMatrixFrom wraps existing flat row-major data without copying.
// Returns an error if the slice length does not match rows*cols.
func NewMatrixFrom(data []float64, rows, cols int) (*Matrix, error) {
	if len(data) != rows*cols {
		return nil, fmt.Errorf("banksy: data length %d does not match %d×%d", len(data), rows, cols)
	}
	return &Matrix{Data: data, Rows: rows, Cols: cols}, nil
}

// At returns the value at row i, column j.
func (m *Matrix) At(i, j int) float64 { return m.Data[i*m.Cols+j] }

// Set stores v at row i, column j.
func (m *Matrix) Set(i, j int, v float64) { m.Data[i*m.Cols+j] = v }

// Row returns row i as a slice aliasing the matrix storage.
func (m *Matrix) Row(i int) []float64 { return m.Data[i*m.Cols : (i+1)*m.Cols] }

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	data := make([]float64, len(m.Data))
	copy(data, m.Data)
	return &Matrix{Data: data, Rows: m.Rows, Cols: m.Cols}
}

// Dense returns a gonum view sharing the matrix storage.
func (m *Matrix) Dense() *mat.Dense {
	return mat.NewDense(m.Rows, m.Cols, m.Data)
}

// Coords holds per-cell spatial positions stored flat in row-major order:
// Data[c*Dims+d] is coordinate d of cell c. Dims is 2 or 3.
type Coords struct {
	Data  []float64
	Cells int
	Dims  int
}

// NewCoords wraps existing flat position data without copying.
func NewCoords(data []float64, cells, dims int) (*Coords, error) {
	if dims != 2 && dims != 3 {
		return nil, fmt.Errorf("banksy: coordinate dimensionality must be 2 or 3, got %d", dims)
	}
	if len(data) != cells*dims {
		return nil, fmt.Errorf("banksy: coordinate data length %d does not match %d×%d", len(data), cells, dims)
	}
	return &Coords{Data: data, Cells: cells, Dims: dims}, nil
}

// Cell returns the position of cell c as a slice aliasing the storage.
func (c *Coords) Cell(i int) []float64 { return c.Data[i*c.Dims : (i+1)*c.Dims] }

// checkAligned verifies that the expression matrix and coordinate table
// describe the same cells.
func checkAligned(expr *Matrix, coords *Coords) error {
	if expr == nil || coords == nil {
		return fmt.Errorf("banksy: expression matrix and coordinates must be non-nil")
	}
	if expr.Cols != coords.Cells {
		return fmt.Errorf("banksy: expression has %d cells but coordinates have %d", expr.Cols, coords.Cells)
	}
	return nil
}
