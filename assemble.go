package banksy

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// StandardizeRows returns a copy of m with every row scaled to zero mean
// and unit variance. Rows with zero variance become all-zero rather than
// NaN.
func StandardizeRows(m *Matrix, workers int) *Matrix {
	out := m.Clone()
	parallelRows(out.Rows, workers, func(start, end int) {
		for i := start; i < end; i++ {
			row := out.Row(i)
			mean, std := stat.MeanStdDev(row, nil)
			if std == 0 || math.IsNaN(std) {
				for j := range row {
					row[j] = 0
				}
				continue
			}
			for j := range row {
				row[j] = (row[j] - mean) / std
			}
		}
	})
	return out
}

// AssembleMatrix builds the augmented feature matrix for one mixing weight:
// a vertical stack of the standardized own-expression block scaled by
// sqrt(1-lambda) and each standardized neighborhood block scaled by
// sqrt(lambda/M), where M is the number of neighborhood blocks.
//
// All blocks must already be standardized (see [StandardizeRows]) and share
// the same cell count. lambda = 0 leaves only own expression with non-zero
// weight; lambda = 1 is fully neighborhood-dominated. Purely deterministic.
func AssembleMatrix(own *Matrix, neighborBlocks []*Matrix, lambda float64) (*Matrix, error) {
	if own == nil {
		return nil, fmt.Errorf("banksy: own-expression block must be non-nil")
	}
	if lambda < 0 || lambda > 1 {
		return nil, fmt.Errorf("banksy: lambda must be in [0,1], got %g", lambda)
	}
	if len(neighborBlocks) == 0 && lambda > 0 {
		return nil, fmt.Errorf("banksy: lambda %g requires at least one neighborhood block", lambda)
	}
	totalRows := own.Rows
	for i, b := range neighborBlocks {
		if b == nil {
			return nil, fmt.Errorf("banksy: neighborhood block %d is nil", i)
		}
		if b.Cols != own.Cols {
			return nil, fmt.Errorf("banksy: neighborhood block %d has %d cells, own expression has %d", i, b.Cols, own.Cols)
		}
		totalRows += b.Rows
	}

	out := NewMatrix(totalRows, own.Cols)

	ownScale := math.Sqrt(1 - lambda)
	copy(out.Data[:len(own.Data)], own.Data)
	floats.Scale(ownScale, out.Data[:len(own.Data)])

	offset := len(own.Data)
	if len(neighborBlocks) > 0 {
		nbrScale := math.Sqrt(lambda / float64(len(neighborBlocks)))
		for _, b := range neighborBlocks {
			dst := out.Data[offset : offset+len(b.Data)]
			copy(dst, b.Data)
			floats.Scale(nbrScale, dst)
			offset += len(b.Data)
		}
	}
	return out, nil
}
