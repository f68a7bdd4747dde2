package banksy

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// PCASolver selects the decomposition strategy for [ReducePCA].
type PCASolver string

const (
	// SolverAuto uses the exact solver for small inputs and the seeded
	// randomized solver above a size threshold.
	SolverAuto PCASolver = "auto"
	// SolverExact computes a thin SVD of the full centered matrix.
	SolverExact PCASolver = "exact"
	// SolverRandomized uses a seeded Gaussian range finder with power
	// iterations (Halko et al.), reproducible for a fixed seed.
	SolverRandomized PCASolver = "randomized"
)

// randomizedThreshold is the entry count (features × cells) above which
// SolverAuto switches to the randomized solver.
const randomizedThreshold = 4_000_000

// PCAConfig controls [ReducePCA]. Start with [DefaultPCAConfig] and
// override the fields you need.
type PCAConfig struct {
	// Dims is the target embedding dimensionality. Clamped to the input
	// rank bound min(cells, features). Default: 20.
	Dims int

	// Solver selects the decomposition strategy. Default: SolverAuto.
	Solver PCASolver

	// Seed drives the randomized solver's Gaussian sketch. Ignored by the
	// exact solver.
	Seed int64

	// Oversample is the extra sketch width for the randomized solver.
	// Default: 10.
	Oversample int

	// PowerIters is the number of power iterations for the randomized
	// solver. Default: 2.
	PowerIters int
}

// DefaultPCAConfig returns a PCAConfig with reasonable defaults.
func DefaultPCAConfig() PCAConfig {
	return PCAConfig{Dims: 20, Solver: SolverAuto, Oversample: 10, PowerIters: 2}
}

func (cfg *PCAConfig) applyDefaults() {
	if cfg.Dims == 0 {
		cfg.Dims = 20
	}
	if cfg.Solver == "" {
		cfg.Solver = SolverAuto
	}
	if cfg.Oversample == 0 {
		cfg.Oversample = 10
	}
	if cfg.PowerIters == 0 {
		cfg.PowerIters = 2
	}
}

func (cfg *PCAConfig) validate() error {
	if cfg.Dims < 1 {
		return fmt.Errorf("banksy: PCA Dims must be >= 1, got %d", cfg.Dims)
	}
	switch cfg.Solver {
	case SolverAuto, SolverExact, SolverRandomized:
	default:
		return fmt.Errorf("banksy: invalid PCA solver %q", cfg.Solver)
	}
	if cfg.Oversample < 1 {
		return fmt.Errorf("banksy: PCA Oversample must be >= 1, got %d", cfg.Oversample)
	}
	if cfg.PowerIters < 0 {
		return fmt.Errorf("banksy: PCA PowerIters must be >= 0, got %d", cfg.PowerIters)
	}
	return nil
}

// ReducePCA projects the augmented matrix (features × cells) onto its top
// principal components and returns a cells × dims embedding. Cell ordering
// is preserved. For the same input and seed the result is bit-identical;
// component signs follow a fixed convention (the largest-magnitude score of
// each component is made positive).
func ReducePCA(aug *Matrix, cfg PCAConfig) (*Matrix, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if aug == nil || aug.Rows == 0 || aug.Cols == 0 {
		return nil, fmt.Errorf("banksy: augmented matrix must be non-empty")
	}

	features, cells := aug.Rows, aug.Cols
	dims := cfg.Dims
	if bound := min(features, cells); dims > bound {
		dims = bound
	}

	// Observations are cells: build the cells × features matrix with each
	// feature column centered.
	x := mat.NewDense(cells, features, nil)
	for f := 0; f < features; f++ {
		row := aug.Row(f)
		var mean float64
		for _, v := range row {
			mean += v
		}
		mean /= float64(cells)
		for c := 0; c < cells; c++ {
			x.Set(c, f, row[c]-mean)
		}
	}

	solver := cfg.Solver
	if solver == SolverAuto {
		if features*cells > randomizedThreshold && min(features, cells) > 4*dims {
			solver = SolverRandomized
		} else {
			solver = SolverExact
		}
	}

	var scores *mat.Dense // cells × r, already scaled by singular values
	var err error
	switch solver {
	case SolverRandomized:
		scores, err = randomizedScores(x, dims, cfg)
	default:
		scores, err = exactScores(x)
	}
	if err != nil {
		return nil, err
	}

	// scores may carry more than dims columns; Copy takes the overlap.
	out := NewMatrix(cells, dims)
	out.Dense().Copy(scores)
	fixComponentSigns(out)
	return out, nil
}

// exactScores computes U·Σ from a thin SVD of x.
func exactScores(x *mat.Dense) (*mat.Dense, error) {
	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThin) {
		return nil, fmt.Errorf("banksy: SVD failed to converge")
	}
	var u mat.Dense
	svd.UTo(&u)
	s := svd.Values(nil)
	scaleColumns(&u, s)
	return &u, nil
}

// randomizedScores computes approximate U·Σ via a seeded Gaussian range
// finder with power iterations.
func randomizedScores(x *mat.Dense, dims int, cfg PCAConfig) (*mat.Dense, error) {
	cells, features := x.Dims()
	l := dims + cfg.Oversample
	if bound := min(cells, features); l > bound {
		l = bound
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	omega := mat.NewDense(features, l, nil)
	for i := 0; i < features; i++ {
		for j := 0; j < l; j++ {
			omega.Set(i, j, rng.NormFloat64())
		}
	}

	var y mat.Dense
	y.Mul(x, omega) // cells × l
	q := orthonormalize(&y)

	for t := 0; t < cfg.PowerIters; t++ {
		var z mat.Dense
		z.Mul(x.T(), q) // features × l
		qz := orthonormalize(&z)
		var y2 mat.Dense
		y2.Mul(x, qz)
		q = orthonormalize(&y2)
	}

	var b mat.Dense
	b.Mul(q.T(), x) // l × features

	var svd mat.SVD
	if !svd.Factorize(&b, mat.SVDThin) {
		return nil, fmt.Errorf("banksy: SVD failed to converge")
	}
	var ub mat.Dense
	svd.UTo(&ub)
	s := svd.Values(nil)

	var u mat.Dense
	u.Mul(q, &ub) // cells × r
	scaleColumns(&u, s)
	return &u, nil
}

// orthonormalize returns the thin Q factor of a.
func orthonormalize(a *mat.Dense) *mat.Dense {
	var qr mat.QR
	qr.Factorize(a)
	var q mat.Dense
	qr.QTo(&q)
	return &q
}

// scaleColumns multiplies column j of u by s[j].
func scaleColumns(u *mat.Dense, s []float64) {
	rows, cols := u.Dims()
	for j := 0; j < cols && j < len(s); j++ {
		for i := 0; i < rows; i++ {
			u.Set(i, j, u.At(i, j)*s[j])
		}
	}
}

// fixComponentSigns flips each embedding column so its largest-magnitude
// entry is positive, making component orientation deterministic.
func fixComponentSigns(e *Matrix) {
	for j := 0; j < e.Cols; j++ {
		maxAbs := -1.0
		argmax := 0
		for i := 0; i < e.Rows; i++ {
			if a := math.Abs(e.At(i, j)); a > maxAbs {
				maxAbs = a
				argmax = i
			}
		}
		if e.At(argmax, j) < 0 {
			for i := 0; i < e.Rows; i++ {
				e.Set(i, j, -e.At(i, j))
			}
		}
	}
}
