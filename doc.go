// Package banksy implements spatially-aware feature augmentation and
// multi-parameter clustering for cell-by-gene expression data with
// associated spatial coordinates.
//
// The pipeline builds neighborhood-derived feature matrices from the
// coordinates (a weighted local mean and an optional azimuthal gradient
// term), blends them with each cell's own expression under a mixing weight
// lambda, reduces the result to a low-dimensional embedding, and partitions
// a shared-nearest-neighbor graph over that embedding under a grid of
// hyperparameters. Labels from different parameter combinations can then be
// harmonized against a reference and scored for pairwise agreement.
//
// Basic usage:
//
//	cfg := banksy.DefaultSweepConfig()
//	cfg.KGeom = []int{15, 30}
//	cfg.UseAGF = true
//	cfg.Lambdas = []float64{0, 0.2}
//	cfg.Resolutions = []float64{0.5, 1.0}
//	res, err := banksy.RunSweep(ctx, expr, coords, cfg)
//	// res.Labelings[combo] is the per-cell label vector for one combination
//	// res.Embeddings[key] is the PCA embedding for one (lambda, AGF) pair
//
// Every stage is also usable on its own: [FindNeighbors],
// [MeanNeighborFeature], [AzimuthalNeighborFeature], [AssembleMatrix],
// [ReducePCA], [EmbedNonlinear], [BuildSNNGraph], the [Clusterer]
// implementations, [Harmonize], and [CompareLabelings].
//
// # Determinism
//
// For identical inputs and an identical seed, every stage returns
// bit-identical output. Randomized stages (the approximate SVD solver,
// clustering initialization, the visualization embedding) derive their
// randomness from the sweep seed, the parameter combination, and a
// per-stage salt, so concurrent execution order never affects results.
package banksy
