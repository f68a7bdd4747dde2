package banksy

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// EmbeddingKey identifies one reduced embedding: a mixing weight and
// whether the directional feature participated.
type EmbeddingKey struct {
	Lambda float64
	UseAGF bool
}

// ParameterCombo uniquely identifies one run through the
// reduce-then-cluster stages. It is comparable and serves as the map key
// for labelings and failures.
type ParameterCombo struct {
	// KGeom holds the neighbor counts of the feature levels: KGeom[0]
	// for the local mean, KGeom[1] for the directional feature (0 when
	// that level is off).
	KGeom      [2]int
	UseAGF     bool
	Lambda     float64
	KNeighbors int
	Resolution float64
	Algorithm  ClusterAlgorithm
	Seed       int64
}

// EmbeddingKey returns the key of the embedding this combo clusters.
func (c ParameterCombo) EmbeddingKey() EmbeddingKey {
	return EmbeddingKey{Lambda: c.Lambda, UseAGF: c.UseAGF}
}

func (c ParameterCombo) String() string {
	return fmt.Sprintf("kgeom=%v agf=%t lambda=%g k=%d res=%g algo=%s seed=%d",
		c.KGeom, c.UseAGF, c.Lambda, c.KNeighbors, c.Resolution, c.Algorithm, c.Seed)
}

// seedBits returns the combo's identity as hashable seed material.
func (c ParameterCombo) seedBits() []uint64 {
	return []uint64{
		uint64(c.KGeom[0]), uint64(c.KGeom[1]), boolBit(c.UseAGF),
		f64bits(c.Lambda), uint64(c.KNeighbors), f64bits(c.Resolution),
	}
}

// SweepConfig describes a full parameter grid. Start with
// [DefaultSweepConfig] and override the fields you need.
type SweepConfig struct {
	// KGeom lists the neighbor counts of the feature levels: the first
	// entry builds the local-mean feature, the second (required when
	// UseAGF is set) the directional feature.
	KGeom []int

	// UseAGF enables the directional (azimuthal gradient) feature level.
	UseAGF bool

	// Lambdas are the mixing weights to sweep, each in [0,1].
	Lambdas []float64

	// KNeighbors is the neighbor count of the SNN graph built over each
	// embedding. Default: 50.
	KNeighbors int

	// Resolutions are the community-detection resolutions to sweep. For
	// the centroid and mixture modes each value is rounded to a cluster
	// count unless NumClusters overrides it.
	Resolutions []float64

	// Algorithm selects the clustering mode. Default: AlgorithmLouvain.
	Algorithm ClusterAlgorithm

	// NumClusters fixes the cluster count for the centroid and mixture
	// modes. 0 derives it from the resolution value.
	NumClusters int

	// Seed is the base seed; every randomized stage derives its own
	// stream from it, the parameter combination, and a stage salt.
	Seed int64

	// PCADims is the embedding dimensionality. Default: 20.
	PCADims int

	// PCASolver selects the decomposition strategy. Default: SolverAuto.
	PCASolver PCASolver

	// Kernel is the neighbor weighting function of the feature builders.
	// Default: KernelGaussian.
	Kernel Kernel

	// SNNPrune drops SNN edges with shared-neighbor overlap below it.
	// Default: DefaultSNNPrune.
	SNNPrune float64

	// Nonlinear additionally computes a 2-D visualization layout per
	// embedding (never used for clustering).
	Nonlinear bool

	// Workers bounds sweep parallelism. 0 means runtime.NumCPU().
	Workers int

	// Logger receives progress and warning events. DefaultSweepConfig
	// sets a no-op logger.
	Logger zerolog.Logger
}

// DefaultSweepConfig returns a SweepConfig with reasonable defaults.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		KGeom:       []int{15},
		Lambdas:     []float64{0.2},
		KNeighbors:  50,
		Resolutions: []float64{0.5},
		Algorithm:   AlgorithmLouvain,
		PCADims:     20,
		PCASolver:   SolverAuto,
		Kernel:      KernelGaussian,
		SNNPrune:    DefaultSNNPrune,
		Logger:      zerolog.Nop(),
	}
}

func (cfg *SweepConfig) applyDefaults() {
	if cfg.KNeighbors == 0 {
		cfg.KNeighbors = 50
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmLouvain
	}
	if cfg.PCADims == 0 {
		cfg.PCADims = 20
	}
	if cfg.PCASolver == "" {
		cfg.PCASolver = SolverAuto
	}
	if cfg.Kernel == "" {
		cfg.Kernel = KernelGaussian
	}
	if cfg.SNNPrune == 0 {
		cfg.SNNPrune = DefaultSNNPrune
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
}

func (cfg *SweepConfig) validate() error {
	if len(cfg.KGeom) == 0 || len(cfg.KGeom) > 2 {
		return fmt.Errorf("banksy: KGeom must list one or two neighbor counts, got %d", len(cfg.KGeom))
	}
	for _, k := range cfg.KGeom {
		if k <= 0 {
			return fmt.Errorf("banksy: KGeom values must be positive, got %d", k)
		}
	}
	if cfg.UseAGF && len(cfg.KGeom) < 2 {
		return fmt.Errorf("banksy: UseAGF requires a second KGeom entry for the directional level")
	}
	if len(cfg.Lambdas) == 0 {
		return fmt.Errorf("banksy: at least one lambda is required")
	}
	for _, l := range cfg.Lambdas {
		if l < 0 || l > 1 {
			return fmt.Errorf("banksy: lambda must be in [0,1], got %g", l)
		}
	}
	if cfg.KNeighbors <= 0 {
		return fmt.Errorf("banksy: KNeighbors must be positive, got %d", cfg.KNeighbors)
	}
	if len(cfg.Resolutions) == 0 {
		return fmt.Errorf("banksy: at least one resolution is required")
	}
	for _, r := range cfg.Resolutions {
		if r <= 0 {
			return fmt.Errorf("banksy: resolution must be > 0, got %g", r)
		}
	}
	if !validAlgorithm(cfg.Algorithm) {
		return fmt.Errorf("banksy: invalid clustering algorithm %q", cfg.Algorithm)
	}
	if cfg.PCADims < 1 {
		return fmt.Errorf("banksy: PCADims must be >= 1, got %d", cfg.PCADims)
	}
	if !validKernel(cfg.Kernel) {
		return fmt.Errorf("banksy: invalid kernel %q", cfg.Kernel)
	}
	if cfg.SNNPrune < 0 || cfg.SNNPrune >= 1 {
		return fmt.Errorf("banksy: SNNPrune must be in [0,1), got %g", cfg.SNNPrune)
	}
	return nil
}

// kGeomKey returns the combo-key form of the configured feature levels.
func (cfg *SweepConfig) kGeomKey() [2]int {
	var k [2]int
	k[0] = cfg.KGeom[0]
	if cfg.UseAGF {
		k[1] = cfg.KGeom[1]
	}
	return k
}

// SweepResult holds everything a finished (or cancelled) grid search
// produced. Completed combos stay valid and retrievable even when the
// sweep was cancelled partway.
type SweepResult struct {
	// Embeddings maps each (lambda, AGF) pair to its cells × dims PCA
	// embedding.
	Embeddings map[EmbeddingKey]*Matrix

	// Visualizations maps each (lambda, AGF) pair to its 2-D layout,
	// present only when SweepConfig.Nonlinear was set.
	Visualizations map[EmbeddingKey]*Matrix

	// Labelings maps each successful combo to its per-cell label vector
	// (contiguous non-negative integers).
	Labelings map[ParameterCombo][]int

	// Failed maps each failed combo to its error. A failed combo never
	// aborts its siblings.
	Failed map[ParameterCombo]error

	log zerolog.Logger
}

// Combos returns the successfully clustered combos in a deterministic
// order (ascending lambda, then resolution).
func (r *SweepResult) Combos() []ParameterCombo {
	out := make([]ParameterCombo, 0, len(r.Labelings))
	for c := range r.Labelings {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Lambda != out[j].Lambda {
			return out[i].Lambda < out[j].Lambda
		}
		return out[i].Resolution < out[j].Resolution
	})
	return out
}

// HarmonizeAgainst relabels every labeling in the result against the
// designated reference combo, in place. The reference's own labels are
// never altered. Harmonizer notes are surfaced at warn level on the sweep
// logger and returned.
func (r *SweepResult) HarmonizeAgainst(reference ParameterCombo) (*HarmonizeReport, error) {
	if _, ok := r.Labelings[reference]; !ok {
		return nil, fmt.Errorf("banksy: reference combo has no labeling: %s", reference)
	}
	combos := r.Combos()
	labelings := make([][]int, len(combos))
	refIdx := 0
	for i, c := range combos {
		labelings[i] = r.Labelings[c]
		if c == reference {
			refIdx = i
		}
	}
	report, err := Harmonize(labelings, HarmonizeOptions{Reference: refIdx})
	if err != nil {
		return nil, err
	}
	for _, note := range report.Notes {
		r.log.Warn().Str("stage", "harmonize").Msg(note)
	}
	return report, nil
}

// Compare scores the chosen combos' labelings pairwise under a metric.
func (r *SweepResult) Compare(combos []ParameterCombo, metric CompareMetric) (*ComparisonMatrix, error) {
	labelings := make([][]int, len(combos))
	for i, c := range combos {
		l, ok := r.Labelings[c]
		if !ok {
			return nil, fmt.Errorf("banksy: combo has no labeling: %s", c)
		}
		labelings[i] = l
	}
	return CompareLabelings(labelings, metric)
}

// newComboClusterer builds the clusterer for one combination. A variable
// so tests can substitute failure modes.
var newComboClusterer = NewClusterer

// RunSweep executes the full pipeline over the parameter grid: shared
// neighbor search, feature building, per-lambda assembly and reduction,
// SNN graph construction, and per-combo clustering. Combos run in
// parallel; each derives its own random streams, so results are
// independent of scheduling. Cancelling ctx stops the sweep early but
// leaves completed combos in the returned result.
func RunSweep(ctx context.Context, expr *Matrix, coords *Coords, cfg SweepConfig) (*SweepResult, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := checkAligned(expr, coords); err != nil {
		return nil, err
	}
	log := cfg.Logger

	result := &SweepResult{
		Embeddings:     make(map[EmbeddingKey]*Matrix),
		Visualizations: make(map[EmbeddingKey]*Matrix),
		Labelings:      make(map[ParameterCombo][]int),
		Failed:         make(map[ParameterCombo]error),
		log:            log,
	}

	// Neighbor sets are the most expensive shared step: compute each
	// distinct k once and reuse across every lambda/harmonic combo.
	nbrsByK := make(map[int]*NeighborSets)
	for _, k := range cfg.KGeom {
		if _, ok := nbrsByK[k]; ok {
			continue
		}
		nbrs, err := FindNeighbors(coords, k, cfg.Workers)
		if err != nil {
			return nil, err
		}
		nbrsByK[k] = nbrs
		log.Debug().Int("k", nbrs.K).Int("cells", nbrs.Cells()).Msg("neighbor level ready")
	}

	h0, err := MeanNeighborFeature(expr, nbrsByK[cfg.KGeom[0]], cfg.Kernel, cfg.Workers)
	if err != nil {
		return nil, err
	}
	blocks := []*Matrix{StandardizeRows(h0, cfg.Workers)}
	if cfg.UseAGF {
		h1, err := AzimuthalNeighborFeature(expr, coords, nbrsByK[cfg.KGeom[1]], cfg.Kernel, cfg.Workers)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, StandardizeRows(h1, cfg.Workers))
	}
	own := StandardizeRows(expr, cfg.Workers)

	lambdas := dedupFloats(cfg.Lambdas)
	resolutions := dedupFloats(cfg.Resolutions)
	kGeomKey := cfg.kGeomKey()

	// Stage 1: one assembled matrix, embedding, and SNN graph per lambda.
	var mu sync.Mutex
	graphs := make(map[EmbeddingKey]*SNNGraph)
	failedKeys := make(map[EmbeddingKey]error)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, lambda := range lambdas {
		key := EmbeddingKey{Lambda: lambda, UseAGF: cfg.UseAGF}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			emb, snn, viz, err := buildEmbedding(own, blocks, key, cfg)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failedKeys[key] = err
				log.Warn().Float64("lambda", key.Lambda).Err(err).Msg("embedding failed")
				return nil
			}
			result.Embeddings[key] = emb
			graphs[key] = snn
			if viz != nil {
				result.Visualizations[key] = viz
			}
			log.Debug().Float64("lambda", key.Lambda).Bool("agf", key.UseAGF).
				Int("edges", snn.NumEdges()).Msg("embedding ready")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	// Stage 2: cluster every (lambda × resolution) combo independently.
	g2, gctx2 := errgroup.WithContext(ctx)
	g2.SetLimit(cfg.Workers)
	for _, lambda := range lambdas {
		for _, res := range resolutions {
			combo := ParameterCombo{
				KGeom:      kGeomKey,
				UseAGF:     cfg.UseAGF,
				Lambda:     lambda,
				KNeighbors: cfg.KNeighbors,
				Resolution: res,
				Algorithm:  cfg.Algorithm,
				Seed:       cfg.Seed,
			}
			g2.Go(func() error {
				if err := gctx2.Err(); err != nil {
					return err
				}
				key := combo.EmbeddingKey()
				mu.Lock()
				graph := graphs[key]
				keyErr := failedKeys[key]
				mu.Unlock()
				if graph == nil {
					mu.Lock()
					result.Failed[combo] = fmt.Errorf("banksy: embedding stage failed: %w", keyErr)
					mu.Unlock()
					return nil
				}

				clusterer, err := newComboClusterer(combo.Algorithm, combo.Resolution, cfg.NumClusters)
				if err != nil {
					return err // config-level, not a per-combo failure
				}
				seed := deriveSeed(combo.Seed, saltCluster, combo.seedBits()...)
				cr, err := clusterer.Fit(graph, seed)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.Failed[combo] = err
					log.Warn().Str("combo", combo.String()).Err(err).Msg("combo failed")
					return nil
				}
				result.Labelings[combo] = cr.Labels
				log.Info().Str("combo", combo.String()).
					Int("clusters", cr.NumClusters).Float64("objective", cr.Objective).
					Msg("combo clustered")
				return nil
			})
		}
	}
	if err := g2.Wait(); err != nil {
		return result, err
	}
	return result, nil
}

// buildEmbedding runs assemble → reduce (→ optional visualization →) SNN
// graph for one embedding key.
func buildEmbedding(own *Matrix, blocks []*Matrix, key EmbeddingKey, cfg SweepConfig) (emb *Matrix, snn *SNNGraph, viz *Matrix, err error) {
	aug, err := AssembleMatrix(own, blocks, key.Lambda)
	if err != nil {
		return nil, nil, nil, err
	}
	pcaCfg := PCAConfig{
		Dims:   cfg.PCADims,
		Solver: cfg.PCASolver,
		Seed:   deriveSeed(cfg.Seed, saltPCA, f64bits(key.Lambda), boolBit(key.UseAGF)),
	}
	emb, err = ReducePCA(aug, pcaCfg)
	if err != nil {
		return nil, nil, nil, err
	}
	snn, err = BuildSNNGraph(emb, cfg.KNeighbors, cfg.SNNPrune, 1)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.Nonlinear {
		vizCfg := DefaultNonlinearConfig()
		vizCfg.Seed = deriveSeed(cfg.Seed, saltViz, f64bits(key.Lambda), boolBit(key.UseAGF))
		viz, err = EmbedNonlinear(emb, vizCfg)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return emb, snn, viz, nil
}

// dedupFloats removes duplicates preserving first-seen order.
func dedupFloats(vals []float64) []float64 {
	seen := make(map[float64]bool, len(vals))
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
