package scoring

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/soundprediction/metaexp/pkg/ranking"
	"github.com/soundprediction/metaexp/pkg/types"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNotFitted is returned when scoring with a model that was never fitted.
	ErrNotFitted = errors.New("domain scoring model is not fitted")
	// ErrUnknownMetaPath is returned when a chain references a meta-path that
	// is not part of the graph's node set.
	ErrUnknownMetaPath = errors.New("chain references a meta-path missing from all nodes")
)

// neutral is the preference and score reported by a model without ordering information.
const neutral = 0.5

// Config holds the classifier hyper-parameters.
type Config struct {
	LearningRate float64 `mapstructure:"learning_rate"`
	Epochs       int     `mapstructure:"epochs"`
	L2           float64 `mapstructure:"l2"`
}

// DefaultConfig returns the hyper-parameters used when none are given.
func DefaultConfig() Config {
	return Config{
		LearningRate: 0.5,
		Epochs:       500,
		L2:           0.001,
	}
}

// Option configures a DomainScoring.
type Option func(*DomainScoring)

// WithConfig sets the classifier hyper-parameters. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(d *DomainScoring) {
		if cfg.LearningRate > 0 {
			d.cfg.LearningRate = cfg.LearningRate
		}
		if cfg.Epochs > 0 {
			d.cfg.Epochs = cfg.Epochs
		}
		if cfg.L2 >= 0 {
			d.cfg.L2 = cfg.L2
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *DomainScoring) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// DomainScoring is a pairwise preference model over meta-paths. After Fit it
// is read-only and safe to share between sessions.
type DomainScoring struct {
	cfg    Config
	logger *slog.Logger

	vocabulary map[string]int
	basis      []*types.MetaPath

	weights    *mat.VecDense
	bias       float64
	fitted     bool
	degenerate bool
}

// New creates an unfitted model.
func New(opts ...Option) *DomainScoring {
	d := &DomainScoring{
		cfg:    DefaultConfig(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// IsFitted reports whether Fit completed.
func (d *DomainScoring) IsFitted() bool {
	return d.fitted
}

// Vocabulary returns the meta-path keys in feature order.
func (d *DomainScoring) Vocabulary() []string {
	out := make([]string, len(d.vocabulary))
	for k, i := range d.vocabulary {
		out[i] = k
	}
	return out
}

// Fit learns the preference classifier from the chains of order.
//
// An order without any chain of length two carries no preference information;
// Fit then succeeds and leaves a neutral model that scores everything 0.5.
func (d *DomainScoring) Fit(order ranking.PartialOrder) error {
	d.fitted = false
	d.fitVectorizer(order)

	pairs, labels, err := d.extractFeaturesLabels(order)
	if err != nil {
		return err
	}

	if len(pairs) == 0 {
		d.weights = mat.NewVecDense(max(2*len(d.vocabulary), 1), nil)
		d.bias = 0
		d.degenerate = true
		d.fitted = true
		d.logger.Warn("Ranking graph has no ordered pairs, using neutral domain scoring", "nodes", len(d.basis))
		return nil
	}

	x := d.preprocess(pairs)
	y := mat.NewVecDense(len(labels), nil)
	for i, l := range labels {
		y.SetVec(i, float64(l))
	}

	d.train(x, y)
	d.degenerate = false
	d.fitted = true
	d.logger.Debug("Fitted domain scoring", "pairs", len(pairs), "vocabulary", len(d.vocabulary))
	return nil
}

// train runs full-batch gradient descent on the L2-regularised logistic loss.
func (d *DomainScoring) train(x *mat.Dense, y *mat.VecDense) {
	rows, cols := x.Dims()
	w := mat.NewVecDense(cols, nil)
	bias := 0.0
	n := float64(rows)

	z := mat.NewVecDense(rows, nil)
	residual := mat.NewVecDense(rows, nil)
	grad := mat.NewVecDense(cols, nil)

	for epoch := 0; epoch < d.cfg.Epochs; epoch++ {
		z.MulVec(x, w)
		for i := 0; i < rows; i++ {
			residual.SetVec(i, sigmoid(z.AtVec(i)+bias)-y.AtVec(i))
		}
		grad.MulVec(x.T(), residual)
		grad.ScaleVec(1/n, grad)
		grad.AddScaledVec(grad, d.cfg.L2, w)

		w.AddScaledVec(w, -d.cfg.LearningRate, grad)
		bias -= d.cfg.LearningRate * mat.Sum(residual) / n
	}

	d.weights = w
	d.bias = bias
}

// Prefer returns the probability that a is preferred over b.
func (d *DomainScoring) Prefer(a, b *types.MetaPath) (float64, error) {
	if !d.fitted {
		return 0, ErrNotFitted
	}
	if d.degenerate {
		return neutral, nil
	}
	row := d.encodePair(a, b)
	reversed := sigmoid(mat.Dot(row, d.weights) + d.bias)
	return 1 - reversed, nil
}

// Score returns the domain value of mp: its mean preference probability
// against every meta-path of the vocabulary.
func (d *DomainScoring) Score(mp *types.MetaPath) (float64, error) {
	if !d.fitted {
		return 0, ErrNotFitted
	}
	if d.degenerate || len(d.basis) == 0 {
		return neutral, nil
	}
	total := 0.0
	for _, ref := range d.basis {
		p, err := d.Prefer(mp, ref)
		if err != nil {
			return 0, err
		}
		total += p
	}
	return total / float64(len(d.basis)), nil
}

// ScoreAll scores every meta-path and stores the result as its domain value.
func (d *DomainScoring) ScoreAll(mps []*types.MetaPath) ([]float64, error) {
	out := make([]float64, len(mps))
	for i, mp := range mps {
		s, err := d.Score(mp)
		if err != nil {
			return nil, err
		}
		mp.SetDomainValue(s)
		out[i] = s
	}
	return out, nil
}

// pair is an ordered tuple of meta-paths.
type pair struct {
	first, second *types.MetaPath
}

// allPairs enumerates all distinct pairs (items[i], items[j]) with i < j.
// With includeInverse the result contains every ordered pair i != j in
// permutation order, so each pair is matched by its reverse.
func allPairs[T any](items []T, includeInverse bool) [][2]T {
	n := len(items)
	if n < 2 {
		return nil
	}
	if !includeInverse {
		out := make([][2]T, 0, n*(n-1)/2)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				out = append(out, [2]T{items[i], items[j]})
			}
		}
		return out
	}
	out := make([][2]T, 0, n*(n-1))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				out = append(out, [2]T{items[i], items[j]})
			}
		}
	}
	return out
}

// extractFeaturesLabels turns the chains of order into labelled pairs:
// (a, b) in chain order gets label 0, its inverse (b, a) label 1. A pair
// already emitted for an earlier chain is not repeated.
func (d *DomainScoring) extractFeaturesLabels(order ranking.PartialOrder) ([]pair, []int, error) {
	known := make(map[string]bool)
	for _, mp := range order.AllNodes() {
		known[mp.Key()] = true
	}

	var pairs []pair
	var labels []int
	seen := make(map[[2]string]bool)

	for ci, chain := range order.TransitiveClosures() {
		for _, mp := range chain {
			if mp == nil || !known[mp.Key()] {
				key := "<nil>"
				if mp != nil {
					key = mp.Key()
				}
				return nil, nil, fmt.Errorf("%w: chain %d references %s", ErrUnknownMetaPath, ci, key)
			}
		}
		for _, p := range allPairs(chain, false) {
			k := [2]string{p[0].Key(), p[1].Key()}
			if seen[k] {
				continue
			}
			seen[k] = true
			seen[[2]string{k[1], k[0]}] = true
			pairs = append(pairs, pair{p[0], p[1]}, pair{p[1], p[0]})
			labels = append(labels, 0, 1)
		}
	}
	return pairs, labels, nil
}

// fitVectorizer builds the one-hot vocabulary over all nodes, sorted by key.
// Calling it again refits.
func (d *DomainScoring) fitVectorizer(order ranking.PartialOrder) {
	nodes := order.AllNodes()
	byKey := make(map[string]*types.MetaPath, len(nodes))
	for _, mp := range nodes {
		if mp != nil {
			byKey[mp.Key()] = mp
		}
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d.vocabulary = make(map[string]int, len(keys))
	d.basis = make([]*types.MetaPath, len(keys))
	for i, k := range keys {
		d.vocabulary[k] = i
		d.basis[i] = byKey[k]
	}
}

// preprocess encodes each pair as one row [onehot(first) ++ onehot(second)].
func (d *DomainScoring) preprocess(pairs []pair) *mat.Dense {
	width := 2 * len(d.vocabulary)
	x := mat.NewDense(max(len(pairs), 1), max(width, 1), nil)
	for r, p := range pairs {
		if i, ok := d.vocabulary[p.first.Key()]; ok {
			x.Set(r, i, 1)
		}
		if j, ok := d.vocabulary[p.second.Key()]; ok {
			x.Set(r, len(d.vocabulary)+j, 1)
		}
	}
	return x
}

// encodePair encodes a single pair; meta-paths outside the vocabulary encode
// as all zeros.
func (d *DomainScoring) encodePair(a, b *types.MetaPath) *mat.VecDense {
	row := mat.NewVecDense(d.weights.Len(), nil)
	if i, ok := d.vocabulary[a.Key()]; ok {
		row.SetVec(i, 1)
	}
	if j, ok := d.vocabulary[b.Key()]; ok {
		row.SetVec(len(d.vocabulary)+j, 1)
	}
	return row
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
