// Package learning drives the human-in-the-loop rating session: it decides
// which meta-paths a rater sees next and keeps the running model of ratings.
package learning

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/soundprediction/metaexp/pkg/scoring"
	"github.com/soundprediction/metaexp/pkg/types"
)

var (
	// ErrExhausted is returned by GetNext when no unseen meta-path remains.
	ErrExhausted = errors.New("meta-path pool exhausted")
	// ErrInvalidBatchSize is returned for batch sizes below one.
	ErrInvalidBatchSize = errors.New("batch size must be at least 1")
	// ErrUnknownID is returned when a rating references an id never emitted.
	ErrUnknownID = errors.New("unknown meta-path id")
	// ErrMetaPathMismatch is returned when a rating's meta-path differs from the emitted one.
	ErrMetaPathMismatch = errors.New("meta-path does not match id")
	// ErrAlreadyRated is returned when an id is rated a second time.
	ErrAlreadyRated = errors.New("meta-path already rated")
	// ErrDuplicateID is returned when one submission rates the same id twice.
	ErrDuplicateID = errors.New("duplicate id in rating batch")
	// ErrNilMetaPath is returned when the pool contains a nil entry.
	ErrNilMetaPath = errors.New("nil meta-path in pool")
	// ErrDuplicateMetaPath is returned when the pool contains the same meta-path twice.
	ErrDuplicateMetaPath = errors.New("duplicate meta-path in pool")
)

// State is the lifecycle stage of an ActiveLearner.
type State int

const (
	StateInitialized State = iota
	StateAwaitingRatings
	StateUpdating
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateAwaitingRatings:
		return "awaiting-ratings"
	case StateUpdating:
		return "updating"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Batch is one selection of meta-paths handed to the rater.
type Batch struct {
	MetaPaths []types.RatedMetaPath
	IsLast    bool
}

type entry struct {
	mp         *types.MetaPath
	id         int
	emitted    bool
	rating     float64
	rated      bool
	emittedAt  time.Time
	timeToRate *time.Duration
	priorMean  float64
}

func (e *entry) toRated() types.RatedMetaPath {
	return types.RatedMetaPath{
		ID:         e.id,
		MetaPath:   e.mp,
		Rating:     e.rating,
		Rated:      e.rated,
		EmittedAt:  e.emittedAt,
		TimeToRate: e.timeToRate,
	}
}

// Option configures an ActiveLearner.
type Option func(*ActiveLearner)

// WithStrategy sets the selection strategy. The default is UncertaintySampling.
func WithStrategy(s Strategy) Option {
	return func(a *ActiveLearner) {
		if s != nil {
			a.strategy = s
		}
	}
}

// WithPrior uses a fitted DomainScoring as the prior mean of the model.
func WithPrior(d *scoring.DomainScoring) Option {
	return func(a *ActiveLearner) {
		a.prior = d
	}
}

// WithGPConfig sets the Gaussian-process hyper-parameters used for prediction
// and, unless WithStrategy is given, for selection.
func WithGPConfig(cfg GPConfig) Option {
	return func(a *ActiveLearner) {
		a.gpCfg = cfg
	}
}

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(a *ActiveLearner) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *ActiveLearner) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// ActiveLearner selects meta-paths for rating and learns from the ratings.
// It is not safe for concurrent use; callers serialize access per session.
type ActiveLearner struct {
	pool     []*entry
	byID     map[int]int
	nextID   int
	features [][]float64

	strategy Strategy
	prior    *scoring.DomainScoring
	gpCfg    GPConfig
	model    *gaussianProcess
	state    State

	clock  func() time.Time
	logger *slog.Logger
}

// NewActiveLearner creates a learner over pool. Pool order is the tie-break
// order for selection.
func NewActiveLearner(pool []*types.MetaPath, opts ...Option) (*ActiveLearner, error) {
	a := &ActiveLearner{
		byID:   make(map[int]int),
		nextID: 1,
		gpCfg:  DefaultGPConfig(),
		state:  StateInitialized,
		clock:  time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.strategy == nil {
		a.strategy = UncertaintySampling(a.gpCfg)
	}
	a.model = newGaussianProcess(a.gpCfg)

	seen := make(map[string]bool, len(pool))
	for i, mp := range pool {
		if mp == nil {
			return nil, fmt.Errorf("%w: index %d", ErrNilMetaPath, i)
		}
		if seen[mp.Key()] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateMetaPath, mp)
		}
		seen[mp.Key()] = true
		a.pool = append(a.pool, &entry{mp: mp, rating: types.DefaultRating, priorMean: a.priorMean(mp)})
	}
	a.features = labelCountFeatures(pool)
	if len(a.pool) == 0 {
		a.state = StateExhausted
	}

	a.logger.Debug("active learner created",
		"pool_size", len(a.pool),
		"strategy", a.strategy.Name(),
		"prior", a.prior != nil)
	return a, nil
}

func (a *ActiveLearner) priorMean(mp *types.MetaPath) float64 {
	if a.prior == nil || !a.prior.IsFitted() {
		return types.DefaultRating
	}
	v, err := a.prior.Score(mp)
	if err != nil {
		return types.DefaultRating
	}
	return v
}

// labelCountFeatures maps each meta-path to the count of every label in the
// pool vocabulary. Vocabulary order is sorted for determinism.
func labelCountFeatures(pool []*types.MetaPath) [][]float64 {
	vocab := make(map[string]int)
	var labels []string
	for _, mp := range pool {
		for _, l := range mp.AsList() {
			if _, ok := vocab[l]; !ok {
				vocab[l] = 0
				labels = append(labels, l)
			}
		}
	}
	sort.Strings(labels)
	for i, l := range labels {
		vocab[l] = i
	}

	features := make([][]float64, len(pool))
	for i, mp := range pool {
		row := make([]float64, len(labels))
		for _, l := range mp.AsList() {
			row[vocab[l]]++
		}
		features[i] = row
	}
	return features
}

// State reports the current lifecycle stage.
func (a *ActiveLearner) State() State { return a.state }

// PoolSize is the number of meta-paths in the pool.
func (a *ActiveLearner) PoolSize() int { return len(a.pool) }

// Remaining is the number of meta-paths never emitted.
func (a *ActiveLearner) Remaining() int {
	n := 0
	for _, e := range a.pool {
		if !e.emitted {
			n++
		}
	}
	return n
}

// RatedCount is the number of meta-paths with a human rating.
func (a *ActiveLearner) RatedCount() int {
	n := 0
	for _, e := range a.pool {
		if e.rated {
			n++
		}
	}
	return n
}

func (a *ActiveLearner) candidates() []int {
	var c []int
	for i, e := range a.pool {
		if !e.emitted {
			c = append(c, i)
		}
	}
	return c
}

func (a *ActiveLearner) observed() []int {
	var o []int
	for i, e := range a.pool {
		if e.emitted {
			o = append(o, i)
		}
	}
	return o
}

func (a *ActiveLearner) assignID(idx int) {
	e := a.pool[idx]
	e.id = a.nextID
	a.byID[e.id] = idx
	a.nextID++
}

// GetNext emits up to batchSize meta-paths that were never shown before.
func (a *ActiveLearner) GetNext(batchSize int) (Batch, error) {
	if batchSize < 1 {
		return Batch{}, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, batchSize)
	}
	cands := a.candidates()
	if len(cands) == 0 {
		return Batch{}, ErrExhausted
	}

	n := min(batchSize, len(cands))
	picked := a.strategy.Select(SelectionRequest{
		Features:   a.features,
		Observed:   a.observed(),
		Candidates: cands,
		N:          n,
	})

	now := a.clock()
	batch := Batch{MetaPaths: make([]types.RatedMetaPath, 0, len(picked))}
	for _, idx := range picked {
		a.assignID(idx)
		e := a.pool[idx]
		e.emitted = true
		e.emittedAt = now
		batch.MetaPaths = append(batch.MetaPaths, e.toRated())
	}
	batch.IsLast = len(cands) == len(picked)
	a.state = StateAwaitingRatings

	a.logger.Debug("emitted batch",
		"requested", batchSize,
		"emitted", len(batch.MetaPaths),
		"is_last", batch.IsLast)
	return batch, nil
}

// Update ingests ratings. Every record is validated before anything is
// applied; any invalid record fails the whole call.
func (a *ActiveLearner) Update(records []types.RatingRecord) error {
	seen := make(map[int]bool, len(records))
	for i := range records {
		r := &records[i]
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		id := *r.ID
		idx, ok := a.byID[id]
		if !ok || !a.pool[idx].emitted {
			return fmt.Errorf("record %d: %w: %d", i, ErrUnknownID, id)
		}
		e := a.pool[idx]
		if !slices.Equal(e.mp.AsList(), *r.MetaPath) {
			return fmt.Errorf("record %d: %w: %d", i, ErrMetaPathMismatch, id)
		}
		if e.rated {
			return fmt.Errorf("record %d: %w: %d", i, ErrAlreadyRated, id)
		}
		if seen[id] {
			return fmt.Errorf("record %d: %w: %d", i, ErrDuplicateID, id)
		}
		seen[id] = true
	}
	if len(records) == 0 {
		return nil
	}

	// Refit on the merged rating set before mutating any entry.
	newRatings := make(map[int]float64, len(records))
	for _, r := range records {
		newRatings[a.byID[*r.ID]] = *r.Rating
	}
	var inputs [][]float64
	var residuals []float64
	for i, e := range a.pool {
		rating, fresh := newRatings[i]
		switch {
		case fresh:
		case e.rated:
			rating = e.rating
		default:
			continue
		}
		inputs = append(inputs, a.features[i])
		residuals = append(residuals, rating-e.priorMean)
	}
	prevState := a.state
	a.state = StateUpdating
	if err := a.model.fit(inputs, residuals); err != nil {
		a.state = prevState
		return fmt.Errorf("refit model: %w", err)
	}

	now := a.clock()
	for _, r := range records {
		e := a.pool[a.byID[*r.ID]]
		e.rating = *r.Rating
		e.rated = true
		var d time.Duration
		if r.TimeToRate != nil {
			d = time.Duration(*r.TimeToRate * float64(time.Second))
		} else {
			d = now.Sub(e.emittedAt)
		}
		e.timeToRate = &d
	}

	if a.RatedCount() == len(a.pool) {
		a.state = StateExhausted
	}
	a.logger.Debug("ratings applied",
		"count", len(records),
		"rated_total", a.RatedCount(),
		"state", a.state.String())
	return nil
}

// Predict returns the model's expected rating for mp, clamped to [0, 1].
func (a *ActiveLearner) Predict(mp *types.MetaPath) (float64, bool) {
	for i, e := range a.pool {
		if e.mp.Equal(mp) {
			return a.predictIndex(i), true
		}
	}
	return 0, false
}

func (a *ActiveLearner) predictIndex(idx int) float64 {
	e := a.pool[idx]
	residual, _ := a.model.predictResidual(a.features[idx])
	return clamp01(e.priorMean + residual)
}

// Variance returns the current predictive variance for every pool entry, in
// pool order.
func (a *ActiveLearner) Variance() []float64 {
	out := make([]float64, len(a.pool))
	for i := range a.pool {
		_, out[i] = a.model.predictResidual(a.features[i])
	}
	return out
}

// CreateOutput returns every emitted meta-path ordered by id.
func (a *ActiveLearner) CreateOutput() []types.RatingOutput {
	var out []types.RatingOutput
	for _, e := range a.pool {
		if !e.emitted {
			continue
		}
		o := types.RatingOutput{
			ID:              e.id,
			MetaPath:        e.mp.AsList(),
			Representation:  e.mp.UIRepresentation(),
			Rating:          e.rating,
			Rated:           e.rated,
			StructuralValue: e.mp.StructuralValue(),
		}
		if e.timeToRate != nil {
			secs := e.timeToRate.Seconds()
			o.TimeToRateSeconds = &secs
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CompleteRating returns every pool meta-path with a domain value: the human
// rating when rated, the model's prediction otherwise. Entries never emitted
// carry provisional ids numbered after the last emitted id, in pool order;
// GetNext may later assign them different ids. The returned slice is ordered
// by id.
func (a *ActiveLearner) CompleteRating() []types.RatedMetaPath {
	out := make([]types.RatedMetaPath, 0, len(a.pool))
	provisional := a.nextID
	for i, e := range a.pool {
		r := e.toRated()
		if !e.emitted {
			r.ID = provisional
			provisional++
		}
		if !e.rated {
			r.Rating = a.predictIndex(i)
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
