// Package explanation turns a complete meta-path rating into a similarity
// score between two node sets and a breakdown of which meta-paths contribute
// to it.
package explanation

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/soundprediction/metaexp/pkg/types"
)

var (
	// ErrNoRatings is returned by Refresh when the rating source is empty.
	ErrNoRatings = errors.New("no rated meta-paths")
	// ErrNotFound is returned for an unknown contributing meta-path id.
	ErrNotFound = errors.New("contributing meta-path not found")
)

const (
	DefaultTopK          = 5
	DefaultInstanceLimit = 5

	othersID       = 0
	othersLabel    = "Others"
	othersMetaPath = "Seen on Explore Page"
	othersQuery    = "RETURN 1"
)

// RatingSource supplies the complete current rating. ActiveLearner implements it.
type RatingSource interface {
	CompleteRating() []types.RatedMetaPath
}

// RatingSourceFunc adapts a function to RatingSource.
type RatingSourceFunc func() []types.RatedMetaPath

func (f RatingSourceFunc) CompleteRating() []types.RatedMetaPath { return f() }

// ContributingMetaPath is one slice of the contribution breakdown.
type ContributingMetaPath struct {
	ID                  int     `json:"id"`
	Label               string  `json:"label"`
	Value               float64 `json:"value"`
	Color               string  `json:"color"`
	SimilarityScore     float64 `json:"similarity_score"`
	StructuralValue     float64 `json:"structural_value"`
	MetaPath            string  `json:"metapath"`
	InstanceQuery       string  `json:"instance_query"`
	ContributionRanking int     `json:"contribution_ranking"`
}

// MetaPathDetail is the denormalized view of a single contributor.
type MetaPathDetail struct {
	ID                  int     `json:"id"`
	Name                string  `json:"name"`
	StructuralValue     float64 `json:"structural_value"`
	ContributionRanking int     `json:"contribution_ranking"`
	ContributionValue   float64 `json:"contribution_value"`
	MetaPath            string  `json:"meta_path"`
	InstanceQuery       string  `json:"instance_query"`
}

// Option configures a SimilarityScore.
type Option func(*SimilarityScore)

// WithTopK sets how many meta-paths are explained individually.
func WithTopK(k int) Option {
	return func(s *SimilarityScore) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithInstanceLimit sets the row limit of generated instance queries.
func WithInstanceLimit(limit int) Option {
	return func(s *SimilarityScore) {
		if limit > 0 {
			s.instanceLimit = limit
		}
	}
}

// WithColorGenerator replaces the default seeded color generator.
func WithColorGenerator(g ColorGenerator) Option {
	return func(s *SimilarityScore) {
		if g != nil {
			s.colors = g
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *SimilarityScore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// SimilarityScore computes how similar two node sets are given the rated
// meta-paths connecting them.
type SimilarityScore struct {
	source        RatingSource
	dataset       string
	startIDs      []int64
	endIDs        []int64
	topK          int
	instanceLimit int
	colors        ColorGenerator
	logger        *slog.Logger

	metaPaths    []types.RatedMetaPath
	scores       []float64
	score        float64
	topKIdx      []int
	contributing []ContributingMetaPath
}

// NewSimilarityScore creates a SimilarityScore for the given node sets.
// Nothing is computed until Refresh.
func NewSimilarityScore(source RatingSource, dataset string, startIDs, endIDs []int64, opts ...Option) *SimilarityScore {
	s := &SimilarityScore{
		source:        source,
		dataset:       dataset,
		startIDs:      append([]int64(nil), startIDs...),
		endIDs:        append([]int64(nil), endIDs...),
		topK:          DefaultTopK,
		instanceLimit: DefaultInstanceLimit,
		colors:        NewColorGenerator(1),
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Computed reports whether Refresh has produced results.
func (s *SimilarityScore) Computed() bool { return len(s.contributing) > 0 }

// NodeSets returns the compared node sets.
func (s *SimilarityScore) NodeSets() (startIDs, endIDs []int64) {
	return append([]int64(nil), s.startIDs...), append([]int64(nil), s.endIDs...)
}

// Dataset returns the dataset the node sets belong to.
func (s *SimilarityScore) Dataset() string { return s.dataset }

// Refresh pulls the complete rating and recomputes score and contributors.
func (s *SimilarityScore) Refresh() error {
	mps := s.source.CompleteRating()
	if len(mps) == 0 {
		return ErrNoRatings
	}
	s.metaPaths = mps

	s.ComputeSimilarityScore()
	s.ComputeTopKContributingMetaPaths(s.topK)
	s.ComputeContributingMetaPaths()

	s.logger.Debug("similarity refreshed",
		"dataset", s.dataset,
		"meta_paths", len(s.metaPaths),
		"score", s.score,
		"contributors", len(s.contributing))
	return nil
}

// ComputeSimilarityScore combines normalized structural values with rescaled
// domain values and averages the per-meta-path products.
func (s *SimilarityScore) ComputeSimilarityScore() {
	n := len(s.metaPaths)
	s.scores = make([]float64, n)
	s.score = 0
	if n == 0 {
		return
	}

	structural := make([]float64, n)
	domain := make([]float64, n)
	for i := range s.metaPaths {
		structural[i] = s.metaPaths[i].StructuralValue()
		domain[i] = s.metaPaths[i].DomainValue()
	}

	weights := normalizeStructural(structural)
	rescaled := rescale(domain)
	floats.MulTo(s.scores, weights, rescaled)
	s.score = floats.Sum(s.scores) / float64(n)
}

// normalizeStructural divides by the sum, falling back to uniform weights
// when the sum is not positive.
func normalizeStructural(values []float64) []float64 {
	out := make([]float64, len(values))
	sum := floats.Sum(values)
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		for i := range out {
			out[i] = 1 / float64(len(values))
		}
		return out
	}
	copy(out, values)
	floats.Scale(1/sum, out)
	return out
}

// rescale shifts every value by the range of the array.
func rescale(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	if len(values) == 0 {
		return out
	}
	floats.AddConst(floats.Max(values)-floats.Min(values), out)
	return out
}

// softmax is max-shifted for stability and uniform when the mass degenerates.
func softmax(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	uniform := func() []float64 {
		for i := range out {
			out[i] = 1 / float64(len(values))
		}
		return out
	}
	m := floats.Max(values)
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return uniform()
	}
	for i, v := range values {
		out[i] = math.Exp(v - m)
	}
	total := floats.Sum(out)
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return uniform()
	}
	floats.Scale(1/total, out)
	return out
}

// ComputeTopKContributingMetaPaths softmax-normalizes the per-meta-path
// scores and keeps the k highest. The kept indices are stored in ascending
// score order; equal scores keep input order.
func (s *SimilarityScore) ComputeTopKContributingMetaPaths(k int) {
	s.scores = softmax(s.scores)
	idx := make([]int, len(s.scores))
	for i := range idx {
		idx[i] = i
	}
	// Descending by score, ties by input order, then reversed.
	sort.SliceStable(idx, func(a, b int) bool { return s.scores[idx[a]] > s.scores[idx[b]] })
	if k < len(idx) {
		idx = idx[:max(k, 0)]
	}
	for i, j := 0, len(idx)-1; i < j; i, j = i+1, j-1 {
		idx[i], idx[j] = idx[j], idx[i]
	}
	s.topKIdx = idx
}

// ComputeContributingMetaPaths builds the contribution records for the top-k
// meta-paths plus an "Others" entry holding the residual mass.
func (s *SimilarityScore) ComputeContributingMetaPaths() {
	contributing := make([]ContributingMetaPath, 0, len(s.topKIdx)+1)
	var topScore, topStructural float64
	for _, i := range s.topKIdx {
		mp := s.metaPaths[i]
		ui := mp.MetaPath.UIRepresentation()
		contributing = append(contributing, ContributingMetaPath{
			ID:              mp.ID,
			Label:           "Meta-Path " + strconv.Itoa(mp.ID),
			Value:           round2(s.scores[i] * 100),
			Color:           s.colors.Next(),
			SimilarityScore: s.scores[i],
			StructuralValue: mp.StructuralValue(),
			MetaPath:        ui,
			InstanceQuery:   s.InstanceQuery(mp.MetaPath),
		})
		topScore += s.scores[i]
		topStructural += mp.StructuralValue()
	}

	order := make([]int, len(contributing))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return contributing[order[a]].SimilarityScore > contributing[order[b]].SimilarityScore
	})
	for rank, i := range order {
		contributing[i].ContributionRanking = rank + 1
	}

	var totalStructural float64
	for i := range s.metaPaths {
		totalStructural += s.metaPaths[i].StructuralValue()
	}
	residual := math.Max(0, 1-topScore)
	others := ContributingMetaPath{
		ID:                  othersID,
		Label:               othersLabel,
		Value:               round2(residual * 100),
		Color:               s.colors.Next(),
		SimilarityScore:     residual,
		StructuralValue:     math.Max(0, totalStructural-topStructural),
		MetaPath:            othersMetaPath,
		InstanceQuery:       othersQuery,
		ContributionRanking: 0,
	}
	s.contributing = append([]ContributingMetaPath{others}, contributing...)
}

// InstanceQuery renders the Cypher query listing instances of mp between the
// two node sets.
func (s *SimilarityScore) InstanceQuery(mp *types.MetaPath) string {
	return fmt.Sprintf("MATCH p = %s WHERE ID(n0) in %s and ID(n%d) in %s RETURN p LIMIT %d",
		mp.UIRepresentation(),
		formatIDs(s.startIDs),
		mp.NumberNodeTypes()-1,
		formatIDs(s.endIDs),
		s.instanceLimit)
}

func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// SimilarityScore returns the score rounded to two decimals.
func (s *SimilarityScore) SimilarityScore() float64 {
	return round2(s.score)
}

// ContributingMetaPath returns the detail record for id.
func (s *SimilarityScore) ContributingMetaPath(id int) (*MetaPathDetail, error) {
	for _, c := range s.contributing {
		if c.ID != id {
			continue
		}
		return &MetaPathDetail{
			ID:                  c.ID,
			Name:                "Meta-Path " + strconv.Itoa(c.ID),
			StructuralValue:     c.StructuralValue,
			ContributionRanking: c.ContributionRanking,
			ContributionValue:   round2(c.SimilarityScore * 100),
			MetaPath:            c.MetaPath,
			InstanceQuery:       c.InstanceQuery,
		}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
}

// ContributingMetaPaths returns contributors from most to least important,
// with "Others" last.
func (s *SimilarityScore) ContributingMetaPaths() []ContributingMetaPath {
	out := make([]ContributingMetaPath, len(s.contributing))
	for i, c := range s.contributing {
		out[len(out)-1-i] = c
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
