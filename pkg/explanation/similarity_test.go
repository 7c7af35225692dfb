package explanation

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/metaexp/pkg/types"
)

func rated(id int, structural, domain float64, labels ...string) types.RatedMetaPath {
	return types.RatedMetaPath{
		ID:       id,
		MetaPath: types.MustMetaPath(structural, labels...),
		Rating:   domain,
		Rated:    true,
	}
}

func threePaths() []types.RatedMetaPath {
	return []types.RatedMetaPath{
		rated(1, 10, 0.1, "Movie", "HAS_ACTOR", "Actor"),
		rated(2, 20, 0.5, "Movie", "HAS_GENRE", "Genre"),
		rated(3, 30, 0.9, "Movie", "PRODUCED_BY", "Studio", "PRODUCED", "Movie"),
	}
}

func sourceOf(mps []types.RatedMetaPath) RatingSource {
	return RatingSourceFunc(func() []types.RatedMetaPath { return mps })
}

func TestSimilarityScoreScenario(t *testing.T) {
	s := NewSimilarityScore(sourceOf(threePaths()), "rotten_tomatoes", []int64{1, 2}, []int64{3})
	assert.False(t, s.Computed())
	require.NoError(t, s.Refresh())
	assert.True(t, s.Computed())
	start, end := s.NodeSets()
	assert.Equal(t, []int64{1, 2}, start)
	assert.Equal(t, []int64{3}, end)

	// weights [1/6, 1/3, 1/2], rescaled domain [0.9, 1.3, 1.7]
	assert.InDelta(t, (0.15+1.3/3+0.85)/3, s.score, 1e-12)
	assert.Equal(t, 0.48, s.SimilarityScore())
	assert.Equal(t, "rotten_tomatoes", s.Dataset())
}

func TestRefreshEmptyRating(t *testing.T) {
	s := NewSimilarityScore(sourceOf(nil), "d", nil, nil)
	assert.ErrorIs(t, s.Refresh(), ErrNoRatings)
}

func TestSimilarityScoreBounds(t *testing.T) {
	tests := []struct {
		name string
		mps  []types.RatedMetaPath
	}{
		{"single", []types.RatedMetaPath{rated(1, 4, 1, "A", "r", "B")}},
		{"zero structural", []types.RatedMetaPath{
			rated(1, 0, 1, "A", "r", "B"),
			rated(2, 0, 0, "A", "s", "B"),
		}},
		{"extreme domain", []types.RatedMetaPath{
			rated(1, 1, 1, "A", "r", "B"),
			rated(2, 1000, 0, "A", "s", "B"),
			rated(3, 1, 1, "A", "t", "B"),
		}},
		{"all max", []types.RatedMetaPath{
			rated(1, 5, 1, "A", "r", "B"),
			rated(2, 5, 1, "A", "s", "B"),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSimilarityScore(sourceOf(tt.mps), "d", nil, nil)
			require.NoError(t, s.Refresh())
			assert.GreaterOrEqual(t, s.SimilarityScore(), 0.0)
			assert.LessOrEqual(t, s.SimilarityScore(), 1.0)
		})
	}
}

func TestRescale(t *testing.T) {
	assert.InDeltaSlice(t, []float64{0.9, 1.3, 1.7}, rescale([]float64{0.1, 0.5, 0.9}), 1e-12)
	assert.Equal(t, []float64{0.3, 0.3}, rescale([]float64{0.3, 0.3}))
	assert.Empty(t, rescale(nil))
}

func TestSoftmax(t *testing.T) {
	out := softmax([]float64{1, 2, 3})
	assert.InDelta(t, 1.0, out[0]+out[1]+out[2], 1e-12)
	assert.Less(t, out[0], out[1])
	assert.Less(t, out[1], out[2])

	big := softmax([]float64{1000, 1000})
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, big, 1e-12)

	degenerate := softmax([]float64{math.Inf(1), 1})
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, degenerate, 1e-12)
}

func TestTopK(t *testing.T) {
	t.Run("fewer than k returns all", func(t *testing.T) {
		s := NewSimilarityScore(sourceOf(threePaths()), "d", nil, nil)
		require.NoError(t, s.Refresh())
		assert.Len(t, s.topKIdx, 3)
		assert.Len(t, s.ContributingMetaPaths(), 4)
	})

	t.Run("keeps the k highest in ascending order", func(t *testing.T) {
		s := NewSimilarityScore(sourceOf(threePaths()), "d", nil, nil, WithTopK(2))
		require.NoError(t, s.Refresh())
		assert.Equal(t, []int{1, 2}, s.topKIdx)
	})
}

func TestContributingMetaPaths(t *testing.T) {
	s := NewSimilarityScore(sourceOf(threePaths()), "d", []int64{1, 2}, []int64{3}, WithTopK(2))
	require.NoError(t, s.Refresh())

	got := s.ContributingMetaPaths()
	require.Len(t, got, 3)

	others := got[len(got)-1]
	assert.Equal(t, 0, others.ID)
	assert.Equal(t, "Others", others.Label)
	assert.Equal(t, 0, others.ContributionRanking)
	assert.Equal(t, "Seen on Explore Page", others.MetaPath)
	assert.Equal(t, "RETURN 1", others.InstanceQuery)
	assert.InDelta(t, 10.0, others.StructuralValue, 1e-12)

	zeroRanked := 0
	ranks := map[int]bool{}
	mass := 0.0
	for _, c := range got {
		mass += c.SimilarityScore
		if c.ContributionRanking == 0 {
			zeroRanked++
			continue
		}
		assert.False(t, ranks[c.ContributionRanking], "duplicate rank %d", c.ContributionRanking)
		ranks[c.ContributionRanking] = true
		assert.True(t, strings.HasPrefix(c.Color, "hsl("))
		assert.Equal(t, "Meta-Path "+strconv.Itoa(c.ID), c.Label)
	}
	assert.Equal(t, 1, zeroRanked)
	assert.Equal(t, map[int]bool{1: true, 2: true}, ranks)
	assert.InDelta(t, 1.0, mass, 1e-9)

	// Display order is most to least important.
	assert.Equal(t, 3, got[0].ID)
	assert.Equal(t, 1, got[0].ContributionRanking)
	assert.Equal(t, 2, got[1].ID)
	assert.Equal(t, 2, got[1].ContributionRanking)
	assert.GreaterOrEqual(t, got[0].SimilarityScore, got[1].SimilarityScore)
}

func TestContributingMetaPathByID(t *testing.T) {
	s := NewSimilarityScore(sourceOf(threePaths()), "d", []int64{1, 2}, []int64{3})
	require.NoError(t, s.Refresh())

	detail, err := s.ContributingMetaPath(3)
	require.NoError(t, err)
	assert.Equal(t, "Meta-Path 3", detail.Name)
	assert.Equal(t, 30.0, detail.StructuralValue)
	assert.Equal(t, 1, detail.ContributionRanking)
	assert.Equal(t, "(n0:Movie)-[:PRODUCED_BY]-(n1:Studio)-[:PRODUCED]-(n2:Movie)", detail.MetaPath)
	assert.Equal(t,
		"MATCH p = (n0:Movie)-[:PRODUCED_BY]-(n1:Studio)-[:PRODUCED]-(n2:Movie) WHERE ID(n0) in [1,2] and ID(n2) in [3] RETURN p LIMIT 5",
		detail.InstanceQuery)

	others, err := s.ContributingMetaPath(0)
	require.NoError(t, err)
	assert.Equal(t, 0, others.ContributionRanking)

	_, err = s.ContributingMetaPath(42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInstanceQueryLimit(t *testing.T) {
	s := NewSimilarityScore(sourceOf(nil), "d", []int64{7}, []int64{8, 9}, WithInstanceLimit(20))
	q := s.InstanceQuery(types.MustMetaPath(1, "A", "r", "B"))
	assert.Equal(t, "MATCH p = (n0:A)-[:r]-(n1:B) WHERE ID(n0) in [7] and ID(n1) in [8,9] RETURN p LIMIT 20", q)
}

func TestColorsAreReproducible(t *testing.T) {
	run := func() []string {
		s := NewSimilarityScore(sourceOf(threePaths()), "d", nil, nil, WithColorGenerator(NewColorGenerator(7)))
		require.NoError(t, s.Refresh())
		var colors []string
		for _, c := range s.ContributingMetaPaths() {
			colors = append(colors, c.Color)
		}
		return colors
	}
	assert.Equal(t, run(), run())
}

func TestSimilarNodes(t *testing.T) {
	nodes := SimilarNodes()
	require.Len(t, nodes, 4)
	for _, n := range nodes {
		assert.Equal(t, "MATCH (n) RETURN n LIMIT 1", n.CypherQuery)
		assert.NotEmpty(t, n.Properties["name"])
	}
}
