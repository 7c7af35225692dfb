package learning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/metaexp/pkg/ranking"
	"github.com/soundprediction/metaexp/pkg/scoring"
	"github.com/soundprediction/metaexp/pkg/types"
)

func testPool() []*types.MetaPath {
	return []*types.MetaPath{
		types.MustMetaPath(10, "Movie", "HAS_ACTOR", "Actor"),
		types.MustMetaPath(8, "Movie", "HAS_ACTOR", "Actor", "ACTED_IN", "Movie"),
		types.MustMetaPath(5, "Studio", "PRODUCED", "Genre"),
		types.MustMetaPath(3, "Movie", "HAS_GENRE", "Genre"),
	}
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func rate(t *testing.T, batch Batch, rating float64) []types.RatingRecord {
	t.Helper()
	records := make([]types.RatingRecord, 0, len(batch.MetaPaths))
	for _, mp := range batch.MetaPaths {
		records = append(records, types.NewRatingRecord(mp.ID, mp.MetaPath.AsList(), rating))
	}
	return records
}

func TestNewActiveLearner(t *testing.T) {
	t.Run("initial state", func(t *testing.T) {
		a, err := NewActiveLearner(testPool())
		require.NoError(t, err)
		assert.Equal(t, StateInitialized, a.State())
		assert.Equal(t, 4, a.PoolSize())
		assert.Equal(t, 4, a.Remaining())
		assert.Zero(t, a.RatedCount())
	})

	t.Run("empty pool is exhausted", func(t *testing.T) {
		a, err := NewActiveLearner(nil)
		require.NoError(t, err)
		assert.Equal(t, StateExhausted, a.State())
		_, err = a.GetNext(3)
		assert.ErrorIs(t, err, ErrExhausted)
	})

	t.Run("rejects nil entries", func(t *testing.T) {
		_, err := NewActiveLearner([]*types.MetaPath{nil})
		assert.ErrorIs(t, err, ErrNilMetaPath)
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		pool := testPool()
		pool = append(pool, types.MustMetaPath(1, "Movie", "HAS_ACTOR", "Actor"))
		_, err := NewActiveLearner(pool)
		assert.ErrorIs(t, err, ErrDuplicateMetaPath)
	})
}

func TestGetNext(t *testing.T) {
	t.Run("invalid batch size", func(t *testing.T) {
		a, err := NewActiveLearner(testPool())
		require.NoError(t, err)
		_, err = a.GetNext(0)
		assert.ErrorIs(t, err, ErrInvalidBatchSize)
		assert.Equal(t, StateInitialized, a.State())
	})

	t.Run("greedy variance picks the dissimilar path", func(t *testing.T) {
		a, err := NewActiveLearner(testPool())
		require.NoError(t, err)

		batch, err := a.GetNext(2)
		require.NoError(t, err)
		require.Len(t, batch.MetaPaths, 2)
		assert.False(t, batch.IsLast)
		assert.Equal(t, StateAwaitingRatings, a.State())

		// With no observations every variance ties, so pool order wins.
		assert.Equal(t, 1, batch.MetaPaths[0].ID)
		assert.Equal(t, "Movie|HAS_ACTOR|Actor", batch.MetaPaths[0].MetaPath.Key())
		assert.Equal(t, 2, batch.MetaPaths[1].ID)
		assert.Equal(t, "Studio|PRODUCED|Genre", batch.MetaPaths[1].MetaPath.Key())
		for _, mp := range batch.MetaPaths {
			assert.Equal(t, types.DefaultRating, mp.Rating)
			assert.False(t, mp.Rated)
		}
	})

	t.Run("deterministic for identical state", func(t *testing.T) {
		a1, err := NewActiveLearner(testPool())
		require.NoError(t, err)
		a2, err := NewActiveLearner(testPool())
		require.NoError(t, err)

		for {
			b1, err1 := a1.GetNext(1)
			b2, err2 := a2.GetNext(1)
			assert.Equal(t, err1, err2)
			if err1 != nil {
				break
			}
			require.Len(t, b1.MetaPaths, 1)
			require.Len(t, b2.MetaPaths, 1)
			assert.Equal(t, b1.MetaPaths[0].MetaPath.Key(), b2.MetaPaths[0].MetaPath.Key())
			assert.Equal(t, b1.IsLast, b2.IsLast)
		}
	})

	t.Run("short last batch then exhausted", func(t *testing.T) {
		a, err := NewActiveLearner(testPool())
		require.NoError(t, err)

		first, err := a.GetNext(3)
		require.NoError(t, err)
		assert.Len(t, first.MetaPaths, 3)
		assert.False(t, first.IsLast)

		last, err := a.GetNext(3)
		require.NoError(t, err)
		assert.Len(t, last.MetaPaths, 1)
		assert.True(t, last.IsLast)

		_, err = a.GetNext(1)
		assert.ErrorIs(t, err, ErrExhausted)
	})

	t.Run("never re-emits", func(t *testing.T) {
		a, err := NewActiveLearner(testPool())
		require.NoError(t, err)
		seen := map[string]bool{}
		ids := map[int]bool{}
		for {
			batch, err := a.GetNext(1)
			if err != nil {
				assert.ErrorIs(t, err, ErrExhausted)
				break
			}
			for _, mp := range batch.MetaPaths {
				assert.False(t, seen[mp.MetaPath.Key()], "re-emitted %s", mp.MetaPath)
				assert.False(t, ids[mp.ID], "reused id %d", mp.ID)
				seen[mp.MetaPath.Key()] = true
				ids[mp.ID] = true
			}
			require.NoError(t, a.Update(rate(t, batch, 0.7)))
		}
		assert.Len(t, seen, 4)
		assert.Equal(t, StateExhausted, a.State())
	})
}

func TestUpdate(t *testing.T) {
	setup := func(t *testing.T) (*ActiveLearner, Batch, *fakeClock) {
		t.Helper()
		clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
		a, err := NewActiveLearner(testPool(), WithClock(clock.Now))
		require.NoError(t, err)
		batch, err := a.GetNext(2)
		require.NoError(t, err)
		return a, batch, clock
	}

	t.Run("applies ratings", func(t *testing.T) {
		a, batch, clock := setup(t)
		clock.Advance(3 * time.Second)

		require.NoError(t, a.Update(rate(t, batch, 0.9)))
		assert.Equal(t, StateUpdating, a.State())
		assert.Equal(t, 2, a.RatedCount())

		out := a.CreateOutput()
		require.Len(t, out, 2)
		for i, o := range out {
			assert.Equal(t, i+1, o.ID)
			assert.True(t, o.Rated)
			assert.Equal(t, 0.9, o.Rating)
			require.NotNil(t, o.TimeToRateSeconds)
			assert.InDelta(t, 3.0, *o.TimeToRateSeconds, 1e-9)
		}
	})

	t.Run("explicit time to rate wins", func(t *testing.T) {
		a, batch, _ := setup(t)
		records := rate(t, batch, 0.4)
		secs := 1.5
		records[0].TimeToRate = &secs

		require.NoError(t, a.Update(records))
		out := a.CreateOutput()
		require.NotNil(t, out[0].TimeToRateSeconds)
		assert.InDelta(t, 1.5, *out[0].TimeToRateSeconds, 1e-9)
	})

	t.Run("empty update is a no-op", func(t *testing.T) {
		a, _, _ := setup(t)
		require.NoError(t, a.Update(nil))
		assert.Equal(t, StateAwaitingRatings, a.State())
	})

	tests := []struct {
		name   string
		mutate func(records []types.RatingRecord) []types.RatingRecord
		want   error
	}{
		{
			name: "missing rating",
			mutate: func(r []types.RatingRecord) []types.RatingRecord {
				r[1].Rating = nil
				return r
			},
			want: types.ErrMissingKey,
		},
		{
			name: "missing id",
			mutate: func(r []types.RatingRecord) []types.RatingRecord {
				r[1].ID = nil
				return r
			},
			want: types.ErrMissingKey,
		},
		{
			name: "rating out of range",
			mutate: func(r []types.RatingRecord) []types.RatingRecord {
				v := 1.5
				r[1].Rating = &v
				return r
			},
			want: types.ErrRatingOutOfRange,
		},
		{
			name: "unknown id",
			mutate: func(r []types.RatingRecord) []types.RatingRecord {
				return append(r, types.NewRatingRecord(99, []string{"A", "r", "B"}, 0.5))
			},
			want: ErrUnknownID,
		},
		{
			name: "metapath mismatch",
			mutate: func(r []types.RatingRecord) []types.RatingRecord {
				mp := []string{"Movie", "HAS_GENRE", "Genre"}
				r[1].MetaPath = &mp
				return r
			},
			want: ErrMetaPathMismatch,
		},
		{
			name: "duplicate id",
			mutate: func(r []types.RatingRecord) []types.RatingRecord {
				return append(r, r[0])
			},
			want: ErrDuplicateID,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name+" rejects whole batch", func(t *testing.T) {
			a, batch, _ := setup(t)
			err := a.Update(tt.mutate(rate(t, batch, 0.8)))
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, a.RatedCount())
			assert.Equal(t, StateAwaitingRatings, a.State())
			for _, o := range a.CreateOutput() {
				assert.False(t, o.Rated)
				assert.Equal(t, types.DefaultRating, o.Rating)
			}
		})
	}

	t.Run("re-rating is rejected", func(t *testing.T) {
		a, batch, _ := setup(t)
		require.NoError(t, a.Update(rate(t, batch, 0.8)))
		err := a.Update(rate(t, batch, 0.1))
		assert.ErrorIs(t, err, ErrAlreadyRated)
		for _, o := range a.CreateOutput() {
			assert.Equal(t, 0.8, o.Rating)
		}
	})
}

func TestModelLearnsFromRatings(t *testing.T) {
	a, err := NewActiveLearner(testPool())
	require.NoError(t, err)

	before := a.Variance()
	for _, v := range before {
		assert.InDelta(t, DefaultGPConfig().SignalVariance, v, 1e-12)
	}

	batch, err := a.GetNext(1)
	require.NoError(t, err)
	require.NoError(t, a.Update(rate(t, batch, 1.0)))

	after := a.Variance()
	assert.Less(t, after[0], before[0])

	pred, ok := a.Predict(testPool()[0])
	require.True(t, ok)
	assert.Greater(t, pred, 0.9)

	// A path sharing labels moves towards the rating more than a disjoint one.
	near, ok := a.Predict(testPool()[1])
	require.True(t, ok)
	far, ok := a.Predict(testPool()[2])
	require.True(t, ok)
	assert.Greater(t, near, far)

	_, ok = a.Predict(types.MustMetaPath(1, "X", "y", "Z"))
	assert.False(t, ok)
}

func TestCompleteRating(t *testing.T) {
	a, err := NewActiveLearner(testPool())
	require.NoError(t, err)

	batch, err := a.GetNext(1)
	require.NoError(t, err)
	require.NoError(t, a.Update(rate(t, batch, 0.2)))

	complete := a.CompleteRating()
	require.Len(t, complete, 4)
	for i, r := range complete {
		assert.Equal(t, i+1, r.ID)
		assert.GreaterOrEqual(t, r.Rating, 0.0)
		assert.LessOrEqual(t, r.Rating, 1.0)
	}
	assert.True(t, complete[0].Rated)
	assert.Equal(t, 0.2, complete[0].Rating)
	for _, r := range complete[1:] {
		assert.False(t, r.Rated)
	}

	// Provisional ids are not reserved: emission keeps numbering sequential.
	assert.Equal(t, 3, a.Remaining())
	next, err := a.GetNext(3)
	require.NoError(t, err)
	assert.True(t, next.IsLast)
	for i, mp := range next.MetaPaths {
		assert.Equal(t, i+2, mp.ID)
	}
	after := a.CompleteRating()
	require.Len(t, after, 4)
	for i, r := range after {
		assert.Equal(t, i+1, r.ID)
	}
}

func TestEmissionIDsStaySequential(t *testing.T) {
	a, err := NewActiveLearner(testPool())
	require.NoError(t, err)

	first, err := a.GetNext(1)
	require.NoError(t, err)
	require.NoError(t, a.Update(rate(t, first, 0.4)))
	a.CompleteRating()

	var ids []int
	for _, mp := range first.MetaPaths {
		ids = append(ids, mp.ID)
	}
	for {
		batch, err := a.GetNext(1)
		if err != nil {
			assert.ErrorIs(t, err, ErrExhausted)
			break
		}
		a.CompleteRating()
		for _, mp := range batch.MetaPaths {
			ids = append(ids, mp.ID)
		}
	}
	assert.Equal(t, []int{1, 2, 3, 4}, ids)

	out := a.CreateOutput()
	require.Len(t, out, 4)
	for i, o := range out {
		assert.Equal(t, i+1, o.ID)
	}
}

func TestUncertaintySamplingWithoutObservations(t *testing.T) {
	pool := testPool()
	s := UncertaintySampling(DefaultGPConfig())
	picked := s.Select(SelectionRequest{
		Features:   labelCountFeatures(pool),
		Candidates: []int{0, 1, 2, 3},
		N:          1,
	})
	assert.Equal(t, []int{0}, picked)
}

func TestPriorMean(t *testing.T) {
	pool := testPool()
	g, err := ranking.FromChains(
		[]*types.MetaPath{pool[0], pool[3], pool[2]},
	)
	require.NoError(t, err)
	prior := scoring.New()
	require.NoError(t, prior.Fit(g))

	a, err := NewActiveLearner(pool, WithPrior(prior))
	require.NoError(t, err)

	top, ok := a.Predict(pool[0])
	require.True(t, ok)
	bottom, ok := a.Predict(pool[2])
	require.True(t, ok)
	assert.Greater(t, top, bottom)
}

func TestRandomSampling(t *testing.T) {
	order := func(seed int64) []string {
		a, err := NewActiveLearner(testPool(), WithStrategy(RandomSampling(seed)))
		require.NoError(t, err)
		var keys []string
		for {
			batch, err := a.GetNext(1)
			if err != nil {
				assert.ErrorIs(t, err, ErrExhausted)
				return keys
			}
			for _, mp := range batch.MetaPaths {
				keys = append(keys, mp.MetaPath.Key())
			}
		}
	}

	first := order(42)
	assert.Equal(t, first, order(42))
	assert.Len(t, first, 4)
	assert.ElementsMatch(t, first, []string{
		"Movie|HAS_ACTOR|Actor",
		"Movie|HAS_ACTOR|Actor|ACTED_IN|Movie",
		"Studio|PRODUCED|Genre",
		"Movie|HAS_GENRE|Genre",
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "initialized", StateInitialized.String())
	assert.Equal(t, "awaiting-ratings", StateAwaitingRatings.String())
	assert.Equal(t, "updating", StateUpdating.String())
	assert.Equal(t, "exhausted", StateExhausted.String())
	assert.Equal(t, "State(9)", State(9).String())
}
