package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/metaexp/pkg/config"
	"github.com/soundprediction/metaexp/pkg/types"
)

func sampleRecord(dataset, user string, ended time.Time) *SessionRecord {
	secs := 2.5
	return &SessionRecord{
		SessionID:    "3f7c",
		Dataset:      dataset,
		Username:     user,
		Purpose:      "evaluation",
		StartNodeIDs: []int64{1, 2},
		EndNodeIDs:   []int64{3},
		StartedAt:    ended.Add(-time.Minute),
		EndedAt:      ended,
		MetaPaths: []types.RatingOutput{
			{
				ID:                1,
				MetaPath:          []string{"Movie", "HAS_ACTOR", "Actor"},
				Representation:    "(n0:Movie)-[:HAS_ACTOR]-(n1:Actor)",
				Rating:            0.8,
				Rated:             true,
				TimeToRateSeconds: &secs,
				StructuralValue:   10,
			},
			{
				ID:              2,
				MetaPath:        []string{"Movie", "HAS_GENRE", "Genre"},
				Representation:  "(n0:Movie)-[:HAS_GENRE]-(n1:Genre)",
				Rating:          0.5,
				StructuralValue: 20,
			},
		},
	}
}

// storeFactories builds every backend against a fresh location.
func storeFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"json": func(t *testing.T) Store {
			s, err := NewJSONStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
		"parquet": func(t *testing.T) Store {
			s, err := NewParquetStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
		"badger": func(t *testing.T) Store {
			s, err := NewBadgerStore(BadgerOptions{InMemory: true})
			require.NoError(t, err)
			return s
		},
	}
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			t.Cleanup(func() { _ = s.Close() })

			require.NoError(t, s.Save(ctx, sampleRecord("rotten_tomatoes", "alice", base.Add(2*time.Hour))))
			require.NoError(t, s.Save(ctx, sampleRecord("rotten_tomatoes", "bob", base)))
			require.NoError(t, s.Save(ctx, sampleRecord("movies_small", "alice", base)))

			got, err := s.List(ctx, "rotten_tomatoes")
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "bob", got[0].Username)
			assert.Equal(t, "alice", got[1].Username)
			assert.True(t, got[1].EndedAt.Equal(base.Add(2*time.Hour)))

			r := got[0]
			assert.Equal(t, "evaluation", r.Purpose)
			assert.Equal(t, []int64{1, 2}, r.StartNodeIDs)
			require.Len(t, r.MetaPaths, 2)
			assert.Equal(t, []string{"Movie", "HAS_ACTOR", "Actor"}, r.MetaPaths[0].MetaPath)
			assert.True(t, r.MetaPaths[0].Rated)
			require.NotNil(t, r.MetaPaths[0].TimeToRateSeconds)
			assert.Equal(t, 2.5, *r.MetaPaths[0].TimeToRateSeconds)
			assert.Nil(t, r.MetaPaths[1].TimeToRateSeconds)
			assert.Equal(t, 20.0, r.MetaPaths[1].StructuralValue)

			all, err := s.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

func TestStoresKeepSameSecondSessions(t *testing.T) {
	ctx := context.Background()
	ended := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			t.Cleanup(func() { _ = s.Close() })
			require.NoError(t, s.Save(ctx, sampleRecord("d", "u", ended)))
			require.NoError(t, s.Save(ctx, sampleRecord("d", "u", ended)))
			got, err := s.List(ctx, "d")
			require.NoError(t, err)
			assert.Len(t, got, 2)
		})
	}
}

func TestStoresRejectUnsafeNames(t *testing.T) {
	ctx := context.Background()
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			t.Cleanup(func() { _ = s.Close() })
			for _, bad := range []string{"", "../etc", "a/b", `a\b`, "a\x00b"} {
				err := s.Save(ctx, sampleRecord("d", bad, time.Now()))
				assert.ErrorIs(t, err, ErrInvalidName, "username %q", bad)
			}
		})
	}
}

func TestJSONStoreFileName(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStore(dir)
	require.NoError(t, err)

	ended := time.Unix(1700000000, 0)
	require.NoError(t, s.Save(context.Background(), sampleRecord("rotten_tomatoes", "alice", ended)))

	_, err = os.Stat(filepath.Join(dir, "rotten_tomatoes_alice_1700000000.json"))
	assert.NoError(t, err)
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestParquetStoreEmptySession(t *testing.T) {
	s, err := NewParquetStore(t.TempDir())
	require.NoError(t, err)

	r := sampleRecord("d", "u", time.Unix(1700000000, 0))
	r.MetaPaths = nil
	require.NoError(t, s.Save(context.Background(), r))

	got, err := s.List(context.Background(), "d")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u", got[0].Username)
	assert.Empty(t, got[0].MetaPaths)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(config.PersistenceConfig{Backend: "json", Dir: dir}, nil)
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, s)

	s, err = Open(config.PersistenceConfig{Backend: "parquet", Dir: dir}, nil)
	require.NoError(t, err)
	assert.IsType(t, &ParquetStore{}, s)

	s, err = Open(config.PersistenceConfig{Backend: "badger", Dir: filepath.Join(dir, "badger")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &BadgerStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(config.PersistenceConfig{Backend: "s3"}, nil)
	assert.ErrorIs(t, err, ErrUnknownBackend)

	_, err = NewBadgerStore(BadgerOptions{})
	assert.Error(t, err)
}
