package driver

import (
	"context"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(nodeTypes, edgeTypes []any, frequency any) *db.Record {
	return &db.Record{
		Keys:   []string{fieldNodeTypes, fieldEdgeTypes, fieldFrequency},
		Values: []any{nodeTypes, edgeTypes, frequency},
	}
}

func TestMetaPathsFromRecords(t *testing.T) {
	records := []*db.Record{
		record([]any{"Movie", "Genre"}, []any{"HAS_GENRE"}, int64(4)),
		record([]any{"Movie", "Actor", "Movie"}, []any{"HAS_ACTOR", "ACTED_IN"}, int64(9)),
		record([]any{"Movie", "Genre"}, []any{"HAS_GENRE"}, int64(2)),
		record([]any{"Movie", "Studio"}, []any{"PRODUCED_BY"}, int64(6)),
	}

	paths, err := metaPathsFromRecords(records)
	require.NoError(t, err)
	require.Len(t, paths, 3)

	assert.Equal(t, []string{"Movie", "HAS_ACTOR", "Actor", "ACTED_IN", "Movie"}, paths[0].AsList())
	assert.Equal(t, 9.0, paths[0].StructuralValue())
	// Duplicate sequences merge and tie with PRODUCED_BY at 6; key order breaks the tie.
	assert.Equal(t, "Movie|HAS_GENRE|Genre", paths[1].Key())
	assert.Equal(t, 6.0, paths[1].StructuralValue())
	assert.Equal(t, "Movie|PRODUCED_BY|Studio", paths[2].Key())
}

func TestMetaPathsFromRecordsErrors(t *testing.T) {
	tests := []struct {
		name   string
		record *db.Record
		want   string
	}{
		{
			name:   "frequency type",
			record: record([]any{"A", "B"}, []any{"r"}, "many"),
			want:   `type conversion error for field "frequency": expected int64, got string`,
		},
		{
			name:   "label type",
			record: record([]any{"A", nil}, []any{"r"}, int64(1)),
			want:   `field "node_types"`,
		},
		{
			name:   "length mismatch",
			record: record([]any{"A", "B"}, []any{"r", "s"}, int64(1)),
			want:   "2 node types for 2 edge types",
		},
		{
			name:   "missing field",
			record: &db.Record{Keys: []string{fieldNodeTypes}, Values: []any{[]any{"A"}}},
			want:   `missing field "edge_types"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := metaPathsFromRecords([]*db.Record{tt.record})
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestMetaPathQuery(t *testing.T) {
	q := metaPathQuery(3)
	assert.Contains(t, q, "[*1..3]")
	assert.Contains(t, q, "id(a) IN $startIDs")
	assert.Contains(t, q, "AS frequency")
}

func TestMetaPathsValidation(t *testing.T) {
	d := &Neo4jDriver{}
	_, err := d.MetaPaths(context.Background(), []int64{1}, []int64{2}, 0)
	assert.ErrorIs(t, err, ErrInvalidMaxLength)

	paths, err := d.MetaPaths(context.Background(), nil, []int64{2}, 2)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestAsStringList(t *testing.T) {
	got, ok := AsStringList([]any{"a", "b"})
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)

	got, ok = AsStringList([]string{"c"})
	assert.True(t, ok)
	assert.Equal(t, []string{"c"}, got)

	_, ok = AsStringList([]any{"a", 1})
	assert.False(t, ok)
	_, ok = AsStringList(nil)
	assert.False(t, ok)
}
