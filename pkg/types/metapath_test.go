package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetaPath(t *testing.T) {
	tests := []struct {
		name    string
		labels  []string
		value   float64
		wantErr bool
	}{
		{name: "single node type", labels: []string{"Movie"}, value: 1},
		{name: "three labels", labels: []string{"Movie", "HAS_ACTOR", "Actor"}, value: 12},
		{name: "empty", labels: nil, wantErr: true},
		{name: "ends on edge type", labels: []string{"Movie", "HAS_ACTOR"}, wantErr: true},
		{name: "blank label", labels: []string{"Movie", " ", "Actor"}, wantErr: true},
		{name: "parenthesis in node label", labels: []string{"Movie(2020)", "HAS", "Actor"}, wantErr: true},
		{name: "bracket in edge label", labels: []string{"Movie", "REL]X", "Actor"}, wantErr: true},
		{name: "cypher in label", labels: []string{"Movie) DETACH DELETE n0 //", "HAS", "Actor"}, wantErr: true},
		{name: "unicode identifier", labels: []string{"Film_é", "HAT_2", "Schauspieler"}, value: 1},
		{name: "negative structural value", labels: []string{"Movie"}, value: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mp, err := NewMetaPath(tt.labels, tt.value)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMetaPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.labels, mp.AsList())
			assert.Equal(t, tt.value, mp.StructuralValue())
		})
	}
}

func TestMetaPathDoesNotAliasInput(t *testing.T) {
	labels := []string{"Movie", "HAS_ACTOR", "Actor"}
	mp, err := NewMetaPath(labels, 1)
	require.NoError(t, err)

	labels[0] = "Changed"
	assert.Equal(t, "Movie", mp.AsList()[0])

	out := mp.AsList()
	out[2] = "Changed"
	assert.Equal(t, "Actor", mp.AsList()[2])
}

func TestMetaPathTypes(t *testing.T) {
	mp := MustMetaPath(3, "Movie", "HAS_ACTOR", "Actor", "ACTED_IN", "Movie")

	assert.Equal(t, []string{"Movie", "Actor", "Movie"}, mp.NodeTypes())
	assert.Equal(t, []string{"HAS_ACTOR", "ACTED_IN"}, mp.EdgeTypes())
	assert.Equal(t, 3, mp.NumberNodeTypes())
	assert.Equal(t, 5, mp.Len())
	assert.Equal(t, "Movie|HAS_ACTOR|Actor|ACTED_IN|Movie", mp.Key())
}

func TestMetaPathRepresentations(t *testing.T) {
	mp := MustMetaPath(3, "Movie", "HAS_ACTOR", "Actor")

	assert.Equal(t, "(n0:Movie)-[:HAS_ACTOR]-(n1:Actor)", mp.Representation(RepresentationUI))
	assert.Equal(t, "Movie|HAS_ACTOR|Actor", mp.Representation(RepresentationKey))
	assert.Equal(t, `["Movie","HAS_ACTOR","Actor"]`, mp.Representation(RepresentationList))
}

func TestUIRepresentationRoundTrip(t *testing.T) {
	paths := [][]string{
		{"Movie"},
		{"Movie", "HAS_ACTOR", "Actor"},
		{"Movie", "HAS_GENRE", "Genre", "HAS_GENRE", "Movie", "DIRECTED_BY", "Director"},
		{"Film_é", "HAT_2", "_Schauspieler"},
	}

	for _, labels := range paths {
		mp := MustMetaPath(1, labels...)
		parsed, err := ParseUIRepresentation(mp.UIRepresentation())
		require.NoError(t, err)
		assert.Equal(t, mp.AsList(), parsed)
	}
}

func TestParseUIRepresentationRejectsMalformed(t *testing.T) {
	inputs := []string{
		"",
		"(n0:Movie)-[:HAS_ACTOR]-",
		"(n1:Movie)",
		"(n0:Movie)(n1:Actor)",
		"Movie-HAS_ACTOR-Actor",
	}
	for _, in := range inputs {
		_, err := ParseUIRepresentation(in)
		assert.ErrorIs(t, err, ErrInvalidMetaPath, "input %q", in)
	}
}

func TestMetaPathDomainValue(t *testing.T) {
	mp := MustMetaPath(1, "Movie")
	_, ok := mp.DomainValue()
	assert.False(t, ok)

	mp.SetDomainValue(0.75)
	v, ok := mp.DomainValue()
	assert.True(t, ok)
	assert.Equal(t, 0.75, v)
}

func TestMetaPathJSON(t *testing.T) {
	mp := MustMetaPath(7, "Movie", "HAS_ACTOR", "Actor")
	mp.SetDomainValue(0.4)

	data, err := json.Marshal(mp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"metapath":["Movie","HAS_ACTOR","Actor"],"structural_value":7,"domain_value":0.4}`, string(data))

	var decoded MetaPath
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, mp.Equal(&decoded))

	err = json.Unmarshal([]byte(`{"metapath":["Movie","HAS_ACTOR"],"structural_value":1}`), &decoded)
	assert.ErrorIs(t, err, ErrInvalidMetaPath)
}

func TestMetaPathEqual(t *testing.T) {
	a := MustMetaPath(1, "Movie", "HAS_ACTOR", "Actor")
	b := MustMetaPath(5, "Movie", "HAS_ACTOR", "Actor")
	c := MustMetaPath(1, "Movie")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}
