package loader

import (
	"context"
	"fmt"

	"github.com/soundprediction/metaexp/pkg/driver"
	"github.com/soundprediction/metaexp/pkg/ranking"
	"github.com/soundprediction/metaexp/pkg/types"
)

// Neo4jLoader enumerates meta-paths between two node sets of a live graph.
type Neo4jLoader struct {
	name        string
	description string
	source      driver.MetaPathSource
	startIDs    []int64
	endIDs      []int64
	maxLength   int
	chains      [][][]string
}

// Neo4jOption configures a Neo4jLoader.
type Neo4jOption func(*Neo4jLoader)

// WithNodeSets sets the node sets whose connecting meta-paths are loaded.
func WithNodeSets(startIDs, endIDs []int64) Neo4jOption {
	return func(l *Neo4jLoader) {
		l.startIDs = append([]int64(nil), startIDs...)
		l.endIDs = append([]int64(nil), endIDs...)
	}
}

// WithMaxLength bounds the number of hops of enumerated paths.
func WithMaxLength(n int) Neo4jOption {
	return func(l *Neo4jLoader) {
		l.maxLength = n
	}
}

// WithRankingChains supplies known preference chains as label lists.
func WithRankingChains(chains [][][]string) Neo4jOption {
	return func(l *Neo4jLoader) {
		l.chains = chains
	}
}

// NewNeo4jLoader creates a loader backed by source.
func NewNeo4jLoader(name, description string, source driver.MetaPathSource, opts ...Neo4jOption) *Neo4jLoader {
	l := &Neo4jLoader{
		name:        name,
		description: description,
		source:      source,
		maxLength:   4,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ForNodeSets returns a copy of l reading between the given node sets.
func (l *Neo4jLoader) ForNodeSets(startIDs, endIDs []int64) Loader {
	c := *l
	WithNodeSets(startIDs, endIDs)(&c)
	return &c
}

func (l *Neo4jLoader) Name() string        { return l.name }
func (l *Neo4jLoader) Description() string { return l.description }

// LoadMetaPaths queries the source for the configured node sets.
func (l *Neo4jLoader) LoadMetaPaths(ctx context.Context) ([]*types.MetaPath, error) {
	mps, err := l.source.MetaPaths(ctx, l.startIDs, l.endIDs, l.maxLength)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", l.name, err)
	}
	return mps, nil
}

// LoadRankingGraph builds the graph from the configured chains. Chains that
// mention meta-paths absent from the current node sets are rejected.
func (l *Neo4jLoader) LoadRankingGraph(ctx context.Context) (*ranking.Graph, error) {
	pool, err := l.LoadMetaPaths(ctx)
	if err != nil {
		return nil, err
	}
	g, err := buildGraph(pool, l.chains)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", l.name, err)
	}
	return g, nil
}
