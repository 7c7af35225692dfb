// Package ranking holds the ranking graph: a directed acyclic graph over
// meta-paths where an edge A -> B means "A is ranked strictly above B".
package ranking

import (
	"errors"
	"fmt"

	"github.com/soundprediction/metaexp/pkg/types"
)

var (
	// ErrCycle is returned when an edge would make the ranking contradictory.
	ErrCycle = errors.New("ranking graph contains a cycle")
	// ErrNilMetaPath is returned when a nil meta-path is added.
	ErrNilMetaPath = errors.New("meta-path cannot be nil")
)

// PartialOrder is the read-only view of a ranking consumed by domain scoring.
type PartialOrder interface {
	// AllNodes returns every distinct meta-path known to the ordering.
	AllNodes() []*types.MetaPath
	// TransitiveClosures returns every maximal chain consistent with the order.
	TransitiveClosures() [][]*types.MetaPath
}

// Graph is a ranking graph. It is built once per dataset and is read-only
// afterwards, so it may be shared between sessions.
type Graph struct {
	nodes []*types.MetaPath
	index map[string]int
	out   [][]int
}

var _ PartialOrder = (*Graph)(nil)

// NewGraph creates an empty ranking graph.
func NewGraph() *Graph {
	return &Graph{index: make(map[string]int)}
}

// AddNode adds a meta-path and returns its index. Adding a meta-path with the
// same label sequence twice returns the existing index.
func (g *Graph) AddNode(mp *types.MetaPath) (int, error) {
	if mp == nil {
		return -1, ErrNilMetaPath
	}
	if i, ok := g.index[mp.Key()]; ok {
		return i, nil
	}
	g.nodes = append(g.nodes, mp)
	g.out = append(g.out, nil)
	i := len(g.nodes) - 1
	g.index[mp.Key()] = i
	return i, nil
}

// AddEdge records that above is ranked strictly above below.
func (g *Graph) AddEdge(above, below *types.MetaPath) error {
	from, err := g.AddNode(above)
	if err != nil {
		return err
	}
	to, err := g.AddNode(below)
	if err != nil {
		return err
	}
	if from == to {
		return fmt.Errorf("%w: %s ranked above itself", ErrCycle, above.Key())
	}
	for _, existing := range g.out[from] {
		if existing == to {
			return nil
		}
	}
	if g.reachable(to, from) {
		return fmt.Errorf("%w: %s above %s contradicts existing order", ErrCycle, above.Key(), below.Key())
	}
	g.out[from] = append(g.out[from], to)
	return nil
}

// AddChain adds the order mps[0] > mps[1] > ... > mps[n-1].
func (g *Graph) AddChain(mps ...*types.MetaPath) error {
	if len(mps) == 1 {
		_, err := g.AddNode(mps[0])
		return err
	}
	for i := 0; i+1 < len(mps); i++ {
		if err := g.AddEdge(mps[i], mps[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Contains reports whether a meta-path with the same labels is in the graph.
func (g *Graph) Contains(mp *types.MetaPath) bool {
	if mp == nil {
		return false
	}
	_, ok := g.index[mp.Key()]
	return ok
}

// Lookup returns the node stored under key.
func (g *Graph) Lookup(key string) (*types.MetaPath, bool) {
	i, ok := g.index[key]
	if !ok {
		return nil, false
	}
	return g.nodes[i], true
}

// AllNodes returns every node in insertion order.
func (g *Graph) AllNodes() []*types.MetaPath {
	out := make([]*types.MetaPath, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Successors returns the meta-paths directly ranked below mp.
func (g *Graph) Successors(mp *types.MetaPath) []*types.MetaPath {
	i, ok := g.index[mp.Key()]
	if !ok {
		return nil
	}
	out := make([]*types.MetaPath, 0, len(g.out[i]))
	for _, j := range g.out[i] {
		out = append(out, g.nodes[j])
	}
	return out
}

// Validate checks that the graph is acyclic.
func (g *Graph) Validate() error {
	if _, err := g.topologicalOrder(); err != nil {
		return err
	}
	return nil
}

// TransitiveClosures returns every maximal chain of the partial order: all
// source-to-sink paths of the transitive reduction. Chains are ordered by the
// insertion order of their nodes. A node without relations forms a chain of
// length one.
func (g *Graph) TransitiveClosures() [][]*types.MetaPath {
	reduced := g.transitiveReduction()

	indegree := make([]int, len(g.nodes))
	for _, succ := range reduced {
		for _, j := range succ {
			indegree[j]++
		}
	}

	var chains [][]*types.MetaPath
	var walk func(i int, path []int)
	walk = func(i int, path []int) {
		path = append(path, i)
		if len(reduced[i]) == 0 {
			chain := make([]*types.MetaPath, len(path))
			for k, idx := range path {
				chain[k] = g.nodes[idx]
			}
			chains = append(chains, chain)
			return
		}
		for _, j := range reduced[i] {
			walk(j, path)
		}
	}

	for i := range g.nodes {
		if indegree[i] == 0 {
			walk(i, make([]int, 0, len(g.nodes)))
		}
	}
	return chains
}

// transitiveReduction drops every edge u -> v for which v is also reachable
// from u through a longer path.
func (g *Graph) transitiveReduction() [][]int {
	reduced := make([][]int, len(g.nodes))
	for u, succ := range g.out {
		for _, v := range succ {
			redundant := false
			for _, w := range succ {
				if w != v && g.reachable(w, v) {
					redundant = true
					break
				}
			}
			if !redundant {
				reduced[u] = append(reduced[u], v)
			}
		}
	}
	return reduced
}

// reachable reports whether to can be reached from from.
func (g *Graph) reachable(from, to int) bool {
	if from == to {
		return true
	}
	visited := make([]bool, len(g.nodes))
	stack := []int{from}
	visited[from] = true
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range g.out[cur] {
			if next == to {
				return true
			}
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

// topologicalOrder runs Kahn's algorithm and fails on cycles.
func (g *Graph) topologicalOrder() ([]int, error) {
	indegree := make([]int, len(g.nodes))
	for _, succ := range g.out {
		for _, j := range succ {
			indegree[j]++
		}
	}
	queue := make([]int, 0, len(g.nodes))
	for i, d := range indegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}
	order := make([]int, 0, len(g.nodes))
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		for _, next := range g.out[cur] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if len(order) != len(g.nodes) {
		return nil, ErrCycle
	}
	return order, nil
}

// FromChains builds a graph from ordered chains, most preferred first.
func FromChains(chains ...[]*types.MetaPath) (*Graph, error) {
	g := NewGraph()
	for i, chain := range chains {
		if len(chain) == 0 {
			continue
		}
		if err := g.AddChain(chain...); err != nil {
			return nil, fmt.Errorf("chain %d: %w", i, err)
		}
	}
	return g, nil
}
