// Package loader supplies the meta-path pool and the ranking graph of a
// named dataset.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/soundprediction/metaexp/pkg/ranking"
	"github.com/soundprediction/metaexp/pkg/types"
)

var (
	// ErrUnknownDataset is returned for a dataset name nobody registered.
	ErrUnknownDataset = errors.New("unknown dataset")
	// ErrUnknownMetaPath is returned when a ranking chain names a meta-path
	// that is not part of the dataset.
	ErrUnknownMetaPath = errors.New("ranking references unknown meta-path")
)

// Loader provides the data of one dataset.
type Loader interface {
	Name() string
	Description() string
	LoadMetaPaths(ctx context.Context) ([]*types.MetaPath, error)
	LoadRankingGraph(ctx context.Context) (*ranking.Graph, error)
}

// NodeSetScoped is implemented by loaders whose pool depends on the node
// sets being compared.
type NodeSetScoped interface {
	ForNodeSets(startIDs, endIDs []int64) Loader
}

// Dispatcher maps dataset names to loaders.
type Dispatcher struct {
	mu      sync.RWMutex
	loaders map[string]Loader
}

// NewDispatcher creates a dispatcher with the given loaders registered.
func NewDispatcher(loaders ...Loader) *Dispatcher {
	d := &Dispatcher{loaders: make(map[string]Loader)}
	for _, l := range loaders {
		d.Register(l)
	}
	return d
}

// NewDispatcherFromDir registers a FileLoader for every subdirectory of dir
// that contains a dataset.yaml.
func NewDispatcherFromDir(dir string) (*Dispatcher, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read datasets directory: %w", err)
	}
	d := NewDispatcher()
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if _, err := os.Stat(filepath.Join(path, datasetFile)); err != nil {
			continue
		}
		l, err := NewFileLoader(path)
		if err != nil {
			return nil, err
		}
		d.Register(l)
	}
	return d, nil
}

// Register adds or replaces the loader for l.Name().
func (d *Dispatcher) Register(l Loader) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loaders[l.Name()] = l
}

// GetLoader returns the loader registered under name.
func (d *Dispatcher) GetLoader(name string) (Loader, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	l, ok := d.loaders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, name)
	}
	return l, nil
}

// GetAvailableDatasets maps every dataset name to its description.
func (d *Dispatcher) GetAvailableDatasets() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]string, len(d.loaders))
	for name, l := range d.loaders {
		out[name] = l.Description()
	}
	return out
}

// Names returns the registered dataset names in sorted order.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.loaders))
	for name := range d.loaders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// buildGraph adds every pool meta-path as a node and every chain as an order.
// Chain entries are resolved against the pool so both share instances.
func buildGraph(pool []*types.MetaPath, chains [][][]string) (*ranking.Graph, error) {
	g := ranking.NewGraph()
	byKey := make(map[string]*types.MetaPath, len(pool))
	for _, mp := range pool {
		if _, err := g.AddNode(mp); err != nil {
			return nil, err
		}
		byKey[mp.Key()] = mp
	}
	for i, chain := range chains {
		resolved := make([]*types.MetaPath, 0, len(chain))
		for _, labels := range chain {
			probe, err := types.NewMetaPath(labels, 0)
			if err != nil {
				return nil, fmt.Errorf("chain %d: %w", i, err)
			}
			mp, ok := byKey[probe.Key()]
			if !ok {
				return nil, fmt.Errorf("chain %d: %w: %s", i, ErrUnknownMetaPath, probe)
			}
			resolved = append(resolved, mp)
		}
		if len(resolved) == 0 {
			continue
		}
		if err := g.AddChain(resolved...); err != nil {
			return nil, fmt.Errorf("chain %d: %w", i, err)
		}
	}
	return g, nil
}
