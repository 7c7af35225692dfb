package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/soundprediction/metaexp/pkg/ranking"
	"github.com/soundprediction/metaexp/pkg/types"
)

const (
	datasetFile   = "dataset.yaml"
	metaPathsFile = "metapaths.yaml"
	rankingFile   = "ranking.yaml"
)

type datasetDoc struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type metaPathDoc struct {
	Labels          []string `yaml:"labels"`
	StructuralValue float64  `yaml:"structural_value"`
}

type metaPathsDoc struct {
	MetaPaths []metaPathDoc `yaml:"metapaths"`
}

type rankingDoc struct {
	Chains [][][]string `yaml:"chains"`
}

// FileLoader reads a dataset from a directory of YAML files:
//
//	dataset.yaml    name and description
//	metapaths.yaml  meta-paths with structural values
//	ranking.yaml    ordered chains of meta-paths, most preferred first (optional)
type FileLoader struct {
	dir         string
	name        string
	description string
}

// NewFileLoader reads dir/dataset.yaml. The dataset name defaults to the
// directory name.
func NewFileLoader(dir string) (*FileLoader, error) {
	var doc datasetDoc
	if err := readYAML(filepath.Join(dir, datasetFile), &doc); err != nil {
		return nil, err
	}
	if doc.Name == "" {
		doc.Name = filepath.Base(dir)
	}
	return &FileLoader{dir: dir, name: doc.Name, description: doc.Description}, nil
}

func (f *FileLoader) Name() string        { return f.name }
func (f *FileLoader) Description() string { return f.description }

// LoadMetaPaths reads metapaths.yaml.
func (f *FileLoader) LoadMetaPaths(ctx context.Context) ([]*types.MetaPath, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var doc metaPathsDoc
	if err := readYAML(filepath.Join(f.dir, metaPathsFile), &doc); err != nil {
		return nil, err
	}
	out := make([]*types.MetaPath, 0, len(doc.MetaPaths))
	for i, m := range doc.MetaPaths {
		mp, err := types.NewMetaPath(m.Labels, m.StructuralValue)
		if err != nil {
			return nil, fmt.Errorf("%s entry %d: %w", metaPathsFile, i, err)
		}
		out = append(out, mp)
	}
	return out, nil
}

// LoadRankingGraph reads the meta-paths and ranking.yaml. Without a ranking
// file every meta-path is an isolated node.
func (f *FileLoader) LoadRankingGraph(ctx context.Context) (*ranking.Graph, error) {
	pool, err := f.LoadMetaPaths(ctx)
	if err != nil {
		return nil, err
	}
	var doc rankingDoc
	if err := readYAML(filepath.Join(f.dir, rankingFile), &doc); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	g, err := buildGraph(pool, doc.Chains)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", f.name, err)
	}
	return g, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
