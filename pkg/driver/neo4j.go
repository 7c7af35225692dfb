package driver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/soundprediction/metaexp/pkg/types"
)

const (
	fieldNodeTypes = "node_types"
	fieldEdgeTypes = "edge_types"
	fieldFrequency = "frequency"
)

// Neo4jDriver reads meta-paths from a Neo4j database.
type Neo4jDriver struct {
	client   neo4j.DriverWithContext
	database string
}

// NewNeo4jDriver creates a new Neo4j driver instance.
func NewNeo4jDriver(uri, username, password, database string) (*Neo4jDriver, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if database == "" {
		database = "neo4j"
	}

	return &Neo4jDriver{
		client:   driver,
		database: database,
	}, nil
}

// VerifyConnectivity checks that the database is reachable.
func (n *Neo4jDriver) VerifyConnectivity(ctx context.Context) error {
	return n.client.VerifyConnectivity(ctx)
}

// Close releases the underlying connection pool.
func (n *Neo4jDriver) Close(ctx context.Context) error {
	return n.client.Close(ctx)
}

// metaPathQuery groups all paths of up to maxLength hops between the two node
// sets by their label sequence. Variable-length bounds cannot be parameters.
func metaPathQuery(maxLength int) string {
	return fmt.Sprintf(`
		MATCH p = (a)-[*1..%d]-(b)
		WHERE id(a) IN $startIDs AND id(b) IN $endIDs
		RETURN [x IN nodes(p) | labels(x)[0]] AS %s,
		       [r IN relationships(p) | type(r)] AS %s,
		       count(*) AS %s
	`, maxLength, fieldNodeTypes, fieldEdgeTypes, fieldFrequency)
}

// MetaPaths enumerates the meta-paths between startIDs and endIDs. The
// structural value of each meta-path is its number of instances.
func (n *Neo4jDriver) MetaPaths(ctx context.Context, startIDs, endIDs []int64, maxLength int) ([]*types.MetaPath, error) {
	if maxLength < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMaxLength, maxLength)
	}
	if len(startIDs) == 0 || len(endIDs) == 0 {
		return nil, nil
	}

	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, metaPathQuery(maxLength), map[string]any{
			"startIDs": startIDs,
			"endIDs":   endIDs,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate meta-paths: %w", err)
	}

	records, ok := result.([]*db.Record)
	if !ok {
		return nil, NewTypeConversionError("[]*db.Record", fmt.Sprintf("%T", result), "")
	}
	return metaPathsFromRecords(records)
}

// metaPathsFromRecords interleaves node and edge types into meta-paths,
// merging records that describe the same sequence. The result is ordered by
// frequency, most frequent first, then by label sequence.
func metaPathsFromRecords(records []*db.Record) ([]*types.MetaPath, error) {
	counts := make(map[string]int64)
	labels := make(map[string][]string)
	for i, record := range records {
		nodeTypes, err := MustStringList(record, fieldNodeTypes)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		edgeTypes, err := MustStringList(record, fieldEdgeTypes)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		frequency, err := MustInt64(record, fieldFrequency)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if len(nodeTypes) != len(edgeTypes)+1 {
			return nil, fmt.Errorf("record %d: %d node types for %d edge types", i, len(nodeTypes), len(edgeTypes))
		}

		seq := make([]string, 0, len(nodeTypes)+len(edgeTypes))
		for j, nt := range nodeTypes {
			seq = append(seq, nt)
			if j < len(edgeTypes) {
				seq = append(seq, edgeTypes[j])
			}
		}
		key := strings.Join(seq, "|")
		counts[key] += frequency
		labels[key] = seq
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	out := make([]*types.MetaPath, 0, len(keys))
	for _, k := range keys {
		mp, err := types.NewMetaPath(labels[k], float64(counts[k]))
		if err != nil {
			return nil, err
		}
		out = append(out, mp)
	}
	return out, nil
}
