package explanation

// SimilarNode is a node similar to both node sets together with a query for
// its neighbourhood.
type SimilarNode struct {
	Name        string            `json:"name,omitempty"`
	CypherQuery string            `json:"cypher_query"`
	Properties  map[string]string `json:"properties"`
}

// SimilarNodes returns a fixed sample of similar nodes. Node similarity from
// graph embeddings is not computed yet; the payload keeps the response shape
// stable for clients.
func SimilarNodes() []SimilarNode {
	const query = "MATCH (n) RETURN n LIMIT 1"
	return []SimilarNode{
		{CypherQuery: query, Properties: map[string]string{"name": "Node A", "label": "Node Type A"}},
		{CypherQuery: query, Properties: map[string]string{"name": "Node B", "label": "Node Type B"}},
		{CypherQuery: query, Properties: map[string]string{"name": "Node C", "label": "Node Type A"}},
		{Name: "Node D", CypherQuery: query, Properties: map[string]string{"name": "Node D", "label": "Node Type B"}},
	}
}
