// Package driver enumerates meta-paths from a graph database.
//
// Neo4jDriver counts the typed paths between two node sets and turns every
// distinct sequence of node labels and relationship types into a MetaPath
// whose structural value is the number of path instances.
//
//	d, err := driver.NewNeo4jDriver(uri, username, password, "neo4j")
//	if err != nil {
//		return err
//	}
//	defer d.Close(ctx)
//	paths, err := d.MetaPaths(ctx, startIDs, endIDs, 4)
//
// CircuitBreakerSource wraps any MetaPathSource so that a failing database
// stops receiving queries for a while instead of stalling every login.
//
// # Type Helpers
//
// type_helpers.go converts database values to Go types without panicking on
// failed type assertions.
package driver
