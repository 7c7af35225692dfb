// Package metaexp explains the similarity of two node sets in a knowledge
// graph through the meta-paths connecting them.
//
// A domain expert rates meta-paths in batches. Batches are chosen by
// uncertainty sampling over a Gaussian process whose prior mean comes from a
// domain scorer fitted on a partial order of meta-paths. The completed rating
// weights each meta-path's structural value, and the weighted sum is the
// similarity score.
//
// # Basic Usage
//
// Create a client from a directory of datasets and a session store:
//
//	datasets, err := loader.NewDispatcherFromDir("testdata/datasets")
//	if err != nil {
//		log.Fatal(err)
//	}
//	store, err := persistence.NewJSONStore("rated_datasets")
//	if err != nil {
//		log.Fatal(err)
//	}
//	client, err := metaexp.NewClient(datasets, store, metaexp.DefaultConfig(), nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
// # Rating
//
// A session starts with Login and proceeds in rounds:
//
//	s, err := client.Login(ctx, metaexp.LoginRequest{Username: "alice", Dataset: "rotten_tomatoes"})
//	batch, err := client.NextMetaPaths(ctx, s.ID, 5)
//	// ... collect ratings in [0, 1] for every meta-path of the batch
//	err = client.RateMetaPaths(ctx, s.ID, records)
//
// A submission is applied all or nothing. NextMetaPaths returns
// learning.ErrExhausted once every meta-path has been offered.
//
// # Results
//
// Results can be requested at any time. Meta-paths that were not rated yet
// contribute with the learner's prediction:
//
//	res, err := client.Results(ctx, s.ID)
//	fmt.Println(res.SimilarityScore)
//	for _, c := range res.ContributingMetaPaths {
//		fmt.Println(c.Label, c.Value)
//	}
//
// # Persistence
//
// Logout, eviction from the session cache and Close all store the session's
// complete rating through the configured persistence.Store (json, parquet or
// badger).
//
// # Architecture
//
//   - pkg/ranking: partial order of meta-paths (ranking graph)
//   - pkg/scoring: domain value of a meta-path learned from the partial order
//   - pkg/learning: active learner and selection strategies
//   - pkg/explanation: similarity score and contributing meta-paths
//   - pkg/loader, pkg/driver: datasets from files or Neo4j
//   - pkg/persistence, pkg/session: rated session storage and live sessions
//   - pkg/server: HTTP API used by the rating frontend
package metaexp
