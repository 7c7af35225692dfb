// Package scoring learns the domain value of meta-paths from a ranking graph.
//
// A DomainScoring model turns the maximal chains of a ranking graph into
// pairwise training examples: for every ordered pair (a, b) taken from a chain
// the forward pair is labelled 0 and the inverse pair (b, a) is labelled 1,
// i.e. the label says "this pair is reversed with respect to the ground truth".
// Each meta-path is one-hot encoded over the vocabulary of the graph, a pair is
// the concatenation of both encodings, and a logistic regression classifier is
// fitted on the result.
//
// The domain value of a meta-path is its mean probability of being preferred
// over every meta-path in the vocabulary, which makes scores comparable across
// meta-paths.
//
//	ds := scoring.New()
//	if err := ds.Fit(graph); err != nil {
//		return err
//	}
//	value, err := ds.Score(mp)
package scoring
