// Package types defines the data shared by every metaexp package.
//
//   - MetaPath: alternating node and edge labels with a structural value and
//     an optional domain value
//   - RatedMetaPath: a meta-path as emitted to a rater, with its id and rating
//   - RatingRecord: one entry of a rating submission, validated before use
//   - RatingOutput: the persisted form of a rated meta-path
//
// # JSON Serialization
//
// MetaPath serializes as {"metapath": [...], "structural_value": n} and
// validates its labels when decoded.
package types
