package types

import (
	"fmt"
	"time"
)

// DefaultRating is the neutral rating a meta-path carries before it is rated.
const DefaultRating = 0.5

// RatedMetaPath is a meta-path that has been exposed to a rater within one
// active-learning session.
type RatedMetaPath struct {
	ID         int            `json:"id"`
	MetaPath   *MetaPath      `json:"metapath"`
	Rating     float64        `json:"rating"`
	Rated      bool           `json:"rated"`
	EmittedAt  time.Time      `json:"emitted_at"`
	TimeToRate *time.Duration `json:"time_to_rate,omitempty"`
}

// DomainValue is the value used for explanation: the human rating.
func (r *RatedMetaPath) DomainValue() float64 {
	return r.Rating
}

// StructuralValue forwards to the underlying meta-path.
func (r *RatedMetaPath) StructuralValue() float64 {
	if r.MetaPath == nil {
		return 0
	}
	return r.MetaPath.StructuralValue()
}

// RatingRecord is a single entry of a rating submission as exchanged with the
// presentation layer. Pointer fields distinguish missing keys from zero values.
type RatingRecord struct {
	ID         *int      `json:"id"`
	MetaPath   *[]string `json:"metapath"`
	Rating     *float64  `json:"rating"`
	TimeToRate *float64  `json:"time_to_rate,omitempty"` // seconds
}

// NewRatingRecord builds a complete record.
func NewRatingRecord(id int, metaPath []string, rating float64) RatingRecord {
	return RatingRecord{ID: &id, MetaPath: &metaPath, Rating: &rating}
}

// Validate checks that the record carries id, metapath and rating, and that
// their values are usable.
func (r *RatingRecord) Validate() error {
	if r.ID == nil {
		return fmt.Errorf("%w: id", ErrMissingKey)
	}
	if r.MetaPath == nil {
		return fmt.Errorf("%w: metapath", ErrMissingKey)
	}
	if r.Rating == nil {
		return fmt.Errorf("%w: rating", ErrMissingKey)
	}
	if *r.ID < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidID, *r.ID)
	}
	if *r.Rating < 0 || *r.Rating > 1 {
		return fmt.Errorf("%w: got %f", ErrRatingOutOfRange, *r.Rating)
	}
	if r.TimeToRate != nil && *r.TimeToRate < 0 {
		return fmt.Errorf("%w: got %f", ErrInvalidTimeToRate, *r.TimeToRate)
	}
	return nil
}

// RatingOutput is the persisted form of one rated meta-path.
type RatingOutput struct {
	ID                int      `json:"id" parquet:"id"`
	MetaPath          []string `json:"metapath" parquet:"metapath"`
	Representation    string   `json:"representation" parquet:"representation"`
	Rating            float64  `json:"rating" parquet:"rating"`
	Rated             bool     `json:"rated" parquet:"rated"`
	TimeToRateSeconds *float64 `json:"time_to_rate,omitempty" parquet:"time_to_rate,optional"`
	StructuralValue   float64  `json:"structural_value" parquet:"structural_value"`
}
