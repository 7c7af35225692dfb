package driver

import (
	"context"
	"errors"

	"github.com/soundprediction/metaexp/pkg/types"
)

// ErrInvalidMaxLength is returned for a maximum path length below one.
var ErrInvalidMaxLength = errors.New("max path length must be at least 1")

// MetaPathSource enumerates the meta-paths connecting two node sets.
type MetaPathSource interface {
	MetaPaths(ctx context.Context, startIDs, endIDs []int64, maxLength int) ([]*types.MetaPath, error)
}
