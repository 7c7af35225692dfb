package dto

import (
	"errors"
	"strings"

	"github.com/soundprediction/metaexp/pkg/learning"
)

// MaxBatchSize bounds GET /next-meta-paths/:batch_size.
const MaxBatchSize = 100

var (
	ErrUsernameRequired = errors.New("username cannot be empty")
	ErrDatasetRequired  = errors.New("dataset cannot be empty")
	ErrEmptyNodeSet     = errors.New("start_node_ids and end_node_ids cannot be empty")
)

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Dataset  string `json:"dataset"`
	Purpose  string `json:"purpose"`
}

// Validate performs validation on LoginRequest
func (r *LoginRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return ErrUsernameRequired
	}
	if strings.TrimSpace(r.Dataset) == "" {
		return ErrDatasetRequired
	}
	return nil
}

// LoginResponse carries the session handle for the X-Session-ID header.
type LoginResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

// NodeSetsRequest is the body of POST /node-sets.
type NodeSetsRequest struct {
	StartNodeIDs []int64 `json:"start_node_ids"`
	EndNodeIDs   []int64 `json:"end_node_ids"`
}

// Validate performs validation on NodeSetsRequest
func (r *NodeSetsRequest) Validate() error {
	if len(r.StartNodeIDs) == 0 || len(r.EndNodeIDs) == 0 {
		return ErrEmptyNodeSet
	}
	return nil
}

// MetaPathItem is one meta-path offered for rating.
type MetaPathItem struct {
	ID       int      `json:"id"`
	MetaPath []string `json:"metapath"`
	Rating   float64  `json:"rating"`
}

// NextMetaPathsResponse is the body of GET /next-meta-paths/:batch_size.
type NextMetaPathsResponse struct {
	MetaPaths   []MetaPathItem `json:"meta_paths"`
	IsLastBatch bool           `json:"is_last_batch"`
}

// NewNextMetaPathsResponse converts a learner batch.
func NewNextMetaPathsResponse(b learning.Batch) NextMetaPathsResponse {
	items := make([]MetaPathItem, 0, len(b.MetaPaths))
	for _, rmp := range b.MetaPaths {
		items = append(items, MetaPathItem{
			ID:       rmp.ID,
			MetaPath: rmp.MetaPath.AsList(),
			Rating:   rmp.Rating,
		})
	}
	return NextMetaPathsResponse{MetaPaths: items, IsLastBatch: b.IsLast}
}

// StatusResponse acknowledges a state change.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
