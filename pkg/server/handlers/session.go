package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/metaexp"
	"github.com/soundprediction/metaexp/pkg/server/dto"
	"github.com/soundprediction/metaexp/pkg/types"
)

// SessionHandler handles login, dataset selection and rating requests.
type SessionHandler struct {
	client metaexp.MetaExp
	logger *slog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(client metaexp.MetaExp, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{client: client, logger: logger}
}

// Login handles POST /login
func (h *SessionHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	s, err := h.client.Login(c.Request.Context(), metaexp.LoginRequest{
		Username: req.Username,
		Dataset:  req.Dataset,
		Purpose:  req.Purpose,
	})
	if err != nil {
		writeClientError(c, err)
		return
	}
	c.Header(SessionHeader, s.ID)
	c.JSON(http.StatusOK, dto.LoginResponse{Status: "logged_in", SessionID: s.ID})
}

// Logout handles GET /logout
func (h *SessionHandler) Logout(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	if err := h.client.Logout(c.Request.Context(), id); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "logout failed", "session_id", id, "error", err)
		writeClientError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.StatusResponse{Status: "logged_out"})
}

// AvailableDatasets handles GET /get-available-datasets
func (h *SessionHandler) AvailableDatasets(c *gin.Context) {
	datasets := h.client.AvailableDatasets()
	out := make([]gin.H, 0, len(datasets))
	for _, name := range sortedKeys(datasets) {
		out = append(out, gin.H{"name": name, "description": datasets[name]})
	}
	c.JSON(http.StatusOK, out)
}

// NodeSets handles POST /node-sets
func (h *SessionHandler) NodeSets(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req dto.NodeSetsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := h.client.SetNodeSets(c.Request.Context(), id, req.StartNodeIDs, req.EndNodeIDs); err != nil {
		writeClientError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.StatusResponse{Status: "node_sets_set"})
}

// NextMetaPaths handles GET /next-meta-paths/:batch_size
func (h *SessionHandler) NextMetaPaths(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	n, err := strconv.Atoi(c.Param("batch_size"))
	if err != nil || n <= 0 || n > dto.MaxBatchSize {
		writeError(c, http.StatusBadRequest, "invalid_request",
			"batch_size must be an integer between 1 and "+strconv.Itoa(dto.MaxBatchSize))
		return
	}
	batch, err := h.client.NextMetaPaths(c.Request.Context(), id, n)
	if err != nil {
		writeClientError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewNextMetaPathsResponse(batch))
}

// RateMetaPaths handles POST /rate-meta-paths. Any malformed record rejects
// the whole submission.
func (h *SessionHandler) RateMetaPaths(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var records []types.RatingRecord
	if err := c.ShouldBindJSON(&records); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := h.client.RateMetaPaths(c.Request.Context(), id, records); err != nil {
		writeClientError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.StatusResponse{Status: "rated"})
}
