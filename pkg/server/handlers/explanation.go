package handlers

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/metaexp"
)

// ExplanationHandler serves similarity results.
type ExplanationHandler struct {
	client metaexp.MetaExp
}

// NewExplanationHandler creates a new explanation handler
func NewExplanationHandler(client metaexp.MetaExp) *ExplanationHandler {
	return &ExplanationHandler{client: client}
}

// Results handles GET /results
func (h *ExplanationHandler) Results(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	res, err := h.client.Results(c.Request.Context(), id)
	if err != nil {
		writeClientError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ContributingMetaPath handles GET /contributing-meta-paths/:id
func (h *ExplanationHandler) ContributingMetaPath(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	mpID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", "id must be an integer")
		return
	}
	detail, err := h.client.ContributingMetaPath(c.Request.Context(), id, mpID)
	if err != nil {
		writeClientError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// SimilarNodes handles GET /similar-nodes
func (h *ExplanationHandler) SimilarNodes(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	nodes, err := h.client.SimilarNodes(c.Request.Context(), id)
	if err != nil {
		writeClientError(c, err)
		return
	}
	c.JSON(http.StatusOK, nodes)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
