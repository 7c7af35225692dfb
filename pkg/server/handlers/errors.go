package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/metaexp"
	"github.com/soundprediction/metaexp/pkg/explanation"
	"github.com/soundprediction/metaexp/pkg/learning"
	"github.com/soundprediction/metaexp/pkg/loader"
	"github.com/soundprediction/metaexp/pkg/server/dto"
	"github.com/soundprediction/metaexp/pkg/session"
	"github.com/soundprediction/metaexp/pkg/types"
)

// SessionHeader carries the session handle returned by login.
const SessionHeader = "X-Session-ID"

// writeError writes an error response as JSON
func writeError(c *gin.Context, status int, errCode, message string) {
	c.AbortWithStatusJSON(status, dto.ErrorResponse{
		Error:   errCode,
		Message: message,
		Code:    status,
	})
}

// errorStatus maps client errors to a status and an error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusUnauthorized, "unknown_session"
	case errors.Is(err, loader.ErrUnknownDataset):
		return http.StatusNotFound, "unknown_dataset"
	case errors.Is(err, learning.ErrExhausted):
		return http.StatusGone, "exhausted"
	case errors.Is(err, explanation.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, explanation.ErrNoRatings):
		return http.StatusConflict, "no_ratings"
	case errors.Is(err, metaexp.ErrInvalidLogin),
		errors.Is(err, learning.ErrInvalidBatchSize),
		errors.Is(err, learning.ErrUnknownID),
		errors.Is(err, learning.ErrMetaPathMismatch),
		errors.Is(err, learning.ErrAlreadyRated),
		errors.Is(err, learning.ErrDuplicateID),
		errors.Is(err, types.ErrMissingKey),
		errors.Is(err, types.ErrRatingOutOfRange),
		errors.Is(err, types.ErrInvalidID),
		errors.Is(err, types.ErrInvalidTimeToRate),
		errors.Is(err, types.ErrInvalidMetaPath):
		return http.StatusBadRequest, "invalid_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeClientError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	writeError(c, status, code, err.Error())
}

// sessionID reads the session handle; it aborts with 401 when missing.
func sessionID(c *gin.Context) (string, bool) {
	id := c.GetHeader(SessionHeader)
	if id == "" {
		writeError(c, http.StatusUnauthorized, "unknown_session", "missing "+SessionHeader+" header")
		return "", false
	}
	return id, true
}
