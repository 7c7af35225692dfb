package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soundprediction/metaexp"
	"github.com/soundprediction/metaexp/pkg/explanation"
	"github.com/soundprediction/metaexp/pkg/learning"
	"github.com/soundprediction/metaexp/pkg/loader"
	"github.com/soundprediction/metaexp/pkg/session"
	"github.com/soundprediction/metaexp/pkg/types"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		code int
		name string
	}{
		{session.ErrSessionNotFound, http.StatusUnauthorized, "unknown_session"},
		{fmt.Errorf("login: %w", loader.ErrUnknownDataset), http.StatusNotFound, "unknown_dataset"},
		{learning.ErrExhausted, http.StatusGone, "exhausted"},
		{explanation.ErrNotFound, http.StatusNotFound, "not_found"},
		{explanation.ErrNoRatings, http.StatusConflict, "no_ratings"},
		{metaexp.ErrInvalidLogin, http.StatusBadRequest, "invalid_request"},
		{fmt.Errorf("record 0: %w", types.ErrRatingOutOfRange), http.StatusBadRequest, "invalid_request"},
		{fmt.Errorf("record 2: %w", types.ErrInvalidTimeToRate), http.StatusBadRequest, "invalid_request"},
		{learning.ErrAlreadyRated, http.StatusBadRequest, "invalid_request"},
		{errors.New("disk full"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			code, name := errorStatus(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.name, name)
		})
	}
}
