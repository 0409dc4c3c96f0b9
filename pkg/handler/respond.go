package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bioepi/snapdb/logger"
	"github.com/bioepi/snapdb/pkg/model"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// errorResponse is the uniform error body. Details carries what the
// caller can act on, e.g. the colliding clusters of a refused merge.
type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// writeError maps the model error taxonomy onto HTTP status codes.
// Validation problems are the caller's fault, merge/outlier refusals
// are retriable conflicts, consistency violations are ours.
func writeError(w http.ResponseWriter, err error) {

	var valErr *model.ValidationError
	var mergeErr *model.MergeRequiredError
	var outlierErr *model.OutlierRejection
	var contigErr *model.ContigMismatchError
	var consErr *model.ConsistencyError

	switch {
	case errors.Is(err, model.ErrSampleNotFound), errors.Is(err, model.ErrNotClustered):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})

	case errors.Is(err, model.ErrSampleExists), errors.Is(err, model.ErrAlreadyClustered):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})

	case errors.As(err, &valErr), errors.As(err, &contigErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

	case errors.As(err, &mergeErr):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:   mergeErr.Error(),
			Details: mergeErr,
		})

	case errors.As(err, &outlierErr):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:   outlierErr.Error(),
			Details: outlierErr.ZScores,
		})

	case errors.As(err, &consErr):
		logger.Error("Consistency violation", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})

	default:
		logger.Error("Request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
