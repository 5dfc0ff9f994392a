package costs

import (
	"context"
	"encoding/json"
	"net/http"

	"demeter/pkg/errors"
)

type errBody struct {
	Error string `json:"error"`
}

func errorBody(msg string) errBody {
	return errBody{Error: msg}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Errorf("Failed to encode response: %v", err)
	}
}

// writeError maps domain errors to HTTP statuses. Anything not classified is
// treated as the aggregate store being unreachable, which the read side
// reports as temporary unavailability rather than a hard failure.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errors.ErrInvalidInput), errors.Is(err, errors.ErrInvalidRange):
		h.writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, errors.ErrInvalidThreshold):
		h.writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
	case errors.Is(err, errors.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, errors.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		h.log.Warnw("Query timed out", "path", r.URL.Path)
		h.writeJSON(w, http.StatusGatewayTimeout, errorBody("query timed out"))
	default:
		h.log.Errorw("Query failed", "path", r.URL.Path, "error", err)
		h.writeJSON(w, http.StatusServiceUnavailable, errorBody("cost data temporarily unavailable"))
	}
}
