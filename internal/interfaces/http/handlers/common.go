// Package handlers holds the HTTP handlers of the reporting core API.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeAppError maps an error to its HTTP status through its error code.
// Internal errors are masked.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)
	resp := ErrorResponse{Code: string(code), Message: err.Error(), RequestID: chimw.GetReqID(r.Context())}

	var ae *errors.AppError
	if errors.As(err, &ae) {
		resp.Message = ae.Message
		resp.Detail = ae.Detail
	}
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context(), nil).Error("request failed",
			logging.String("code", string(code)), logging.Err(err))
	}
	if status == http.StatusInternalServerError {
		resp.Code = string(errors.ErrCodeInternal)
		resp.Message = "internal server error"
		resp.Detail = ""
	}
	writeJSON(w, status, resp)
}

// pathID parses a positive int64 URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Validation(name + " must be a positive integer").WithDetail(raw)
	}
	return id, nil
}

// writeBodyError reports an unreadable request body: 413 when the size cap
// was hit, otherwise a validation error.
func writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
			Code:      http.StatusText(http.StatusRequestEntityTooLarge),
			Message:   "request body too large",
			RequestID: chimw.GetReqID(r.Context()),
		})
		return
	}
	writeAppError(w, r, errors.Validation("invalid request body").WithCause(err))
}
