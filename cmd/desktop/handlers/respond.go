// Package handlers provides the REST API handlers of the desktop server.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "github.com/kimhsiao/stash/internal/errors"
	"github.com/kimhsiao/stash/internal/logging"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to write response", err, nil)
	}
}

// writeError maps err to a status code through its AppError code.
func writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		logging.Error("Request failed", err, nil)
	}
	writeJSON(w, status, ErrorResponse{Code: string(apperrors.CodeOf(err)), Message: msg})
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.Wrap(apperrors.ErrInvalid, "invalid request body", err)
	}
	return nil
}
