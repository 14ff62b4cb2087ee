// Package httpjson writes and reads the JSON envelopes used by every
// API handler. Success bodies vary per endpoint; failures are always
// either {"success":false,"message":...} or a field-tagged errors list.
package httpjson

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// FieldError ties a validation message to the input field it concerns.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Write marshals v with the given status. Encoding failures are logged
// at the caller's peril; the status line has already gone out.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes v with a 200.
func OK(w http.ResponseWriter, v any) {
	Write(w, http.StatusOK, v)
}

// Message writes {"success":true,"message":...}.
func Message(w http.ResponseWriter, status int, msg string) {
	Write(w, status, map[string]any{"success": true, "message": msg})
}

// Error writes {"success":false,"message":...}.
func Error(w http.ResponseWriter, status int, msg string) {
	Write(w, status, map[string]any{"success": false, "message": msg})
}

// FieldErrors writes {"success":false,"errors":[...]}.
func FieldErrors(w http.ResponseWriter, status int, errs []FieldError) {
	Write(w, status, map[string]any{"success": false, "errors": errs})
}

// ServerError logs err and writes a generic 500 so internals never leak
// to callers.
func ServerError(w http.ResponseWriter, logger *zap.Logger, msg string, err error) {
	logger.Error(msg, zap.Error(err))
	Error(w, http.StatusInternalServerError, "Something went wrong. Please try again later.")
}

// Decode reads the request body into dst, rejecting bodies over 1 MiB.
// Unknown fields are ignored so clients can send supersets of a
// request shape.
func Decode(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}
