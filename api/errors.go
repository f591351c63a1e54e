package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ruteri/threshold-xks/interfaces"
)

// MaxBodySize bounds request bodies of both services.
const MaxBodySize = 1 << 20

// StatusCode maps err to an HTTP status. unauthorizedStatus is the status
// for ErrUnauthorized, which differs between the service that rejected a
// peer and the service whose peer rejected it.
func StatusCode(err error, unauthorizedStatus int) int {
	switch {
	case errors.Is(err, interfaces.ErrCombination),
		errors.Is(err, interfaces.ErrInsufficientShares):
		return http.StatusInternalServerError
	case errors.Is(err, interfaces.ErrUnknownKey):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrInvalidRequest),
		errors.Is(err, interfaces.ErrAuthenticationTag):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrUnauthorized):
		return unauthorizedStatus
	case errors.Is(err, interfaces.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, interfaces.ErrDeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the opaque error body for err.
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteJSON(w, status, interfaces.NewErrorResponse(err))
}

// DecodeJSON reads a size-limited JSON body into v, rejecting unknown
// fields and trailing data.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrInvalidRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after request body", interfaces.ErrInvalidRequest)
	}
	return nil
}

// ResponseError turns a non-200 response body into the sentinel error of
// its kind. Bodies that are not error responses are ErrRemoteUnavailable.
func ResponseError(status int, body []byte) error {
	var errResp interfaces.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.ErrorKind == "" {
		return fmt.Errorf("%w: status %d", interfaces.ErrRemoteUnavailable, status)
	}
	return fmt.Errorf("%w: status %d", interfaces.ErrorFromKind(errResp.ErrorKind), status)
}
