package interfaces

import (
	"errors"
)

var (
	// ErrUnknownKey is returned when no share is configured for a key identifier.
	ErrUnknownKey = errors.New("unknown key")

	// ErrRemoteUnavailable is returned when the Share Service cannot be reached
	// or fails for a reason other than the ones below.
	ErrRemoteUnavailable = errors.New("remote participant unavailable")

	// ErrDeadlineExceeded is returned when the request deadline elapses
	// before both partial results are available.
	ErrDeadlineExceeded = errors.New("deadline exceeded")

	// ErrUnauthorized is returned when mutual authentication between the
	// services fails.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInsufficientShares is returned by the combiner when fewer than the
	// threshold of distinct, valid partial results are present.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrCombination is returned by the Proxy Service when partial results
	// could not be combined into a key.
	ErrCombination = errors.New("combination failed")

	// ErrAuthenticationTag is returned when AEAD verification fails on decrypt.
	ErrAuthenticationTag = errors.New("decryption failed")

	// ErrInvalidRequest is returned for malformed requests.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidShareDocument is returned when a share document cannot be parsed
	// or violates the one-share-per-key rule.
	ErrInvalidShareDocument = errors.New("invalid share document")

	// ErrSourceUnavailable is returned when a share source cannot be read.
	// Loading retries on this error.
	ErrSourceUnavailable = errors.New("share source unavailable")
)

// Error kinds as they appear on the wire.
const (
	KindUnknownKey         = "UnknownKeyError"
	KindRemoteUnavailable  = "RemoteUnavailableError"
	KindDeadlineExceeded   = "DeadlineExceededError"
	KindUnauthorized       = "UnauthorizedError"
	KindInsufficientShares = "InsufficientSharesError"
	KindCombination        = "CombinationError"
	KindAuthenticationTag  = "AuthenticationTagError"
	KindInvalidRequest     = "InvalidRequestError"
	KindInternal           = "InternalError"
)

var errorKinds = []struct {
	err     error
	kind    string
	message string
}{
	// ErrCombination may wrap ErrInsufficientShares, so it is checked first.
	{ErrCombination, KindCombination, "service error"},
	{ErrInsufficientShares, KindInsufficientShares, "service error"},
	{ErrUnknownKey, KindUnknownKey, "unknown key"},
	{ErrDeadlineExceeded, KindDeadlineExceeded, "deadline exceeded"},
	{ErrRemoteUnavailable, KindRemoteUnavailable, "service unavailable"},
	{ErrUnauthorized, KindUnauthorized, "unauthorized"},
	{ErrAuthenticationTag, KindAuthenticationTag, "decryption failed"},
	{ErrInvalidRequest, KindInvalidRequest, "invalid request"},
}

// ErrorKind returns the wire kind for err, or KindInternal.
func ErrorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// NewErrorResponse builds the opaque response body for err.
func NewErrorResponse(err error) ErrorResponse {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return ErrorResponse{ErrorKind: k.kind, Message: k.message}
		}
	}
	return ErrorResponse{ErrorKind: KindInternal, Message: "internal error"}
}

// ErrorFromKind maps a wire kind back to its sentinel error. Unknown kinds
// map to ErrRemoteUnavailable.
func ErrorFromKind(kind string) error {
	for _, k := range errorKinds {
		if k.kind == kind {
			return k.err
		}
	}
	return ErrRemoteUnavailable
}
