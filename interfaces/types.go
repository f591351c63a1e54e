package interfaces

import (
	"fmt"
	"strconv"
)

// MaxKeyIDLength is the longest key identifier accepted by either service.
const MaxKeyIDLength = 128

// KeyID names a logical encryption key.
type KeyID string

// NewKeyID validates and returns a key identifier.
func NewKeyID(s string) (KeyID, error) {
	id := KeyID(s)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// Validate checks that the identifier is non-empty, at most MaxKeyIDLength
// bytes and made only of printable ASCII without spaces.
func (id KeyID) Validate() error {
	if len(id) == 0 {
		return fmt.Errorf("%w: empty key identifier", ErrInvalidRequest)
	}
	if len(id) > MaxKeyIDLength {
		return fmt.Errorf("%w: key identifier longer than %d bytes", ErrInvalidRequest, MaxKeyIDLength)
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return fmt.Errorf("%w: key identifier contains byte 0x%02x at %d", ErrInvalidRequest, id[i], i)
		}
	}
	return nil
}

// String returns the identifier.
func (id KeyID) String() string {
	return string(id)
}

// ShareIndex is the public x-coordinate of a participant's share.
type ShareIndex uint8

const (
	// TotalShares is the number of shares produced by a ceremony.
	TotalShares = 3

	// Threshold is the number of partial results needed to derive a key.
	Threshold = 2
)

// ParseShareIndex parses a decimal share index and validates it.
func ParseShareIndex(s string) (ShareIndex, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid share index %q: %w", s, err)
	}
	idx := ShareIndex(n)
	if err := idx.Validate(); err != nil {
		return 0, err
	}
	return idx, nil
}

// Validate checks the index is one of 1..TotalShares.
func (i ShareIndex) Validate() error {
	if i < 1 || i > TotalShares {
		return fmt.Errorf("share index %d outside 1..%d", i, TotalShares)
	}
	return nil
}

// String returns the decimal index.
func (i ShareIndex) String() string {
	return strconv.Itoa(int(i))
}

// PartialRequest is sent by the Proxy Service to a Share Service. It has no
// field for plaintext, ciphertext or the kind of operation being performed.
type PartialRequest struct {
	KeyID        KeyID  `json:"keyId"`
	VirtualPoint []byte `json:"virtualPoint"`
	RequestID    string `json:"requestId"`
}

// PartialResponse carries the Share Service's partial result as a
// compressed curve point.
type PartialResponse struct {
	PartialResult []byte `json:"partialResult"`
}

// CryptoRequest is the body of /encrypt and /decrypt.
type CryptoRequest struct {
	KeyID          KeyID  `json:"keyId"`
	Data           []byte `json:"data"`
	AssociatedData []byte `json:"associatedData"`
}

// CryptoResponse is the successful response of /encrypt and /decrypt.
type CryptoResponse struct {
	Data []byte `json:"data"`
}

// ErrorResponse is returned by both services on failure. Message is a fixed
// string per kind and never contains key material or internal details.
type ErrorResponse struct {
	ErrorKind string `json:"errorKind"`
	Message   string `json:"message"`
}
