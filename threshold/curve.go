package threshold

import (
	"bytes"
	"crypto/elliptic"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/group"
	"github.com/ruteri/threshold-xks/interfaces"
)

const (
	// CompressedPointSize is the length of a SEC1 compressed P-256 point.
	CompressedPointSize = 33

	// ScalarSize is the length of an encoded P-256 scalar.
	ScalarSize = 32
)

// HashToCurveDST is the RFC 9380 domain separation tag. Both participants
// must use the same tag or their virtual points differ.
var HashToCurveDST = []byte("THRESHOLD-XKS-V01-CS01-with-P256_XMD:SHA-256_SSWU_RO_")

// Curve is the prime-order group all computations happen in.
var Curve = group.P256

var errInvalidPoint = errors.New("invalid curve point")

var (
	scalarOrder = elliptic.P256().Params().N.FillBytes(make([]byte, ScalarSize))
	zeroScalar  = make([]byte, ScalarSize)
)

// HashToCurve deterministically maps a key identifier to its virtual point.
func HashToCurve(keyID interfaces.KeyID) group.Element {
	return Curve.HashToElement([]byte(keyID), HashToCurveDST)
}

// WipeElement resets a point to the identity. nil is ignored.
func WipeElement(e group.Element) {
	if e != nil {
		e.Set(Curve.Identity())
	}
}

// MarshalPoint encodes a point in SEC1 compressed form.
func MarshalPoint(p group.Element) ([]byte, error) {
	if p == nil || p.IsIdentity() {
		return nil, errInvalidPoint
	}
	return p.MarshalBinaryCompress()
}

// UnmarshalPoint decodes a SEC1 compressed point, rejecting the identity and
// points not on the curve.
func UnmarshalPoint(b []byte) (group.Element, error) {
	if len(b) != CompressedPointSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", errInvalidPoint, len(b), CompressedPointSize)
	}
	p := Curve.NewElement()
	if err := p.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidPoint, err)
	}
	if p.IsIdentity() {
		return nil, errInvalidPoint
	}
	return p, nil
}

// MarshalScalar encodes a scalar as 32 big-endian bytes.
func MarshalScalar(s group.Scalar) ([]byte, error) {
	return s.MarshalBinary()
}

// UnmarshalScalar decodes a 32-byte big-endian scalar. Zero and values not
// below the group order are rejected.
func UnmarshalScalar(b []byte) (group.Scalar, error) {
	if len(b) != ScalarSize {
		return nil, fmt.Errorf("scalar must be %d bytes, got %d", ScalarSize, len(b))
	}
	if bytes.Equal(b, zeroScalar) {
		return nil, errors.New("scalar is zero")
	}
	if bytes.Compare(b, scalarOrder) >= 0 {
		return nil, errors.New("scalar not below group order")
	}
	s := Curve.NewScalar()
	if err := s.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("could not decode scalar: %w", err)
	}
	return s, nil
}

func scalarOf(i interfaces.ShareIndex) group.Scalar {
	return Curve.NewScalar().SetUint64(uint64(i))
}
