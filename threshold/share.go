package threshold

import (
	"fmt"
	"log/slog"

	"github.com/cloudflare/circl/group"
	"github.com/ruteri/threshold-xks/interfaces"
)

// Share is one participant's scalar share of one key.
type Share struct {
	Index interfaces.ShareIndex
	Value group.Scalar
}

// NewShare validates the index and wraps the scalar.
func NewShare(index interfaces.ShareIndex, value group.Scalar) (*Share, error) {
	if err := index.Validate(); err != nil {
		return nil, err
	}
	if value == nil || value.IsZero() {
		return nil, fmt.Errorf("share %d has a zero value", index)
	}
	return &Share{Index: index, Value: value}, nil
}

// Wipe overwrites the share's scalar.
func (s *Share) Wipe() {
	if s != nil && s.Value != nil {
		s.Value.SetUint64(0)
	}
}

// String never prints the scalar.
func (s *Share) String() string {
	return fmt.Sprintf("Share(%d, [redacted])", s.Index)
}

// LogValue keeps shares out of structured logs.
func (s *Share) LogValue() slog.Value {
	return slog.StringValue("[redacted]")
}

// PartialResult is one participant's share × virtual point.
type PartialResult struct {
	Index interfaces.ShareIndex
	Point group.Element
}

// ComputePartial multiplies the virtual point by the share.
func ComputePartial(share *Share, virtualPoint group.Element) (PartialResult, error) {
	if share == nil || share.Value == nil {
		return PartialResult{}, fmt.Errorf("%w: missing share", interfaces.ErrUnknownKey)
	}
	if virtualPoint == nil || virtualPoint.IsIdentity() {
		return PartialResult{}, errInvalidPoint
	}
	p := Curve.NewElement().Mul(virtualPoint, share.Value)
	return PartialResult{Index: share.Index, Point: p}, nil
}
