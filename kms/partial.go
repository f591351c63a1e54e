package kms

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ruteri/threshold-xks/interfaces"
	"github.com/ruteri/threshold-xks/metrics"
	"github.com/ruteri/threshold-xks/sharestore"
	"github.com/ruteri/threshold-xks/threshold"
	"go.uber.org/atomic"
)

// MaxRequestIDLength bounds the caller-supplied request identifier.
const MaxRequestIDLength = 128

var _ interfaces.PartialProvider = (*PartialService)(nil)

// PartialService is the Share Service core: one scalar multiplication per
// request. It only ever sees a key identifier and the virtual point.
//
// Every call is written to the audit log with a monotonically increasing
// sequence number. The log carries no point or data fields.
type PartialService struct {
	store   *sharestore.Store
	seq     *atomic.Uint64
	audit   *slog.Logger
	metrics *metrics.Metrics
}

// NewPartialService creates the Share Service core.
func NewPartialService(store *sharestore.Store, log *slog.Logger, m *metrics.Metrics) *PartialService {
	if log == nil {
		log = slog.Default()
	}
	return &PartialService{
		store:   store,
		seq:     atomic.NewUint64(0),
		audit:   log.With(slog.String("component", "audit")),
		metrics: m,
	}
}

// ComputePartial returns share × virtualPoint for the requested key. The
// virtual point must be the hash-to-curve image of the key identifier, so
// the service cannot be used to multiply arbitrary points.
func (s *PartialService) ComputePartial(ctx context.Context, req interfaces.PartialRequest) (resp interfaces.PartialResponse, err error) {
	seq := s.seq.Inc()
	index := s.store.Index()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = interfaces.ErrorKind(err)
		}
		s.metrics.ObservePartial(outcome)
		s.audit.Info("partial",
			slog.Uint64("seq", seq),
			slog.String("request_id", truncate(req.RequestID, MaxRequestIDLength)),
			slog.String("key_id", truncate(string(req.KeyID), interfaces.MaxKeyIDLength)),
			slog.Int("share_index", int(index)),
			slog.String("outcome", outcome))
	}()

	if err := ctx.Err(); err != nil {
		return resp, fmt.Errorf("%w: %v", interfaces.ErrDeadlineExceeded, err)
	}
	if err := req.KeyID.Validate(); err != nil {
		return resp, err
	}
	if err := validateRequestID(req.RequestID); err != nil {
		return resp, err
	}

	err = s.store.With(req.KeyID, func(share *threshold.Share) error {
		vp, err := threshold.UnmarshalPoint(req.VirtualPoint)
		if err != nil {
			return fmt.Errorf("%w: %v", interfaces.ErrInvalidRequest, err)
		}
		if !vp.IsEqual(threshold.HashToCurve(req.KeyID)) {
			return fmt.Errorf("%w: virtual point does not match key identifier", interfaces.ErrInvalidRequest)
		}

		partial, err := threshold.ComputePartial(share, vp)
		if err != nil {
			return err
		}
		resp.PartialResult, err = threshold.MarshalPoint(partial.Point)
		return err
	})
	return resp, err
}

func validateRequestID(id string) error {
	if id == "" || len(id) > MaxRequestIDLength {
		return fmt.Errorf("%w: request identifier must be 1..%d bytes", interfaces.ErrInvalidRequest, MaxRequestIDLength)
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return fmt.Errorf("%w: request identifier contains byte 0x%02x", interfaces.ErrInvalidRequest, id[i])
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
