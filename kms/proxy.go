package kms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/awnumar/memguard"
	"github.com/cloudflare/circl/group"
	"github.com/google/uuid"
	"github.com/ruteri/threshold-xks/interfaces"
	"github.com/ruteri/threshold-xks/metrics"
	"github.com/ruteri/threshold-xks/sharestore"
	"github.com/ruteri/threshold-xks/threshold"
	"go.uber.org/atomic"
)

// DefaultRequestTimeout bounds one Encrypt or Decrypt including the remote
// partial computation.
const DefaultRequestTimeout = 250 * time.Millisecond

var _ interfaces.KMS = (*ThresholdKMS)(nil)

// ThresholdKMS is the Proxy Service core. It holds one share locally and
// obtains a second partial result from the active remote participant for
// every request. The derived key exists only for the duration of a call.
type ThresholdKMS struct {
	store   *sharestore.Store
	remotes map[interfaces.ShareIndex]interfaces.PartialProvider
	active  *atomic.Uint32

	timeout time.Duration
	metrics *metrics.Metrics
	log     *slog.Logger
}

// Option configures a ThresholdKMS.
type Option func(*ThresholdKMS)

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(k *ThresholdKMS) {
		if d > 0 {
			k.timeout = d
		}
	}
}

// WithMetrics records operation outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(k *ThresholdKMS) { k.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(k *ThresholdKMS) {
		if log != nil {
			k.log = log
		}
	}
}

// NewThresholdKMS creates the proxy core. remotes maps share indices to the
// participants that hold them; active selects the one called initially.
func NewThresholdKMS(store *sharestore.Store, remotes map[interfaces.ShareIndex]interfaces.PartialProvider, active interfaces.ShareIndex, opts ...Option) (*ThresholdKMS, error) {
	if store == nil {
		return nil, errors.New("share store is required")
	}
	local := store.Index()
	for index, remote := range remotes {
		if remote == nil {
			return nil, fmt.Errorf("remote participant %d is nil", index)
		}
		if _, err := threshold.PairingFor(local, index); err != nil {
			return nil, fmt.Errorf("remote participant %d: %w", index, err)
		}
	}

	k := &ThresholdKMS{
		store:   store,
		remotes: remotes,
		active:  atomic.NewUint32(0),
		timeout: DefaultRequestTimeout,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(k)
	}
	if err := k.Failover(active); err != nil {
		return nil, err
	}
	return k, nil
}

// Failover switches the active remote participant. Keys derived under the
// new pairing are identical to those derived under the old one.
func (k *ThresholdKMS) Failover(index interfaces.ShareIndex) error {
	if _, ok := k.remotes[index]; !ok {
		return fmt.Errorf("no remote participant configured for share %d", index)
	}
	if _, err := threshold.PairingFor(k.store.Index(), index); err != nil {
		return err
	}

	previous := interfaces.ShareIndex(k.active.Swap(uint32(index)))
	if previous != 0 && previous != index {
		k.log.Warn("Switched remote participant",
			slog.Int("from", int(previous)),
			slog.Int("to", int(index)))
	}
	return nil
}

// ActiveRemote returns the share index of the participant currently called.
func (k *ThresholdKMS) ActiveRemote() interfaces.ShareIndex {
	return interfaces.ShareIndex(k.active.Load())
}

// LocalIndex returns the share index held by this process.
func (k *ThresholdKMS) LocalIndex() interfaces.ShareIndex {
	return k.store.Index()
}

// Encrypt seals plaintext under the key derived for keyID.
func (k *ThresholdKMS) Encrypt(ctx context.Context, keyID interfaces.KeyID, plaintext, aad []byte) (ciphertext []byte, err error) {
	start := time.Now()
	defer func() { k.observe("encrypt", err, start) }()

	err = k.withDerivedKey(ctx, keyID, func(key []byte) error {
		ciphertext, err = seal(key, plaintext, aad)
		return err
	})
	return ciphertext, err
}

// Decrypt opens a ciphertext produced by Encrypt. Any verification failure
// is ErrAuthenticationTag.
func (k *ThresholdKMS) Decrypt(ctx context.Context, keyID interfaces.KeyID, ciphertext, aad []byte) (plaintext []byte, err error) {
	start := time.Now()
	defer func() { k.observe("decrypt", err, start) }()

	err = k.withDerivedKey(ctx, keyID, func(key []byte) error {
		plaintext, err = open(key, ciphertext, aad)
		return err
	})
	return plaintext, err
}

// withDerivedKey runs fn with the key for keyID. The combined secret and the
// key are overwritten before it returns on every path.
func (k *ThresholdKMS) withDerivedKey(ctx context.Context, keyID interfaces.KeyID, fn func(key []byte) error) error {
	if err := keyID.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	var local threshold.PartialResult
	var virtualPoint []byte
	err := k.store.With(keyID, func(share *threshold.Share) error {
		vp := threshold.HashToCurve(keyID)
		var err error
		if local, err = threshold.ComputePartial(share, vp); err != nil {
			return err
		}
		virtualPoint, err = threshold.MarshalPoint(vp)
		return err
	})
	if err != nil {
		return err
	}
	defer threshold.WipeElement(local.Point)

	remoteIndex := k.ActiveRemote()
	remotePoint, err := k.remotePartial(ctx, remoteIndex, keyID, virtualPoint)
	if err != nil {
		return err
	}
	defer threshold.WipeElement(remotePoint)

	secret, err := threshold.Combine(map[interfaces.ShareIndex]group.Element{
		local.Index: local.Point,
		remoteIndex: remotePoint,
	}, interfaces.Threshold)
	if err != nil {
		if errors.Is(err, interfaces.ErrInsufficientShares) {
			return fmt.Errorf("%w: %w", interfaces.ErrCombination, err)
		}
		return err
	}
	defer threshold.WipeElement(secret)

	key, err := threshold.DeriveKey(secret, keyID)
	if err != nil {
		return err
	}
	defer memguard.WipeBytes(key)

	return fn(key)
}

func (k *ThresholdKMS) remotePartial(ctx context.Context, index interfaces.ShareIndex, keyID interfaces.KeyID, virtualPoint []byte) (group.Element, error) {
	requestID := newRequestID()
	start := time.Now()

	resp, err := k.remotes[index].ComputePartial(ctx, interfaces.PartialRequest{
		KeyID:        keyID,
		VirtualPoint: virtualPoint,
		RequestID:    requestID,
	})
	if err != nil {
		err = remoteError(ctx, err)
		k.metrics.ObserveRemote(index.String(), interfaces.ErrorKind(err), start)
		k.log.Warn("Remote partial computation failed",
			slog.String("request_id", requestID),
			slog.String("key_id", keyID.String()),
			slog.Int("share_index", int(index)),
			slog.Duration("duration", time.Since(start)),
			"err", err)
		return nil, err
	}

	point, err := threshold.UnmarshalPoint(resp.PartialResult)
	if err != nil {
		k.metrics.ObserveRemote(index.String(), interfaces.KindCombination, start)
		k.log.Error("Remote participant returned an invalid partial result",
			slog.String("request_id", requestID),
			slog.Int("share_index", int(index)))
		return nil, fmt.Errorf("%w: invalid partial result from participant %d", interfaces.ErrCombination, index)
	}

	k.metrics.ObserveRemote(index.String(), "ok", start)
	k.log.Debug("Received remote partial",
		slog.String("request_id", requestID),
		slog.Int("share_index", int(index)),
		slog.Duration("duration", time.Since(start)))
	return point, nil
}

// remoteError classifies a failed remote call. Unknown keys and
// authentication failures keep their kind; timeouts become
// ErrDeadlineExceeded; everything else is ErrRemoteUnavailable.
func remoteError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, interfaces.ErrUnknownKey), errors.Is(err, interfaces.ErrUnauthorized):
		return err
	case errors.Is(err, interfaces.ErrDeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", interfaces.ErrDeadlineExceeded, err)
	default:
		return fmt.Errorf("%w: %v", interfaces.ErrRemoteUnavailable, err)
	}
}

func (k *ThresholdKMS) observe(operation string, err error, start time.Time) {
	outcome := "ok"
	if err != nil {
		outcome = interfaces.ErrorKind(err)
	}
	k.metrics.ObserveRequest(operation, outcome, start)
}

// newRequestID returns a time-ordered identifier.
func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
