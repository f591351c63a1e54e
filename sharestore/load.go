package sharestore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/awnumar/memguard"
	"github.com/cenkalti/backoff/v4"
	"github.com/ruteri/threshold-xks/interfaces"
)

// Load fetches a share document from source and builds a Store, retrying
// transient source failures with exponential backoff until ctx is done.
func Load(ctx context.Context, source interfaces.ShareSource, log *slog.Logger) (*Store, error) {
	return LoadWithBackOff(ctx, source, backoff.NewExponentialBackOff(), log)
}

// LoadWithBackOff is Load with a caller-supplied retry policy.
func LoadWithBackOff(ctx context.Context, source interfaces.ShareSource, b backoff.BackOff, log *slog.Logger) (*Store, error) {
	start := time.Now()
	attempts := 0

	fetch := func() ([]byte, error) {
		attempts++
		data, err := source.Fetch(ctx)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, interfaces.ErrSourceUnavailable) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}
	notify := func(err error, next time.Duration) {
		log.Warn("Share source unavailable, retrying",
			slog.String("source", source.Name()),
			slog.Duration("retry_in", next),
			"err", err)
	}

	data, err := backoff.RetryNotifyWithData(fetch, backoff.WithContext(b, ctx), notify)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(data)

	index, shares, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}

	store, err := New(index, shares)
	if err != nil {
		return nil, err
	}

	log.Info("Loaded share store",
		slog.String("source", source.Name()),
		slog.Int("share_index", int(index)),
		slog.Int("keys", len(shares)),
		slog.Int("attempts", attempts),
		slog.Duration("duration", time.Since(start)))

	return store, nil
}
