package sharestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/threshold-xks/interfaces"
)

// MultiSource tries several share sources in order and returns the first
// document fetched.
type MultiSource struct {
	sources []interfaces.ShareSource
	log     *slog.Logger
}

// NewMultiSource creates a fallback source over sources.
func NewMultiSource(sources []interfaces.ShareSource, log *slog.Logger) *MultiSource {
	if log == nil {
		log = slog.Default()
	}
	return &MultiSource{sources: sources, log: log}
}

// Fetch returns the first successful fetch. When all sources fail, the
// returned error joins every source's error, so it still matches
// ErrSourceUnavailable if any failure was transient.
func (m *MultiSource) Fetch(ctx context.Context) ([]byte, error) {
	start := time.Now()
	var errs []error

	for _, source := range m.sources {
		data, err := source.Fetch(ctx)
		if err == nil {
			m.log.Info("Fetched share document",
				slog.String("source", source.Name()),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", source.Name(), err))
		m.log.Debug("Failed to fetch share document from source",
			slog.String("source", source.Name()),
			"err", err)

		if ctx.Err() != nil {
			break
		}
	}

	if len(errs) == 0 {
		return nil, errors.New("no share sources configured")
	}

	m.log.Error("All share sources failed",
		slog.Int("failed_sources", len(errs)),
		slog.Duration("duration", time.Since(start)))

	return nil, errors.Join(errs...)
}

// Name returns the names of the underlying sources.
func (m *MultiSource) Name() string {
	names := make([]string, 0, len(m.sources))
	for _, source := range m.sources {
		names = append(names, source.Name())
	}
	return "multi:[" + strings.Join(names, ",") + "]"
}
