package interfaces

import (
	"context"
	"fmt"
	"net/url"
)

// ShareSourceLocation is a parsed share source URI.
type ShareSourceLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
}

// NewShareSourceLocation parses and validates a share source URI.
func NewShareSourceLocation(uri string) (ShareSourceLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return ShareSourceLocation{}, fmt.Errorf("invalid URI format: %w", err)
	}

	switch parsed.Scheme {
	case "file", "s3", "vault":
	default:
		return ShareSourceLocation{}, fmt.Errorf("unsupported share source scheme: %q", parsed.Scheme)
	}

	return ShareSourceLocation{
		Raw:    uri,
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
	}, nil
}

// String returns the original URI string.
func (loc ShareSourceLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter value.
func (loc ShareSourceLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc ShareSourceLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

// ShareSource yields a raw share document.
type ShareSource interface {
	// Fetch returns the document bytes. Transient failures wrap
	// ErrSourceUnavailable.
	Fetch(ctx context.Context) ([]byte, error)

	// Name returns identifier for logging.
	Name() string
}

// ShareSourceFactory creates share sources.
type ShareSourceFactory interface {
	// SourceFor creates a source from a location. Supports file://, s3://, vault://
	SourceFor(location ShareSourceLocation) (ShareSource, error)
}
