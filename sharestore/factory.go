package sharestore

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ruteri/threshold-xks/interfaces"
)

// SourceFactory creates share sources from location URIs.
type SourceFactory struct {
	log *slog.Logger
}

// NewSourceFactory creates a factory.
func NewSourceFactory(log *slog.Logger) *SourceFactory {
	return &SourceFactory{log: log}
}

// SourceFor creates a share source from a location.
//
// Supported schemes:
//   - file:///abs/path.json
//   - s3://bucket/key?region=..&endpoint=..&anonymous=true
//   - vault://host:port/mount/path?field=document&tls=true&ca=/path/ca.pem
func (sf *SourceFactory) SourceFor(location interfaces.ShareSourceLocation) (interfaces.ShareSource, error) {
	switch location.Scheme {
	case "file":
		return sf.createFileSource(location)
	case "s3":
		return sf.createS3Source(location)
	case "vault":
		return sf.createVaultSource(location)
	default:
		return nil, fmt.Errorf("unsupported share source scheme: %s", location.Scheme)
	}
}

// SourcesFor parses uris and returns a single source, falling back across
// them in order when more than one is given.
func (sf *SourceFactory) SourcesFor(uris []string) (interfaces.ShareSource, error) {
	if len(uris) == 0 {
		return nil, fmt.Errorf("no share source configured")
	}

	sources := make([]interfaces.ShareSource, 0, len(uris))
	for _, uri := range uris {
		location, err := interfaces.NewShareSourceLocation(uri)
		if err != nil {
			return nil, err
		}
		source, err := sf.SourceFor(location)
		if err != nil {
			return nil, fmt.Errorf("share source %s: %w", uri, err)
		}
		sources = append(sources, source)
	}

	if len(sources) == 1 {
		return sources[0], nil
	}
	return NewMultiSource(sources, sf.log), nil
}

// file:///absolute/path.json or file://./relative/path.json
func (sf *SourceFactory) createFileSource(location interfaces.ShareSourceLocation) (interfaces.ShareSource, error) {
	path := location.Path
	if location.Host != "" {
		path = location.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("empty path in file URI: %s", location)
	}

	sf.log.Debug("Creating file share source", slog.String("path", path))
	return NewFileSource(path, sf.log), nil
}

// Credentials come from the default AWS chain unless anonymous=true.
func (sf *SourceFactory) createS3Source(location interfaces.ShareSourceLocation) (interfaces.ShareSource, error) {
	sf.log.Debug("Creating S3 share source", slog.String("bucket", location.Host))

	return NewS3Source(S3Config{
		Bucket:    location.Host,
		Key:       strings.TrimPrefix(location.Path, "/"),
		Region:    location.GetParam("region"),
		Endpoint:  location.GetParam("endpoint"),
		Anonymous: location.GetParamBool("anonymous"),
	}, sf.log)
}

// The first path segment is the KV v2 mount; the token is read from
// VAULT_TOKEN.
func (sf *SourceFactory) createVaultSource(location interfaces.ShareSourceLocation) (interfaces.ShareSource, error) {
	mount, secretPath, _ := strings.Cut(strings.TrimPrefix(location.Path, "/"), "/")

	scheme := "http"
	if location.GetParamBool("tls") {
		scheme = "https"
	}

	sf.log.Debug("Creating Vault share source",
		slog.String("address", location.Host),
		slog.String("mount", mount))

	return NewVaultSource(VaultConfig{
		Address:    fmt.Sprintf("%s://%s", scheme, location.Host),
		MountPath:  mount,
		SecretPath: secretPath,
		Field:      location.GetParam("field"),
		Token:      os.Getenv("VAULT_TOKEN"),
		CACert:     location.GetParam("ca"),
	}, sf.log)
}
