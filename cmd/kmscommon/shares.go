// Package kmscommon holds the configuration shared by the participant
// binaries: where the local share document comes from and how it is loaded.
package kmscommon

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ruteri/threshold-xks/sharestore"
	"github.com/urfave/cli/v2"
)

var SharesFlag = &cli.StringSliceFlag{
	Name:    "shares",
	Usage:   "share document location, tried in order: file:///path, s3://bucket/key?region=, vault://host:port/mount/path?field=&tls=true",
	EnvVars: []string{"XKS_SHARES"},
}

var SharesLoadTimeoutFlag = &cli.DurationFlag{
	Name:  "shares-load-timeout",
	Value: 2 * time.Minute,
	Usage: "give up loading the share document after this long",
}

var ShareFlags = []cli.Flag{
	SharesFlag,
	SharesLoadTimeoutFlag,
}

// LoadShareStore fetches, parses and installs the participant's share
// document. Transient source failures are retried until the load timeout.
func LoadShareStore(cCtx *cli.Context, logger *slog.Logger) (*sharestore.Store, error) {
	uris := cCtx.StringSlice(SharesFlag.Name)
	if len(uris) == 0 {
		return nil, errors.New("at least one --shares location is required")
	}

	source, err := sharestore.NewSourceFactory(logger).SourcesFor(uris)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(cCtx.Context, cCtx.Duration(SharesLoadTimeoutFlag.Name))
	defer cancel()

	logger.Info("Loading share document", "source", source.Name())
	return sharestore.Load(ctx, source, logger)
}
