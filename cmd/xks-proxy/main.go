package main

import (
	"crypto/tls"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/threshold-xks/api/proxyhandler"
	"github.com/ruteri/threshold-xks/api/server"
	"github.com/ruteri/threshold-xks/api/sharehandler"
	"github.com/ruteri/threshold-xks/cmd/flags"
	"github.com/ruteri/threshold-xks/cmd/kmscommon"
	"github.com/ruteri/threshold-xks/cryptoutils"
	"github.com/ruteri/threshold-xks/interfaces"
	"github.com/ruteri/threshold-xks/kms"
	"github.com/ruteri/threshold-xks/metrics"
	"github.com/urfave/cli/v2"
)

var ProxyServiceLogFlag = flags.LogServiceFlagFn("xks-proxy")

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8080",
	Usage:   "address to listen on for the external API",
	EnvVars: []string{"XKS_LISTEN_ADDR"},
}
var RemoteFlag = &cli.StringSliceFlag{
	Name:     "remote",
	Required: true,
	Usage:    "remote participant as <share index>=<url>, e.g. 2=https://share-2:8443. May be repeated",
	EnvVars:  []string{"XKS_REMOTES"},
}
var ActiveRemoteFlag = &cli.UintFlag{
	Name:    "active-remote",
	Usage:   "share index of the remote participant to call first. Defaults to the lowest configured",
	EnvVars: []string{"XKS_ACTIVE_REMOTE"},
}
var RequestTimeoutFlag = &cli.DurationFlag{
	Name:    "request-timeout",
	Value:   kms.DefaultRequestTimeout,
	Usage:   "end-to-end deadline for one encrypt or decrypt",
	EnvVars: []string{"XKS_REQUEST_TIMEOUT"},
}
var ListenTLSCertFlag = &cli.StringFlag{
	Name:  "listen-tls-cert",
	Usage: "PEM certificate for the external API. Plain HTTP when empty",
}
var ListenTLSKeyFlag = &cli.StringFlag{
	Name:  "listen-tls-key",
	Usage: "PEM private key for --listen-tls-cert",
}

func main() {
	app := &cli.App{
		Name:  "xks-proxy",
		Usage: "Serve the threshold external key store API",
		Flags: append(append(append([]cli.Flag{
			ListenAddrFlag,
			RemoteFlag,
			ActiveRemoteFlag,
			RequestTimeoutFlag,
			ListenTLSCertFlag,
			ListenTLSKeyFlag,
			ProxyServiceLogFlag,
		}, kmscommon.ShareFlags...), flags.TLSFlags...), flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			remoteURLs, err := parseRemotes(cCtx.StringSlice(RemoteFlag.Name))
			if err != nil {
				logger.Error("Invalid remote configuration", "err", err)
				return err
			}
			active := interfaces.ShareIndex(cCtx.Uint(ActiveRemoteFlag.Name))
			if active == 0 {
				active = lowestIndex(remoteURLs)
			}

			store, err := kmscommon.LoadShareStore(cCtx, logger)
			if err != nil {
				logger.Error("Failed to load share store", "err", err)
				return err
			}
			defer store.Wipe()

			mtlsConfig, err := flags.ClientTLSConfig(cCtx)
			if err != nil {
				logger.Error("Failed to configure mutual TLS", "err", err)
				return err
			}

			remotes := make(map[interfaces.ShareIndex]interfaces.PartialProvider, len(remoteURLs))
			for index, url := range remoteURLs {
				remotes[index] = sharehandler.NewClient(url, mtlsConfig.Clone())
			}

			m := metrics.New("xks-proxy")
			kmsImpl, err := kms.NewThresholdKMS(store, remotes, active,
				kms.WithTimeout(cCtx.Duration(RequestTimeoutFlag.Name)),
				kms.WithMetrics(m),
				kms.WithLogger(logger))
			if err != nil {
				logger.Error("Failed to initialize KMS", "err", err)
				return err
			}
			logger.Info("KMS initialized",
				"local_share", int(kmsImpl.LocalIndex()),
				"active_remote", int(kmsImpl.ActiveRemote()),
				"keys", len(store.KeyIDs()))

			listenTLS, err := listenerTLSConfig(cCtx)
			if err != nil {
				logger.Error("Failed to configure listener TLS", "err", err)
				return err
			}

			proxyServer, err := server.New(
				flags.ConfigureServer(cCtx, logger, cCtx.String(ListenAddrFlag.Name), m, listenTLS),
				proxyhandler.NewHandler(kmsImpl, logger))
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}
			if err := proxyServer.RunInBackground(); err != nil {
				logger.Error("Failed to start server", "err", err)
				return err
			}

			// SIGUSR1 moves to the next configured remote participant.
			failover := make(chan os.Signal, 1)
			signal.Notify(failover, syscall.SIGUSR1)
			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			for {
				select {
				case <-failover:
					next := nextIndex(remoteURLs, kmsImpl.ActiveRemote())
					if err := kmsImpl.Failover(next); err != nil {
						logger.Error("Failover failed", "err", err)
					}
				case <-exit:
					logger.Info("Shutdown signal received")
					proxyServer.Shutdown()
					logger.Info("Server shutdown complete")
					return nil
				}
			}
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func listenerTLSConfig(cCtx *cli.Context) (*tls.Config, error) {
	certFile := cCtx.String(ListenTLSCertFlag.Name)
	if certFile == "" {
		return nil, nil
	}
	cert, err := cryptoutils.LoadKeyPair(certFile, cCtx.String(ListenTLSKeyFlag.Name))
	if err != nil {
		return nil, err
	}
	return cryptoutils.NewServerTLSConfig(cert, nil), nil
}
