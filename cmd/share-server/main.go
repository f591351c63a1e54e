package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/threshold-xks/api/server"
	"github.com/ruteri/threshold-xks/api/sharehandler"
	"github.com/ruteri/threshold-xks/cmd/flags"
	"github.com/ruteri/threshold-xks/cmd/kmscommon"
	"github.com/ruteri/threshold-xks/kms"
	"github.com/ruteri/threshold-xks/metrics"
	"github.com/urfave/cli/v2"
)

var ShareServiceLogFlag = flags.LogServiceFlagFn("share-server")

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8443",
	Usage:   "address to listen on for /partial. Mutual TLS only",
	EnvVars: []string{"XKS_LISTEN_ADDR"},
}

func main() {
	app := &cli.App{
		Name:  "share-server",
		Usage: "Serve partial evaluations for one key share",
		Flags: append(append(append([]cli.Flag{
			ListenAddrFlag,
			ShareServiceLogFlag,
		}, kmscommon.ShareFlags...), flags.TLSFlags...), flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			tlsConfig, err := flags.ServerTLSConfig(cCtx, true)
			if err != nil {
				logger.Error("Failed to configure mutual TLS", "err", err)
				return err
			}

			store, err := kmscommon.LoadShareStore(cCtx, logger)
			if err != nil {
				logger.Error("Failed to load share store", "err", err)
				return err
			}
			defer store.Wipe()

			m := metrics.New("share-server")
			partials := kms.NewPartialService(store, logger, m)
			logger.Info("Share service initialized",
				"share_index", int(store.Index()),
				"keys", len(store.KeyIDs()))

			shareServer, err := server.New(
				flags.ConfigureServer(cCtx, logger, cCtx.String(ListenAddrFlag.Name), m, tlsConfig),
				sharehandler.NewHandler(partials, logger))
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}
			if err := shareServer.RunInBackground(); err != nil {
				logger.Error("Failed to start server", "err", err)
				return err
			}

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			shareServer.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
