// Command dev-ceremony deals a fresh set of key shares and a development PKI
// for running the three participants locally.
//
// It writes share-1.json, share-2.json and share-3.json, a CA and one
// certificate per participant into --out. The dealer sees every secret it
// generates; use it for development and demos only.
package main

import (
	"crypto/rand"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ruteri/threshold-xks/cmd/flags"
	"github.com/ruteri/threshold-xks/cryptoutils"
	"github.com/ruteri/threshold-xks/interfaces"
	"github.com/ruteri/threshold-xks/sharestore"
	"github.com/ruteri/threshold-xks/threshold"
	"github.com/urfave/cli/v2"
)

var flagOut = &cli.StringFlag{
	Name:  "out",
	Value: "./xks-dev",
	Usage: "output directory",
}

var flagKeyIDs = &cli.StringSliceFlag{
	Name:  "key-id",
	Value: cli.NewStringSlice("test-key-1"),
	Usage: "key identifier to deal shares for. May be repeated",
}

var flagHosts = &cli.StringSliceFlag{
	Name:  "host",
	Value: cli.NewStringSlice("localhost", "127.0.0.1"),
	Usage: "extra DNS name or IP added to every participant certificate",
}

func main() {
	app := &cli.App{
		Name:  "dev-ceremony",
		Usage: "Deal development key shares and certificates",
		Flags: append([]cli.Flag{flagOut, flagKeyIDs, flagHosts, flags.LogServiceFlagFn("dev-ceremony")}, flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)
			out := cCtx.String(flagOut.Name)

			keyIDs := make([]interfaces.KeyID, 0, len(cCtx.StringSlice(flagKeyIDs.Name)))
			for _, id := range cCtx.StringSlice(flagKeyIDs.Name) {
				keyIDs = append(keyIDs, interfaces.KeyID(id))
			}

			if err := os.MkdirAll(out, 0o700); err != nil {
				return err
			}
			if err := writeShares(out, keyIDs, logger); err != nil {
				logger.Error("Failed to deal shares", "err", err)
				return err
			}
			if err := writePKI(out, cCtx.StringSlice(flagHosts.Name), logger); err != nil {
				logger.Error("Failed to issue certificates", "err", err)
				return err
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func writeShares(out string, keyIDs []interfaces.KeyID, logger *slog.Logger) error {
	set, err := threshold.Deal(rand.Reader, keyIDs)
	if err != nil {
		return err
	}
	defer set.Wipe()

	for index := interfaces.ShareIndex(1); index <= interfaces.TotalShares; index++ {
		doc, err := sharestore.MarshalDocument(index, set[index])
		if err != nil {
			return err
		}
		path := filepath.Join(out, fmt.Sprintf("share-%d.json", index))
		err = os.WriteFile(path, doc, 0o600)
		clear(doc)
		if err != nil {
			return err
		}
		logger.Info("Wrote share document", "path", path, "share_index", int(index), "keys", len(keyIDs))
	}
	return nil
}

func writePKI(out string, hosts []string, logger *slog.Logger) error {
	ca, err := cryptoutils.NewCA("threshold-xks dev CA")
	if err != nil {
		return err
	}
	caKeyPEM, err := ca.KeyPEM()
	if err != nil {
		return err
	}
	if err := writePair(out, "ca", ca.CertPEM, caKeyPEM); err != nil {
		return err
	}

	for index := 1; index <= interfaces.TotalShares; index++ {
		name := fmt.Sprintf("share-%d", index)
		if index == 1 {
			name = "proxy"
		}
		certPEM, keyPEM, err := ca.Issue(name, append([]string{name}, hosts...)...)
		if err != nil {
			return err
		}
		if err := writePair(out, name, certPEM, keyPEM); err != nil {
			return err
		}
		logger.Info("Issued certificate", "name", name, "path", filepath.Join(out, name+".pem"))
	}
	return nil
}

func writePair(out, name string, certPEM, keyPEM []byte) error {
	if err := os.WriteFile(filepath.Join(out, name+".pem"), certPEM, 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(out, name+"-key.pem"), keyPEM, 0o600)
}
