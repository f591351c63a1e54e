package main

import (
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/ruteri/threshold-xks/api/proxyhandler"
	"github.com/ruteri/threshold-xks/interfaces"
	"github.com/urfave/cli/v2"
)

var flagProxyAddr = &cli.StringFlag{
	Name:    "proxy-addr",
	Value:   "http://127.0.0.1:8080",
	Usage:   "Proxy Service address",
	EnvVars: []string{"XKS_PROXY_ADDR"},
}

var flagTimeout = &cli.DurationFlag{
	Name:  "timeout",
	Value: 5 * time.Second,
	Usage: "request timeout",
}

var flagKeyID = &cli.StringFlag{
	Name:     "key-id",
	Required: true,
	Usage:    "key identifier",
}

var flagAAD = &cli.StringFlag{
	Name:  "aad",
	Usage: "associated data, bound to the ciphertext",
}

func newClient(cCtx *cli.Context) *proxyhandler.Client {
	return proxyhandler.NewClient(cCtx.String(flagProxyAddr.Name), &http.Client{Timeout: cCtx.Duration(flagTimeout.Name)})
}

func aad(cCtx *cli.Context) []byte {
	if !cCtx.IsSet(flagAAD.Name) {
		return nil
	}
	return []byte(cCtx.String(flagAAD.Name))
}

func main() {
	app := &cli.App{
		Name:  "xks-client",
		Usage: "Call a threshold external key store",
		Flags: []cli.Flag{
			flagProxyAddr,
			flagTimeout,
		},
		Commands: []*cli.Command{
			{
				Name:      "encrypt",
				Usage:     "encrypt the argument and print the base64 ciphertext",
				ArgsUsage: "<plaintext>",
				Flags:     []cli.Flag{flagKeyID, flagAAD},
				Action: func(cCtx *cli.Context) error {
					if cCtx.NArg() != 1 {
						return cli.Exit("expected exactly one plaintext argument", 1)
					}
					ciphertext, err := newClient(cCtx).Encrypt(cCtx.Context,
						interfaces.KeyID(cCtx.String(flagKeyID.Name)),
						[]byte(cCtx.Args().First()),
						aad(cCtx))
					if err != nil {
						return err
					}
					fmt.Println(base64.StdEncoding.EncodeToString(ciphertext))
					return nil
				},
			},
			{
				Name:      "decrypt",
				Usage:     "decrypt a base64 ciphertext and print the plaintext",
				ArgsUsage: "<base64 ciphertext>",
				Flags:     []cli.Flag{flagKeyID, flagAAD},
				Action: func(cCtx *cli.Context) error {
					if cCtx.NArg() != 1 {
						return cli.Exit("expected exactly one ciphertext argument", 1)
					}
					ciphertext, err := base64.StdEncoding.DecodeString(cCtx.Args().First())
					if err != nil {
						return fmt.Errorf("ciphertext is not valid base64: %w", err)
					}
					plaintext, err := newClient(cCtx).Decrypt(cCtx.Context,
						interfaces.KeyID(cCtx.String(flagKeyID.Name)),
						ciphertext,
						aad(cCtx))
					if err != nil {
						return err
					}
					_, err = os.Stdout.Write(append(plaintext, '\n'))
					return err
				},
			},
			{
				Name:  "ping",
				Usage: "check that the proxy is reachable",
				Action: func(cCtx *cli.Context) error {
					if err := newClient(cCtx).Ping(cCtx.Context); err != nil {
						return err
					}
					fmt.Println("ok")
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
