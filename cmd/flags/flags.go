package flags

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/threshold-xks/api"
	"github.com/ruteri/threshold-xks/common"
	"github.com/ruteri/threshold-xks/cryptoutils"
	"github.com/ruteri/threshold-xks/metrics"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string, m *metrics.Metrics, tlsConfig *tls.Config) *api.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &api.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Metrics:                  m,
		Log:                      logger,
		EnablePprof:              enablePprof,
		TLSConfig:                tlsConfig,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              10 * time.Second,
		WriteTimeout:             10 * time.Second,
	}
}

// ServerTLSConfig builds the listener TLS configuration from the TLS flags.
// With requireClientCert every client must present a certificate issued by
// the --tls-ca authority. Returns nil when no certificate is configured and
// none is required.
func ServerTLSConfig(cCtx *cli.Context, requireClientCert bool) (*tls.Config, error) {
	certFile := cCtx.String(TLSCertFlag.Name)
	keyFile := cCtx.String(TLSKeyFlag.Name)
	if certFile == "" && keyFile == "" && !requireClientCert {
		return nil, nil
	}

	cert, err := cryptoutils.LoadKeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}

	var clientCAs *x509.CertPool
	if requireClientCert {
		clientCAs, err = caPool(cCtx)
		if err != nil {
			return nil, err
		}
	}
	return cryptoutils.NewServerTLSConfig(cert, clientCAs), nil
}

// ClientTLSConfig builds the TLS configuration used to reach a peer that
// requires client certificates.
func ClientTLSConfig(cCtx *cli.Context) (*tls.Config, error) {
	cert, err := cryptoutils.LoadKeyPair(cCtx.String(TLSCertFlag.Name), cCtx.String(TLSKeyFlag.Name))
	if err != nil {
		return nil, err
	}
	pool, err := caPool(cCtx)
	if err != nil {
		return nil, err
	}
	return cryptoutils.NewClientTLSConfig(cert, pool, cCtx.String(TLSServerNameFlag.Name)), nil
}

func caPool(cCtx *cli.Context) (*x509.CertPool, error) {
	caFile := cCtx.String(TLSCAFlag.Name)
	if caFile == "" {
		return nil, errors.New("--tls-ca is required for mutual TLS")
	}
	pool, err := cryptoutils.LoadCertPool(caFile)
	if err != nil {
		return nil, fmt.Errorf("could not load CA %s: %w", caFile, err)
	}
	return pool, nil
}

var LogJsonFlag = &cli.BoolFlag{
	Name:    "log-json",
	Value:   false,
	Usage:   "log in JSON format",
	EnvVars: []string{"XKS_LOG_JSON"},
}
var LogDebugFlag = &cli.BoolFlag{
	Name:    "log-debug",
	Value:   false,
	Usage:   "log debug messages",
	EnvVars: []string{"XKS_LOG_DEBUG"},
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:    "metrics-addr",
	Value:   "127.0.0.1:8090",
	Usage:   "address to listen on for Prometheus metrics",
	EnvVars: []string{"XKS_METRICS_ADDR"},
}

var TLSCertFlag = &cli.StringFlag{
	Name:    "tls-cert",
	Usage:   "PEM certificate presented by this service",
	EnvVars: []string{"XKS_TLS_CERT"},
}
var TLSKeyFlag = &cli.StringFlag{
	Name:    "tls-key",
	Usage:   "PEM private key for --tls-cert",
	EnvVars: []string{"XKS_TLS_KEY"},
}
var TLSCAFlag = &cli.StringFlag{
	Name:    "tls-ca",
	Usage:   "PEM certificate of the authority that issues participant certificates",
	EnvVars: []string{"XKS_TLS_CA"},
}
var TLSServerNameFlag = &cli.StringFlag{
	Name:  "tls-server-name",
	Usage: "override the server name verified on peer certificates",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}

var TLSFlags = []cli.Flag{
	TLSCertFlag,
	TLSKeyFlag,
	TLSCAFlag,
	TLSServerNameFlag,
}
