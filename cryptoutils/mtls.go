package cryptoutils

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// LoadKeyPair reads a PEM certificate and key from disk.
func LoadKeyPair(certFile, keyFile string) (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to load key pair: %w", err)
	}
	return cert, nil
}

// LoadCertPool reads the pinned authority from a PEM file.
func LoadCertPool(caFile string) (*x509.CertPool, error) {
	caPEM, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	return NewCertPool(caPEM)
}

// NewCertPool builds a pool that contains only the given PEM certificates.
func NewCertPool(caPEM []byte) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, errors.New("no certificates found in CA PEM")
	}
	return pool, nil
}

// NewServerTLSConfig returns a TLS 1.3 server config. When clientCAs is set
// every client must present a certificate issued by one of them.
func NewServerTLSConfig(cert tls.Certificate, clientCAs *x509.CertPool) *tls.Config {
	config := &tls.Config{
		MinVersion:   tls.VersionTLS13,
		Certificates: []tls.Certificate{cert},
	}
	if clientCAs != nil {
		config.ClientAuth = tls.RequireAndVerifyClientCert
		config.ClientCAs = clientCAs
	}
	return config
}

// NewClientTLSConfig returns a TLS 1.3 client config presenting cert and
// trusting only rootCAs.
func NewClientTLSConfig(cert tls.Certificate, rootCAs *x509.CertPool, serverName string) *tls.Config {
	return &tls.Config{
		MinVersion:   tls.VersionTLS13,
		Certificates: []tls.Certificate{cert},
		RootCAs:      rootCAs,
		ServerName:   serverName,
	}
}

// PeerCommonName returns the common name of the verified client certificate
// on r, if any.
func PeerCommonName(r *http.Request) (string, bool) {
	if r.TLS == nil || len(r.TLS.VerifiedChains) == 0 || len(r.TLS.VerifiedChains[0]) == 0 {
		return "", false
	}
	return r.TLS.VerifiedChains[0][0].Subject.CommonName, true
}

// IsUnauthorizedTLSError reports whether err is a failed mutual
// authentication, either our verification of the peer or the peer's
// rejection of us.
func IsUnauthorizedTLSError(err error) bool {
	if err == nil {
		return false
	}

	var verifyErr *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var invalidErr x509.CertificateInvalidError
	switch {
	case errors.As(err, &verifyErr),
		errors.As(err, &unknownAuthority),
		errors.As(err, &hostnameErr),
		errors.As(err, &invalidErr):
		return true
	}

	// Alerts sent by the peer are not exported as typed errors.
	msg := err.Error()
	return strings.Contains(msg, "remote error: tls: bad certificate") ||
		strings.Contains(msg, "remote error: tls: certificate required") ||
		strings.Contains(msg, "remote error: tls: unknown certificate authority") ||
		strings.Contains(msg, "remote error: tls: unknown certificate")
}
