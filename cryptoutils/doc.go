// Package cryptoutils provides the certificate and TLS helpers used for the
// mutually authenticated channel between the Proxy Service and the Share
// Services.
//
// A single CA is pinned by every participant. Share Services present a
// server certificate and require a client certificate issued by the CA;
// Proxy Services present a client certificate and trust only the CA.
//
//	ca, _ := cryptoutils.NewCA("xks-ca")
//	certPEM, keyPEM, _ := ca.Issue("share-2", "share-2.internal", "10.0.0.2")
//
// Connections are TLS 1.3 only.
package cryptoutils
