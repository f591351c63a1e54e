// Package common holds process-wide build information and logging setup.
package common

// Version is set at build time with
// -ldflags "-X github.com/ruteri/threshold-xks/common.Version=..."
var Version = "dev"
