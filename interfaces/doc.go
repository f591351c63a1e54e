// Package interfaces defines core interfaces and types for the threshold
// external key store, separating interface definitions from implementations.
//
// # Identifiers
//
//   - KeyID: opaque name of a logical encryption key, stable across encrypt
//     and decrypt calls
//   - ShareIndex: public index (1, 2 or 3) of a participant's share
//
// # Participant Interfaces
//
// PartialProvider: computes one partial result for a key identifier. It is
// implemented both by the in-process Share Service core and by the mTLS
// client talking to a remote Share Service.
//
// KMS: encrypt and decrypt under a key identifier, implemented by the Proxy
// Service core.
//
// # Share Sources
//
// ShareSource: yields the raw share document a participant loads at startup
// (file, S3, Vault).
//
// # Errors
//
// All error kinds surfaced to callers are sentinel errors declared in this
// package and classified with errors.Is. ErrorKind maps an error to the name
// used on the wire.
package interfaces
