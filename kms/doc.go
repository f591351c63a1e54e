// Package kms implements the two services of the threshold key store.
//
// Keys are never stored. Each key identifier has a secret scalar s, split
// 2-of-3 into shares s_1, s_2, s_3 held by different participants. For a key
// identifier k both participants compute the same virtual point
// V = HashToCurve(k) and multiply it by their share. Lagrange interpolation of
// any two partial results yields s·V, from which the symmetric key is derived
// with HKDF.
//
// # ThresholdKMS
//
// The Proxy Service core. It holds one share, computes its own partial result
// and requests the second one from the active remote participant:
//
//	kms, err := kms.NewThresholdKMS(store, map[interfaces.ShareIndex]interfaces.PartialProvider{
//	    2: sharehandler.NewClient(...),
//	    3: sharehandler.NewClient(...),
//	}, 2)
//	ciphertext, err := kms.Encrypt(ctx, "test-key-1", plaintext, aad)
//
// Failover switches the remote participant. Because every pairing
// interpolates to the same secret, ciphertexts produced before a failover
// still decrypt afterwards.
//
// Ciphertexts are AES-256-GCM envelopes: a version byte, a 12-byte nonce and
// the sealed data. The version byte and the caller's associated data are
// authenticated.
//
// # PartialService
//
// The Share Service core. It accepts a key identifier and its virtual point,
// never any plaintext or ciphertext, and returns share × point. Each call is
// recorded in an audit log.
//
// # Secret Handling
//
// The combined secret and the derived key live only for the duration of one
// call and are overwritten on every return path. Overwriting is best effort:
// the Go runtime may have copied the values elsewhere.
package kms
