// Package threshold implements the 2-of-3 elliptic-curve threshold scheme
// used to derive data-encryption keys without any single participant holding
// the key.
//
// A ceremony picks, per key identifier, a random degree-1 polynomial f over
// the P-256 scalar field and hands participant i the share f(i). For a key
// identifier k every participant maps k onto the curve with RFC 9380
// hash-to-curve (P256_XMD:SHA-256_SSWU_RO_), the virtual point V, and
// multiplies it by its share. Any two partial results f(i)·V and f(j)·V are
// combined with Lagrange coefficients at zero into f(0)·V, the combined
// secret, which does not depend on which pair was used. HKDF-SHA256 over the
// compressed combined secret, bound to the key identifier, yields the
// 32-byte data-encryption key.
//
// The package performs no I/O.
package threshold
