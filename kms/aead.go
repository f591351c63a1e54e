package kms

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/ruteri/threshold-xks/interfaces"
	"github.com/ruteri/threshold-xks/threshold"
)

// Ciphertext envelope: version || nonce || AES-256-GCM(ciphertext || tag).
const (
	envelopeVersion byte = 0x01
	nonceSize            = 12
	tagSize              = 16

	// EnvelopeOverhead is the number of bytes Encrypt adds to a plaintext.
	EnvelopeOverhead = 1 + nonceSize + tagSize
)

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != threshold.DerivedKeySize {
		return nil, fmt.Errorf("derived key must be %d bytes", threshold.DerivedKeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// seal encrypts plaintext under key, binding aad and the envelope header.
func seal(key, plaintext, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 1+nonceSize, EnvelopeOverhead+len(plaintext))
	out[0] = envelopeVersion
	if _, err := rand.Read(out[1:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(out, out[1:], plaintext, headerAAD(out[0], aad)), nil
}

// open reverses seal. Every failure is reported as ErrAuthenticationTag so
// callers cannot tell a malformed envelope from a wrong key.
func open(key, envelope, aad []byte) ([]byte, error) {
	if len(envelope) < EnvelopeOverhead || envelope[0] != envelopeVersion {
		return nil, interfaces.ErrAuthenticationTag
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := envelope[1 : 1+nonceSize]
	plaintext, err := gcm.Open(nil, nonce, envelope[1+nonceSize:], headerAAD(envelope[0], aad))
	if err != nil {
		return nil, interfaces.ErrAuthenticationTag
	}
	return plaintext, nil
}

func headerAAD(version byte, aad []byte) []byte {
	out := make([]byte, 0, 1+len(aad))
	out = append(out, version)
	return append(out, aad...)
}
