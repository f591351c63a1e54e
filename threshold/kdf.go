package threshold

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
	"github.com/cloudflare/circl/group"
	"github.com/ruteri/threshold-xks/interfaces"
	"golang.org/x/crypto/hkdf"
)

// DerivedKeySize is the length of a derived data-encryption key (AES-256).
const DerivedKeySize = 32

// KDFInfoPrefix versions the derivation. Changing it changes every key.
const KDFInfoPrefix = "threshold-xks/derived-key/v1"

// DeriveKey runs HKDF-SHA256 over the compressed combined secret with the
// key identifier bound into the info string. The caller owns the returned
// key and must wipe it.
func DeriveKey(secret group.Element, keyID interfaces.KeyID) ([]byte, error) {
	if secret == nil || secret.IsIdentity() {
		return nil, fmt.Errorf("%w: no combined secret", interfaces.ErrCombination)
	}

	ikm, err := secret.MarshalBinaryCompress()
	if err != nil {
		return nil, fmt.Errorf("%w: could not encode combined secret: %v", interfaces.ErrCombination, err)
	}
	defer memguard.WipeBytes(ikm)

	info := make([]byte, 0, len(KDFInfoPrefix)+1+len(keyID))
	info = append(info, KDFInfoPrefix...)
	info = append(info, 0)
	info = append(info, keyID...)

	key := make([]byte, DerivedKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, nil, info), key); err != nil {
		memguard.WipeBytes(key)
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}
	return key, nil
}
