package interfaces

import (
	"context"
)

// PartialProvider computes a participant's partial result for a key.
type PartialProvider interface {
	// ComputePartial returns share × virtualPoint for the participant's share
	// of req.KeyID.
	ComputePartial(ctx context.Context, req PartialRequest) (PartialResponse, error)
}

// KMS performs authenticated encryption under a jointly derived key.
type KMS interface {
	Encrypt(ctx context.Context, keyID KeyID, plaintext, associatedData []byte) ([]byte, error)
	Decrypt(ctx context.Context, keyID KeyID, ciphertext, associatedData []byte) ([]byte, error)
}
