package sharestore

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/ruteri/threshold-xks/interfaces"
	"github.com/ruteri/threshold-xks/threshold"
)

// DocumentVersion is the only share document version understood.
const DocumentVersion = 1

// Document is the serialized form of one participant's shares.
type Document struct {
	Version    int                   `json:"version"`
	ShareIndex interfaces.ShareIndex `json:"shareIndex"`
	Shares     []DocumentShare       `json:"shares"`
}

// DocumentShare is a single key's share. Share holds the quoted hex
// encoding of the scalar so it can be wiped after decoding.
type DocumentShare struct {
	KeyID interfaces.KeyID `json:"keyId"`
	Share json.RawMessage  `json:"share"`
}

// ParseDocument decodes and validates a share document. Each key may appear
// once, and every scalar must be non-zero and below the group order.
func ParseDocument(data []byte) (interfaces.ShareIndex, map[interfaces.KeyID]*threshold.Share, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidShareDocument, err)
	}
	defer func() {
		for _, s := range doc.Shares {
			memguard.WipeBytes(s.Share)
		}
	}()

	if doc.Version != DocumentVersion {
		return 0, nil, fmt.Errorf("%w: unsupported version %d", interfaces.ErrInvalidShareDocument, doc.Version)
	}
	if err := doc.ShareIndex.Validate(); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidShareDocument, err)
	}

	shares := make(map[interfaces.KeyID]*threshold.Share, len(doc.Shares))
	fail := func(err error) (interfaces.ShareIndex, map[interfaces.KeyID]*threshold.Share, error) {
		for _, s := range shares {
			s.Wipe()
		}
		return 0, nil, err
	}

	for _, entry := range doc.Shares {
		if err := entry.KeyID.Validate(); err != nil {
			return fail(fmt.Errorf("%w: %v", interfaces.ErrInvalidShareDocument, err))
		}
		if _, dup := shares[entry.KeyID]; dup {
			return fail(fmt.Errorf("%w: duplicate share for key %q", interfaces.ErrInvalidShareDocument, entry.KeyID))
		}
		share, err := decodeShare(doc.ShareIndex, entry.Share)
		if err != nil {
			return fail(fmt.Errorf("%w: key %q: %v", interfaces.ErrInvalidShareDocument, entry.KeyID, err))
		}
		shares[entry.KeyID] = share
	}

	return doc.ShareIndex, shares, nil
}

func decodeShare(index interfaces.ShareIndex, quoted json.RawMessage) (*threshold.Share, error) {
	if len(quoted) < 2 || quoted[0] != '"' || quoted[len(quoted)-1] != '"' {
		return nil, fmt.Errorf("share must be a hex string")
	}
	encoded := quoted[1 : len(quoted)-1]
	if len(encoded) != hex.EncodedLen(threshold.ScalarSize) {
		return nil, fmt.Errorf("share must be %d hex characters", hex.EncodedLen(threshold.ScalarSize))
	}

	raw := make([]byte, threshold.ScalarSize)
	defer memguard.WipeBytes(raw)
	if _, err := hex.Decode(raw, encoded); err != nil {
		return nil, err
	}

	value, err := threshold.UnmarshalScalar(raw)
	if err != nil {
		return nil, err
	}
	return threshold.NewShare(index, value)
}

// MarshalDocument encodes shares as a share document. Keys are written in
// sorted order. The caller should wipe the returned bytes once persisted.
func MarshalDocument(index interfaces.ShareIndex, shares map[interfaces.KeyID]*threshold.Share) ([]byte, error) {
	if err := validateShares(index, shares); err != nil {
		return nil, err
	}

	store := &Store{index: index, shares: shares}
	doc := Document{Version: DocumentVersion, ShareIndex: index}
	defer func() {
		for _, s := range doc.Shares {
			memguard.WipeBytes(s.Share)
		}
	}()

	for _, keyID := range store.KeyIDs() {
		raw, err := threshold.MarshalScalar(shares[keyID].Value)
		if err != nil {
			return nil, err
		}
		quoted := make([]byte, hex.EncodedLen(len(raw))+2)
		quoted[0] = '"'
		hex.Encode(quoted[1:], raw)
		quoted[len(quoted)-1] = '"'
		memguard.WipeBytes(raw)
		doc.Shares = append(doc.Shares, DocumentShare{KeyID: keyID, Share: quoted})
	}

	return json.MarshalIndent(doc, "", "  ")
}
