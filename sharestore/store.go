package sharestore

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ruteri/threshold-xks/interfaces"
	"github.com/ruteri/threshold-xks/threshold"
)

// Store maps key identifiers to this participant's shares.
type Store struct {
	mu     sync.RWMutex
	index  interfaces.ShareIndex
	shares map[interfaces.KeyID]*threshold.Share
}

// New creates a store for the participant at index. The store takes
// ownership of shares.
func New(index interfaces.ShareIndex, shares map[interfaces.KeyID]*threshold.Share) (*Store, error) {
	if err := validateShares(index, shares); err != nil {
		return nil, err
	}
	return &Store{index: index, shares: shares}, nil
}

func validateShares(index interfaces.ShareIndex, shares map[interfaces.KeyID]*threshold.Share) error {
	if err := index.Validate(); err != nil {
		return err
	}
	for keyID, share := range shares {
		if err := keyID.Validate(); err != nil {
			return err
		}
		if share == nil || share.Value == nil || share.Value.IsZero() {
			return fmt.Errorf("%w: empty share for key %q", interfaces.ErrInvalidShareDocument, keyID)
		}
		if share.Index != index {
			return fmt.Errorf("%w: share for key %q has index %d, store has %d",
				interfaces.ErrInvalidShareDocument, keyID, share.Index, index)
		}
	}
	return nil
}

// Index returns the participant's share index.
func (s *Store) Index() interfaces.ShareIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// KeyIDs returns the configured key identifiers in sorted order.
func (s *Store) KeyIDs() []interfaces.KeyID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]interfaces.KeyID, 0, len(s.shares))
	for id := range s.shares {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// With calls fn with the share for keyID. The share must not be retained
// after fn returns. Returns ErrUnknownKey if no share is configured.
func (s *Store) With(keyID interfaces.KeyID, fn func(*threshold.Share) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	share, ok := s.shares[keyID]
	if !ok {
		return fmt.Errorf("%w: %s", interfaces.ErrUnknownKey, keyID)
	}
	return fn(share)
}

// Replace installs a new share set, waiting for in-flight readers and wiping
// the shares it replaces.
func (s *Store) Replace(index interfaces.ShareIndex, shares map[interfaces.KeyID]*threshold.Share) error {
	if err := validateShares(index, shares); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, share := range s.shares {
		share.Wipe()
	}
	s.index = index
	s.shares = shares
	return nil
}

// Wipe overwrites every share. The store is empty afterwards.
func (s *Store) Wipe() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, share := range s.shares {
		share.Wipe()
	}
	s.shares = map[interfaces.KeyID]*threshold.Share{}
}
