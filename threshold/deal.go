package threshold

import (
	"errors"
	"fmt"
	"io"

	"github.com/cloudflare/circl/group"
	"github.com/ruteri/threshold-xks/interfaces"
)

// ShareSet holds every participant's shares produced by one dealing,
// indexed by participant and then key identifier.
type ShareSet map[interfaces.ShareIndex]map[interfaces.KeyID]*Share

// Wipe overwrites every share in the set.
func (s ShareSet) Wipe() {
	for _, shares := range s {
		for _, share := range shares {
			share.Wipe()
		}
	}
}

// Deal draws a fresh secret and slope for each key identifier and splits it
// into TotalShares shares. The secrets are wiped before returning; only the
// shares leave this function.
//
// Deal exists for development ceremonies and tests. A production ceremony
// distributes each participant's set to that participant only.
func Deal(rand io.Reader, keyIDs []interfaces.KeyID) (ShareSet, error) {
	set := make(ShareSet, interfaces.TotalShares)
	for i := interfaces.ShareIndex(1); i <= interfaces.TotalShares; i++ {
		set[i] = make(map[interfaces.KeyID]*Share, len(keyIDs))
	}

	for _, keyID := range keyIDs {
		if err := keyID.Validate(); err != nil {
			set.Wipe()
			return nil, err
		}
		if _, found := set[1][keyID]; found {
			set.Wipe()
			return nil, fmt.Errorf("duplicate key identifier %q", keyID)
		}

		secret := Curve.RandomNonZeroScalar(rand)
		slope := Curve.RandomNonZeroScalar(rand)
		shares, err := splitSecret(secret, slope)
		secret.SetUint64(0)
		slope.SetUint64(0)
		if err != nil {
			set.Wipe()
			return nil, err
		}
		for _, share := range shares {
			set[share.Index][keyID] = share
		}
	}
	return set, nil
}

// splitSecret evaluates f(x) = secret + slope·x at every share index.
func splitSecret(secret, slope group.Scalar) ([]*Share, error) {
	shares := make([]*Share, 0, interfaces.TotalShares)
	for i := interfaces.ShareIndex(1); i <= interfaces.TotalShares; i++ {
		v := Curve.NewScalar().Mul(slope, scalarOf(i))
		v.Add(v, secret)
		if v.IsZero() {
			for _, s := range shares {
				s.Wipe()
			}
			return nil, errors.New("dealt a zero share")
		}
		shares = append(shares, &Share{Index: i, Value: v})
	}
	return shares, nil
}
