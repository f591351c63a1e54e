package threshold

import (
	"fmt"
	"slices"

	"github.com/cloudflare/circl/group"
	"github.com/ruteri/threshold-xks/interfaces"
)

// Pairing is one of the three share-index pairs that can derive a key.
type Pairing int

const (
	Pairing12 Pairing = iota + 1
	Pairing13
	Pairing23
)

// AllPairings lists every valid pairing.
var AllPairings = []Pairing{Pairing12, Pairing13, Pairing23}

// PairingFor returns the pairing of two distinct valid share indices.
func PairingFor(a, b interfaces.ShareIndex) (Pairing, error) {
	if a > b {
		a, b = b, a
	}
	switch {
	case a == 1 && b == 2:
		return Pairing12, nil
	case a == 1 && b == 3:
		return Pairing13, nil
	case a == 2 && b == 3:
		return Pairing23, nil
	}
	return 0, fmt.Errorf("no pairing for share indices %d and %d", a, b)
}

// Indices returns the pairing's share indices in ascending order.
func (p Pairing) Indices() (interfaces.ShareIndex, interfaces.ShareIndex) {
	switch p {
	case Pairing12:
		return 1, 2
	case Pairing13:
		return 1, 3
	case Pairing23:
		return 2, 3
	}
	return 0, 0
}

// Contains reports whether the index takes part in the pairing.
func (p Pairing) Contains(i interfaces.ShareIndex) bool {
	a, b := p.Indices()
	return a != 0 && (i == a || i == b)
}

func (p Pairing) String() string {
	a, b := p.Indices()
	if a == 0 {
		return "invalid"
	}
	return fmt.Sprintf("{%d,%d}", a, b)
}

// Combine interpolates partial results at zero. Entries with an invalid
// index or a nil/identity point are ignored; if fewer than threshold remain
// it fails with ErrInsufficientShares.
func Combine(partials map[interfaces.ShareIndex]group.Element, threshold int) (group.Element, error) {
	if threshold < interfaces.Threshold || threshold > interfaces.TotalShares {
		return nil, fmt.Errorf("threshold %d outside %d..%d", threshold, interfaces.Threshold, interfaces.TotalShares)
	}

	indices := make([]interfaces.ShareIndex, 0, len(partials))
	for idx, p := range partials {
		if idx.Validate() != nil || p == nil || p.IsIdentity() {
			continue
		}
		indices = append(indices, idx)
	}
	slices.Sort(indices)

	if len(indices) < threshold {
		return nil, fmt.Errorf("%w: have %d valid partials, need %d", interfaces.ErrInsufficientShares, len(indices), threshold)
	}

	var secret group.Element
	for _, i := range indices {
		lambda := lagrangeAtZero(i, indices)
		term := Curve.NewElement().Mul(partials[i], lambda)
		lambda.SetUint64(0)
		if secret == nil {
			secret = term
			continue
		}
		secret.Add(secret, term)
		WipeElement(term)
	}

	if secret.IsIdentity() {
		WipeElement(secret)
		return nil, fmt.Errorf("%w: combined secret is the identity", interfaces.ErrCombination)
	}
	return secret, nil
}

// lagrangeAtZero returns Π_{m≠i} m/(m-i) over the index set.
func lagrangeAtZero(i interfaces.ShareIndex, set []interfaces.ShareIndex) group.Scalar {
	num := scalarOf(1)
	den := scalarOf(1)
	xi := scalarOf(i)
	for _, m := range set {
		if m == i {
			continue
		}
		xm := scalarOf(m)
		num.Mul(num, xm)
		den.Mul(den, Curve.NewScalar().Sub(xm, xi))
	}
	return num.Mul(num, Curve.NewScalar().Inv(den))
}
