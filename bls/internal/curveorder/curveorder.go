// Package curveorder holds the BLS12-381 scalar field order so bls.KeyGen
// can reject an HKDF-expanded scalar that lands on or above it, per §4.1
// ("fails if result >= curve order"), without reaching into
// circl/ecc/bls12381 internals that aren't exported for that check.
package curveorder

import "math/big"

// Order is the order r of the BLS12-381 scalar field.
var Order, _ = new(big.Int).SetString(
	"52435875175126190479447740508185965837690552500527637822603658699938581184513", 10)

// IsValidScalarBytes reports whether the big-endian 32-byte value b is a
// valid scalar, i.e. strictly less than Order.
func IsValidScalarBytes(b []byte) bool {
	v := new(big.Int).SetBytes(b)
	return v.Cmp(Order) < 0
}
