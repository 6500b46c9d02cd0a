// Package marketmath holds the pure integer arithmetic for pari-mutuel
// settlement: fee skimming, overflow-checked pool math, and the payout
// formula. Settlement never touches floating point; the one float helper
// here exists for display only.
package marketmath

import (
	"errors"
	"math/bits"
)

// Protocol fee parameters, in basis points.
const (
	FeeBps         uint64 = 200
	BpsDenominator uint64 = 10_000
)

var (
	// ErrOverflow is returned when a checked operation exceeds uint64.
	ErrOverflow = errors.New("math overflow")

	// ErrZeroWinningPool is returned by Payout when the winning pool is
	// empty. Resolution policy forbids ever reaching this state; the error
	// exists so the division can never be undefined.
	ErrZeroWinningPool = errors.New("winning side has no backers")
)

// CheckedAdd returns a+b or ErrOverflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// CheckedMul returns a*b or ErrOverflow.
func CheckedMul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// Fee returns floor(amount * FeeBps / BpsDenominator).
func Fee(amount uint64) (uint64, error) {
	scaled, err := CheckedMul(amount, FeeBps)
	if err != nil {
		return 0, err
	}
	return scaled / BpsDenominator, nil
}

// ApplyFee splits a gross amount into the net stake and the skimmed fee.
// fee + net == amount for every input; the subtraction cannot underflow
// because FeeBps < BpsDenominator.
func ApplyFee(amount uint64) (net, fee uint64, err error) {
	fee, err = Fee(amount)
	if err != nil {
		return 0, 0, err
	}
	return amount - fee, fee, nil
}

// Payout computes a winner's pari-mutuel payout: their pro-rata share of the
// losing pool plus return of principal, with floored integer division.
//
//	stake * losing / winning + stake
func Payout(stake, losing, winning uint64) (uint64, error) {
	if winning == 0 {
		return 0, ErrZeroWinningPool
	}
	share, err := CheckedMul(stake, losing)
	if err != nil {
		return 0, err
	}
	return CheckedAdd(share/winning, stake)
}

// YesPrice returns the implied YES probability yes/(yes+no) for display.
// The second return is false when both pools are empty or the total would
// overflow. Callers must never feed the result back into settlement math.
func YesPrice(yes, no uint64) (float64, bool) {
	total, err := CheckedAdd(yes, no)
	if err != nil || total == 0 {
		return 0, false
	}
	return float64(yes) / float64(total), true
}
