package marketmath

import (
	"errors"
	"math"
	"testing"
)

func TestFee(t *testing.T) {
	fee, err := Fee(1_000_000)
	if err != nil {
		t.Fatalf("Fee error: %v", err)
	}
	if fee != 20_000 {
		t.Fatalf("Fee(1_000_000) got=%d want=%d", fee, 20_000)
	}
}

func TestApplyFeeSplitsExactly(t *testing.T) {
	cases := []uint64{1_000_000, 1_000_001, 999_999_999, 49, 50, 1}
	for _, amount := range cases {
		net, fee, err := ApplyFee(amount)
		if err != nil {
			t.Fatalf("ApplyFee(%d) error: %v", amount, err)
		}
		if net+fee != amount {
			t.Fatalf("ApplyFee(%d): net=%d fee=%d do not sum to amount", amount, net, fee)
		}
		if want := amount * FeeBps / BpsDenominator; fee != want {
			t.Fatalf("ApplyFee(%d): fee got=%d want=%d", amount, fee, want)
		}
	}
}

func TestApplyFeeSpecExample(t *testing.T) {
	net, fee, err := ApplyFee(1_000_000)
	if err != nil {
		t.Fatalf("ApplyFee error: %v", err)
	}
	if fee != 20_000 || net != 980_000 {
		t.Fatalf("ApplyFee(1_000_000) got net=%d fee=%d want net=980_000 fee=20_000", net, fee)
	}
}

func TestFeeOverflow(t *testing.T) {
	// MaxUint64 * 200 overflows long before the division.
	if _, err := Fee(math.MaxUint64); !errors.Is(err, ErrOverflow) {
		t.Fatalf("Fee(MaxUint64) err got=%v want=%v", err, ErrOverflow)
	}
}

func TestCheckedAdd(t *testing.T) {
	sum, err := CheckedAdd(1, 2)
	if err != nil || sum != 3 {
		t.Fatalf("CheckedAdd(1,2) got=%d err=%v", sum, err)
	}
	if _, err := CheckedAdd(math.MaxUint64, 1); !errors.Is(err, ErrOverflow) {
		t.Fatalf("CheckedAdd overflow err got=%v want=%v", err, ErrOverflow)
	}
	if sum, err := CheckedAdd(math.MaxUint64, 0); err != nil || sum != math.MaxUint64 {
		t.Fatalf("CheckedAdd(MaxUint64,0) got=%d err=%v", sum, err)
	}
}

func TestCheckedMul(t *testing.T) {
	p, err := CheckedMul(1<<32, 1<<31)
	if err != nil || p != 1<<63 {
		t.Fatalf("CheckedMul(2^32,2^31) got=%d err=%v", p, err)
	}
	if _, err := CheckedMul(1<<32, 1<<32); !errors.Is(err, ErrOverflow) {
		t.Fatalf("CheckedMul overflow err got=%v want=%v", err, ErrOverflow)
	}
}

func TestPayoutSpecExample(t *testing.T) {
	// yes_pool=800_000, no_pool=200_000, outcome YES, stake 100_000:
	// 100_000 * 200_000 / 800_000 + 100_000 = 125_000.
	payout, err := Payout(100_000, 200_000, 800_000)
	if err != nil {
		t.Fatalf("Payout error: %v", err)
	}
	if payout != 125_000 {
		t.Fatalf("Payout got=%d want=%d", payout, 125_000)
	}
}

func TestPayoutFloorsDivision(t *testing.T) {
	// 100 * 100 / 300 = 33 (floored) + 100 = 133.
	payout, err := Payout(100, 100, 300)
	if err != nil {
		t.Fatalf("Payout error: %v", err)
	}
	if payout != 133 {
		t.Fatalf("Payout got=%d want=%d", payout, 133)
	}
}

func TestPayoutEmptyLosingPool(t *testing.T) {
	// No losers: winners just get their principal back.
	payout, err := Payout(500_000, 0, 500_000)
	if err != nil {
		t.Fatalf("Payout error: %v", err)
	}
	if payout != 500_000 {
		t.Fatalf("Payout got=%d want=%d", payout, 500_000)
	}
}

func TestPayoutZeroWinningPool(t *testing.T) {
	if _, err := Payout(100, 100, 0); !errors.Is(err, ErrZeroWinningPool) {
		t.Fatalf("Payout err got=%v want=%v", err, ErrZeroWinningPool)
	}
}

func TestPayoutOverflow(t *testing.T) {
	if _, err := Payout(math.MaxUint64, 2, 1); !errors.Is(err, ErrOverflow) {
		t.Fatalf("Payout err got=%v want=%v", err, ErrOverflow)
	}
}

func TestPayoutConservesLosingPool(t *testing.T) {
	// Whatever the split of the winning pool, the sum of payouts never
	// exceeds losing_pool + winning_pool (flooring may strand dust in the
	// escrow, but it can never mint value).
	winning := uint64(700_000)
	losing := uint64(300_001)
	stakes := []uint64{100_000, 250_000, 350_000}

	var total uint64
	for _, s := range stakes {
		p, err := Payout(s, losing, winning)
		if err != nil {
			t.Fatalf("Payout(%d) error: %v", s, err)
		}
		total += p
	}
	if total > winning+losing {
		t.Fatalf("payouts total=%d exceed pools=%d", total, winning+losing)
	}
}

func TestYesPrice(t *testing.T) {
	price, ok := YesPrice(800_000, 200_000)
	if !ok {
		t.Fatal("YesPrice: expected ok")
	}
	if price != 0.8 {
		t.Fatalf("YesPrice got=%v want=%v", price, 0.8)
	}

	if _, ok := YesPrice(0, 0); ok {
		t.Fatal("YesPrice(0,0): expected not ok")
	}
}
