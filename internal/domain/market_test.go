package domain

import (
	"errors"
	"testing"
	"time"
)

var (
	t0      = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	oneDay  = 24 * time.Hour
	oneWeek = 7 * 24 * time.Hour
)

func openMarket(closesIn time.Duration) *Market {
	return &Market{
		ID:       "mkt-1",
		ClosesAt: t0.Add(closesIn),
	}
}

func TestValidateMarketDuration(t *testing.T) {
	cases := []struct {
		d  time.Duration
		ok bool
	}{
		{oneDay - time.Second, false}, // 86399s
		{oneDay, true},                // 86400s
		{oneWeek, true},               // 604800s
		{oneWeek + time.Second, false},
		{0, false},
		{-oneDay, false},
	}
	for _, c := range cases {
		err := ValidateMarketDuration(c.d)
		if c.ok && err != nil {
			t.Errorf("ValidateMarketDuration(%v) unexpected error: %v", c.d, err)
		}
		if !c.ok && !errors.Is(err, ErrInvalidMarketDuration) {
			t.Errorf("ValidateMarketDuration(%v) err got=%v want=%v", c.d, err, ErrInvalidMarketDuration)
		}
	}
}

func TestMarketState(t *testing.T) {
	m := openMarket(oneDay)
	if got := m.State(t0); got != MarketStateOpen {
		t.Fatalf("state got=%s want=%s", got, MarketStateOpen)
	}
	if got := m.State(m.ClosesAt); got != MarketStateClosed {
		t.Fatalf("state at closes_at got=%s want=%s", got, MarketStateClosed)
	}
	m.Resolved = true
	if got := m.State(t0); got != MarketStateResolved {
		t.Fatalf("state got=%s want=%s", got, MarketStateResolved)
	}
}

func TestStakeYesSkimsFee(t *testing.T) {
	m := openMarket(oneDay)
	net, fee, err := m.Stake(t0, SideYes, 1_000_000)
	if err != nil {
		t.Fatalf("Stake error: %v", err)
	}
	if net != 980_000 || fee != 20_000 {
		t.Fatalf("Stake got net=%d fee=%d want net=980_000 fee=20_000", net, fee)
	}
	if m.YesPool != 980_000 || m.FeePool != 20_000 || m.NoPool != 0 {
		t.Fatalf("pools got yes=%d no=%d fee=%d", m.YesPool, m.NoPool, m.FeePool)
	}
}

func TestStakeNoCreditsGross(t *testing.T) {
	// The NO side credits the full gross amount with no fee skim. This is
	// the deployed behavior and part of the settlement contract.
	m := openMarket(oneDay)
	net, fee, err := m.Stake(t0, SideNo, 1_000_000)
	if err != nil {
		t.Fatalf("Stake error: %v", err)
	}
	if net != 1_000_000 || fee != 0 {
		t.Fatalf("Stake got net=%d fee=%d want net=1_000_000 fee=0", net, fee)
	}
	if m.NoPool != 1_000_000 || m.YesPool != 0 || m.FeePool != 0 {
		t.Fatalf("pools got yes=%d no=%d fee=%d", m.YesPool, m.NoPool, m.FeePool)
	}
}

func TestStakeBelowMinimum(t *testing.T) {
	m := openMarket(oneDay)
	if _, _, err := m.Stake(t0, SideYes, 999_999); !errors.Is(err, ErrBetTooSmall) {
		t.Fatalf("err got=%v want=%v", err, ErrBetTooSmall)
	}
	if _, _, err := m.Stake(t0, SideYes, 1_000_000); err != nil {
		t.Fatalf("minimum stake rejected: %v", err)
	}
}

func TestStakeAfterExpiry(t *testing.T) {
	m := openMarket(oneDay)
	if _, _, err := m.Stake(m.ClosesAt, SideYes, 1_000_000); !errors.Is(err, ErrMarketClosed) {
		t.Fatalf("err at closes_at got=%v want=%v", err, ErrMarketClosed)
	}
	if _, _, err := m.Stake(m.ClosesAt.Add(time.Hour), SideNo, 1_000_000); !errors.Is(err, ErrMarketClosed) {
		t.Fatalf("err after closes_at got=%v want=%v", err, ErrMarketClosed)
	}
}

func TestPoolsConserveStakedValue(t *testing.T) {
	m := openMarket(oneDay)
	var contributed uint64
	for _, stake := range []struct {
		side  Side
		gross uint64
	}{
		{SideYes, 1_000_000},
		{SideNo, 2_500_000},
		{SideYes, 7_777_777},
		{SideNo, 1_000_001},
	} {
		if _, _, err := m.Stake(t0, stake.side, stake.gross); err != nil {
			t.Fatalf("Stake(%s, %d) error: %v", stake.side, stake.gross, err)
		}
		contributed += stake.gross
	}
	if total := m.YesPool + m.NoPool + m.FeePool; total != contributed {
		t.Fatalf("pool total=%d want=%d", total, contributed)
	}
}

func TestResolveBeforeExpiry(t *testing.T) {
	m := openMarket(oneDay)
	m.YesPool = 1
	if err := m.Resolve(t0, true); !errors.Is(err, ErrMarketStillActive) {
		t.Fatalf("err got=%v want=%v", err, ErrMarketStillActive)
	}
}

func TestResolveOnce(t *testing.T) {
	m := openMarket(oneDay)
	m.YesPool, m.NoPool = 500, 500
	after := m.ClosesAt.Add(time.Minute)

	if err := m.Resolve(after, true); err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if !m.Resolved || !m.OutcomeYes {
		t.Fatalf("resolved=%v outcome_yes=%v", m.Resolved, m.OutcomeYes)
	}

	// The first outcome is immutable.
	if err := m.Resolve(after, false); !errors.Is(err, ErrMarketAlreadyResolved) {
		t.Fatalf("second resolve err got=%v want=%v", err, ErrMarketAlreadyResolved)
	}
	if !m.OutcomeYes {
		t.Fatal("outcome changed by rejected second resolve")
	}
}

func TestResolveEmptyWinningSide(t *testing.T) {
	m := openMarket(oneDay)
	m.NoPool = 500
	after := m.ClosesAt.Add(time.Minute)

	if err := m.Resolve(after, true); !errors.Is(err, ErrEmptyWinningPool) {
		t.Fatalf("err got=%v want=%v", err, ErrEmptyWinningPool)
	}
	if err := m.Resolve(after, false); err != nil {
		t.Fatalf("resolve toward backed side error: %v", err)
	}
}

func TestPayoutSpecExample(t *testing.T) {
	m := openMarket(oneDay)
	m.YesPool, m.NoPool = 800_000, 200_000
	m.Resolved, m.OutcomeYes = true, true

	payout, err := m.Payout(Position{MarketID: m.ID, Amount: 100_000, IsYes: true})
	if err != nil {
		t.Fatalf("Payout error: %v", err)
	}
	if payout != 125_000 {
		t.Fatalf("payout got=%d want=%d", payout, 125_000)
	}
}

func TestPayoutRejections(t *testing.T) {
	m := openMarket(oneDay)
	m.YesPool, m.NoPool = 800_000, 200_000

	pos := Position{MarketID: m.ID, Amount: 100_000, IsYes: true}
	if _, err := m.Payout(pos); !errors.Is(err, ErrMarketNotResolved) {
		t.Fatalf("unresolved err got=%v want=%v", err, ErrMarketNotResolved)
	}

	m.Resolved, m.OutcomeYes = true, true

	losing := Position{MarketID: m.ID, Amount: 50_000, IsYes: false}
	if _, err := m.Payout(losing); !errors.Is(err, ErrInvalidOutcome) {
		t.Fatalf("losing side err got=%v want=%v", err, ErrInvalidOutcome)
	}

	redeemed := pos
	redeemed.Redeemed = true
	if _, err := m.Payout(redeemed); !errors.Is(err, ErrInvalidOutcome) {
		t.Fatalf("redeemed err got=%v want=%v", err, ErrInvalidOutcome)
	}
}

func TestPayoutNoOutcome(t *testing.T) {
	m := openMarket(oneDay)
	m.YesPool, m.NoPool = 300_000, 900_000
	m.Resolved, m.OutcomeYes = true, false

	payout, err := m.Payout(Position{MarketID: m.ID, Amount: 300_000, IsYes: false})
	if err != nil {
		t.Fatalf("Payout error: %v", err)
	}
	// 300_000 * 300_000 / 900_000 + 300_000 = 400_000.
	if payout != 400_000 {
		t.Fatalf("payout got=%d want=%d", payout, 400_000)
	}
}

func TestYesPriceDisplay(t *testing.T) {
	m := openMarket(oneDay)
	if _, ok := m.YesPrice(); ok {
		t.Fatal("empty market must have no price")
	}
	m.YesPool, m.NoPool = 600_000, 400_000
	price, ok := m.YesPrice()
	if !ok || price != 0.6 {
		t.Fatalf("price got=%v ok=%v want 0.6 true", price, ok)
	}
}
