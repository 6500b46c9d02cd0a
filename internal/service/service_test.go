package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
	"github.com/Mardiprk/Mini-MetaDAO/internal/notify"
	"github.com/Mardiprk/Mini-MetaDAO/internal/treasury"
)

// memStore is an in-memory implementation of the store interfaces and the
// ledger, honoring the same contracts as the postgres layer.
type memStore struct {
	dao       *domain.Dao
	proposals map[uint64]domain.Proposal
	markets   map[string]domain.Market
	positions map[string]domain.Position
	balances  map[string]uint64
	events    []string
	vault     *treasury.Vault
}

func newMemStore(vault *treasury.Vault) *memStore {
	return &memStore{
		proposals: make(map[uint64]domain.Proposal),
		markets:   make(map[string]domain.Market),
		positions: make(map[string]domain.Position),
		balances:  make(map[string]uint64),
		vault:     vault,
	}
}

func posKey(marketID, bettor string) string { return marketID + "|" + bettor }
func balKey(account, asset string) string   { return account + "|" + asset }

func (s *memStore) Init(_ context.Context, dao domain.Dao) error {
	if s.dao != nil {
		return domain.ErrAlreadyExists
	}
	s.dao = &dao
	return nil
}

func (s *memStore) Get(_ context.Context) (domain.Dao, error) {
	if s.dao == nil {
		return domain.Dao{}, domain.ErrNotFound
	}
	return *s.dao, nil
}

func (s *memStore) Create(_ context.Context, p domain.Proposal) (domain.Proposal, error) {
	if s.dao == nil {
		return domain.Proposal{}, domain.ErrNotFound
	}
	p.ID = s.dao.ProposalCount
	s.dao.ProposalCount++
	s.proposals[p.ID] = p
	return p, nil
}

func (s *memStore) GetByID(_ context.Context, id uint64) (domain.Proposal, error) {
	p, ok := s.proposals[id]
	if !ok {
		return domain.Proposal{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *memStore) List(_ context.Context, _ domain.ListOpts) ([]domain.Proposal, error) {
	var out []domain.Proposal
	for _, p := range s.proposals {
		out = append(out, p)
	}
	return out, nil
}

func (s *memStore) Count(_ context.Context) (int64, error) {
	return int64(len(s.proposals)), nil
}

type memMarkets struct{ s *memStore }

func (m memMarkets) Create(_ context.Context, mk domain.Market) error {
	p, ok := m.s.proposals[mk.ProposalID]
	if !ok {
		return domain.ErrNotFound
	}
	if p.MarketID != "" {
		return domain.ErrAlreadyExists
	}
	p.MarketID = mk.ID
	m.s.proposals[p.ID] = p
	m.s.markets[mk.ID] = mk
	return nil
}

func (m memMarkets) GetByID(_ context.Context, id string) (domain.Market, error) {
	mk, ok := m.s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return mk, nil
}

func (m memMarkets) GetByProposal(_ context.Context, proposalID uint64) (domain.Market, error) {
	for _, mk := range m.s.markets {
		if mk.ProposalID == proposalID {
			return mk, nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func (m memMarkets) ListExpiredUnresolved(_ context.Context, cutoff time.Time) ([]domain.Market, error) {
	var out []domain.Market
	for _, mk := range m.s.markets {
		if !mk.Resolved && !cutoff.Before(mk.ClosesAt) {
			out = append(out, mk)
		}
	}
	return out, nil
}

func (m memMarkets) ListResolvedBefore(_ context.Context, cutoff time.Time) ([]domain.Market, error) {
	var out []domain.Market
	for _, mk := range m.s.markets {
		if mk.Resolved && mk.ClosesAt.Before(cutoff) {
			out = append(out, mk)
		}
	}
	return out, nil
}

func (m memMarkets) Stake(_ context.Context, pos domain.Position, gross, net, fee uint64) error {
	mk, ok := m.s.markets[pos.MarketID]
	if !ok {
		return domain.ErrNotFound
	}
	if mk.Resolved {
		return domain.ErrMarketClosed
	}
	if _, exists := m.s.positions[posKey(pos.MarketID, pos.Bettor)]; exists {
		return domain.ErrAlreadyExists
	}
	bk := balKey(pos.Bettor, domain.AssetBase)
	if m.s.balances[bk] < gross {
		return domain.ErrInsufficientFunds
	}
	m.s.balances[bk] -= gross
	m.s.balances[balKey(domain.EscrowAccount(pos.MarketID), domain.AssetBase)] += gross
	if pos.IsYes {
		mk.YesPool += net
	} else {
		mk.NoPool += net
	}
	mk.FeePool += fee
	m.s.markets[mk.ID] = mk
	m.s.positions[posKey(pos.MarketID, pos.Bettor)] = pos
	return nil
}

func (m memMarkets) Resolve(_ context.Context, id string, outcomeYes bool) error {
	mk, ok := m.s.markets[id]
	if !ok {
		return domain.ErrNotFound
	}
	if mk.Resolved {
		return domain.ErrMarketAlreadyResolved
	}
	mk.Resolved = true
	mk.OutcomeYes = outcomeYes
	m.s.markets[id] = mk
	return nil
}

type memPositions struct{ s *memStore }

func (m memPositions) Get(_ context.Context, marketID, bettor string) (domain.Position, error) {
	p, ok := m.s.positions[posKey(marketID, bettor)]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

func (m memPositions) ListByMarket(_ context.Context, marketID string, _ domain.ListOpts) ([]domain.Position, error) {
	var out []domain.Position
	for _, p := range m.s.positions {
		if p.MarketID == marketID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m memPositions) ListByBettor(_ context.Context, bettor string, _ domain.ListOpts) ([]domain.Position, error) {
	var out []domain.Position
	for _, p := range m.s.positions {
		if p.Bettor == bettor {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m memPositions) Redeem(_ context.Context, marketID, bettor string, payout uint64) error {
	key := posKey(marketID, bettor)
	p, ok := m.s.positions[key]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Redeemed {
		return domain.ErrInvalidOutcome
	}
	ek := balKey(domain.EscrowAccount(marketID), domain.AssetBase)
	if m.s.balances[ek] < payout {
		return domain.ErrInsufficientFunds
	}
	m.s.balances[ek] -= payout
	m.s.balances[balKey(bettor, domain.AssetBase)] += payout
	p.Redeemed = true
	m.s.positions[key] = p
	return nil
}

type memLedger struct{ s *memStore }

func (l memLedger) Balance(_ context.Context, account, asset string) (uint64, error) {
	return l.s.balances[balKey(account, asset)], nil
}

func (l memLedger) Deposit(_ context.Context, account, asset string, amount uint64) error {
	l.s.balances[balKey(account, asset)] += amount
	return nil
}

func (l memLedger) Transfer(_ context.Context, from, to, asset string, amount uint64) error {
	fk := balKey(from, asset)
	if l.s.balances[fk] < amount {
		return domain.ErrInsufficientFunds
	}
	l.s.balances[fk] -= amount
	l.s.balances[balKey(to, asset)] += amount
	return nil
}

func (l memLedger) ExecuteProposal(ctx context.Context, grant treasury.Grant, proposalID uint64, recipient, tokenAsset string, amount, tokenAmount uint64) error {
	if !l.s.vault.Verify(grant) {
		return domain.ErrUnauthorized
	}
	p, ok := l.s.proposals[proposalID]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Executed {
		return domain.ErrProposalAlreadyExecuted
	}
	if err := l.Transfer(ctx, domain.TreasuryAccount, recipient, domain.AssetBase, amount); err != nil {
		return err
	}
	if err := l.Transfer(ctx, domain.TreasuryAccount, recipient, tokenAsset, tokenAmount); err != nil {
		return err
	}
	p.Executed = true
	l.s.proposals[proposalID] = p
	return nil
}

func (s *memStore) Log(_ context.Context, event string, _ map[string]any) error {
	s.events = append(s.events, event)
	return nil
}

func (s *memStore) ListAudit(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

// memAudit adapts memStore to domain.AuditStore.
type memAudit struct{ s *memStore }

func (a memAudit) Log(ctx context.Context, event string, detail map[string]any) error {
	return a.s.Log(ctx, event, detail)
}

func (a memAudit) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	return a.s.ListAudit(ctx, opts)
}

type noopBus struct{}

func (noopBus) Publish(context.Context, string, []byte) error { return nil }
func (noopBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, nil
}
func (noopBus) StreamAppend(context.Context, string, []byte) error { return nil }
func (noopBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type noopLocks struct{}

func (noopLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}

type memPrices struct{ prices map[string]float64 }

func (m *memPrices) SetPrice(_ context.Context, marketID string, yesPrice float64, _ time.Time) error {
	m.prices[marketID] = yesPrice
	return nil
}

func (m *memPrices) GetPrice(_ context.Context, marketID string) (float64, time.Time, error) {
	p, ok := m.prices[marketID]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return p, time.Time{}, nil
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type testEnv struct {
	store      *memStore
	clock      *fakeClock
	prices     *memPrices
	governance *GovernanceService
	markets    *MarketService
	redemption *RedemptionService
	ledger     memLedger
}

const (
	admin  = "0x00000000000000000000000000000000000000aa"
	alice  = "0x00000000000000000000000000000000000000a1"
	bob    = "0x00000000000000000000000000000000000000b2"
	govTok = "META"
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	vault, err := treasury.NewVault("test-passphrase")
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	store := newMemStore(vault)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	prices := &memPrices{prices: make(map[string]float64)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := notify.NewNotifier(nil, nil, logger)

	markets := memMarkets{s: store}
	positions := memPositions{s: store}
	ledger := memLedger{s: store}
	audit := memAudit{s: store}

	return &testEnv{
		store:  store,
		clock:  clock,
		prices: prices,
		ledger: ledger,
		governance: NewGovernanceService(
			store, store, markets, ledger, vault, audit, noopBus{}, notifier, clock, logger,
		),
		markets: NewMarketService(
			markets, prices, noopLocks{}, noopBus{}, audit, notifier, clock, logger,
		),
		redemption: NewRedemptionService(
			markets, positions, audit, noopBus{}, logger,
		),
	}
}

func (e *testEnv) mustInit(t *testing.T) domain.Dao {
	t.Helper()
	dao, err := e.governance.InitDao(context.Background(), admin, govTok)
	if err != nil {
		t.Fatalf("InitDao: %v", err)
	}
	return dao
}

func (e *testEnv) mustOpenMarket(t *testing.T, creator string) (domain.Proposal, domain.Market) {
	t.Helper()
	ctx := context.Background()
	p, err := e.governance.CreateProposal(ctx, creator, "fund the grants program")
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	m, err := e.markets.OpenMarket(ctx, p.ID, 24*time.Hour)
	if err != nil {
		t.Fatalf("OpenMarket: %v", err)
	}
	return p, m
}

func (e *testEnv) fund(t *testing.T, account string, amount uint64) {
	t.Helper()
	if err := e.ledger.Deposit(context.Background(), account, domain.AssetBase, amount); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
}

func TestInitDaoOnce(t *testing.T) {
	env := newTestEnv(t)
	dao := env.mustInit(t)
	if dao.Admin != admin || dao.ProposalCount != 0 {
		t.Fatalf("dao got admin=%s count=%d", dao.Admin, dao.ProposalCount)
	}
	if _, err := env.governance.InitDao(context.Background(), bob, govTok); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("second init err got=%v want=%v", err, domain.ErrAlreadyExists)
	}
}

func TestCreateProposalClaimsCounter(t *testing.T) {
	env := newTestEnv(t)
	env.mustInit(t)
	ctx := context.Background()

	for want := uint64(0); want < 3; want++ {
		p, err := env.governance.CreateProposal(ctx, alice, "proposal")
		if err != nil {
			t.Fatalf("CreateProposal: %v", err)
		}
		if p.ID != want {
			t.Fatalf("proposal id got=%d want=%d", p.ID, want)
		}
	}
	dao, _ := env.governance.GetDao(ctx)
	if dao.ProposalCount != 3 {
		t.Fatalf("proposal count got=%d want=3", dao.ProposalCount)
	}
}

func TestOpenMarketOncePerProposal(t *testing.T) {
	env := newTestEnv(t)
	env.mustInit(t)
	ctx := context.Background()

	p, _ := env.mustOpenMarket(t, alice)
	if _, err := env.markets.OpenMarket(ctx, p.ID, 24*time.Hour); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("second market err got=%v want=%v", err, domain.ErrAlreadyExists)
	}
	if _, err := env.markets.OpenMarket(ctx, 99, 12*time.Hour); !errors.Is(err, domain.ErrInvalidMarketDuration) {
		t.Fatalf("short duration err got=%v want=%v", err, domain.ErrInvalidMarketDuration)
	}
}

func TestStakeMovesValueAtomically(t *testing.T) {
	env := newTestEnv(t)
	env.mustInit(t)
	ctx := context.Background()

	_, m := env.mustOpenMarket(t, alice)
	env.fund(t, alice, 5_000_000)

	pos, err := env.markets.Stake(ctx, m.ID, alice, domain.SideYes, 2_000_000)
	if err != nil {
		t.Fatalf("Stake: %v", err)
	}
	if pos.Amount != 1_960_000 || !pos.IsYes {
		t.Fatalf("position got amount=%d is_yes=%v", pos.Amount, pos.IsYes)
	}

	got, _ := env.markets.GetMarket(ctx, m.ID)
	if got.YesPool != 1_960_000 || got.FeePool != 40_000 || got.NoPool != 0 {
		t.Fatalf("pools got yes=%d no=%d fee=%d", got.YesPool, got.NoPool, got.FeePool)
	}

	bal, _ := env.ledger.Balance(ctx, alice, domain.AssetBase)
	if bal != 3_000_000 {
		t.Fatalf("bettor balance got=%d want=3_000_000", bal)
	}
	escrow, _ := env.ledger.Balance(ctx, domain.EscrowAccount(m.ID), domain.AssetBase)
	if escrow != 2_000_000 {
		t.Fatalf("escrow balance got=%d want=2_000_000", escrow)
	}
	if price := env.prices.prices[m.ID]; price != 1.0 {
		t.Fatalf("cached price got=%v want=1.0", price)
	}
}

func TestStakeFailures(t *testing.T) {
	env := newTestEnv(t)
	env.mustInit(t)
	ctx := context.Background()

	_, m := env.mustOpenMarket(t, alice)
	env.fund(t, alice, 10_000_000)

	if _, err := env.markets.Stake(ctx, m.ID, bob, domain.SideNo, 1_000_000); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("unfunded err got=%v want=%v", err, domain.ErrInsufficientFunds)
	}
	if _, err := env.markets.Stake(ctx, m.ID, alice, domain.SideYes, 999_999); !errors.Is(err, domain.ErrBetTooSmall) {
		t.Fatalf("small bet err got=%v want=%v", err, domain.ErrBetTooSmall)
	}
	if _, err := env.markets.Stake(ctx, m.ID, alice, "maybe", 1_000_000); !errors.Is(err, domain.ErrInvalidOutcome) {
		t.Fatalf("bad side err got=%v want=%v", err, domain.ErrInvalidOutcome)
	}

	if _, err := env.markets.Stake(ctx, m.ID, alice, domain.SideYes, 1_000_000); err != nil {
		t.Fatalf("Stake: %v", err)
	}
	if _, err := env.markets.Stake(ctx, m.ID, alice, domain.SideNo, 1_000_000); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("duplicate position err got=%v want=%v", err, domain.ErrAlreadyExists)
	}

	env.clock.now = m.ClosesAt
	env.fund(t, bob, 2_000_000)
	if _, err := env.markets.Stake(ctx, m.ID, bob, domain.SideNo, 1_000_000); !errors.Is(err, domain.ErrMarketClosed) {
		t.Fatalf("closed market err got=%v want=%v", err, domain.ErrMarketClosed)
	}
}

func TestResolveAndRedeem(t *testing.T) {
	env := newTestEnv(t)
	env.mustInit(t)
	ctx := context.Background()

	_, m := env.mustOpenMarket(t, alice)
	env.fund(t, alice, 2_000_000)
	env.fund(t, bob, 1_000_000)

	if _, err := env.markets.Stake(ctx, m.ID, alice, domain.SideYes, 2_000_000); err != nil {
		t.Fatalf("Stake yes: %v", err)
	}
	if _, err := env.markets.Stake(ctx, m.ID, bob, domain.SideNo, 1_000_000); err != nil {
		t.Fatalf("Stake no: %v", err)
	}

	if _, err := env.markets.Resolve(ctx, m.ID, true); !errors.Is(err, domain.ErrMarketStillActive) {
		t.Fatalf("early resolve err got=%v want=%v", err, domain.ErrMarketStillActive)
	}

	env.clock.now = m.ClosesAt.Add(time.Minute)
	resolved, err := env.markets.Resolve(ctx, m.ID, true)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !resolved.Resolved || !resolved.OutcomeYes {
		t.Fatalf("market not resolved YES: %+v", resolved)
	}
	if _, err := env.markets.Resolve(ctx, m.ID, false); !errors.Is(err, domain.ErrMarketAlreadyResolved) {
		t.Fatalf("second resolve err got=%v want=%v", err, domain.ErrMarketAlreadyResolved)
	}

	// yes_pool = 1_960_000, no_pool = 1_000_000.
	// payout = 1_960_000 * 1_000_000 / 1_960_000 + 1_960_000 = 2_960_000.
	payout, err := env.redemption.Redeem(ctx, m.ID, alice)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if payout != 2_960_000 {
		t.Fatalf("payout got=%d want=2_960_000", payout)
	}
	bal, _ := env.ledger.Balance(ctx, alice, domain.AssetBase)
	if bal != 2_960_000 {
		t.Fatalf("winner balance got=%d want=2_960_000", bal)
	}

	if _, err := env.redemption.Redeem(ctx, m.ID, alice); !errors.Is(err, domain.ErrInvalidOutcome) {
		t.Fatalf("double redeem err got=%v want=%v", err, domain.ErrInvalidOutcome)
	}
	if _, err := env.redemption.Redeem(ctx, m.ID, bob); !errors.Is(err, domain.ErrInvalidOutcome) {
		t.Fatalf("losing redeem err got=%v want=%v", err, domain.ErrInvalidOutcome)
	}

	// The fee stays behind in escrow after the winning side exits.
	escrow, _ := env.ledger.Balance(ctx, domain.EscrowAccount(m.ID), domain.AssetBase)
	if escrow != 40_000 {
		t.Fatalf("escrow residue got=%d want=40_000", escrow)
	}
}

func TestExecuteProposalGate(t *testing.T) {
	env := newTestEnv(t)
	env.mustInit(t)
	ctx := context.Background()

	p, m := env.mustOpenMarket(t, alice)
	env.fund(t, alice, 2_000_000)
	env.fund(t, domain.TreasuryAccount, 10_000_000)
	if err := env.ledger.Deposit(ctx, domain.TreasuryAccount, govTok, 500); err != nil {
		t.Fatalf("Deposit token: %v", err)
	}

	if err := env.governance.ExecuteProposal(ctx, alice, p.ID, bob, 1_000, 10); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("non-admin err got=%v want=%v", err, domain.ErrUnauthorized)
	}
	if err := env.governance.ExecuteProposal(ctx, admin, p.ID, bob, 1_000, 10); !errors.Is(err, domain.ErrMarketNotResolved) {
		t.Fatalf("unresolved err got=%v want=%v", err, domain.ErrMarketNotResolved)
	}

	if _, err := env.markets.Stake(ctx, m.ID, alice, domain.SideYes, 2_000_000); err != nil {
		t.Fatalf("Stake: %v", err)
	}
	env.clock.now = m.ClosesAt.Add(time.Minute)
	if _, err := env.markets.Resolve(ctx, m.ID, true); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if err := env.governance.ExecuteProposal(ctx, admin, p.ID, bob, 1_000, 10); err != nil {
		t.Fatalf("ExecuteProposal: %v", err)
	}
	base, _ := env.ledger.Balance(ctx, bob, domain.AssetBase)
	tok, _ := env.ledger.Balance(ctx, bob, govTok)
	if base != 1_000 || tok != 10 {
		t.Fatalf("recipient balances got base=%d token=%d", base, tok)
	}

	if err := env.governance.ExecuteProposal(ctx, admin, p.ID, bob, 1_000, 10); !errors.Is(err, domain.ErrProposalAlreadyExecuted) {
		t.Fatalf("second execute err got=%v want=%v", err, domain.ErrProposalAlreadyExecuted)
	}
}

func TestExecuteProposalRejectedOnNo(t *testing.T) {
	env := newTestEnv(t)
	env.mustInit(t)
	ctx := context.Background()

	p, m := env.mustOpenMarket(t, alice)
	env.fund(t, bob, 1_000_000)
	if _, err := env.markets.Stake(ctx, m.ID, bob, domain.SideNo, 1_000_000); err != nil {
		t.Fatalf("Stake: %v", err)
	}

	env.clock.now = m.ClosesAt.Add(time.Minute)
	if _, err := env.markets.Resolve(ctx, m.ID, false); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := env.governance.ExecuteProposal(ctx, admin, p.ID, bob, 1_000, 0); !errors.Is(err, domain.ErrProposalRejected) {
		t.Fatalf("rejected err got=%v want=%v", err, domain.ErrProposalRejected)
	}
}

func TestResolveTowardEmptyPool(t *testing.T) {
	env := newTestEnv(t)
	env.mustInit(t)
	ctx := context.Background()

	_, m := env.mustOpenMarket(t, alice)
	env.fund(t, bob, 1_000_000)
	if _, err := env.markets.Stake(ctx, m.ID, bob, domain.SideNo, 1_000_000); err != nil {
		t.Fatalf("Stake: %v", err)
	}

	env.clock.now = m.ClosesAt.Add(time.Minute)
	if _, err := env.markets.Resolve(ctx, m.ID, true); !errors.Is(err, domain.ErrEmptyWinningPool) {
		t.Fatalf("empty pool err got=%v want=%v", err, domain.ErrEmptyWinningPool)
	}
	if _, err := env.markets.Resolve(ctx, m.ID, false); err != nil {
		t.Fatalf("Resolve toward backed side: %v", err)
	}
}

func TestListExpiredUnresolved(t *testing.T) {
	env := newTestEnv(t)
	env.mustInit(t)
	ctx := context.Background()

	_, m := env.mustOpenMarket(t, alice)

	open, err := env.markets.ListExpiredUnresolved(ctx)
	if err != nil {
		t.Fatalf("ListExpiredUnresolved: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("expected no expired markets, got %d", len(open))
	}

	env.clock.now = m.ClosesAt
	expired, err := env.markets.ListExpiredUnresolved(ctx)
	if err != nil {
		t.Fatalf("ListExpiredUnresolved: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != m.ID {
		t.Fatalf("expected market %s expired, got %+v", m.ID, expired)
	}
}
