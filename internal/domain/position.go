package domain

import "time"

// Position is one bettor's stake in one market. The store enforces at most
// one position per (market, bettor) pair; Redeemed flips false→true exactly
// once at redemption.
type Position struct {
	MarketID  string
	Bettor    string
	Amount    uint64 // net stake credited to the side pool
	IsYes     bool
	Redeemed  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
