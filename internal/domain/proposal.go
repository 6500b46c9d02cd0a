package domain

import "time"

// Proposal is a governance proposal awaiting a market verdict. MarketID is
// empty until a market is opened against it, set exactly once; Executed flips
// false→true exactly once.
type Proposal struct {
	ID          uint64
	Creator     string
	Description string
	MarketID    string
	Executed    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
