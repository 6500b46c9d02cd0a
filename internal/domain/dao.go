package domain

import "time"

// Dao is the singleton governance record. It is created exactly once; only
// ProposalCount changes afterwards, bumped by each proposal creation.
type Dao struct {
	Admin          string // admin identity (hex address)
	Treasury       string // treasury holding account
	GovernanceMint string // governance token asset identifier
	ProposalCount  uint64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
