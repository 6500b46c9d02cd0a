package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
)

// settlementRecord is the archived form of one resolved market: the frozen
// pools plus every position, winning and losing.
type settlementRecord struct {
	MarketID   string           `json:"market_id"`
	ProposalID uint64           `json:"proposal_id"`
	YesPool    uint64           `json:"yes_pool"`
	NoPool     uint64           `json:"no_pool"`
	FeePool    uint64           `json:"fee_pool"`
	OutcomeYes bool             `json:"outcome_yes"`
	ClosedAt   time.Time        `json:"closed_at"`
	Positions  []positionRecord `json:"positions"`
}

type positionRecord struct {
	Bettor   string `json:"bettor"`
	Amount   uint64 `json:"amount"`
	IsYes    bool   `json:"is_yes"`
	Redeemed bool   `json:"redeemed"`
}

// SettlementArchiver implements domain.Archiver. It serializes resolved
// markets and their positions to JSONL and uploads the file to
// archive/settlements/YYYY-MM.jsonl. Rows are not deleted from the primary
// store here; deletion is a separate step after the upload is verified.
type SettlementArchiver struct {
	writer    domain.BlobWriter
	markets   domain.MarketStore
	positions domain.PositionStore
	audit     domain.AuditStore
}

// NewSettlementArchiver creates a SettlementArchiver.
func NewSettlementArchiver(
	writer domain.BlobWriter,
	markets domain.MarketStore,
	positions domain.PositionStore,
	audit domain.AuditStore,
) *SettlementArchiver {
	return &SettlementArchiver{
		writer:    writer,
		markets:   markets,
		positions: positions,
		audit:     audit,
	}
}

// ArchiveSettlements uploads every resolved market whose window closed
// before the cutoff, together with its positions, and returns the number of
// markets archived.
func (a *SettlementArchiver) ArchiveSettlements(ctx context.Context, before time.Time) (int64, error) {
	markets, err := a.markets.ListResolvedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settlements query: %w", err)
	}
	if len(markets) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for _, m := range markets {
		positions, err := a.positions.ListByMarket(ctx, m.ID, domain.ListOpts{})
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive settlements positions %s: %w", m.ID, err)
		}

		rec := settlementRecord{
			MarketID:   m.ID,
			ProposalID: m.ProposalID,
			YesPool:    m.YesPool,
			NoPool:     m.NoPool,
			FeePool:    m.FeePool,
			OutcomeYes: m.OutcomeYes,
			ClosedAt:   m.ClosesAt,
			Positions:  make([]positionRecord, 0, len(positions)),
		}
		for _, p := range positions {
			rec.Positions = append(rec.Positions, positionRecord{
				Bettor:   p.Bettor,
				Amount:   p.Amount,
				IsYes:    p.IsYes,
				Redeemed: p.Redeemed,
			})
		}
		if err := enc.Encode(rec); err != nil {
			return 0, fmt.Errorf("s3blob: archive settlements encode %s: %w", m.ID, err)
		}
	}

	path := fmt.Sprintf("archive/settlements/%s.jsonl", before.Format("2006-01"))
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf.Bytes()), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive settlements upload: %w", err)
	}

	count := int64(len(markets))
	if err := a.audit.Log(ctx, "archive.settlements", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive settlements audit log: %w", err)
	}
	return count, nil
}

var _ domain.Archiver = (*SettlementArchiver)(nil)
