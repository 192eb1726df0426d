package queries

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ethpandaops/goxatu/internal/chaintime"
	"github.com/ethpandaops/goxatu/internal/query"
)

// Slots answers block- and slot-level questions: which blocks landed,
// which slots were missed, and which missed slots were reorged out.
type Slots struct {
	runner Runner
	logger zerolog.Logger
}

// NewSlots creates the slots module.
func NewSlots(runner Runner, logger zerolog.Logger) *Slots {
	return &Slots{runner: runner, logger: logger.With().Str("module", "slots").Logger()}
}

var blockColumns = []string{
	"slot", "slot_start_date_time", "epoch", "block_root", "parent_root",
	"state_root", "proposer_index", "graffiti",
	"execution_payload_block_hash", "execution_payload_block_number",
	"execution_payload_transactions_count",
}

// Blocks returns canonical beacon blocks matching the filter.
func (s *Slots) Blocks(ctx context.Context, f Filter) ([]Block, error) {
	rows, err := s.runner.Run(ctx, f.spec("canonical_beacon_block", blockColumns))
	if err != nil {
		return nil, err
	}

	blocks := make([]Block, 0, len(rows))
	for _, r := range rows {
		blocks = append(blocks, blockFromRow(r))
	}
	return blocks, nil
}

// MissedSlots returns the slots in [r.Start, r.End) with no canonical
// block. The canonical set comes from the same backend, so the answer is
// only as current as finalization.
func (s *Slots) MissedSlots(ctx context.Context, network chaintime.Network, r query.SlotRange) ([]int64, error) {
	if r.End <= r.Start {
		return nil, fmt.Errorf("invalid slot range [%d, %d)", r.Start, r.End)
	}

	spec := query.Spec{
		Table:     "canonical_beacon_block",
		Columns:   []string{"slot"},
		SlotRange: &r,
		Network:   network,
	}
	rows, err := s.runner.Run(ctx, spec)
	if err != nil {
		return nil, err
	}

	proposed := make(map[int64]bool, len(rows))
	for _, row := range rows {
		proposed[row.Int64("slot")] = true
	}

	var missed []int64
	for slot := r.Start; slot < r.End; slot++ {
		if !proposed[slot] {
			missed = append(missed, slot)
		}
	}

	s.logger.Debug().
		Int64("start", r.Start).
		Int64("end", r.End).
		Int("missed", len(missed)).
		Msg("derived missed slots")
	return missed, nil
}

// Reorgs returns the slots in [r.Start, r.End) that were reorged out of
// the chain. A reorg event at slot N with depth D orphans slot N-D; only
// orphaned slots that are also missing from the canonical chain count,
// which filters events whose branch later won.
func (s *Slots) Reorgs(ctx context.Context, network chaintime.Network, r query.SlotRange) ([]Reorg, error) {
	// Events land up to depth slots after the orphaned slot, so the
	// event scan extends past the requested range.
	const maxDepth = 64
	eventRange := query.SlotRange{Start: r.Start, End: r.End + maxDepth}

	spec := query.Spec{
		Table:     "beacon_api_eth_v1_events_chain_reorg",
		Columns:   []string{"slot", "depth", "old_head_block", "new_head_block", "event_date_time"},
		SlotRange: &eventRange,
		Network:   network,
	}
	rows, err := s.runner.Run(ctx, spec)
	if err != nil {
		return nil, err
	}

	missed, err := s.MissedSlots(ctx, network, r)
	if err != nil {
		return nil, err
	}
	missedSet := make(map[int64]bool, len(missed))
	for _, slot := range missed {
		missedSet[slot] = true
	}

	seen := make(map[int64]bool)
	var reorgs []Reorg
	for _, row := range rows {
		depth := row.Uint64("depth")
		orphaned := row.Int64("slot") - int64(depth)
		if orphaned < r.Start || orphaned >= r.End {
			continue
		}
		if !missedSet[orphaned] || seen[orphaned] {
			continue
		}
		seen[orphaned] = true
		reorgs = append(reorgs, Reorg{
			Slot:         orphaned,
			Depth:        depth,
			OldHeadBlock: row.String("old_head_block"),
			NewHeadBlock: row.String("new_head_block"),
			EventTime:    row.Time("event_date_time"),
		})
	}

	sort.Slice(reorgs, func(i, j int) bool { return reorgs[i].Slot < reorgs[j].Slot })
	return reorgs, nil
}
