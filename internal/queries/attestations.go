package queries

import (
	"context"

	"github.com/rs/zerolog"
)

// Attestations covers attestation data from canonical blocks.
type Attestations struct {
	runner Runner
	logger zerolog.Logger
}

// NewAttestations creates the attestations module.
func NewAttestations(runner Runner, logger zerolog.Logger) *Attestations {
	return &Attestations{runner: runner, logger: logger.With().Str("module", "attestations").Logger()}
}

// Elaborated returns attestations from canonical blocks with their
// validator sets expanded.
func (a *Attestations) Elaborated(ctx context.Context, f Filter) ([]Attestation, error) {
	columns := []string{
		"slot", "block_slot", "committee_index", "validators",
		"beacon_block_root", "source_root", "target_root",
	}
	rows, err := a.runner.Run(ctx, f.spec("canonical_beacon_elaborated_attestation", columns))
	if err != nil {
		return nil, err
	}

	atts := make([]Attestation, 0, len(rows))
	for _, r := range rows {
		atts = append(atts, attestationFromRow(r))
	}
	return atts, nil
}

// VotesBySlot aggregates elaborated attestations into a per-slot count
// of attesting validators.
func (a *Attestations) VotesBySlot(ctx context.Context, f Filter) (map[int64]int, error) {
	atts, err := a.Elaborated(ctx, f)
	if err != nil {
		return nil, err
	}

	votes := make(map[int64]int)
	for _, att := range atts {
		votes[att.Slot] += len(att.Validators)
	}
	return votes, nil
}
