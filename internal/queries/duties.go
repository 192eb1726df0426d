package queries

import (
	"context"

	"github.com/rs/zerolog"
)

// Duties covers proposer duty assignments and committee membership.
type Duties struct {
	runner Runner
	logger zerolog.Logger
}

// NewDuties creates the duties module.
func NewDuties(runner Runner, logger zerolog.Logger) *Duties {
	return &Duties{runner: runner, logger: logger.With().Str("module", "duties").Logger()}
}

// Proposers returns proposer duty assignments matching the filter.
func (d *Duties) Proposers(ctx context.Context, f Filter) ([]ProposerDuty, error) {
	columns := []string{"slot", "epoch", "proposer_validator_index", "proposer_pubkey"}
	rows, err := d.runner.Run(ctx, f.spec("canonical_beacon_proposer_duty", columns))
	if err != nil {
		return nil, err
	}

	duties := make([]ProposerDuty, 0, len(rows))
	for _, r := range rows {
		duties = append(duties, dutyFromRow(r))
	}
	return duties, nil
}

// Committees returns beacon committee assignments matching the filter.
func (d *Duties) Committees(ctx context.Context, f Filter) ([]Committee, error) {
	columns := []string{"slot", "epoch", "committee_index", "validators"}
	rows, err := d.runner.Run(ctx, f.spec("beacon_api_eth_v1_beacon_committee", columns))
	if err != nil {
		return nil, err
	}

	committees := make([]Committee, 0, len(rows))
	for _, r := range rows {
		committees = append(committees, Committee{
			Slot:           r.Int64("slot"),
			Epoch:          r.Int64("epoch"),
			CommitteeIndex: r.Uint64("committee_index"),
			Validators:     parseValidators(r.String("validators")),
		})
	}
	return committees, nil
}
