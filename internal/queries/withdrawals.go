package queries

import (
	"context"

	"github.com/rs/zerolog"
)

// Withdrawals covers validator withdrawals from canonical blocks.
type Withdrawals struct {
	runner Runner
	logger zerolog.Logger
}

// NewWithdrawals creates the withdrawals module.
func NewWithdrawals(runner Runner, logger zerolog.Logger) *Withdrawals {
	return &Withdrawals{runner: runner, logger: logger.With().Str("module", "withdrawals").Logger()}
}

// List returns withdrawals matching the filter.
func (w *Withdrawals) List(ctx context.Context, f Filter) ([]Withdrawal, error) {
	columns := []string{
		"slot", "withdrawal_index", "withdrawal_validator_index",
		"withdrawal_address", "withdrawal_amount",
	}
	rows, err := w.runner.Run(ctx, f.spec("canonical_beacon_block_withdrawal", columns))
	if err != nil {
		return nil, err
	}

	withdrawals := make([]Withdrawal, 0, len(rows))
	for _, r := range rows {
		withdrawals = append(withdrawals, withdrawalFromRow(r))
	}
	return withdrawals, nil
}

// TotalByValidator aggregates withdrawal amounts per validator index,
// in gwei.
func (w *Withdrawals) TotalByValidator(ctx context.Context, f Filter) (map[uint64]uint64, error) {
	withdrawals, err := w.List(ctx, f)
	if err != nil {
		return nil, err
	}

	totals := make(map[uint64]uint64)
	for _, wd := range withdrawals {
		totals[wd.ValidatorIndex] += wd.AmountGwei
	}
	return totals, nil
}
