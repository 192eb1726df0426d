package queries

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ethpandaops/goxatu/internal/chaintime"
	"github.com/ethpandaops/goxatu/internal/query"
)

// Transactions covers execution transactions, both as included in
// canonical beacon blocks and as execution-layer records.
type Transactions struct {
	runner Runner
	logger zerolog.Logger
}

// NewTransactions creates the transactions module.
func NewTransactions(runner Runner, logger zerolog.Logger) *Transactions {
	return &Transactions{runner: runner, logger: logger.With().Str("module", "transactions").Logger()}
}

// InBlocks returns execution transactions included in canonical beacon
// blocks matching the filter.
func (t *Transactions) InBlocks(ctx context.Context, f Filter) ([]Transaction, error) {
	columns := []string{
		"slot", "position", "hash", "from", "to", "value", "gas",
		"gas_price", "nonce",
	}
	rows, err := t.runner.Run(ctx, f.spec("canonical_beacon_block_execution_transaction", columns))
	if err != nil {
		return nil, err
	}

	txs := make([]Transaction, 0, len(rows))
	for _, r := range rows {
		txs = append(txs, transactionFromRow(r))
	}
	return txs, nil
}

// Execution returns execution-layer transactions in the given time
// range. The table is keyed by block number, not slot, so the window is
// a time range on its partitioning column.
func (t *Transactions) Execution(ctx context.Context, network chaintime.Network, tr query.TimeRange, limit int) ([]ExecutionTransaction, error) {
	spec := query.Spec{
		Table: "canonical_execution_transaction",
		Columns: []string{
			"block_number", "block_date_time", "transaction_index", "hash",
			"from_address", "to_address", "value", "gas_used", "success",
		},
		TimeRange: &tr,
		Network:   network,
		OrderBy:   []string{"block_number", "transaction_index"},
		Limit:     limit,
	}
	rows, err := t.runner.Run(ctx, spec)
	if err != nil {
		return nil, err
	}

	txs := make([]ExecutionTransaction, 0, len(rows))
	for _, r := range rows {
		txs = append(txs, ExecutionTransaction{
			BlockNumber: r.Uint64("block_number"),
			BlockTime:   r.Time("block_date_time"),
			Index:       r.Uint64("transaction_index"),
			Hash:        r.String("hash"),
			From:        r.String("from_address"),
			To:          r.String("to_address"),
			Value:       r.String("value"),
			GasUsed:     r.Uint64("gas_used"),
			Success:     r.Bool("success"),
		})
	}
	return txs, nil
}
