package queries

import (
	"encoding/json"
	"time"

	"github.com/ethpandaops/goxatu/internal/clickhouse"
)

// Block is one canonical beacon block.
type Block struct {
	Slot              int64
	SlotStartTime     time.Time
	Epoch             int64
	BlockRoot         string
	ParentRoot        string
	StateRoot         string
	ProposerIndex     uint64
	Graffiti          string
	ExecutionHash     string
	ExecutionNumber   uint64
	TransactionsCount uint64
}

func blockFromRow(r clickhouse.Row) Block {
	return Block{
		Slot:              r.Int64("slot"),
		SlotStartTime:     r.Time("slot_start_date_time"),
		Epoch:             r.Int64("epoch"),
		BlockRoot:         r.String("block_root"),
		ParentRoot:        r.String("parent_root"),
		StateRoot:         r.String("state_root"),
		ProposerIndex:     r.Uint64("proposer_index"),
		Graffiti:          r.String("graffiti"),
		ExecutionHash:     r.String("execution_payload_block_hash"),
		ExecutionNumber:   r.Uint64("execution_payload_block_number"),
		TransactionsCount: r.Uint64("execution_payload_transactions_count"),
	}
}

// Reorg is one chain reorganization event. Slot is the reorged slot,
// derived from the event slot minus the reorg depth.
type Reorg struct {
	Slot         int64
	Depth        uint64
	OldHeadBlock string
	NewHeadBlock string
	EventTime    time.Time
}

// ProposerDuty assigns a validator to propose at a slot.
type ProposerDuty struct {
	Slot           int64
	Epoch          int64
	ValidatorIndex uint64
	Pubkey         string
}

func dutyFromRow(r clickhouse.Row) ProposerDuty {
	return ProposerDuty{
		Slot:           r.Int64("slot"),
		Epoch:          r.Int64("epoch"),
		ValidatorIndex: r.Uint64("proposer_validator_index"),
		Pubkey:         r.String("proposer_pubkey"),
	}
}

// Attestation is one attestation from a canonical block with its
// expanded validator set.
type Attestation struct {
	Slot            int64
	BlockSlot       int64
	CommitteeIndex  uint64
	Validators      []uint64
	BeaconBlockRoot string
	SourceRoot      string
	TargetRoot      string
}

func attestationFromRow(r clickhouse.Row) Attestation {
	return Attestation{
		Slot:            r.Int64("slot"),
		BlockSlot:       r.Int64("block_slot"),
		CommitteeIndex:  r.Uint64("committee_index"),
		Validators:      parseValidators(r.String("validators")),
		BeaconBlockRoot: r.String("beacon_block_root"),
		SourceRoot:      r.String("source_root"),
		TargetRoot:      r.String("target_root"),
	}
}

// parseValidators decodes the backend's array rendering of a validator
// set, e.g. "[1,2,3]". Malformed input yields nil.
func parseValidators(s string) []uint64 {
	if s == "" {
		return nil
	}
	var out []uint64
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// Committee is one beacon committee assignment.
type Committee struct {
	Slot           int64
	Epoch          int64
	CommitteeIndex uint64
	Validators     []uint64
}

// Withdrawal is one validator withdrawal from a canonical block.
type Withdrawal struct {
	Slot           int64
	Index          uint64
	ValidatorIndex uint64
	Address        string
	AmountGwei     uint64
}

func withdrawalFromRow(r clickhouse.Row) Withdrawal {
	return Withdrawal{
		Slot:           r.Int64("slot"),
		Index:          r.Uint64("withdrawal_index"),
		ValidatorIndex: r.Uint64("withdrawal_validator_index"),
		Address:        r.String("withdrawal_address"),
		AmountGwei:     r.Uint64("withdrawal_amount"),
	}
}

// Transaction is one execution transaction included in a canonical
// beacon block. Value is the decimal wei amount as a string; it can
// exceed uint64.
type Transaction struct {
	Slot     int64
	Position uint64
	Hash     string
	From     string
	To       string
	Value    string
	Gas      uint64
	GasPrice string
	Nonce    uint64
}

func transactionFromRow(r clickhouse.Row) Transaction {
	return Transaction{
		Slot:     r.Int64("slot"),
		Position: r.Uint64("position"),
		Hash:     r.String("hash"),
		From:     r.String("from"),
		To:       r.String("to"),
		Value:    r.String("value"),
		Gas:      r.Uint64("gas"),
		GasPrice: r.String("gas_price"),
		Nonce:    r.Uint64("nonce"),
	}
}

// ExecutionTransaction is one execution-layer transaction keyed by block
// number rather than slot.
type ExecutionTransaction struct {
	BlockNumber uint64
	BlockTime   time.Time
	Index       uint64
	Hash        string
	From        string
	To          string
	Value       string
	GasUsed     uint64
	Success     bool
}

// BlobSidecar is one blob sidecar from a canonical block.
type BlobSidecar struct {
	Slot          int64
	Index         uint64
	KZGCommitment string
	VersionedHash string
	Size          uint64
}

func blobFromRow(r clickhouse.Row) BlobSidecar {
	return BlobSidecar{
		Slot:          r.Int64("slot"),
		Index:         r.Uint64("blob_index"),
		KZGCommitment: r.String("kzg_commitment"),
		VersionedHash: r.String("versioned_hash"),
		Size:          r.Uint64("blob_size"),
	}
}
