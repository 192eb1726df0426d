package queries

import (
	"context"

	"github.com/rs/zerolog"
)

// Blobs covers blob sidecars from canonical blocks.
type Blobs struct {
	runner Runner
	logger zerolog.Logger
}

// NewBlobs creates the blobs module.
func NewBlobs(runner Runner, logger zerolog.Logger) *Blobs {
	return &Blobs{runner: runner, logger: logger.With().Str("module", "blobs").Logger()}
}

// Sidecars returns canonical blob sidecars matching the filter.
func (b *Blobs) Sidecars(ctx context.Context, f Filter) ([]BlobSidecar, error) {
	columns := []string{
		"slot", "blob_index", "kzg_commitment", "versioned_hash", "blob_size",
	}
	rows, err := b.runner.Run(ctx, f.spec("canonical_beacon_blob_sidecar", columns))
	if err != nil {
		return nil, err
	}

	sidecars := make([]BlobSidecar, 0, len(rows))
	for _, r := range rows {
		sidecars = append(sidecars, blobFromRow(r))
	}
	return sidecars, nil
}

// CountBySlot aggregates sidecar counts per slot.
func (b *Blobs) CountBySlot(ctx context.Context, f Filter) (map[int64]int, error) {
	sidecars, err := b.Sidecars(ctx, f)
	if err != nil {
		return nil, err
	}

	counts := make(map[int64]int)
	for _, sc := range sidecars {
		counts[sc.Slot]++
	}
	return counts, nil
}
