// Package chaintime converts between beacon-chain slots, epochs, and wall
// clock time for the supported networks.
package chaintime

import (
	"fmt"
	"time"
)

const (
	// SecondsPerSlot is the fixed slot duration on all supported networks.
	SecondsPerSlot = 12

	// SlotsPerEpoch is the number of slots in one epoch.
	SlotsPerEpoch = 32
)

// SlotDuration is SecondsPerSlot as a time.Duration.
const SlotDuration = SecondsPerSlot * time.Second

// Network identifies a beacon-chain network.
type Network string

const (
	Mainnet Network = "mainnet"
	Sepolia Network = "sepolia"
	Holesky Network = "holesky"
)

var genesisTimes = map[Network]time.Time{
	Mainnet: time.Date(2020, 12, 1, 12, 0, 23, 0, time.UTC),
	Sepolia: time.Date(2022, 6, 20, 22, 0, 0, 0, time.UTC),
	Holesky: time.Date(2023, 9, 28, 12, 0, 0, 0, time.UTC),
}

// Valid reports whether n is a known network.
func (n Network) Valid() bool {
	_, ok := genesisTimes[n]
	return ok
}

func (n Network) String() string { return string(n) }

// Genesis returns the genesis time for the network.
func Genesis(network Network) (time.Time, error) {
	genesis, ok := genesisTimes[network]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown network: %s", network)
	}
	return genesis, nil
}

// SlotTime returns the wall clock start time of a slot.
func SlotTime(network Network, slot int64) (time.Time, error) {
	genesis, err := Genesis(network)
	if err != nil {
		return time.Time{}, err
	}
	return genesis.Add(time.Duration(slot) * SlotDuration), nil
}

// TimeToSlot returns the slot containing the given timestamp.
func TimeToSlot(network Network, ts time.Time) (int64, error) {
	genesis, err := Genesis(network)
	if err != nil {
		return 0, err
	}
	if ts.Before(genesis) {
		return 0, fmt.Errorf("timestamp %s is before %s genesis %s", ts.Format(time.RFC3339), network, genesis.Format(time.RFC3339))
	}
	return int64(ts.Sub(genesis) / SlotDuration), nil
}

// SlotToEpoch returns the epoch containing the slot.
func SlotToEpoch(slot int64) int64 { return slot / SlotsPerEpoch }

// EpochStartSlot returns the first slot of an epoch.
func EpochStartSlot(epoch int64) int64 { return epoch * SlotsPerEpoch }

// EpochBoundarySlots returns the first and last slot of the epoch
// containing the given slot.
func EpochBoundarySlots(slot int64) (int64, int64) {
	start := EpochStartSlot(SlotToEpoch(slot))
	return start, start + SlotsPerEpoch - 1
}

// IsEpochBoundary reports whether slot is the first slot of an epoch.
func IsEpochBoundary(slot int64) bool { return slot%SlotsPerEpoch == 0 }

// FinalizedEpoch returns the last finalized epoch for the current slot.
// Finalization trails the head by two epochs.
func FinalizedEpoch(currentSlot int64) int64 {
	epoch := SlotToEpoch(currentSlot) - 2
	if epoch < 0 {
		return 0
	}
	return epoch
}

// CurrentSlot returns the slot for the current wall clock time.
func CurrentSlot(network Network) (int64, error) {
	return TimeToSlot(network, time.Now().UTC())
}
